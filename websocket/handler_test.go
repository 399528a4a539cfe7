package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/gridrider/field"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/sector"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/websocket"
)

func send(t *testing.T, conn *websocket.Conn, msg Msg) {
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, websocket.Message.Send(conn, string(data)))
}

// receiveType reads messages until one of the given type arrives.
func receiveType(t *testing.T, conn *websocket.Conn, codec Codec, msgType string) Msg {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	for {
		var data []byte
		require.NoError(t, websocket.Message.Receive(conn, &data))

		var msg Msg
		require.NoError(t, codec.Unmarshal(data, &msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func jsonCodec(t *testing.T) Codec {
	c, err := CodecFor(sector.CodecJSON)
	require.NoError(t, err)
	return c
}

func bodyPosition(store *sector.Store, name string, h models.Handle) (pos mgl64.Vec3, ok bool) {
	session, found := store.GetByName(name)
	if !found {
		return mgl64.Vec3{}, false
	}

	session.Do(func(s *sector.Sector) error {
		state, exists := s.Body(h)
		pos, ok = state.Position, exists
		return nil
	})
	return pos, ok
}

func TestPilotHandlerJoin(t *testing.T) {
	t.Run("client joins the requested sector", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		joined := receiveType(t, conn, jsonCodec(t), MsgTypeJoined)
		require.Equal(t, "alpha", joined.Sector)
		require.NotEmpty(t, joined.SessionID)
		require.NotNil(t, joined.Body)
		require.False(t, joined.Body.IsZero())

		session, ok := store.GetByName("alpha")
		require.True(t, ok)
		require.Equal(t, joined.SessionID, session.ID)
	})

	t.Run("client joins the default sector", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		joined := receiveType(t, dial(""), jsonCodec(t), MsgTypeJoined)
		require.Equal(t, defaultSectorName, joined.Sector)
	})

	t.Run("clients share a sector", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		a := receiveType(t, dial("sector=gamma"), jsonCodec(t), MsgTypeJoined)
		b := receiveType(t, dial("sector=gamma"), jsonCodec(t), MsgTypeJoined)
		require.Equal(t, a.SessionID, b.SessionID)
		require.NotEqual(t, *a.Body, *b.Body)
		require.Equal(t, 1, store.Len())
	})

	t.Run("unknown codec is rejected", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("codec=xml")
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		var data []byte
		require.Error(t, websocket.Message.Receive(conn, &data))
		require.Zero(t, store.Len())
	})
}

func TestPilotHandlerSnapshots(t *testing.T) {
	t.Run("json snapshots are streamed", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		joined := receiveType(t, conn, jsonCodec(t), MsgTypeJoined)

		msg := receiveType(t, conn, jsonCodec(t), MsgTypeSnapshot)
		require.NotNil(t, msg.Snapshot)
		require.Equal(t, "alpha", msg.Snapshot.Name)
		require.Len(t, msg.Snapshot.Nodes, 36)
		require.Len(t, msg.Snapshot.Bodies, 1)
		require.Equal(t, *joined.Body, msg.Snapshot.Bodies[0].Handle)
	})

	t.Run("msgpack snapshots are streamed in binary frames", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		codec, err := CodecFor(sector.CodecMsgpack)
		require.NoError(t, err)

		conn := dial("sector=beta&codec=msgpack")
		receiveType(t, conn, codec, MsgTypeJoined)

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var data []byte
			require.NoError(t, websocket.Message.Receive(conn, &data))

			var msg Msg
			require.NoError(t, msgpack.Unmarshal(data, &msg))
			if msg.Type != MsgTypeSnapshot {
				continue
			}

			require.Equal(t, "beta", msg.Snapshot.Name)
			require.Len(t, msg.Snapshot.Bodies, 1)
			break
		}
	})
}

func TestPilotHandlerMessages(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		receiveType(t, conn, jsonCodec(t), MsgTypeJoined)

		send(t, conn, Msg{Type: MsgTypePing, RequestID: 3})
		pong := receiveType(t, conn, jsonCodec(t), MsgTypePong)
		require.Equal(t, uint32(3), pong.RequestID)
	})

	t.Run("unknown message type", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		receiveType(t, conn, jsonCodec(t), MsgTypeJoined)

		send(t, conn, Msg{Type: "warp", RequestID: 4})
		res := receiveType(t, conn, jsonCodec(t), MsgTypeError)
		require.Equal(t, uint32(4), res.RequestID)
		require.Contains(t, res.Error, "warp")
	})

	t.Run("intent moves the body", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		joined := receiveType(t, conn, jsonCodec(t), MsgTypeJoined)

		start, ok := bodyPosition(&store, "alpha", *joined.Body)
		require.True(t, ok)

		send(t, conn, Msg{Type: MsgTypeIntent, Thrust: 1})
		send(t, conn, Msg{Type: MsgTypeIntent, Impulse: true})

		require.Eventually(t, func() bool {
			pos, ok := bodyPosition(&store, "alpha", *joined.Body)
			return ok && !pos.ApproxEqual(start)
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("sources are added and removed", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		receiveType(t, conn, jsonCodec(t), MsgTypeJoined)

		send(t, conn, Msg{
			Type:      MsgTypeSourceAdd,
			RequestID: 7,
			Source: &field.Source{
				Position: mgl64.Vec3{2, 2, 0},
				Order:    2,
				Radial:   -0.5,
			},
		})
		added := receiveType(t, conn, jsonCodec(t), MsgTypeSourceAdded)
		require.Equal(t, uint32(7), added.RequestID)
		require.NotNil(t, added.Handle)

		session, ok := store.GetByName("alpha")
		require.True(t, ok)
		require.Len(t, session.Snapshot().Sources, 1)

		send(t, conn, Msg{
			Type:      MsgTypeSourceRemove,
			RequestID: 8,
			Handle:    added.Handle,
		})
		removed := receiveType(t, conn, jsonCodec(t), MsgTypeSourceRemoved)
		require.Equal(t, uint32(8), removed.RequestID)
		require.Empty(t, session.Snapshot().Sources)

		send(t, conn, Msg{
			Type:      MsgTypeSourceRemove,
			RequestID: 9,
			Handle:    added.Handle,
		})
		res := receiveType(t, conn, jsonCodec(t), MsgTypeError)
		require.Equal(t, uint32(9), res.RequestID)
	})

	t.Run("source add without source", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		receiveType(t, conn, jsonCodec(t), MsgTypeJoined)

		send(t, conn, Msg{Type: MsgTypeSourceAdd, RequestID: 10})
		res := receiveType(t, conn, jsonCodec(t), MsgTypeError)
		require.Equal(t, uint32(10), res.RequestID)
	})
}

func TestPilotHandlerDisconnect(t *testing.T) {
	t.Run("last pilot leaving removes the sector", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=alpha")
		receiveType(t, conn, jsonCodec(t), MsgTypeJoined)
		require.Equal(t, 1, store.Len())

		conn.Close()
		require.Eventually(t, func() bool {
			return store.Len() == 0
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("body is removed when its pilot leaves", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		a := dial("sector=alpha")
		joinedA := receiveType(t, a, jsonCodec(t), MsgTypeJoined)
		b := dial("sector=alpha")
		receiveType(t, b, jsonCodec(t), MsgTypeJoined)

		a.Close()
		require.Eventually(t, func() bool {
			_, ok := bodyPosition(&store, "alpha", *joinedA.Body)
			return !ok
		}, 5*time.Second, 10*time.Millisecond)
		require.Equal(t, 1, store.Len())
	})

	t.Run("persistent sector is kept", func(t *testing.T) {
		var store sector.Store

		info, err := newTestSectorInfo("home")
		require.NoError(t, err)
		s, err := sector.New(info)
		require.NoError(t, err)
		session := sector.NewSession(s, 10*time.Millisecond)
		session.Persistent = true
		require.NoError(t, store.Add(session))
		defer session.Close()

		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		conn := dial("sector=home")
		joined := receiveType(t, conn, jsonCodec(t), MsgTypeJoined)
		require.Equal(t, session.ID, joined.SessionID)

		conn.Close()
		require.Eventually(t, func() bool {
			_, ok := bodyPosition(&store, "home", *joined.Body)
			return !ok
		}, 5*time.Second, 10*time.Millisecond)
		require.Equal(t, 1, store.Len())
	})

	t.Run("pilot joining while another leaves gets a running sector", func(t *testing.T) {
		var store sector.Store
		dial, close := NewTestingEnv(t, newTestHandler(&store))
		defer close()

		for i := 0; i < 10; i++ {
			leaving := dial("sector=alpha")
			receiveType(t, leaving, jsonCodec(t), MsgTypeJoined)

			leaving.Close()
			joining := dial("sector=alpha")
			joined := receiveType(t, joining, jsonCodec(t), MsgTypeJoined)

			receiveType(t, joining, jsonCodec(t), MsgTypeSnapshot)
			session, ok := store.GetByName("alpha")
			require.True(t, ok)
			require.Equal(t, joined.SessionID, session.ID)

			joining.Close()
			require.Eventually(t, func() bool {
				return store.Len() == 0
			}, 5*time.Second, 10*time.Millisecond)
		}
	})
}
