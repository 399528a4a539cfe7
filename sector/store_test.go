package sector

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newNamedSession(t *testing.T, name string) *Session {
	s, err := New(newTestInfo(func(info *Info) {
		info.Name = name
	}))
	require.NoError(t, err)

	session := NewSession(s, time.Second)
	t.Cleanup(session.Close)
	return session
}

func TestStoreAdd(t *testing.T) {
	t.Run("session is added", func(t *testing.T) {
		var sessions Store

		session := newNamedSession(t, "alpha")
		require.NoError(t, sessions.Add(session))
		require.Equal(t, session, sessions.sessions[session.ID])
		require.Equal(t, 1, sessions.Len())
	})

	t.Run("names are unique", func(t *testing.T) {
		var sessions Store

		require.NoError(t, sessions.Add(newNamedSession(t, "alpha")))

		err := sessions.Add(newNamedSession(t, "alpha"))
		require.Error(t, err)
		require.Equal(t, models.ErrTypeInvalidConfig, errors.Type(err))
		require.Equal(t, 1, sessions.Len())
	})
}

func TestStoreRemove(t *testing.T) {
	var sessions Store

	session := newNamedSession(t, "alpha")
	require.NoError(t, sessions.Add(session))

	sessions.Remove(session)
	require.Zero(t, sessions.Len())

	_, ok := sessions.GetByName("alpha")
	require.False(t, ok)

	// removing twice is a no-op.
	sessions.Remove(session)
	require.Zero(t, sessions.Len())
}

func TestStoreGet(t *testing.T) {
	var sessions Store

	session := newNamedSession(t, "alpha")
	require.NoError(t, sessions.Add(session))

	t.Run("by id", func(t *testing.T) {
		res, ok := sessions.Get(session.ID)
		require.True(t, ok)
		require.Equal(t, session, res)

		res, ok = sessions.Get("unknown")
		require.False(t, ok)
		require.Nil(t, res)
	})

	t.Run("by name", func(t *testing.T) {
		res, ok := sessions.GetByName("alpha")
		require.True(t, ok)
		require.Equal(t, session, res)

		_, ok = sessions.GetByName("beta")
		require.False(t, ok)
	})
}

func TestStoreList(t *testing.T) {
	var sessions Store

	for _, name := range []string{"gamma", "alpha", "beta"} {
		require.NoError(t, sessions.Add(newNamedSession(t, name)))
	}

	list := sessions.List()
	require.Len(t, list, 3)
	require.Equal(t, "alpha", list[0].Name())
	require.Equal(t, "beta", list[1].Name())
	require.Equal(t, "gamma", list[2].Name())
}

func TestStoreGetOrAdd(t *testing.T) {
	var sessions Store
	calls := 0
	create := func() (*Session, error) {
		calls++
		return newNamedSession(t, "alpha"), nil
	}

	first, created, err := sessions.GetOrAdd("alpha", create)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := sessions.GetOrAdd("alpha", create)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)

	t.Run("creation error", func(t *testing.T) {
		_, _, err := sessions.GetOrAdd("beta", func() (*Session, error) {
			return nil, errors.New("boom")
		})
		require.Error(t, err)
		require.Equal(t, 1, sessions.Len())
	})
}

func addBody(h *models.Handle) func(*Session) error {
	return func(session *Session) error {
		return session.Do(func(s *Sector) error {
			var err error
			*h, err = s.AddBody(mgl64.Vec3{})
			return err
		})
	}
}

func removeBody(session *Session, h models.Handle) {
	session.Do(func(s *Sector) error {
		return s.RemoveBody(h)
	})
}

func TestStoreJoin(t *testing.T) {
	t.Run("session is created and joined", func(t *testing.T) {
		var sessions Store

		var body models.Handle
		session, created, err := sessions.Join("alpha", func() (*Session, error) {
			return newNamedSession(t, "alpha"), nil
		}, addBody(&body))
		require.NoError(t, err)
		require.True(t, created)
		require.False(t, body.IsZero())

		got, ok := sessions.GetByName("alpha")
		require.True(t, ok)
		require.Equal(t, session, got)
	})

	t.Run("session created for a failed join is not registered", func(t *testing.T) {
		var sessions Store

		_, _, err := sessions.Join("alpha", func() (*Session, error) {
			return newNamedSession(t, "alpha"), nil
		}, func(*Session) error {
			return errors.New("no room")
		})
		require.Error(t, err)
		require.Zero(t, sessions.Len())
	})
}

func TestStoreRemoveIfEmpty(t *testing.T) {
	t.Run("empty session is removed", func(t *testing.T) {
		var sessions Store

		session := newNamedSession(t, "alpha")
		require.NoError(t, sessions.Add(session))
		require.True(t, sessions.RemoveIfEmpty(session))
		require.Zero(t, sessions.Len())
	})

	t.Run("session with bodies is kept", func(t *testing.T) {
		var sessions Store

		var body models.Handle
		session, _, err := sessions.Join("alpha", func() (*Session, error) {
			return newNamedSession(t, "alpha"), nil
		}, addBody(&body))
		require.NoError(t, err)

		require.False(t, sessions.RemoveIfEmpty(session))
		require.Equal(t, 1, sessions.Len())

		removeBody(session, body)
		require.True(t, sessions.RemoveIfEmpty(session))
		require.Zero(t, sessions.Len())
	})

	t.Run("persistent session is kept", func(t *testing.T) {
		var sessions Store

		session := newNamedSession(t, "alpha")
		session.Persistent = true
		require.NoError(t, sessions.Add(session))
		require.False(t, sessions.RemoveIfEmpty(session))
		require.Equal(t, 1, sessions.Len())
	})

	t.Run("concurrent joins and leaves never lose a session", func(t *testing.T) {
		var sessions Store
		var orphans atomic.Int32

		create := func() (*Session, error) {
			s, err := New(newTestInfo(func(info *Info) {
				info.Name = "alpha"
			}))
			if err != nil {
				return nil, err
			}
			return NewSession(s, time.Second), nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for j := 0; j < 50; j++ {
					var body models.Handle
					session, _, err := sessions.Join("alpha", create, addBody(&body))
					if err != nil {
						orphans.Add(1)
						continue
					}
					if got, ok := sessions.Get(session.ID); !ok || got != session {
						orphans.Add(1)
					}

					removeBody(session, body)
					sessions.RemoveIfEmpty(session)
				}
			}()
		}
		wg.Wait()

		require.Zero(t, orphans.Load())
		require.Zero(t, sessions.Len())
	})
}
