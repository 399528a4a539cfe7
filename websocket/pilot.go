package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/featureflag"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/sector"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// HeaderClientID is the request header that identifies a client across
	// reconnections.
	HeaderClientID = "X-Gridrider-Client-ID"

	defaultSectorName = "default"
)

// PilotHandler lets a client fly a body through a sector. The sector is
// named by the "sector" query parameter of the connection request and
// created on demand. Snapshots are streamed with the codec named by the
// "codec" query parameter.
type PilotHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame of sectors created by the handler.
	FrameDuration time.Duration

	// The number of frames between two snapshots. Values below 1 send a
	// snapshot every frame.
	SnapshotInterval int

	// The store that contains all the running sectors.
	Sectors *sector.Store

	// Describes sectors created on demand. sector.DefaultInfo renamed after
	// the requested sector is used when nil.
	NewSectorInfo func(name string) (sector.Info, error)

	FeatureFlags featureflag.FeatureFlag

	// Receives the events of sectors created on demand.
	Events chan<- sector.Event

	// Where bodies are spawned.
	SpawnPosition mgl64.Vec3

	conn           *websocket.Conn
	codec          Codec
	clientID       string
	sectorName     string
	currentSession *sector.Session
	currentBody    models.Handle

	stopFrameHandling func()
	frames            int
}

func (h *PilotHandler) HandleConnect(conn *websocket.Conn) error {
	h.conn = conn
	h.clientID = uuid.NewString()
	h.sectorName = defaultSectorName

	req := conn.Request()
	if req == nil {
		h.codec, _ = CodecFor(sector.CodecJSON)
		return nil
	}

	if id := req.Header.Get(HeaderClientID); id != "" {
		h.clientID = id
	}

	query := req.URL.Query()
	if name := query.Get("sector"); name != "" {
		h.sectorName = name
	}

	codec, err := CodecFor(query.Get("codec"))
	if err != nil {
		return err
	}
	h.codec = codec
	return nil
}

func (h *PilotHandler) HandleJoin(ctx context.Context, respond ResponseSender) error {
	var body models.Handle
	session, created, err := h.Sectors.Join(h.sectorName, h.newSession, func(session *sector.Session) error {
		return session.Do(func(s *sector.Sector) error {
			var err error
			body, err = s.AddBody(h.SpawnPosition)
			return err
		})
	})
	if err != nil {
		respond.Send(Msg{
			Type:  MsgTypeError,
			Error: err.Error(),
		})
		return errors.New("joining sector failed").
			WithTag("sector", h.sectorName).
			Wrap(err)
	}
	if created {
		go session.StartDispatchFrames(context.Background())
	}

	h.currentSession = session
	h.currentBody = body

	respond.Send(Msg{
		Type:      MsgTypeJoined,
		Sector:    session.Name(),
		SessionID: session.ID,
		Body:      &body,
	})

	interval := max(h.SnapshotInterval, 1)
	h.stopFrameHandling = session.HandleFrame(func(sector.Stats) {
		h.frames++
		if h.frames%interval != 0 {
			return
		}

		snap := session.Snapshot()
		respond.Send(Msg{
			Type:     MsgTypeSnapshot,
			Snapshot: &snap,
		})
	})
	return nil
}

func (h *PilotHandler) newSession() (*sector.Session, error) {
	info := sector.DefaultInfo()
	info.Name = h.sectorName

	if h.NewSectorInfo != nil {
		var err error
		if info, err = h.NewSectorInfo(h.sectorName); err != nil {
			return nil, err
		}
		info.Name = h.sectorName
	}
	h.FeatureFlags.Configure(&info.Config)

	s, err := sector.New(info)
	if err != nil {
		return nil, errors.New("creating sector failed").
			WithTag("sector", h.sectorName).
			Wrap(err)
	}
	if h.Events != nil {
		s.NotifyEvents(h.Events)
	}
	return sector.NewSession(s, h.FrameDuration), nil
}

func (h *PilotHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *PilotHandler) HandleIntent(ctx context.Context, msg Msg) error {
	if h.currentSession == nil {
		return errors.New("no sector joined").WithType(models.ErrTypeSectorNotFound)
	}

	h.currentSession.Queue(sector.Intent{
		Body:    h.currentBody,
		Rotate:  msg.Rotate,
		Thrust:  msg.Thrust,
		Impulse: msg.Impulse,
	})
	return nil
}

func (h *PilotHandler) HandleSourceAdd(ctx context.Context, respond ResponseSender, msg Msg) error {
	if h.currentSession == nil {
		return errors.New("no sector joined").WithType(models.ErrTypeSectorNotFound)
	}

	if msg.Source == nil {
		respond.Send(Msg{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Error:     "missing source",
		})
		return nil
	}

	var handle models.Handle
	h.currentSession.Do(func(s *sector.Sector) error {
		handle = s.AddSource(*msg.Source)
		return nil
	})

	respond.Send(Msg{
		Type:      MsgTypeSourceAdded,
		RequestID: msg.RequestID,
		Handle:    &handle,
	})
	return nil
}

func (h *PilotHandler) HandleSourceRemove(ctx context.Context, respond ResponseSender, msg Msg) error {
	if h.currentSession == nil {
		return errors.New("no sector joined").WithType(models.ErrTypeSectorNotFound)
	}

	if msg.Handle == nil {
		respond.Send(Msg{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Error:     "missing source handle",
		})
		return nil
	}

	err := h.currentSession.Do(func(s *sector.Sector) error {
		return s.RemoveSource(*msg.Handle)
	})
	if err != nil {
		respond.Send(Msg{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Error:     err.Error(),
		})
		return nil
	}

	respond.Send(Msg{
		Type:      MsgTypeSourceRemoved,
		RequestID: msg.RequestID,
		Handle:    msg.Handle,
	})
	return nil
}

func (h *PilotHandler) HandleDisconnect(_ error) {
	h.leaveSector()
}

func (h *PilotHandler) leaveSector() {
	session := h.currentSession
	if session == nil {
		return
	}

	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
		h.stopFrameHandling = nil
	}

	if err := session.Do(func(s *sector.Sector) error {
		return s.RemoveBody(h.currentBody)
	}); err != nil {
		logs.WithTag("client_id", h.clientID).
			WithTag("sector", session.Name()).
			Debug(err)
	}

	h.Sectors.RemoveIfEmpty(session)
	h.currentSession = nil
	h.currentBody = models.Handle{}
}

func (h *PilotHandler) Receiver() Receiver {
	return NewReceiver(h.conn, h.codec)
}

func (h *PilotHandler) Sender() Sender {
	return NewSender(h.conn, h.codec)
}

func (h *PilotHandler) Close() {
	h.leaveSector()
}

func (h *PilotHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *PilotHandler) GetSectors() *sector.Store {
	return h.Sectors
}

func (h *PilotHandler) CurrentSession() *sector.Session {
	return h.currentSession
}

func (h *PilotHandler) CurrentBody() models.Handle {
	return h.currentBody
}

func (h *PilotHandler) GetClientID() string {
	return h.clientID
}
