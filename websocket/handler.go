package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/sector"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 512
	recvChanSize = 64
)

// Handler represents a pilot feed handler.
type Handler interface {
	// Handles a client connection. A returned error closes the connection
	// before anything is sent.
	HandleConnect(conn *websocket.Conn) error

	// Joins the sector the client asked for and spawns its body.
	HandleJoin(ctx context.Context, respond ResponseSender) error

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles pilot inputs for the current body.
	HandleIntent(ctx context.Context, msg Msg) error

	// Handles a request to add a field source.
	HandleSourceAdd(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to remove a field source.
	HandleSourceRemove(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the sector store.
	GetSectors() *sector.Store

	// The currently joined sector.
	CurrentSession() *sector.Session

	// The body piloted by the client.
	CurrentBody() models.Handle

	GetClientID() string
}

// Handle handles the given service.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The pilot handler.
	Handler Handler

	sendChan       chan Msg
	sender         Sender
	recvChan       chan Msg
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := h.Handler.HandleConnect(h.Conn); err != nil {
		h.handleDisconnect(errors.New("connecting client failed").Wrap(err))
		return
	}

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	responder := responseSender{send: h.send}

	if err := h.Handler.HandleJoin(ctx, responder); err != nil {
		h.disconnect(errors.New("joining sector failed").Wrap(err))
	}

	h.recvChan = make(chan Msg, recvChanSize)
	h.receiver = h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())
			break loop

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case msg := <-h.recvChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			break loop
		}
	}

	// cancel context so go routines can cleanly exit
	cancel()
	wg.Wait()
}

// send queues a message without blocking. A full queue drops it.
func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		logs.WithTag("client_id", h.Handler.GetClientID()).
			WithTag("msg_type", msg.TypeString()).
			Debug("send queue is full, message dropped")
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		msg, _, err := h.receiver()
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case h.recvChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	switch msg.Type {
	case MsgTypePing:
		return h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeIntent:
		return h.Handler.HandleIntent(ctx, msg)

	case MsgTypeSourceAdd:
		return h.Handler.HandleSourceAdd(ctx, responder, msg)

	case MsgTypeSourceRemove:
		return h.Handler.HandleSourceRemove(ctx, responder, msg)

	default:
		responder.Send(Msg{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Error:     "unknown message type: " + msg.TypeString(),
		})
		return nil
	}
}

// disconnect never blocks. Errors past the buffer are dropped.
func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.send(msg)
}
