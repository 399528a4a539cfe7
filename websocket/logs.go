package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const clientIDTag = "client_id"

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	joinMutex  sync.RWMutex
	sectorName string
	sessionID  string
	body       string
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) error {
	err := h.Handler.HandleConnect(conn)
	h.originalRequest = conn.Request()

	if err != nil {
		logs.WithTag(clientIDTag, h.GetClientID()).
			WithTag("http_headers", h.httpHeaders()).
			Warn(errors.New("client connection rejected").Wrap(err))
		return err
	}

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag("http_headers", h.httpHeaders()).
		Info("new client is connected")
	return nil
}

func (h *handlerWithLogs) HandleJoin(ctx context.Context, respond ResponseSender) error {
	if err := h.Handler.HandleJoin(ctx, respond); err != nil {
		logs.WithTag(clientIDTag, h.GetClientID()).
			Warn(errors.New("client failed to join a sector").Wrap(err))
		return err
	}

	session := h.CurrentSession()
	h.joinMutex.Lock()
	h.sectorName = session.Name()
	h.sessionID = session.ID
	h.body = h.CurrentBody().String()
	h.joinMutex.Unlock()

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag("sector", session.Name()).
		WithTag("session_id", session.ID).
		WithTag("body", h.CurrentBody().String()).
		Info("client joined a sector")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	sectorName, body := h.joined()
	h.joinMutex.RLock()
	sessionID := h.sessionID
	h.joinMutex.RUnlock()

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag("sector", sectorName).
		WithTag("session_id", sessionID).
		WithTag("body", body).
		WithTag("reason", err).
		Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		sectorName, body := h.joined()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag("sector", sectorName).
				WithTag("body", body).
				Warn(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag("sector", sectorName).
				WithTag("body", body).
				WithTag("msg_type", msg.TypeString()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		sectorName, body := h.joined()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag("sector", sectorName).
				WithTag("body", body).
				WithTag("msg_type", msgType).
				Warn(errors.New("sending message failed").Wrap(err))
		} else if err == nil && msgType != MsgTypeSnapshot {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag("sector", sectorName).
				WithTag("body", body).
				WithTag("msg_type", msgType).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) joined() (sectorName, body string) {
	h.joinMutex.RLock()
	defer h.joinMutex.RUnlock()
	return h.sectorName, h.body
}

func (h *handlerWithLogs) httpHeaders() any {
	var headers struct {
		UserAgent     string `json:"user_agent,omitempty"`
		XForwardedFor string `json:"x_forwarded_for,omitempty"`
	}
	if h.originalRequest != nil {
		headers.UserAgent = h.originalRequest.UserAgent()
		headers.XForwardedFor = h.originalRequest.Header.Get("X-Forwarded-For")
	}
	return headers
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	sectorName, body := h.joined()
	counts := make(map[string]int, len(h.counter))
	for k, v := range h.counter {
		counts[k] = v
		delete(h.counter, k)
	}

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag("sector", sectorName).
		WithTag("body", body).
		WithTag("time_interval", h.summaryInterval).
		WithTag("msg_counts", counts).
		Info("inbound message summary")
}
