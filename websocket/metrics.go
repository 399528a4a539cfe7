package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/sector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel        = "error_type"
	msgTypeLabel        = "msg_type"
	publicEndpointLabel = "public_endpoint"
	codecLabel          = "codec"
)

var (
	pilotsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridrider_pilots_connected",
		Help: "The number of pilots connected to the websocket feed.",
	}, []string{publicEndpointLabel, codecLabel})

	pilotMsgsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridrider_pilot_msgs_received",
		Help: "The number of messages received from pilots.",
	}, []string{publicEndpointLabel, codecLabel, msgTypeLabel})

	pilotBytesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridrider_pilot_bytes_received",
		Help: "The number of bytes received from pilots.",
	}, []string{publicEndpointLabel, codecLabel, msgTypeLabel})

	pilotReceiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridrider_pilot_receive_errors",
		Help: "The errors that occurred while receiving pilot messages.",
	}, []string{publicEndpointLabel, codecLabel, errTypeLabel})

	pilotMsgsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridrider_pilot_msgs_sent",
		Help: "The number of messages sent to pilots.",
	}, []string{publicEndpointLabel, codecLabel, msgTypeLabel})

	pilotBytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridrider_pilot_bytes_sent",
		Help: "The number of bytes sent to pilots. Snapshots make up most of it.",
	}, []string{publicEndpointLabel, codecLabel, msgTypeLabel})

	pilotSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridrider_pilot_send_errors",
		Help: "The errors that occurred while sending pilot messages.",
	}, []string{publicEndpointLabel, codecLabel, errTypeLabel, msgTypeLabel})

	pilotMsgLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridrider_pilot_msg_latency",
		Help:    "The time to handle a pilot message.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
	}, []string{publicEndpointLabel, codecLabel, msgTypeLabel})
)

// HandlerWithMetrics records the traffic of a pilot connection.
func HandlerWithMetrics(h Handler, publicEndpoint string) Handler {
	return &handlerWithMetrics{
		Handler:        h,
		publicEndpoint: publicEndpoint,
		codec:          sector.CodecJSON,
	}
}

type handlerWithMetrics struct {
	Handler

	publicEndpoint string
	codec          string
	connected      bool
}

func (h *handlerWithMetrics) labels() prometheus.Labels {
	return prometheus.Labels{
		publicEndpointLabel: h.publicEndpoint,
		codecLabel:          h.codec,
	}
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) error {
	if err := h.Handler.HandleConnect(conn); err != nil {
		return err
	}

	if codec := conn.Request().URL.Query().Get("codec"); codec != "" {
		h.codec = codec
	}
	h.connected = true
	pilotsConnected.With(h.labels()).Inc()
	return nil
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	if h.connected {
		h.connected = false
		pilotsConnected.With(h.labels()).Dec()
	}
	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandlePing(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleIntent(ctx context.Context, msg Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleIntent(ctx, msg)
	})
}

func (h *handlerWithMetrics) HandleSourceAdd(ctx context.Context, respond ResponseSender, msg Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleSourceAdd(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleSourceRemove(ctx context.Context, respond ResponseSender, msg Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleSourceRemove(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) Receiver() Receiver {
	receive := h.Handler.Receiver()
	received := pilotMsgsReceived.MustCurryWith(h.labels())
	bytes := pilotBytesReceived.MustCurryWith(h.labels())
	failed := pilotReceiveErrors.MustCurryWith(h.labels())

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil {
			failed.WithLabelValues(errors.Type(err)).Inc()
		} else {
			received.WithLabelValues(msg.TypeString()).Inc()
		}
		if n != 0 {
			bytes.WithLabelValues(msg.TypeString()).Add(float64(n))
		}
		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() Sender {
	send := h.Handler.Sender()
	sent := pilotMsgsSent.MustCurryWith(h.labels())
	bytes := pilotBytesSent.MustCurryWith(h.labels())
	failed := pilotSendErrors.MustCurryWith(h.labels())

	return func(msg Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := send(msg)
		if err != nil {
			failed.With(prometheus.Labels{
				errTypeLabel: errors.Type(err),
				msgTypeLabel: msgType,
			}).Inc()
		}
		if n != 0 {
			sent.WithLabelValues(msgType).Inc()
			bytes.WithLabelValues(msgType).Add(float64(n))
		}
		return n, err
	}
}

func (h *handlerWithMetrics) measureLatency(msg Msg, f func() error) error {
	start := time.Now()
	err := f()

	pilotMsgLatency.
		MustCurryWith(h.labels()).
		WithLabelValues(msg.TypeString()).
		Observe(time.Since(start).Seconds())
	return err
}
