package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/sector"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Creates a testing environement to unit test handlers. The returned dial
// function opens a client connection with the given raw query, for example
// "sector=alpha&codec=msgpack".
func NewTestingEnv(t *testing.T, newHandler func() Handler) (func(query string) *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	dial, close := newTestingEnv(t, newHandler)
	return dial, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (func(string) *websocket.Conn, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	var connsMutex sync.Mutex
	var conns []*websocket.Conn

	dial := func(query string) *websocket.Conn {
		url := strings.ReplaceAll(server.URL, "http://", "ws://")
		if query != "" {
			url += "/?" + query
		}

		config, err := websocket.NewConfig(url, "http://localhost")
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		config.Header.Set("X-Forwarded-for", "192.0.0.0")
		config.Header.Set(HeaderClientID, uuid.NewString())

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		connsMutex.Lock()
		conns = append(conns, conn)
		connsMutex.Unlock()
		return conn
	}

	return dial, func() {
		connsMutex.Lock()
		for _, c := range conns {
			c.Close()
		}
		connsMutex.Unlock()
		server.Close()
	}
}

func newTestHandler(store *sector.Store) func() Handler {
	return func() Handler {
		var h Handler = &PilotHandler{
			ClientIdleTimeout: time.Minute,
			FrameDuration:     time.Millisecond * 10,
			SnapshotInterval:  2,
			Sectors:           store,
			NewSectorInfo:     newTestSectorInfo,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "http://gridrider.test")
		return h
	}
}

func newTestSectorInfo(name string) (sector.Info, error) {
	info := sector.DefaultInfo()
	info.Name = name
	info.Config.Lattice.SideNodeCount = 6
	info.Sources = nil
	info.Objects = nil
	return info, nil
}
