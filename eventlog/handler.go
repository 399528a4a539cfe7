package eventlog

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/sector"
)

// Handler logs the events emitted by sectors and keeps a count of them by
// kind.
type Handler struct {
	Events <-chan sector.Event // buffered

	mutex  sync.Mutex
	counts map[sector.EventKind]int
}

// HandleEvents consumes the events in a goroutine until ctx is done or the
// event channel is closed.
func (h *Handler) HandleEvents(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case e, ok := <-h.Events:
				if !ok {
					return
				}
				h.handle(e)
			}
		}
	}()
}

func (h *Handler) handle(e sector.Event) {
	h.mutex.Lock()
	if h.counts == nil {
		h.counts = make(map[sector.EventKind]int)
	}
	h.counts[e.Kind]++
	h.mutex.Unlock()

	instrumentEvent(e)

	logs.WithTag("sector", e.Sector).
		WithTag("tick", e.Tick).
		WithTag("kind", e.Kind).
		WithTag("node", e.Node.String()).
		WithTag("body", e.Body.String()).
		WithTag("position", e.Position).
		Debug("sector event")
}

// Counts returns the number of handled events by kind.
func (h *Handler) Counts() map[sector.EventKind]int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	counts := make(map[sector.EventKind]int, len(h.counts))
	for k, v := range h.counts {
		counts[k] = v
	}
	return counts
}
