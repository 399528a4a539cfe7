package sector

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/models"
	"github.com/google/uuid"
)

// maxFrameDelta caps the simulated time of a frame so that a stalled
// process does not blow the lattice apart once it resumes.
const maxFrameDelta = 0.25

// Intent is a pilot input for a body, applied at the start of the next
// frame.
type Intent struct {
	Body    models.Handle `json:"body"    msgpack:"body"`
	Rotate  float64       `json:"rotate"  msgpack:"rotate"`
	Thrust  float64       `json:"thrust"  msgpack:"thrust"`
	Impulse bool          `json:"impulse" msgpack:"impulse"`
}

// Session runs a sector on a frame ticker and serializes every access to it.
type Session struct {
	ID string

	// Persistent sessions stay in their store when their last pilot leaves.
	Persistent bool

	mutex   sync.Mutex
	sector  *Sector
	intents []Intent

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameDuration   time.Duration
	frameTicker     *time.Ticker
	frameHandlerIDs models.SequentialIDGenerator
	frameHandlers   map[uint32]func(Stats)
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewSession(s *Sector, frameDuration time.Duration) *Session {
	return &Session{
		ID:             uuid.New().String(),
		sector:         s,
		closeFrameChan: make(chan struct{}, 1),
		frameDuration:  frameDuration,
		frameTicker:    time.NewTicker(frameDuration),
		frameHandlers:  make(map[uint32]func(Stats)),
	}
}

func (s *Session) Name() string {
	return s.sector.Name()
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

// Do runs fn with exclusive access to the sector.
func (s *Session) Do(fn func(*Sector) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return fn(s.sector)
}

// Queue stores an intent until the next frame.
func (s *Session) Queue(i Intent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.intents = append(s.intents, i)
}

func (s *Session) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.sector.Snapshot()
}

// Advance applies the queued intents, advances the sector by dt seconds and
// calls the frame handlers with the tick stats.
func (s *Session) Advance(dt float64) Stats {
	s.mutex.Lock()
	for _, i := range s.intents {
		if err := s.apply(i); err != nil {
			logs.WithTag("sector", s.sector.Name()).Debug(err)
		}
	}
	s.intents = s.intents[:0]
	stats := s.sector.Advance(dt)
	s.mutex.Unlock()

	s.frameMutex.RLock()
	defer s.frameMutex.RUnlock()

	for _, h := range s.frameHandlers {
		h(stats)
	}
	return stats
}

func (s *Session) apply(i Intent) error {
	if i.Rotate != 0 {
		if err := s.sector.Rotate(i.Body, i.Rotate); err != nil {
			return err
		}
	}

	if i.Thrust != 0 {
		if err := s.sector.Thrust(i.Body, i.Thrust); err != nil {
			return err
		}
	}

	if i.Impulse {
		return s.sector.Impulse(i.Body)
	}
	return nil
}

// HandleFrame registers a function called after each frame.
func (s *Session) HandleFrame(h func(Stats)) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames advances the sector on every frame with the time
// elapsed since the previous one, until the session is closed or ctx is
// done.
func (s *Session) StartDispatchFrames(ctx context.Context) {
	s.startFrameOnce.Do(func() {
		last := time.Now()

		for {
			select {
			case <-ctx.Done():
				return

			case <-s.closeFrameChan:
				return

			case now := <-s.frameTicker.C:
				dt := math.Min(now.Sub(last).Seconds(), maxFrameDelta)
				last = now
				s.Advance(dt)
			}
		}
	})
}
