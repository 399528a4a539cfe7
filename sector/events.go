package sector

import (
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
)

type EventKind string

const (
	EventNodeDied       EventKind = "node_died"
	EventEdgeSubdivided EventKind = "edge_subdivided"
	EventEdgeCollapsed  EventKind = "edge_collapsed"
	EventBodyAdded      EventKind = "body_added"
	EventBodyRemoved    EventKind = "body_removed"
	EventBodyCollided   EventKind = "body_collided"
	EventBodyDocked     EventKind = "body_docked"
	EventBodyUndocked   EventKind = "body_undocked"
)

// Event is a notable change that happened in a sector during a tick.
type Event struct {
	Sector   string        `json:"sector"`
	Tick     uint64        `json:"tick"`
	Kind     EventKind     `json:"kind"`
	Node     models.Handle `json:"node"`
	Body     models.Handle `json:"body"`
	Position mgl64.Vec3    `json:"position"`
}

// NotifyEvents makes the sector emit its events on ch. Events are dropped
// when ch is full.
func (s *Sector) NotifyEvents(ch chan<- Event) {
	s.events = ch
}

func (s *Sector) emit(e Event) {
	if s.events == nil {
		return
	}

	e.Sector = s.name
	e.Tick = s.tick

	select {
	case s.events <- e:
	default:
		instrumentDroppedEvent(s.name)
	}
}
