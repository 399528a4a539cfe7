package lattice

import (
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
)

// Node is a point mass of the lattice.
type Node struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3

	// Force accumulates spring and damping forces until the next
	// integration.
	Force mgl64.Vec3

	// Drift is the velocity imposed by the environment for the current
	// tick. It moves the node without being persisted in Velocity.
	Drift mgl64.Vec3

	// Pinned nodes never move and are not tracked by the spatial index.
	Pinned bool
	Alive  bool
}

// Connection is a spring between two distinct nodes.
type Connection struct {
	A          models.Handle
	B          models.Handle
	RestLength float64
	Stiffness  float64
}

// Other returns the endpoint of c that is not h.
func (c Connection) Other(h models.Handle) models.Handle {
	if c.A == h {
		return c.B
	}
	return c.A
}

// EdgeKey identifies a connection regardless of its endpoint order.
type EdgeKey struct {
	Lo models.Handle
	Hi models.Handle
}

func Key(a, b models.Handle) EdgeKey {
	if less(b, a) {
		a, b = b, a
	}
	return EdgeKey{Lo: a, Hi: b}
}

func less(a, b models.Handle) bool {
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Gen < b.Gen
}
