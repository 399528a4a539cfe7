package lattice

import (
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

// ApplyDrift resets the drift of every live free node to the value returned
// by drift.
func (l *Lattice) ApplyDrift(drift func(h models.Handle, pos mgl64.Vec3) mgl64.Vec3) {
	l.nodes.Each(func(h models.Handle, n *Node) bool {
		if n.Pinned || !n.Alive {
			n.Drift = mgl64.Vec3{}
			return true
		}

		n.Drift = drift(h, n.Position)
		return true
	})
}

// AccumulateForces adds the spring force of every connection to its
// endpoints, along with the damping of each endpoint.
//
// Springs pull (or push) both endpoints with equal and opposite Hookean
// forces. Damping is applied per node and per incident edge against the
// velocity the node would have after the force accumulated so far.
func (l *Lattice) AccumulateForces(dt float64) {
	for _, c := range l.edges {
		a, okA := l.nodes.Get(c.A)
		b, okB := l.nodes.Get(c.B)
		if !okA || !okB {
			continue
		}

		d := b.Position.Sub(a.Position)
		length := d.Len()
		if length == 0 {
			continue
		}

		// stretched springs pull a towards b and b towards a.
		pull := d.Mul(c.Stiffness * (length - c.RestLength) / length)
		l.applySpring(a, pull, dt)
		l.applySpring(b, pull.Mul(-1), dt)
	}
}

func (l *Lattice) applySpring(n *Node, f mgl64.Vec3, dt float64) {
	if n.Pinned || !n.Alive {
		return
	}

	n.Force = n.Force.Add(f)

	projected := n.Velocity.Add(n.Force.Mul(dt))
	damping := projected.Mul(-l.config.LinearDamping)
	if l.config.QuadraticDamping != 0 {
		damping = damping.Sub(projected.Mul(l.config.QuadraticDamping * projected.Len()))
	}
	n.Force = n.Force.Add(damping)
}

// Integrate moves every live free node using semi-implicit Euler and resets
// force accumulators. A non positive dt only resets the accumulators.
func (l *Lattice) Integrate(dt float64) {
	maxSpeed := l.config.MaxSpeed

	l.nodes.Each(func(h models.Handle, n *Node) bool {
		if dt > 0 && !n.Pinned && n.Alive {
			n.Velocity = spatial.ClampLength(n.Velocity.Add(n.Force.Mul(dt)), maxSpeed)
			displacement := spatial.ClampLength(n.Velocity.Add(n.Drift), maxSpeed)
			n.Position = n.Position.Add(displacement.Mul(dt))
		}

		n.Force = mgl64.Vec3{}
		return true
	})
}

// MarkDead kills every live node for which kills returns true and returns
// their handles.
func (l *Lattice) MarkDead(kills func(pos mgl64.Vec3) bool) []models.Handle {
	var dead []models.Handle

	l.nodes.Each(func(h models.Handle, n *Node) bool {
		if n.Alive && kills(n.Position) {
			n.Alive = false
			dead = append(dead, h)
		}
		return true
	})
	return dead
}

// UpdateIndex synchronizes the spatial index with the node positions. Dead
// nodes are removed from the index.
func (l *Lattice) UpdateIndex() {
	l.nodes.Each(func(h models.Handle, n *Node) bool {
		switch {
		case !n.Alive:
			l.index.Remove(h)
		case !n.Pinned:
			l.index.Update(h, n.Position)
		}
		return true
	})
}
