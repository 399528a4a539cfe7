package lattice

import (
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
)

// Subdivision describes an edge split by Subdivide.
type Subdivision struct {
	Edge Connection
	Node models.Handle
}

// Collapse describes two nodes merged by CollapseShortEdges.
type Collapse struct {
	Kept    models.Handle
	Dropped models.Handle
}

// Subdivide splits edges longer than MaxDistance at their midpoint.
//
// Edges to split are collected first and applied afterwards, up to the
// per-tick budget. Edges touching a dead node are ignored.
func (l *Lattice) Subdivide() []Subdivision {
	budget := l.config.MaxSubdivisionsPerTick
	if l.config.ConserveNodes && l.credits < budget {
		budget = l.credits
	}
	if budget <= 0 {
		return nil
	}

	maxSq := l.config.MaxDistance * l.config.MaxDistance

	var pending []EdgeKey
	for _, c := range l.edges {
		if len(pending) == budget {
			break
		}

		a, _ := l.nodes.Get(c.A)
		b, _ := l.nodes.Get(c.B)
		if !a.Alive || !b.Alive {
			continue
		}

		if b.Position.Sub(a.Position).LenSqr() > maxSq {
			pending = append(pending, Key(c.A, c.B))
		}
	}

	subdivisions := make([]Subdivision, 0, len(pending))
	for _, key := range pending {
		c := l.edges[l.edgeSlots[key]]
		subdivisions = append(subdivisions, Subdivision{
			Edge: c,
			Node: l.split(c),
		})
	}

	instrumentSubdivisions(len(subdivisions))
	return subdivisions
}

func (l *Lattice) split(c Connection) models.Handle {
	a, _ := l.Node(c.A)
	b, _ := l.Node(c.B)

	mid := a.Position.Add(b.Position).Mul(0.5)
	h := l.AddNode(mid, false)
	l.SetVelocity(h, a.Velocity.Add(b.Velocity).Mul(0.5))

	l.removeEdge(Key(c.A, c.B))

	for _, e := range []struct {
		handle models.Handle
		node   Node
	}{{c.A, a}, {c.B, b}} {
		if l.config.ReleaseFreeEndpoints && !e.node.Pinned {
			continue
		}

		rest := e.node.Position.Sub(mid).Len() * l.config.Compression
		l.Connect(h, e.handle, rest, c.Stiffness)
	}

	if l.config.ConserveNodes {
		l.credits--
	}
	return h
}

// CollapseShortEdges merges the endpoints of free edges shorter than
// MinDistance. The dropped node is marked dead and its edges are moved to
// the kept node. A node takes part in at most one collapse per call.
func (l *Lattice) CollapseShortEdges() []Collapse {
	if !l.config.CollapseShortEdges || l.config.MinDistance <= 0 {
		return nil
	}

	minSq := l.config.MinDistance * l.config.MinDistance
	used := make(map[models.Handle]struct{})

	var pending []Collapse
	for _, c := range l.edges {
		a, _ := l.nodes.Get(c.A)
		b, _ := l.nodes.Get(c.B)
		if !a.Alive || !b.Alive || a.Pinned || b.Pinned {
			continue
		}

		_, usedA := used[c.A]
		_, usedB := used[c.B]
		if usedA || usedB {
			continue
		}

		if b.Position.Sub(a.Position).LenSqr() < minSq {
			used[c.A] = struct{}{}
			used[c.B] = struct{}{}
			pending = append(pending, Collapse{Kept: c.A, Dropped: c.B})
		}
	}

	for _, p := range pending {
		l.merge(p.Kept, p.Dropped)
	}

	instrumentCollapses(len(pending))
	return pending
}

func (l *Lattice) merge(keep, drop models.Handle) {
	k, _ := l.nodes.Get(keep)
	d, _ := l.nodes.Get(drop)

	k.Position = k.Position.Add(d.Position).Mul(0.5)
	k.Velocity = k.Velocity.Add(d.Velocity).Mul(0.5)
	d.Alive = false
	kept := k.Position

	for _, nb := range l.Neighbors(drop) {
		c, _ := l.Connection(drop, nb)
		l.removeEdge(Key(drop, nb))

		if nb == keep || !l.IsAlive(nb) {
			continue
		}
		l.Connect(keep, nb, c.RestLength, c.Stiffness)
	}

	l.index.Remove(drop)
	l.index.Update(keep, kept)
}

// Prune removes every dead node: it is taken out of the spatial index, its
// connections are removed and its handle goes stale.
func (l *Lattice) Prune() []models.Handle {
	var dead []models.Handle
	l.nodes.Each(func(h models.Handle, n *Node) bool {
		if !n.Alive {
			dead = append(dead, h)
		}
		return true
	})

	for _, h := range dead {
		l.index.Remove(h)

		for _, nb := range l.Neighbors(h) {
			l.removeEdge(Key(h, nb))
		}

		l.nodes.Remove(h)
		l.credits++
	}

	instrumentPrunes(len(dead))
	return dead
}

// Centroid returns the average position of the given nodes, ignoring the
// ones that no longer exist.
func (l *Lattice) Centroid(handles []models.Handle) (mgl64.Vec3, int) {
	var (
		sum   mgl64.Vec3
		count int
	)

	for _, h := range handles {
		if n, ok := l.nodes.Get(h); ok {
			sum = sum.Add(n.Position)
			count++
		}
	}

	if count == 0 {
		return mgl64.Vec3{}, 0
	}
	return sum.Mul(1 / float64(count)), count
}
