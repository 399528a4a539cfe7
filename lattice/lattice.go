package lattice

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

// Lattice owns the nodes and spring connections of a sector. Free nodes are
// mirrored in the spatial index it was created with.
//
// A Lattice is not safe for concurrent use.
type Lattice struct {
	config Config
	index  spatial.Index[models.Handle]

	nodes     models.Arena[Node]
	edges     []Connection
	edgeSlots map[EdgeKey]int
	adjacency map[models.Handle][]models.Handle

	// credits is the number of pruned nodes not yet regrown by
	// subdivision.
	credits int
}

// New creates an empty lattice.
func New(c Config, index spatial.Index[models.Handle]) (*Lattice, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if index == nil {
		return nil, errors.New("lattice requires a spatial index").
			WithType(models.ErrTypeInvalidConfig)
	}

	return &Lattice{
		config:    c,
		index:     index,
		edgeSlots: make(map[EdgeKey]int),
		adjacency: make(map[models.Handle][]models.Handle),
	}, nil
}

func (l *Lattice) Config() Config {
	return l.config
}

func (l *Lattice) Index() spatial.Index[models.Handle] {
	return l.index
}

// AddNode creates a live node. Free nodes are inserted in the spatial index.
func (l *Lattice) AddNode(pos mgl64.Vec3, pinned bool) models.Handle {
	h := l.nodes.Add(Node{
		Position: pos,
		Pinned:   pinned,
		Alive:    true,
	})

	if !pinned {
		l.index.Insert(h, pos)
	}
	return h
}

func (l *Lattice) Node(h models.Handle) (Node, bool) {
	n, ok := l.nodes.Get(h)
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (l *Lattice) Position(h models.Handle) (mgl64.Vec3, bool) {
	n, ok := l.nodes.Get(h)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return n.Position, true
}

// IsAlive reports whether h references a node that is not dead. Pruned
// nodes are not alive.
func (l *Lattice) IsAlive(h models.Handle) bool {
	n, ok := l.nodes.Get(h)
	return ok && n.Alive
}

// SetVelocity overrides the velocity of a free node.
func (l *Lattice) SetVelocity(h models.Handle, v mgl64.Vec3) bool {
	n, ok := l.nodes.Get(h)
	if !ok || n.Pinned {
		return false
	}
	n.Velocity = v
	return true
}

// Kill marks a node dead. It is unindexed and disconnected by Prune.
func (l *Lattice) Kill(h models.Handle) bool {
	n, ok := l.nodes.Get(h)
	if !ok || !n.Alive {
		return false
	}
	n.Alive = false
	return true
}

// Each calls fn with a copy of every node, alive or dead, until fn returns
// false.
func (l *Lattice) Each(fn func(models.Handle, Node) bool) {
	l.nodes.Each(func(h models.Handle, n *Node) bool {
		return fn(h, *n)
	})
}

func (l *Lattice) NodeCount() int {
	return l.nodes.Len()
}

func (l *Lattice) ConnectionCount() int {
	return len(l.edges)
}

// Connect creates a spring between a and b. Connecting an already connected
// pair is a no-op.
func (l *Lattice) Connect(a, b models.Handle, restLength, stiffness float64) error {
	if a == b {
		return l.invariantViolation(errors.New("node cannot be connected to itself").
			WithType(models.ErrTypeInvariantViolation).
			WithTag("node", a.String()))
	}

	if !l.nodes.Contains(a) || !l.nodes.Contains(b) {
		return errors.New("connecting unknown node").
			WithType(models.ErrTypeStaleReference).
			WithTag("a", a.String()).
			WithTag("b", b.String())
	}

	key := Key(a, b)
	if _, ok := l.edgeSlots[key]; ok {
		return nil
	}

	l.edgeSlots[key] = len(l.edges)
	l.edges = append(l.edges, Connection{
		A:          a,
		B:          b,
		RestLength: restLength,
		Stiffness:  stiffness,
	})
	l.adjacency[a] = append(l.adjacency[a], b)
	l.adjacency[b] = append(l.adjacency[b], a)
	return nil
}

// Disconnect removes the spring between a and b, if any.
func (l *Lattice) Disconnect(a, b models.Handle) bool {
	return l.removeEdge(Key(a, b))
}

func (l *Lattice) Connection(a, b models.Handle) (Connection, bool) {
	i, ok := l.edgeSlots[Key(a, b)]
	if !ok {
		return Connection{}, false
	}
	return l.edges[i], true
}

// Connections returns a copy of every connection.
func (l *Lattice) Connections() []Connection {
	return append([]Connection(nil), l.edges...)
}

// Neighbors returns the nodes connected to h.
func (l *Lattice) Neighbors(h models.Handle) []models.Handle {
	return append([]models.Handle(nil), l.adjacency[h]...)
}

// Length returns the current length of the connection between a and b.
func (l *Lattice) Length(a, b models.Handle) (float64, bool) {
	if _, ok := l.edgeSlots[Key(a, b)]; !ok {
		return 0, false
	}

	pa, _ := l.Position(a)
	pb, _ := l.Position(b)
	return pb.Sub(pa).Len(), true
}

func (l *Lattice) removeEdge(key EdgeKey) bool {
	i, ok := l.edgeSlots[key]
	if !ok {
		return false
	}

	last := len(l.edges) - 1
	if i != last {
		moved := l.edges[last]
		l.edges[i] = moved
		l.edgeSlots[Key(moved.A, moved.B)] = i
	}
	l.edges = l.edges[:last]
	delete(l.edgeSlots, key)

	l.unlink(key.Lo, key.Hi)
	l.unlink(key.Hi, key.Lo)
	return true
}

func (l *Lattice) unlink(from, to models.Handle) {
	neighbors := l.adjacency[from]
	for i, n := range neighbors {
		if n == to {
			neighbors = append(neighbors[:i], neighbors[i+1:]...)
			break
		}
	}

	if len(neighbors) == 0 {
		delete(l.adjacency, from)
		return
	}
	l.adjacency[from] = neighbors
}

func (l *Lattice) invariantViolation(err error) error {
	if l.config.StrictInvariants {
		panic(err)
	}

	logs.Warn(err)
	return err
}
