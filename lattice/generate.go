package lattice

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/spatial"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/ojrac/opensimplex-go"
)

// jitterFrequency spreads neighbouring nodes over the noise so that their
// displacements are not all alike.
const jitterFrequency = 0.37

// Generate creates a regular lattice of SideNodeCount nodes per axis,
// centered on the origin. Border nodes are pinned. Neighbours along each
// axis are connected, except when both are pinned, and pinned nodes left
// without a free neighbour are connected to their closest free node.
func Generate(c Config, index spatial.Index[models.Handle]) (*Lattice, error) {
	l, err := New(c, index)
	if err != nil {
		return nil, err
	}

	n := c.SideNodeCount
	count := n * n
	if c.Dimensions == 3 {
		count *= n
	}

	var noise opensimplex.Noise
	if c.Jitter > 0 {
		noise = opensimplex.New(c.Seed)
	}

	handles := make([]models.Handle, count)
	for i := range handles {
		raw := l.coords(i)
		pinned := l.isBorder(raw)

		var pos mgl64.Vec3
		for axis := 0; axis < c.Dimensions; axis++ {
			pos[axis] = float64(raw[axis]-n/2) * c.Spacing
		}

		if noise != nil && !pinned {
			pos = pos.Add(jitter(noise, raw, c.Dimensions).Mul(c.Jitter * c.Spacing))
		}

		handles[i] = l.AddNode(pos, pinned)
	}

	for i, h := range handles {
		raw := l.coords(i)

		for axis := 0; axis < c.Dimensions; axis++ {
			if raw[axis]+1 >= n {
				continue
			}

			next := raw
			next[axis]++
			j := l.flatten(next)

			a, _ := l.Node(h)
			b, _ := l.Node(handles[j])
			if a.Pinned && b.Pinned {
				continue
			}

			stiffness := c.Stiffness
			if a.Pinned || b.Pinned {
				stiffness = c.PinnedStiffness
			}

			if err := l.Connect(h, handles[j], b.Position.Sub(a.Position).Len(), stiffness); err != nil {
				return nil, err
			}
		}
	}

	for _, h := range handles {
		node, _ := l.Node(h)
		if !node.Pinned || l.hasFreeNeighbor(h) {
			continue
		}

		nearest := index.KNearest(node.Position, 1)
		if len(nearest) == 0 {
			continue
		}

		free, _ := l.Node(nearest[0])
		if err := l.Connect(h, nearest[0], free.Position.Sub(node.Position).Len(), c.PinnedStiffness); err != nil {
			return nil, err
		}
	}

	logs.WithTag("nodes", l.NodeCount()).
		WithTag("connections", l.ConnectionCount()).
		WithTag("dimensions", c.Dimensions).
		Debug("lattice generated")

	return l, nil
}

func (l *Lattice) coords(i int) spatial.Cell {
	n := l.config.SideNodeCount
	if l.config.Dimensions == 3 {
		x, y, z := spatial.Coord3D(i, n)
		return spatial.Cell{x, y, z}
	}

	x, y := spatial.Coord2D(i, n)
	return spatial.Cell{x, y, 0}
}

func (l *Lattice) flatten(c spatial.Cell) int {
	n := l.config.SideNodeCount
	if l.config.Dimensions == 3 {
		return spatial.Index3D(c[0], c[1], c[2], n)
	}
	return spatial.Index2D(c[0], c[1], n)
}

func (l *Lattice) isBorder(c spatial.Cell) bool {
	for axis := 0; axis < l.config.Dimensions; axis++ {
		if c[axis] == 0 || c[axis] == l.config.SideNodeCount-1 {
			return true
		}
	}
	return false
}

func (l *Lattice) hasFreeNeighbor(h models.Handle) bool {
	for _, nb := range l.adjacency[h] {
		if n, ok := l.nodes.Get(nb); ok && !n.Pinned {
			return true
		}
	}
	return false
}

func jitter(noise opensimplex.Noise, c spatial.Cell, dimensions int) mgl64.Vec3 {
	x := float64(c[0]) * jitterFrequency
	y := float64(c[1]) * jitterFrequency
	z := float64(c[2]) * jitterFrequency

	var v mgl64.Vec3
	for axis := 0; axis < dimensions; axis++ {
		// each axis samples its own slice of the noise.
		v[axis] = noise.Eval3(x, y, z+float64(axis)*17.3)
	}
	return v
}
