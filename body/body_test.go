package body

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

type testLattice struct {
	positions map[models.Handle]mgl64.Vec3
	dead      map[models.Handle]bool
}

func newTestLattice(positions ...mgl64.Vec3) (*testLattice, []models.Handle) {
	l := &testLattice{
		positions: make(map[models.Handle]mgl64.Vec3),
		dead:      make(map[models.Handle]bool),
	}

	handles := make([]models.Handle, len(positions))
	for i, p := range positions {
		h := models.Handle{Index: uint32(i), Gen: 1}
		l.positions[h] = p
		handles[i] = h
	}
	return l, handles
}

func (l *testLattice) Centroid(handles []models.Handle) (mgl64.Vec3, int) {
	var (
		sum   mgl64.Vec3
		count int
	)
	for _, h := range handles {
		if p, ok := l.positions[h]; ok {
			sum = sum.Add(p)
			count++
		}
	}
	if count == 0 {
		return mgl64.Vec3{}, 0
	}
	return sum.Mul(1 / float64(count)), count
}

func (l *testLattice) IsAlive(h models.Handle) bool {
	_, ok := l.positions[h]
	return ok && !l.dead[h]
}

func (l *testLattice) move(d mgl64.Vec3) {
	for h, p := range l.positions {
		l.positions[h] = p.Add(d)
	}
}

func triangle() (*testLattice, []models.Handle) {
	return newTestLattice(
		mgl64.Vec3{-1, -1, 0},
		mgl64.Vec3{1, -1, 0},
		mgl64.Vec3{0, 2, 0},
	)
}

func TestAnchorCount(t *testing.T) {
	require.Equal(t, 3, AnchorCount(2))
	require.Equal(t, 4, AnchorCount(3))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.Size = 0
	err := c.Validate()
	require.Error(t, err)
	require.Equal(t, models.ErrTypeInvalidConfig, errors.Type(err))
}

func TestRebase(t *testing.T) {
	t.Run("offset from the centroid", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{1, 1, 0})
		require.True(t, b.ShouldRebase(l))

		require.NoError(t, b.Rebase(anchors, l))
		require.Equal(t, anchors, b.Anchors())
		require.True(t, b.Offset().ApproxEqual(mgl64.Vec3{1, 1, 0}))

		grid, ok := b.GridPosition(l)
		require.True(t, ok)
		require.True(t, grid.ApproxEqual(mgl64.Vec3{1, 1, 0}))
	})

	t.Run("extra candidates are ignored", func(t *testing.T) {
		l, anchors := newTestLattice(
			mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{5, 5, 0},
		)
		b := New(DefaultConfig(), 2, mgl64.Vec3{})

		require.NoError(t, b.Rebase(anchors, l))
		require.Equal(t, anchors[:3], b.Anchors())
	})

	t.Run("insufficient candidates keep the old anchors", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})
		require.NoError(t, b.Rebase(anchors, l))

		err := b.Rebase(anchors[:2], l)
		require.Error(t, err)
		require.Equal(t, models.ErrTypeInsufficientCandidates, errors.Type(err))
		require.Equal(t, anchors, b.Anchors())
	})

	t.Run("3D needs four anchors", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 3, mgl64.Vec3{})

		err := b.Rebase(anchors, l)
		require.Error(t, err)
		require.True(t, b.ShouldRebase(l))
	})

	t.Run("pruned anchors are rejected", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})

		delete(l.positions, anchors[0])
		err := b.Rebase(anchors, l)
		require.Error(t, err)
		require.Equal(t, models.ErrTypeStaleReference, errors.Type(err))
	})
}

func TestShouldRebase(t *testing.T) {
	t.Run("resting body on a still lattice", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{0.2, 0.3, 0})
		require.NoError(t, b.Rebase(anchors, l))

		b.Integrate(1.0/60, l)

		require.False(t, b.ShouldRebase(l))
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0.2, 0.3, 0}))
	})

	t.Run("dead anchor", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})
		require.NoError(t, b.Rebase(anchors, l))

		l.dead[anchors[1]] = true
		require.True(t, b.ShouldRebase(l))
	})

	t.Run("moving body", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})
		require.NoError(t, b.Rebase(anchors, l))

		b.Thrust(1)
		b.Integrate(0.1, l)
		require.True(t, b.ShouldRebase(l))
	})

	t.Run("after a collision", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})
		require.NoError(t, b.Rebase(anchors, l))

		b.Collide(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0}, 0.1)
		require.True(t, b.ShouldRebase(l))
	})
}

func TestIntegrate(t *testing.T) {
	t.Run("thrust along the heading", func(t *testing.T) {
		l, _ := newTestLattice()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})

		b.Thrust(1)
		b.Integrate(1, l)

		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, 2, 0}))
		require.True(t, b.Velocity().ApproxEqual(mgl64.Vec3{0, 2, 0}))

		// verlet keeps the momentum.
		b.Integrate(1, l)
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, 4, 0}))
	})

	t.Run("impulse doubles the thrust", func(t *testing.T) {
		l, _ := newTestLattice()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})

		b.Impulse()
		b.Integrate(1, l)
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, 4, 0}))
	})

	t.Run("rotation", func(t *testing.T) {
		l, _ := newTestLattice()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})

		b.Rotate(1)
		b.Rotate(1)
		b.Integrate(0.5, l)
		require.InDelta(t, 1, b.Heading(), 1e-9)

		b.Rotate(-1)
		b.Integrate(0.5, l)
		require.InDelta(t, 0, b.Heading(), 1e-9)
	})

	t.Run("rides the lattice", func(t *testing.T) {
		l, anchors := triangle()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})
		require.NoError(t, b.Rebase(anchors, l))

		l.move(mgl64.Vec3{1, 0, 0})
		b.Integrate(0.5, l)

		// the pull towards the grid carries over into the verlet step.
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{1, 0, 0}))
		require.True(t, b.Velocity().ApproxEqual(mgl64.Vec3{1, 0, 0}))
		require.True(t, b.ShouldRebase(l))
	})

	t.Run("pruned anchor does not pull a resting body", func(t *testing.T) {
		l, anchors := triangle()
		start := mgl64.Vec3{1, 1, 0}
		b := New(DefaultConfig(), 2, start)
		require.NoError(t, b.Rebase(anchors, l))

		delete(l.positions, anchors[2])
		_, ok := b.GridPosition(l)
		require.False(t, ok)

		for i := 0; i < 20; i++ {
			b.Integrate(0.1, l)
		}
		require.True(t, b.Position().ApproxEqual(start))
		require.Equal(t, mgl64.Vec3{}, b.Velocity())
		require.True(t, b.ShouldRebase(l))
	})

	t.Run("dead anchor does not pull a resting body", func(t *testing.T) {
		l, anchors := triangle()
		start := mgl64.Vec3{0.2, 0.3, 0}
		b := New(DefaultConfig(), 2, start)
		require.NoError(t, b.Rebase(anchors, l))

		l.dead[anchors[0]] = true
		l.move(mgl64.Vec3{1, 0, 0})
		_, ok := b.GridPosition(l)
		require.False(t, ok)

		b.Integrate(0.1, l)
		require.True(t, b.Position().ApproxEqual(start))
	})

	t.Run("non positive dt drops inputs", func(t *testing.T) {
		l, _ := newTestLattice()
		b := New(DefaultConfig(), 2, mgl64.Vec3{})

		b.Thrust(1)
		b.Integrate(0, l)
		b.Integrate(1, l)
		require.Equal(t, mgl64.Vec3{}, b.Position())
	})
}

func TestCollide(t *testing.T) {
	t.Run("bounce", func(t *testing.T) {
		l, _ := newTestLattice()
		b := New(DefaultConfig(), 2, mgl64.Vec3{0, -2, 0})
		b.AddForce(mgl64.Vec3{0, 1.5, 0})
		b.Integrate(1, l)

		require.True(t, b.CollideCircle(mgl64.Vec3{0, -2, 0}, mgl64.Vec3{}, 1, 1))
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, -1, 0}))
		require.True(t, b.Velocity().ApproxEqual(mgl64.Vec3{0, -0.75, 0}))

		b.Integrate(1, l)
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, -1.75, 0}))
	})

	t.Run("slow bodies stop", func(t *testing.T) {
		l, _ := newTestLattice()
		b := New(DefaultConfig(), 2, mgl64.Vec3{0, -1.1, 0})
		b.AddForce(mgl64.Vec3{0, 0.2, 0})
		b.Integrate(1, l)

		require.True(t, b.CollideCircle(mgl64.Vec3{0, -1.1, 0}, mgl64.Vec3{}, 1, 1))
		require.Equal(t, mgl64.Vec3{}, b.Velocity())

		b.Integrate(1, l)
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, -1, 0}))
	})

	t.Run("fast body going through the obstacle", func(t *testing.T) {
		l, _ := newTestLattice()
		b := New(DefaultConfig(), 2, mgl64.Vec3{0, -2, 0})
		b.AddForce(mgl64.Vec3{0, 4, 0})
		b.Integrate(1, l)
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, 2, 0}))

		require.True(t, b.CollideCircle(mgl64.Vec3{0, -2, 0}, mgl64.Vec3{}, 1, 1))
		require.True(t, b.Position().ApproxEqual(mgl64.Vec3{0, -1, 0}))
		require.True(t, b.Velocity().ApproxEqual(mgl64.Vec3{0, -2, 0}))
	})

	t.Run("leaving the obstacle surface", func(t *testing.T) {
		b := New(DefaultConfig(), 2, mgl64.Vec3{0, -1.5, 0})
		require.False(t, b.CollideCircle(mgl64.Vec3{0, -1, 0}, mgl64.Vec3{}, 1, 1))
	})

	t.Run("outside the obstacle", func(t *testing.T) {
		b := New(DefaultConfig(), 2, mgl64.Vec3{0, -3, 0})
		require.False(t, b.CollideCircle(mgl64.Vec3{0, -4, 0}, mgl64.Vec3{}, 1, 1))
	})
}

func TestDock(t *testing.T) {
	l, _ := newTestLattice()
	b := New(DefaultConfig(), 2, mgl64.Vec3{})

	b.Dock(mgl64.Vec3{1, 1, 0})
	require.True(t, b.Docked())

	b.Thrust(1)
	b.Rotate(1)
	b.Integrate(1, l)
	require.Equal(t, mgl64.Vec3{1, 1, 0}, b.Position())
	require.Zero(t, b.Heading())

	b.Impulse()
	require.True(t, b.WantsUndock())

	b.Undock(mgl64.Vec3{1, 0, 0}, 2, 1)
	require.False(t, b.Docked())
	require.True(t, b.Undocking())

	b.Integrate(1, l)
	require.True(t, b.Position().ApproxEqual(mgl64.Vec3{2, 1, 0}))
	require.True(t, b.Undocking())

	b.Integrate(1, l)
	require.False(t, b.Undocking())
}
