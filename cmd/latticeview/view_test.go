package main

import (
	"math"
	"testing"
	"time"

	"github.com/aukilabs/gridrider/sector"
	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestKeyAction(t *testing.T) {
	tests := []struct {
		name   string
		ev     *tcell.EventKey
		action action
		intent sector.Intent
	}{
		{"left", tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), actionIntent, sector.Intent{Rotate: 1}},
		{"right", tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone), actionIntent, sector.Intent{Rotate: -1}},
		{"up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), actionIntent, sector.Intent{Thrust: 1}},
		{"down", tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), actionIntent, sector.Intent{Thrust: -1}},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), actionIntent, sector.Intent{Impulse: true}},
		{"source", tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone), actionDropSource, sector.Intent{}},
		{"quit", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), actionQuit, sector.Intent{}},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), actionQuit, sector.Intent{}},
		{"other", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), actionNone, sector.Intent{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, intent := keyAction(test.ev)
			require.Equal(t, test.action, a)
			require.Equal(t, test.intent, intent)
		})
	}
}

func TestHeadingGlyph(t *testing.T) {
	require.Equal(t, '^', headingGlyph(0))
	require.Equal(t, '<', headingGlyph(math.Pi/2))
	require.Equal(t, 'v', headingGlyph(math.Pi))
	require.Equal(t, '>', headingGlyph(-math.Pi/2))
}

func TestCamera(t *testing.T) {
	t.Run("project", func(t *testing.T) {
		c := newCamera(30, 4)

		x, y, ok := c.project(mgl64.Vec3{}, 80, 24)
		require.True(t, ok)
		require.Equal(t, 40, x)
		require.Equal(t, 12, y)

		x, y, ok = c.project(mgl64.Vec3{1, 1, 0}, 80, 24)
		require.True(t, ok)
		require.Equal(t, 44, x)
		require.Equal(t, 10, y)

		_, _, ok = c.project(mgl64.Vec3{100, 0, 0}, 80, 24)
		require.False(t, ok)
	})

	t.Run("follow converges", func(t *testing.T) {
		c := newCamera(30, 4)
		target := mgl64.Vec3{3, -2, 0}

		for i := 0; i < 300; i++ {
			c.follow(target)
		}
		require.InDelta(t, 3, c.x, 1e-3)
		require.InDelta(t, -2, c.y, 1e-3)
	})
}

func newTestViewer(t *testing.T) viewer {
	info := sector.DefaultInfo()
	info.Config.Lattice.SideNodeCount = 8

	s, err := sector.New(info)
	require.NoError(t, err)

	ship, err := s.AddBody(mgl64.Vec3{})
	require.NoError(t, err)

	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)

	session := sector.NewSession(s, time.Hour)
	t.Cleanup(session.Close)

	return viewer{
		screen:  screen,
		session: session,
		body:    ship,
		camera:  newCamera(30, 4),
		fps:     30,
	}
}

func TestViewer(t *testing.T) {
	t.Run("draw", func(t *testing.T) {
		v := newTestViewer(t)
		v.draw(v.session.Snapshot())

		r, _, _, _ := v.screen.GetContent(40, 12)
		require.Equal(t, '^', r)

		r, _, _, _ = v.screen.GetContent(1, 0)
		require.Equal(t, 'd', r)
	})

	t.Run("drop source", func(t *testing.T) {
		v := newTestViewer(t)
		before := len(v.session.Snapshot().Sources)

		v.dropSource()
		require.Len(t, v.session.Snapshot().Sources, before+1)
	})
}
