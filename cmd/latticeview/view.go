package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aukilabs/gridrider/field"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/sector"
	"github.com/charmbracelet/harmonica"
	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
)

// Terminal cells are about twice as tall as they are wide.
const cellAspect = 2

var (
	edgeStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	nodeStyle   = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	pinnedStyle = tcell.StyleDefault.Foreground(tcell.ColorDarkBlue)
	sourceStyle = tcell.StyleDefault.Foreground(tcell.ColorPurple).Bold(true)
	objectStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	bodyStyle   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	pilotStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	hudStyle    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

// camera follows a point with a critically damped spring.
type camera struct {
	spring harmonica.Spring
	x, vx  float64
	y, vy  float64

	// Cells per world unit, horizontally.
	zoom float64
}

func newCamera(fps int, zoom float64) camera {
	return camera{
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6, 1),
		zoom:   zoom,
	}
}

func (c *camera) follow(target mgl64.Vec3) {
	c.x, c.vx = c.spring.Update(c.x, c.vx, target.X())
	c.y, c.vy = c.spring.Update(c.y, c.vy, target.Y())
}

// project returns the cell where p is drawn on a w*h screen and whether the
// cell is visible.
func (c camera) project(p mgl64.Vec3, w, h int) (int, int, bool) {
	x := w/2 + int(math.Round((p.X()-c.x)*c.zoom))
	y := h/2 - int(math.Round((p.Y()-c.y)*c.zoom/cellAspect))
	return x, y, x >= 0 && x < w && y >= 0 && y < h
}

type action int

const (
	actionNone action = iota
	actionIntent
	actionDropSource
	actionQuit
)

// keyAction maps a key press to what the viewer does with it.
func keyAction(ev *tcell.EventKey) (action, sector.Intent) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return actionQuit, sector.Intent{}
	case tcell.KeyLeft:
		return actionIntent, sector.Intent{Rotate: 1}
	case tcell.KeyRight:
		return actionIntent, sector.Intent{Rotate: -1}
	case tcell.KeyUp:
		return actionIntent, sector.Intent{Thrust: 1}
	case tcell.KeyDown:
		return actionIntent, sector.Intent{Thrust: -1}
	case tcell.KeyRune:
		switch ev.Rune() {
		case ' ':
			return actionIntent, sector.Intent{Impulse: true}
		case 's':
			return actionDropSource, sector.Intent{}
		case 'q':
			return actionQuit, sector.Intent{}
		}
	}
	return actionNone, sector.Intent{}
}

// headingGlyph points in the direction a body with the given heading
// moves forward.
func headingGlyph(heading float64) rune {
	fx, fy := -math.Sin(heading), math.Cos(heading)
	if math.Abs(fx) > math.Abs(fy) {
		if fx > 0 {
			return '>'
		}
		return '<'
	}
	if fy >= 0 {
		return '^'
	}
	return 'v'
}

type viewer struct {
	screen  tcell.Screen
	session *sector.Session
	body    models.Handle
	camera  camera
	fps     int

	// The source dropped by the pilot.
	repellent field.Source
}

func (v *viewer) handleEvents(quit func()) error {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return nil
		}

		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.screen.Sync()

		case *tcell.EventKey:
			switch a, intent := keyAction(ev); a {
			case actionQuit:
				quit()
				return nil

			case actionIntent:
				intent.Body = v.body
				v.session.Queue(intent)

			case actionDropSource:
				v.dropSource()
			}
		}
	}
}

func (v *viewer) dropSource() {
	v.session.Do(func(s *sector.Sector) error {
		state, ok := s.Body(v.body)
		if !ok {
			return nil
		}

		src := v.repellent
		src.Position = state.Position
		s.AddSource(src)
		return nil
	})
}

func (v *viewer) render(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(v.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			v.draw(v.session.Snapshot())
			v.screen.Show()
		}
	}
}

func (v *viewer) draw(snap sector.Snapshot) {
	v.screen.Clear()
	w, h := v.screen.Size()

	var pilot *sector.BodyState
	for i := range snap.Bodies {
		if snap.Bodies[i].Handle == v.body {
			pilot = &snap.Bodies[i]
		}
	}
	if pilot != nil {
		v.camera.follow(pilot.Body.Position)
	}

	positions := make(map[models.Handle]mgl64.Vec3, len(snap.Nodes))
	for _, n := range snap.Nodes {
		positions[n.Handle] = n.Position
	}

	for _, e := range snap.Edges {
		v.drawLine(positions[e.A], positions[e.B], w, h)
	}

	for _, n := range snap.Nodes {
		style := nodeStyle
		if n.Pinned {
			style = pinnedStyle
		}
		v.plot(n.Position, '+', style, w, h)
	}

	for _, o := range snap.Objects {
		v.plot(o.Position, 'O', objectStyle, w, h)
	}

	for _, s := range snap.Sources {
		v.plot(s.Source.Position, '@', sourceStyle, w, h)
	}

	for _, b := range snap.Bodies {
		style := bodyStyle
		if b.Handle == v.body {
			style = pilotStyle
		}
		v.plot(b.Body.Position, headingGlyph(b.Body.Heading), style, w, h)
	}

	hud := fmt.Sprintf(" %s  tick %d  nodes %d  edges %d", snap.Name, snap.Tick, len(snap.Nodes), len(snap.Edges))
	if pilot != nil {
		p := pilot.Body.Position
		hud += fmt.Sprintf("  ship (%.2f, %.2f)", p.X(), p.Y())
		if pilot.Body.Docked {
			hud += "  docked"
		}
	}
	hud += " "
	v.text(0, 0, hud, hudStyle)
	v.text(0, h-1, " arrows: fly  space: impulse  s: drop repellent  q: quit ", hudStyle)
}

func (v *viewer) plot(p mgl64.Vec3, r rune, style tcell.Style, w, h int) {
	if x, y, ok := v.camera.project(p, w, h); ok {
		v.screen.SetContent(x, y, r, nil, style)
	}
}

func (v *viewer) drawLine(a, b mgl64.Vec3, w, h int) {
	ax, ay, _ := v.camera.project(a, w, h)
	bx, by, _ := v.camera.project(b, w, h)

	steps := max(abs(bx-ax), abs(by-ay))
	if steps > 4*(w+h) {
		return
	}
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		x := ax + int(math.Round(t*float64(bx-ax)))
		y := ay + int(math.Round(t*float64(by-ay)))
		if x >= 0 && x < w && y >= 0 && y < h {
			v.screen.SetContent(x, y, '.', nil, edgeStyle)
		}
	}
}

func (v *viewer) text(x, y int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		v.screen.SetContent(x+i, y, r, nil, style)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
