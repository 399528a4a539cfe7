package modules

import (
	"github.com/aukilabs/gridrider/body"
	"github.com/aukilabs/gridrider/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

// dockMargin keeps docked bodies slightly out of their object's collision
// circle.
const dockMargin = 1.01

// dock captures slow bodies passing close to its object and holds them until
// they request to leave with an impulse.
type dock struct {
	parent       *Object
	reach        float64
	captureSpeed float64
	undockForce  float64
	undockTime   float64
}

func newDock(info Info, parent *Object) *dock {
	return &dock{
		parent:       parent,
		reach:        info.param("range", 0.5),
		captureSpeed: info.param("capture_speed", 0.5),
		undockForce:  info.param("undock_force", 1),
		undockTime:   info.param("undock_time", 1),
	}
}

func (m *dock) Name() string {
	return TypeDock
}

func (m *dock) AffectNode(pos mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (m *dock) AffectBody(b *body.Body, dt float64) {
	if b.Docked() {
		if b.WantsUndock() {
			b.Undock(m.outward(b).Mul(m.undockForce), m.undockTime, dt)
		}
		return
	}

	if b.Undocking() {
		return
	}

	// the distance is measured from the object surface.
	gap := b.Position().Sub(m.parent.Position).Len() - m.parent.Size - b.Config().Size
	if gap > m.reach {
		return
	}

	if b.Velocity().LenSqr() > m.captureSpeed*m.captureSpeed {
		return
	}

	radius := (m.parent.Size + b.Config().Size) * dockMargin
	b.Dock(m.parent.Position.Add(m.outward(b).Mul(radius)))
}

func (m *dock) outward(b *body.Body) mgl64.Vec3 {
	dir, ok := spatial.Normalize(b.Position().Sub(m.parent.Position))
	if !ok {
		return b.Forward()
	}
	return dir
}
