package modules

import (
	"github.com/aukilabs/gridrider/body"
	"github.com/aukilabs/gridrider/field"
	"github.com/go-gl/mathgl/mgl64"
)

// puller drags nodes and bodies towards its object. A negative sign makes it
// a repellent.
type puller struct {
	name      string
	parent    *Object
	source    field.Source
	bodyScale float64
}

func newPuller(info Info, parent *Object, sign float64) *puller {
	return &puller{
		name:   info.Type,
		parent: parent,
		source: field.Source{
			Order:  info.param("order", 2),
			Radial: sign * info.param("strength", 1),
			Spiral: info.param("spiral", 0),
		},
		bodyScale: info.param("body_scale", 1),
	}
}

func (m *puller) Name() string {
	return m.name
}

func (m *puller) AffectNode(pos mgl64.Vec3) mgl64.Vec3 {
	s := m.source
	s.Position = m.parent.Position
	return s.Contribution(pos)
}

func (m *puller) AffectBody(b *body.Body, dt float64) {
	if b.Docked() {
		return
	}
	b.AddForce(m.AffectNode(b.Position()).Mul(m.bodyScale))
}
