package modules

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/body"
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
)

// ObjectInfo describes a sector object in a sector file.
type ObjectInfo struct {
	Name     string     `json:"name"     yaml:"name"`
	Position mgl64.Vec3 `json:"position" yaml:"position"`
	Size     float64    `json:"size"     yaml:"size"`
	Modules  []Info     `json:"modules"  yaml:"modules"`
}

// Object is a static obstacle of a sector carrying modules.
type Object struct {
	Name     string
	Position mgl64.Vec3
	Size     float64
	Modules  []Module
}

func NewObject(info ObjectInfo) (*Object, error) {
	if info.Size < 0 {
		return nil, errors.New("object size must not be negative").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("object", info.Name).
			WithTag("size", info.Size)
	}

	o := &Object{
		Name:     info.Name,
		Position: info.Position,
		Size:     info.Size,
	}

	for _, mi := range info.Modules {
		m, err := New(mi, o)
		if err != nil {
			return nil, errors.New("creating object module failed").
				WithTag("object", info.Name).
				Wrap(err)
		}
		o.Modules = append(o.Modules, m)
	}

	return o, nil
}

// AffectNode sums the velocity every module imposes on a node at pos.
func (o *Object) AffectNode(pos mgl64.Vec3) mgl64.Vec3 {
	var v mgl64.Vec3
	for _, m := range o.Modules {
		v = v.Add(m.AffectNode(pos))
	}
	return v
}

func (o *Object) AffectBody(b *body.Body, dt float64) {
	for _, m := range o.Modules {
		m.AffectBody(b, dt)
	}
}

func (o *Object) Info() ObjectInfo {
	info := ObjectInfo{
		Name:     o.Name,
		Position: o.Position,
		Size:     o.Size,
	}
	for _, m := range o.Modules {
		info.Modules = append(info.Modules, Info{Type: m.Name()})
	}
	return info
}
