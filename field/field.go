package field

import (
	"math"

	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

// Source is a point that pulls (positive Radial) or pushes (negative Radial)
// everything around it and makes it spin around the up axis.
type Source struct {
	Position mgl64.Vec3 `json:"position" yaml:"position" msgpack:"position"`

	// Order is the falloff exponent: contributions decrease with
	// distance^(Order-1).
	Order float64 `json:"order" yaml:"order" msgpack:"order"`

	Radial float64 `json:"radial" yaml:"radial" msgpack:"radial"`
	Spiral float64 `json:"spiral" yaml:"spiral" msgpack:"spiral"`

	// Radius is the kill radius of the source. It does not limit the range
	// of the field.
	Radius float64 `json:"radius" yaml:"radius" msgpack:"radius"`
}

// Contribution returns the velocity the source induces at p.
func (s Source) Contribution(p mgl64.Vec3) mgl64.Vec3 {
	d := s.Position.Sub(p)
	dist := d.Len()
	if dist == 0 {
		return mgl64.Vec3{}
	}

	dir := d.Mul(1 / dist)
	falloff := math.Pow(dist, s.Order-1)

	v := dir.Mul(s.Radial / falloff)
	if s.Spiral != 0 {
		v = v.Add(dir.Cross(spatial.Up).Mul(s.Spiral / falloff))
	}
	return v
}

// Contains reports whether p lies strictly inside the kill radius.
func (s Source) Contains(p mgl64.Vec3) bool {
	return s.Position.Sub(p).LenSqr() < s.Radius*s.Radius
}

// Field is an ordered collection of sources. It has no internal state beyond
// its sources and is not safe for concurrent use.
type Field struct {
	sources models.Arena[Source]
	order   []models.Handle
}

func New(sources ...Source) *Field {
	f := &Field{}
	for _, s := range sources {
		f.Add(s)
	}
	return f
}

func (f *Field) Add(s Source) models.Handle {
	h := f.sources.Add(s)
	f.order = append(f.order, h)
	return h
}

// Remove deletes a source. Unknown handles are ignored.
func (f *Field) Remove(h models.Handle) bool {
	if !f.sources.Remove(h) {
		return false
	}

	for i, o := range f.order {
		if o == h {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

func (f *Field) Get(h models.Handle) (Source, bool) {
	s, ok := f.sources.Get(h)
	if !ok {
		return Source{}, false
	}
	return *s, true
}

func (f *Field) Len() int {
	return len(f.order)
}

// Handles returns the source handles in insertion order.
func (f *Field) Handles() []models.Handle {
	return append([]models.Handle(nil), f.order...)
}

// Sources returns the sources in insertion order.
func (f *Field) Sources() []Source {
	sources := make([]Source, 0, len(f.order))
	for _, h := range f.order {
		s, _ := f.sources.Get(h)
		sources = append(sources, *s)
	}
	return sources
}

// VelocityAt sums the contribution of every source at p.
func (f *Field) VelocityAt(p mgl64.Vec3) mgl64.Vec3 {
	var v mgl64.Vec3
	for _, h := range f.order {
		s, _ := f.sources.Get(h)
		v = v.Add(s.Contribution(p))
	}
	return v
}

// NearestSource returns the source closest to p. Ties are won by the source
// added first.
func (f *Field) NearestSource(p mgl64.Vec3) (models.Handle, Source, bool) {
	var (
		nearest models.Handle
		source  Source
		found   bool
		best    = math.Inf(1)
	)

	for _, h := range f.order {
		s, _ := f.sources.Get(h)
		if d := s.Position.Sub(p).LenSqr(); d < best {
			best = d
			nearest = h
			source = *s
			found = true
		}
	}
	return nearest, source, found
}

// Kills reports whether a node at p dies: it lies strictly inside the radius
// of its nearest source.
func (f *Field) Kills(p mgl64.Vec3) bool {
	_, s, ok := f.NearestSource(p)
	return ok && s.Contains(p)
}
