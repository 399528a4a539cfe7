package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Cell is a bucket coordinate. Planar layouts leave the third axis at 0.
type Cell [3]int

// Layout is the dimensionality strategy of a Grid: it decides which axes of
// a point are hashed and how cell coordinates map to bucket indexes.
type Layout interface {
	Dimensions() int
	BucketCount(perAxis int) int
	Flatten(c Cell, perAxis int) int
	Unflatten(i, perAxis int) Cell
}

var (
	// Planar hashes the x and y axes.
	Planar Layout = planar{}

	// Volumetric hashes the x, y and z axes.
	Volumetric Layout = volumetric{}
)

// LayoutFor returns the layout of the given dimension count.
func LayoutFor(dimensions int) (Layout, bool) {
	switch dimensions {
	case 2:
		return Planar, true
	case 3:
		return Volumetric, true
	default:
		return nil, false
	}
}

type planar struct{}

func (planar) Dimensions() int {
	return 2
}

func (planar) BucketCount(perAxis int) int {
	return perAxis * perAxis
}

func (planar) Flatten(c Cell, perAxis int) int {
	return Index2D(c[0], c[1], perAxis)
}

func (planar) Unflatten(i, perAxis int) Cell {
	x, y := Coord2D(i, perAxis)
	return Cell{x, y, 0}
}

type volumetric struct{}

func (volumetric) Dimensions() int {
	return 3
}

func (volumetric) BucketCount(perAxis int) int {
	return perAxis * perAxis * perAxis
}

func (volumetric) Flatten(c Cell, perAxis int) int {
	return Index3D(c[0], c[1], c[2], perAxis)
}

func (volumetric) Unflatten(i, perAxis int) Cell {
	x, y, z := Coord3D(i, perAxis)
	return Cell{x, y, z}
}

// cellOf returns the clamped cell containing p. Each axis is clamped on its
// own so that points outside the domain land in the closest boundary bucket.
func cellOf(l Layout, p mgl64.Vec3, offset, size float64, perAxis int) Cell {
	var c Cell
	for axis := 0; axis < l.Dimensions(); axis++ {
		v := int(math.Floor((p[axis] + offset) / size))
		switch {
		case v < 0:
			v = 0
		case v >= perAxis:
			v = perAxis - 1
		}
		c[axis] = v
	}
	return c
}
