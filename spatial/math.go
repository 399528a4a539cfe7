package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// intersectionTolerance widens the [0, 1] root window of the segment/circle
// solver so that segments ending exactly on the circle still register.
const intersectionTolerance = 1e-4

// Up is the axis tangential field contributions spin around and the fallback
// normal for degenerate collisions.
var Up = mgl64.Vec3{0, 0, 1}

func EqualWithEpsilon(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func InRangeWithEpsilon(value, min, max, epsilon float64) bool {
	return value+epsilon >= min && value-epsilon <= max
}

// Index2D flattens (x, y) coordinates of a square grid with n cells per side.
func Index2D(x, y, n int) int {
	return y*n + x
}

// Coord2D is the inverse of Index2D.
func Coord2D(i, n int) (x, y int) {
	return i % n, i / n
}

// Index3D flattens (x, y, z) coordinates of a cubic grid with n cells per
// side.
func Index3D(x, y, z, n int) int {
	return (z*n+y)*n + x
}

// Coord3D is the inverse of Index3D.
func Coord3D(i, n int) (x, y, z int) {
	return i % n, (i / n) % n, i / (n * n)
}

// Normalize returns the unit vector of v. Zero (or non finite) vectors
// report false instead of producing NaNs.
func Normalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	l := v.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

// ClampLength scales v down so that its length does not exceed max.
func ClampLength(v mgl64.Vec3, max float64) mgl64.Vec3 {
	if max <= 0 {
		return v
	}

	lsq := v.LenSqr()
	if lsq <= max*max {
		return v
	}
	return v.Mul(max / math.Sqrt(lsq))
}

// Reflect mirrors v about the plane of normal n and scales the result by
// bounciness. n is expected to be a unit vector.
func Reflect(v, n mgl64.Vec3, bounciness float64) mgl64.Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n))).Mul(bounciness)
}

// SegmentCircleIntersection returns the point where the segment going from
// start to end first enters the circle (sphere in 3D) of the given center and
// radius.
//
// When the segment starts inside the circle, or crosses it in a way that puts
// the entering root outside [0, 1], the point is projected onto the circle
// along the radius going through start.
func SegmentCircleIntersection(start, end, center mgl64.Vec3, radius float64) (mgl64.Vec3, bool) {
	d := end.Sub(start)
	f := start.Sub(center)

	a := d.Dot(d)
	b := 2 * f.Dot(d)
	c := f.Dot(f) - radius*radius

	if a == 0 {
		if c < 0 {
			return projectOnCircle(start, center, radius), true
		}
		return mgl64.Vec3{}, false
	}

	discriminant := b*b - 4*a*c
	if discriminant < 0 {
		return mgl64.Vec3{}, false
	}

	discriminant = math.Sqrt(discriminant)
	t1 := (-b - discriminant) / (2 * a)
	if InRangeWithEpsilon(t1, 0, 1, intersectionTolerance) {
		return start.Add(d.Mul(t1)), true
	}

	t2 := (-b + discriminant) / (2 * a)
	if t1 < 0 && t2 >= -intersectionTolerance {
		// start is inside the circle.
		return projectOnCircle(start, center, radius), true
	}
	return mgl64.Vec3{}, false
}

// ClosestPointOnSegment returns the point of the segment from start to end
// closest to p.
func ClosestPointOnSegment(start, end, p mgl64.Vec3) mgl64.Vec3 {
	d := end.Sub(start)
	lenSq := d.LenSqr()
	if lenSq == 0 {
		return start
	}

	t := mgl64.Clamp(p.Sub(start).Dot(d)/lenSq, 0, 1)
	return start.Add(d.Mul(t))
}

func projectOnCircle(p, center mgl64.Vec3, radius float64) mgl64.Vec3 {
	n, ok := Normalize(p.Sub(center))
	if !ok {
		n = mgl64.Vec3{0, 1, 0}
	}
	return center.Add(n.Mul(radius))
}
