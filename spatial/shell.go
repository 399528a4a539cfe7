package spatial

import (
	"math"
	"sort"
)

// A shell groups every cell offset sharing the same squared distance from the
// origin cell. Visiting shells in order yields an isotropic expansion.
type shell struct {
	offsets []Cell

	// lowerBound is the smallest squared distance, in cell units, between
	// a point of the origin cell and a point of any cell of the shell.
	lowerBound float64
}

// generateShells returns the shells covering every offset in
// [-(perAxis-1), perAxis-1] on each hashed axis, sorted by distance, along
// with the suffix minimum of their lower bounds.
func generateShells(l Layout, perAxis int) ([]shell, []float64) {
	r := perAxis - 1
	byKey := make(map[int]*shell)

	var visit func(axis int, c Cell)
	visit = func(axis int, c Cell) {
		if axis == l.Dimensions() {
			key := 0
			lb := 0.0
			for i := 0; i < l.Dimensions(); i++ {
				key += c[i] * c[i]
				if gap := abs(c[i]) - 1; gap > 0 {
					lb += float64(gap * gap)
				}
			}

			s, ok := byKey[key]
			if !ok {
				s = &shell{lowerBound: math.Inf(1)}
				byKey[key] = s
			}
			s.offsets = append(s.offsets, c)
			s.lowerBound = math.Min(s.lowerBound, lb)
			return
		}

		for o := -r; o <= r; o++ {
			c[axis] = o
			visit(axis+1, c)
		}
	}
	visit(0, Cell{})

	keys := make([]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	shells := make([]shell, len(keys))
	for i, k := range keys {
		shells[i] = *byKey[k]
	}

	remaining := make([]float64, len(shells)+1)
	remaining[len(shells)] = math.Inf(1)
	for i := len(shells) - 1; i >= 0; i-- {
		remaining[i] = math.Min(remaining[i+1], shells[i].lowerBound)
	}

	return shells, remaining
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
