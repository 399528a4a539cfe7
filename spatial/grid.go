package spatial

import (
	"math"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
)

// Regular Grid Spatial Index
//
// A uniformly subdivided grid implementing the Index interface.
// The particularities are:
//   - the domain is a square (or a cube) of side length totalSideLength
//     centered at the origin, split in buckets of bucketSize.
//   - membership is kept in a table owned by the grid: tracked objects do
//     not know which bucket they are in.
//   - nearest neighbour queries expand in precomputed shells of cells sorted
//     by distance, and stop as soon as no unvisited shell can hold anything
//     closer than the current k-th candidate.
type Grid[K comparable] struct {
	layout     Layout
	bucketSize float64
	perAxis    int
	offset     float64

	buckets   [][]K
	members   map[K]membership
	shells    []shell
	remaining []float64

	candidates []candidate[K]
}

type membership struct {
	bucket int
	slot   int
	pos    mgl64.Vec3
}

type candidate[K comparable] struct {
	key    K
	distSq float64
}

// NewGrid creates a grid index. It fails when the bucket size or the side
// length is not strictly positive.
func NewGrid[K comparable](l Layout, totalSideLength, bucketSize float64) (*Grid[K], error) {
	if l == nil {
		return nil, errors.New("grid layout is missing").
			WithType(models.ErrTypeInvalidConfig)
	}

	if !(bucketSize > 0) || math.IsInf(bucketSize, 0) {
		return nil, errors.New("grid bucket size must be positive").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("bucket_size", bucketSize)
	}

	if !(totalSideLength > 0) || math.IsInf(totalSideLength, 0) {
		return nil, errors.New("grid side length must be positive").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("total_side_length", totalSideLength)
	}

	perAxis := int(math.Ceil(totalSideLength / bucketSize))
	if perAxis < 1 {
		perAxis = 1
	}

	shells, remaining := generateShells(l, perAxis)

	return &Grid[K]{
		layout:     l,
		bucketSize: bucketSize,
		perAxis:    perAxis,
		offset:     totalSideLength / 2,
		buckets:    make([][]K, l.BucketCount(perAxis)),
		members:    make(map[K]membership),
		shells:     shells,
		remaining:  remaining,
	}, nil
}

func (g *Grid[K]) Layout() Layout {
	return g.layout
}

func (g *Grid[K]) BucketOf(p mgl64.Vec3) int {
	return g.layout.Flatten(g.cellOf(p), g.perAxis)
}

func (g *Grid[K]) Insert(k K, p mgl64.Vec3) {
	if _, ok := g.members[k]; ok {
		g.Update(k, p)
		return
	}

	g.append(k, g.BucketOf(p), p)
}

func (g *Grid[K]) Update(k K, p mgl64.Vec3) {
	m, ok := g.members[k]
	if !ok {
		return
	}

	bucket := g.BucketOf(p)
	if bucket == m.bucket {
		m.pos = p
		g.members[k] = m
		return
	}

	g.detach(m)
	g.append(k, bucket, p)
}

func (g *Grid[K]) Remove(k K) {
	m, ok := g.members[k]
	if !ok {
		return
	}

	g.detach(m)
	delete(g.members, k)
}

// Position returns the position k was last inserted or updated at.
func (g *Grid[K]) Position(k K) (mgl64.Vec3, bool) {
	m, ok := g.members[k]
	return m.pos, ok
}

func (g *Grid[K]) Contains(k K) bool {
	_, ok := g.members[k]
	return ok
}

func (g *Grid[K]) Len() int {
	return len(g.members)
}

func (g *Grid[K]) KNearest(p mgl64.Vec3, n int) []K {
	if n <= 0 || len(g.members) == 0 {
		return nil
	}

	origin := g.cellOf(p)
	sizeSq := g.bucketSize * g.bucketSize
	candidates := g.candidates[:0]

	for i, s := range g.shells {
		if len(candidates) >= n && g.remaining[i]*sizeSq >= candidates[n-1].distSq {
			break
		}

		added := false
		for _, o := range s.offsets {
			c, ok := g.offsetCell(origin, o)
			if !ok {
				continue
			}

			for _, k := range g.buckets[g.layout.Flatten(c, g.perAxis)] {
				candidates = append(candidates, candidate[K]{
					key:    k,
					distSq: g.members[k].pos.Sub(p).LenSqr(),
				})
				added = true
			}
		}

		if added {
			sort.SliceStable(candidates, func(a, b int) bool {
				return candidates[a].distSq < candidates[b].distSq
			})
		}
	}

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	res := make([]K, len(candidates))
	for i, c := range candidates {
		res[i] = c.key
	}

	g.candidates = candidates[:0]
	return res
}

func (g *Grid[K]) GetDebugInfo() DebugInfo {
	info := DebugInfo{
		Dimensions:     g.layout.Dimensions(),
		BucketSize:     g.bucketSize,
		BucketsPerAxis: g.perAxis,
		ShellCount:     len(g.shells),
		Tracked:        len(g.members),
		Occupancy:      make([]uint32, len(g.buckets)),
	}

	for i, b := range g.buckets {
		info.Occupancy[i] = uint32(len(b))
		if len(b) > info.LargestBucket {
			info.LargestBucket = len(b)
		}
	}
	return info
}

func (g *Grid[K]) cellOf(p mgl64.Vec3) Cell {
	return cellOf(g.layout, p, g.offset, g.bucketSize, g.perAxis)
}

func (g *Grid[K]) offsetCell(origin, o Cell) (Cell, bool) {
	var c Cell
	for axis := 0; axis < g.layout.Dimensions(); axis++ {
		v := origin[axis] + o[axis]
		if v < 0 || v >= g.perAxis {
			return Cell{}, false
		}
		c[axis] = v
	}
	return c, true
}

func (g *Grid[K]) append(k K, bucket int, p mgl64.Vec3) {
	g.members[k] = membership{
		bucket: bucket,
		slot:   len(g.buckets[bucket]),
		pos:    p,
	}
	g.buckets[bucket] = append(g.buckets[bucket], k)
}

// detach swap-removes the slot of m from its bucket and fixes the slot of
// the key that took its place.
func (g *Grid[K]) detach(m membership) {
	b := g.buckets[m.bucket]
	last := len(b) - 1

	if m.slot != last {
		moved := b[last]
		b[m.slot] = moved

		mm := g.members[moved]
		mm.slot = m.slot
		g.members[moved] = mm
	}

	var zero K
	b[last] = zero
	g.buckets[m.bucket] = b[:last]
}
