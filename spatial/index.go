package spatial

import "github.com/go-gl/mathgl/mgl64"

type DebugInfo struct {
	Dimensions     int      `json:"dimensions"`
	BucketSize     float64  `json:"bucket_size"`
	BucketsPerAxis int      `json:"buckets_per_axis"`
	ShellCount     int      `json:"shell_count"`
	Tracked        int      `json:"tracked"`
	LargestBucket  int      `json:"largest_bucket"`
	Occupancy      []uint32 `json:"occupancy"`
}

// Index is a proximity structure over a bounded domain centered at the
// origin.
type Index[K comparable] interface {
	// Insert starts tracking k at p. Inserting an already tracked key
	// behaves like Update.
	Insert(k K, p mgl64.Vec3)

	// Update moves k to p. Updating an untracked key is a no-op.
	Update(k K, p mgl64.Vec3)

	// Remove stops tracking k. Removing an untracked key is a no-op.
	Remove(k K)

	// KNearest returns up to n tracked keys sorted by ascending distance
	// to p.
	KNearest(p mgl64.Vec3, n int) []K

	Contains(k K) bool
	Len() int

	// debug stuff:
	GetDebugInfo() DebugInfo
}
