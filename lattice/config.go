package lattice

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/models"
)

// Config holds the lattice tunables. Distances are in world units, speeds in
// world units per second.
type Config struct {
	Dimensions    int     `json:"dimensions"      yaml:"dimensions"`
	SideNodeCount int     `json:"side_node_count" yaml:"side_node_count"`
	Spacing       float64 `json:"spacing"         yaml:"spacing"`

	Stiffness       float64 `json:"stiffness"        yaml:"stiffness"`
	PinnedStiffness float64 `json:"pinned_stiffness" yaml:"pinned_stiffness"`

	// MaxDistance is the length above which an edge gets subdivided.
	MaxDistance float64 `json:"max_distance" yaml:"max_distance"`

	// MinDistance is the length under which a free edge gets collapsed when
	// CollapseShortEdges is set.
	MinDistance float64 `json:"min_distance" yaml:"min_distance"`

	MaxSpeed         float64 `json:"max_speed"         yaml:"max_speed"`
	LinearDamping    float64 `json:"linear_damping"    yaml:"linear_damping"`
	QuadraticDamping float64 `json:"quadratic_damping" yaml:"quadratic_damping"`

	MaxSubdivisionsPerTick int `json:"max_subdivisions_per_tick" yaml:"max_subdivisions_per_tick"`

	// ConserveNodes caps subdivisions by the number of nodes pruned so far,
	// so the lattice only regrows what the field consumed.
	ConserveNodes bool `json:"conserve_nodes" yaml:"conserve_nodes"`

	// ReleaseFreeEndpoints only keeps the halves of a subdivided edge that
	// lead to a pinned endpoint.
	ReleaseFreeEndpoints bool `json:"release_free_endpoints" yaml:"release_free_endpoints"`

	CollapseShortEdges bool `json:"collapse_short_edges" yaml:"collapse_short_edges"`

	// Compression scales the rest length of edges created by subdivision.
	Compression float64 `json:"compression" yaml:"compression"`

	// Jitter displaces free nodes of a generated lattice by up to
	// Jitter*Spacing using simplex noise seeded with Seed.
	Jitter float64 `json:"jitter" yaml:"jitter"`
	Seed   int64   `json:"seed"   yaml:"seed"`

	// StrictInvariants panics on invariant violations instead of logging
	// and skipping the offending operation.
	StrictInvariants bool `json:"strict_invariants" yaml:"strict_invariants"`
}

func DefaultConfig() Config {
	return Config{
		Dimensions:             2,
		SideNodeCount:          24,
		Spacing:                0.5,
		Stiffness:              0.1,
		PinnedStiffness:        0.05,
		MaxDistance:            1.8 * 0.5,
		MinDistance:            0.2 * 0.5,
		MaxSpeed:               10,
		LinearDamping:          0.01,
		MaxSubdivisionsPerTick: 16,
		Compression:            1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Dimensions != 2 && c.Dimensions != 3:
		return invalidConfig("dimensions must be 2 or 3", "dimensions", c.Dimensions)

	case c.SideNodeCount < 2:
		return invalidConfig("side node count must be at least 2", "side_node_count", c.SideNodeCount)

	case c.Spacing <= 0:
		return invalidConfig("spacing must be positive", "spacing", c.Spacing)

	case c.MaxDistance <= 0:
		return invalidConfig("max distance must be positive", "max_distance", c.MaxDistance)

	case c.MinDistance < 0 || c.MinDistance >= c.MaxDistance:
		return invalidConfig("min distance must be within [0, max distance)", "min_distance", c.MinDistance)

	case c.MaxSpeed <= 0:
		return invalidConfig("max speed must be positive", "max_speed", c.MaxSpeed)

	case c.LinearDamping < 0 || c.QuadraticDamping < 0:
		return invalidConfig("damping must not be negative", "linear_damping", c.LinearDamping)

	case c.MaxSubdivisionsPerTick < 0:
		return invalidConfig("max subdivisions per tick must not be negative", "max_subdivisions_per_tick", c.MaxSubdivisionsPerTick)

	case c.Compression <= 0:
		return invalidConfig("compression must be positive", "compression", c.Compression)

	case c.Jitter < 0:
		return invalidConfig("jitter must not be negative", "jitter", c.Jitter)
	}

	return nil
}

func invalidConfig(msg, key string, v any) error {
	return errors.New(msg).
		WithType(models.ErrTypeInvalidConfig).
		WithTag(key, v)
}
