package sector

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/body"
	"github.com/aukilabs/gridrider/lattice"
	"github.com/aukilabs/gridrider/models"
)

// Config is the configuration record of a sector.
type Config struct {
	Lattice lattice.Config `json:"lattice" yaml:"lattice"`
	Body    body.Config    `json:"body"    yaml:"body"`

	// IndexScale scales the lattice extent and spacing into the spatial
	// index domain and bucket size, leaving room for nodes drifting out of
	// the initial grid.
	IndexScale float64 `json:"index_scale" yaml:"index_scale"`

	DisableSubdivision    bool `json:"disable_subdivision"     yaml:"disable_subdivision"`
	DisableNodeDeath      bool `json:"disable_node_death"      yaml:"disable_node_death"`
	DisableCollapse       bool `json:"disable_collapse"        yaml:"disable_collapse"`
	DisableBodyCollisions bool `json:"disable_body_collisions" yaml:"disable_body_collisions"`
}

func DefaultConfig() Config {
	return Config{
		Lattice:    lattice.DefaultConfig(),
		Body:       body.DefaultConfig(),
		IndexScale: 1.25,
	}
}

func (c Config) Validate() error {
	if err := c.Lattice.Validate(); err != nil {
		return err
	}

	if err := c.Body.Validate(); err != nil {
		return err
	}

	if c.IndexScale < 1 {
		return errors.New("index scale must be at least 1").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("index_scale", c.IndexScale)
	}
	return nil
}

// TotalSideLength returns the side of the domain covered by the spatial
// index.
func (c Config) TotalSideLength() float64 {
	return float64(c.Lattice.SideNodeCount) * c.Lattice.Spacing * c.IndexScale
}

func (c Config) BucketSize() float64 {
	return c.Lattice.Spacing * c.IndexScale
}

func (c Config) strict() bool {
	return c.Lattice.StrictInvariants
}
