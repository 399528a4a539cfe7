package modules

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/body"
	"github.com/aukilabs/gridrider/models"
	"github.com/go-gl/mathgl/mgl64"
)

// Module is the interface that describes a behavior carried by a sector
// object. The set of modules is closed: they are only built by New.
type Module interface {
	// Returns the module name.
	Name() string

	// Returns the velocity the module imposes on a free lattice node at
	// the given position.
	AffectNode(pos mgl64.Vec3) mgl64.Vec3

	// Applies the module to a body, before the body integrates its motion.
	AffectBody(b *body.Body, dt float64)
}

const (
	TypePuller    = "puller"
	TypeRepellent = "repellent"
	TypeDock      = "dock"
)

// Info describes a module in a sector file.
type Info struct {
	Type       string             `json:"type"       yaml:"type"`
	Parameters map[string]float64 `json:"parameters" yaml:"parameters"`
}

func (i Info) param(name string, defaultValue float64) float64 {
	if v, ok := i.Parameters[name]; ok {
		return v
	}
	return defaultValue
}

// New creates the module described by info, attached to the given object.
func New(info Info, parent *Object) (Module, error) {
	switch info.Type {
	case TypePuller:
		return newPuller(info, parent, 1), nil

	case TypeRepellent:
		return newPuller(info, parent, -1), nil

	case TypeDock:
		return newDock(info, parent), nil

	default:
		return nil, errors.New("unknown module type").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("type", info.Type)
	}
}
