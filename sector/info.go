package sector

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/field"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/modules"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"
)

// Info describes a sector: its configuration, the field sources, the static
// objects and the seed positions of the bodies it starts with.
type Info struct {
	Name    string               `json:"name"    yaml:"name"`
	Config  Config               `json:"config"  yaml:"config"`
	Sources []field.Source       `json:"sources" yaml:"sources"`
	Objects []modules.ObjectInfo `json:"objects" yaml:"objects"`
	Bodies  []mgl64.Vec3         `json:"bodies"  yaml:"bodies"`
}

// DefaultInfo returns a planar sector with a spiralling sink and a docking
// station.
func DefaultInfo() Info {
	return Info{
		Name:   "default",
		Config: DefaultConfig(),
		Sources: []field.Source{
			{
				Position: mgl64.Vec3{-3, 2, 0},
				Order:    2,
				Radial:   0.4,
				Spiral:   0.6,
				Radius:   0.4,
			},
		},
		Objects: []modules.ObjectInfo{
			{
				Name:     "station",
				Position: mgl64.Vec3{3, -2, 0},
				Size:     0.5,
				Modules: []modules.Info{
					{
						Type: modules.TypeRepellent,
						Parameters: map[string]float64{
							"strength": 0.2,
						},
					},
					{Type: modules.TypeDock},
				},
			},
		},
	}
}

// LoadInfo reads a sector file. YAML is used for .yaml and .yml files, JSON
// otherwise. Fields missing from the file keep their default value.
func LoadInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, errors.New("reading sector file failed").
			WithTag("path", path).
			Wrap(err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	info, err := ParseInfo(data, format)
	if err != nil {
		return Info{}, errors.New("parsing sector file failed").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("path", path).
			Wrap(err)
	}

	if info.Name == "" {
		info.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return info, nil
}

// ParseInfo decodes a sector definition in the given format, yaml or json.
func ParseInfo(data []byte, format string) (Info, error) {
	info := Info{Config: DefaultConfig()}

	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &info)
	case "json":
		err = json.Unmarshal(data, &info)
	default:
		err = errors.New("unknown sector file format").
			WithTag("format", format)
	}

	if err != nil {
		return Info{}, err
	}
	return info, nil
}
