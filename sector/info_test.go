package sector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/modules"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

const yamlInfo = `
name: nebula
config:
  lattice:
    side_node_count: 8
  disable_collapse: true
sources:
  - position: [1, 2, 0]
    order: 2
    radial: 0.5
    radius: 0.3
objects:
  - name: station
    position: [3, 0, 0]
    size: 0.5
    modules:
      - type: dock
        parameters:
          range: 1
bodies:
  - [0, 0, 0]
`

const jsonInfo = `{
	"name": "nebula",
	"config": {"lattice": {"side_node_count": 8}, "disable_collapse": true},
	"sources": [{"position": [1, 2, 0], "order": 2, "radial": 0.5, "radius": 0.3}],
	"objects": [{
		"name": "station",
		"position": [3, 0, 0],
		"size": 0.5,
		"modules": [{"type": "dock", "parameters": {"range": 1}}]
	}],
	"bodies": [[0, 0, 0]]
}`

func requireNebula(t *testing.T, info Info) {
	require.Equal(t, "nebula", info.Name)
	require.Equal(t, 8, info.Config.Lattice.SideNodeCount)
	require.True(t, info.Config.DisableCollapse)

	defaults := DefaultConfig()
	require.Equal(t, defaults.Lattice.Spacing, info.Config.Lattice.Spacing)
	require.Equal(t, defaults.Body, info.Config.Body)
	require.Equal(t, defaults.IndexScale, info.Config.IndexScale)

	require.Len(t, info.Sources, 1)
	require.Equal(t, mgl64.Vec3{1, 2, 0}, info.Sources[0].Position)
	require.Equal(t, 0.3, info.Sources[0].Radius)

	require.Len(t, info.Objects, 1)
	require.Equal(t, "station", info.Objects[0].Name)
	require.Equal(t, []modules.Info{
		{Type: modules.TypeDock, Parameters: map[string]float64{"range": 1}},
	}, info.Objects[0].Modules)

	require.Equal(t, []mgl64.Vec3{{0, 0, 0}}, info.Bodies)

	s, err := New(info)
	require.NoError(t, err)
	require.Equal(t, 1, s.BodyCount())
}

func TestParseInfo(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		info, err := ParseInfo([]byte(yamlInfo), "yaml")
		require.NoError(t, err)
		requireNebula(t, info)
	})

	t.Run("json", func(t *testing.T) {
		info, err := ParseInfo([]byte(jsonInfo), "json")
		require.NoError(t, err)
		requireNebula(t, info)
	})

	t.Run("empty document keeps defaults", func(t *testing.T) {
		info, err := ParseInfo(nil, "yaml")
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), info.Config)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := ParseInfo([]byte(jsonInfo), "toml")
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseInfo([]byte("{"), "json")
		require.Error(t, err)
	})
}

func TestLoadInfo(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(dir, "nebula.yml")
		require.NoError(t, os.WriteFile(path, []byte(yamlInfo), 0o600))

		info, err := LoadInfo(path)
		require.NoError(t, err)
		requireNebula(t, info)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(dir, "nebula.json")
		require.NoError(t, os.WriteFile(path, []byte(jsonInfo), 0o600))

		info, err := LoadInfo(path)
		require.NoError(t, err)
		requireNebula(t, info)
	})

	t.Run("name defaults to the file name", func(t *testing.T) {
		path := filepath.Join(dir, "void.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sources: []\n"), 0o600))

		info, err := LoadInfo(path)
		require.NoError(t, err)
		require.Equal(t, "void", info.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadInfo(filepath.Join(dir, "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

		_, err := LoadInfo(path)
		require.Error(t, err)
		require.Equal(t, models.ErrTypeInvalidConfig, errors.Type(err))
	})
}

func TestDefaultInfo(t *testing.T) {
	info := DefaultInfo()
	require.NoError(t, info.Config.Validate())

	s, err := New(info)
	require.NoError(t, err)
	require.NoError(t, s.CheckInvariants())

	h, err := s.AddBody(mgl64.Vec3{})
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		s.Advance(1.0 / 60)
		require.NoError(t, s.CheckInvariants())
	}

	_, ok := s.Body(h)
	require.True(t, ok)
}
