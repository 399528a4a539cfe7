package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aukilabs/gridrider/featureflag"
	"github.com/aukilabs/gridrider/sector"
	"github.com/stretchr/testify/require"
)

func newTestConfig() config {
	return config{
		PublicEndpoint:   "http://localhost:4000",
		FrameDuration:    time.Millisecond * 16,
		SnapshotInterval: 4,
		EventBufferSize:  16,
	}
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validateConfig(newTestConfig()))
	})

	t.Run("invalid public endpoint", func(t *testing.T) {
		conf := newTestConfig()
		conf.PublicEndpoint = "localhost"
		require.Error(t, validateConfig(conf))
	})

	t.Run("invalid frame duration", func(t *testing.T) {
		conf := newTestConfig()
		conf.FrameDuration = 0
		require.Error(t, validateConfig(conf))
	})

	t.Run("invalid snapshot interval", func(t *testing.T) {
		conf := newTestConfig()
		conf.SnapshotInterval = 0
		require.Error(t, validateConfig(conf))
	})
}

func TestLoadSectors(t *testing.T) {
	t.Run("default sector", func(t *testing.T) {
		var store sector.Store
		events := make(chan sector.Event, 16)

		err := loadSectors(&store, newTestConfig(), featureflag.New(nil), events)
		require.NoError(t, err)

		session, ok := store.GetByName("default")
		require.True(t, ok)
		require.True(t, session.Persistent)
		session.Close()
	})

	t.Run("sector files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "belt.yaml")
		require.NoError(t, os.WriteFile(path, []byte("config:\n  lattice:\n    side_node_count: 6\n"), 0o644))

		conf := newTestConfig()
		conf.Sectors = []string{path}

		var store sector.Store
		err := loadSectors(&store, conf, featureflag.New([]string{"disable_node_death"}), make(chan sector.Event, 16))
		require.NoError(t, err)
		require.Equal(t, 1, store.Len())

		session, ok := store.GetByName("belt")
		require.True(t, ok)
		session.Do(func(s *sector.Sector) error {
			require.True(t, s.Config().DisableNodeDeath)
			require.Equal(t, 36, s.Lattice().NodeCount())
			return nil
		})
		session.Close()
	})

	t.Run("missing file", func(t *testing.T) {
		conf := newTestConfig()
		conf.Sectors = []string{filepath.Join(t.TempDir(), "missing.yaml")}

		var store sector.Store
		require.Error(t, loadSectors(&store, conf, featureflag.New(nil), make(chan sector.Event, 16)))
	})
}

func TestSectorTemplate(t *testing.T) {
	t.Run("default info is renamed", func(t *testing.T) {
		newInfo, err := sectorTemplate(newTestConfig())
		require.NoError(t, err)

		info, err := newInfo("kepler")
		require.NoError(t, err)
		require.Equal(t, "kepler", info.Name)
		require.Equal(t, sector.DefaultInfo().Config, info.Config)
	})

	t.Run("template file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "template.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"config":{"lattice":{"side_node_count":5}}}`), 0o644))

		conf := newTestConfig()
		conf.SectorTemplate = path

		newInfo, err := sectorTemplate(conf)
		require.NoError(t, err)

		info, err := newInfo("kepler")
		require.NoError(t, err)
		require.Equal(t, "kepler", info.Name)
		require.Equal(t, 5, info.Config.Lattice.SideNodeCount)
	})
}
