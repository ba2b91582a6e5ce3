package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func ptr[T any](v T) *T { return &v }

func TestNewDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, DefaultStateFile, cfg.StateFile)
	assert.Equal(t, "json", cfg.StoreBackend)
	assert.Equal(t, []string{".py"}, cfg.Extensions)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.False(t, cfg.FollowSymlinks)
	assert.Empty(t, cfg.IndexPath, "index is opt-in")
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Merge(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	cfg.Merge(&Override{
		StateFile:      ptr("/tmp/state.json"),
		StoreBackend:   ptr("badger"),
		Extensions:     ptr([]string{".py", ".pyw"}),
		Exclude:        ptr([]string{"__pycache__", ".venv"}),
		FollowSymlinks: ptr(true),
		MaxDepth:       ptr(8),
		IndexPath:      ptr("/tmp/catalog.db"),
		LogLevel:       ptr("debug"),
		LogFile:        ptr("/tmp/sc.log"),
	})

	expected := &Config{
		StateFile:      "/tmp/state.json",
		StoreBackend:   "badger",
		Extensions:     []string{".py", ".pyw"},
		Exclude:        []string{"__pycache__", ".venv"},
		FollowSymlinks: true,
		MaxDepth:       8,
		IndexPath:      "/tmp/catalog.db",
		LogLevel:       "debug",
		LogFile:        "/tmp/sc.log",
	}
	assert.Equal(t, expected, cfg, "must override all provided fields")
}

func TestConfig_MergePartialKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	cfg.Merge(&Override{MaxDepth: ptr(3)})
	cfg.Merge(nil)

	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, DefaultStateFile, cfg.StateFile)
	assert.Equal(t, []string{".py"}, cfg.Extensions)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty state file", func(c *Config) { c.StateFile = " " }},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }},
		{"no extensions", func(c *Config) { c.Extensions = nil }},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadOverrideFile(t *testing.T) {
	t.Parallel()

	override := &Override{
		StateFile:  ptr("state.json"),
		Extensions: ptr([]string{".sh"}),
		MaxDepth:   ptr(10),
	}

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data, err := yaml.Marshal(override)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		got, err := LoadOverrideFile(path)
		require.NoError(t, err)
		assert.Equal(t, override, got)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		data, err := json.Marshal(override)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		got, err := LoadOverrideFile(path)
		require.NoError(t, err)
		assert.Equal(t, override, got)
	})

	t.Run("unknown extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

		_, err := LoadOverrideFile(path)
		assert.ErrorContains(t, err, "unknown config file extension")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("max_depth: [oops"), 0o644))

		_, err := LoadOverrideFile(path)
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("explicit file is merged", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "store_backend: badger\nexclude:\n  - __pycache__\nindex_path: catalog.db\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "badger", cfg.StoreBackend)
		assert.Equal(t, []string{"__pycache__"}, cfg.Exclude)
		assert.Equal(t, "catalog.db", cfg.IndexPath)
		assert.Equal(t, DefaultStateFile, cfg.StateFile)
	})

	t.Run("explicit missing file fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid merged config fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_depth: -1\n"), 0o644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "max_depth")
	})
}
