package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultStateFile is the state file name, relative to the working directory.
	DefaultStateFile = "file_data.json"

	DefaultStoreBackend = "json"

	// DefaultMaxDepth bounds directory recursion so symlink loops cannot run away.
	DefaultMaxDepth = 64

	DefaultLogLevel = "info"

	// DefaultLogFile is used by the TUI only; the CLI logs to stderr.
	DefaultLogFile = "scriptcatalog.log"
)

// DefaultExtensions is the script extension filter.
var DefaultExtensions = []string{".py"}

// Config contains runtime configuration for the catalog.
type Config struct {
	StateFile      string   // Path of the persisted catalog state (Default file_data.json)
	StoreBackend   string   // "json" or "badger" (Default json)
	Extensions     []string // File name suffixes to catalog (Default .py)
	Exclude        []string // Glob patterns on entry names that are skipped during scans
	FollowSymlinks bool     // Descend into symlinked directories (Default false)
	MaxDepth       int      // Depth cap when following symlinks (Default 64)
	IndexPath      string   // sqlite catalog index; empty disables it
	LogLevel       string   // trace, debug, info, warn, error, off (Default info)
	LogFile        string   // Log destination for the TUI (Default scriptcatalog.log)
}

// Override uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type Override struct {
	StateFile      *string   `yaml:"state_file,omitempty" json:"state_file,omitempty"`
	StoreBackend   *string   `yaml:"store_backend,omitempty" json:"store_backend,omitempty"`
	Extensions     *[]string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Exclude        *[]string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	FollowSymlinks *bool     `yaml:"follow_symlinks,omitempty" json:"follow_symlinks,omitempty"`
	MaxDepth       *int      `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`
	IndexPath      *string   `yaml:"index_path,omitempty" json:"index_path,omitempty"`
	LogLevel       *string   `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFile        *string   `yaml:"log_file,omitempty" json:"log_file,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		StateFile:    DefaultStateFile,
		StoreBackend: DefaultStoreBackend,
		Extensions:   append([]string(nil), DefaultExtensions...),
		Exclude:      []string{},
		MaxDepth:     DefaultMaxDepth,
		LogLevel:     DefaultLogLevel,
		LogFile:      DefaultLogFile,
	}
}

// Merge applies non-nil values from override onto this Config.
func (c *Config) Merge(override *Override) {
	if override == nil {
		return
	}
	if override.StateFile != nil {
		c.StateFile = *override.StateFile
	}
	if override.StoreBackend != nil {
		c.StoreBackend = *override.StoreBackend
	}
	if override.Extensions != nil {
		c.Extensions = append([]string(nil), (*override.Extensions)...)
	}
	if override.Exclude != nil {
		c.Exclude = append([]string(nil), (*override.Exclude)...)
	}
	if override.FollowSymlinks != nil {
		c.FollowSymlinks = *override.FollowSymlinks
	}
	if override.MaxDepth != nil {
		c.MaxDepth = *override.MaxDepth
	}
	if override.IndexPath != nil {
		c.IndexPath = *override.IndexPath
	}
	if override.LogLevel != nil {
		c.LogLevel = *override.LogLevel
	}
	if override.LogFile != nil {
		c.LogFile = *override.LogFile
	}
}

// Validate reports settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StateFile) == "" {
		return errors.New("state_file must not be empty")
	}
	switch c.StoreBackend {
	case "json", "badger":
	default:
		return fmt.Errorf("unknown store_backend %q (want json or badger)", c.StoreBackend)
	}
	if len(c.Extensions) == 0 {
		return errors.New("extensions must list at least one suffix")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	return nil
}

// LoadOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadOverrideFile(path string) (*Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override Override

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// DefaultPath returns ~/.scriptcatalog/config.yaml, or "" when the home
// directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".scriptcatalog", "config.yaml")
}

// Load builds a Config from defaults plus the file at path. An explicit path
// must exist; when path is empty the default location is tried and a missing
// file there is not an error.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
	}

	override, err := LoadOverrideFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
