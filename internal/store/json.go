package store

import (
	"errors"
	"os"
	"path/filepath"

	"scriptcatalog/internal/logging"
)

// Option configures a store.
type Option func(*options)

type options struct {
	logger logging.Logger
}

// WithLogger sets the logger used by the store.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// JSONStore keeps the catalog state in a single JSON file.
type JSONStore struct {
	path string
	log  logging.Logger
}

// NewJSONStore creates a file-backed store. The file is not touched until
// Load or Save is called.
func NewJSONStore(path string, opts ...Option) *JSONStore {
	o := buildOptions(opts)
	return &JSONStore{
		path: path,
		log:  o.logger,
	}
}

// Load reads the state file. A missing file is an empty state.
func (s *JSONStore) Load() (CatalogState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug().Str("path", s.path).Msg("No state file yet, starting empty")
			return EmptyState(), nil
		}
		return CatalogState{}, &CorruptStateError{Location: s.path, Err: err}
	}

	state, err := decodeState(data)
	if err != nil {
		return CatalogState{}, &CorruptStateError{Location: s.path, Err: err}
	}

	s.log.Debug().
		Str("path", s.path).
		Int("bookmarks", len(state.Bookmarks)).
		Int("tags", len(state.Tags)).
		Msg("State loaded")
	return state, nil
}

// Save writes the whole state to a temp file next to the target and renames
// it into place, so readers see either the old or the new file.
func (s *JSONStore) Save(state CatalogState) error {
	data, err := encodeState(state)
	if err != nil {
		return &IOWriteError{Location: s.path, Op: "encode", Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &IOWriteError{Location: s.path, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &IOWriteError{Location: s.path, Op: "create temp", Err: err}
	}
	tmpPath := tmp.Name()

	// CreateTemp uses 0600; keep the mode of the file being replaced.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOWriteError{Location: s.path, Op: "chmod", Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOWriteError{Location: s.path, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOWriteError{Location: s.path, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOWriteError{Location: s.path, Op: "close", Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &IOWriteError{Location: s.path, Op: "rename", Err: err}
	}

	s.log.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("State saved")
	return nil
}

// Location returns the file path of the store.
func (s *JSONStore) Location() string {
	return s.path
}

func (s *JSONStore) Close() error { return nil }
