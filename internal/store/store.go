package store

import (
	"fmt"
	"maps"
)

// CatalogState is everything that survives a restart: bookmarks, tags and the
// folder that was scanned last. It is always written as a whole.
type CatalogState struct {
	Bookmarks       map[string]string `json:"bookmarked_folders"`
	Tags            map[string]string `json:"file_tags"`
	LastScannedPath *string           `json:"last_opened_folder"`
}

// EmptyState returns a state with empty (non-nil) maps and no last path.
func EmptyState() CatalogState {
	return CatalogState{
		Bookmarks: map[string]string{},
		Tags:      map[string]string{},
	}
}

// Clone returns a deep copy of s with nil maps replaced by empty ones.
func (s CatalogState) Clone() CatalogState {
	out := EmptyState()
	maps.Copy(out.Bookmarks, s.Bookmarks)
	maps.Copy(out.Tags, s.Tags)
	if s.LastScannedPath != nil {
		p := *s.LastScannedPath
		out.LastScannedPath = &p
	}
	return out
}

func (s CatalogState) validate() error {
	for name, path := range s.Bookmarks {
		if name == "" {
			return fmt.Errorf("bookmark with empty name")
		}
		if path == "" {
			return fmt.Errorf("bookmark %q has empty path", name)
		}
	}
	for key := range s.Tags {
		if key == "" {
			return fmt.Errorf("tag with empty file key")
		}
	}
	return nil
}

// Store provides persistence for the catalog state.
type Store interface {
	// Load reads the persisted state. A store that has never been saved
	// yields EmptyState and no error.
	Load() (CatalogState, error)

	// Save replaces the persisted state atomically.
	Save(state CatalogState) error

	// Location describes where the state lives, for messages.
	Location() string

	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendBadger = "badger"
)

// Open returns the store for the named backend rooted at path.
func Open(backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(path, opts...), nil
	case BackendBadger:
		return NewBadgerStore(path, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
