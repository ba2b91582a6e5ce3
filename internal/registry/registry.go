// Package registry holds the in-memory tag and bookmark maps. Every mutation
// is written through to the store before the call returns; a failed write
// rolls the mutation back so memory never runs ahead of disk.
package registry

import (
	"errors"
	"maps"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"scriptcatalog/internal/logging"
	"scriptcatalog/internal/store"
)

var (
	// ErrEmptyKey is returned when a tag key or bookmark name is empty.
	ErrEmptyKey = errors.New("registry key must not be empty")

	ErrEmptyPath = errors.New("bookmark path must not be empty")
)

// State owns the catalog state shared by the tag and bookmark registries.
type State struct {
	mu       sync.Mutex
	store    store.Store
	tags     map[string]string
	marks    map[string]string
	lastPath *string
	log      logging.Logger

	tagReg  *Tags
	markReg *Bookmarks
}

// Open loads the persisted state from st. A CorruptStateError from the store
// is returned unchanged.
func Open(st store.Store, logger logging.Logger) (*State, error) {
	initial, err := st.Load()
	if err != nil {
		return nil, err
	}
	return New(st, initial, logger), nil
}

// New wraps an already loaded state.
func New(st store.Store, initial store.CatalogState, logger logging.Logger) *State {
	initial = initial.Clone()
	s := &State{
		store:    st,
		tags:     initial.Tags,
		marks:    initial.Bookmarks,
		lastPath: initial.LastScannedPath,
		log:      logger,
	}
	s.tagReg = &Tags{registry{state: s, m: &s.tags, kind: "tag"}}
	s.markReg = &Bookmarks{registry{state: s, m: &s.marks, kind: "bookmark"}}
	return s
}

func (s *State) Tags() *Tags { return s.tagReg }

func (s *State) Bookmarks() *Bookmarks { return s.markReg }

// Snapshot returns a copy of the full state.
func (s *State) Snapshot() store.CatalogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() store.CatalogState {
	return store.CatalogState{
		Bookmarks:       s.marks,
		Tags:            s.tags,
		LastScannedPath: s.lastPath,
	}.Clone()
}

// LastScannedPath returns the folder scanned most recently, if any.
func (s *State) LastScannedPath() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPath == nil {
		return "", false
	}
	return *s.lastPath, true
}

// SetLastScannedPath records path and persists it. Setting the current value
// again does not write.
func (s *State) SetLastScannedPath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastPath != nil && *s.lastPath == path {
		return nil
	}
	prev := s.lastPath
	s.lastPath = &path
	if err := s.persistLocked(); err != nil {
		s.lastPath = prev
		return err
	}
	return nil
}

// persistLocked writes the whole state. Callers hold s.mu.
func (s *State) persistLocked() error {
	if err := s.store.Save(s.snapshotLocked()); err != nil {
		s.log.Error().Err(err).Str("location", s.store.Location()).Msg("Failed to persist catalog state")
		return err
	}
	return nil
}

// registry is the shared map logic behind Tags and Bookmarks.
type registry struct {
	state *State
	m     *map[string]string
	kind  string
}

// Get returns the value stored under key.
func (r registry) Get(key string) (string, bool) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	v, ok := (*r.m)[key]
	return v, ok
}

// Set stores value under key, overwriting silently, and persists.
func (r registry) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	prev, existed := (*r.m)[key]
	if existed && prev == value {
		return nil
	}
	(*r.m)[key] = value
	if err := r.state.persistLocked(); err != nil {
		if existed {
			(*r.m)[key] = prev
		} else {
			delete(*r.m, key)
		}
		return err
	}
	r.state.log.Debug().Str("kind", r.kind).Str("key", key).Msg("Entry set")
	return nil
}

// Remove deletes key and persists. It reports whether key existed; removing
// an absent key does not write.
func (r registry) Remove(key string) (bool, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	prev, existed := (*r.m)[key]
	if !existed {
		return false, nil
	}
	delete(*r.m, key)
	if err := r.state.persistLocked(); err != nil {
		(*r.m)[key] = prev
		return false, err
	}
	r.state.log.Debug().Str("kind", r.kind).Str("key", key).Msg("Entry removed")
	return true, nil
}

// All returns a copy of every entry.
func (r registry) All() map[string]string {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return maps.Clone(*r.m)
}

// Len returns the number of entries.
func (r registry) Len() int {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return len(*r.m)
}

// Tags maps a file key (absolute path, or a bare file name in older state
// files) to its tag text.
type Tags struct {
	registry
}

// Lookup finds the tag for a file, preferring an entry keyed by its path
// over one keyed by its name.
func (t *Tags) Lookup(path, name string) (string, bool) {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if v, ok := t.state.tags[path]; ok {
		return v, true
	}
	v, ok := t.state.tags[name]
	return v, ok
}

// Bookmarks maps a bookmark name to a directory path.
type Bookmarks struct {
	registry
}

// Bookmark is one named folder.
type Bookmark struct {
	Name string
	Path string
}

// NameFor derives the default bookmark name: the last element of the
// cleaned path.
func NameFor(path string) string {
	return filepath.Base(filepath.Clean(path))
}

// Set stores a bookmark under an explicit name.
func (b *Bookmarks) Set(name, path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	return b.registry.Set(name, path)
}

// Add bookmarks path under its derived name, replacing any bookmark that
// already has that name.
func (b *Bookmarks) Add(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	name := NameFor(path)
	if err := b.Set(name, path); err != nil {
		return "", err
	}
	return name, nil
}

// List returns the bookmarks sorted by name.
func (b *Bookmarks) List() []Bookmark {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	out := make([]Bookmark, 0, len(b.state.marks))
	for name, path := range b.state.marks {
		out = append(out, Bookmark{Name: name, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the bookmark names sorted ascending.
func (b *Bookmarks) Names() []string {
	list := b.List()
	out := make([]string, len(list))
	for i, bm := range list {
		out[i] = bm.Name
	}
	return out
}
