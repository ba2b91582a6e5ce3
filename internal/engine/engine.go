// Package engine is the command surface used by the TUI and CLI. It owns the
// rows of the current catalog and routes every mutation through the
// registries so the state file always reflects what the user sees.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"scriptcatalog/internal/logging"
	"scriptcatalog/internal/registry"
	"scriptcatalog/internal/scan"
	"scriptcatalog/internal/view"
)

// ErrBookmarkNotFound is returned when a selected bookmark does not exist.
var ErrBookmarkNotFound = errors.New("bookmark not found")

// Scanner produces the file records of a folder.
type Scanner interface {
	ScanWithStats(root string) ([]scan.FileRecord, scan.Stats, error)
}

// Indexer receives every successful scan and every tag change. It is
// optional.
type Indexer interface {
	Record(ctx context.Context, root string, rows []view.DisplayRow) (string, error)
	Retag(ctx context.Context, key string, tags view.TagLookup) (int, error)
}

// Deps are the collaborators of an Engine. Index may be nil.
type Deps struct {
	State   *registry.State
	Scanner Scanner
	Index   Indexer
	Logger  logging.Logger
}

// Engine caches the last scan and applies user commands to it.
type Engine struct {
	state   *registry.State
	scanner Scanner
	index   Indexer
	log     logging.Logger

	mu     sync.Mutex
	root   string
	rows   []view.DisplayRow
	column view.Column
	stats  scan.Stats
	scanID string
}

// New wires an Engine. State and Scanner are required.
func New(deps Deps) (*Engine, error) {
	if deps.State == nil {
		return nil, errors.New("engine: state is required")
	}
	if deps.Scanner == nil {
		return nil, errors.New("engine: scanner is required")
	}
	return &Engine{
		state:   deps.State,
		scanner: deps.Scanner,
		index:   deps.Index,
		log:     deps.Logger,
		column:  view.ColumnModifiedAt,
	}, nil
}

// UseScanner replaces the scanner for later scans, e.g. after the extension
// filter changed. Cached rows are kept.
func (e *Engine) UseScanner(s Scanner) {
	if s == nil {
		return
	}
	e.mu.Lock()
	e.scanner = s
	e.mu.Unlock()
}

// OnScanRequested scans path and replaces the cached rows, newest first.
//
// A scan failure (PathNotFoundError, PermissionError) leaves the previous
// rows and the last scanned path untouched. When the scan succeeds but
// persisting the path or recording the index fails, the new rows are still
// returned together with that error.
func (e *Engine) OnScanRequested(path string) ([]view.DisplayRow, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &scan.PathNotFoundError{Path: path, Reason: "cannot resolve path", Err: err}
	}

	e.mu.Lock()
	scanner := e.scanner
	e.mu.Unlock()

	records, stats, err := scanner.ScanWithStats(abs)
	if err != nil {
		e.log.Warn().Err(err).Str("path", abs).Msg("Scan failed")
		return nil, err
	}

	rows := view.BuildView(records, e.state.Tags())

	e.mu.Lock()
	e.root = abs
	e.rows = rows
	e.column = view.ColumnModifiedAt
	e.stats = stats
	e.scanID = ""
	out := cloneRows(rows)
	e.mu.Unlock()

	e.log.Info().
		Str("path", abs).
		Int("files", stats.Files).
		Int("skipped", stats.Skipped).
		Msg("Catalog scanned")

	var errs []error
	if err := e.state.SetLastScannedPath(abs); err != nil {
		errs = append(errs, err)
	}
	if e.index != nil {
		scanID, err := e.index.Record(context.Background(), abs, out)
		if err != nil {
			e.log.Error().Err(err).Str("path", abs).Msg("Failed to record scan in index")
			errs = append(errs, fmt.Errorf("record scan in index: %w", err))
		} else {
			e.mu.Lock()
			e.scanID = scanID
			e.mu.Unlock()
			e.log.Debug().Str("scan_id", scanID).Msg("Scan recorded")
		}
	}
	return out, errors.Join(errs...)
}

// OnTagRequested sets the tag of key and refreshes the cached rows and the
// index. An index failure is returned after the tag has been saved.
func (e *Engine) OnTagRequested(key, tagText string) error {
	if err := e.state.Tags().Set(key, tagText); err != nil {
		return err
	}
	e.refreshTags()
	return e.retagIndex(key)
}

// OnTagCleared removes the tag of key. It reports whether a tag existed.
func (e *Engine) OnTagCleared(key string) (bool, error) {
	removed, err := e.state.Tags().Remove(key)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	e.refreshTags()
	return true, e.retagIndex(key)
}

// TagOf resolves the tag shown for a file, path entry first.
func (e *Engine) TagOf(path, name string) (string, bool) {
	return e.state.Tags().Lookup(path, name)
}

func (e *Engine) retagIndex(key string) error {
	if e.index == nil {
		return nil
	}
	n, err := e.index.Retag(context.Background(), key, e.state.Tags())
	if err != nil {
		e.log.Error().Err(err).Str("key", key).Msg("Failed to update tag in index")
		return fmt.Errorf("update tag in index: %w", err)
	}
	e.log.Debug().Str("key", key).Int("rows", n).Msg("Index retagged")
	return nil
}

func (e *Engine) refreshTags() {
	tags := e.state.Tags()
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rows {
		view.ApplyTag(&e.rows[i], tags)
	}
}

// OnBookmarkAdded bookmarks the absolute form of path under its base name.
func (e *Engine) OnBookmarkAdded(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", registry.ErrEmptyPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve bookmark path: %w", err)
	}
	name, err := e.state.Bookmarks().Add(abs)
	if err != nil {
		return "", err
	}
	e.log.Info().Str("name", name).Str("path", abs).Msg("Bookmark added")
	return name, nil
}

// OnBookmarkRemoved deletes the named bookmark and reports whether it existed.
func (e *Engine) OnBookmarkRemoved(name string) (bool, error) {
	return e.state.Bookmarks().Remove(name)
}

// OnBookmarkSelected scans the folder behind a bookmark.
func (e *Engine) OnBookmarkSelected(name string) ([]view.DisplayRow, error) {
	path, ok := e.state.Bookmarks().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBookmarkNotFound, name)
	}
	return e.OnScanRequested(path)
}

// Bookmarks lists the bookmarks sorted by name.
func (e *Engine) Bookmarks() []registry.Bookmark {
	return e.state.Bookmarks().List()
}

// Resort reorders the cached rows by column and returns them.
func (e *Engine) Resort(column view.Column) []view.DisplayRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = view.SortBy(e.rows, column)
	e.column = column
	return cloneRows(e.rows)
}

// Rows returns the cached rows in their current order.
func (e *Engine) Rows() []view.DisplayRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRows(e.rows)
}

// Column returns the column the cached rows are ordered by.
func (e *Engine) Column() view.Column {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.column
}

// Root returns the folder of the cached rows, empty before the first scan.
func (e *Engine) Root() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// Stats returns the counters of the last successful scan.
func (e *Engine) Stats() scan.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// ScanID returns the index id of the last scan, empty when not indexed.
func (e *Engine) ScanID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scanID
}

// Restore rescans the last scanned folder, if one was recorded. The bool
// reports whether a restore was attempted.
func (e *Engine) Restore() ([]view.DisplayRow, bool, error) {
	last, ok := e.state.LastScannedPath()
	if !ok {
		return nil, false, nil
	}
	rows, err := e.OnScanRequested(last)
	return rows, true, err
}

func cloneRows(rows []view.DisplayRow) []view.DisplayRow {
	if rows == nil {
		return nil
	}
	out := make([]view.DisplayRow, len(rows))
	copy(out, rows)
	return out
}
