package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"scriptcatalog/internal/logging"
)

// FileRecord is one cataloged file. Records are rebuilt on every scan.
type FileRecord struct {
	Name       string
	Path       string // absolute
	ModifiedAt time.Time
}

// Stats summarizes a scan.
type Stats struct {
	Dirs    int // directories visited, root included
	Files   int // records produced
	Skipped int // entries that could not be read, plus directories past MaxDepth
}

// Options configures a Scanner.
type Options struct {
	// Extensions are name suffixes to keep, e.g. ".py". Matching is
	// case-sensitive. Empty means DefaultExtensions.
	Extensions []string

	// Exclude holds glob patterns matched against entry names. Excluded
	// directories are not descended.
	Exclude []string

	// FollowSymlinks descends into symlinked directories. Each real
	// directory is visited at most once.
	FollowSymlinks bool

	// MaxDepth limits how many directory levels below the root are
	// visited while following symlinks; each pruned directory counts as
	// skipped. Without FollowSymlinks the tree is walked to any depth.
	// Zero means DefaultMaxDepth.
	MaxDepth int

	Logger *logging.Logger
}

const DefaultMaxDepth = 64

var DefaultExtensions = []string{".py"}

// Scanner walks a directory tree and collects script files.
type Scanner struct {
	exts     []string
	excludes []glob.Glob
	follow   bool
	maxDepth int
	log      logging.Logger
}

// New builds a Scanner, compiling the exclude patterns.
func New(opts Options) (*Scanner, error) {
	s := &Scanner{
		follow:   opts.FollowSymlinks,
		maxDepth: opts.MaxDepth,
		log:      logging.Nop(),
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if s.maxDepth <= 0 {
		s.maxDepth = DefaultMaxDepth
	}

	for _, ext := range opts.Extensions {
		if ext = strings.TrimSpace(ext); ext != "" {
			s.exts = append(s.exts, ext)
		}
	}
	if len(s.exts) == 0 {
		s.exts = append(s.exts, DefaultExtensions...)
	}

	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		s.excludes = append(s.excludes, g)
	}

	return s, nil
}

// Scan returns the matching files under root in walk order.
func (s *Scanner) Scan(root string) ([]FileRecord, error) {
	records, _, err := s.ScanWithStats(root)
	return records, err
}

// ScanWithStats is Scan plus counters. Failures on individual entries are
// counted in Stats.Skipped and never abort the walk; only an inaccessible
// root is an error.
func (s *Scanner) ScanWithStats(root string) ([]FileRecord, Stats, error) {
	var stats Stats

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, stats, &PathNotFoundError{Path: root, Reason: "cannot resolve path", Err: err}
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, stats, classifyRootError(abs, err)
	}
	if !info.IsDir() {
		return nil, stats, &PathNotFoundError{Path: abs, Reason: "not a directory"}
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, stats, classifyRootError(abs, err)
	}

	w := &walker{
		Scanner: s,
		visited: map[string]struct{}{},
		records: make([]FileRecord, 0, 64),
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		w.visited[real] = struct{}{}
	}

	start := time.Now()
	w.stats.Dirs++
	w.visitEntries(abs, entries, 0)

	s.log.Debug().
		Str("root", abs).
		Int("files", w.stats.Files).
		Int("dirs", w.stats.Dirs).
		Int("skipped", w.stats.Skipped).
		Dur("took", time.Since(start)).
		Msg("Scan finished")

	return w.records, w.stats, nil
}

func classifyRootError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &PathNotFoundError{Path: path, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &PermissionError{Path: path, Err: err}
	default:
		return &PermissionError{Path: path, Err: err}
	}
}

// Matches reports whether name passes the extension filter.
func (s *Scanner) Matches(name string) bool {
	for _, ext := range s.exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(name string) bool {
	for _, g := range s.excludes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

type walker struct {
	*Scanner
	visited map[string]struct{}
	records []FileRecord
	stats   Stats
}

func (w *walker) visitDir(dir string, depth int) {
	if w.follow {
		if depth > w.maxDepth {
			w.log.Warn().Str("dir", dir).Int("max_depth", w.maxDepth).Msg("Depth limit reached, not descending")
			w.stats.Skipped++
			return
		}
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			w.stats.Skipped++
			return
		}
		if _, seen := w.visited[real]; seen {
			w.log.Debug().Str("dir", dir).Str("real", real).Msg("Directory already visited, skipping")
			return
		}
		w.visited[real] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Debug().Err(err).Str("dir", dir).Msg("Cannot read directory, skipping")
		w.stats.Skipped++
		return
	}
	w.stats.Dirs++
	w.visitEntries(dir, entries, depth)
}

func (w *walker) visitEntries(dir string, entries []os.DirEntry, depth int) {
	var subdirs []string

	for _, entry := range entries {
		name := entry.Name()
		if w.excluded(name) {
			continue
		}
		path := filepath.Join(dir, name)

		isDir := entry.IsDir()
		isLink := entry.Type()&fs.ModeSymlink != 0
		if isLink {
			target, err := os.Stat(path)
			if err != nil {
				// dangling link
				if w.Matches(name) {
					w.stats.Skipped++
				}
				continue
			}
			isDir = target.IsDir()
			if isDir && !w.follow {
				continue
			}
		}

		if isDir {
			subdirs = append(subdirs, path)
			continue
		}
		if !w.Matches(name) {
			continue
		}

		// os.Stat follows links, so a linked script reports its target's time.
		info, err := os.Stat(path)
		if err != nil {
			w.log.Debug().Err(err).Str("path", path).Msg("Stat failed, skipping file")
			w.stats.Skipped++
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		w.records = append(w.records, FileRecord{
			Name:       name,
			Path:       path,
			ModifiedAt: info.ModTime(),
		})
		w.stats.Files++
	}

	for _, sub := range subdirs {
		w.visitDir(sub, depth+1)
	}
}

// ParseExtensions turns "py, .pyw,,sh" into [".py", ".pyw", ".sh"],
// dropping blanks and duplicates while keeping order.
func ParseExtensions(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
