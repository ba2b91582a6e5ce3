// Package index keeps a sqlite snapshot of every catalog scan so tags and
// files can be queried across folders without rescanning.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scriptcatalog/internal/view"
)

// ErrNoScan is returned by LatestScan when a root has never been recorded.
var ErrNoScan = errors.New("no scan recorded for root")

// Scan describes one recorded catalog scan.
type Scan struct {
	ID        string
	Root      string
	ScannedAt time.Time
	Files     int
}

// File is one indexed catalog row.
type File struct {
	Path       string
	Root       string
	Name       string
	ModifiedAt time.Time
	Tag        string
	ScanID     string
}

// Index is a handle on the sqlite catalog database.
type Index struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// One writer; keeps the per-connection pragmas consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure index: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	return &Index{db: db, path: path}, nil
}

func initSchema(db *sql.DB) error {
	ddl := `
CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY,
	root        TEXT NOT NULL,
	scanned_utc TEXT NOT NULL,
	file_count  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
	abs_path  TEXT PRIMARY KEY,
	root      TEXT NOT NULL,
	name      TEXT NOT NULL,
	mtime_utc TEXT NOT NULL,
	tag       TEXT,
	scan_id   TEXT NOT NULL REFERENCES scans(id)
);
CREATE INDEX IF NOT EXISTS idx_scans_root ON scans(root);
CREATE INDEX IF NOT EXISTS idx_files_root ON files(root);
CREATE INDEX IF NOT EXISTS idx_files_tag ON files(tag);
`
	_, err := db.Exec(ddl)
	return err
}

// Path returns the database file location.
func (ix *Index) Path() string { return ix.path }

// Record replaces the indexed files of root with rows and returns the new
// scan id. The whole replacement happens in one transaction.
func (ix *Index) Record(ctx context.Context, root string, rows []view.DisplayRow) (string, error) {
	scanID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scans(id, root, scanned_utc, file_count) VALUES(?, ?, ?, ?)`,
		scanID, root, now, len(rows)); err != nil {
		return "", fmt.Errorf("insert scan: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE root = ?`, root); err != nil {
		return "", fmt.Errorf("clear files of %s: %w", root, err)
	}

	fileStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files(abs_path, root, name, mtime_utc, tag, scan_id)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(abs_path) DO UPDATE SET
		  root=excluded.root, name=excluded.name, mtime_utc=excluded.mtime_utc,
		  tag=excluded.tag, scan_id=excluded.scan_id
	`)
	if err != nil {
		return "", fmt.Errorf("prepare file insert: %w", err)
	}
	defer fileStmt.Close()

	for _, row := range rows {
		var tag *string
		if row.HasTag {
			t := row.Tag
			tag = &t
		}
		mtime := row.Modified.UTC().Format(time.RFC3339)
		if _, err := fileStmt.ExecContext(ctx, row.Path, root, row.Name, mtime, tag, scanID); err != nil {
			return "", fmt.Errorf("insert file %s: %w", row.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit scan: %w", err)
	}
	return scanID, nil
}

// Retag recomputes the tag column of the indexed files a tag key can
// address: the file whose path is key and every file named key. Tags are
// resolved through tags, so a path entry still wins over a name entry.
// It returns the number of rows whose tag changed.
func (ix *Index) Retag(ctx context.Context, key string, tags view.TagLookup) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	type target struct{ path, name string }
	var targets []target

	rows, err := tx.QueryContext(ctx,
		`SELECT abs_path, name FROM files WHERE abs_path = ? OR name = ?`, key, key)
	if err != nil {
		return 0, fmt.Errorf("query files for %s: %w", key, err)
	}
	for rows.Next() {
		var tg target
		if err := rows.Scan(&tg.path, &tg.name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("read file row: %w", err)
		}
		targets = append(targets, tg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("read file rows: %w", err)
	}
	rows.Close()

	changed := 0
	for _, tg := range targets {
		var tag *string
		if t, ok := tags.Lookup(tg.path, tg.name); ok {
			tag = &t
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE files SET tag = ? WHERE abs_path = ? AND tag IS NOT ?`, tag, tg.path, tag)
		if err != nil {
			return 0, fmt.Errorf("update tag of %s: %w", tg.path, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			changed += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit retag: %w", err)
	}
	return changed, nil
}

// FilesByTag returns the indexed files carrying exactly tag, ordered by path.
func (ix *Index) FilesByTag(ctx context.Context, tag string) ([]File, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT abs_path, root, name, mtime_utc, tag, scan_id
		FROM files WHERE tag = ? ORDER BY abs_path
	`, tag)
	if err != nil {
		return nil, fmt.Errorf("query files by tag: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var (
			f     File
			mtime string
			t     sql.NullString
		)
		if err := rows.Scan(&f.Path, &f.Root, &f.Name, &mtime, &t, &f.ScanID); err != nil {
			return nil, fmt.Errorf("read file row: %w", err)
		}
		f.Tag = t.String
		if f.ModifiedAt, err = time.Parse(time.RFC3339, mtime); err != nil {
			return nil, fmt.Errorf("parse mtime of %s: %w", f.Path, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestScan returns the most recent scan of root, or ErrNoScan.
func (ix *Index) LatestScan(ctx context.Context, root string) (Scan, error) {
	var (
		s       Scan
		scanned string
	)
	err := ix.db.QueryRowContext(ctx, `
		SELECT id, root, scanned_utc, file_count
		FROM scans WHERE root = ?
		ORDER BY rowid DESC LIMIT 1
	`, root).Scan(&s.ID, &s.Root, &scanned, &s.Files)
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, ErrNoScan
	}
	if err != nil {
		return Scan{}, fmt.Errorf("query latest scan: %w", err)
	}
	if s.ScannedAt, err = time.Parse(time.RFC3339Nano, scanned); err != nil {
		return Scan{}, fmt.Errorf("parse scan time: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}
