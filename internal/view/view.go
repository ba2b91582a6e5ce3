package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"scriptcatalog/internal/scan"
)

const (
	// NoTag is shown for files without a tag entry.
	NoTag = "No Tag"

	// TimeLayout formats DisplayRow.ModifiedAt.
	TimeLayout = "2006-01-02 15:04:05"
)

// Column selects the sort key for SortBy.
type Column int

const (
	ColumnName Column = iota
	ColumnModifiedAt
)

func (c Column) String() string {
	switch c {
	case ColumnName:
		return "Name"
	case ColumnModifiedAt:
		return "Last Modified"
	default:
		return fmt.Sprintf("Column(%d)", int(c))
	}
}

// ParseColumn accepts "name" or "modified" (and a few spellings of each).
func ParseColumn(s string) (Column, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "n":
		return ColumnName, nil
	case "modified", "modifiedat", "modified_at", "mtime", "last modified", "m", "time":
		return ColumnModifiedAt, nil
	default:
		return 0, fmt.Errorf("unknown sort column %q (want name or modified)", s)
	}
}

// DisplayRow is one rendered catalog line. HasTag lets a presentation layer
// highlight tagged files.
type DisplayRow struct {
	Name       string
	ModifiedAt string // TimeLayout in local time
	Modified   time.Time
	Tag        string // NoTag when untagged
	HasTag     bool
	Path       string
}

// TagLookup resolves the tag of a file by path, falling back to its name.
type TagLookup interface {
	Lookup(path, name string) (string, bool)
}

// BuildView joins records with their tags and orders them newest first.
// A nil tags lookup leaves every row untagged.
func BuildView(records []scan.FileRecord, tags TagLookup) []DisplayRow {
	rows := make([]DisplayRow, 0, len(records))
	for _, rec := range records {
		row := DisplayRow{
			Name:       rec.Name,
			ModifiedAt: rec.ModifiedAt.Local().Format(TimeLayout),
			Modified:   rec.ModifiedAt,
			Tag:        NoTag,
			Path:       rec.Path,
		}
		if tags != nil {
			ApplyTag(&row, tags)
		}
		rows = append(rows, row)
	}
	sortInPlace(rows, ColumnModifiedAt)
	return rows
}

// ApplyTag refreshes the tag fields of row from tags.
func ApplyTag(row *DisplayRow, tags TagLookup) {
	if tag, ok := tags.Lookup(row.Path, row.Name); ok {
		row.Tag = tag
		row.HasTag = true
		return
	}
	row.Tag = NoTag
	row.HasTag = false
}

// SortBy returns a re-ordered copy of rows. Names sort ascending and times
// descending; both are stable, so sorting twice by one column is a no-op.
func SortBy(rows []DisplayRow, column Column) []DisplayRow {
	out := make([]DisplayRow, len(rows))
	copy(out, rows)
	sortInPlace(out, column)
	return out
}

func sortInPlace(rows []DisplayRow, column Column) {
	switch column {
	case ColumnName:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Name < rows[j].Name
		})
	case ColumnModifiedAt:
		// Whole seconds, matching the displayed precision.
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Modified.Unix() > rows[j].Modified.Unix()
		})
	}
}
