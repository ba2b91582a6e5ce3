package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"scriptcatalog/internal/registry"
	"scriptcatalog/internal/view"
)

// Color palette
var (
	primary   = lipgloss.Color("#7c3aed") // Purple
	secondary = lipgloss.Color("#06b6d4") // Cyan
	accent    = lipgloss.Color("#10b981") // Emerald

	success = lipgloss.Color("#22c55e") // Green
	warning = lipgloss.Color("#f59e0b") // Amber
	danger  = lipgloss.Color("#ef4444") // Red
	info    = lipgloss.Color("#3b82f6") // Blue

	background = lipgloss.Color("#0f172a") // Slate-900
	surface    = lipgloss.Color("#1e293b") // Slate-800
	border     = lipgloss.Color("#334155") // Slate-700
	text       = lipgloss.Color("#f1f5f9") // Slate-100
	textMuted  = lipgloss.Color("#94a3b8") // Slate-400
)

// Typography styles
var (
	headingStyle = lipgloss.NewStyle().
			Foreground(primary).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	labelStyle = lipgloss.NewStyle().
			Foreground(textMuted).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(text).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(success).
			Bold(true)

	accentStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)
)

// Layout components
var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(1, 2).
			MarginBottom(1)

	headerBoxStyle = lipgloss.NewStyle().
			Align(lipgloss.Center).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(primary).
			Padding(1, 2).
			MarginBottom(1)

	selectedRowStyle = lipgloss.NewStyle().
				Background(primary).
				Foreground(text).
				Bold(true)

	taggedRowStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	plainRowStyle = lipgloss.NewStyle().
			Foreground(text)
)

func renderTitle(title string) string {
	return headingStyle.Render(title)
}

func renderHeader(width int) string {
	title := lipgloss.NewStyle().
		Foreground(primary).
		Bold(true).
		Render("▤  SCRIPT CATALOG")

	subtitle := subtitleStyle.Render("Scan • Tag • Bookmark")

	return headerBoxStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Center, title, "", subtitle))
}

// renderStatsLine summarizes the last scan on one line.
func renderStatsLine(files, dirs, skipped int, speed string, took time.Duration) string {
	parts := []string{
		accentStyle.Render(humanize.Comma(int64(files))) + subtitleStyle.Render(" "+plural(files, "file")),
		lipgloss.NewStyle().Foreground(secondary).Bold(true).Render(humanize.Comma(int64(dirs))) + subtitleStyle.Render(" "+plural(dirs, "folder")),
	}
	if skipped > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(warning).Bold(true).Render(humanize.Comma(int64(skipped)))+subtitleStyle.Render(" skipped"))
	}
	parts = append(parts,
		lipgloss.NewStyle().Foreground(info).Bold(true).Render(took.Round(time.Millisecond).String()),
		subtitleStyle.Render(speed+" files/sec"),
	)
	return strings.Join(parts, subtitleStyle.Render(" • "))
}

func renderKeyHelp(keys []string) string {
	var parts []string
	colors := []lipgloss.Color{primary, accent, secondary, info}

	for i, key := range keys {
		keyStyle := lipgloss.NewStyle().
			Background(colors[i%len(colors)]).
			Foreground(background).
			Padding(0, 1).
			Bold(true).
			MarginRight(1)

		parts = append(parts, keyStyle.Render(key))
	}

	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

func renderBorder(content string, title string, color lipgloss.Color) string {
	titleBar := lipgloss.NewStyle().
		Background(color).
		Foreground(background).
		Bold(true).
		Padding(0, 1).
		Render(fmt.Sprintf(" %s ", title))

	bordered := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 2)

	return lipgloss.JoinVertical(lipgloss.Left,
		titleBar,
		bordered.Render(content),
	)
}

// renderBookmarkBar shows the numbered bookmarks on one line.
func renderBookmarkBar(marks []registry.Bookmark) string {
	parts := []string{labelStyle.Render("Bookmarks:")}
	for i, bm := range marks {
		if i >= 9 {
			parts = append(parts, subtitleStyle.Render(fmt.Sprintf("+%d", len(marks)-9)))
			break
		}
		num := lipgloss.NewStyle().Background(surface).Foreground(warning).Bold(true).Padding(0, 1).
			Render(fmt.Sprintf("%d", i+1))
		parts = append(parts, num+" "+valueStyle.Render(bm.Name))
	}
	return strings.Join(parts, "  ")
}

// renderCatalogTable draws the catalog rows. Tagged rows are highlighted and
// the selected row is inverted; only the window around cursor is rendered.
func renderCatalogTable(rows []view.DisplayRow, cursor, maxLines, width int, sorted view.Column) string {
	if len(rows) == 0 {
		return subtitleStyle.Render("No scripts in this folder")
	}

	headers := []string{"Name", "Last Modified", "", "Tag"}
	switch sorted {
	case view.ColumnName:
		headers[0] += " ▲"
	case view.ColumnModifiedAt:
		headers[1] += " ▼"
	}

	// Column widths: fixed time columns, name and tag share the rest.
	timeW := max(len(view.TimeLayout), lipgloss.Width(headers[1]))
	relW := 16
	rest := max(20, width-timeW-relW-6)
	nameW := lipgloss.Width(headers[0])
	for _, r := range rows {
		nameW = max(nameW, lipgloss.Width(r.Name))
	}
	nameW = min(nameW, rest*3/5)
	tagW := max(8, rest-nameW)
	widths := []int{nameW, timeW, relW, tagW}

	var headerCells []string
	for i, h := range headers {
		headerCells = append(headerCells, headingStyle.Width(widths[i]).MarginRight(2).Render(h))
	}
	lines := []string{lipgloss.JoinHorizontal(lipgloss.Left, headerCells...)}

	var sep []string
	for _, w := range widths {
		sep = append(sep, strings.Repeat("─", w))
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(border).Render(strings.Join(sep, "──")))

	start, end := visibleWindow(cursor, len(rows), maxLines)
	for i := start; i < end; i++ {
		r := rows[i]
		cells := []string{
			truncate(r.Name, nameW),
			r.ModifiedAt,
			truncate(relativeTime(r.Modified), relW),
			truncate(r.Tag, tagW),
		}

		style := plainRowStyle
		switch {
		case i == cursor:
			style = selectedRowStyle
		case r.HasTag:
			style = taggedRowStyle
		}

		var rendered []string
		for c, cell := range cells {
			s := style.Width(widths[c])
			if c == 2 && i != cursor {
				s = subtitleStyle.Width(widths[c])
			}
			rendered = append(rendered, s.Render(cell), style.Render("  "))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left, rendered...))
	}

	if len(rows) > maxLines {
		lines = append(lines, subtitleStyle.Render(fmt.Sprintf("(%d-%d of %d)", start+1, end, len(rows))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:max(0, width)])
	}
	return string(r[:width-1]) + "…"
}
