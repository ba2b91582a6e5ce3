package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"scriptcatalog/internal/engine"
	"scriptcatalog/internal/registry"
	"scriptcatalog/internal/scan"
	"scriptcatalog/internal/store"
	"scriptcatalog/internal/view"
)

type appState int

const (
	stateForm appState = iota
	stateBrowser
	stateScanning
	stateCatalog
	stateTagging
	stateHelp
)

type formModel struct {
	root textinput.Model // required
	ext  textinput.Model // optional: ".py,.sh"

	focus int // 0=root, 1=ext
	err   string

	// Autocomplete state
	completions        []string
	completionIndex    int
	showingCompletions bool

	rootPathValid int // 0=unknown, 1=valid, 2=partial, 3=invalid
}

type browserModel struct {
	currentPath string
	entries     []os.DirEntry
	selected    int
	err         string
}

type helpModel struct {
	previousState appState
}

type catalogModel struct {
	rows      []view.DisplayRow
	cursor    int
	column    view.Column
	status    string
	statusErr bool

	// pendingDelete is set by "x"; the next digit removes that bookmark.
	pendingDelete bool

	tag textinput.Model
}

type model struct {
	state   appState
	form    formModel
	browser browserModel
	help    helpModel
	catalog catalogModel

	eng        *engine.Engine
	defaultExt []string
	activeExt  string // extension filter of the scanner in use
	newScanner func(exts []string) (engine.Scanner, error)
	copyPath   func(string) error
	bookmarks  []registry.Bookmark

	spin       spinner.Model
	start      time.Time
	scanTarget string
	scanFrom   appState
	took       time.Duration
	windowSize tea.WindowSizeMsg
}

type scanDoneMsg struct {
	rows []view.DisplayRow
	err  error
	took time.Duration
}

type browserErrorMsg struct{ err error }
type browserLoadedMsg struct{ entries []os.DirEntry }

func newModel(a *app) model {
	root := textinput.New()
	root.Placeholder = "/home/you/scripts"
	root.Prompt = "Folder: "
	root.Focus()

	ext := textinput.New()
	ext.Prompt = "Extensions (optional, e.g. .py,.sh): "
	ext.Placeholder = strings.Join(a.cfg.Extensions, ",")

	tag := textinput.New()
	tag.Prompt = "Tag: "
	tag.CharLimit = 200

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := model{
		state: stateForm,
		form: formModel{
			root: root,
			ext:  ext,
		},
		catalog: catalogModel{
			column: view.ColumnModifiedAt,
			tag:    tag,
		},
		eng:        a.engine,
		defaultExt: a.cfg.Extensions,
		activeExt:  strings.Join(a.cfg.Extensions, ","),
		newScanner: func(exts []string) (engine.Scanner, error) {
			return newScanner(a.cfg, exts)
		},
		copyPath:  clipboard.WriteAll,
		bookmarks: a.engine.Bookmarks(),
		spin:      s,
	}

	// Reopen the folder scanned last time.
	if last, ok := a.state.LastScannedPath(); ok {
		m.form.root.SetValue(last)
		m.form.rootPathValid = validatePath(last)
		m.state = stateScanning
		m.scanTarget = last
		m.scanFrom = stateForm
		m.start = time.Now()
	}
	return m
}

// INIT
func (m model) Init() tea.Cmd {
	if m.state == stateScanning {
		return tea.Batch(m.spin.Tick, restoreCmd(m.eng))
	}
	return textinput.Blink
}

// UPDATE
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.windowSize = ws
		return m, nil
	}
	switch m.state {
	case stateForm:
		return m.updateForm(msg)
	case stateBrowser:
		return m.updateBrowser(msg)
	case stateScanning:
		return m.updateScan(msg)
	case stateCatalog:
		return m.updateCatalog(msg)
	case stateTagging:
		return m.updateTagging(msg)
	case stateHelp:
		return m.updateHelp(msg)
	default:
		return m, nil
	}
}

func (m model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "tab":
			if m.form.focus == 0 {
				return m.handleTabCompletion()
			}
			m.form.focus = (m.form.focus + 1) % 2
			m.setFocus()
			return m, nil
		case "down":
			if m.form.showingCompletions && len(m.form.completions) > 0 {
				m.form.completionIndex = (m.form.completionIndex + 1) % len(m.form.completions)
				return m, nil
			}
			m.form.focus = (m.form.focus + 1) % 2
			m.setFocus()
			return m, nil
		case "shift+tab", "up":
			if m.form.showingCompletions && len(m.form.completions) > 0 {
				m.form.completionIndex = (m.form.completionIndex + len(m.form.completions) - 1) % len(m.form.completions)
				return m, nil
			}
			m.form.focus = (m.form.focus + 1) % 2
			m.setFocus()
			return m, nil
		case "ctrl+b":
			m.state = stateBrowser
			m.browser = browserModel{currentPath: m.getBrowserStartPath()}
			return m, m.loadBrowserEntries()
		case "enter":
			if m.form.showingCompletions && len(m.form.completions) > 0 {
				return m.selectCompletion()
			}
			return m.submitForm()
		case "esc":
			if m.form.showingCompletions {
				m.form.showingCompletions = false
				m.form.completions = nil
				return m, nil
			}
			if len(m.catalog.rows) > 0 {
				m.state = stateCatalog
				return m, nil
			}
			return m, tea.Quit
		case "ctrl+c":
			return m, tea.Quit
		case "?", "F1":
			m.help.previousState = m.state
			m.state = stateHelp
			return m, nil
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			if bm, ok := m.bookmarkAt(msg.String()); ok {
				m.form.root.SetValue(bm.Path)
				m.form.root.CursorEnd()
				m.form.rootPathValid = validatePath(bm.Path)
				m.form.focus = 0
				m.setFocus()
			}
			return m, nil
		}
	}

	switch m.form.focus {
	case 0:
		m.form.root, cmd = m.form.root.Update(msg)
		m.form.rootPathValid = validatePath(m.form.root.Value())
	case 1:
		m.form.ext, cmd = m.form.ext.Update(msg)
	}
	return m, cmd
}

// submitForm validates the form and starts a scan.
func (m model) submitForm() (tea.Model, tea.Cmd) {
	root := strings.TrimSpace(m.form.root.Value())
	if root == "" {
		m.form.err = "Folder is required."
		return m, nil
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		m.form.err = "Folder not accessible."
		return m, nil
	}

	exts := scan.ParseExtensions(m.form.ext.Value())
	if len(exts) == 0 {
		exts = m.defaultExt
	}
	if joined := strings.Join(exts, ","); joined != m.activeExt {
		sc, err := m.newScanner(exts)
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.eng.UseScanner(sc)
		m.activeExt = joined
	}

	m.form.err = ""
	return m.startScan(root, scanCmd(m.eng, root))
}

func (m *model) setFocus() {
	m.form.root.Blur()
	m.form.ext.Blur()

	m.form.showingCompletions = false
	m.form.completions = nil

	switch m.form.focus {
	case 0:
		m.form.root.Focus()
	case 1:
		m.form.ext.Focus()
	}
}

// Handle tab completion for the folder field
func (m model) handleTabCompletion() (tea.Model, tea.Cmd) {
	completions := getPathCompletions(m.form.root.Value())

	// A single match is completed immediately
	if len(completions) == 1 {
		m.form.root.SetValue(completions[0])
		m.form.root.CursorEnd()
		m.form.rootPathValid = validatePath(completions[0])
		return m, nil
	}
	if len(completions) == 0 {
		return m, nil
	}

	m.form.completions = completions
	m.form.completionIndex = 0
	m.form.showingCompletions = true
	return m, nil
}

func (m model) selectCompletion() (tea.Model, tea.Cmd) {
	if !m.form.showingCompletions || len(m.form.completions) == 0 {
		return m, nil
	}

	completion := m.form.completions[m.form.completionIndex]
	m.form.root.SetValue(completion)
	m.form.root.CursorEnd()
	m.form.rootPathValid = validatePath(completion)

	m.form.showingCompletions = false
	m.form.completions = nil
	return m, nil
}

// getPathCompletions lists the visible subdirectories matching a partial path.
func getPathCompletions(path string) []string {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		return getPathCompletions(home)
	}

	path = strings.TrimSpace(path)

	// An existing directory lists its children
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return listSubdirs(path, "")
	}

	// Otherwise complete the last element against its parent
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	return listSubdirs(dir, filepath.Base(path))
}

func listSubdirs(dir, prefix string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var completions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue // hidden
		}
		// Case-insensitive prefix matching
		if prefix == "" || strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			completions = append(completions, filepath.Join(dir, name))
		}
	}
	return completions
}

// Validate a path and return status: 1=valid, 2=partial, 3=invalid
func validatePath(path string) int {
	if path == "" {
		return 0
	}

	path = strings.TrimSpace(path)

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return 1
	}

	// Parent exists: the user is still typing
	if _, err := os.Stat(filepath.Dir(path)); err == nil {
		return 2
	}

	return 3
}

func getPathValidationIndicator(status int) string {
	switch status {
	case 1:
		return lipgloss.NewStyle().Foreground(success).Render("✓")
	case 2:
		return lipgloss.NewStyle().Foreground(warning).Render("⚠")
	case 3:
		return lipgloss.NewStyle().Foreground(danger).Render("✗")
	default:
		return ""
	}
}

// getBrowserStartPath picks the folder the browser opens in: the typed
// folder, its parent, or the home directory.
func (m model) getBrowserStartPath() string {
	if current := strings.TrimSpace(m.form.root.Value()); current != "" {
		if info, err := os.Stat(current); err == nil && info.IsDir() {
			return current
		}
		if dir := filepath.Dir(current); dir != "." {
			if _, err := os.Stat(dir); err == nil {
				return dir
			}
		}
	}

	if root := m.eng.Root(); root != "" {
		return root
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return string(filepath.Separator)
	}
	return home
}

func (m model) updateBrowser(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case browserLoadedMsg:
		m.browser.entries = msg.entries
		m.browser.selected = 0
		m.browser.err = ""
		return m, nil
	case browserErrorMsg:
		m.browser.err = msg.err.Error()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			m.state = stateForm
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		case "?", "F1":
			m.help.previousState = m.state
			m.state = stateHelp
			return m, nil
		case "up", "k":
			if m.browser.selected > 0 {
				m.browser.selected--
			}
		case "down", "j":
			if m.browser.selected < len(m.browser.entries)-1 {
				m.browser.selected++
			}
		case "enter":
			if len(m.browser.entries) > 0 {
				entry := m.browser.entries[m.browser.selected]
				if entry.Name() == ".." {
					m.browser.currentPath = filepath.Dir(m.browser.currentPath)
				} else {
					m.browser.currentPath = filepath.Join(m.browser.currentPath, entry.Name())
				}
				return m, m.loadBrowserEntries()
			}
		case " ":
			// Select current directory and return to form
			m.form.root.SetValue(m.browser.currentPath)
			m.form.root.CursorEnd()
			m.form.rootPathValid = validatePath(m.browser.currentPath)
			m.state = stateForm
			return m, nil
		}
	}
	return m, nil
}

func (m model) updateHelp(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		// Any key returns to the previous screen
		m.state = m.help.previousState
	}
	return m, nil
}

func (m model) startScan(target string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.scanFrom = m.state
	m.state = stateScanning
	m.scanTarget = target
	m.start = time.Now()
	m.catalog.pendingDelete = false
	return m, tea.Batch(m.spin.Tick, cmd)
}

func (m model) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case scanDoneMsg:
		m.took = msg.took
		m.bookmarks = m.eng.Bookmarks()
		if msg.rows == nil && msg.err != nil {
			// Nothing was scanned; go back where the scan started.
			if m.scanFrom == stateCatalog {
				m.state = stateCatalog
				m.catalog.setStatus(describeErr(msg.err), true)
			} else {
				m.state = stateForm
				m.form.err = describeErr(msg.err)
			}
			return m, nil
		}
		m.state = stateCatalog
		m.catalog.rows = msg.rows
		m.catalog.cursor = 0
		m.catalog.column = m.eng.Column()
		m.form.root.SetValue(m.eng.Root())
		if msg.err != nil {
			m.catalog.setStatus(describeErr(msg.err), true)
		} else {
			m.catalog.setStatus("", false)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (c *catalogModel) setStatus(s string, isErr bool) {
	c.status = s
	c.statusErr = isErr
}

func (c catalogModel) selected() (view.DisplayRow, bool) {
	if c.cursor < 0 || c.cursor >= len(c.rows) {
		return view.DisplayRow{}, false
	}
	return c.rows[c.cursor], true
}

func (m model) updateCatalog(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	k := key.String()
	if m.catalog.pendingDelete {
		m.catalog.pendingDelete = false
		if bm, ok := m.bookmarkAt(k); ok {
			if _, err := m.eng.OnBookmarkRemoved(bm.Name); err != nil {
				m.catalog.setStatus(describeErr(err), true)
				return m, nil
			}
			m.bookmarks = m.eng.Bookmarks()
			m.catalog.setStatus(fmt.Sprintf("Removed bookmark %q", bm.Name), false)
			return m, nil
		}
		m.catalog.setStatus("", false)
		if k == "esc" {
			return m, nil
		}
	}

	switch k {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?", "F1":
		m.help.previousState = m.state
		m.state = stateHelp
	case "up", "k":
		if m.catalog.cursor > 0 {
			m.catalog.cursor--
		}
	case "down", "j":
		if m.catalog.cursor < len(m.catalog.rows)-1 {
			m.catalog.cursor++
		}
	case "pgup":
		m.catalog.cursor = max(0, m.catalog.cursor-m.getCatalogDisplayLines())
	case "pgdown":
		m.catalog.cursor = min(max(0, len(m.catalog.rows)-1), m.catalog.cursor+m.getCatalogDisplayLines())
	case "home", "g":
		m.catalog.cursor = 0
	case "end", "G":
		m.catalog.cursor = max(0, len(m.catalog.rows)-1)
	case "n":
		m.resort(view.ColumnName)
	case "m":
		m.resort(view.ColumnModifiedAt)
	case "t":
		row, ok := m.catalog.selected()
		if !ok {
			return m, nil
		}
		m.catalog.tag.SetValue("")
		if row.HasTag {
			m.catalog.tag.SetValue(row.Tag)
		}
		m.catalog.tag.CursorEnd()
		m.state = stateTagging
		cmd := m.catalog.tag.Focus()
		return m, cmd
	case "T":
		m.clearTag()
	case "b":
		root := m.eng.Root()
		if root == "" {
			return m, nil
		}
		name, err := m.eng.OnBookmarkAdded(root)
		if err != nil {
			m.catalog.setStatus(describeErr(err), true)
			return m, nil
		}
		m.bookmarks = m.eng.Bookmarks()
		m.catalog.setStatus(fmt.Sprintf("Bookmarked %s as %q", root, name), false)
	case "x":
		if len(m.bookmarks) == 0 {
			m.catalog.setStatus("No bookmarks to remove", true)
			return m, nil
		}
		m.catalog.pendingDelete = true
		m.catalog.setStatus("Press 1-9 to remove that bookmark, any other key to cancel", false)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		if bm, ok := m.bookmarkAt(k); ok {
			return m.startScan(bm.Path, bookmarkScanCmd(m.eng, bm.Name))
		}
	case "y":
		row, ok := m.catalog.selected()
		if !ok {
			return m, nil
		}
		if err := m.copyPath(row.Path); err != nil {
			m.catalog.setStatus("Copy failed: "+err.Error(), true)
			return m, nil
		}
		m.catalog.setStatus("Copied "+row.Path, false)
	case "r":
		if root := m.eng.Root(); root != "" {
			return m.startScan(root, scanCmd(m.eng, root))
		}
	case "/", "esc":
		m.state = stateForm
		m.form.err = ""
		m.form.focus = 0
		m.setFocus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m *model) resort(column view.Column) {
	var path string
	if row, ok := m.catalog.selected(); ok {
		path = row.Path
	}
	m.catalog.rows = m.eng.Resort(column)
	m.catalog.column = column
	m.catalog.cursor = indexOfPath(m.catalog.rows, path)
}

func (m *model) clearTag() {
	row, ok := m.catalog.selected()
	if !ok || !row.HasTag {
		return
	}
	removed, err := m.eng.OnTagCleared(row.Path)
	if err == nil && !removed {
		// Tags from older state files are keyed by file name.
		removed, err = m.eng.OnTagCleared(row.Name)
	}
	m.catalog.rows = m.eng.Rows()
	if err != nil {
		m.catalog.setStatus(describeErr(err), true)
		return
	}
	if !removed {
		return
	}
	if tag, still := m.eng.TagOf(row.Path, row.Name); still {
		m.catalog.setStatus(fmt.Sprintf("Removed tag of %s; the name tag %q still applies (T again to remove it)", row.Name, tag), false)
		return
	}
	m.catalog.setStatus("Removed tag of "+row.Name, false)
}

func (m model) updateTagging(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.catalog.tag.Blur()
			m.state = stateCatalog
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.catalog.tag.Blur()
			m.state = stateCatalog
			row, ok := m.catalog.selected()
			if !ok {
				return m, nil
			}
			text := m.catalog.tag.Value()
			err := m.eng.OnTagRequested(row.Path, text)
			m.catalog.rows = m.eng.Rows()
			if err != nil {
				m.catalog.setStatus(describeErr(err), true)
				return m, nil
			}
			m.catalog.setStatus(fmt.Sprintf("Tagged %s: %s", row.Name, text), false)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.catalog.tag, cmd = m.catalog.tag.Update(msg)
	return m, cmd
}

// bookmarkAt maps a "1".."9" key to the bookmark listed at that position.
func (m model) bookmarkAt(key string) (registry.Bookmark, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return registry.Bookmark{}, false
	}
	i := int(key[0] - '1')
	if i >= len(m.bookmarks) {
		return registry.Bookmark{}, false
	}
	return m.bookmarks[i], true
}

func indexOfPath(rows []view.DisplayRow, path string) int {
	for i, r := range rows {
		if r.Path == path {
			return i
		}
	}
	return 0
}

// describeErr renders the typed catalog errors for the status line.
func describeErr(err error) string {
	var (
		notFound *scan.PathNotFoundError
		denied   *scan.PermissionError
		write    *store.IOWriteError
	)
	switch {
	case errors.As(err, &notFound):
		if notFound.Reason != "" {
			return fmt.Sprintf("%s: %s", notFound.Reason, notFound.Path)
		}
		return "Folder not found: " + notFound.Path
	case errors.As(err, &denied):
		return "Permission denied: " + denied.Path
	case errors.As(err, &write):
		return "Could not save catalog state: " + write.Err.Error()
	default:
		return err.Error()
	}
}

func scanCmd(eng *engine.Engine, root string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		rows, err := eng.OnScanRequested(root)
		return scanDoneMsg{rows: rows, err: err, took: time.Since(start)}
	}
}

func bookmarkScanCmd(eng *engine.Engine, name string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		rows, err := eng.OnBookmarkSelected(name)
		return scanDoneMsg{rows: rows, err: err, took: time.Since(start)}
	}
}

func restoreCmd(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		rows, _, err := eng.Restore()
		return scanDoneMsg{rows: rows, err: err, took: time.Since(start)}
	}
}

func (m model) loadBrowserEntries() tea.Cmd {
	current := m.browser.currentPath
	return func() tea.Msg {
		entries, err := os.ReadDir(current)
		if err != nil {
			return browserErrorMsg{err: err}
		}

		var all []os.DirEntry
		if filepath.Dir(current) != current {
			all = append(all, &parentDirEntry{})
		}
		for _, entry := range entries {
			if entry.IsDir() {
				all = append(all, entry)
			}
		}
		return browserLoadedMsg{entries: all}
	}
}

// parentDirEntry is the ".." row of the browser.
type parentDirEntry struct{}

func (p *parentDirEntry) Name() string               { return ".." }
func (p *parentDirEntry) IsDir() bool                { return true }
func (p *parentDirEntry) Type() os.FileMode          { return os.ModeDir }
func (p *parentDirEntry) Info() (os.FileInfo, error) { return nil, nil }

// VIEW
func (m model) View() string {
	switch m.state {
	case stateForm:
		return m.viewForm()
	case stateBrowser:
		return m.viewBrowser()
	case stateScanning:
		return m.viewScan()
	case stateCatalog, stateTagging:
		return m.viewCatalog()
	case stateHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

func (m model) viewForm() string {
	var b strings.Builder
	contentWidth := m.getWidth() - 6

	fmt.Fprintf(&b, "%s\n", renderHeader(contentWidth))

	var form strings.Builder
	fmt.Fprintf(&form, "%s%s %s\n", labelStyle.Render(m.form.root.Prompt), m.form.root.View(),
		getPathValidationIndicator(m.form.rootPathValid))
	fmt.Fprintf(&form, "%s%s\n", labelStyle.Render(m.form.ext.Prompt), m.form.ext.View())
	fmt.Fprintf(&b, "%s\n", cardStyle.Width(contentWidth).Render(form.String()))

	if m.form.err != "" {
		fmt.Fprintf(&b, "%s\n", renderBorder(errorStyle.Render("⚠ "+m.form.err), "Error", danger))
	}

	if m.form.showingCompletions && len(m.form.completions) > 0 {
		var s strings.Builder
		maxShow := 5
		for i, completion := range m.form.completions {
			if i >= maxShow {
				fmt.Fprintf(&s, "  %s\n", subtitleStyle.Render(fmt.Sprintf("... and %d more", len(m.form.completions)-maxShow)))
				break
			}
			prefix := "  "
			style := lipgloss.NewStyle().Foreground(secondary)
			if i == m.form.completionIndex {
				prefix = lipgloss.NewStyle().Foreground(warning).Render("▸ ")
				style = style.Bold(true)
			}
			fmt.Fprintf(&s, "%s%s\n", prefix, style.Render(filepath.Base(completion)))
		}
		fmt.Fprintf(&s, "\n%s", subtitleStyle.Render("↑/↓ navigate • Enter select • Esc cancel"))
		fmt.Fprintf(&b, "%s\n", renderBorder(s.String(), "Folder Suggestions", secondary))
	} else if len(m.bookmarks) > 0 {
		fmt.Fprintf(&b, "%s\n", renderBorder(m.renderBookmarkList(contentWidth-8), "Bookmarks (press 1-9)", accent))
	}

	fmt.Fprintf(&b, "%s\n", renderKeyHelp([]string{
		"Enter scan", "Tab complete", "Ctrl+B browse", "1-9 bookmark", "? help", "Esc quit",
	}))
	return b.String()
}

func (m model) renderBookmarkList(width int) string {
	var b strings.Builder
	for i, bm := range m.bookmarks {
		if i >= 9 {
			break
		}
		num := lipgloss.NewStyle().Background(primary).Foreground(text).Bold(true).Padding(0, 1).
			Render(fmt.Sprintf("%d", i+1))
		path := m.wrapText(bm.Path, max(10, width-len(bm.Name)-8))
		fmt.Fprintf(&b, "%s %s %s %s\n", num, valueStyle.Render(bm.Name), subtitleStyle.Render(path),
			getPathValidationIndicator(validatePath(bm.Path)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) viewBrowser() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", renderTitle("Directory Browser"))
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Current:"),
		lipgloss.NewStyle().Foreground(info).Render(m.wrapText(m.browser.currentPath, m.getWidth()-15)))

	if m.browser.err != "" {
		fmt.Fprintf(&b, "%s %s\n\n", errorStyle.Render("⚠ Error:"), m.browser.err)
		fmt.Fprintf(&b, "%s\n", subtitleStyle.Render("Press Esc to go back"))
		return b.String()
	}

	if len(m.browser.entries) == 0 {
		fmt.Fprintf(&b, "%s\n", subtitleStyle.Render("No directories found"))
	} else {
		maxDisplay := m.getBrowserDisplayLines()
		start, end := visibleWindow(m.browser.selected, len(m.browser.entries), maxDisplay)

		for i := start; i < end; i++ {
			entry := m.browser.entries[i]
			prefix := "  "
			if i == m.browser.selected {
				prefix = lipgloss.NewStyle().Foreground(info).Render("▸ ")
			}
			if entry.Name() == ".." {
				fmt.Fprintf(&b, "%s%s\n", prefix, subtitleStyle.Render("../"))
			} else {
				fmt.Fprintf(&b, "%s%s\n", prefix, lipgloss.NewStyle().Foreground(accent).Render(entry.Name()+"/"))
			}
		}
		if len(m.browser.entries) > maxDisplay {
			fmt.Fprintf(&b, "\n%s\n", subtitleStyle.Render(fmt.Sprintf("(%d-%d of %d)", start+1, end, len(m.browser.entries))))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", subtitleStyle.Render("↑/↓ or j/k navigate • Enter open • Space select • Esc cancel"))
	return b.String()
}

func (m model) viewHelp() string {
	var b strings.Builder

	section := func(title string, keys [][2]string) {
		fmt.Fprintf(&b, "%s\n", valueStyle.Render(title))
		for _, kv := range keys {
			fmt.Fprintf(&b, "  %s %s\n", accentStyle.Render(fmt.Sprintf("%-12s", kv[0])), subtitleStyle.Render(kv[1]))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n\n", renderTitle("Script Catalog - Keyboard Shortcuts"))

	section("Folder Form", [][2]string{
		{"Tab", "Complete folder / next field"},
		{"↑/↓", "Move between fields or suggestions"},
		{"Ctrl+B", "Open directory browser"},
		{"1-9", "Use a bookmarked folder"},
		{"Enter", "Scan the folder"},
		{"Esc", "Back to catalog, or quit"},
	})
	section("Catalog", [][2]string{
		{"↑/↓ j/k", "Move selection"},
		{"n / m", "Sort by name / last modified"},
		{"t", "Tag the selected file"},
		{"T", "Remove the tag of the selected file"},
		{"y", "Copy the file path"},
		{"b", "Bookmark the current folder"},
		{"1-9", "Open a bookmarked folder"},
		{"x then 1-9", "Remove a bookmark"},
		{"r", "Rescan"},
		{"/", "Scan another folder"},
		{"q", "Quit"},
	})
	section("Directory Browser", [][2]string{
		{"Enter", "Enter selected directory"},
		{"Space", "Use current directory"},
		{"Esc", "Return to the form"},
	})

	fmt.Fprintf(&b, "%s\n", subtitleStyle.Render("Press any key to return"))
	return b.String()
}

func (m model) viewScan() string {
	var b strings.Builder
	contentWidth := m.getWidth() - 6

	header := fmt.Sprintf("%s %s", m.spin.View(), valueStyle.Render("Scanning"))
	fmt.Fprintf(&b, "%s\n", cardStyle.Width(contentWidth).Render(header))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Folder:"),
		lipgloss.NewStyle().Foreground(info).Render(m.wrapText(m.scanTarget, contentWidth-10)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Elapsed:"),
		valueStyle.Render(time.Since(m.start).Round(100*time.Millisecond).String()))
	fmt.Fprintf(&b, "\n%s\n", subtitleStyle.Render("Ctrl+C to quit"))
	return b.String()
}

func (m model) viewCatalog() string {
	var b strings.Builder
	contentWidth := m.getWidth() - 4

	title := fmt.Sprintf("%s  %s", renderTitle("Script Catalog"),
		lipgloss.NewStyle().Foreground(info).Render(m.wrapText(m.eng.Root(), max(10, contentWidth-20))))
	fmt.Fprintf(&b, "%s\n", title)

	stats := m.eng.Stats()
	var speed string
	if m.took > 0 {
		speed = formatSpeed(float64(stats.Files) / m.took.Seconds())
	} else {
		speed = "0"
	}
	fmt.Fprintf(&b, "%s\n\n", renderStatsLine(stats.Files, stats.Dirs, stats.Skipped, speed, m.took))

	table := renderCatalogTable(m.catalog.rows, m.catalog.cursor, m.getCatalogDisplayLines(), m.getTableWidth(), m.catalog.column)
	fmt.Fprintf(&b, "%s\n", table)

	if m.state == stateTagging {
		if row, ok := m.catalog.selected(); ok {
			box := renderBorder(m.catalog.tag.View(), "Tag "+row.Name, primary)
			fmt.Fprintf(&b, "\n%s\n", box)
			fmt.Fprintf(&b, "%s\n", subtitleStyle.Render("Enter save • Esc cancel • an empty tag is kept as empty"))
			return b.String()
		}
	}

	if len(m.bookmarks) > 0 {
		fmt.Fprintf(&b, "\n%s\n", renderBookmarkBar(m.bookmarks))
	}

	if m.catalog.status != "" {
		style := successStyle
		if m.catalog.statusErr {
			style = errorStyle
		}
		fmt.Fprintf(&b, "\n%s\n", style.Render(m.catalog.status))
	}

	fmt.Fprintf(&b, "\n%s\n", renderKeyHelp([]string{
		"n/m sort", "t tag", "T untag", "y copy", "b bookmark", "1-9 open", "x remove", "r rescan", "/ folder", "q quit",
	}))
	return b.String()
}

// Speed formatter
func formatSpeed(filesPerSec float64) string {
	if filesPerSec < 1 {
		return fmt.Sprintf("%.2f", filesPerSec)
	} else if filesPerSec < 100 {
		return fmt.Sprintf("%.1f", filesPerSec)
	}
	return fmt.Sprintf("%.0f", filesPerSec)
}

// relativeTime is the "3 days ago" column of the catalog.
func relativeTime(t time.Time) string {
	return humanize.Time(t)
}

// visibleWindow returns the [start, end) slice of n items to render so that
// selected stays on screen.
func visibleWindow(selected, n, maxDisplay int) (int, int) {
	start := 0
	if selected >= maxDisplay {
		start = selected - maxDisplay + 1
	}
	end := min(start+maxDisplay, n)
	return start, end
}

// Responsive layout helpers
func (m model) getWidth() int {
	if m.windowSize.Width > 0 {
		return m.windowSize.Width
	}
	return 80
}

func (m model) getHeight() int {
	if m.windowSize.Height > 0 {
		return m.windowSize.Height
	}
	return 24
}

func (m model) getTableWidth() int {
	width := m.getWidth()
	if width < 70 {
		return 50
	} else if width < 100 {
		return 70
	}
	return 90
}

func (m model) getBrowserDisplayLines() int {
	height := m.getHeight()
	if height < 20 {
		return 8
	} else if height < 30 {
		return 15
	}
	return 20
}

// getCatalogDisplayLines leaves room for the header, bookmarks and key help.
func (m model) getCatalogDisplayLines() int {
	return max(5, m.getHeight()-14)
}

// Truncate with an ellipsis
func (m model) wrapText(text string, maxWidth int) string {
	r := []rune(text)
	if len(r) <= maxWidth {
		return text
	}
	if maxWidth > 3 {
		return string(r[:maxWidth-3]) + "..."
	}
	return string(r[:max(0, maxWidth)])
}
