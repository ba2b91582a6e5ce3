package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptcatalog/internal/config"
	"scriptcatalog/internal/engine"
	"scriptcatalog/internal/logging"
	"scriptcatalog/internal/registry"
	"scriptcatalog/internal/store"
	"scriptcatalog/internal/view"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.StateFile = filepath.Join(t.TempDir(), "file_data.json")

	state, err := registry.Open(store.NewJSONStore(cfg.StateFile), logging.Nop())
	require.NoError(t, err)
	sc, err := newScanner(cfg, cfg.Extensions)
	require.NoError(t, err)
	eng, err := engine.New(engine.Deps{State: state, Scanner: sc, Logger: logging.Nop()})
	require.NoError(t, err)
	return &app{cfg: cfg, state: state, engine: eng, log: logging.Nop()}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out, cmd
}

// scannedModel returns a model showing the catalog of a folder holding
// a.py (older) and b.py (newer).
func scannedModel(t *testing.T) (model, *app, string) {
	t.Helper()
	a := newTestApp(t)
	root := t.TempDir()
	writeScript(t, root, "a.py", time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local))
	writeScript(t, root, "b.py", time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local))

	m := newModel(a)
	require.Equal(t, stateForm, m.state)
	m.form.root.SetValue(root)

	next, cmd := m.submitForm()
	m = next.(model)
	require.Equal(t, stateScanning, m.state)
	require.NotNil(t, cmd)

	m, _ = send(t, m, scanCmd(a.engine, root)())
	require.Equal(t, stateCatalog, m.state)
	return m, a, root
}

func rowNames(rows []view.DisplayRow) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names
}

func TestModel_SubmitFormErrors(t *testing.T) {
	m := newModel(newTestApp(t))

	next, cmd := m.submitForm()
	assert.Nil(t, cmd)
	assert.Equal(t, "Folder is required.", next.(model).form.err)

	m.form.root.SetValue(filepath.Join(t.TempDir(), "missing"))
	next, cmd = m.submitForm()
	assert.Nil(t, cmd)
	assert.Equal(t, "Folder not accessible.", next.(model).form.err)
	assert.Equal(t, stateForm, next.(model).state)
}

func TestModel_ScanAndSort(t *testing.T) {
	m, _, root := scannedModel(t)
	assert.Equal(t, []string{"b.py", "a.py"}, rowNames(m.catalog.rows))
	assert.Equal(t, view.ColumnModifiedAt, m.catalog.column)
	assert.Equal(t, root, m.form.root.Value())

	// The cursor follows the selected file across a resort.
	m, _ = send(t, m, keyRunes("n"))
	assert.Equal(t, []string{"a.py", "b.py"}, rowNames(m.catalog.rows))
	assert.Equal(t, 1, m.catalog.cursor)

	m, _ = send(t, m, keyRunes("m"))
	assert.Equal(t, []string{"b.py", "a.py"}, rowNames(m.catalog.rows))
	assert.Equal(t, 0, m.catalog.cursor)

	m, _ = send(t, m, keyRunes("j"))
	m, _ = send(t, m, keyRunes("j"))
	assert.Equal(t, 1, m.catalog.cursor, "cursor stops at the last row")
	m, _ = send(t, m, keyRunes("g"))
	assert.Equal(t, 0, m.catalog.cursor)
}

func TestModel_TagAndClear(t *testing.T) {
	m, a, root := scannedModel(t)
	m, _ = send(t, m, keyRunes("j"))

	m, _ = send(t, m, keyRunes("t"))
	require.Equal(t, stateTagging, m.state)
	m, _ = send(t, m, keyRunes("util"))
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, stateCatalog, m.state)
	assert.False(t, m.catalog.statusErr)

	row := m.catalog.rows[1]
	assert.Equal(t, "a.py", row.Name)
	assert.True(t, row.HasTag)
	assert.Equal(t, "util", row.Tag)

	tag, ok := a.state.Tags().Get(filepath.Join(root, "a.py"))
	require.True(t, ok)
	assert.Equal(t, "util", tag)

	// Reopening the tag prompt starts from the current tag.
	m, _ = send(t, m, keyRunes("t"))
	assert.Equal(t, "util", m.catalog.tag.Value())
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	require.Equal(t, stateCatalog, m.state)

	m, _ = send(t, m, keyRunes("T"))
	assert.False(t, m.catalog.rows[1].HasTag)
	assert.Equal(t, view.NoTag, m.catalog.rows[1].Tag)
	assert.Equal(t, 0, a.state.Tags().Len())
}

func TestModel_ClearTagWithNameTagUnderneath(t *testing.T) {
	m, a, root := scannedModel(t)
	aPath := filepath.Join(root, "a.py")
	require.NoError(t, a.engine.OnTagRequested("a.py", "legacy"))
	require.NoError(t, a.engine.OnTagRequested(aPath, "util"))
	m.catalog.rows = a.engine.Rows()
	m, _ = send(t, m, keyRunes("j"))
	require.Equal(t, "util", m.catalog.rows[1].Tag)

	m, _ = send(t, m, keyRunes("T"))
	assert.True(t, m.catalog.rows[1].HasTag)
	assert.Equal(t, "legacy", m.catalog.rows[1].Tag)
	assert.Contains(t, m.catalog.status, `the name tag "legacy" still applies`)

	m, _ = send(t, m, keyRunes("T"))
	assert.False(t, m.catalog.rows[1].HasTag)
	assert.Equal(t, "Removed tag of a.py", m.catalog.status)
	assert.Equal(t, 0, a.state.Tags().Len())
}

func TestModel_Bookmarks(t *testing.T) {
	m, a, root := scannedModel(t)

	m, _ = send(t, m, keyRunes("b"))
	require.Len(t, m.bookmarks, 1)
	assert.Equal(t, root, m.bookmarks[0].Path)

	// "1" rescans the first bookmark.
	m, cmd := send(t, m, keyRunes("1"))
	assert.Equal(t, stateScanning, m.state)
	assert.NotNil(t, cmd)
	m, _ = send(t, m, bookmarkScanCmd(a.engine, m.bookmarks[0].Name)())
	assert.Equal(t, stateCatalog, m.state)

	// "x" followed by a non digit cancels.
	m, _ = send(t, m, keyRunes("x"))
	assert.True(t, m.catalog.pendingDelete)
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	assert.False(t, m.catalog.pendingDelete)
	assert.Equal(t, stateCatalog, m.state)
	assert.Len(t, a.engine.Bookmarks(), 1)

	m, _ = send(t, m, keyRunes("x"))
	m, _ = send(t, m, keyRunes("1"))
	assert.Empty(t, m.bookmarks)
	assert.Empty(t, a.engine.Bookmarks())

	m, _ = send(t, m, keyRunes("x"))
	assert.True(t, m.catalog.statusErr)
	assert.False(t, m.catalog.pendingDelete)
}

func TestModel_CopyPath(t *testing.T) {
	m, _, root := scannedModel(t)

	var copied string
	m.copyPath = func(s string) error {
		copied = s
		return nil
	}
	m, _ = send(t, m, keyRunes("y"))
	assert.Equal(t, filepath.Join(root, "b.py"), copied)
	assert.False(t, m.catalog.statusErr)

	m.copyPath = func(string) error { return errors.New("no clipboard") }
	m, _ = send(t, m, keyRunes("y"))
	assert.True(t, m.catalog.statusErr)
	assert.Contains(t, m.catalog.status, "no clipboard")
}

func TestModel_FailedRescanKeepsCatalog(t *testing.T) {
	m, a, root := scannedModel(t)

	m, _ = send(t, m, keyRunes("r"))
	require.Equal(t, stateScanning, m.state)
	require.Equal(t, stateCatalog, m.scanFrom)

	require.NoError(t, os.RemoveAll(root))
	m, _ = send(t, m, scanCmd(a.engine, root)())
	assert.Equal(t, stateCatalog, m.state)
	assert.True(t, m.catalog.statusErr)
	assert.Contains(t, m.catalog.status, root)
	assert.Equal(t, []string{"b.py", "a.py"}, rowNames(m.catalog.rows))
}

func TestModel_FailedScanReturnsToForm(t *testing.T) {
	a := newTestApp(t)
	m := newModel(a)
	m.state = stateScanning
	m.scanFrom = stateForm

	missing := filepath.Join(t.TempDir(), "gone")
	m, _ = send(t, m, scanCmd(a.engine, missing)())
	assert.Equal(t, stateForm, m.state)
	assert.Equal(t, "Folder not found: "+missing, m.form.err)
}

func TestModel_RestoresLastFolder(t *testing.T) {
	_, a, root := scannedModel(t)

	m := newModel(a)
	assert.Equal(t, stateScanning, m.state)
	assert.Equal(t, root, m.scanTarget)
	assert.NotNil(t, m.Init())

	m, _ = send(t, m, restoreCmd(a.engine)())
	assert.Equal(t, stateCatalog, m.state)
	assert.Len(t, m.catalog.rows, 2)
}

func TestModel_ExtensionFilterSwapsScanner(t *testing.T) {
	a := newTestApp(t)
	root := t.TempDir()
	writeScript(t, root, "a.py", time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local))
	writeScript(t, root, "run.sh", time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local))

	m := newModel(a)
	m.form.root.SetValue(root)
	m.form.ext.SetValue("sh")
	next, _ := m.submitForm()
	m = next.(model)
	assert.Equal(t, ".sh", m.activeExt)

	m, _ = send(t, m, scanCmd(a.engine, root)())
	assert.Equal(t, []string{"run.sh"}, rowNames(m.catalog.rows))
}

func TestModel_ViewsRender(t *testing.T) {
	m, _, _ := scannedModel(t)
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	out := m.View()
	assert.Contains(t, out, "a.py")
	assert.Contains(t, out, "Last Modified")

	m, _ = send(t, m, keyRunes("?"))
	assert.Equal(t, stateHelp, m.state)
	assert.NotEmpty(t, m.View())

	m.state = stateForm
	assert.Contains(t, m.View(), "Folder")
}
