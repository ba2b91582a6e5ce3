package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptcatalog/internal/logging"
	"scriptcatalog/internal/store"
)

// recordingStore counts saves and can be told to fail them.
type recordingStore struct {
	saved []store.CatalogState
	fail  bool
}

func (r *recordingStore) Load() (store.CatalogState, error) { return store.EmptyState(), nil }

func (r *recordingStore) Save(s store.CatalogState) error {
	if r.fail {
		return &store.IOWriteError{Location: "mem", Op: "write", Err: errors.New("disk full")}
	}
	r.saved = append(r.saved, s.Clone())
	return nil
}

func (r *recordingStore) Location() string { return "mem" }
func (r *recordingStore) Close() error     { return nil }

func (r *recordingStore) last() store.CatalogState { return r.saved[len(r.saved)-1] }

func newState(t *testing.T) (*State, *recordingStore) {
	t.Helper()
	rs := &recordingStore{}
	return New(rs, store.EmptyState(), logging.Nop()), rs
}

func TestTags_SetGet(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	tags := s.Tags()

	require.NoError(t, tags.Set("f.py", "x"))
	v, ok := tags.Get("f.py")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = tags.Get("other.py")
	assert.False(t, ok, "absent key is not an error")

	require.Len(t, rs.saved, 1, "every mutation writes through")
	assert.Equal(t, "x", rs.last().Tags["f.py"])
}

func TestTags_OverwriteAndLiteralEmpty(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	tags := s.Tags()

	require.NoError(t, tags.Set("f.py", "x"))
	require.NoError(t, tags.Set("f.py", "y"))
	require.NoError(t, tags.Set("g.py", ""))
	require.NoError(t, tags.Set("h.py", "   "))

	assert.Equal(t, map[string]string{"f.py": "y", "g.py": "", "h.py": "   "}, tags.All())
	v, ok := tags.Get("g.py")
	assert.True(t, ok, "empty tag is a value, not absence")
	assert.Equal(t, "", v)
	assert.Len(t, rs.saved, 4)
}

func TestTags_SameValueDoesNotWrite(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	require.NoError(t, s.Tags().Set("f.py", "x"))
	require.NoError(t, s.Tags().Set("f.py", "x"))
	assert.Len(t, rs.saved, 1)
}

func TestTags_EmptyKeyRejected(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	assert.ErrorIs(t, s.Tags().Set("", "x"), ErrEmptyKey)
	assert.Empty(t, rs.saved)
}

func TestTags_Remove(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	tags := s.Tags()
	require.NoError(t, tags.Set("f.py", "x"))

	removed, err := tags.Remove("f.py")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, rs.last().Tags)

	removed, err = tags.Remove("f.py")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, rs.saved, 2, "removing an absent key does not write")
}

func TestTags_Lookup(t *testing.T) {
	t.Parallel()

	s, _ := newState(t)
	tags := s.Tags()
	require.NoError(t, tags.Set("util.py", "legacy"))
	require.NoError(t, tags.Set("/repo/a/util.py", "by-path"))

	v, ok := tags.Lookup("/repo/a/util.py", "util.py")
	assert.True(t, ok)
	assert.Equal(t, "by-path", v, "path entry wins")

	v, ok = tags.Lookup("/repo/b/util.py", "util.py")
	assert.True(t, ok)
	assert.Equal(t, "legacy", v, "name entry is the fallback")

	_, ok = tags.Lookup("/repo/c.py", "c.py")
	assert.False(t, ok)
}

func TestTags_AllIsACopy(t *testing.T) {
	t.Parallel()

	s, _ := newState(t)
	require.NoError(t, s.Tags().Set("f.py", "x"))

	all := s.Tags().All()
	all["f.py"] = "mutated"
	all["g.py"] = "new"

	v, _ := s.Tags().Get("f.py")
	assert.Equal(t, "x", v)
	assert.Equal(t, 1, s.Tags().Len())
}

func TestFailedSaveRollsBack(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	require.NoError(t, s.Tags().Set("keep.py", "old"))
	_, err := s.Bookmarks().Add("/srv/keep")
	require.NoError(t, err)
	require.NoError(t, s.SetLastScannedPath("/srv/keep"))
	before := s.Snapshot()

	rs.fail = true

	err = s.Tags().Set("keep.py", "new")
	assert.True(t, store.IsIOWrite(err))
	err = s.Tags().Set("fresh.py", "x")
	assert.True(t, store.IsIOWrite(err))
	_, err = s.Tags().Remove("keep.py")
	assert.True(t, store.IsIOWrite(err))
	_, err = s.Bookmarks().Add("/other/keep")
	assert.True(t, store.IsIOWrite(err))
	_, err = s.Bookmarks().Remove("keep")
	assert.True(t, store.IsIOWrite(err))
	err = s.SetLastScannedPath("/elsewhere")
	assert.True(t, store.IsIOWrite(err))

	assert.Equal(t, before, s.Snapshot(), "in-memory state stays what was last persisted")
}

func TestBookmarks_AddDerivesName(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	marks := s.Bookmarks()

	name, err := marks.Add(filepath.FromSlash("/home/u/projects/tools/"))
	require.NoError(t, err)
	assert.Equal(t, "tools", name)

	path, ok := marks.Get("tools")
	assert.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/home/u/projects/tools/"), path)
	assert.Equal(t, path, rs.last().Bookmarks["tools"])
}

func TestBookmarks_CollisionLastWriteWins(t *testing.T) {
	t.Parallel()

	s, _ := newState(t)
	marks := s.Bookmarks()

	first := filepath.FromSlash("/a/scripts")
	second := filepath.FromSlash("/b/scripts")
	_, err := marks.Add(first)
	require.NoError(t, err)
	name, err := marks.Add(second)
	require.NoError(t, err)

	assert.Equal(t, "scripts", name)
	assert.Equal(t, map[string]string{"scripts": second}, marks.All())
}

func TestBookmarks_RemoveAndList(t *testing.T) {
	t.Parallel()

	s, _ := newState(t)
	marks := s.Bookmarks()
	for _, p := range []string{"/z/zeta", "/a/alpha", "/m/mid"} {
		_, err := marks.Add(filepath.FromSlash(p))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, marks.Names())
	list := marks.List()
	require.Len(t, list, 3)
	assert.Equal(t, Bookmark{Name: "alpha", Path: filepath.FromSlash("/a/alpha")}, list[0])

	removed, err := marks.Remove("mid")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = marks.Remove("mid")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"alpha", "zeta"}, marks.Names())
}

func TestBookmarks_EmptyPathRejected(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	_, err := s.Bookmarks().Add("  ")
	assert.ErrorIs(t, err, ErrEmptyPath)
	assert.ErrorIs(t, s.Bookmarks().Set("x", ""), ErrEmptyPath)
	assert.ErrorIs(t, s.Bookmarks().Set("", "/x"), ErrEmptyKey)
	assert.Empty(t, rs.saved)
}

func TestLastScannedPath(t *testing.T) {
	t.Parallel()

	s, rs := newState(t)
	_, ok := s.LastScannedPath()
	assert.False(t, ok)

	require.NoError(t, s.SetLastScannedPath("/srv"))
	require.NoError(t, s.SetLastScannedPath("/srv"))
	p, ok := s.LastScannedPath()
	assert.True(t, ok)
	assert.Equal(t, "/srv", p)
	require.Len(t, rs.saved, 1)
	require.NotNil(t, rs.last().LastScannedPath)
	assert.Equal(t, "/srv", *rs.last().LastScannedPath)
}

func TestOpen_PersistsAcrossRestart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file_data.json")

	first, err := Open(store.NewJSONStore(path), logging.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Tags().Set("/r/a.py", "util"))
	_, err = first.Bookmarks().Add(filepath.FromSlash("/r"))
	require.NoError(t, err)
	require.NoError(t, first.SetLastScannedPath("/r"))

	second, err := Open(store.NewJSONStore(path), logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, first.Snapshot(), second.Snapshot())

	v, ok := second.Tags().Get("/r/a.py")
	assert.True(t, ok)
	assert.Equal(t, "util", v)
}

func TestOpen_CorruptStateIsReturned(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(store.NewJSONStore(path), logging.Nop())
	assert.True(t, store.IsCorruptState(err))
}
