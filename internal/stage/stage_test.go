package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offinstr/internal/archive"
	"offinstr/internal/cleanup"
	"offinstr/internal/testutil/jartest"
)

func writeFile(t *testing.T, s *Stage, rel, data string) {
	t.Helper()
	p := s.Path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0644))
}

func newStage(t *testing.T) *Stage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "stage"))
	require.NoError(t, err)
	return s
}

func TestNewTemp(t *testing.T) {
	reg := cleanup.New()
	s, err := NewTemp(reg)
	require.NoError(t, err)
	assert.DirExists(t, s.Root())

	require.NoError(t, reg.Run())
	assert.NoDirExists(t, s.Root())
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestClearTopLevel(t *testing.T) {
	s := newStage(t)
	writeFile(t, s, "stale.class", "x")
	writeFile(t, s, "other.txt", "y")
	writeFile(t, s, "pkg/Kept.class", "z")

	removed, err := s.ClearTopLevel()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/Kept.class"}, files)
}

func TestReset(t *testing.T) {
	s := newStage(t)
	writeFile(t, s, "a.txt", "a")
	writeFile(t, s, "deep/nested/b.txt", "b")

	require.NoError(t, s.Reset())

	files, err := s.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.DirExists(t, s.Root())
}

func TestNativeDir(t *testing.T) {
	s := newStage(t)

	dir, err := s.EnsureNativeDir("arm64-v8a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "lib", "arm64-v8a"), dir)
	assert.DirExists(t, dir)
}

func TestReconcile(t *testing.T) {
	jar := jartest.Write(t, filepath.Join(t.TempDir(), "current.jar"),
		jartest.Entry{Name: archive.ManifestName, Data: jartest.Manifest},
		jartest.Entry{Name: "a/A.class", Data: "A"},
		jartest.Entry{Name: "a/res.txt", Data: "r"},
	)
	s := newStage(t)
	writeFile(t, s, "a/A.class", "instrumented A")
	writeFile(t, s, "a/Stale.class", "from a previous archive")
	writeFile(t, s, "old/pkg/Gone.class", "from a previous run")
	writeFile(t, s, "top.txt", "stray")

	stats, err := s.Reconcile(jar)
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Kept: 1, Removed: 3, PrunedDirs: 2}, stats)

	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/A.class"}, files)
	for _, f := range files {
		assert.True(t, archive.EntryExists(jar, f), "%s must be an entry of the source archive", f)
	}
	assert.NoDirExists(t, s.Path("old"))

	data, err := os.ReadFile(s.Path("a/A.class"))
	require.NoError(t, err)
	assert.Equal(t, "instrumented A", string(data), "existence check only, content untouched")
}

func TestReconcile_UnreadableArchiveKeepsFiles(t *testing.T) {
	s := newStage(t)
	writeFile(t, s, "a/A.class", "A")

	_, err := s.Reconcile(filepath.Join(t.TempDir(), "missing.jar"))
	require.Error(t, err)

	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/A.class"}, files)
}
