package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (string, *Watcher) {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{".git/refs/heads", ".git/objects/ab", "src"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	w, err := New(Options{Root: root, Debounce: 30 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return root, w
}

func write(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(time.Now().String()), 0o644))
}

func expectChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func expectQuiet(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
		t.Fatal("unexpected change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWorkTreeChange(t *testing.T) {
	root, w := setup(t)
	write(t, filepath.Join(root, "src", "main.go"))
	expectChange(t, w)
}

func TestBurstIsDebounced(t *testing.T) {
	root, w := setup(t)
	for i := range 5 {
		write(t, filepath.Join(root, "f"+string(rune('a'+i))))
	}
	expectChange(t, w)
	expectQuiet(t, w)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root, w := setup(t)
	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0o755))
	expectChange(t, w)
	// Give the watcher a moment to add the directory.
	time.Sleep(50 * time.Millisecond)
	write(t, filepath.Join(dir, "x.go"))
	expectChange(t, w)
}

func TestGitDirFiltering(t *testing.T) {
	root, w := setup(t)
	git := filepath.Join(root, ".git")

	write(t, filepath.Join(git, "index.lock"))
	write(t, filepath.Join(git, "objects", "ab", "cdef"))
	write(t, filepath.Join(git, "COMMIT_EDITMSG"))
	expectQuiet(t, w)

	write(t, filepath.Join(git, "index"))
	expectChange(t, w)

	write(t, filepath.Join(git, "refs", "heads", "main"))
	expectChange(t, w)
}

func TestRelevant(t *testing.T) {
	w := &Watcher{root: "/repo", gitDir: "/repo/.git"}
	tests := []struct {
		path string
		want bool
	}{
		{"/repo/a.go", true},
		{"/repo/.gitignore", true},
		{"/repo/.git/index", true},
		{"/repo/.git/HEAD", true},
		{"/repo/.git/refs/heads/main", true},
		{"/repo/.git/refs/heads/main.lock", false},
		{"/repo/.git/index.lock", false},
		{"/repo/.git/objects/ab/cd", false},
		{"/repo/.git/logs/HEAD", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.relevant(filepath.FromSlash(tt.path)), tt.path)
	}
}

func TestClose(t *testing.T) {
	_, w := setup(t)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), ErrClosed)
}
