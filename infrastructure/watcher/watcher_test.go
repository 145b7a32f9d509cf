package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTree creates a repository root with one first-level directory and a
// .git directory.
func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "task-a", "golds"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	return root
}

func write(t *testing.T, p, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
}

type counter struct {
	n   atomic.Int32
	err error
}

func (c *counter) reload(context.Context) error {
	c.n.Add(1)
	return c.err
}

func startWatcher(t *testing.T, roots []string, c *counter) *Watcher {
	t.Helper()
	w, err := New(roots, c.reload, WithDebounce(30*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	root := newTree(t)
	c := &counter{}
	w := startWatcher(t, []string{root}, c)

	write(t, filepath.Join(root, "task-a", "readme.md"), "# a\n")

	require.Eventually(t, func() bool { return c.n.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	stats := w.Stats()
	assert.Equal(t, 1, stats.Reloads)
	assert.GreaterOrEqual(t, stats.Events, 1)
	assert.Equal(t, filepath.Join(root, "task-a", "readme.md"), stats.LastEventPath)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := newTree(t)
	c := &counter{}
	w, err := New([]string{root}, c.reload, WithDebounce(300*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for i := range 5 {
		write(t, filepath.Join(root, "batch.txt"), string(rune('a'+i)))
	}

	require.Eventually(t, func() bool { return c.n.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	// Give a second reload the chance to happen if debouncing were broken.
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), c.n.Load())
}

func TestWatcher_IgnoresHiddenEntries(t *testing.T) {
	root := newTree(t)
	c := &counter{}
	w := startWatcher(t, []string{root}, c)

	write(t, filepath.Join(root, ".git", "index"), "x")
	write(t, filepath.Join(root, ".DS_Store"), "x")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), c.n.Load())
	assert.Equal(t, 0, w.Stats().Events)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := newTree(t)
	c := &counter{}
	startWatcher(t, []string{root}, c)

	dir := filepath.Join(root, "task-b")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Eventually(t, func() bool { return c.n.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	write(t, filepath.Join(dir, "readme.md"), "# b\n")
	require.Eventually(t, func() bool { return c.n.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_WatchesNestedDirectories(t *testing.T) {
	root := newTree(t)
	c := &counter{}
	startWatcher(t, []string{root}, c)

	write(t, filepath.Join(root, "task-a", "golds", "cpb-aacip-000.csv"), "x\n")
	require.Eventually(t, func() bool { return c.n.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_ReloadErrorsAreCounted(t *testing.T) {
	root := newTree(t)
	c := &counter{err: errors.New("broken manifest")}
	w := startWatcher(t, []string{root}, c)

	write(t, filepath.Join(root, "task-a", "task.yaml"), "nope: [")

	require.Eventually(t, func() bool { return w.Stats().Errors == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, w.Stats().Reloads)
}

func TestWatcher_MissingRoot(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "missing")}, (&counter{}).reload)
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_StopsWithContext(t *testing.T) {
	root := newTree(t)
	w, err := New([]string{root}, (&counter{}).reload)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
	w.Stop()
}

func TestWatcher_Helpers(t *testing.T) {
	w := &Watcher{roots: []string{"/repo/ann", "/repo/eval"}}

	assert.True(t, w.ignored("/repo/ann/.git/index"))
	assert.True(t, w.ignored("/repo/eval/task/.hidden"))
	assert.False(t, w.ignored("/repo/ann/task/golds/a.csv"))
	assert.False(t, w.ignored("/elsewhere/.git"))

	rel, ok := w.relative("/repo/eval/x-eval/README.md")
	assert.True(t, ok)
	assert.Equal(t, "x-eval/README.md", rel)
	_, ok = w.relative("/other/task")
	assert.False(t, ok)
}
