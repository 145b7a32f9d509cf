package application

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clamsproject/dashboard/internal/domain"
	"github.com/clamsproject/dashboard/internal/ports"
	"github.com/clamsproject/dashboard/internal/testutils"
)

// swapFS serves whichever tree is current, standing in for a working copy
// whose contents change on checkout.
type swapFS struct {
	mu  sync.Mutex
	cur fs.FS
}

func (s *swapFS) Open(name string) (fs.File, error) {
	s.mu.Lock()
	cur := s.cur
	s.mu.Unlock()
	return cur.Open(name)
}

func (s *swapFS) set(fsys fs.FS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = fsys
}

func newTestCatalog(t *testing.T, ann, eval Source, opts ...CatalogOption) *Catalog {
	t.Helper()
	return NewCatalog(DefaultLayout(), ann, eval, opts...)
}

// TestCatalog_Reload verifies that a reload publishes a complete snapshot.
func TestCatalog_Reload(t *testing.T) {
	loadedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	metrics := testutils.NewMockMetrics()
	c := newTestCatalog(t,
		Source{Root: "/ann", FS: testutils.AnnotationTree()},
		Source{Root: "/eval", FS: testutils.EvaluationTree()},
		WithMetrics(metrics),
		WithClock(func() time.Time { return loadedAt }),
	)
	assert.Nil(t, c.Snapshot())

	snap, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, c.Snapshot())

	assert.Equal(t, "/ann", snap.Annotations.Root)
	assert.Equal(t, "/eval", snap.Evaluations.Root)
	assert.Equal(t, loadedAt, snap.LoadedAt)
	assert.Len(t, snap.Annotations.Tasks, 3)
	assert.Len(t, snap.Index.BatchUsageInPredictions(testutils.JuneBatch), 1)
	assert.Empty(t, snap.Revisions)
	assert.Empty(t, snap.Preflight)
	require.NoError(t, snap.PublishAllowed())

	// One malformed prediction name plus two unknown batch references.
	require.Len(t, snap.Warnings, 3)
	assert.Equal(t, domain.WarningMalformedName, snap.Warnings[0].Kind)
	assert.Equal(t, domain.WarningUnknownBatch, snap.Warnings[1].Kind)

	assert.Equal(t, 1.0, metrics.Counter(ports.MetricReloads, map[string]string{"outcome": "success"}))
	assert.Equal(t, 1, metrics.Latencies(ports.MetricReload))
	assert.Equal(t, 3.0, metrics.Gauge(ports.MetricEntities, map[string]string{"kind": "tasks"}))
	assert.Equal(t, 2.0, metrics.Gauge(ports.MetricEntities, map[string]string{"kind": "predictions"}))
	assert.Equal(t, 2.0, metrics.Gauge(ports.MetricWarnings, map[string]string{"kind": string(domain.WarningUnknownBatch)}))
}

// TestCatalog_ReloadFailureKeepsSnapshot verifies that a failed reload
// never replaces the published snapshot.
func TestCatalog_ReloadFailureKeepsSnapshot(t *testing.T) {
	annFS := &swapFS{cur: testutils.AnnotationTree()}
	metrics := testutils.NewMockMetrics()
	c := newTestCatalog(t,
		Source{FS: annFS},
		Source{FS: testutils.EvaluationTree()},
		WithMetrics(metrics),
	)

	first, err := c.Reload(context.Background())
	require.NoError(t, err)

	annFS.set(os.DirFS(filepath.Join(t.TempDir(), "gone")))
	_, err = c.Reload(context.Background())
	require.ErrorIs(t, err, domain.ErrRootNotFound)

	assert.Same(t, first, c.Snapshot())
	assert.Equal(t, 1.0, metrics.Counter(ports.MetricReloads, map[string]string{"outcome": "failure"}))
}

// TestCatalog_ConcurrentReloads runs reloads and readers in parallel.
func TestCatalog_ConcurrentReloads(t *testing.T) {
	c := newTestCatalog(t,
		Source{FS: testutils.AnnotationTree()},
		Source{FS: testutils.EvaluationTree()},
	)
	_, err := c.Reload(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := c.Reload(context.Background()); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			snap := c.Snapshot()
			if _, err := snap.Annotations.Compare(testutils.SceneTask, testutils.JuneBatch); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// TestCatalog_Checkout verifies that switching revisions replaces the whole
// index so that nothing from the previous revision survives.
func TestCatalog_Checkout(t *testing.T) {
	devTree := fstest.MapFS{
		"batches/2023-jan.txt":    {Data: []byte("id-1\n")},
		"dev-only/golds/id-1.txt": {Data: []byte("x")},
	}
	annFS := &swapFS{cur: testutils.AnnotationTree()}
	vcs := testutils.NewMockVCS("main", map[string]string{
		"main": "1111111111111111",
		"dev":  "2222222222222222",
	})
	vcs.OnCheckout = func(branch string) {
		if branch == "dev" {
			annFS.set(devTree)
		}
	}

	c := newTestCatalog(t,
		Source{FS: annFS, VCS: vcs},
		Source{FS: testutils.EvaluationTree()},
	)
	snap, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ports.Revision{Commit: "1111111111111111", Short: "11111111", Branch: "main"}, snap.Revisions[AnnotationsRepository])

	revs, err := c.Revisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{AnnotationsRepository: {"dev", "main"}}, revs)

	snap, err = c.Checkout(context.Background(), AnnotationsRepository, "dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-only"}, snap.Annotations.TaskNames())
	assert.Equal(t, []string{"2023-jan"}, snap.Annotations.BatchNames())
	assert.Equal(t, "dev", snap.Revisions[AnnotationsRepository].Branch)
	assert.Len(t, snap.Index.Warnings(), 4, "every evaluation reference is now unknown")
	assert.Equal(t, []string{"dev"}, vcs.Checkouts())

	_, err = c.Checkout(context.Background(), AnnotationsRepository, "missing")
	require.ErrorIs(t, err, ports.ErrRevisionNotFound)
	assert.Same(t, snap, c.Snapshot())

	_, err = c.Checkout(context.Background(), EvaluationsRepository, "main")
	require.ErrorIs(t, err, ports.ErrVCSUnavailable)

	_, err = c.Checkout(context.Background(), "other", "main")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// TestCatalog_Preflight verifies that working tree state reaches the
// snapshot and blocks publishing when tracked files changed.
func TestCatalog_Preflight(t *testing.T) {
	annVCS := testutils.NewMockVCS("main", map[string]string{"main": "abc"})
	annVCS.Status = ports.WorkingTreeStatus{Untracked: []string{"notes.txt"}}
	evalVCS := testutils.NewMockVCS("main", map[string]string{"main": "def"})
	evalVCS.Status = ports.WorkingTreeStatus{Changes: []ports.FileChange{{ChangeType: "M", Path: "sr-eval/README.md"}}}

	c := newTestCatalog(t,
		Source{FS: testutils.AnnotationTree(), VCS: annVCS},
		Source{FS: testutils.EvaluationTree(), VCS: evalVCS},
	)
	snap, err := c.Reload(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Preflight, 2)
	assert.Equal(t, domain.WarningUntrackedFiles, snap.Preflight[0].Kind)
	assert.Equal(t, domain.WarningDirtyWorkingTree, snap.Preflight[1].Kind)
	assert.Len(t, snap.Warnings, 5)
	require.ErrorIs(t, snap.PublishAllowed(), domain.ErrPublishBlocked)
}

// TestCatalog_VCSFailureDoesNotFailReload checks that version-control errors
// only cost the revision information.
func TestCatalog_VCSFailureDoesNotFailReload(t *testing.T) {
	vcs := testutils.NewMockVCS("main", nil)
	vcs.Err = errors.New("not a git repository")

	c := newTestCatalog(t,
		Source{FS: testutils.AnnotationTree(), VCS: vcs},
		Source{FS: testutils.EvaluationTree()},
	)
	snap, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Revisions)
	assert.Empty(t, snap.Preflight)

	_, err = c.Revisions(context.Background())
	require.Error(t, err)
}
