package application

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/clamsproject/dashboard/internal/domain"
	"github.com/clamsproject/dashboard/internal/ports"
)

// Snapshot is one consistent, immutable view of both repositories. Readers
// obtain the current snapshot from a Catalog and may keep using it while a
// reload builds its successor.
type Snapshot struct {
	Annotations *domain.AnnotationRepository
	Evaluations *domain.EvaluationRepository
	Index       *CrossIndex

	// Revisions holds the checked-out revision per repository name. A
	// repository without version control has no entry.
	Revisions map[string]ports.Revision

	// Preflight holds the working tree warnings of both repositories.
	Preflight []domain.Warning

	// Warnings holds every warning of the snapshot: naming problems,
	// unknown batch references and the preflight warnings.
	Warnings []domain.Warning

	LoadedAt time.Time
}

// PublishAllowed reports whether derived output may be published from this
// snapshot.
func (s *Snapshot) PublishAllowed() error { return PublishAllowed(s.Preflight) }

// Source is one repository working copy the catalog loads from.
type Source struct {
	// Root is the working copy directory, used in logs and as the
	// repository root of the loaded index.
	Root string
	// FS is the tree the loader reads.
	FS fs.FS
	// VCS is optional. Without it the snapshot carries no revision or
	// working tree warnings for the repository and checkout is refused.
	VCS ports.VersionControl
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) CatalogOption {
	return func(c *Catalog) { c.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) CatalogOption {
	return func(c *Catalog) { c.metrics = m }
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) { c.now = now }
}

// Catalog publishes snapshots of the annotation and evaluation
// repositories. A reload builds a complete snapshot and swaps it in only on
// success; a failed reload leaves the previous snapshot in place. Catalog is
// safe for concurrent use.
type Catalog struct {
	layout  Layout
	sources map[string]Source

	logger  *zap.Logger
	metrics ports.MetricsCollector
	now     func() time.Time

	current atomic.Pointer[Snapshot]
	sf      singleflight.Group

	// tree is held for writing while a checkout rewrites a working copy so
	// that no reload observes a half-switched tree.
	tree sync.RWMutex
}

// NewCatalog creates a catalog over the two sources. No snapshot exists
// until the first successful Reload.
func NewCatalog(layout Layout, annotations, evaluations Source, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		layout: layout,
		sources: map[string]Source{
			AnnotationsRepository: annotations,
			EvaluationsRepository: evaluations,
		},
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current snapshot, or nil before the first successful
// reload.
func (c *Catalog) Snapshot() *Snapshot { return c.current.Load() }

// Reload rebuilds the snapshot from the working copies. Concurrent calls
// share a single rebuild. On failure the previous snapshot stays current
// and the error is returned.
func (c *Catalog) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, shared := c.sf.Do("reload", func() (any, error) {
		return c.reload(ctx)
	})
	if shared {
		c.logger.Debug("reload coalesced")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *Catalog) reload(ctx context.Context) (snap *Snapshot, err error) {
	ctx, span := tracer.Start(ctx, "application.Catalog.Reload")
	defer func() { endSpan(span, err) }()

	c.tree.RLock()
	defer c.tree.RUnlock()

	start := time.Now()
	snap, err = c.build(ctx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.metrics.RecordLatency(ports.MetricReload, elapsed, map[string]string{"outcome": outcome})
	c.metrics.RecordCounter(ports.MetricReloads, 1, map[string]string{"outcome": outcome})

	if err != nil {
		c.logger.Error("reload failed, keeping previous snapshot",
			zap.Error(err),
			zap.Duration("duration", elapsed),
		)
		return nil, err
	}

	c.current.Store(snap)
	c.recordSnapshot(snap)
	span.SetAttributes(attribute.Int("dashboard.warnings", len(snap.Warnings)))
	c.logger.Info("catalog reloaded",
		zap.Int("tasks", len(snap.Annotations.Tasks)),
		zap.Int("batches", len(snap.Annotations.Batches)),
		zap.Int("evaluations", len(snap.Evaluations.Evaluations)),
		zap.Int("warnings", len(snap.Warnings)),
		zap.Duration("duration", elapsed),
	)
	return snap, nil
}

// build loads both repositories and their version-control state in
// parallel and assembles a snapshot.
func (c *Catalog) build(ctx context.Context) (*Snapshot, error) {
	ann := c.sources[AnnotationsRepository]
	eval := c.sources[EvaluationsRepository]

	var (
		annotations *domain.AnnotationRepository
		evaluations *domain.EvaluationRepository
		mu          sync.Mutex
		revisions   = make(map[string]ports.Revision)
		preflight   = make(map[string][]domain.Warning)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		repo, err := LoadAnnotations(gctx, ann.FS, c.layout)
		if err != nil {
			return err
		}
		repo.Root = ann.Root
		annotations = repo
		return nil
	})
	g.Go(func() error {
		repo, err := LoadEvaluations(gctx, eval.FS, c.layout)
		if err != nil {
			return err
		}
		repo.Root = eval.Root
		evaluations = repo
		return nil
	})
	for name, src := range c.sources {
		if src.VCS == nil {
			continue
		}
		g.Go(func() error {
			rev, warnings, ok := c.inspect(gctx, name, src.VCS)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				revisions[name] = rev
			}
			preflight[name] = warnings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Annotations: annotations,
		Evaluations: evaluations,
		Index:       BuildCrossIndex(annotations, evaluations),
		Revisions:   revisions,
		LoadedAt:    c.now(),
	}
	for _, name := range []string{AnnotationsRepository, EvaluationsRepository} {
		snap.Preflight = append(snap.Preflight, preflight[name]...)
	}
	snap.Warnings = append(snap.Warnings, evaluations.Warnings()...)
	snap.Warnings = append(snap.Warnings, snap.Index.Warnings()...)
	snap.Warnings = append(snap.Warnings, snap.Preflight...)
	return snap, nil
}

// inspect reads the revision and working tree state of one repository.
// Version-control failures are logged and never fail a reload: the index is
// built from the files alone.
func (c *Catalog) inspect(ctx context.Context, name string, vcs ports.VersionControl) (ports.Revision, []domain.Warning, bool) {
	rev, err := vcs.CurrentRevision(ctx)
	if err != nil {
		c.logger.Warn("cannot read revision", zap.String("repository", name), zap.Error(err))
		return ports.Revision{}, nil, false
	}
	status, err := vcs.WorkingTreeStatus(ctx)
	if err != nil {
		c.logger.Warn("cannot read working tree status", zap.String("repository", name), zap.Error(err))
		return rev, nil, true
	}
	return rev, CheckWorkingTree(name, status), true
}

func (c *Catalog) recordSnapshot(s *Snapshot) {
	var predictions, reports int
	for _, e := range s.Evaluations.Evaluations {
		predictions += len(e.Predictions)
		reports += len(e.Reports)
	}
	entities := map[string]int{
		"tasks":       len(s.Annotations.Tasks),
		"batches":     len(s.Annotations.Batches),
		"evaluations": len(s.Evaluations.Evaluations),
		"predictions": predictions,
		"reports":     reports,
	}
	for kind, n := range entities {
		c.metrics.RecordGauge(ports.MetricEntities, float64(n), map[string]string{"kind": kind})
	}

	byKind := map[domain.WarningKind]int{
		domain.WarningMalformedName:    0,
		domain.WarningUnknownBatch:     0,
		domain.WarningDirtyWorkingTree: 0,
		domain.WarningUntrackedFiles:   0,
	}
	for _, w := range s.Warnings {
		byKind[w.Kind]++
	}
	for kind, n := range byKind {
		c.metrics.RecordGauge(ports.MetricWarnings, float64(n), map[string]string{"kind": string(kind)})
	}
}

// Revisions lists the revisions that can be checked out, per repository.
// Repositories without version control are omitted.
func (c *Catalog) Revisions(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string)
	for name, src := range c.sources {
		if src.VCS == nil {
			continue
		}
		revs, err := src.VCS.ListRevisions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list revisions of %s: %w", name, err)
		}
		out[name] = revs
	}
	return out, nil
}

// Checkout switches one repository to revision and reloads. The new
// snapshot replaces the old one completely, so no entity from the previous
// revision survives.
func (c *Catalog) Checkout(ctx context.Context, repository, revision string) (*Snapshot, error) {
	src, ok := c.sources[repository]
	if !ok {
		return nil, domain.NotFoundError("repository", repository)
	}
	if src.VCS == nil {
		return nil, fmt.Errorf("checkout %s: %w", repository, ports.ErrVCSUnavailable)
	}

	c.tree.Lock()
	err := src.VCS.Checkout(ctx, revision)
	c.tree.Unlock()
	if err != nil {
		return nil, fmt.Errorf("checkout %s at %s: %w", repository, revision, err)
	}
	c.logger.Info("checked out revision",
		zap.String("repository", repository),
		zap.String("revision", revision),
	)

	// A reload that started before the checkout must not be shared.
	c.sf.Forget("reload")
	return c.Reload(ctx)
}

// noopMetrics discards all metrics.
type noopMetrics struct{}

func (noopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (noopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)         {}

var _ ports.MetricsCollector = noopMetrics{}
