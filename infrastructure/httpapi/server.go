// Package httpapi serves the current snapshot as a read-only JSON API.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clamsproject/dashboard/infrastructure/middleware"
	"github.com/clamsproject/dashboard/internal/application"
	"github.com/clamsproject/dashboard/internal/ports"
)

const (
	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	// maxBodySize bounds request bodies; only checkout takes one.
	maxBodySize int64 = 1 << 16
)

// Catalog is the part of the application catalog the API needs.
type Catalog interface {
	Snapshot() *application.Snapshot
	Reload(ctx context.Context) (*application.Snapshot, error)
	Checkout(ctx context.Context, repository, revision string) (*application.Snapshot, error)
	Revisions(ctx context.Context) (map[string][]string, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records per-route request metrics.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer exposes g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithReloadLimit sets the token bucket guarding POST /api/reload and
// POST /api/checkout.
func WithReloadLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.reloadLimit = limit
		s.reloadBurst = burst
	}
}

// WithMaxFileSize refuses file contents larger than limit bytes with 413.
// Zero or less serves every file.
func WithMaxFileSize(limit int64) Option {
	return func(s *Server) { s.maxFileSize = limit }
}

// Server is the HTTP front end of a Catalog.
type Server struct {
	catalog  Catalog
	logger   *zap.Logger
	metrics  ports.MetricsCollector
	gatherer prometheus.Gatherer

	reloadLimit rate.Limit
	reloadBurst int
	maxFileSize int64
}

// NewServer creates a Server over catalog.
func NewServer(catalog Catalog, opts ...Option) *Server {
	s := &Server{
		catalog:     catalog,
		logger:      zap.NewNop(),
		reloadLimit: rate.Limit(0.2),
		reloadBurst: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.withSnapshot(s.status))
	mux.HandleFunc("GET /api/tasks", s.withSnapshot(s.listTasks))
	mux.HandleFunc("GET /api/tasks/{name}", s.withSnapshot(s.getTask))
	mux.HandleFunc("GET /api/tasks/{name}/batches", s.withSnapshot(s.taskBatches))
	mux.HandleFunc("GET /api/tasks/{name}/golds/{path...}", s.withSnapshot(s.goldFile))
	mux.HandleFunc("GET /api/tasks/{name}/drops/{drop}/{file}", s.withSnapshot(s.dropFile))
	mux.HandleFunc("GET /api/batches", s.withSnapshot(s.listBatches))
	mux.HandleFunc("GET /api/batches/{name}", s.withSnapshot(s.getBatch))
	mux.HandleFunc("GET /api/batches/{name}/tasks", s.withSnapshot(s.batchTasks))
	mux.HandleFunc("GET /api/batches/{name}/usage", s.withSnapshot(s.batchUsage))
	mux.HandleFunc("GET /api/evaluations", s.withSnapshot(s.listEvaluations))
	mux.HandleFunc("GET /api/evaluations/{name}", s.withSnapshot(s.getEvaluation))
	mux.HandleFunc("GET /api/evaluations/{name}/predictions/{batch}", s.withSnapshot(s.getPrediction))
	mux.HandleFunc("GET /api/evaluations/{name}/predictions/{batch}/{file}", s.withSnapshot(s.predictionFile))
	mux.HandleFunc("GET /api/evaluations/{name}/reports/{report}", s.withSnapshot(s.reportFile))
	mux.HandleFunc("GET /api/compare", s.withSnapshot(s.compare))
	mux.HandleFunc("GET /api/warnings", s.withSnapshot(s.warnings))
	mux.HandleFunc("GET /api/revisions", s.revisions)

	// Reload and checkout share one bucket; both rebuild the index.
	limited := middleware.RateLimitMiddleware(s.reloadLimit, s.reloadBurst)
	mux.Handle("POST /api/reload", limited(http.HandlerFunc(s.reload)))
	mux.Handle("POST /api/checkout", limited(http.HandlerFunc(s.checkout)))

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	mws := []middleware.Middleware{
		middleware.TracingMiddleware("dashboard-api"),
		middleware.LoggingMiddleware(s.logger),
	}
	if s.metrics != nil {
		mws = append(mws, middleware.MetricsMiddleware(s.metrics))
	}
	return middleware.Chain(mux, mws...)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("serving", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
