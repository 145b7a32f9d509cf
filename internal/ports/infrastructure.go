// Package ports defines the interfaces between the repository index and the
// collaborators it depends on: version control and metrics.
package ports

import (
	"context"
	"time"
)

// Metric names recorded through MetricsCollector.
const (
	// MetricReload is the latency operation of a catalog reload.
	MetricReload = "catalog_reload"
	// MetricReloads counts reloads by outcome.
	MetricReloads = "catalog_reloads_total"
	// MetricEntities gauges the indexed entities by kind.
	MetricEntities = "catalog_entities"
	// MetricWarnings gauges the warnings of the current snapshot by kind.
	MetricWarnings = "catalog_warnings"
	// MetricHTTPRequest is the latency operation of an API request.
	MetricHTTPRequest = "http_request"
	// MetricHTTPRequests counts API requests by route and status.
	MetricHTTPRequests = "http_requests_total"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like reload outcomes and
	// rejected requests.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like the number of indexed tasks.
	RecordGauge(metric string, value float64, labels map[string]string)
}

// Revision identifies the checked-out state of a working copy.
type Revision struct {
	// Commit is the full commit hash.
	Commit string `json:"commit"`
	// Short is an abbreviated commit hash for display.
	Short string `json:"short"`
	// Branch is the checked-out branch, empty for a detached head.
	Branch string `json:"branch"`
}

// FileChange is one tracked file that differs from the checked-out revision.
type FileChange struct {
	// ChangeType is a single-letter code: M (modified), A (added),
	// D (deleted), R (renamed), C (copied), T (type change), U (unmerged).
	ChangeType string `json:"change_type"`
	// Path is relative to the working copy root.
	Path string `json:"path"`
}

// WorkingTreeStatus describes local differences from the recorded revision.
type WorkingTreeStatus struct {
	Changes   []FileChange `json:"changes"`
	Untracked []string     `json:"untracked"`
}

// Clean reports whether the working tree has neither changes nor untracked
// files.
func (s WorkingTreeStatus) Clean() bool {
	return len(s.Changes) == 0 && len(s.Untracked) == 0
}

// VersionControl is the narrow interface the index needs from a working copy.
// The index itself reads only the file tree; this port exists for revision
// reporting, branch switching and pre-flight checks.
type VersionControl interface {
	// CurrentRevision returns the checked-out commit and branch.
	CurrentRevision(ctx context.Context) (Revision, error)

	// ListRevisions returns the names of the revisions that can be checked
	// out, typically local branches, in ascending order.
	ListRevisions(ctx context.Context) ([]string, error)

	// Checkout switches the working copy to the given revision. Callers must
	// reload any index built from the working copy afterwards.
	Checkout(ctx context.Context, revision string) error

	// WorkingTreeStatus reports tracked modifications and untracked files.
	WorkingTreeStatus(ctx context.Context) (WorkingTreeStatus, error)
}
