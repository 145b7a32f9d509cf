package testutils

import (
	"context"
	"slices"
	"sync"

	"github.com/clamsproject/dashboard/internal/ports"
)

// MockVCS implements ports.VersionControl in memory. Checkout switches the
// current branch and runs OnCheckout, which tests use to rewrite the tree
// the way a real checkout would.
type MockVCS struct {
	mu sync.Mutex

	// Branch is the checked-out branch.
	Branch string
	// Commits maps branch names to commit hashes.
	Commits map[string]string
	// Status is returned by WorkingTreeStatus.
	Status ports.WorkingTreeStatus
	// Err, when set, is returned by every method.
	Err error
	// OnCheckout runs after a successful checkout.
	OnCheckout func(branch string)

	checkouts []string
}

// NewMockVCS creates a MockVCS on branch with one commit per branch.
func NewMockVCS(branch string, commits map[string]string) *MockVCS {
	return &MockVCS{Branch: branch, Commits: commits}
}

// CurrentRevision returns the commit of the current branch.
func (m *MockVCS) CurrentRevision(ctx context.Context) (ports.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return ports.Revision{}, m.Err
	}
	commit := m.Commits[m.Branch]
	short := commit
	if len(short) > 8 {
		short = short[:8]
	}
	return ports.Revision{Commit: commit, Short: short, Branch: m.Branch}, nil
}

// ListRevisions returns the branch names in ascending order.
func (m *MockVCS) ListRevisions(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	names := make([]string, 0, len(m.Commits))
	for name := range m.Commits {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Checkout switches to revision if it is a known branch.
func (m *MockVCS) Checkout(ctx context.Context, revision string) error {
	m.mu.Lock()
	if m.Err != nil {
		m.mu.Unlock()
		return m.Err
	}
	if _, ok := m.Commits[revision]; !ok {
		m.mu.Unlock()
		return ports.ErrRevisionNotFound
	}
	m.Branch = revision
	m.checkouts = append(m.checkouts, revision)
	hook := m.OnCheckout
	m.mu.Unlock()

	if hook != nil {
		hook(revision)
	}
	return nil
}

// WorkingTreeStatus returns the configured status.
func (m *MockVCS) WorkingTreeStatus(ctx context.Context) (ports.WorkingTreeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return ports.WorkingTreeStatus{}, m.Err
	}
	return m.Status, nil
}

// Checkouts returns the revisions checked out so far.
func (m *MockVCS) Checkouts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.checkouts)
}

var _ ports.VersionControl = (*MockVCS)(nil)
