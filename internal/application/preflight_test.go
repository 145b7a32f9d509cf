package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clamsproject/dashboard/internal/domain"
	"github.com/clamsproject/dashboard/internal/ports"
)

// TestCheckWorkingTree tests the warnings derived from working tree states.
func TestCheckWorkingTree(t *testing.T) {
	tests := []struct {
		name      string
		status    ports.WorkingTreeStatus
		wantKinds []domain.WarningKind
		wantFatal bool
	}{
		{
			name:   "clean",
			status: ports.WorkingTreeStatus{},
		},
		{
			name:      "untracked only",
			status:    ports.WorkingTreeStatus{Untracked: []string{"scratch.txt"}},
			wantKinds: []domain.WarningKind{domain.WarningUntrackedFiles},
		},
		{
			name: "tracked changes",
			status: ports.WorkingTreeStatus{Changes: []ports.FileChange{
				{ChangeType: "M", Path: "batches/2022-jun.txt"},
				{ChangeType: "D", Path: "ner/readme.md"},
			}},
			wantKinds: []domain.WarningKind{domain.WarningDirtyWorkingTree},
			wantFatal: true,
		},
		{
			name: "both",
			status: ports.WorkingTreeStatus{
				Changes:   []ports.FileChange{{ChangeType: "A", Path: "x"}},
				Untracked: []string{"y"},
			},
			wantKinds: []domain.WarningKind{domain.WarningDirtyWorkingTree, domain.WarningUntrackedFiles},
			wantFatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := CheckWorkingTree(AnnotationsRepository, tt.status)

			var kinds []domain.WarningKind
			for _, w := range warnings {
				kinds = append(kinds, w.Kind)
				assert.Equal(t, AnnotationsRepository, w.Entity)
			}
			assert.Equal(t, tt.wantKinds, kinds)
			err := PublishAllowed(warnings)
			if tt.wantFatal {
				require.ErrorIs(t, err, domain.ErrPublishBlocked)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestCheckWorkingTree_Details verifies that every changed file is listed
// with its change type.
func TestCheckWorkingTree_Details(t *testing.T) {
	warnings := CheckWorkingTree(EvaluationsRepository, ports.WorkingTreeStatus{
		Changes: []ports.FileChange{
			{ChangeType: "M", Path: "sr-eval/README.md"},
			{ChangeType: "R", Path: "sr-eval/new.py"},
		},
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"M sr-eval/README.md", "R sr-eval/new.py"}, warnings[0].Details)
	assert.Equal(t,
		"WARNING: the evaluations repository has uncommitted changes to tracked files\nM sr-eval/README.md\nR sr-eval/new.py",
		warnings[0].String())
}
