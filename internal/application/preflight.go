package application

import (
	"fmt"

	"github.com/clamsproject/dashboard/internal/domain"
	"github.com/clamsproject/dashboard/internal/ports"
)

// CheckWorkingTree turns the status of a working copy into warnings. Changes
// to tracked files are fatal: pages generated from them would not match the
// commit they link to. Untracked files are reported but do not block.
func CheckWorkingTree(repository string, status ports.WorkingTreeStatus) []domain.Warning {
	var warnings []domain.Warning
	if len(status.Changes) > 0 {
		details := make([]string, 0, len(status.Changes))
		for _, c := range status.Changes {
			details = append(details, fmt.Sprintf("%s %s", c.ChangeType, c.Path))
		}
		warnings = append(warnings, domain.Warning{
			Kind:    domain.WarningDirtyWorkingTree,
			Entity:  repository,
			Message: fmt.Sprintf("the %s repository has uncommitted changes to tracked files", repository),
			Details: details,
			Fatal:   true,
		})
	}
	if len(status.Untracked) > 0 {
		warnings = append(warnings, domain.Warning{
			Kind:    domain.WarningUntrackedFiles,
			Entity:  repository,
			Message: fmt.Sprintf("the %s repository has untracked files", repository),
			Details: status.Untracked,
		})
	}
	return warnings
}

// PublishAllowed returns ErrPublishBlocked when any warning is fatal.
func PublishAllowed(warnings []domain.Warning) error {
	for _, w := range warnings {
		if w.Fatal {
			return fmt.Errorf("%s: %w", w.Message, domain.ErrPublishBlocked)
		}
	}
	return nil
}
