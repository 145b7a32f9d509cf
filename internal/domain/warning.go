package domain

import (
	"strings"
)

// WarningKind classifies a non-fatal problem found while indexing or
// checking a repository.
type WarningKind string

const (
	// WarningMalformedName flags a prediction batch or report name that does
	// not have the expected number of components.
	WarningMalformedName WarningKind = "malformed_name"

	// WarningUnknownBatch flags a prediction batch or report that refers to a
	// batch missing from the annotation repository.
	WarningUnknownBatch WarningKind = "unknown_batch"

	// WarningDirtyWorkingTree flags tracked files that differ from the
	// checked-out revision.
	WarningDirtyWorkingTree WarningKind = "dirty_working_tree"

	// WarningUntrackedFiles flags files that are not under version control.
	WarningUntrackedFiles WarningKind = "untracked_files"
)

// Warning is attached to the entity it concerns and rendered inline by
// consumers. Fatal warnings block publishing derived output but never block
// browsing.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Entity  string      `json:"entity"`
	Message string      `json:"message"`
	Details []string    `json:"details,omitempty"`
	Fatal   bool        `json:"fatal"`
}

// String renders the warning with one detail per line.
func (w Warning) String() string {
	var sb strings.Builder
	sb.WriteString("WARNING: ")
	sb.WriteString(w.Message)
	for _, d := range w.Details {
		sb.WriteString("\n")
		sb.WriteString(d)
	}
	return sb.String()
}
