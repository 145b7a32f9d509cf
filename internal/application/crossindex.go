package application

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/clamsproject/dashboard/internal/domain"
)

// maxSuggestions bounds the "did you mean" list of an unknown batch warning.
const maxSuggestions = 3

// foldCaser is a package-level Unicode case folder for batch suggestions.
var foldCaser = cases.Fold()

// Usage names one evaluation item, a prediction batch or a report, that
// refers to an annotation batch.
type Usage struct {
	Evaluation string `json:"evaluation"`
	Item       string `json:"item"`
}

// CrossIndex joins the evaluation repository to the annotation repository by
// batch name. It is built once per snapshot as a reverse multimap from batch
// name to the items that use it, so queries never scan the evaluations.
type CrossIndex struct {
	predictions map[string][]Usage
	reports     map[string][]Usage
	warnings    []domain.Warning
}

// BuildCrossIndex indexes every prediction batch and report of evaluations
// by the batch it references. References to batches that annotations does
// not define produce an unknown batch warning carrying the closest known
// batch names. Either repository may be nil.
func BuildCrossIndex(annotations *domain.AnnotationRepository, evaluations *domain.EvaluationRepository) *CrossIndex {
	idx := &CrossIndex{
		predictions: make(map[string][]Usage),
		reports:     make(map[string][]Usage),
	}
	if evaluations == nil {
		return idx
	}

	var known []string
	if annotations != nil {
		known = annotations.BatchNames()
	}
	isKnown := func(batch string) bool {
		return annotations != nil && annotations.HasBatch(batch)
	}

	// Evaluations and their items are visited in name order, so every usage
	// list is already sorted by evaluation and then item.
	for _, e := range evaluations.SortedEvaluations() {
		for _, pb := range e.SortedPredictions() {
			idx.predictions[pb.PredictionBatch] = append(idx.predictions[pb.PredictionBatch], Usage{Evaluation: e.Name, Item: pb.Name})
			if !isKnown(pb.PredictionBatch) {
				idx.warnings = append(idx.warnings, unknownBatchWarning("prediction batch", pb.Path, pb.PredictionBatch, known))
			}
		}
		for _, r := range e.SortedReports() {
			idx.reports[r.ReportBatch] = append(idx.reports[r.ReportBatch], Usage{Evaluation: e.Name, Item: r.Name})
			if !isKnown(r.ReportBatch) {
				idx.warnings = append(idx.warnings, unknownBatchWarning("report", r.Path, r.ReportBatch, known))
			}
		}
	}
	return idx
}

// BatchUsageInPredictions returns the prediction batches that were produced
// for batch. An unknown batch yields an empty result.
func (c *CrossIndex) BatchUsageInPredictions(batch string) []Usage {
	return slices.Clone(c.predictions[batch])
}

// BatchUsageInReports returns the reports computed for batch.
func (c *CrossIndex) BatchUsageInReports(batch string) []Usage {
	return slices.Clone(c.reports[batch])
}

// Warnings returns the unknown batch warnings found while indexing.
func (c *CrossIndex) Warnings() []domain.Warning {
	return slices.Clone(c.warnings)
}

// WarningsFor returns the warnings attached to the entity at path p.
func (c *CrossIndex) WarningsFor(p string) []domain.Warning {
	var out []domain.Warning
	for _, w := range c.warnings {
		if w.Entity == p {
			out = append(out, w)
		}
	}
	return out
}

func unknownBatchWarning(kind, entity, batch string, known []string) domain.Warning {
	w := domain.Warning{
		Kind:    domain.WarningUnknownBatch,
		Entity:  entity,
		Message: fmt.Sprintf("%s %q refers to unknown batch %q", kind, entity, batch),
	}
	if s := SuggestBatch(batch, known); len(s) > 0 {
		w.Details = []string{"did you mean: " + strings.Join(s, ", ")}
	}
	return w
}

// SuggestBatch returns up to three candidates close to name, nearest first.
// Distances are computed on case-folded names; a candidate qualifies when
// its distance is at most a third of the longer name, and never less than
// two edits.
func SuggestBatch(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	folded := foldCaser.String(name)

	var matches []scored
	for _, c := range candidates {
		if c == name {
			continue
		}
		fc := foldCaser.String(c)
		limit := max(2, max(len([]rune(folded)), len([]rune(fc)))/3)
		if d := levenshtein.ComputeDistance(folded, fc); d <= limit {
			matches = append(matches, scored{name: c, dist: d})
		}
	}
	slices.SortFunc(matches, func(a, b scored) int {
		if n := cmp.Compare(a.dist, b.dist); n != 0 {
			return n
		}
		return strings.Compare(a.name, b.name)
	})

	out := make([]string, 0, min(len(matches), maxSuggestions))
	for i := 0; i < len(matches) && i < maxSuggestions; i++ {
		out = append(out, matches[i].name)
	}
	return out
}
