package domain

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// NameSeparator splits the components of prediction batch and report names.
const NameSeparator = "@"

// Evaluation is one evaluation run directory with its readme, scripts,
// prediction batches and reports.
type Evaluation struct {
	Node

	Readme        string        `json:"readme"`
	Scripts       []string      `json:"scripts"`
	Qualification Qualification `json:"qualification"`
	Manifest      *Manifest     `json:"manifest,omitempty"`

	Predictions map[string]*PredictionBatch `json:"-"`
	Reports     map[string]*Report          `json:"-"`

	fsys fs.FS
}

// EvaluationParams collects everything a loader resolves for an evaluation
// directory.
type EvaluationParams struct {
	Path          string
	Readme        string
	Scripts       []string
	Predictions   []*PredictionBatch
	Reports       []*Report
	Qualification Qualification
	Manifest      *Manifest
	FS            fs.FS
}

// NewEvaluation assembles an Evaluation.
func NewEvaluation(p EvaluationParams) *Evaluation {
	e := &Evaluation{
		Node:          NewNode(p.Path),
		Readme:        p.Readme,
		Scripts:       p.Scripts,
		Qualification: p.Qualification,
		Manifest:      p.Manifest,
		Predictions:   make(map[string]*PredictionBatch, len(p.Predictions)),
		Reports:       make(map[string]*Report, len(p.Reports)),
		fsys:          p.FS,
	}
	for _, pb := range p.Predictions {
		e.Predictions[pb.Name] = pb
	}
	for _, r := range p.Reports {
		e.Reports[r.Name] = r
	}
	return e
}

// PredictionNames returns the prediction batch names in ascending order.
func (e *Evaluation) PredictionNames() []string { return sortedKeys(e.Predictions) }

// ReportNames returns the report names in ascending order.
func (e *Evaluation) ReportNames() []string { return sortedKeys(e.Reports) }

// SortedPredictions returns the prediction batches ordered by name.
func (e *Evaluation) SortedPredictions() []*PredictionBatch {
	out := make([]*PredictionBatch, 0, len(e.Predictions))
	for _, name := range e.PredictionNames() {
		out = append(out, e.Predictions[name])
	}
	return out
}

// SortedReports returns the reports ordered by name.
func (e *Evaluation) SortedReports() []*Report {
	out := make([]*Report, 0, len(e.Reports))
	for _, name := range e.ReportNames() {
		out = append(out, e.Reports[name])
	}
	return out
}

// Prediction looks up a prediction batch by directory name.
func (e *Evaluation) Prediction(name string) (*PredictionBatch, bool) {
	pb, ok := e.Predictions[name]
	return pb, ok
}

// Report looks up a report by file name.
func (e *Evaluation) Report(name string) (*Report, bool) {
	r, ok := e.Reports[name]
	return r, ok
}

// ScriptContent reads one of the evaluation's script files.
func (e *Evaluation) ScriptContent(name string) (string, error) {
	return readText(e.fsys, path.Join(e.Path, name))
}

// Warnings collects the naming warnings of all predictions and reports.
func (e *Evaluation) Warnings() []Warning {
	var out []Warning
	for _, pb := range e.SortedPredictions() {
		out = append(out, pb.Warnings...)
	}
	for _, r := range e.SortedReports() {
		out = append(out, r.Warnings...)
	}
	return out
}

// PredictionBatch is a directory of system output files produced for one
// annotation batch. Its name has the form prefix@name@batch; the name part
// may itself contain the separator.
type PredictionBatch struct {
	Node

	// PredictionName is everything between the prefix and the batch.
	PredictionName string `json:"prediction_name"`
	// PredictionBatch is the referenced annotation batch name.
	PredictionBatch string `json:"prediction_batch"`

	Readme    string    `json:"readme"`
	HasReadme bool      `json:"has_readme"`
	Files     []string  `json:"files"`
	Warnings  []Warning `json:"warnings,omitempty"`

	fsys fs.FS
}

// ParsedName holds the components of a prediction batch directory name.
type ParsedName struct {
	Prefix string
	Name   string
	Batch  string
	// Complete is false when fewer than three components were present.
	Complete bool
}

// ParsePredictionName splits a prediction batch directory name into its
// prefix, prediction name and referenced batch. Short names still produce
// a result: the last component is always taken as the batch.
func ParsePredictionName(name string) ParsedName {
	parts := strings.Split(name, NameSeparator)
	pn := ParsedName{
		Prefix:   parts[0],
		Batch:    parts[len(parts)-1],
		Complete: len(parts) >= 3,
	}
	if len(parts) > 2 {
		pn.Name = strings.Join(parts[1:len(parts)-1], NameSeparator)
	}
	return pn
}

// NewPredictionBatch creates a PredictionBatch for the directory at p. The
// readme is optional; files must already be sorted.
func NewPredictionBatch(fsys fs.FS, p string, readme *string, files []string) *PredictionBatch {
	pb := &PredictionBatch{Node: NewNode(p), Files: files, fsys: fsys}
	parsed := ParsePredictionName(pb.Name)
	pb.PredictionName = parsed.Name
	pb.PredictionBatch = parsed.Batch
	if readme != nil {
		pb.Readme, pb.HasReadme = *readme, true
	}
	if !parsed.Complete {
		pb.Warnings = append(pb.Warnings, Warning{
			Kind:    WarningMalformedName,
			Entity:  p,
			Message: fmt.Sprintf("missing component in prediction batch name %q", pb.Name),
		})
	}
	return pb
}

// Len returns the number of prediction files.
func (pb *PredictionBatch) Len() int { return len(pb.Files) }

// FileNames returns the prediction file names in ascending order.
func (pb *PredictionBatch) FileNames() []string { return pb.Files }

// FileContent reads a prediction file, pretty-printing structured data.
func (pb *PredictionBatch) FileContent(name string) (string, error) {
	return readDisplayText(pb.fsys, path.Join(pb.Path, name), ".json", ".mmif")
}

// FileSize returns the size in bytes of a prediction file.
func (pb *PredictionBatch) FileSize(name string) (int64, error) {
	if pb.fsys == nil {
		return 0, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	info, err := fs.Stat(pb.fsys, path.Join(pb.Path, name))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return info.Size(), nil
}

// Report is a generated metrics document for one tool and batch. Its name
// has the form prefix...@tool@batch.ext.
type Report struct {
	Node

	ReportTool  string    `json:"report_tool"`
	ReportBatch string    `json:"report_batch"`
	Content     string    `json:"content"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

// NewReport creates a Report for the file at p with the given content.
func NewReport(p, content string) *Report {
	r := &Report{Node: NewNode(p), Content: content}
	nameParts := strings.Split(r.Name, NameSeparator)
	stemParts := strings.Split(r.Stem, NameSeparator)
	r.ReportBatch = stemParts[len(stemParts)-1]
	if len(nameParts) >= 2 {
		r.ReportTool = nameParts[len(nameParts)-2]
	} else {
		r.Warnings = append(r.Warnings, Warning{
			Kind:    WarningMalformedName,
			Entity:  p,
			Message: fmt.Sprintf("missing tool component in report name %q", r.Name),
		})
	}
	return r
}

// DisplayName renders the separator as an arrow for human consumption.
func DisplayName(name string) string {
	return strings.ReplaceAll(name, NameSeparator, " ⟹ ")
}
