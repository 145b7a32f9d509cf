package application

import (
	"context"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clamsproject/dashboard/internal/domain"
)

// LoadEvaluations scans the evaluation repository in fsys. A directory is an
// evaluation when its name ends with the evaluation suffix or when it holds
// an evaluation manifest; a manifest with ignore set excludes it. Naming
// problems in prediction batches and reports become warnings on the
// affected entity and never fail the load.
func LoadEvaluations(ctx context.Context, fsys fs.FS, layout Layout) (repo *domain.EvaluationRepository, err error) {
	ctx, span := tracer.Start(ctx, "application.LoadEvaluations")
	defer func() { endSpan(span, err) }()

	l := evaluationLoader{
		scanner: scanner{repository: EvaluationsRepository, fsys: fsys},
		layout:  layout,
	}
	repo, err = l.load(ctx)
	if err != nil {
		return nil, err
	}

	var predictions, reports int
	for _, e := range repo.Evaluations {
		predictions += len(e.Predictions)
		reports += len(e.Reports)
	}
	span.SetAttributes(
		attribute.Int("dashboard.evaluations", len(repo.Evaluations)),
		attribute.Int("dashboard.predictions", predictions),
		attribute.Int("dashboard.reports", reports),
	)
	return repo, nil
}

type evaluationLoader struct {
	scanner
	layout Layout
}

func (l evaluationLoader) load(ctx context.Context) (*domain.EvaluationRepository, error) {
	entries, err := l.readDir(".")
	if err != nil {
		return nil, err
	}
	readme, _, err := l.optionalText(l.layout.RootReadme)
	if err != nil {
		return nil, err
	}

	var evaluations []*domain.Evaluation
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || hidden(entry.Name()) {
			continue
		}
		e, err := l.evaluation(entry.Name())
		if err != nil {
			return nil, err
		}
		if e != nil {
			evaluations = append(evaluations, e)
		}
	}
	return domain.NewEvaluationRepository(".", readme, evaluations), nil
}

// evaluation builds the evaluation for directory name, or returns nil when
// the directory does not qualify.
func (l evaluationLoader) evaluation(name string) (*domain.Evaluation, error) {
	manifest, err := l.manifest(path.Join(name, l.layout.EvaluationManifest))
	if err != nil {
		return nil, err
	}

	var qualification domain.Qualification
	switch {
	case manifest != nil && manifest.Ignore:
		return nil, nil
	case manifest != nil:
		qualification = domain.ByManifest
	case strings.HasSuffix(name, l.layout.EvaluationSuffix):
		qualification = domain.ByConvention
	default:
		return nil, nil
	}

	readme, _, err := l.optionalText(path.Join(name, l.layout.EvaluationReadme))
	if err != nil {
		return nil, err
	}
	entries, err := l.readDir(name)
	if err != nil {
		return nil, err
	}

	var (
		scripts     []string
		predictions []*domain.PredictionBatch
		reports     []*domain.Report
	)
	for _, entry := range entries {
		child := entry.Name()
		p := path.Join(name, child)
		switch {
		case entry.IsDir() && strings.HasPrefix(child, l.layout.PredictionsPrefix):
			pb, err := l.predictionBatch(p)
			if err != nil {
				return nil, err
			}
			predictions = append(predictions, pb)
		case !entry.Type().IsRegular():
			// Other directories and special files are not indexed.
		case strings.HasPrefix(child, l.layout.ReportsPrefix):
			content, _, err := l.optionalText(p)
			if err != nil {
				return nil, err
			}
			reports = append(reports, domain.NewReport(p, content))
		case matchGlob(l.layout.ScriptGlob, child):
			scripts = append(scripts, child)
		}
	}

	return domain.NewEvaluation(domain.EvaluationParams{
		Path:          name,
		Readme:        readme,
		Scripts:       scripts,
		Predictions:   predictions,
		Reports:       reports,
		Qualification: qualification,
		Manifest:      manifest,
		FS:            l.fsys,
	}), nil
}

// predictionBatch reads a prediction batch directory: the files matching the
// prediction glob and an optional readme.
func (l evaluationLoader) predictionBatch(p string) (*domain.PredictionBatch, error) {
	names, err := l.regularFiles(p)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, n := range names {
		if matchGlob(l.layout.PredictionGlob, n) {
			files = append(files, n)
		}
	}

	text, ok, err := l.optionalText(path.Join(p, l.layout.EvaluationReadme))
	if err != nil {
		return nil, err
	}
	var readme *string
	if ok {
		readme = &text
	}
	return domain.NewPredictionBatch(l.fsys, p, readme, files), nil
}

// matchGlob reports whether name matches pattern. Patterns are validated
// with the configuration, so a malformed pattern simply never matches.
func matchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
