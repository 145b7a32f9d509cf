package application

import (
	"context"
	"io/fs"
	"path"
	"regexp"

	"go.opentelemetry.io/otel/attribute"

	"github.com/clamsproject/dashboard/internal/domain"
)

// LoadAnnotations scans the annotation repository in fsys and returns a
// fully built repository. The load is all-or-nothing: any unreadable
// directory or malformed manifest aborts it with a LoadError, while missing
// optional files are recorded as empty text.
//
// Directories are qualified once here. A directory with a task manifest is a
// task; without one, a directory containing the golds directory is a task by
// convention. A manifest with ignore set excludes the directory.
func LoadAnnotations(ctx context.Context, fsys fs.FS, layout Layout) (repo *domain.AnnotationRepository, err error) {
	ctx, span := tracer.Start(ctx, "application.LoadAnnotations")
	defer func() { endSpan(span, err) }()

	dataDrop, err := layout.dataDropRegexp()
	if err != nil {
		return nil, domain.NewLoadError(AnnotationsRepository, ".", err)
	}
	l := annotationLoader{
		scanner:  scanner{repository: AnnotationsRepository, fsys: fsys},
		layout:   layout,
		dataDrop: dataDrop,
	}

	repo, err = l.load(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("dashboard.tasks", len(repo.Tasks)),
		attribute.Int("dashboard.batches", len(repo.Batches)),
	)
	return repo, nil
}

type annotationLoader struct {
	scanner
	layout   Layout
	dataDrop *regexp.Regexp
}

func (l annotationLoader) load(ctx context.Context) (*domain.AnnotationRepository, error) {
	entries, err := l.readDir(".")
	if err != nil {
		return nil, err
	}
	readme, _, err := l.optionalText(l.layout.RootReadme)
	if err != nil {
		return nil, err
	}
	batches, err := l.batches(ctx)
	if err != nil {
		return nil, err
	}

	var tasks []*domain.Task
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if !entry.IsDir() || hidden(name) || name == l.layout.BatchesDir {
			continue
		}
		task, err := l.task(name)
		if err != nil {
			return nil, err
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	return domain.NewAnnotationRepository(".", readme, tasks, batches), nil
}

// batches parses every regular file in the batches directory. A repository
// without a batches directory simply has no batches.
func (l annotationLoader) batches(ctx context.Context) ([]*domain.Batch, error) {
	if !l.isDir(l.layout.BatchesDir) {
		return nil, nil
	}
	entries, err := l.readDir(l.layout.BatchesDir)
	if err != nil {
		return nil, err
	}
	var batches []*domain.Batch
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || hidden(entry.Name()) {
			continue
		}
		p := path.Join(l.layout.BatchesDir, entry.Name())
		content, _, err := l.optionalText(p)
		if err != nil {
			return nil, err
		}
		batches = append(batches, domain.ParseBatch(p, content))
	}
	return batches, nil
}

// task builds the task for directory name, or returns nil when the
// directory does not qualify.
func (l annotationLoader) task(name string) (*domain.Task, error) {
	manifest, err := l.manifest(path.Join(name, l.layout.TaskManifest))
	if err != nil {
		return nil, err
	}
	goldDir := path.Join(name, l.layout.GoldsDir)
	hasGolds := l.isDir(goldDir)

	var qualification domain.Qualification
	switch {
	case manifest != nil && manifest.Ignore:
		return nil, nil
	case manifest != nil:
		qualification = domain.ByManifest
	case hasGolds:
		qualification = domain.ByConvention
	default:
		return nil, nil
	}

	readme, _, err := l.optionalText(path.Join(name, l.layout.TaskReadme))
	if err != nil {
		return nil, err
	}
	process, _, err := l.optionalText(path.Join(name, l.layout.TaskProcess))
	if err != nil {
		return nil, err
	}

	var golds []domain.GoldFile
	if hasGolds {
		if golds, err = l.goldFiles(goldDir); err != nil {
			return nil, err
		}
	} else {
		goldDir = ""
	}
	drops, err := l.dataDrops(name)
	if err != nil {
		return nil, err
	}

	return domain.NewTask(domain.TaskParams{
		Path:          name,
		Readme:        readme,
		Process:       process,
		GoldDirectory: goldDir,
		GoldFiles:     golds,
		DataDrops:     drops,
		Qualification: qualification,
		Manifest:      manifest,
		FS:            l.fsys,
	}), nil
}

// goldFiles flattens the gold directory: regular files directly inside it
// and regular files one level down in its subdirectories. Entries are
// visited in name order, so the result is deterministic.
func (l annotationLoader) goldFiles(dir string) ([]domain.GoldFile, error) {
	entries, err := l.readDir(dir)
	if err != nil {
		return nil, err
	}
	var golds []domain.GoldFile
	for _, entry := range entries {
		switch {
		case entry.Type().IsRegular():
			golds = append(golds, domain.NewGoldFile(entry.Name()))
		case entry.IsDir():
			nested, err := l.readDir(path.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			for _, sub := range nested {
				if sub.Type().IsRegular() {
					golds = append(golds, domain.NewGoldFile(path.Join(entry.Name(), sub.Name())))
				}
			}
		}
	}
	return golds, nil
}

// dataDrops collects the subdirectories of a task whose names start with a
// match of the data drop pattern.
func (l annotationLoader) dataDrops(task string) ([]*domain.DataDrop, error) {
	entries, err := l.readDir(task)
	if err != nil {
		return nil, err
	}
	var drops []*domain.DataDrop
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		loc := l.dataDrop.FindStringIndex(entry.Name())
		if loc == nil || loc[0] != 0 {
			continue
		}
		p := path.Join(task, entry.Name())
		files, err := l.regularFiles(p)
		if err != nil {
			return nil, err
		}
		drops = append(drops, domain.NewDataDrop(l.fsys, p, files))
	}
	return drops, nil
}

// regularFiles lists the names of the regular files directly inside dir.
func (s scanner) regularFiles(dir string) ([]string, error) {
	entries, err := s.readDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
