// Package site exports a snapshot of both repositories as a tree of
// markdown pages, optionally rendered to HTML, for publishing as a static
// site.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/clamsproject/dashboard/internal/application"
	"github.com/clamsproject/dashboard/internal/domain"
)

var tracer = otel.Tracer("github.com/clamsproject/dashboard/infrastructure/site")

// ErrNoSnapshot is returned when there is nothing to export yet.
var ErrNoSnapshot = errors.New("no snapshot loaded")

// Options configures a Builder.
type Options struct {
	// OutDir receives the page tree. Existing files are overwritten.
	OutDir string
	// HTML additionally writes an .html rendering next to every page.
	HTML bool
	// Force exports even when preflight warnings block publishing.
	Force bool
	// MaxFileSize caps the size of source files embedded in pages. Zero
	// disables the cap.
	MaxFileSize int64

	AnnotationsURL string
	EvaluationsURL string
	DashboardURL   string
}

// Builder writes the static site.
type Builder struct {
	opts   Options
	logger *zap.Logger
	html   *htmlRenderer
}

// NewBuilder creates a Builder. A nil logger discards all output.
func NewBuilder(opts Options, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{opts: opts, logger: logger}
	if opts.HTML {
		b.html = newHTMLRenderer()
	}
	return b
}

// Build renders snap and writes every page below the output directory. It
// returns the written paths relative to the output directory, sorted.
// Publishing is refused with domain.ErrPublishBlocked when a preflight
// warning is fatal, unless the builder was created with Force.
func (b *Builder) Build(ctx context.Context, snap *application.Snapshot) (written []string, err error) {
	ctx, span := tracer.Start(ctx, "site.Build")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("site.files", len(written)))
		}
		span.End()
	}()

	if snap == nil {
		return nil, ErrNoSnapshot
	}
	if err := snap.PublishAllowed(); err != nil {
		if !b.opts.Force {
			return nil, err
		}
		b.logger.Warn("exporting despite blocking warnings", zap.Error(err))
	}
	for _, name := range []string{application.AnnotationsRepository, application.EvaluationsRepository} {
		if rev, ok := snap.Revisions[name]; ok {
			b.logger.Info("using revision",
				zap.String("repository", name),
				zap.String("revision", application.FormatRevision(rev)),
			)
		}
	}
	for _, w := range snap.Warnings {
		b.logger.Warn(w.Message, zap.String("kind", string(w.Kind)), zap.Strings("details", w.Details))
	}

	pages, err := b.Render(ctx, snap)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := b.writeFile(name, []byte(pages[name])); err != nil {
			return written, err
		}
		written = append(written, name)
		if b.html == nil {
			continue
		}
		rendered, err := b.html.render(name, []byte(pages[name]))
		if err != nil {
			return written, fmt.Errorf("render %s: %w", name, err)
		}
		htmlName := strings.TrimSuffix(name, ".md") + ".html"
		if err := b.writeFile(htmlName, rendered); err != nil {
			return written, err
		}
		written = append(written, htmlName)
	}
	slices.Sort(written)
	b.logger.Info("site exported", zap.String("dir", b.opts.OutDir), zap.Int("files", len(written)))
	return written, nil
}

func (b *Builder) writeFile(name string, data []byte) error {
	target := filepath.Join(b.opts.OutDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Render builds the markdown of every page, keyed by slash-separated path
// relative to the site root. It writes nothing.
func (b *Builder) Render(ctx context.Context, snap *application.Snapshot) (map[string]string, error) {
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	r := &renderer{opts: b.opts, snap: snap, pages: make(map[string]*page)}
	r.index()
	for _, section := range []func(context.Context) error{r.batches, r.tasks, r.evaluations} {
		if err := section(ctx); err != nil {
			return nil, err
		}
	}
	out := make(map[string]string, len(r.pages))
	for name, p := range r.pages {
		out[name] = p.String()
	}
	return out, nil
}

// renderer holds the state of one Render call.
type renderer struct {
	opts  Options
	snap  *application.Snapshot
	pages map[string]*page
}

func (r *renderer) page(name string) *page {
	p := &page{}
	r.pages[name] = p
	return p
}

// treeURL links to rel in the repository browser at the recorded commit.
// Without a repository URL there is nothing to link to.
func (r *renderer) treeURL(repository, rel string) string {
	base := r.opts.AnnotationsURL
	if repository == application.EvaluationsRepository {
		base = r.opts.EvaluationsURL
	}
	if base == "" {
		return ""
	}
	ref := "HEAD"
	if rev, ok := r.snap.Revisions[repository]; ok && rev.Commit != "" {
		ref = rev.Commit
	}
	u := strings.TrimRight(base, "/") + "/tree/" + ref
	if rel == "" {
		return u
	}
	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return u + "/" + strings.Join(segments, "/")
}

// embed returns text for inclusion in a page, or a notice when it exceeds
// the size cap.
func (r *renderer) embed(text string) (string, bool) {
	size := int64(len(text))
	if application.FileTooLarge(size, r.opts.MaxFileSize) {
		return fmt.Sprintf("File is too large to display (%s).", application.HumanSize(size)), false
	}
	return text, true
}

func (r *renderer) index() {
	p := r.page("index.md")
	p.header("CLAMS Dashboard")
	p.para("CLAMS Dashboard for viewing annotations and evaluations. It is a " +
		"user-friendly interface to annotation tasks, annotation batches, and " +
		"evaluations, as well as the relations between them.")
	p.para("Available viewers:")
	p.write("- 🕵️‍♀️ [Annotation Batches](batches/index.md)\n")
	p.write("- 🕵️‍♀️ [Annotation Tasks](tasks/index.md)\n")
	p.write("- 🕵️‍♀️ [Evaluations](evaluations/index.md)\n\n")

	if r.opts.AnnotationsURL != "" || r.opts.EvaluationsURL != "" {
		p.para("The homepages for the repositories are available at:")
		for _, u := range []string{r.opts.AnnotationsURL, r.opts.EvaluationsURL} {
			if u != "" {
				p.printf("- 🏠 [%s](%s)\n", u, u)
			}
		}
		p.write("\n")
		p.para("It is a good idea to look at the README.md files in those repositories.")
	}

	p.para("Repository versions that were used for this dashboard:")
	p.tableHeader("lll", "repository", "commit", "branch")
	for _, name := range []string{application.AnnotationsRepository, application.EvaluationsRepository} {
		rev, ok := r.snap.Revisions[name]
		switch {
		case !ok:
			p.tableRow(name, "unknown", "unknown")
		case rev.Branch == "":
			p.tableRow(name, rev.Short, "detached")
		default:
			p.tableRow(name, rev.Short, rev.Branch)
		}
	}
	p.endTable()

	if len(r.snap.Warnings) > 0 {
		p.subheader("Warnings")
		for _, w := range r.snap.Warnings {
			p.printf("- %s\n", warningText(w))
		}
		p.write("\n")
	}
	if r.opts.DashboardURL != "" {
		p.para("The code for this dashboard is maintained at [%s](%s).", r.opts.DashboardURL, r.opts.DashboardURL)
	}
}

func (r *renderer) batches(ctx context.Context) error {
	ann := r.snap.Annotations
	p := r.page("batches/index.md")
	p.breadcrumbs("batches", "Batches")
	p.header("Annotation Batches")
	p.para("Annotation batches with number of files in each batch:")
	p.tableHeader("lr", "batch", "size")
	for _, batch := range ann.SortedBatches() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.tableRow(mdLink(batch.Stem, batch.Stem+"/index.md"), batch.Len())
		if err := r.batch(batch); err != nil {
			return err
		}
	}
	p.endTable()
	return nil
}

func (r *renderer) batchPage(batch *domain.Batch, file, here string) *page {
	p := r.page(path.Join("batches", batch.Stem, file))
	p.breadcrumbs("batches/batch", "Batch")
	p.header("Annotation Batch", batch.Stem)
	p.subpages("batches/batch", here)
	return p
}

func (r *renderer) batch(batch *domain.Batch) error {
	p := r.batchPage(batch, "index.md", "batch")
	p.para("Batch **%s** has %d files.", batch.Stem, batch.Len())
	p.subheader("Batch comment")
	p.write(batch.Comment)

	p = r.batchPage(batch, "files.md", "files")
	p.subheader("File identifiers in batch")
	for _, id := range batch.Files {
		p.item("%s", id)
	}

	p = r.batchPage(batch, "content.md", "content")
	p.subheader("Batch file content")
	p.pre(batch.Content)

	p = r.batchPage(batch, "tasks.md", "tasks")
	p.subheader("Batch usage by annotation task")
	p.para("This shows how many GUIDs from this batch were used in annotation tasks.")
	overlaps, err := r.snap.Annotations.BatchOverlaps(batch.Stem)
	if err != nil {
		return err
	}
	p.tableHeader("lrr", "task name", "overlap", "task size")
	for _, o := range overlaps {
		p.tableRow(mdLink(o.Task, "../../tasks/"+o.Task+"/index.md"), o.Comparison.InBoth, o.TaskSize)
	}
	p.endTable()

	p = r.batchPage(batch, "evaluation.md", "use in evaluation")
	p.subheader("Batch usage in evaluation repository")
	r.usageTable(p, "Usage in system predictions:", "system prediction", r.snap.Index.BatchUsageInPredictions(batch.Stem))
	r.usageTable(p, "Usage in system reports:", "system report", r.snap.Index.BatchUsageInReports(batch.Stem))
	return nil
}

func (r *renderer) usageTable(p *page, title, column string, usage []application.Usage) {
	p.para("%s", title)
	if len(usage) == 0 {
		p.write("*None*\n\n")
		return
	}
	p.tableHeader("ll", "evaluation", column)
	for _, u := range usage {
		evalLink := mdLink(u.Evaluation, "../../evaluations/"+u.Evaluation+"/index.md")
		p.tableRow(evalLink, mdLink(u.Item, r.treeURL(application.EvaluationsRepository, path.Join(u.Evaluation, u.Item))))
	}
	p.endTable()
}

func (r *renderer) tasks(ctx context.Context) error {
	p := r.page("tasks/index.md")
	p.breadcrumbs("tasks", "Tasks")
	p.header("Annotation Tasks")
	p.para("Annotation tasks with number of gold files in each task:")
	p.tableHeader("lr", "task", "size")
	for _, task := range r.snap.Annotations.SortedTasks() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.tableRow(mdLink(task.Name, task.Name+"/index.md"), task.Len())
		if err := r.task(task); err != nil {
			return err
		}
	}
	p.endTable()
	return nil
}

func (r *renderer) taskPage(task *domain.Task, file, here string, title ...string) *page {
	p := r.page(path.Join("tasks", task.Name, file))
	p.breadcrumbs("tasks/task", "Task")
	p.header(append([]string{"Annotation Task", task.Name}, title...)...)
	p.subpages("tasks/task", here)
	return p
}

func (r *renderer) task(task *domain.Task) error {
	p := r.taskPage(task, "index.md", "task")
	p.para("Task %s has %d data drops and %d gold files.", task.Name, len(task.DataDrops), task.Len())
	if m := task.Manifest; m != nil {
		if m.Title != "" {
			p.para("**%s**", m.Title)
		}
		if m.Description != "" {
			p.para("%s", m.Description)
		}
		if len(m.Tags) > 0 {
			p.para("Tags: %s", strings.Join(m.Tags, ", "))
		}
	}

	p = r.taskPage(task, "readme_file.md", "readme", "Readme")
	p.write(task.Readme)

	p = r.taskPage(task, "golds.md", "gold files", "Gold files")
	p.para("This page lists the gold standard files in this task. The total number "+
		"of files is %d, this includes files from all data drops. Clicking a link "+
		"takes you to the data file in the repository.", task.Len())
	for _, gf := range task.GoldFiles {
		p.item("%s", mdLink(gf.Name, r.treeURL(application.AnnotationsRepository, path.Join(task.GoldDirectory, gf.RelPath))))
	}

	r.drops(task)

	p = r.taskPage(task, "batches.md", "batches", "Batches")
	p.para("GUIDs from annotation batches that were used in this task:")
	overlaps, err := r.snap.Annotations.TaskOverlaps(task.Name)
	if err != nil {
		return err
	}
	p.tableHeader("lrr", "batch", "guids", "batch size")
	for _, o := range overlaps {
		p.tableRow(mdLink(o.Batch, "../../batches/"+o.Batch+"/index.md"), o.Comparison.InBoth, o.BatchSize)
	}
	p.endTable()

	p = r.taskPage(task, "script.md", "script", "Script")
	if task.Process == "" {
		p.para("*No script*")
	} else if text, ok := r.embed(task.Process); ok {
		p.code(text, "python")
	} else {
		p.para("%s", text)
	}
	return nil
}

func (r *renderer) drops(task *domain.Task) {
	dir := path.Join("tasks", task.Name, "drops")
	p := r.page(path.Join(dir, "index.md"))
	p.breadcrumbs("tasks/task/drops", "Drops")
	p.header("Annotation Task", task.Name, "Data drops")
	p.para("Data drops for task **%s** with size in number of files.", task.Name)
	p.tableHeader("lr", "data drop name", "size")
	for _, name := range task.DataDropNames() {
		dd, _ := task.DataDrop(name)
		p.tableRow(mdLink(name, name+".md"), dd.Len())

		dp := r.page(path.Join(dir, name+".md"))
		dp.breadcrumbs("tasks/task/drops/drop", "Drop")
		dp.header("Data Drop", name)
		dp.para("Files in data drop **%s**, with links to sources on the repository.", name)
		files := slices.Clone(dd.FileNames())
		slices.Sort(files)
		for _, f := range files {
			dp.item("%s", mdLink(f, r.treeURL(application.AnnotationsRepository, path.Join(dd.Path, f))))
		}
	}
	p.endTable()
}

func (r *renderer) evaluations(ctx context.Context) error {
	p := r.page("evaluations/index.md")
	p.breadcrumbs("evaluations", "Evaluations")
	p.header("Evaluations")
	p.tableHeader("lrr", "Evaluation", "Predictions", "Reports")
	for _, e := range r.snap.Evaluations.SortedEvaluations() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.tableRow(mdLink(e.Name, e.Name+"/index.md"), len(e.Predictions), len(e.Reports))
		r.evaluation(e)
	}
	p.endTable()
	return nil
}

func (r *renderer) evaluationPage(e *domain.Evaluation, file, here, title string) *page {
	p := r.page(path.Join("evaluations", e.Name, file))
	p.breadcrumbs("evaluations/evaluation", "Evaluation")
	if title == "" {
		p.header("Evaluation", e.Name)
	} else {
		p.header("Evaluation", e.Name, title)
	}
	p.subpages("evaluations/evaluation", here)
	return p
}

func (r *renderer) evaluation(e *domain.Evaluation) {
	p := r.evaluationPage(e, "index.md", "evaluation", "")
	p.para("Evaluation **%s** with %d predictions and %d reports.", e.Name, len(e.Predictions), len(e.Reports))
	if m := e.Manifest; m != nil && m.Description != "" {
		p.para("%s", m.Description)
	}

	p = r.evaluationPage(e, "readme_file.md", "readme", "readme")
	p.write(e.Readme)

	p = r.evaluationPage(e, "code.md", "code", "code")
	if len(e.Scripts) > 1 {
		names := make([]string, len(e.Scripts))
		for i, s := range e.Scripts {
			names[i] = "**" + s + "**"
		}
		p.para("There are %d code files: %s.", len(e.Scripts), strings.Join(names, " and "))
	}
	for _, script := range e.Scripts {
		p.subheader(script)
		if u := r.treeURL(application.EvaluationsRepository, path.Join(e.Path, script)); u != "" {
			p.para("View [%s](%s) in the evaluation repository.", script, u)
		}
		content, err := e.ScriptContent(script)
		if err != nil {
			p.warning("cannot read %s", script)
			continue
		}
		if text, ok := r.embed(content); ok {
			p.code(text, "python")
		} else {
			p.para("%s", text)
		}
	}

	r.predictions(e)
	r.reports(e)
}

func (r *renderer) predictions(e *domain.Evaluation) {
	p := r.page(path.Join("evaluations", e.Name, "predictions", "index.md"))
	p.breadcrumbs("evaluations/evaluation/predictions", "Predictions")
	p.header("Evaluation", e.Name, "predictions")
	p.subpages("evaluations/evaluation/results", "predictions")

	preds := e.SortedPredictions()
	for n, pb := range preds {
		for _, w := range r.warningsFor(pb.Path, pb.Warnings) {
			p.warning("item %d below: %s", n+1, warningText(w))
		}
	}
	p.para("List of system prediction batches with number of files.")
	p.para("Click the link to see the readme file and system output in the repository.")
	p.tableHeader("rlr", "n", "prediction batch", "files")
	for n, pb := range preds {
		p.tableRow(n+1, mdLink(pb.Name, r.treeURL(application.EvaluationsRepository, pb.Path)), pb.Len())
	}
	p.endTable()
}

func (r *renderer) reports(e *domain.Evaluation) {
	p := r.page(path.Join("evaluations", e.Name, "reports", "index.md"))
	p.breadcrumbs("evaluations/evaluation/reports", "Reports")
	p.header("Evaluation", e.Name, "reports")
	p.subpages("evaluations/evaluation/results", "reports")

	for _, report := range e.SortedReports() {
		if u := r.treeURL(application.EvaluationsRepository, report.Path); u != "" {
			p.para("**%s** ([view in repository](%s))", domain.DisplayName(report.Name), u)
		} else {
			p.para("**%s**", domain.DisplayName(report.Name))
		}
		for _, w := range r.warningsFor(report.Path, report.Warnings) {
			p.warning("%s", warningText(w))
		}
	}
}

// warningsFor combines an entity's own warnings with the cross-repository
// warnings recorded for its path.
func (r *renderer) warningsFor(entity string, own []domain.Warning) []domain.Warning {
	return append(slices.Clone(own), r.snap.Index.WarningsFor(entity)...)
}

func warningText(w domain.Warning) string {
	if len(w.Details) == 0 {
		return w.Message
	}
	return w.Message + " (" + strings.Join(w.Details, "; ") + ")"
}
