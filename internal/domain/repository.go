package domain

// AnnotationRepository is an immutable index over the tasks and batches of
// an annotation repository root.
type AnnotationRepository struct {
	Root    string `json:"root"`
	Readme  string `json:"readme"`
	Tasks   map[string]*Task
	Batches map[string]*Batch
}

// NewAnnotationRepository assembles an annotation index. Tasks and batches
// are keyed by name.
func NewAnnotationRepository(root, readme string, tasks []*Task, batches []*Batch) *AnnotationRepository {
	r := &AnnotationRepository{
		Root:    root,
		Readme:  readme,
		Tasks:   make(map[string]*Task, len(tasks)),
		Batches: make(map[string]*Batch, len(batches)),
	}
	for _, t := range tasks {
		r.Tasks[t.Name] = t
	}
	for _, b := range batches {
		r.Batches[b.Stem] = b
	}
	return r
}

// TaskNames returns the task names in ascending order.
func (r *AnnotationRepository) TaskNames() []string { return sortedKeys(r.Tasks) }

// BatchNames returns the batch names in ascending order.
func (r *AnnotationRepository) BatchNames() []string { return sortedKeys(r.Batches) }

// SortedTasks returns the tasks ordered by name.
func (r *AnnotationRepository) SortedTasks() []*Task {
	out := make([]*Task, 0, len(r.Tasks))
	for _, name := range r.TaskNames() {
		out = append(out, r.Tasks[name])
	}
	return out
}

// SortedBatches returns the batches ordered by name.
func (r *AnnotationRepository) SortedBatches() []*Batch {
	out := make([]*Batch, 0, len(r.Batches))
	for _, name := range r.BatchNames() {
		out = append(out, r.Batches[name])
	}
	return out
}

// Task looks up a task by name.
func (r *AnnotationRepository) Task(name string) (*Task, error) {
	t, ok := r.Tasks[name]
	if !ok {
		return nil, NotFoundError("task", name)
	}
	return t, nil
}

// Batch looks up a batch by name.
func (r *AnnotationRepository) Batch(name string) (*Batch, error) {
	b, ok := r.Batches[name]
	if !ok {
		return nil, NotFoundError("batch", name)
	}
	return b, nil
}

// HasBatch reports whether a batch with the given name exists.
func (r *AnnotationRepository) HasBatch(name string) bool {
	_, ok := r.Batches[name]
	return ok
}

// Compare compares a task with a batch, both given by name.
func (r *AnnotationRepository) Compare(taskName, batchName string) (Comparison, error) {
	t, err := r.Task(taskName)
	if err != nil {
		return Comparison{}, err
	}
	b, err := r.Batch(batchName)
	if err != nil {
		return Comparison{}, err
	}
	return Compare(t, b), nil
}

// TaskOverlaps compares one task with every batch, in batch name order.
func (r *AnnotationRepository) TaskOverlaps(taskName string) ([]Overlap, error) {
	t, err := r.Task(taskName)
	if err != nil {
		return nil, err
	}
	rows := make([]Overlap, 0, len(r.Batches))
	for _, b := range r.SortedBatches() {
		rows = append(rows, overlap(t, b))
	}
	return rows, nil
}

// BatchOverlaps compares one batch with every task, in task name order.
func (r *AnnotationRepository) BatchOverlaps(batchName string) ([]Overlap, error) {
	b, err := r.Batch(batchName)
	if err != nil {
		return nil, err
	}
	rows := make([]Overlap, 0, len(r.Tasks))
	for _, t := range r.SortedTasks() {
		rows = append(rows, overlap(t, b))
	}
	return rows, nil
}

func overlap(t *Task, b *Batch) Overlap {
	return Overlap{
		Task:       t.Name,
		Batch:      b.Stem,
		Comparison: Compare(t, b),
		TaskSize:   t.Len(),
		BatchSize:  b.Len(),
	}
}

// EvaluationRepository is an immutable index over the evaluation runs of an
// evaluation repository root.
type EvaluationRepository struct {
	Root        string `json:"root"`
	Readme      string `json:"readme"`
	Evaluations map[string]*Evaluation
}

// NewEvaluationRepository assembles an evaluation index keyed by name.
func NewEvaluationRepository(root, readme string, evaluations []*Evaluation) *EvaluationRepository {
	r := &EvaluationRepository{
		Root:        root,
		Readme:      readme,
		Evaluations: make(map[string]*Evaluation, len(evaluations)),
	}
	for _, e := range evaluations {
		r.Evaluations[e.Name] = e
	}
	return r
}

// EvaluationNames returns the evaluation names in ascending order.
func (r *EvaluationRepository) EvaluationNames() []string { return sortedKeys(r.Evaluations) }

// SortedEvaluations returns the evaluations ordered by name.
func (r *EvaluationRepository) SortedEvaluations() []*Evaluation {
	out := make([]*Evaluation, 0, len(r.Evaluations))
	for _, name := range r.EvaluationNames() {
		out = append(out, r.Evaluations[name])
	}
	return out
}

// Evaluation looks up an evaluation by name.
func (r *EvaluationRepository) Evaluation(name string) (*Evaluation, error) {
	e, ok := r.Evaluations[name]
	if !ok {
		return nil, NotFoundError("evaluation", name)
	}
	return e, nil
}

// Warnings collects the naming warnings of every evaluation.
func (r *EvaluationRepository) Warnings() []Warning {
	var out []Warning
	for _, e := range r.SortedEvaluations() {
		out = append(out, e.Warnings()...)
	}
	return out
}
