package domain

// Comparison holds the overlap between a task's gold identifiers and a
// batch's file identifiers. InFirst always refers to the task side.
type Comparison struct {
	InBoth   int `json:"in_both"`
	InFirst  int `json:"in_first"`
	InSecond int `json:"in_second"`
}

// Compare computes the overlap between the distinct gold identifiers of t and
// the identifiers of b. The result is never cached.
func Compare(t *Task, b *Batch) Comparison {
	return CompareSets(t.GoldIDSet(), b.FileSet())
}

// CompareSets computes the sizes of first∩second, first∖second and
// second∖first. It walks the smaller of the two sets.
func CompareSets(first, second map[string]struct{}) Comparison {
	small, large := first, second
	if len(small) > len(large) {
		small, large = large, small
	}
	both := 0
	for id := range small {
		if _, ok := large[id]; ok {
			both++
		}
	}
	return Comparison{
		InBoth:   both,
		InFirst:  len(first) - both,
		InSecond: len(second) - both,
	}
}

// Overlap is one row of a task-by-batch overlap table.
type Overlap struct {
	Task       string     `json:"task"`
	Batch      string     `json:"batch"`
	Comparison Comparison `json:"comparison"`
	TaskSize   int        `json:"task_size"`
	BatchSize  int        `json:"batch_size"`
}
