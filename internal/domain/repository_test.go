package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnnotationRepository_Queries exercises lookups and overlap tables.
func TestAnnotationRepository_Queries(t *testing.T) {
	repo := NewAnnotationRepository("/repo", "# readme",
		[]*Task{taskWithGolds("ner", "a", "b", "c"), taskWithGolds("asr", "c", "d")},
		[]*Batch{batchWith("b2", "c", "d", "e"), batchWith("b1", "a")},
	)

	assert.Equal(t, []string{"asr", "ner"}, repo.TaskNames())
	assert.Equal(t, []string{"b1", "b2"}, repo.BatchNames())
	assert.True(t, repo.HasBatch("b1"))
	assert.False(t, repo.HasBatch("b3"))

	c, err := repo.Compare("ner", "b2")
	require.NoError(t, err)
	assert.Equal(t, Comparison{InBoth: 1, InFirst: 2, InSecond: 2}, c)

	_, err = repo.Compare("missing", "b2")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Compare("ner", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	rows, err := repo.TaskOverlaps("asr")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b1", rows[0].Batch)
	assert.Equal(t, 0, rows[0].Comparison.InBoth)
	assert.Equal(t, 2, rows[1].Comparison.InBoth)
	assert.Equal(t, 2, rows[1].TaskSize)
	assert.Equal(t, 3, rows[1].BatchSize)

	rows, err = repo.BatchOverlaps("b1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "asr", rows[0].Task)
	assert.Equal(t, "ner", rows[1].Task)
	assert.Equal(t, 1, rows[1].Comparison.InBoth)
}

// TestEvaluationRepository_Queries exercises lookups and warning collection.
func TestEvaluationRepository_Queries(t *testing.T) {
	e1 := NewEvaluation(EvaluationParams{
		Path:        "b-eval",
		Predictions: []*PredictionBatch{NewPredictionBatch(nil, "b-eval/preds@bad", nil, nil)},
	})
	e2 := NewEvaluation(EvaluationParams{Path: "a-eval"})
	repo := NewEvaluationRepository("/evals", "", []*Evaluation{e1, e2})

	assert.Equal(t, []string{"a-eval", "b-eval"}, repo.EvaluationNames())
	got, err := repo.Evaluation("a-eval")
	require.NoError(t, err)
	assert.Same(t, e2, got)
	_, err = repo.Evaluation("c-eval")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, repo.Warnings(), 1)
}

// TestWarning_String renders details on separate lines.
func TestWarning_String(t *testing.T) {
	w := Warning{Message: "some tracked files changed", Details: []string{"M a.txt", "D b.txt"}, Fatal: true}
	assert.Equal(t, "WARNING: some tracked files changed\nM a.txt\nD b.txt", w.String())
}
