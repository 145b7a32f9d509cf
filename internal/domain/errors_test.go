package domain

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadError(t *testing.T) {
	tests := []struct {
		name       string
		repository string
		path       string
		err        error
		wantMsg    string
	}{
		{
			name:       "missing file",
			repository: "annotations",
			path:       "batches/2022-jun.txt",
			err:        fs.ErrNotExist,
			wantMsg:    "load error: repository=annotations, path=batches/2022-jun.txt, err=file does not exist",
		},
		{
			name:       "permission",
			repository: "evaluations",
			path:       "sr-eval",
			err:        fs.ErrPermission,
			wantMsg:    "load error: repository=evaluations, path=sr-eval, err=permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLoadError(tt.repository, tt.path, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.repository, err.Repository, "Repository mismatch")
			assert.Equal(t, tt.path, err.Path, "Path mismatch")
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("batch", "2022-jn")

	assert.Equal(t, `batch "2022-jn": not found`, err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("config")
		err.AddError("golds_dir and batches_dir are both \"golds\"")

		assert.Equal(t, `validation error for config: golds_dir and batches_dir are both "golds"`, err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("layout")
		err.AddError("first")
		err.AddError("second")

		assert.Contains(t, err.Error(), "validation errors for layout")
		assert.Len(t, err.Errors, 2, "Should have two errors")
		assert.Equal(t, "first", err.Errors[0], "First error should be preserved")
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("config")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors, "Errors slice should be empty")
	})

	t.Run("matches invalid configuration", func(t *testing.T) {
		err := NewValidationError("config")
		err.AddError("bad")
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrNotFound, "not found"},
		{ErrRootNotFound, "repository root not found"},
		{ErrInvalidConfiguration, "invalid configuration"},
		{ErrPublishBlocked, "publishing blocked by working tree state"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error(), "Error message mismatch")
		})
	}
}
