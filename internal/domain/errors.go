package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while indexing or querying the
// repositories.
var (
	// ErrNotFound indicates that a requested task, batch, evaluation or file
	// does not exist in the current index.
	ErrNotFound = errors.New("not found")

	// ErrRootNotFound indicates that a repository root directory is missing.
	ErrRootNotFound = errors.New("repository root not found")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrPublishBlocked indicates that a fatal preflight warning prevents
	// publishing derived output such as the static site.
	ErrPublishBlocked = errors.New("publishing blocked by working tree state")
)

// LoadError represents a failure while scanning a repository root. A load
// that returns a LoadError must not replace a previously published snapshot.
type LoadError struct {
	// Repository names the repository being loaded, "annotations" or
	// "evaluations".
	Repository string

	// Path is the repository-relative path that could not be read.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for LoadError.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load error: repository=%s, path=%s, err=%v", e.Repository, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError creates a new LoadError with the given details.
func NewLoadError(repository, path string, err error) *LoadError {
	return &LoadError{
		Repository: repository,
		Path:       path,
		Err:        err,
	}
}

// NotFoundError names the kind and name of a missing entity.
func NotFoundError(kind, name string) error {
	return fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
