package ports

import (
	"errors"
	"fmt"
	"strings"
)

// Common infrastructure errors that can occur during interactions with
// external collaborators.
var (
	// ErrRevisionNotFound indicates that a requested branch or commit does
	// not exist in the repository.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrVCSUnavailable indicates that the version-control state of a
	// working copy cannot be read.
	ErrVCSUnavailable = errors.New("version control unavailable")

	// ErrRateLimited indicates that a request was rejected by a rate limiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// VCSError represents an error from a version-control command.
// It includes the working copy and the command that failed.
type VCSError struct {
	// Dir is the working copy the command ran in.
	Dir string

	// Args are the command arguments, without the executable.
	Args []string

	// Output holds trimmed combined output of the failed command, if any.
	Output string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for VCSError.
func (e *VCSError) Error() string {
	msg := fmt.Sprintf("vcs error: dir=%s, args=%s, err=%v", e.Dir, strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += ", output=" + e.Output
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *VCSError) Unwrap() error { return e.Err }

// NewVCSError creates a new VCSError with the given details.
func NewVCSError(dir string, args []string, output string, err error) *VCSError {
	return &VCSError{
		Dir:    dir,
		Args:   args,
		Output: strings.TrimSpace(output),
		Err:    err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
