package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/clamsproject/dashboard/internal/domain"
)

// Repository names used in errors, metrics and log fields.
const (
	AnnotationsRepository = "annotations"
	EvaluationsRepository = "evaluations"
)

var tracer = otel.Tracer("github.com/clamsproject/dashboard/internal/application")

// OpenRoot returns a read-only view of the working copy at root. It fails
// with ErrRootNotFound when root is missing or not a directory.
func OpenRoot(repository, root string) (fs.FS, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewLoadError(repository, root, domain.ErrRootNotFound)
		}
		return nil, domain.NewLoadError(repository, root, err)
	}
	if !info.IsDir() {
		return nil, domain.NewLoadError(repository, root, fmt.Errorf("not a directory: %w", domain.ErrRootNotFound))
	}
	return os.DirFS(root), nil
}

// scanner reads one repository tree and turns every failure into a
// LoadError for that repository.
type scanner struct {
	repository string
	fsys       fs.FS
}

func (s scanner) fail(p string, err error) error {
	return domain.NewLoadError(s.repository, p, err)
}

// readDir lists a directory in name order. A missing root is reported as
// ErrRootNotFound.
func (s scanner) readDir(p string) ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(s.fsys, p)
	if err != nil {
		if p == "." && errors.Is(err, fs.ErrNotExist) {
			return nil, s.fail(p, domain.ErrRootNotFound)
		}
		return nil, s.fail(p, err)
	}
	return entries, nil
}

// isDir reports whether p exists and is a directory.
func (s scanner) isDir(p string) bool {
	info, err := fs.Stat(s.fsys, p)
	return err == nil && info.IsDir()
}

// optionalText returns the content of the regular file at p, or "" when
// there is no such file.
func (s scanner) optionalText(p string) (string, bool, error) {
	info, err := fs.Stat(s.fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, s.fail(p, err)
	}
	if !info.Mode().IsRegular() {
		return "", false, nil
	}
	data, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		return "", false, s.fail(p, err)
	}
	return string(data), true, nil
}

// manifest decodes the manifest at p. It returns nil when the file is
// absent. Unknown keys are rejected.
func (s scanner) manifest(p string) (*domain.Manifest, error) {
	text, ok, err := s.optionalText(p)
	if err != nil || !ok {
		return nil, err
	}
	var m domain.Manifest
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(text)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, s.fail(p, fmt.Errorf("invalid manifest: %w", err))
	}
	return &m, nil
}

// hidden reports whether a directory entry is hidden, such as ".git".
func hidden(name string) bool { return strings.HasPrefix(name, ".") }

// endSpan records the outcome of a traced operation.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
