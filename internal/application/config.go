// Package application provides the loaders, the cross-repository index and
// the catalog that publishes immutable snapshots of both repositories.
package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/clamsproject/dashboard/internal/domain"
	"github.com/clamsproject/dashboard/internal/ports"
)

// DashboardConfig is the complete configuration of the dashboard and the
// primary entry point for every command.
type DashboardConfig struct {
	// Annotations locates the annotation repository working copy.
	Annotations RepositoryConfig `yaml:"annotations" validate:"required"`
	// Evaluations locates the evaluation repository working copy.
	Evaluations RepositoryConfig `yaml:"evaluations" validate:"required"`
	// DashboardURL links generated pages back to the dashboard sources.
	DashboardURL string `yaml:"dashboard_url" validate:"omitempty,url"`
	// Layout holds the naming conventions both repositories follow.
	Layout Layout `yaml:"layout" validate:"required"`
	// Server configures the read API started by the serve command.
	Server ServerConfig `yaml:"server" validate:"required"`
	// Export configures the static site exporter.
	Export ExportConfig `yaml:"export" validate:"required"`
	// MaxFileSize is the size in bytes above which file contents are not
	// inlined in generated pages or API responses. Zero disables the limit.
	MaxFileSize int64 `yaml:"max_file_size" validate:"min=0"`
}

// RepositoryConfig points at one version-controlled working copy.
type RepositoryConfig struct {
	// Root is the working copy directory.
	Root string `yaml:"root" validate:"required"`
	// URL is the web location of the repository, used to build links to
	// files at a given commit.
	URL string `yaml:"url" validate:"omitempty,url"`
}

// Layout describes the file-system conventions used to recognize entities.
// Every marker is a single path element.
type Layout struct {
	RootReadme string `yaml:"root_readme" validate:"required,marker"`
	BatchesDir string `yaml:"batches_dir" validate:"required,marker"`

	GoldsDir     string `yaml:"golds_dir" validate:"required,marker"`
	TaskReadme   string `yaml:"task_readme" validate:"required,marker"`
	TaskProcess  string `yaml:"task_process" validate:"required,marker"`
	TaskManifest string `yaml:"task_manifest" validate:"required,marker"`
	// DataDropPattern must match at the start of a data drop directory name.
	DataDropPattern string `yaml:"data_drop_pattern" validate:"required,regexp"`

	EvaluationSuffix   string `yaml:"evaluation_suffix" validate:"required,marker"`
	EvaluationReadme   string `yaml:"evaluation_readme" validate:"required,marker"`
	EvaluationManifest string `yaml:"evaluation_manifest" validate:"required,marker"`
	PredictionsPrefix  string `yaml:"predictions_prefix" validate:"required,marker"`
	ReportsPrefix      string `yaml:"reports_prefix" validate:"required,marker"`
	PredictionGlob     string `yaml:"prediction_glob" validate:"required,glob"`
	ScriptGlob         string `yaml:"script_glob" validate:"required,glob"`
}

// ServerConfig configures the HTTP read API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
	// ReloadRate is the sustained number of reload requests per second.
	ReloadRate float64 `yaml:"reload_rate" validate:"gt=0"`
	// ReloadBurst is the number of reload requests accepted at once.
	ReloadBurst int `yaml:"reload_burst" validate:"min=1"`
	// WatchDebounce is how long the watcher waits for file events to settle
	// before reloading.
	WatchDebounce time.Duration `yaml:"watch_debounce" validate:"min=0"`
}

// ExportConfig configures the static site exporter.
type ExportConfig struct {
	OutDir string `yaml:"out_dir" validate:"required"`
	HTML   bool   `yaml:"html"`
}

// DefaultLayout returns the conventions of the CLAMS annotation and
// evaluation repositories.
func DefaultLayout() Layout {
	return Layout{
		RootReadme:         "README.md",
		BatchesDir:         "batches",
		GoldsDir:           "golds",
		TaskReadme:         "readme.md",
		TaskProcess:        "process.py",
		TaskManifest:       "task.yaml",
		DataDropPattern:    `^\d{6}`,
		EvaluationSuffix:   "eval",
		EvaluationReadme:   "README.md",
		EvaluationManifest: "evaluation.yaml",
		PredictionsPrefix:  "preds" + domain.NameSeparator,
		ReportsPrefix:      "report-",
		PredictionGlob:     "*.mmif",
		ScriptGlob:         "*.py",
	}
}

// DefaultConfig returns a configuration that expects both repositories to
// be checked out next to the current directory.
func DefaultConfig() *DashboardConfig {
	return &DashboardConfig{
		Annotations: RepositoryConfig{
			Root: "../aapb-annotations",
			URL:  "https://github.com/clamsproject/aapb-annotations",
		},
		Evaluations: RepositoryConfig{
			Root: "../aapb-evaluations",
			URL:  "https://github.com/clamsproject/aapb-evaluations",
		},
		DashboardURL: "https://github.com/clamsproject/dashboard",
		Layout:       DefaultLayout(),
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			ReloadRate:    0.2,
			ReloadBurst:   2,
			WatchDebounce: 500 * time.Millisecond,
		},
		Export:      ExportConfig{OutDir: "site"},
		MaxFileSize: 100000,
	}
}

// LoadConfig reads the configuration file at path on top of the defaults.
// An empty path returns the validated defaults. Unknown keys are rejected so
// that typos are not silently ignored.
func LoadConfig(path string) (*DashboardConfig, error) {
	if path == "" {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ports.NewConfigError(path, ports.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration on top of the defaults and
// validates the result.
func ParseConfig(data []byte) (*DashboardConfig, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.

	// An empty document leaves the defaults in place.
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and the relationships between fields
// that cannot be expressed through tags.
func (c *DashboardConfig) Validate() error {
	v, err := newConfigValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("struct validation failed: %w: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := c.validateSemantics(); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics rejects layouts whose markers would make two entity
// kinds indistinguishable.
func (c *DashboardConfig) validateSemantics() error {
	verr := domain.NewValidationError("config")
	l := c.Layout
	if l.PredictionsPrefix == l.ReportsPrefix {
		verr.AddError(fmt.Sprintf("predictions_prefix and reports_prefix are both %q", l.PredictionsPrefix))
	}
	if l.GoldsDir == l.BatchesDir {
		verr.AddError(fmt.Sprintf("golds_dir and batches_dir are both %q", l.GoldsDir))
	}
	if l.TaskReadme == l.TaskProcess {
		verr.AddError(fmt.Sprintf("task_readme and task_process are both %q", l.TaskReadme))
	}
	if filepath.Clean(c.Annotations.Root) == filepath.Clean(c.Evaluations.Root) {
		verr.AddError("annotations.root and evaluations.root must differ")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// dataDropRegexp compiles the data drop pattern. Validation guarantees that
// the pattern compiles for a validated configuration.
func (l Layout) dataDropRegexp() (*regexp.Regexp, error) {
	re, err := regexp.Compile(l.DataDropPattern)
	if err != nil {
		return nil, fmt.Errorf("data drop pattern %q: %w", l.DataDropPattern, err)
	}
	return re, nil
}

// newConfigValidator creates a validator with the layout validators
// registered.
func newConfigValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := RegisterLayoutValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register layout validators: %w", err)
	}
	return v, nil
}
