package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clamsproject/dashboard/infrastructure/gitvcs"
	"github.com/clamsproject/dashboard/internal/application"
	"github.com/clamsproject/dashboard/internal/ports"
)

// app carries the global flags and the state shared by all subcommands.
type app struct {
	configPath  string
	annotations string
	evaluations string
	verbose     bool

	cfg    *application.DashboardConfig
	logger *zap.Logger

	// newLogger builds the logger once flags are parsed.
	newLogger func(verbose bool) (*zap.Logger, error)
}

func productionLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&app{newLogger: productionLogger})
}

func newRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dashboard",
		Short: "Browse the annotation and evaluation repositories",
		Long: `dashboard builds a read-only index over a local clone of the annotation
repository (tasks, gold files, data drops and batches) and of the evaluation
repository (evaluations, prediction batches and reports), and relates the
two through the batches they share.

The index can be summarized on the terminal, exported as a static site or
served as a JSON API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := a.newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger

			cfg, err := application.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if a.annotations != "" {
				cfg.Annotations.Root = a.annotations
			}
			if a.evaluations != "" {
				cfg.Evaluations.Root = a.evaluations
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML configuration file")
	flags.StringVar(&a.annotations, "annotations", "", "annotation repository working copy (overrides the configuration)")
	flags.StringVar(&a.evaluations, "evaluations", "", "evaluation repository working copy (overrides the configuration)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newSummaryCmd(a),
		newCompareCmd(a),
		newUsageCmd(a),
		newCheckCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newReadmeCmd(a),
	)
	return root
}

// source opens one repository working copy. Version control is attached
// only when the root is a git working copy.
func (a *app) source(ctx context.Context, repository, root string) (application.Source, error) {
	fsys, err := application.OpenRoot(repository, root)
	if err != nil {
		return application.Source{}, err
	}
	src := application.Source{Root: root, FS: fsys}
	if gitvcs.IsRepository(ctx, root) {
		src.VCS = gitvcs.Open(root)
	} else {
		a.logger.Debug("not a git working copy", zap.String("repository", repository), zap.String("root", root))
	}
	return src, nil
}

// catalog builds the catalog for the configured repositories. A nil
// collector disables metrics.
func (a *app) catalog(ctx context.Context, metrics ports.MetricsCollector) (*application.Catalog, error) {
	ann, err := a.source(ctx, application.AnnotationsRepository, a.cfg.Annotations.Root)
	if err != nil {
		return nil, err
	}
	eval, err := a.source(ctx, application.EvaluationsRepository, a.cfg.Evaluations.Root)
	if err != nil {
		return nil, err
	}
	opts := []application.CatalogOption{application.WithLogger(a.logger)}
	if metrics != nil {
		opts = append(opts, application.WithMetrics(metrics))
	}
	return application.NewCatalog(a.cfg.Layout, ann, eval, opts...), nil
}

// load builds the catalog and its first snapshot.
func (a *app) load(ctx context.Context) (*application.Catalog, *application.Snapshot, error) {
	c, err := a.catalog(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	snap, err := c.Reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, snap, nil
}
