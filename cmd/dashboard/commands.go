package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clamsproject/dashboard/infrastructure/httpapi"
	"github.com/clamsproject/dashboard/infrastructure/middleware"
	"github.com/clamsproject/dashboard/infrastructure/site"
	"github.com/clamsproject/dashboard/infrastructure/watcher"
	"github.com/clamsproject/dashboard/internal/application"
)

// errFatalWarnings makes check exit non-zero.
var errFatalWarnings = errors.New("fatal warnings found")

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print an overview of both repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range []string{application.AnnotationsRepository, application.EvaluationsRepository} {
				root := snap.Annotations.Root
				if name == application.EvaluationsRepository {
					root = snap.Evaluations.Root
				}
				revision := "not under version control"
				if rev, ok := snap.Revisions[name]; ok {
					revision = application.FormatRevision(rev)
				}
				fmt.Fprintf(out, "%s repository at %s (%s)\n", name, root, revision)
			}

			fmt.Fprintf(out, "\nBatches:\n")
			tw := table(out)
			for _, b := range snap.Annotations.SortedBatches() {
				fmt.Fprintf(tw, "    %s\t%d files\n", b.Stem, b.Len())
			}
			tw.Flush()

			fmt.Fprintf(out, "\nTasks:\n")
			tw = table(out)
			for _, t := range snap.Annotations.SortedTasks() {
				fmt.Fprintf(tw, "    %s\t%d gold files\t%d data drops\t%s\n", t.Name, t.Len(), len(t.DataDrops), t.Qualification)
			}
			tw.Flush()

			fmt.Fprintf(out, "\nEvaluations:\n")
			tw = table(out)
			for _, e := range snap.Evaluations.SortedEvaluations() {
				fmt.Fprintf(tw, "    %s\t%d predictions\t%d reports\n", e.Name, len(e.Predictions), len(e.Reports))
			}
			tw.Flush()

			if len(snap.Warnings) > 0 {
				fmt.Fprintln(out)
				for _, w := range snap.Warnings {
					fmt.Fprintln(out, w.String())
				}
			}
			return nil
		},
	}
}

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <task> <batch>",
		Short: "Compare the gold files of a task with the files of a batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			c, err := snap.Annotations.Compare(args[0], args[1])
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintf(tw, "in both\t%d\n", c.InBoth)
			fmt.Fprintf(tw, "only in task %s\t%d\n", args[0], c.InFirst)
			fmt.Fprintf(tw, "only in batch %s\t%d\n", args[1], c.InSecond)
			return tw.Flush()
		},
	}
}

func newUsageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <batch>",
		Short: "Show where the evaluation repository uses a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			batch := args[0]
			out := cmd.OutOrStdout()
			if !snap.Annotations.HasBatch(batch) {
				fmt.Fprintf(out, "batch %q is not in the annotation repository", batch)
				if s := application.SuggestBatch(batch, snap.Annotations.BatchNames()); len(s) > 0 {
					fmt.Fprintf(out, " (did you mean: %s)", strings.Join(s, ", "))
				}
				fmt.Fprintln(out)
			}
			for _, section := range []struct {
				title string
				usage []application.Usage
			}{
				{"Usage in system predictions:", snap.Index.BatchUsageInPredictions(batch)},
				{"Usage in system reports:", snap.Index.BatchUsageInReports(batch)},
			} {
				fmt.Fprintln(out, section.title)
				if len(section.usage) == 0 {
					fmt.Fprintln(out, "    none")
					continue
				}
				tw := table(out)
				for _, u := range section.usage {
					fmt.Fprintf(tw, "    %s\t%s\n", u.Evaluation, u.Item)
				}
				tw.Flush()
			}
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report working tree and naming problems",
		Long: `check prints the revision of each repository and every warning of the
index. It exits with a non-zero status when a warning blocks publishing,
which happens when tracked files have uncommitted changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range []string{application.AnnotationsRepository, application.EvaluationsRepository} {
				if rev, ok := snap.Revisions[name]; ok {
					fmt.Fprintf(out, "INFO: using %s of the %s repository\n", application.FormatRevision(rev), name)
				}
			}
			for _, w := range snap.Warnings {
				fmt.Fprintln(out, w.String())
			}
			if err := snap.PublishAllowed(); err != nil {
				return fmt.Errorf("%w: %w", errFatalWarnings, err)
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		outDir string
		html   bool
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the index as a static markdown site",
		Long: `export writes one markdown page per batch, task, data drop and evaluation,
with navigation between them. Export is refused when a repository has
uncommitted changes to tracked files, unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			opts := site.Options{
				OutDir:         a.cfg.Export.OutDir,
				HTML:           a.cfg.Export.HTML || html,
				Force:          force,
				MaxFileSize:    a.cfg.MaxFileSize,
				AnnotationsURL: a.cfg.Annotations.URL,
				EvaluationsURL: a.cfg.Evaluations.URL,
				DashboardURL:   a.cfg.DashboardURL,
			}
			if outDir != "" {
				opts.OutDir = outDir
			}
			written, err := site.NewBuilder(opts, a.logger).Build(cmd.Context(), snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", len(written), opts.OutDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (overrides the configuration)")
	cmd.Flags().BoolVar(&html, "html", false, "also render every page to HTML")
	cmd.Flags().BoolVar(&force, "force", false, "export even when a working tree has uncommitted changes")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index as a JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := middleware.NewPrometheusMetrics(reg)

			// The catalog and the API share one collector.
			c, err := a.catalog(ctx, metrics)
			if err != nil {
				return err
			}
			if _, err := c.Reload(ctx); err != nil {
				return err
			}

			if watch {
				w, err := watcher.New(
					[]string{a.cfg.Annotations.Root, a.cfg.Evaluations.Root},
					func(ctx context.Context) error {
						_, err := c.Reload(ctx)
						return err
					},
					watcher.WithDebounce(a.cfg.Server.WatchDebounce),
					watcher.WithLogger(a.logger),
				)
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					w.Stop()
					return err
				}
				defer w.Stop()
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := httpapi.NewServer(c,
				httpapi.WithLogger(a.logger),
				httpapi.WithMetrics(metrics),
				httpapi.WithGatherer(reg),
				httpapi.WithReloadLimit(rate.Limit(a.cfg.Server.ReloadRate), a.cfg.Server.ReloadBurst),
				httpapi.WithMaxFileSize(a.cfg.MaxFileSize),
			)
			a.logger.Info("starting API", zap.String("addr", addr), zap.Bool("watch", watch))
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the configuration)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload when files in the working copies change")
	return cmd
}

func newReadmeCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "readme [task]",
		Short: "Render the readme of a task, or of the annotation repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			text := snap.Annotations.Readme
			if len(args) == 1 {
				t, err := snap.Annotations.Task(args[0])
				if err != nil {
					return err
				}
				text = t.Readme
			}
			if text == "" {
				text = "*No readme.*\n"
			}
			if raw {
				_, err := io.WriteString(cmd.OutOrStdout(), text)
				return err
			}
			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(80),
			)
			if err != nil {
				return err
			}
			rendered, err := r.Render(text)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the markdown source without rendering")
	return cmd
}
