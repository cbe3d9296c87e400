package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicalgenomics/cellophane/pkg/console"
	"github.com/clinicalgenomics/cellophane/pkg/driver"
	"github.com/clinicalgenomics/cellophane/pkg/runner"
)

type runFlags struct {
	workdir      string
	resultdir    string
	plugins      string
	samples      string
	configFile   string
	schemaFile   string
	tag          string
	executor     string
	poolSize     int
	dryRun       bool
}

// NewRunCommand builds the "run" command: load config, load samples, run
// the full pipeline (spec.md §4.10), print the end-of-run summary.
func NewRunCommand(exePath func() (string, error)) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a cellophane pipeline to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(f)
			if err != nil {
				return err
			}
			path, err := exePath()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			opts.ExePath = path

			ctx, cancel := signalContext()
			defer cancel()

			result, err := driver.Run(ctx, *opts)
			if err != nil {
				return err
			}

			rows := driver.SummaryRows(result.Collection)
			if table := console.RenderSampleStatusTable(rows); table != "" {
				fmt.Fprintln(os.Stderr, table)
			}

			if result.Collection.AnyFailed() {
				return fmt.Errorf("one or more samples failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.workdir, "workdir", "", "Root working directory (required)")
	cmd.Flags().StringVar(&f.resultdir, "resultdir", "", "Result directory outputs are copied into (required)")
	cmd.Flags().StringVar(&f.plugins, "plugins", "", "Directory of compiled plugin (.so) modules")
	cmd.Flags().StringVar(&f.samples, "samples", "", "Samples manifest YAML file (required)")
	cmd.Flags().StringVar(&f.configFile, "config", "", "Configuration mapping YAML/JSON file")
	cmd.Flags().StringVar(&f.schemaFile, "schema", "", "JSON schema to validate the configuration mapping against")
	cmd.Flags().StringVar(&f.tag, "tag", "", "Run tag, scopes workdirs under <workdir>/<tag>")
	cmd.Flags().StringVar(&f.executor, "executor", "subprocess", "Executor backend name")
	cmd.Flags().IntVar(&f.poolSize, "pool-size", 4, "Maximum concurrent worker processes per runner")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Run hooks and runners but skip output copy and cleanup")
	_ = cmd.MarkFlagRequired("workdir")
	_ = cmd.MarkFlagRequired("resultdir")
	_ = cmd.MarkFlagRequired("samples")

	return cmd
}

func buildOptions(f runFlags) (*driver.Options, error) {
	cfg, err := loadConfig(f.schemaFile, f.configFile)
	if err != nil {
		return nil, err
	}

	return &driver.Options{
		Workdir:      driver.WorkdirFor(f.workdir, f.tag),
		ResultDir:    f.resultdir,
		PluginDir:    f.plugins,
		SamplesFile:  f.samples,
		Tag:          f.tag,
		Config:       cfg,
		ExecutorName: f.executor,
		PoolSize:     f.poolSize,
		DryRun:       f.dryRun,
	}, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM; if the run
// has not returned within ShutdownGrace of that signal, the process exits
// with code 130 rather than hanging forever. A second signal does not
// shorten that wait.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage("Received SIGINT, telling runners to shut down..."))
		select {
		case <-done:
		case <-time.After(runner.ShutdownGrace):
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage("shutdown grace period elapsed, forcing exit"))
			os.Exit(130)
		}
	}()

	return ctx, func() {
		close(done)
		stop()
	}
}
