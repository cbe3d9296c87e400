// Package driver composes every other package into the single run
// described in spec.md §4.10: module load, samples manifest load,
// pre-hooks, runner dispatch, post-hooks, output copy, and cleanup. The
// configuration arrives already validated in Options.Config.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clinicalgenomics/cellophane/pkg/cleaner"
	"github.com/clinicalgenomics/cellophane/pkg/config"
	"github.com/clinicalgenomics/cellophane/pkg/console"
	"github.com/clinicalgenomics/cellophane/pkg/hook"
	"github.com/clinicalgenomics/cellophane/pkg/logger"
	"github.com/clinicalgenomics/cellophane/pkg/merge"
	"github.com/clinicalgenomics/cellophane/pkg/output"
	"github.com/clinicalgenomics/cellophane/pkg/registry"
	"github.com/clinicalgenomics/cellophane/pkg/runner"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

var log = logger.New("cellophane:driver")

// Options configures one driver run, gathering everything the "run"
// cobra command (cmd/cellophane) collects from flags/config.
type Options struct {
	// ExePath is the cellophane binary itself, re-exec'd into worker mode
	// by the runner dispatcher (spec.md §4.3/§5).
	ExePath string

	// Workdir is the tag-scoped root workdir (WorkdirFor(root, Tag));
	// runner workdirs are created directly beneath it.
	Workdir     string
	ResultDir   string
	PluginDir   string
	SamplesFile string
	Tag         string

	Config *config.Config

	ExecutorName string
	ExecutorOpts map[string]any
	PoolSize     int

	// DryRun skips the output-copy and cleanup phases, per SPEC_FULL.md's
	// supplemented --dry-run flag.
	DryRun bool
}

// Result is the outcome of one driver run, handed back to cmd/cellophane
// for exit-code and summary-table rendering.
type Result struct {
	Collection *sample.Collection
	Copies     []output.CopyResult
}

// Run executes the full pipeline described in spec.md §4.10. A non-nil
// error means a fatal condition (module load failure, hook cycle, samples
// manifest load failure); per-sample/per-hook/per-runner failures are
// contained and reflected in the returned collection's sample states
// instead (spec.md §7).
func Run(ctx context.Context, opts Options) (*Result, error) {
	reg := registry.New()
	if opts.PluginDir != "" {
		if err := reg.Load(opts.PluginDir); err != nil {
			return nil, fmt.Errorf("driver: load modules: %w", err)
		}
	}
	if err := reg.Freeze(); err != nil {
		return nil, fmt.Errorf("driver: freeze registry: %w", err)
	}
	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Found %d hooks", len(reg.Hooks(hook.KindPre))+len(reg.Hooks(hook.KindPost)))))
	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Found %d runners", len(reg.Runners()))))

	collection, err := sample.LoadManifest(opts.SamplesFile)
	if err != nil {
		return nil, fmt.Errorf("driver: load samples: %w", err)
	}
	if err := composeAttributes(reg, collection); err != nil {
		return nil, fmt.Errorf("driver: compose attributes: %w", err)
	}

	collection, err = runHooks(ctx, reg, hook.KindPre, collection)
	if err != nil {
		return nil, fmt.Errorf("driver: pre-hooks: %w", err)
	}

	globalOutputs := &output.Set{}

	for _, m := range reg.Runners() {
		select {
		case <-ctx.Done():
			markAllFailed(collection, ctx.Err())
			reportSampleOutcomes(collection)
			return finish(opts, collection, globalOutputs, reg)
		default:
		}

		log.Printf("dispatching runner %s", m.Label)
		sp := console.NewSpinner(fmt.Sprintf("Running %s", m.Label))
		sp.Start()
		result, err := runner.Dispatch(ctx, opts.ExePath, m, collection, runner.DispatchOptions{
			// opts.Workdir is already the tag-scoped root (see WorkdirFor),
			// so the tag is not joined onto it a second time.
			RootWorkdir:  opts.Workdir,
			PluginDir:    opts.PluginDir,
			ExecutorName: opts.ExecutorName,
			ExecutorOpts: opts.ExecutorOpts,
			Config:       configMap(opts.Config),
			PoolSize:     opts.PoolSize,
			Merge:        reg.MergeRegistry(),
		})
		sp.Stop()
		if err != nil {
			return nil, fmt.Errorf("driver: dispatch %s: %w", m.Label, err)
		}
		collection = result
		for _, o := range m.Outputs {
			globalOutputs.Add(o)
		}
	}

	collection, err = runHooks(ctx, reg, hook.KindPost, collection)
	if err != nil {
		return nil, fmt.Errorf("driver: post-hooks: %w", err)
	}

	reportSampleOutcomes(collection)

	return finish(opts, collection, globalOutputs, reg)
}

// reportSampleOutcomes emits the canonical per-sample status lines
// described in spec.md §6/§7: "Sample <id> processed successfully" for
// every completed sample, "Sample <id> failed - <reason>" for every
// failed one.
func reportSampleOutcomes(c *sample.Collection) {
	for _, s := range c.Samples {
		if s.Failed() {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(fmt.Sprintf("Sample %s failed - %s", s.ID, s.FailReason())))
			continue
		}
		fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Sample %s processed successfully", s.ID)))
	}
}

func finish(opts Options, collection *sample.Collection, outputs *output.Set, reg *registry.Registry) (*Result, error) {
	res := &Result{Collection: collection}

	if opts.DryRun {
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Dry run: skipping output copy and cleanup"))
		return res, nil
	}

	samples := make([]output.SampleContext, 0, collection.Len())
	for _, s := range collection.Samples {
		samples = append(samples, output.SampleContext{ID: s.ID})
	}

	copies, err := output.Resolve(outputs, opts.Workdir, opts.ResultDir, samples)
	if err != nil {
		return nil, fmt.Errorf("driver: resolve outputs: %w", err)
	}
	res.Copies = copies

	cl := cleaner.NewEager(opts.Workdir)
	cl.Register(opts.Workdir, true)
	if err := cl.Clean(); err != nil {
		log.Printf("cleanup: %v", err)
	}

	return res, nil
}

// runHooks schedules and sequentially runs every hook of kind against
// collection, honoring post-hook conditions (spec.md §4.2). A hook
// exception is contained: logged, and the collection passed into it is
// carried forward unchanged (spec.md §7).
func runHooks(ctx context.Context, reg *registry.Registry, kind hook.Kind, collection *sample.Collection) (*sample.Collection, error) {
	hooks, err := hook.Schedule(reg.Hooks(kind))
	if err != nil {
		return nil, err
	}

	for _, h := range hooks {
		select {
		case <-ctx.Done():
			return collection, nil
		default:
		}

		if kind == hook.KindPost && !h.ShouldRun(collection) {
			continue
		}

		fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Running %s hook", h.Label)))
		result, err := runContained(h, collection)
		if err != nil {
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("hook %s: %v", h.Label, err)))
			continue
		}
		if result != nil {
			collection = result
		}
	}
	return collection, nil
}

func runContained(h hook.Hook, c *sample.Collection) (result *sample.Collection, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Fn(c)
}

func composeAttributes(reg *registry.Registry, c *sample.Collection) error {
	attrs, err := reg.ComposeAttributes(merge.KindCollection, c.Attributes)
	if err != nil {
		return err
	}
	c.Attributes = attrs

	for _, s := range c.Samples {
		sa, err := reg.ComposeAttributes(merge.KindSample, s.Attributes)
		if err != nil {
			return fmt.Errorf("sample %s: %w", s.ID, err)
		}
		s.Attributes = sa
	}
	return nil
}

func markAllFailed(c *sample.Collection, err error) {
	for _, s := range c.Samples {
		s.Fail(err.Error())
	}
}

func configMap(c *config.Config) map[string]any {
	if c == nil {
		return nil
	}
	return c.Raw()
}

// SummaryRows builds the end-of-run sample status table rows described in
// SPEC_FULL.md's supplemented-features section.
func SummaryRows(c *sample.Collection) []console.SampleStatusRow {
	rows := make([]console.SampleStatusRow, 0, c.Len())
	for _, s := range c.Samples {
		rows = append(rows, console.SampleStatusRow{
			ID:     s.ID,
			State:  s.State().String(),
			Reason: s.FailReason(),
		})
	}
	return rows
}

// WorkdirFor returns the tag-scoped root workdir, matching spec.md §6's
// workspace layout ("<workdir>/<tag>/...").
func WorkdirFor(root, tag string) string {
	if tag == "" {
		return root
	}
	return filepath.Join(root, tag)
}
