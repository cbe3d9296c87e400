// Package runner implements the runner metadata model and the
// process-parallel dispatcher described in spec.md §4.3: fan-out by
// split_by, one worker OS process per shard, and result merge.
package runner

import (
	"github.com/clinicalgenomics/cellophane/pkg/checkpoint"
	"github.com/clinicalgenomics/cellophane/pkg/cleaner"
	"github.com/clinicalgenomics/cellophane/pkg/executor"
	"github.com/clinicalgenomics/cellophane/pkg/logger"
	"github.com/clinicalgenomics/cellophane/pkg/output"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

// Context is handed to a runner callable: the scoped logger, checkpoint
// store, executor instance, and deferred cleaner all rooted at the
// shard's workdir (spec.md §4.3 "per shard the worker receives").
// Passing it explicitly rather than through package globals replaces the
// "global current executor singleton" named in spec.md §9.
type Context struct {
	Workdir string
	Log     *logger.Logger
	Checkpoints *checkpoint.Store
	Executor    executor.Executor
	Cleaner     *cleaner.DeferredCleaner
}

// Func is a runner callable. It receives the per-shard context and
// collection and returns the (possibly modified) shard.
type Func func(ctx *Context, c *sample.Collection) (*sample.Collection, error)

// Metadata describes a registered runner (spec.md §3 Entities / Runner).
type Metadata struct {
	Label       string
	SplitBy     string
	Outputs     []output.Output
	Checkpoints []string
	Fn          Func

	order int
}

// WithOrder tags m with its registration order; mirrors
// hook.Hook.WithOrder. The dispatcher does not read it: runners run in
// the order Registry.Runners returns them.
func (m Metadata) WithOrder(i int) Metadata {
	m.order = i
	return m
}
