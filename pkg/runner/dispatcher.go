package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/clinicalgenomics/cellophane/internal/workerproto"
	"github.com/clinicalgenomics/cellophane/pkg/console"
	"github.com/clinicalgenomics/cellophane/pkg/logger"
	"github.com/clinicalgenomics/cellophane/pkg/merge"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

var log = logger.New("cellophane:runner")

// WorkerArg is the argv[1] that re-execs the cellophane binary into
// worker mode; cmd/cellophane checks for it before parsing any cobra
// command (spec.md §5: the worker "must not bring down the driver").
const WorkerArg = "__cellophane_worker__"

// ShutdownGrace bounds how long the dispatcher waits for in-flight
// workers after a cancellation request before force-terminating them
// (spec.md §4.3 cancellation / §5).
const ShutdownGrace = 10 * time.Second

// DispatchOptions configures one Dispatch call.
type DispatchOptions struct {
	RootWorkdir  string
	Tag          string
	PluginDir    string
	ExecutorName string
	ExecutorOpts map[string]any
	Config       map[string]any
	PoolSize     int
	Merge        *merge.Registry
}

// Dispatch fans the collection out by m.SplitBy (or runs it as one
// shard), runs each shard in a separate worker process, and merges the
// results back in dispatch order (spec.md §4.3).
func Dispatch(ctx context.Context, exePath string, m Metadata, collection *sample.Collection, opts DispatchOptions) (*sample.Collection, error) {
	reg := opts.Merge
	if reg == nil {
		reg = merge.New()
	}

	shards := shardsFor(m, collection)
	logShardSizes(m, shards)

	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	p := pool.NewWithResults[shardOutcome]().WithMaxGoroutines(poolSize).WithContext(ctx)

	for i, shard := range shards {
		i, shard := i, shard
		workdir := workdirFor(opts.RootWorkdir, opts.Tag, m.Label, shard.CallID, m.SplitBy != "")

		p.Go(func(ctx context.Context) (shardOutcome, error) {
			out, err := runShard(ctx, exePath, m.Label, workdir, shard, opts)
			if err != nil {
				markShardFailed(shard, err)
				out = shard
			}
			return shardOutcome{index: i, result: out}, nil
		})
	}

	outcomes, _ := p.Wait()

	results := make([]*sample.Collection, len(outcomes))
	for _, o := range outcomes {
		results[o.index] = o.result
	}

	return mergeShards(collection, results, reg), nil
}

// shardOutcome carries one shard's dispatch-order index alongside its
// (possibly failure-marked) result collection.
type shardOutcome struct {
	index  int
	result *sample.Collection
}

func shardsFor(m Metadata, c *sample.Collection) []*sample.Collection {
	if m.SplitBy == "" {
		cp := c.Clone()
		return []*sample.Collection{cp}
	}
	return c.Split(m.SplitBy)
}

func logShardSizes(m Metadata, shards []*sample.Collection) {
	if m.SplitBy == "" {
		return
	}
	for _, s := range shards {
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("%s: %d", s.CallID, s.Len())))
	}
}

func workdirFor(root, tag, label, splitKey string, split bool) string {
	if !split {
		return filepath.Join(root, tag, label)
	}
	return filepath.Join(root, tag, label, splitKey)
}

func markShardFailed(shard *sample.Collection, err error) {
	for _, s := range shard.Samples {
		s.Fail(err.Error())
	}
}

// runShard spawns one worker process for shard and returns its resulting
// collection.
func runShard(ctx context.Context, exePath, label, workdir string, shard *sample.Collection, opts DispatchOptions) (*sample.Collection, error) {
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("runner: mkdir workdir: %w", err)
	}

	req := workerproto.Request{
		Version:      workerproto.Version,
		PluginDir:    opts.PluginDir,
		RunnerLabel:  label,
		Workdir:      workdir,
		ExecutorName: opts.ExecutorName,
		ExecutorOpts: opts.ExecutorOpts,
		Config:       opts.Config,
		Collection:   *shard,
		Debug:        os.Getenv("DEBUG"),
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("runner: marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, exePath, WorkerArg)
	// On cancellation the worker is interrupted first and killed only if it
	// has not exited within ShutdownGrace.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = ShutdownGrace
	cmd.Stdin = bytes.NewReader(reqBytes)
	cmd.Stderr = os.Stderr
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	log.Printf("dispatching %s in %s (pid pending)", label, workdir)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("runner: worker process: %w", err)
	}

	var resp workerproto.Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("runner: unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("runner: %s", resp.Error)
	}
	return &resp.Collection, nil
}

// mergeShards folds the per-shard results back into one master
// collection, matching samples by (id, dispatch index) and merging
// per-attribute via reg, per spec.md §4.3/§4.5.
func mergeShards(original *sample.Collection, results []*sample.Collection, reg *merge.Registry) *sample.Collection {
	byIndex := map[int]*sample.Sample{}
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, s := range r.Samples {
			byIndex[s.DispatchIndex] = s
		}
	}

	merged := &sample.Collection{Attributes: original.Attributes.Clone(), CallID: original.CallID}
	for _, orig := range original.Samples {
		updated, ok := byIndex[orig.DispatchIndex]
		if !ok {
			merged.Add(orig)
			continue
		}
		merged.Add(mergeSample(orig, updated, reg))
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		merged.Attributes = mergeAttrs(merged.Attributes, r.Attributes, merge.KindCollection, reg)
	}

	return merged
}

func mergeSample(orig, updated *sample.Sample, reg *merge.Registry) *sample.Sample {
	result := updated.Clone()
	result.Attributes = mergeAttrs(orig.Attributes, updated.Attributes, merge.KindSample, reg)
	return result
}

func mergeAttrs(this, that sample.Attributes, kind merge.Kind, reg *merge.Registry) sample.Attributes {
	if this == nil && that == nil {
		return nil
	}
	out := sample.Attributes{}
	for k, v := range this {
		out[k] = v
	}
	for k, v := range that {
		if existing, ok := out[k]; ok {
			out[k] = reg.Merge(kind, k, existing, v)
		} else {
			out[k] = v
		}
	}
	return out
}
