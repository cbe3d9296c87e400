package registry

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/clinicalgenomics/cellophane/internal/workerproto"
	"github.com/clinicalgenomics/cellophane/pkg/checkpoint"
	"github.com/clinicalgenomics/cellophane/pkg/cleaner"
	"github.com/clinicalgenomics/cellophane/pkg/executor"
	"github.com/clinicalgenomics/cellophane/pkg/logger"
	"github.com/clinicalgenomics/cellophane/pkg/runner"
)

// RunWorker implements the worker-process side of spec.md §4.3: it
// reads a workerproto.Request from r, re-loads the plugin directory
// named in the request (plugins are loaded fresh in every worker process
// since the worker is a separate OS process with its own memory, per
// spec.md §5), looks up the requested runner, builds its per-shard
// Context, invokes it, and writes a workerproto.Response to w.
//
// Any panic or error from the runner callable is captured here and
// reported as shard failure rather than crashing the worker process
// (spec.md §4.3 "exceptions are captured, converted to failed(reason) on
// every sample of the shard").
func RunWorker(r io.Reader, w io.Writer) (err error) {
	var req workerproto.Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("registry: decode request: %w", err)
	}

	resp := workerproto.Response{Version: workerproto.Version, Collection: req.Collection}

	defer func() {
		if rec := recover(); rec != nil {
			resp.Error = fmt.Sprintf("panic: %v", rec)
		}
		failAllIfError(&resp)
		enc := json.NewEncoder(w)
		if encErr := enc.Encode(resp); encErr != nil {
			err = fmt.Errorf("registry: encode response: %w", encErr)
		}
	}()

	reg := New()
	if req.PluginDir != "" {
		if loadErr := reg.Load(req.PluginDir); loadErr != nil {
			resp.Error = loadErr.Error()
			return nil
		}
	}
	if freezeErr := reg.Freeze(); freezeErr != nil {
		resp.Error = freezeErr.Error()
		return nil
	}

	m, ok := reg.Lookup(req.RunnerLabel)
	if !ok {
		resp.Error = fmt.Sprintf("unknown runner %q", req.RunnerLabel)
		return nil
	}

	exec_, execErr := executor.New(req.ExecutorName, req.Workdir, req.ExecutorOpts)
	if execErr != nil {
		resp.Error = execErr.Error()
		return nil
	}

	rc := &runner.Context{
		Workdir:     req.Workdir,
		Log:         logger.New("cellophane:runner:" + req.RunnerLabel),
		Checkpoints: checkpoint.NewStore(req.Workdir),
		Executor:    exec_,
		Cleaner:     cleaner.NewDeferred(req.Workdir),
	}

	result, runErr := m.Fn(rc, &req.Collection)
	if runErr != nil {
		resp.Error = runErr.Error()
		return nil
	}
	if result != nil {
		resp.Collection = *result
	}

	if flushErr := rc.Cleaner.Flush(); flushErr != nil {
		// Cleanup errors are never fatal (spec.md §4.7/§7); the worker
		// still reports its result.
		rc.Log.Printf("cleanup: %v", flushErr)
	}

	return nil
}

// failAllIfError marks every sample in the response collection failed
// when the shard itself errored, so the merged master collection
// reflects the contained failure per spec.md §4.3/§7.
func failAllIfError(resp *workerproto.Response) {
	if resp.Error == "" {
		return
	}
	for _, s := range resp.Collection.Samples {
		s.Fail(resp.Error)
	}
}
