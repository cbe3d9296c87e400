// Package executor provides the backend-agnostic contract for running
// external commands (spec.md §4.8): submit/wait/terminate, with a fresh
// 128-bit correlation id per submitted job and a per-job workdir.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/clinicalgenomics/cellophane/pkg/logger"
)

var log = logger.New("cellophane:executor")

// Status is a job's terminal state.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// EnvSpec describes an isolated-environment bootstrap to run before the
// command itself (e.g. a conda/container environment), per spec.md §3/§4.8.
// The abstract contract only names the spec; bootstrapping it is a
// backend concern.
type EnvSpec struct {
	Name string
	Spec map[string]any
}

// SubmitOptions configures one job submission.
type SubmitOptions struct {
	Command string
	Args    []string
	Env     []string
	Workdir string
	CPUs    int
	Memory  int // MB
	Wait    bool
	EnvSpec *EnvSpec
}

// Job is one executor job: a correlation id, the submitted command, and
// its terminal status once reached (spec.md §3 Entities / Executor job).
type Job struct {
	ID      uuid.UUID
	Command string
	Args    []string
	Workdir string

	mu     sync.Mutex
	status Status
	code   int
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// Status returns the job's current status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// ExitCode returns the process exit code, valid once Status is terminal.
func (j *Job) ExitCode() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.code
}

// Err returns the job's terminal error, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Wait blocks until the job reaches a terminal state.
func (j *Job) Wait() {
	<-j.done
}

func (j *Job) finish(status Status, code int, err error) {
	j.mu.Lock()
	j.status = status
	j.code = code
	j.err = err
	j.mu.Unlock()
	close(j.done)
}

// Executor is the abstract backend contract (spec.md §4.8).
type Executor interface {
	// Submit starts cmd and returns its Job handle. If opts.Wait is true,
	// Submit blocks until the job is terminal.
	Submit(ctx context.Context, opts SubmitOptions) (*Job, error)
	// Wait blocks until every outstanding job submitted by this executor
	// reaches a terminal state.
	Wait()
	// Terminate requests termination of all outstanding jobs.
	Terminate()
}

// Backend constructs an Executor given its root directory (under which
// each job gets "<root>/<id-hex>") and backend-specific options.
type Backend func(root string, opts map[string]any) (Executor, error)

var (
	backendsMu sync.Mutex
	backends   = map[string]Backend{
		"subprocess": newSubprocessExecutor,
	}
)

// RegisterBackend adds an executor backend under name, called by the
// module loader when a user module registers one (spec.md §4.1/§4.8).
func RegisterBackend(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = b
}

// New constructs the named backend's Executor rooted at root.
func New(name, root string, opts map[string]any) (Executor, error) {
	backendsMu.Lock()
	b, ok := backends[name]
	backendsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("executor: unknown backend %q", name)
	}
	return b(root, opts)
}

// jobWorkdir returns "<root>/<id-hex>" per spec.md §4.8.
func jobWorkdir(root string, id uuid.UUID) string {
	return filepath.Join(root, id.String())
}

// subprocessExecutor is the local subprocess backend: each job is a
// direct os/exec.Cmd, optionally attached to a pty (see pty.go) so
// external bioinformatics tools that branch on isatty() behave as if run
// interactively.
type subprocessExecutor struct {
	root string
	usePty bool

	mu   sync.Mutex
	jobs []*Job
	wg   sync.WaitGroup
}

func newSubprocessExecutor(root string, opts map[string]any) (Executor, error) {
	usePty, _ := opts["pty"].(bool)
	return &subprocessExecutor{root: root, usePty: usePty}, nil
}

func (e *subprocessExecutor) Submit(ctx context.Context, o SubmitOptions) (*Job, error) {
	id := uuid.New()
	workdir := o.Workdir
	if workdir == "" {
		workdir = jobWorkdir(e.root, id)
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: mkdir workdir: %w", err)
	}

	jctx, cancel := context.WithCancel(ctx)
	job := &Job{ID: id, Command: o.Command, Args: o.Args, Workdir: workdir, cancel: cancel, done: make(chan struct{})}

	cmd := exec.CommandContext(jctx, o.Command, o.Args...)
	cmd.Dir = workdir
	cmd.Env = o.Env

	e.mu.Lock()
	e.jobs = append(e.jobs, job)
	e.mu.Unlock()
	e.wg.Add(1)

	run := func() {
		defer e.wg.Done()
		log.Printf("submit %s: %s %v", id, o.Command, o.Args)
		var err error
		if e.usePty {
			err = runWithPty(cmd)
		} else {
			err = cmd.Run()
		}
		code := cmd.ProcessState.ExitCode()
		switch {
		case jctx.Err() != nil:
			job.finish(StatusTerminated, code, jctx.Err())
		case err != nil:
			job.finish(StatusFailed, code, err)
		default:
			job.finish(StatusSucceeded, 0, nil)
		}
	}

	if o.Wait {
		run()
	} else {
		go run()
	}

	return job, nil
}

func (e *subprocessExecutor) Wait() {
	e.wg.Wait()
}

func (e *subprocessExecutor) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, j := range e.jobs {
		if j.Status() == StatusPending {
			j.cancel()
		}
	}
}
