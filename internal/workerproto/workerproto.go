// Package workerproto defines the JSON envelope the runner dispatcher
// sends to and receives from a worker process, implementing spec.md
// §9's "cross-process state... explicit serialization with versioned
// records".
package workerproto

import "github.com/clinicalgenomics/cellophane/pkg/sample"

// Version is bumped whenever the envelope shape changes incompatibly.
const Version = 1

// Request is written to a worker subprocess's stdin.
type Request struct {
	Version      int               `json:"version"`
	PluginDir    string            `json:"plugin_dir"`
	RunnerLabel  string            `json:"runner_label"`
	Workdir      string            `json:"workdir"`
	ExecutorName string            `json:"executor_name"`
	ExecutorOpts map[string]any    `json:"executor_opts,omitempty"`
	Config       map[string]any    `json:"config,omitempty"`
	Collection   sample.Collection `json:"collection"`
	Debug        string            `json:"debug,omitempty"`
}

// Response is written by a worker subprocess to its stdout.
type Response struct {
	Version    int               `json:"version"`
	Collection sample.Collection `json:"collection"`
	Error      string            `json:"error,omitempty"`
}
