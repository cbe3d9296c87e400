// Package merge implements the per-attribute merge function registry
// described in spec.md §4.5: a map from (target kind, attribute name) to
// a merge function, with an explicit default policy when nothing is
// registered.
package merge

import (
	"fmt"
	"os"
	"sync"

	"github.com/clinicalgenomics/cellophane/pkg/console"
)

// Kind distinguishes sample-level from collection-level attributes.
type Kind int

const (
	KindSample Kind = iota
	KindCollection
)

// Func merges two values for the same attribute from two shards.
type Func func(this, that any) any

type key struct {
	kind Kind
	attr string
}

// Registry is the frozen (kind, attr) -> Func map, built by the module
// loader and consulted by the runner dispatcher's merge phase.
type Registry struct {
	mu    sync.RWMutex
	funcs map[key]Func
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{funcs: map[key]Func{}}
}

// Register adds a merge function for (kind, attr), overwriting any prior
// registration for the same key.
func (r *Registry) Register(kind Kind, attr string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[key{kind, attr}] = fn
}

// Merge resolves and applies the merge function for (kind, attr), or the
// default policy described in spec.md §4.5 if none is registered:
//   - same value on both sides -> pass through
//   - different scalar values -> []any{this, that}
//   - one side nil -> the other side
func (r *Registry) Merge(kind Kind, attr string, this, that any) any {
	r.mu.RLock()
	fn, ok := r.funcs[key{kind, attr}]
	r.mu.RUnlock()
	if ok {
		return callContained(fn, this, that)
	}
	return defaultMerge(this, that)
}

// callContained invokes fn, containing a panic per spec.md §7/§4.5: logged
// as the canonical "Unhandled exception when collecting results" message,
// with the attribute left on the this side.
func callContained(fn Func, this, that any) (result any) {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("Unhandled exception when collecting results: %v", rec)))
			result = this
		}
	}()
	return fn(this, that)
}

func defaultMerge(this, that any) any {
	if this == nil {
		return that
	}
	if that == nil {
		return this
	}
	if equalScalar(this, that) {
		return this
	}
	// Flatten rather than nest: appending to an existing tuple keeps
	// equivalence with pairwise tuples on the two-shard case while
	// avoiding deep nesting across many shards (spec.md §9 open
	// question).
	if tuple, ok := this.([]any); ok {
		return append(append([]any{}, tuple...), that)
	}
	return []any{this, that}
}

func equalScalar(a, b any) bool {
	return a == b
}
