// Package hook implements the pre/post hook metadata model and the
// dependency-ordered scheduler described in spec.md §4.2.
package hook

import (
	"errors"
	"fmt"

	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

// Kind distinguishes pre- from post-hooks.
type Kind int

const (
	KindPre Kind = iota
	KindPost
)

// Condition gates whether a post-hook runs, evaluated against the final
// sample collection (spec.md §4.2).
type Condition int

const (
	ConditionAlways Condition = iota
	ConditionComplete
	ConditionFailed
)

// All is the sentinel "before"/"after" value pinning a hook to the
// extremes of its kind's ordering (spec.md §4.2).
const All = "all"

// Func is a hook callable. It receives and may return a mutated
// collection; the returned value replaces the current one (spec.md §4.2).
type Func func(c *sample.Collection) (*sample.Collection, error)

// Hook is a registered hook plus its scheduling metadata.
type Hook struct {
	Label     string
	Kind      Kind
	Before    []string
	After     []string
	Condition Condition // meaningful only for Kind == KindPost
	Fn        Func

	// order is the registration (import) order, used as the scheduler's
	// tie-break per spec.md §4.2.
	order int
}

// ErrCycle is returned when the before/after constraints for one kind
// contain a cycle (spec.md §4.2 / §7).
var ErrCycle = errors.New("unable to resolve hook dependencies")

// Schedule computes the total ordering of hooks (all of the same Kind)
// consistent with their before/after constraints, breaking ties by
// registration order (spec.md §4.2).
func Schedule(hooks []Hook) ([]Hook, error) {
	labelIndex := map[string]int{}
	for i, h := range hooks {
		labelIndex[h.Label] = i
	}

	n := len(hooks)
	// adj[i] contains j meaning i must run before j.
	adj := make([][]int, n)
	indegree := make([]int, n)

	addEdge := func(before, after int) {
		adj[before] = append(adj[before], after)
		indegree[after]++
	}

	for i, h := range hooks {
		for _, name := range h.Before {
			if name == All {
				for j := range hooks {
					if j != i {
						addEdge(i, j)
					}
				}
				continue
			}
			if j, ok := labelIndex[name]; ok {
				addEdge(i, j)
			}
		}
		for _, name := range h.After {
			if name == All {
				for j := range hooks {
					if j != i {
						addEdge(j, i)
					}
				}
				continue
			}
			if j, ok := labelIndex[name]; ok {
				addEdge(j, i)
			}
		}
	}

	// Kahn's algorithm; each step scans the ready hooks and takes the one
	// with the lowest registration order, so registration order wins ties.
	visited := make([]bool, n)
	ordered := make([]Hook, 0, n)

	for len(ordered) < n {
		next := -1
		for i := 0; i < n; i++ {
			if visited[i] || indegree[i] > 0 {
				continue
			}
			if next == -1 || hooks[i].order < hooks[next].order {
				next = i
			}
		}
		if next == -1 {
			return nil, ErrCycle
		}
		visited[next] = true
		ordered = append(ordered, hooks[next])
		for _, j := range adj[next] {
			indegree[j]--
		}
	}

	return ordered, nil
}

// ShouldRun evaluates a post-hook's condition against the final
// collection (spec.md §4.2).
func (h Hook) ShouldRun(c *sample.Collection) bool {
	switch h.Condition {
	case ConditionAlways:
		return true
	case ConditionComplete:
		return c.AllComplete()
	case ConditionFailed:
		return c.AnyFailed()
	default:
		return true
	}
}

// WithOrder returns a copy of h tagged with registration order i. Used by
// pkg/registry when freezing the registered hook list.
func (h Hook) WithOrder(i int) Hook {
	h.order = i
	return h
}

// Order exposes the registration-order tie-break value for diagnostics.
func (h Hook) Order() int { return h.order }

// Validate reports a descriptive error if h references an unknown
// "before"/"after" label other than All; called at registration freeze
// time so module-load diagnostics name the offending hook (spec.md §4.1).
func Validate(hooks []Hook) error {
	labels := map[string]bool{}
	for _, h := range hooks {
		labels[h.Label] = true
	}
	for _, h := range hooks {
		for _, name := range append(append([]string{}, h.Before...), h.After...) {
			if name != All && !labels[name] {
				return fmt.Errorf("hook %q references unknown hook %q", h.Label, name)
			}
		}
	}
	return nil
}
