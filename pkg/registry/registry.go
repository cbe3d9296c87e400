// Package registry implements the module loader and plugin registry
// described in spec.md §4.1: it scans a directory of user plugins,
// loads each, and collects the hooks, runners, mixins, merge functions,
// and executor backends they register. It is frozen before scheduling
// starts.
//
// Go has no runtime "import this source file" primitive, so the loader
// uses the standard library's plugin package (plugin.Open) to load
// *.so files built with `go build -buildmode=plugin`; each plugin
// exports a `Register func(*registry.Registry)` symbol that the loader
// calls, replacing the Python original's decorator-based discovery with
// explicit registration calls (spec.md §9).
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"

	"github.com/clinicalgenomics/cellophane/pkg/executor"
	"github.com/clinicalgenomics/cellophane/pkg/hook"
	"github.com/clinicalgenomics/cellophane/pkg/logger"
	"github.com/clinicalgenomics/cellophane/pkg/merge"
	"github.com/clinicalgenomics/cellophane/pkg/runner"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

var log = logger.New("cellophane:registry")

// AttributeSchema describes one mixin-contributed attribute (spec.md §9
// "mixins / open classes"): a name, default value, and optional
// validator run at registration-composition time.
type AttributeSchema struct {
	Kind      merge.Kind
	Name      string
	Default   any
	Validator func(any) error
}

// Registry is the process-wide, build-once collection of everything user
// plugins declare. It is not safe for concurrent registration calls
// during Load (plugins are loaded sequentially); after Freeze it is
// read-only.
type Registry struct {
	hooks      []hook.Hook
	runners    []runner.Metadata
	mixins     []AttributeSchema
	mergeFuncs *merge.Registry

	frozen bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{mergeFuncs: merge.New()}
}

// Hook registers a hook callable with its scheduling metadata. Intended
// to be called from a plugin's exported Register function, replacing the
// pre_hook/post_hook decorators named in spec.md §4.1.
func (r *Registry) Hook(h hook.Hook) {
	if r.frozen {
		panic("registry: Hook called after Freeze")
	}
	r.hooks = append(r.hooks, h)
}

// Runner registers a runner callable with its metadata, replacing the
// @runner decorator.
func (r *Registry) Runner(m runner.Metadata) {
	if r.frozen {
		panic("registry: Runner called after Freeze")
	}
	r.runners = append(r.runners, m)
}

// Mixin registers a sample- or collection-level attribute contributed by
// a user module.
func (r *Registry) Mixin(a AttributeSchema) {
	if r.frozen {
		panic("registry: Mixin called after Freeze")
	}
	r.mixins = append(r.mixins, a)
}

// Merge registers a merge function for (kind, attr), replacing the
// dynamic per-attribute-name dispatch named in spec.md §9.
func (r *Registry) Merge(kind merge.Kind, attr string, fn merge.Func) {
	if r.frozen {
		panic("registry: Merge called after Freeze")
	}
	r.mergeFuncs.Register(kind, attr, fn)
}

// ExecutorBackend registers a named executor backend.
func (r *Registry) ExecutorBackend(name string, b executor.Backend) {
	if r.frozen {
		panic("registry: ExecutorBackend called after Freeze")
	}
	executor.RegisterBackend(name, b)
}

// Plugin is the symbol every *.so plugin must export:
//
//	var Register registry.Plugin = func(r *registry.Registry) { ... }
type Plugin func(*Registry)

// Load walks dir for *.so files (sorted by name for deterministic import
// order, which doubles as hook/runner registration order per spec.md
// §4.2's tie-break), opens each with plugin.Open, and calls its exported
// Register symbol. A module that fails to load or has no Register symbol
// fails the run with a diagnostic naming the module (spec.md §4.1/§7).
func (r *Registry) Load(dir string) error {
	if r.frozen {
		return fmt.Errorf("registry: Load called after Freeze")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("registry: scan %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".so" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	for _, path := range files {
		if err := r.loadOne(path); err != nil {
			return fmt.Errorf("registry: module %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func (r *Registry) loadOne(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return err
	}
	sym, err := p.Lookup("Register")
	if err != nil {
		return fmt.Errorf("missing Register symbol: %w", err)
	}
	register, ok := sym.(func(*Registry))
	if !ok {
		if pr, ok2 := sym.(*Plugin); ok2 {
			(*pr)(r)
			return nil
		}
		if pf, ok2 := sym.(*func(*Registry)); ok2 {
			(*pf)(r)
			return nil
		}
		return fmt.Errorf("Register symbol has wrong type %T", sym)
	}
	register(r)
	return nil
}

// Freeze finalizes registration order, validates the hook graph
// references, and makes the registry read-only. It must be called before
// scheduling or dispatch begins (spec.md §4.1 "frozen before scheduling
// starts").
func (r *Registry) Freeze() error {
	if r.frozen {
		return nil
	}
	for i := range r.hooks {
		r.hooks[i] = r.hooks[i].WithOrder(i)
	}
	for i := range r.runners {
		r.runners[i] = r.runners[i].WithOrder(i)
	}
	if err := hook.Validate(r.hooks); err != nil {
		return err
	}
	for _, m := range r.mixins {
		if _, err := json.Marshal(m.Default); err != nil {
			return fmt.Errorf("registry: mixin %s: default value is not serializable: %w", m.Name, err)
		}
	}
	r.frozen = true
	return nil
}

// Hooks returns the registered hooks of the given kind, in registration
// order (unscheduled; call hook.Schedule to order them).
func (r *Registry) Hooks(kind hook.Kind) []hook.Hook {
	var out []hook.Hook
	for _, h := range r.hooks {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Runners returns every registered runner, in registration order.
func (r *Registry) Runners() []runner.Metadata {
	return append([]runner.Metadata(nil), r.runners...)
}

// Lookup looks up a runner by label.
func (r *Registry) Lookup(label string) (runner.Metadata, bool) {
	for _, m := range r.runners {
		if m.Label == label {
			return m, true
		}
	}
	return runner.Metadata{}, false
}

// MergeRegistry exposes the frozen merge-function registry to the
// dispatcher.
func (r *Registry) MergeRegistry() *merge.Registry {
	return r.mergeFuncs
}

// ComposeAttributes applies every registered mixin's default to a fresh
// Attributes bag, then runs each mixin's validator (if any) against
// existing values. Called by the driver when constructing the initial
// collection so user modules' declared defaults are present even for
// samples that omit them in the manifest (spec.md §9 "loader composes
// one concrete per-run type with the union of registered fields").
func (r *Registry) ComposeAttributes(kind merge.Kind, existing sample.Attributes) (sample.Attributes, error) {
	out := existing.Clone()
	if out == nil {
		out = sample.Attributes{}
	}
	for _, m := range r.mixins {
		if m.Kind != kind {
			continue
		}
		v, ok := out[m.Name]
		if !ok {
			out[m.Name] = m.Default
			v = m.Default
		}
		if m.Validator != nil {
			if err := m.Validator(v); err != nil {
				return nil, fmt.Errorf("registry: mixin %s: %w", m.Name, err)
			}
		}
	}
	return out, nil
}
