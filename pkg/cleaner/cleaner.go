// Package cleaner implements the per-scope filesystem cleanup registry
// described in spec.md §4.7: an eager cleaner used by the driver at
// global-workdir scope exit, and a deferred cleaner used inside runners.
package cleaner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clinicalgenomics/cellophane/pkg/console"
	"github.com/clinicalgenomics/cellophane/pkg/logger"
)

var log = logger.New("cellophane:cleaner")

// Cleaner is the shared contract between the eager and deferred
// implementations.
type Cleaner interface {
	// Register records path for removal. ignoreOutsideRoot permits paths
	// outside root (otherwise rejected and logged).
	Register(path string, ignoreOutsideRoot bool)
	// Unregister removes path from the registry (idempotent,
	// last-write-wins). Accepts absolute paths or paths relative to root.
	Unregister(path string)
	// Clean flushes the registry. The deferred cleaner logs and no-ops.
	Clean() error
}

type entry struct {
	path              string
	ignoreOutsideRoot bool
}

func resolve(root, path string) (string, bool) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), true
	}
	return filepath.Clean(filepath.Join(root, path)), false
}

func insideRoot(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// baseRegistry holds the common register/unregister bookkeeping shared by
// both cleaner flavors.
type baseRegistry struct {
	root    string
	entries map[string]entry
	order   []string
}

func newBaseRegistry(root string) baseRegistry {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return baseRegistry{root: abs, entries: map[string]entry{}}
}

func (b *baseRegistry) register(path string, ignoreOutsideRoot bool) {
	abs, _ := resolve(b.root, path)
	if !ignoreOutsideRoot && !insideRoot(b.root, abs) {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("%s outside %s", filepath.Base(abs), b.root)))
		return
	}
	if _, exists := b.entries[abs]; !exists {
		b.order = append(b.order, abs)
	}
	b.entries[abs] = entry{path: abs, ignoreOutsideRoot: ignoreOutsideRoot}
}

func (b *baseRegistry) unregister(path string) {
	abs, _ := resolve(b.root, path)
	delete(b.entries, abs)
}

// paths returns registered absolute paths, top-level entries first
// (shortest path first), in registration order among equal depths.
func (b *baseRegistry) paths() []string {
	out := make([]string, 0, len(b.order))
	for _, p := range b.order {
		if _, ok := b.entries[p]; ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Count(out[i], string(filepath.Separator)) < strings.Count(out[j], string(filepath.Separator))
	})
	return out
}

// EagerCleaner removes paths immediately on Clean(), used by the driver
// at global-workdir scope exit.
type EagerCleaner struct {
	baseRegistry
}

// NewEager constructs an eager cleaner rooted at root.
func NewEager(root string) *EagerCleaner {
	return &EagerCleaner{baseRegistry: newBaseRegistry(root)}
}

func (c *EagerCleaner) Register(path string, ignoreOutsideRoot bool) {
	c.register(path, ignoreOutsideRoot)
}

func (c *EagerCleaner) Unregister(path string) { c.unregister(path) }

// Clean removes each registered path bottom-up, logging one removal per
// top-level entry and per-path errors without aborting (spec.md §4.7 /
// §7).
func (c *EagerCleaner) Clean() error {
	for _, p := range c.paths() {
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Removing %s", p)))
		if err := os.RemoveAll(p); err != nil {
			log.Printf("%s: %v", p, err)
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("%s: %v", p, err)))
		}
		delete(c.entries, p)
	}
	return nil
}

// DeferredCleaner accumulates register/unregister calls and flushes them
// only when Flush is called by the owning scope (a runner's workdir
// teardown); Clean() is a documented no-op per spec.md §4.7.
type DeferredCleaner struct {
	baseRegistry
}

// NewDeferred constructs a deferred cleaner rooted at root.
func NewDeferred(root string) *DeferredCleaner {
	return &DeferredCleaner{baseRegistry: newBaseRegistry(root)}
}

func (c *DeferredCleaner) Register(path string, ignoreOutsideRoot bool) {
	c.register(path, ignoreOutsideRoot)
}

func (c *DeferredCleaner) Unregister(path string) { c.unregister(path) }

// Clean is a no-op that logs, per spec.md §4.7.
func (c *DeferredCleaner) Clean() error {
	fmt.Fprintln(os.Stderr, console.FormatWarningMessage("Deferred cleaner does not support cleaning"))
	return nil
}

// Flush performs the actual removal; called once by the worker process
// (registry.RunWorker) after the runner returns without error.
func (c *DeferredCleaner) Flush() error {
	for _, p := range c.paths() {
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Removing %s", p)))
		if err := os.RemoveAll(p); err != nil {
			log.Printf("%s: %v", p, err)
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("%s: %v", p, err)))
		}
		delete(c.entries, p)
	}
	return nil
}
