// Package output implements the declarative output set and the resolver
// that copies a runner's declared files into the result directory
// (spec.md §4.6).
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clinicalgenomics/cellophane/pkg/console"
	"github.com/clinicalgenomics/cellophane/pkg/logger"
)

var log = logger.New("cellophane:output")

// ErrDestinationExists names the destination-collision condition. Resolve
// does not return it: a collision is logged as "<dst> already exists" and
// that output is skipped.
var ErrDestinationExists = errors.New("destination already exists")

// Output is a declarative description of files to copy out of a runner's
// workdir, per spec.md §3 Entities / Output.
type Output struct {
	// Source is a path or glob pattern, relative to the runner's workdir.
	// May contain "{sample.id}"-style placeholders expanded per sample.
	Source string
	// SampleScoped, if true, expands Source once per sample using that
	// sample's placeholders; otherwise Source is expanded once globally.
	SampleScoped bool
	// DestName overrides the destination file name, honored only when
	// exactly one file matches Source.
	DestName string
	// DestDir, if set, roots the destination under resultdir/DestDir
	// instead of mirroring Source's workdir-relative path.
	DestDir string
	// Checkpoint is the checkpoint label this output feeds, or "".
	Checkpoint string
}

// Set is an ordered collection of Output declarations. The driver fills
// the Set it resolves from each runner's Metadata.Outputs only; outputs a
// runner adds to Collection.Outputs during the call are not resolved, and
// that field is not carried across the worker-process boundary.
type Set struct {
	items []Output
}

// Add appends a declaration.
func (s *Set) Add(o Output) { s.items = append(s.items, o) }

// Items returns the declarations in declaration order.
func (s *Set) Items() []Output { return append([]Output(nil), s.items...) }

// SampleContext supplies the per-sample substitution values used to
// expand "{sample.id}"-style placeholders in sample-scoped outputs.
type SampleContext struct {
	ID string
}

// CopyResult records one successful copy, for the "Copying N outputs" log
// line and for tests asserting src-existed/dst-under-resultdir invariants.
type CopyResult struct {
	Src string
	Dst string
}

// Resolve expands, validates, and copies every declaration in s against
// workdir, writing into resultdir. It never returns an error for a
// per-output problem (missing source, escaping destination, collision,
// unmatched glob) -- those are logged and the output is skipped, per
// spec.md §4.6/§7. A non-nil error return means resultdir/workdir
// themselves could not be resolved to absolute paths.
func Resolve(s *Set, workdir, resultdir string, samples []SampleContext) ([]CopyResult, error) {
	workdir, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("output: resolve workdir: %w", err)
	}
	resultdir, err = filepath.Abs(resultdir)
	if err != nil {
		return nil, fmt.Errorf("output: resolve resultdir: %w", err)
	}

	seen := map[string]bool{}
	var copies []CopyResult

	for _, o := range s.items {
		for _, src := range expand(o, samples) {
			matches, err := globOrSelf(workdir, src)
			if err != nil {
				log.Printf("glob error for %q: %v", src, err)
				continue
			}
			if len(matches) == 0 {
				warn("No files matched pattern '%s'", src)
				continue
			}

			destName := o.DestName
			if destName != "" && len(matches) > 1 {
				warn("Destination name will be ignored as '%s' matched multiple files", src)
				destName = ""
			}

			for _, match := range matches {
				dst, err := destinationFor(o, destName, match, workdir, resultdir)
				if err != nil {
					log.Printf("destination error for %q: %v", match, err)
					continue
				}

				rel, relErr := filepath.Rel(resultdir, dst)
				if relErr != nil || strings.HasPrefix(rel, "..") {
					warn("%s is not relative to %s", dst, resultdir)
					continue
				}

				if _, statErr := os.Stat(match); statErr != nil {
					warn("%s does not exist", match)
					continue
				}

				_, statErr := os.Stat(dst)
				if seen[dst] || statErr == nil {
					warn("%s already exists", dst)
					continue
				}

				if err := copyPath(match, dst); err != nil {
					log.Printf("copy %q -> %q failed: %v", match, dst, err)
					continue
				}
				fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Copying %s to %s", match, dst)))
				seen[dst] = true
				copies = append(copies, CopyResult{Src: match, Dst: dst})
			}
		}
	}

	sort.Slice(copies, func(i, j int) bool { return copies[i].Dst < copies[j].Dst })
	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Copying %d outputs", len(copies))))
	return copies, nil
}

func warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf(format, args...)))
}

func expand(o Output, samples []SampleContext) []string {
	if !strings.Contains(o.Source, "{sample.id}") {
		return []string{o.Source}
	}
	if !o.SampleScoped || len(samples) == 0 {
		// Templated but not sample-scoped: leave unexpanded rather than
		// guess; the caller almost certainly intended sample scoping.
		return []string{o.Source}
	}
	out := make([]string, 0, len(samples))
	for _, sc := range samples {
		out = append(out, strings.ReplaceAll(o.Source, "{sample.id}", sc.ID))
	}
	return out
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

func globOrSelf(workdir, pattern string) ([]string, error) {
	full := filepath.Join(workdir, pattern)
	if !isGlob(pattern) {
		if _, err := os.Stat(full); err != nil {
			return nil, nil
		}
		return []string{full}, nil
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func destinationFor(o Output, destName, match, workdir, resultdir string) (string, error) {
	switch {
	case destName != "":
		return filepath.Join(resultdir, destName), nil
	case o.DestDir != "":
		return filepath.Join(resultdir, o.DestDir, filepath.Base(match)), nil
	default:
		rel, err := filepath.Rel(workdir, match)
		if err != nil {
			return "", err
		}
		return filepath.Join(resultdir, rel), nil
	}
}

func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst, info.Mode())
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
