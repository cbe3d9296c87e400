// Package checkpoint implements content-addressed fingerprints of a
// runner's declared outputs, used to decide whether a runner's work is
// current (spec.md §4.4).
package checkpoint

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/clinicalgenomics/cellophane/pkg/logger"
)

var log = logger.New("cellophane:checkpoint")

// FileSet is the multiset of (relative-path, content) pairs a checkpoint
// fingerprints. The resolver that owns this (the output set, or a runner
// directly) supplies it; checkpoint itself only hashes and persists.
type FileSet map[string]string // relative path -> absolute path on disk

// record is the on-disk snapshot of a stored fingerprint.
type record struct {
	Label  string `yaml:"label"`
	Digest string `yaml:"digest"`
}

// Store roots a set of checkpoints at a runner invocation's workdir,
// persisting each under "<workdir>/.checkpoints/<label>" per spec.md §6
// workspace layout.
type Store struct {
	dir string
}

// NewStore returns a checkpoint store rooted at workdir.
func NewStore(workdir string) *Store {
	return &Store{dir: filepath.Join(workdir, ".checkpoints")}
}

// Checkpoint returns the checkpoint for label within this store, whose
// live fingerprint is derived from files.
func (s *Store) Checkpoint(label string, files FileSet) *Checkpoint {
	return &Checkpoint{store: s, label: label, files: files}
}

func (s *Store) path(label string) string {
	return filepath.Join(s.dir, label)
}

// Checkpoint is a label scoped to one runner invocation's workdir
// (spec.md §3 Entities / Checkpoint).
type Checkpoint struct {
	store *Store
	label string
	files FileSet
}

// Hexdigest returns the current live fingerprint as a hex string
// (spec.md §4.4).
func (c *Checkpoint) Hexdigest() (string, error) {
	return liveDigest(c.files)
}

// Check returns true iff the stored fingerprint exists and equals the
// live fingerprint (spec.md §4.4).
func (c *Checkpoint) Check() (bool, error) {
	stored, ok, err := c.readStored()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	live, err := liveDigest(c.files)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(live)) == 1, nil
}

// Store snapshots the current live fingerprint to disk. A Store() call
// on an unchanged state is a no-op that keeps Check() true (spec.md
// §4.4), since the written digest is identical to what was already
// there.
func (c *Checkpoint) Store() error {
	live, err := liveDigest(c.files)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.store.dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	data, err := yaml.Marshal(record{Label: c.label, Digest: live})
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if err := os.WriteFile(c.store.path(c.label), data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	log.Printf("stored checkpoint %s: %s", c.label, live)
	return nil
}

func (c *Checkpoint) readStored() (string, bool, error) {
	data, err := os.ReadFile(c.store.path(c.label))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("checkpoint: read: %w", err)
	}
	var r record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return "", false, fmt.Errorf("checkpoint: parse: %w", err)
	}
	return r.Digest, true, nil
}

// liveDigest computes an order-independent hash over files: each file
// (or, recursively, each file under a directory entry) is hashed with
// blake2b, then the per-file digests are combined commutatively (XOR)
// keyed by relative path so the result does not depend on map/slice
// iteration order, per spec.md §4.4 and the fingerprint-stability
// invariant in spec.md §3.
func liveDigest(files FileSet) (string, error) {
	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	var combined [32]byte
	for _, rel := range rels {
		abs := files[rel]
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("checkpoint: stat %s: %w", abs, err)
		}
		if info.IsDir() {
			if err := hashDir(rel, abs, &combined); err != nil {
				return "", err
			}
			continue
		}
		if err := combineFile(rel, abs, &combined); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(combined[:]), nil
}

func hashDir(relRoot, absRoot string, combined *[32]byte) error {
	return filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		return combineFile(filepath.Join(relRoot, rel), path, combined)
	})
}

func combineFile(rel, abs string, combined *[32]byte) error {
	h, err := blake2b.New256(nil)
	if err != nil {
		return fmt.Errorf("checkpoint: hasher: %w", err)
	}
	// Mix the relative path in so a rename changes the digest even when
	// byte-identical content moves to a new location.
	io.WriteString(h, rel)
	h.Write([]byte{0})

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("checkpoint: open %s: %w", abs, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("checkpoint: hash %s: %w", abs, err)
	}
	sum := h.Sum(nil)
	for i := range combined {
		combined[i] ^= sum[i]
	}
	return nil
}
