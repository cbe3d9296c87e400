package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveCopiesSingleMatch(t *testing.T) {
	workdir := t.TempDir()
	resultdir := t.TempDir()
	writeFile(t, filepath.Join(workdir, "out.txt"), "hello")

	s := &Set{}
	s.Add(Output{Source: "out.txt"})

	copies, err := Resolve(s, workdir, resultdir, nil)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.FileExists(t, filepath.Join(resultdir, "out.txt"))
}

func TestResolveGlobDestNameIgnoredOnMultipleMatches(t *testing.T) {
	workdir := t.TempDir()
	resultdir := t.TempDir()
	writeFile(t, filepath.Join(workdir, "a.txt"), "a")
	writeFile(t, filepath.Join(workdir, "b.txt"), "b")

	s := &Set{}
	s.Add(Output{Source: "*.txt", DestName: "renamed.txt"})

	copies, err := Resolve(s, workdir, resultdir, nil)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.FileExists(t, filepath.Join(resultdir, "a.txt"))
	assert.FileExists(t, filepath.Join(resultdir, "b.txt"))
	assert.NoFileExists(t, filepath.Join(resultdir, "renamed.txt"))
}

func TestResolveMissingGlobWarnsAndSkips(t *testing.T) {
	workdir := t.TempDir()
	resultdir := t.TempDir()

	s := &Set{}
	s.Add(Output{Source: "*.bam"})

	copies, err := Resolve(s, workdir, resultdir, nil)
	require.NoError(t, err)
	assert.Empty(t, copies)
}

func TestResolveCollisionSkipsSecondWrite(t *testing.T) {
	workdir := t.TempDir()
	resultdir := t.TempDir()
	writeFile(t, filepath.Join(workdir, "one.txt"), "first")
	writeFile(t, filepath.Join(resultdir, "one.txt"), "already here")

	s := &Set{}
	s.Add(Output{Source: "one.txt"})

	copies, err := Resolve(s, workdir, resultdir, nil)
	require.NoError(t, err)
	assert.Empty(t, copies)

	data, err := os.ReadFile(filepath.Join(resultdir, "one.txt"))
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data))
}

func TestResolveDestDirRootsUnderResultdir(t *testing.T) {
	workdir := t.TempDir()
	resultdir := t.TempDir()
	writeFile(t, filepath.Join(workdir, "nested", "f.txt"), "x")

	s := &Set{}
	s.Add(Output{Source: "nested/f.txt", DestDir: "renamed-dir"})

	copies, err := Resolve(s, workdir, resultdir, nil)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.FileExists(t, filepath.Join(resultdir, "renamed-dir", "f.txt"))
}

func TestResolveSampleScopedExpansion(t *testing.T) {
	workdir := t.TempDir()
	resultdir := t.TempDir()
	writeFile(t, filepath.Join(workdir, "s1.bam"), "x")
	writeFile(t, filepath.Join(workdir, "s2.bam"), "y")

	s := &Set{}
	s.Add(Output{Source: "{sample.id}.bam", SampleScoped: true})

	copies, err := Resolve(s, workdir, resultdir, []SampleContext{{ID: "s1"}, {ID: "s2"}})
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.FileExists(t, filepath.Join(resultdir, "s1.bam"))
	assert.FileExists(t, filepath.Join(resultdir, "s2.bam"))
}
