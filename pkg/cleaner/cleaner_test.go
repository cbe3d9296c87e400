package cleaner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestEagerCleanerRemovesRegisteredPaths(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "scratch", "tmp.txt")
	touch(t, f)

	c := NewEager(root)
	c.Register(f, false)
	require.NoError(t, c.Clean())

	assert.NoFileExists(t, f)
}

func TestEagerCleanerRejectsOutsideRootWithoutFlag(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	f := filepath.Join(outside, "tmp.txt")
	touch(t, f)

	c := NewEager(root)
	c.Register(f, false)
	require.NoError(t, c.Clean())

	assert.FileExists(t, f, "path outside root must be rejected, not removed")
}

func TestEagerCleanerAllowsOutsideRootWithFlag(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	f := filepath.Join(outside, "tmp.txt")
	touch(t, f)

	c := NewEager(root)
	c.Register(f, true)
	require.NoError(t, c.Clean())

	assert.NoFileExists(t, f)
}

func TestUnregisterPreventsRemoval(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "tmp.txt")
	touch(t, f)

	c := NewEager(root)
	c.Register(f, false)
	c.Unregister(f)
	require.NoError(t, c.Clean())

	assert.FileExists(t, f)
}

func TestDeferredCleanerCleanIsNoOpFlushRemoves(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "tmp.txt")
	touch(t, f)

	c := NewDeferred(root)
	c.Register(f, false)

	require.NoError(t, c.Clean())
	assert.FileExists(t, f, "Clean on a deferred cleaner must not remove anything")

	require.NoError(t, c.Flush())
	assert.NoFileExists(t, f)
}

func TestPathsOrderedShallowestFirst(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c.txt")
	shallow := filepath.Join(root, "a")
	touch(t, deep)

	c := NewEager(root)
	c.Register(deep, false)
	c.Register(shallow, false)

	paths := c.paths()
	require.Len(t, paths, 2)
	assert.Equal(t, shallow, paths[0])
}
