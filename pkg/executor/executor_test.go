package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubprocessExecutorSubmitWaitSucceeds(t *testing.T) {
	root := t.TempDir()
	ex, err := New("subprocess", root, nil)
	require.NoError(t, err)

	job, err := ex.Submit(context.Background(), SubmitOptions{
		Command: "sh",
		Args:    []string{"-c", "exit 0"},
		Workdir: root,
		Wait:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, job.Status())
	assert.Equal(t, 0, job.ExitCode())
}

func TestSubprocessExecutorSubmitWaitFails(t *testing.T) {
	root := t.TempDir()
	ex, err := New("subprocess", root, nil)
	require.NoError(t, err)

	job, err := ex.Submit(context.Background(), SubmitOptions{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
		Workdir: root,
		Wait:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status())
	assert.Equal(t, 3, job.ExitCode())
}

func TestSubprocessExecutorAsyncWait(t *testing.T) {
	root := t.TempDir()
	ex, err := New("subprocess", root, nil)
	require.NoError(t, err)

	job, err := ex.Submit(context.Background(), SubmitOptions{
		Command: "sh",
		Args:    []string{"-c", "sleep 0.05"},
		Workdir: root,
	})
	require.NoError(t, err)

	job.Wait()
	assert.Equal(t, StatusSucceeded, job.Status())
}

func TestSubprocessExecutorTerminate(t *testing.T) {
	root := t.TempDir()
	ex, err := New("subprocess", root, nil)
	require.NoError(t, err)

	job, err := ex.Submit(context.Background(), SubmitOptions{
		Command: "sh",
		Args:    []string{"-c", "sleep 5"},
		Workdir: root,
	})
	require.NoError(t, err)

	ex.Terminate()

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not terminate")
	}
	assert.Equal(t, StatusTerminated, job.Status())
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("does-not-exist", t.TempDir(), nil)
	assert.Error(t, err)
}
