package executor

import (
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// runWithPty starts cmd attached to a pseudo-terminal instead of plain
// pipes, copying its output to the current process's stdout. Some
// bioinformatics CLI tools change their buffering or progress-reporting
// behavior when stdout is not a tty; the "pty" backend option lets a
// pipeline wrapper opt individual runners into that mode.
func runWithPty(cmd *exec.Cmd) error {
	f, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	_, copyErr := io.Copy(os.Stdout, f)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return waitErr
	}
	// EIO from the pty master at EOF is expected once the child exits;
	// only surface genuine copy errors.
	if copyErr != nil && !isExpectedPtyEOF(copyErr) {
		return copyErr
	}
	return nil
}

func isExpectedPtyEOF(err error) bool {
	return err == io.EOF || err.Error() == "read /dev/ptmx: input/output error"
}
