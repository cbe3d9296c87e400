// Package console formats the canonical, user-facing log lines that
// cellophane's driver and components emit (see spec.md §6), with
// conditional ANSI styling when writing to a terminal.
package console

import (
	"os"
	"strings"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/clinicalgenomics/cellophane/pkg/styles"
)

// IsStderrTerminal reports whether stderr is attached to a terminal.
func IsStderrTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || term.IsTerminal(int(fd))
}

func applyStyle(style lipgloss.Style, text string) string {
	if !IsStderrTerminal() {
		return text
	}
	return style.Render(text)
}

// FormatSuccessMessage formats a success message.
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats an error message.
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + message
}

// NewSpinner returns a spinner configured for cellophane's long-running
// phases (hook execution, runner dispatch, executor wait). The spinner is
// a no-op writer when stderr is not a terminal.
func NewSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100_000_000, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	if !IsStderrTerminal() {
		s.Writer = nilWriter{}
	}
	return s
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

// SampleStatusRow is one row of the end-of-run sample status summary.
type SampleStatusRow struct {
	ID     string
	State  string
	Reason string
}

// RenderSampleStatusTable renders the end-of-run per-sample summary table
// described in SPEC_FULL.md's supplemented-features section.
func RenderSampleStatusTable(rows []SampleStatusRow) string {
	if len(rows) == 0 {
		return ""
	}

	t := table.New().
		Headers("SAMPLE", "STATE", "REASON").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			r := rows[row]
			if strings.HasPrefix(r.State, "failed") {
				return styles.TableFailed
			}
			return styles.TableOK
		})

	for _, r := range rows {
		t.Row(r.ID, r.State, r.Reason)
	}

	return t.String()
}
