// Package progress provides operator feedback during long audit runs.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives row-level progress while the engine works through a run.
type Reporter interface {
	Start(totalRows int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a TerminalReporter for interactive use, or a
// CIReporter when running under CI.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(totalRows int) {
	r.bar = progressbar.NewOptions(totalRows,
		progressbar.OptionSetDescription("Auditing rows"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(message)
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	total int
}

func (r *CIReporter) Start(totalRows int) {
	r.total = totalRows
	fmt.Fprintf(os.Stderr, "Auditing %d rows\n", totalRows)
}

func (r *CIReporter) Update(current int, message string) {
	if current%50 == 0 || current == r.total {
		fmt.Fprintf(os.Stderr, "  [%d/%d] %s\n", current, r.total, message)
	}
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(os.Stderr, "Audit pass complete\n")
}
