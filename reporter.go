package pyext

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Reporter receives pipeline diagnostics. It replaces global warning-filter
// state with an explicit dependency passed through the pipeline.
//
// Noticef is the forced severity: it must reach the user regardless of any
// quiet or filter configuration. The pipeline uses it for the remediation
// diagnostic and for every recovered stage failure.
type Reporter interface {
	// Infof reports progress. May be filtered in quiet mode.
	Infof(format string, args ...any)

	// Warnf reports a recoverable problem. May be filtered in quiet mode.
	Warnf(format string, args ...any)

	// Noticef reports a diagnostic that bypasses all filtering.
	Noticef(format string, args ...any)
}

var (
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D93025")).Bold(true)
)

// ColorProfile returns the color profile for CLI output. NO_COLOR disables
// styling entirely.
func ColorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// WriterReporter writes diagnostics to a stream, styling them when the
// terminal supports color.
type WriterReporter struct {
	out   io.Writer
	quiet bool
	color bool
}

// NewWriterReporter creates a reporter writing to w. In quiet mode Infof and
// Warnf are dropped; Noticef is always written.
func NewWriterReporter(w io.Writer, quiet bool) *WriterReporter {
	return &WriterReporter{
		out:   w,
		quiet: quiet,
		color: ColorProfile() != termenv.Ascii,
	}
}

// Infof implements Reporter.
func (r *WriterReporter) Infof(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Warnf implements Reporter.
func (r *WriterReporter) Warnf(format string, args ...any) {
	if r.quiet {
		return
	}
	r.write(warnStyle, format, args...)
}

// Noticef implements Reporter. Notices bypass quiet mode.
func (r *WriterReporter) Noticef(format string, args ...any) {
	r.write(noticeStyle, format, args...)
}

func (r *WriterReporter) write(style lipgloss.Style, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	if r.color {
		message = style.Render(message)
	}
	fmt.Fprintln(r.out, message)
}

// NopReporter discards everything. Useful in tests that only inspect the
// pipeline's return values.
type NopReporter struct{}

// Infof implements Reporter.
func (NopReporter) Infof(string, ...any) {}

// Warnf implements Reporter.
func (NopReporter) Warnf(string, ...any) {}

// Noticef implements Reporter.
func (NopReporter) Noticef(string, ...any) {}
