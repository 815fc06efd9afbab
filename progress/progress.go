// Package progress reports encoding progress to the caller, one frame at a
// time, with the option to abort the run.
package progress

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Reporter is notified once per frame that survives deduplication,
// including frames the writer later drops (fully trimmed) or skips (zero
// delay); a run of identical consecutive input frames counts once.
// Returning false aborts the run with ErrAborted.
type Reporter interface {
	Increase() bool
}

// Nop reports nothing and never aborts; useful for library callers that
// don't want terminal output.
type Nop struct{}

// Increase always returns true.
func (Nop) Increase() bool { return true }

// Bar is the default Reporter, a terminal progress bar backed by
// github.com/schollz/progressbar/v3.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar creates a Bar expecting total frames to be reported.
func NewBar(total int) *Bar {
	return &Bar{bar: progressbar.NewOptions(total,
		progressbar.OptionSetDescription("encoding"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

// Increase advances the bar by one frame. It always returns true; the bar
// has no way for a user to request cancellation, so wrap it or use a
// different Reporter if you need abort support.
func (b *Bar) Increase() bool {
	_ = b.bar.Add(1)
	return true
}

// NewAuto returns a Bar when out is a real terminal, or Nop otherwise, so
// piping encoder output doesn't fill a log file with carriage returns.
func NewAuto(total int, out *os.File) Reporter {
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return NewBar(total)
	}
	return Nop{}
}
