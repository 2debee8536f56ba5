package prompt

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Bar reports import progress on a terminal.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar returns a progress bar writing to w. It stays silent unless w is
// a terminal.
func NewBar(w io.Writer, description string) *Bar {
	visible := false
	if f, ok := w.(*os.File); ok {
		visible = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Bar{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)}
}

// SetMax sets the number of rows.
func (b *Bar) SetMax(n int) { b.bar.ChangeMax(n) }

// Step advances by one row.
func (b *Bar) Step() { b.bar.Add(1) }

// Finish completes the bar.
func (b *Bar) Finish() error { return b.bar.Finish() }

// Clear removes the bar from the terminal, e.g. before asking the user.
func (b *Bar) Clear() error { return b.bar.Clear() }
