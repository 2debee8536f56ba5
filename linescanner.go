package ledger

import (
	"bufio"
	"io"
)

// linescanner wraps a bufio.Scanner and keeps track of the file name and
// line number so parse errors can point at their source.
type linescanner struct {
	scanner *bufio.Scanner
	name    string
	line    int

	pushed   bool
	lastText string
}

func newLineScanner(name string, r io.Reader) *linescanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &linescanner{scanner: s, name: name}
}

func (ls *linescanner) Scan() bool {
	if ls.pushed {
		ls.pushed = false
		ls.line++
		return true
	}
	if !ls.scanner.Scan() {
		return false
	}
	ls.lastText = ls.scanner.Text()
	ls.line++
	return true
}

// unread makes the next Scan return the current line again.
func (ls *linescanner) unread() {
	ls.pushed = true
	ls.line--
}

func (ls *linescanner) Text() string    { return ls.lastText }
func (ls *linescanner) Name() string    { return ls.name }
func (ls *linescanner) LineNumber() int { return ls.line }
func (ls *linescanner) Err() error      { return ls.scanner.Err() }
