// Package progress provides progress reporting for long-running operations.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Callback receives progress updates during long operations.
type Callback func(current, total int, message string)

// Noop is a no-op callback for default behavior.
func Noop(current, total int, message string) {}

// Terminal draws a single-line progress bar that redraws in place.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	op          string
	lastLineLen int
	enabled     bool
}

// NewTerminal creates a progress bar on w. enabled false makes every call
// a no-op.
func NewTerminal(w io.Writer, op string, enabled bool) *Terminal {
	return &Terminal{writer: w, op: op, enabled: enabled}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Callback returns a Callback that redraws the bar. It is safe for
// concurrent use.
func (t *Terminal) Callback() Callback {
	return func(current, total int, message string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.enabled {
			t.render(current, total, message)
		}
	}
}

// Done draws the final message and ends the line.
func (t *Terminal) Done(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if message != "" {
		t.clear()
		fmt.Fprint(t.writer, t.op+" "+message)
	}
	fmt.Fprintln(t.writer)
	t.lastLineLen = 0
}

func (t *Terminal) clear() {
	if t.lastLineLen > 0 {
		fmt.Fprint(t.writer, "\r"+strings.Repeat(" ", t.lastLineLen)+"\r")
	} else {
		fmt.Fprint(t.writer, "\r")
	}
}

func (t *Terminal) render(current, total int, message string) {
	if total <= 0 {
		total = 1
	}
	current = min(max(current, 0), total)

	const barWidth = 30
	filled := barWidth * current / total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d (%.0f%%)", t.op, bar, current, total, float64(current)/float64(total)*100)
	if message != "" {
		line += " " + message
	}
	t.clear()
	fmt.Fprint(t.writer, line)
	t.lastLineLen = len(line)
}
