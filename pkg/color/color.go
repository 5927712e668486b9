// Package color provides terminal color output for dotlock messages.
// It respects NO_COLOR (https://no-color.org/) and CLICOLOR_FORCE through
// termenv's environment detection.
package color

import (
	"fmt"
	"os"
	"sync"

	"github.com/muesli/termenv"
)

var state struct {
	mu      sync.Mutex
	once    sync.Once
	profile termenv.Profile
}

// Init detects the color profile of stderr. noColor forces plain output.
// Only the first call has any effect.
func Init(noColor bool) {
	state.once.Do(func() {
		state.mu.Lock()
		defer state.mu.Unlock()
		if noColor || os.Getenv("TERM") == "dumb" {
			state.profile = termenv.Ascii
			return
		}
		state.profile = termenv.NewOutput(os.Stderr).EnvColorProfile()
	})
}

func current() termenv.Profile {
	Init(false)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.profile
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	return current() != termenv.Ascii
}

// Disable turns off color output.
func Disable() {
	Init(true)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.profile = termenv.Ascii
}

// Enable turns on basic ANSI color output regardless of the terminal.
func Enable() {
	Init(false)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.profile = termenv.ANSI
}

func paint(s, ansi string, bold bool) string {
	p := current()
	if p == termenv.Ascii {
		return s
	}
	style := p.String(s).Foreground(p.Color(ansi))
	if bold {
		style = style.Bold()
	}
	return style.String()
}

// Error formats an error message in red.
func Error(s string) string { return paint(s, "1", true) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string { return Error(fmt.Sprintf(format, args...)) }

// Success formats a success message in green.
func Success(s string) string { return paint(s, "2", false) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return paint(s, "3", false) }

// Info formats an informational message in cyan.
func Info(s string) string { return paint(s, "6", false) }

// Dim formats secondary information in gray.
func Dim(s string) string { return paint(s, "8", false) }

// Code formats a command or key the user can type.
func Code(s string) string { return paint(s, "4", true) }

// State colors a lock state name: held green, locked yellow, stale red.
func State(s string) string {
	switch s {
	case "held":
		return Success(s)
	case "locked":
		return Warning(s)
	case "stale":
		return Error(s)
	}
	return Dim(s)
}
