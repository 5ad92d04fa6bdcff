// Package term resolves whether ANSI styling should be used for console
// output. [Configure] is called once during startup from the logger;
// packages that render styled text (logging, selector, display) consult
// [Enabled].
package term

import (
	"os"
	"strings"
	"sync/atomic"

	xterm "github.com/charmbracelet/x/term"

	"github.com/backmassage/framevault/internal/config"
)

var enabled atomic.Bool

// Configure resolves the color mode and records the result.
func Configure(mode config.ColorMode) {
	enabled.Store(resolve(mode))
}

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return enabled.Load() }

// resolve determines whether colors should be enabled based on the configured
// mode, TTY detection, and the NO_COLOR env var (https://no-color.org).
func resolve(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return IsTerminal(os.Stdout) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a TTY.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return xterm.IsTerminal(f.Fd())
}
