// Package logging provides the leveled console/file logger used by every
// command. Lines are "2006-01-02 15:04:05 [LEVEL] text"; ERROR lines go to
// stderr. Level tags are styled with lipgloss when colors are enabled.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/term"
)

var (
	styleInfo    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleSuccess = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleWarn    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleDebug   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleStage   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

var levelRank = map[config.LogLevel]int{
	config.LevelDebug: 0,
	config.LevelInfo:  1,
	config.LevelWarn:  2,
	config.LevelError: 3,
}

// sink is shared by a logger and every logger derived from it via With.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	file   *os.File
	color  bool
	min    int
}

// Logger provides leveled, optionally colored logging with optional file sink.
type Logger struct {
	s      *sink
	prefix string
}

// NewLogger configures terminal colors and optionally opens the log file.
// Call Close when done if a file was set.
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	term.Configure(cfg.Color)
	s := &sink{
		out:    os.Stdout,
		errOut: os.Stderr,
		color:  term.Enabled(),
		min:    levelRank[cfg.Level],
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		s.file = f
	}
	return &Logger{s: s}, nil
}

// New returns an uncolored logger writing every level to w. Used by tests
// and by callers that capture output.
func New(w io.Writer) *Logger {
	return &Logger{s: &sink{out: w, errOut: w}}
}

// Discard returns a logger that drops everything.
func Discard() *Logger { return New(io.Discard) }

// With returns a logger that prefixes every line with "name: ".
func (l *Logger) With(name string) *Logger {
	p := name + ": "
	if l.prefix != "" {
		p = l.prefix + p
	}
	return &Logger{s: l.s, prefix: p}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.file != nil {
		err := l.s.file.Close()
		l.s.file = nil
		return err
	}
	return nil
}

func (l *Logger) line(rank int, level string, style lipgloss.Style, text string) {
	s := l.s
	if rank < s.min {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	text = l.prefix + text

	s.mu.Lock()
	defer s.mu.Unlock()
	plain := ts + " [" + level + "] " + text + "\n"
	out := s.out
	if level == "ERROR" {
		out = s.errOut
	}
	if s.color {
		_, _ = io.WriteString(out, ts+" "+style.Render("["+level+"]")+" "+text+"\n")
	} else {
		_, _ = io.WriteString(out, plain)
	}
	if s.file != nil {
		_, _ = io.WriteString(s.file, plain)
	}
}

// Debug logs at DEBUG level; dropped unless the level is debug.
func (l *Logger) Debug(format string, args ...any) {
	l.line(0, "DEBUG", styleDebug, fmt.Sprintf(format, args...))
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...any) {
	l.line(1, "INFO", styleInfo, fmt.Sprintf(format, args...))
}

// Stage logs a pipeline stage transition at INFO rank.
func (l *Logger) Stage(format string, args ...any) {
	l.line(1, "STAGE", styleStage, fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level (INFO rank).
func (l *Logger) Success(format string, args ...any) {
	l.line(1, "SUCCESS", styleSuccess, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...any) {
	l.line(2, "WARN", styleWarn, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level, to stderr.
func (l *Logger) Error(format string, args ...any) {
	l.line(3, "ERROR", styleError, fmt.Sprintf(format, args...))
}
