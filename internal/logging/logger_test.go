package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backmassage/framevault/internal/config"
)

func TestNewLogger_NoFile(t *testing.T) {
	l, err := NewLogger(config.LoggingConfig{Level: config.LevelInfo, Color: config.ColorNever})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	l.Info("test message")
}

func TestNewLogger_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "framevault.log")
	l, err := NewLogger(config.LoggingConfig{Level: config.LevelInfo, Color: config.ColorNever, File: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("to file")
	l.Debug("hidden")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if !bytes.Contains(b, []byte("[INFO] to file")) {
		t.Errorf("log file content: %s", b)
	}
	if bytes.Contains(b, []byte("hidden")) {
		t.Error("debug line written at info level")
	}
}

func TestLogger_WithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).With("pipeline").With("clips")
	l.Warn("clip %d slow", 3)
	if got := buf.String(); !strings.Contains(got, "[WARN] pipeline: clips: clip 3 slow") {
		t.Errorf("unexpected line %q", got)
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.s.min = levelRank[config.LevelWarn]
	l.Info("info")
	l.Success("ok")
	l.Warn("warn")
	l.Error("err")
	out := buf.String()
	if strings.Contains(out, "info") || strings.Contains(out, "ok") {
		t.Errorf("sub-warn lines written: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn") || !strings.Contains(out, "[ERROR] err") {
		t.Errorf("missing lines: %q", out)
	}
}
