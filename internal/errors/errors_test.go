package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{"reason only", &ValidationError{Reason: "bad"}, "validation error: bad"},
		{"field", NewValidationError("fps", "out of range"), "validation error [fps]: out of range"},
		{"field and value", NewValidationError("fps", "out of range").WithValue(240.0), "validation error [fps=240]: out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExternalToolError(t *testing.T) {
	base := fmt.Errorf("signal: killed")
	tests := []struct {
		name string
		err  *ExternalToolError
		want string
	}{
		{"timeout", &ExternalToolError{Tool: "ffmpeg", Op: "transcode", TimedOut: true}, "ffmpeg transcode: timed out"},
		{"exit", &ExternalToolError{Tool: "ffmpeg", Op: "clip", ExitCode: 1, Reason: "unknown encoder"}, "ffmpeg clip: exit status 1 (unknown encoder)"},
		{"start failure", &ExternalToolError{Tool: "ffprobe", Op: "probe", Err: base}, "ffprobe probe: signal: killed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	wrapped := fmt.Errorf("stage failed: %w", &ExternalToolError{Tool: "ffmpeg", Op: "x", Err: base})
	if !IsExternalTool(wrapped) {
		t.Error("IsExternalTool should see through wrapping")
	}
	if !Is(wrapped, base) {
		t.Error("ExternalToolError should unwrap to its cause")
	}
}

func TestPersistenceError(t *testing.T) {
	if NewPersistenceError("insert", nil) != nil {
		t.Fatal("nil cause should produce nil error")
	}
	err := NewPersistenceError("insert", New("disk full"))
	if got, want := err.Error(), "store insert: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"sentinel", ErrCancelled, true},
		{"wrapped sentinel", fmt.Errorf("select: %w", ErrCancelled), true},
		{"context canceled", context.Canceled, true},
		{"deadline", context.DeadlineExceeded, false},
		{"validation", NewValidationError("x", "y"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCancellation(tt.err); got != tt.want {
				t.Errorf("IsCancellation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
