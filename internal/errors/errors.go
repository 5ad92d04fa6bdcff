// Package errors defines the error taxonomy shared by the pipeline, the
// session store and the batch executor.
//
//   - ValidationError: malformed input (bad media, bad selection, illegal
//     state transition).
//   - ExternalToolError: an ffmpeg/ffprobe process exited non-zero or timed out.
//   - PersistenceError: the session store could not be read or written.
//   - ErrCancelled: a cooperative stop request. It is not a failure.
//
// The standard library helpers are re-exported so callers can import only
// this package.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors.
var (
	// ErrCancelled wraps context.Canceled so that both match with Is.
	ErrCancelled = fmt.Errorf("operation cancelled: %w", context.Canceled)

	ErrSessionNotFound = errors.New("session not found")
	ErrNotResumable    = errors.New("session is not resumable")
	ErrProgressFull    = errors.New("completed operations already at total")
)

// ValidationError reports invalid input or an illegal state change.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(v any) *ValidationError {
	e.Value = v
	return e
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation error")
	if e.Field != "" {
		b.WriteString(" [" + e.Field)
		if e.Value != nil {
			fmt.Fprintf(&b, "=%v", e.Value)
		}
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// ExternalToolError reports a failed or timed-out external process.
type ExternalToolError struct {
	Tool     string // binary name, e.g. "ffmpeg"
	Op       string // operation kind, e.g. "transcode"
	ExitCode int
	TimedOut bool
	Reason   string // short classification of stderr, may be empty
	Stderr   string // tail of stderr
	Err      error
}

func (e *ExternalToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Tool, e.Op)
	switch {
	case e.TimedOut:
		b.WriteString(": timed out")
	case e.ExitCode != 0:
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	}
	if e.Reason != "" {
		b.WriteString(" (" + e.Reason + ")")
	}
	return b.String()
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// PersistenceError reports a session store failure.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError wraps err, returning nil when err is nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsCancellation reports whether err is a cooperative stop rather than a
// failure. Deadline expiry is a failure and does not count.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsExternalTool reports whether err carries an ExternalToolError.
func IsExternalTool(err error) bool {
	var te *ExternalToolError
	return errors.As(err, &te)
}
