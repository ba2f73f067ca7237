// Package errs defines the error kinds shared by ingestion and replay.
//
// Callers classify failures with errors.Is against the sentinels below; the
// wrapping chain keeps the original cause for logs.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDependencyUnavailable covers an open breaker or a transport failure
	// talking to the log or the message bus. Retryable by the caller.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrNotFound means a session or range holds no snapshots.
	ErrNotFound = errors.New("no data")
	// ErrDecode marks a malformed inbound message or stored record.
	ErrDecode = errors.New("decode error")
	// ErrInvalidArgument is returned before any work begins.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEncoderFailure marks a non-zero exit from the encoding subprocess.
	ErrEncoderFailure = errors.New("encoder failure")
	// ErrIO covers temp file and directory operations.
	ErrIO = errors.New("io failure")
)

// EncoderError carries the exit status and captured diagnostics of a failed
// encoder run.
type EncoderError struct {
	ExitCode int
	Stderr   string
}

func (e *EncoderError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("encoder exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("encoder exited with status %d: %s", e.ExitCode, e.Stderr)
}

func (e *EncoderError) Unwrap() error {
	return ErrEncoderFailure
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func Decode(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// Unavailable marks err as a dependency failure unless it already carries a
// more specific kind or is a caller cancellation. A deadline hit while
// talking to the dependency counts as unavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
}

// Classified reports whether err already wraps one of the kinds above.
func Classified(err error) bool {
	for _, kind := range []error{ErrDependencyUnavailable, ErrNotFound, ErrDecode, ErrInvalidArgument, ErrEncoderFailure, ErrIO} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Code maps err to a stable string for transport layers.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDependencyUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrEncoderFailure):
		return "encoder_failure"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
