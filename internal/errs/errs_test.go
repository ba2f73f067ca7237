package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "ok"},
		{name: "unavailable", err: Unavailable(errors.New("dial tcp: refused")), want: "unavailable"},
		{name: "not found", err: fmt.Errorf("session g1: %w", ErrNotFound), want: "not_found"},
		{name: "decode", err: Decode("bad circle"), want: "decode"},
		{name: "invalid", err: Invalid("speed must be positive"), want: "invalid_argument"},
		{name: "encoder", err: &EncoderError{ExitCode: 1, Stderr: "boom"}, want: "encoder_failure"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "dependency timeout", err: Unavailable(fmt.Errorf("append: %w", context.DeadlineExceeded)), want: "unavailable"},
		{name: "other", err: errors.New("other"), want: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnavailableKeepsSpecificKinds(t *testing.T) {
	decode := Decode("malformed record")
	if got := Unavailable(decode); errors.Is(got, ErrDependencyUnavailable) {
		t.Fatalf("decode error must not become unavailable: %v", got)
	}
	if got := Unavailable(context.Canceled); !errors.Is(got, context.Canceled) || errors.Is(got, ErrDependencyUnavailable) {
		t.Fatalf("context error must pass through: %v", got)
	}
	timeout := Unavailable(context.DeadlineExceeded)
	if !errors.Is(timeout, ErrDependencyUnavailable) || !errors.Is(timeout, context.DeadlineExceeded) {
		t.Fatalf("timeout must become unavailable and keep its cause: %v", timeout)
	}
	cause := errors.New("connection reset")
	got := Unavailable(cause)
	if !errors.Is(got, ErrDependencyUnavailable) || !errors.Is(got, cause) {
		t.Fatalf("expected wrapped cause, got %v", got)
	}
}

func TestEncoderErrorKeepsStderrVerbatim(t *testing.T) {
	err := error(&EncoderError{ExitCode: 2, Stderr: "Unknown encoder 'libx264'"})
	if !errors.Is(err, ErrEncoderFailure) {
		t.Fatalf("expected encoder failure kind")
	}
	var encErr *EncoderError
	if !errors.As(err, &encErr) || encErr.Stderr != "Unknown encoder 'libx264'" {
		t.Fatalf("expected verbatim stderr, got %v", err)
	}
}
