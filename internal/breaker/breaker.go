// Package breaker guards calls to the snapshot log and the message bus.
//
// Each guarded dependency gets its own Breaker, constructed at startup and
// passed to the components that call it. A breaker opens after Threshold
// consecutive failures, rejects calls without running them for Cooldown, then
// lets exactly one trial call through.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"rsoreplay/internal/errs"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Settings struct {
	Threshold uint32
	Cooldown  time.Duration
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func New(name string, settings Settings, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := settings.Threshold
	if threshold == 0 {
		threshold = 5
	}

	b := &Breaker{name: name}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: b.countsAsSuccess,
	})
	return b
}

// Decode failures say nothing about the health of the dependency, so they do
// not count toward tripping. A caller cancellation neither trips a closed
// breaker nor closes a half-open one: the trial never reached the dependency,
// so the breaker stays open for another cooldown.
func (b *Breaker) countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return b.cb.State() != gobreaker.StateHalfOpen
	}
	return errors.Is(err, errs.ErrDecode) ||
		errors.Is(err, errs.ErrInvalidArgument)
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func (b *Breaker) Call(fn func() error) error {
	_, err := Do(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do runs fn through b. When b is open, or half-open with its trial call in
// flight, fn is not invoked and the error wraps errs.ErrDependencyUnavailable.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	value, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %s breaker open", errs.ErrDependencyUnavailable, b.name)
	}
	if err != nil {
		return zero, err
	}
	result, _ := value.(T)
	return result, nil
}
