package store

import (
	"context"
	"strings"

	"rsoreplay/internal/breaker"
	"rsoreplay/internal/errs"
	"rsoreplay/internal/snapshot"
)

var _ Store = (*Guarded)(nil)

// Guarded routes every log operation through the storage breaker and
// classifies backend failures as errs.ErrDependencyUnavailable.
type Guarded struct {
	inner   Store
	breaker *breaker.Breaker
}

func NewGuarded(inner Store, b *breaker.Breaker) *Guarded {
	return &Guarded{inner: inner, breaker: b}
}

func (g *Guarded) Close(ctx context.Context) error {
	return g.inner.Close(ctx)
}

func (g *Guarded) EnsureSchema(ctx context.Context) error {
	return errs.Unavailable(g.inner.EnsureSchema(ctx))
}

func (g *Guarded) Append(ctx context.Context, sessionID string, s snapshot.Snapshot) error {
	if err := validateAppend(sessionID, s); err != nil {
		return err
	}
	return g.breaker.Call(func() error {
		return errs.Unavailable(g.inner.Append(ctx, sessionID, s))
	})
}

func (g *Guarded) Query(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errs.Invalid("session id is required")
	}
	if err := r.Validate(); err != nil {
		return nil, errs.Invalid("%v", err)
	}
	return breaker.Do(g.breaker, func() ([]snapshot.Snapshot, error) {
		snapshots, err := g.inner.Query(ctx, sessionID, r)
		return snapshots, errs.Unavailable(err)
	})
}

func (g *Guarded) LatestSequence(ctx context.Context, sessionID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" {
		return NoSequence, errs.Invalid("session id is required")
	}
	seq, err := breaker.Do(g.breaker, func() (int64, error) {
		seq, err := g.inner.LatestSequence(ctx, sessionID)
		return seq, errs.Unavailable(err)
	})
	if err != nil {
		return NoSequence, err
	}
	return seq, nil
}

func validateAppend(sessionID string, s snapshot.Snapshot) error {
	if strings.TrimSpace(sessionID) == "" {
		return errs.Invalid("session id is required")
	}
	if s.SessionID != "" && s.SessionID != sessionID {
		return errs.Invalid("snapshot belongs to session %q, not %q", s.SessionID, sessionID)
	}
	if s.Sequence < 0 {
		return errs.Invalid("sequence must be non-negative, got %d", s.Sequence)
	}
	if err := s.Validate(); err != nil {
		return errs.Invalid("%v", err)
	}
	return nil
}
