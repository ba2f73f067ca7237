package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rsoreplay/internal/breaker"
	"rsoreplay/internal/errs"
	"rsoreplay/internal/snapshot"
)

type mockStore struct {
	appendErr   error
	queryErr    error
	latestErr   error
	latest      int64
	snapshots   []snapshot.Snapshot
	appendCalls int
	queryCalls  int
}

func (m *mockStore) Close(ctx context.Context) error        { return nil }
func (m *mockStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *mockStore) Append(ctx context.Context, sessionID string, s snapshot.Snapshot) error {
	m.appendCalls++
	return m.appendErr
}

func (m *mockStore) Query(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error) {
	m.queryCalls++
	return m.snapshots, m.queryErr
}

func (m *mockStore) LatestSequence(ctx context.Context, sessionID string) (int64, error) {
	return m.latest, m.latestErr
}

func newTestGuarded(inner *mockStore, threshold uint32) *Guarded {
	return NewGuarded(inner, breaker.New("storage", breaker.Settings{Threshold: threshold, Cooldown: time.Hour}, nil))
}

func TestGuardedClassifiesBackendErrors(t *testing.T) {
	inner := &mockStore{queryErr: errors.New("connection refused")}
	g := newTestGuarded(inner, 5)

	_, err := g.Query(context.Background(), "g1", snapshot.TimeRange{})
	if !errors.Is(err, errs.ErrDependencyUnavailable) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestGuardedStoreTimeoutIsUnavailable(t *testing.T) {
	inner := &mockStore{appendErr: fmt.Errorf("appending snapshot: %w", context.DeadlineExceeded)}
	g := newTestGuarded(inner, 1)
	s := snapshot.Snapshot{Sequence: 0, Timestamp: time.Now()}

	err := g.Append(context.Background(), "g1", s)
	if errs.Code(err) != "unavailable" {
		t.Fatalf("expected unavailable, got %q (%v)", errs.Code(err), err)
	}
	if inner.appendCalls != 1 {
		t.Fatalf("expected one append, got %d", inner.appendCalls)
	}
	if err := g.Append(context.Background(), "g1", s); !errors.Is(err, errs.ErrDependencyUnavailable) || inner.appendCalls != 1 {
		t.Fatalf("timeouts must trip the breaker, got %v after %d calls", err, inner.appendCalls)
	}
}

func TestGuardedKeepsDecodeErrors(t *testing.T) {
	inner := &mockStore{queryErr: errs.Decode("bad entities")}
	g := newTestGuarded(inner, 1)

	_, err := g.Query(context.Background(), "g1", snapshot.TimeRange{})
	if !errors.Is(err, errs.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if errors.Is(err, errs.ErrDependencyUnavailable) {
		t.Fatalf("decode error must not be reported as unavailable")
	}
	if _, err := g.Query(context.Background(), "g1", snapshot.TimeRange{}); errors.Is(err, errs.ErrDependencyUnavailable) {
		t.Fatalf("decode error must not trip the breaker")
	}
}

func TestGuardedFailsFastWhenOpen(t *testing.T) {
	inner := &mockStore{appendErr: errors.New("disk full")}
	g := newTestGuarded(inner, 2)
	ctx := context.Background()
	s := snapshot.Snapshot{Sequence: 0}

	_ = g.Append(ctx, "g1", s)
	_ = g.Append(ctx, "g1", s)
	if inner.appendCalls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", inner.appendCalls)
	}

	err := g.Append(ctx, "g1", s)
	if !errors.Is(err, errs.ErrDependencyUnavailable) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
	if inner.appendCalls != 2 {
		t.Fatalf("expected no backend call while open, got %d", inner.appendCalls)
	}

	if _, err := g.Query(ctx, "g1", snapshot.TimeRange{}); !errors.Is(err, errs.ErrDependencyUnavailable) {
		t.Fatalf("expected query to fail fast, got %v", err)
	}
	if inner.queryCalls != 0 {
		t.Fatalf("expected no query I/O while open, got %d", inner.queryCalls)
	}
}

func TestGuardedValidatesBeforeIO(t *testing.T) {
	inner := &mockStore{}
	g := newTestGuarded(inner, 5)
	ctx := context.Background()

	tests := []struct {
		name      string
		sessionID string
		snap      snapshot.Snapshot
	}{
		{name: "empty session", sessionID: " ", snap: snapshot.Snapshot{}},
		{name: "negative sequence", sessionID: "g1", snap: snapshot.Snapshot{Sequence: -1}},
		{name: "session mismatch", sessionID: "g1", snap: snapshot.Snapshot{SessionID: "g2"}},
		{name: "duplicate movable", sessionID: "g1", snap: snapshot.Snapshot{Entities: snapshot.Entities{
			Movables: []snapshot.Movable{{Name: "a"}, {Name: "a"}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Append(ctx, tt.sessionID, tt.snap); !errors.Is(err, errs.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
	if inner.appendCalls != 0 {
		t.Fatalf("expected no backend calls, got %d", inner.appendCalls)
	}
}

func TestGuardedLatestSequence(t *testing.T) {
	inner := &mockStore{latest: 7}
	g := newTestGuarded(inner, 5)

	seq, err := g.LatestSequence(context.Background(), "g1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if seq != 7 {
		t.Fatalf("expected 7, got %d", seq)
	}

	inner.latestErr = errors.New("timeout")
	seq, err = g.LatestSequence(context.Background(), "g1")
	if err == nil || seq != NoSequence {
		t.Fatalf("expected error with sentinel sequence, got %d, %v", seq, err)
	}
}

func TestRecordRoundTripTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 500_000_000, time.FixedZone("CEST", 2*3600))
	formatted := FormatTimestamp(ts)
	if formatted != "2024-05-01T10:00:00.500000000Z" {
		t.Fatalf("unexpected layout %q", formatted)
	}
	parsed, err := ParseTimestamp(formatted)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(ts) {
		t.Fatalf("expected %v, got %v", ts, parsed)
	}
	if _, err := ParseTimestamp("yesterday"); !errors.Is(err, errs.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodeEntitiesRejectsMalformed(t *testing.T) {
	if _, err := DecodeEntities([]byte(`{"movables": "nope"}`)); !errors.Is(err, errs.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := DecodeEntities(nil); !errors.Is(err, errs.ErrDecode) {
		t.Fatalf("expected decode error for empty record, got %v", err)
	}
}
