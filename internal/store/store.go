package store

import (
	"context"

	"rsoreplay/internal/snapshot"
)

// Store is the durable snapshot log. Append treats an existing
// (session, sequence) pair as a no-op; Query returns snapshots ascending by
// sequence; LatestSequence returns -1 for a session with no snapshots.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	Append(ctx context.Context, sessionID string, s snapshot.Snapshot) error
	Query(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error)
	LatestSequence(ctx context.Context, sessionID string) (int64, error)
}

// NoSequence is returned by LatestSequence for a session with no snapshots.
const NoSequence int64 = -1
