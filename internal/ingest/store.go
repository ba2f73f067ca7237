package ingest

import (
	"context"

	"rsoreplay/internal/snapshot"
)

// Store is the part of the snapshot log the connector writes to.
type Store interface {
	Append(ctx context.Context, sessionID string, snap snapshot.Snapshot) error
	LatestSequence(ctx context.Context, sessionID string) (int64, error)
}
