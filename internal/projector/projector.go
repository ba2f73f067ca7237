package projector

import (
	"context"
	"fmt"

	"rsoreplay/internal/snapshot"
)

type Querier interface {
	Query(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error)
}

type Projector struct {
	store Querier
}

func New(store Querier) *Projector {
	return &Projector{store: store}
}

// GetStates returns the logged snapshots of sessionID inside r, ascending by
// sequence. An unknown session or an empty window yields an empty slice.
func (p *Projector) GetStates(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error) {
	states, err := p.store.Query(ctx, sessionID, r)
	if err != nil {
		return nil, fmt.Errorf("get states for %s: %w", sessionID, err)
	}
	if states == nil {
		states = []snapshot.Snapshot{}
	}
	return states, nil
}
