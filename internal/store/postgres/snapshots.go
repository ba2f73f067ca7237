package postgres

import (
	"context"
	"fmt"
	"time"

	"rsoreplay/internal/snapshot"
	"rsoreplay/internal/store"
)

func (c *Client) Append(ctx context.Context, sessionID string, s snapshot.Snapshot) error {
	entities, err := store.EncodeEntities(s.Entities)
	if err != nil {
		return err
	}

	_, err = c.pool.Exec(ctx, `
INSERT INTO snapshots (session_id, sequence, ts, entities)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id, sequence) DO NOTHING
`, sessionID, s.Sequence, s.Timestamp.UTC(), entities)
	if err != nil {
		return fmt.Errorf("appending snapshot: %w", err)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error) {
	query := `
SELECT sequence, ts, entities
FROM snapshots
WHERE session_id = $1
  AND ($2::timestamptz IS NULL OR ts >= $2)
  AND ($3::timestamptz IS NULL OR ts <= $3)
ORDER BY sequence ASC
`

	rows, err := c.pool.Query(ctx, query, sessionID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []snapshot.Snapshot{}
	for rows.Next() {
		var s snapshot.Snapshot
		var ts time.Time
		var entities []byte
		if err := rows.Scan(&s.Sequence, &ts, &entities); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}

		decoded, err := store.DecodeEntities(entities)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s/%d: %w", sessionID, s.Sequence, err)
		}
		s.SessionID = sessionID
		s.Timestamp = ts.UTC()
		s.Entities = decoded
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snapshots, nil
}

func (c *Client) LatestSequence(ctx context.Context, sessionID string) (int64, error) {
	var seq int64
	err := c.pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(sequence), -1) FROM snapshots WHERE session_id = $1",
		sessionID,
	).Scan(&seq)
	if err != nil {
		return store.NoSequence, fmt.Errorf("reading latest sequence: %w", err)
	}
	return seq, nil
}
