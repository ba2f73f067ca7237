package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"rsoreplay/internal/snapshot"
	"rsoreplay/internal/store"
)

func (c *Client) Append(ctx context.Context, sessionID string, s snapshot.Snapshot) error {
	entities, err := store.EncodeEntities(s.Entities)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
	INSERT INTO snapshots (session_id, sequence, ts, entities)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (session_id, sequence) DO NOTHING
	`, sessionID, s.Sequence, store.FormatTimestamp(s.Timestamp), string(entities))
	if err != nil {
		return fmt.Errorf("appending snapshot: %w", err)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error) {
	var from, to sql.NullString
	if r.From != nil {
		from = sql.NullString{String: store.FormatTimestamp(*r.From), Valid: true}
	}
	if r.To != nil {
		to = sql.NullString{String: store.FormatTimestamp(*r.To), Valid: true}
	}

	rows, err := c.db.QueryContext(ctx, `
	SELECT sequence, ts, entities
	FROM snapshots
	WHERE session_id = ?
	  AND (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	ORDER BY sequence ASC
	`, sessionID, from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []snapshot.Snapshot{}
	for rows.Next() {
		var seq int64
		var ts string
		var entities []byte
		if err := rows.Scan(&seq, &ts, &entities); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}

		s, err := decodeRow(sessionID, seq, ts, entities)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snapshots, nil
}

func (c *Client) LatestSequence(ctx context.Context, sessionID string) (int64, error) {
	var seq int64
	err := c.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence), -1) FROM snapshots WHERE session_id = ?",
		sessionID,
	).Scan(&seq)
	if err != nil {
		return store.NoSequence, fmt.Errorf("reading latest sequence: %w", err)
	}
	return seq, nil
}

func decodeRow(sessionID string, seq int64, ts string, entities []byte) (snapshot.Snapshot, error) {
	timestamp, err := store.ParseTimestamp(ts)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot %s/%d: %w", sessionID, seq, err)
	}
	decoded, err := store.DecodeEntities(entities)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot %s/%d: %w", sessionID, seq, err)
	}
	return snapshot.Snapshot{
		SessionID: sessionID,
		Sequence:  seq,
		Timestamp: timestamp,
		Entities:  decoded,
	}, nil
}
