//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"rsoreplay/internal/snapshot"
	"rsoreplay/internal/store"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("REPLAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("REPLAY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	client, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(func() { client.Close(ctx) })
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := client.pool.Exec(ctx, "DELETE FROM snapshots WHERE session_id LIKE 'it-%'"); err != nil {
		t.Fatalf("clearing snapshots: %v", err)
	}
	return client
}

func TestAppendQueryLatest(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	seq, err := client.LatestSequence(ctx, "it-g1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if seq != store.NoSequence {
		t.Fatalf("expected -1, got %d", seq)
	}

	for _, i := range []int64{2, 0, 1} {
		s := snapshot.Snapshot{
			Sequence:  i,
			Timestamp: base.Add(time.Duration(i) * 500 * time.Millisecond),
			Entities: snapshot.Entities{
				Movables: []snapshot.Movable{{Name: "alice", Alive: true, Circle: snapshot.Circle{X: float64(i), Radius: 4}}},
			},
		}
		if err := client.Append(ctx, "it-g1", s); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := client.Append(ctx, "it-g1", snapshot.Snapshot{Sequence: 1, Timestamp: base}); err != nil {
		t.Fatalf("duplicate append: %v", err)
	}

	seq, err = client.LatestSequence(ctx, "it-g1")
	if err != nil || seq != 2 {
		t.Fatalf("expected latest 2, got %d (%v)", seq, err)
	}

	from := base.Add(500 * time.Millisecond)
	got, err := client.Query(ctx, "it-g1", snapshot.TimeRange{From: &from})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].Sequence != 1 || got[1].Sequence != 2 {
		t.Fatalf("unexpected result %+v", got)
	}
	if got[0].Entities.Movables[0].Circle.X != 1 {
		t.Fatalf("duplicate append overwrote snapshot 1: %+v", got[0])
	}
}
