package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rsoreplay/internal/snapshot"
	"rsoreplay/internal/store"
)

type mockStore struct {
	mu        sync.Mutex
	snapshots map[string][]snapshot.Snapshot
	failWith  error
	appends   int
}

func newMockStore() *mockStore {
	return &mockStore{snapshots: make(map[string][]snapshot.Snapshot)}
}

func (m *mockStore) Append(ctx context.Context, sessionID string, snap snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.snapshots[sessionID] {
		if existing.Sequence == snap.Sequence {
			return nil
		}
	}
	m.appends++
	m.snapshots[sessionID] = append(m.snapshots[sessionID], snap)
	return nil
}

func (m *mockStore) LatestSequence(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return store.NoSequence, m.failWith
	}
	latest := store.NoSequence
	for _, snap := range m.snapshots[sessionID] {
		if snap.Sequence > latest {
			latest = snap.Sequence
		}
	}
	return latest, nil
}

func (m *mockStore) sequences(sessionID string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.snapshots[sessionID]))
	for _, snap := range m.snapshots[sessionID] {
		out = append(out, snap.Sequence)
	}
	return out
}

type mockConn struct {
	mu        sync.Mutex
	topic     string
	handler   Handler
	connected bool
	closed    bool
	onLost    func(error)
}

func (c *mockConn) Subscribe(topic string, qos byte, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
	c.handler = handler
	return nil
}

func (c *mockConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed
}

func (c *mockConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *mockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockConn) deliver(topic string, payload string, duplicate bool) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	handler(Message{Topic: topic, Payload: []byte(payload), Duplicate: duplicate})
}

// drop simulates the transport going away.
func (c *mockConn) drop() {
	c.mu.Lock()
	c.connected = false
	onLost := c.onLost
	c.mu.Unlock()
	onLost(errors.New("connection reset"))
}

type mockDialer struct {
	mu       sync.Mutex
	failures int
	conns    []*mockConn
}

func (d *mockDialer) Dial(ctx context.Context, onLost func(error)) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	conn := &mockConn{connected: true, onLost: onLost}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *mockDialer) dialed() []*mockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*mockConn(nil), d.conns...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

const validPayload = `{"type":"gameState","data":{"players":[{"playerName":"alice","alive":true,"circle":{"x":10,"y":20,"radius":5}},{"name":"bob","alive":false,"circle":{"x":1,"y":2,"radius":3}}],"food":[{"index":0,"circle":{"x":4,"y":4,"radius":1}}]}}`
