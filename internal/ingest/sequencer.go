package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"rsoreplay/internal/errs"
	"rsoreplay/internal/snapshot"
)

const digestCacheSize = 4096

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Sequencer assigns per-session sequence numbers. Read-latest-then-append
// runs under a lock keyed by session, so concurrent deliveries for one
// session never race on the same sequence. Different processes writing the
// same session still can; the store's unique constraint makes the loser a
// no-op.
type Sequencer struct {
	store Store
	now   func() time.Time

	mu      sync.Mutex
	locks   map[string]*sessionLock
	digests *lru.Cache[string, [32]byte]
}

func NewSequencer(store Store) *Sequencer {
	digests, err := lru.New[string, [32]byte](digestCacheSize)
	if err != nil {
		panic(fmt.Sprintf("digest cache: %v", err))
	}
	return &Sequencer{
		store:   store,
		now:     time.Now,
		locks:   make(map[string]*sessionLock),
		digests: digests,
	}
}

// Append stores entities as the next snapshot of sessionID, stamped with the
// current time. It returns false without touching the store when the broker
// flagged the message as a redelivery and the payload repeats the session's
// previous append. Identical payloads without the flag are real ticks and
// are always stored.
func (s *Sequencer) Append(ctx context.Context, sessionID string, entities snapshot.Entities, digest [32]byte, redelivery bool) (snapshot.Snapshot, bool, error) {
	return s.AppendAt(ctx, sessionID, entities, s.now(), digest, redelivery)
}

// AppendAt is Append with an explicit snapshot timestamp.
func (s *Sequencer) AppendAt(ctx context.Context, sessionID string, entities snapshot.Entities, at time.Time, digest [32]byte, redelivery bool) (snapshot.Snapshot, bool, error) {
	if sessionID == "" {
		return snapshot.Snapshot{}, false, errs.Invalid("empty session id")
	}

	lock := s.acquire(sessionID)
	defer s.release(sessionID, lock)

	if last, ok := s.digests.Get(sessionID); ok && redelivery && last == digest {
		return snapshot.Snapshot{}, false, nil
	}

	latest, err := s.store.LatestSequence(ctx, sessionID)
	if err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("latest sequence for %s: %w", sessionID, err)
	}

	snap := snapshot.Snapshot{
		SessionID: sessionID,
		Sequence:  latest + 1,
		Timestamp: at.UTC(),
		Entities:  entities,
	}
	if err := s.store.Append(ctx, sessionID, snap); err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("append %s/%d: %w", sessionID, snap.Sequence, err)
	}
	s.digests.Add(sessionID, digest)
	return snap, true, nil
}

func (s *Sequencer) acquire(sessionID string) *sessionLock {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *Sequencer) release(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, sessionID)
	}
	s.mu.Unlock()
}
