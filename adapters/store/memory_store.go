package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// DefaultCleanupInterval is how often the memory store drops expired entries
const DefaultCleanupInterval = time.Minute

type sessionEntry struct {
	challenge core.Challenge
	expiresAt time.Time
}

// MemoryStore is an in-memory session store and consumed-challenge ledger.
// It suits single instance deployments and tests.
type MemoryStore struct {
	sessions map[string]sessionEntry
	consumed map[string]time.Time
	mu       sync.RWMutex

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ ports.SessionStore   = (*MemoryStore)(nil)
	_ ports.ConsumedLedger = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory store and starts its cleanup loop.
// A non-positive interval uses DefaultCleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		sessions: make(map[string]sessionEntry),
		consumed: make(map[string]time.Time),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.cleanupLoop(ctx, cleanupInterval)

	return s
}

// PutChallenge stores the session challenge, replacing any previous one
func (s *MemoryStore) PutChallenge(ctx context.Context, sessionID string, challenge core.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = sessionEntry{
		challenge: challenge,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// TakeChallenge removes and returns the session challenge
func (s *MemoryStore) TakeChallenge(ctx context.Context, sessionID string) (core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.sessions[sessionID]
	if !exists {
		return core.Challenge{}, ports.ErrNotFound
	}
	delete(s.sessions, sessionID)

	if time.Now().After(entry.expiresAt) {
		return core.Challenge{}, ports.ErrNotFound
	}

	return entry.challenge, nil
}

// MarkConsumed records the challenge id, reporting false if it is already recorded
func (s *MemoryStore) MarkConsumed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiresAt, exists := s.consumed[id]; exists && now.Before(expiresAt) {
		return false, nil
	}

	s.consumed[id] = now.Add(ttl)
	return true, nil
}

// Len returns the number of pending session challenges and consumed records
func (s *MemoryStore) Len() (sessions, consumed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), len(s.consumed)
}

// Close stops the cleanup loop
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *MemoryStore) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(time.Now())
		}
	}
}

func (s *MemoryStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
	for id, expiresAt := range s.consumed {
		if now.After(expiresAt) {
			delete(s.consumed, id)
		}
	}
}
