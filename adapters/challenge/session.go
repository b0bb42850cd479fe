package challenge

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// ModeSession names the server-stored strategy
const ModeSession = "session"

// SessionStore keeps one pending challenge per caller session. A challenge is
// removed on its first consumption, whatever the outcome of the login.
type SessionStore struct {
	store ports.SessionStore
	opts  options
}

// NewSessionStore creates a session-bound challenge store
func NewSessionStore(store ports.SessionStore, opts ...Option) *SessionStore {
	return &SessionStore{
		store: store,
		opts:  newOptions(opts),
	}
}

// Mode returns the storage strategy name
func (s *SessionStore) Mode() string {
	return ModeSession
}

// Issue generates a challenge and binds it to the session, replacing any
// challenge issued earlier
func (s *SessionStore) Issue(ctx context.Context, sessionID string, opts core.IssueOptions) (core.IssuedChallenge, error) {
	if sessionID == "" {
		return core.IssuedChallenge{}, core.ErrSessionRequired
	}

	now := s.opts.clock.Now()

	challenge, err := core.NewChallenge(now, opts.Lifetime())
	if err != nil {
		return core.IssuedChallenge{}, err
	}

	ttl := retention(now, challenge.ExpiresAt, SessionGrace)
	if err := s.store.PutChallenge(ctx, sessionID, challenge, ttl); err != nil {
		return core.IssuedChallenge{}, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}

	return core.IssuedChallenge{
		Challenge: challenge.Value,
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

// Consume takes the session challenge out of the store and checks it against
// what the client presented
func (s *SessionStore) Consume(ctx context.Context, resp core.ChallengeResponse) (core.Challenge, error) {
	if resp.SessionID == "" {
		return core.Challenge{}, core.ErrSessionRequired
	}

	challenge, err := s.store.TakeChallenge(ctx, resp.SessionID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return core.Challenge{}, core.ErrReplay
		}
		return core.Challenge{}, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}

	if challenge.Expired(s.opts.clock.Now()) {
		return core.Challenge{}, core.ErrExpired
	}

	if resp.Challenge != "" && resp.Challenge != challenge.Value {
		return core.Challenge{}, core.ErrChallengeMismatch
	}

	return challenge, nil
}
