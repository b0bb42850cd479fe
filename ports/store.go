package ports

import (
	"context"
	"errors"
	"time"

	"github.com/layer-3/keyauth/core"
)

// ErrNotFound is returned by stores when a key does not exist
var ErrNotFound = errors.New("not found")

// SessionStore keeps one pending challenge per caller session.
// Implementations must make TakeChallenge atomic: concurrent callers for the
// same session never both receive the challenge.
type SessionStore interface {
	PutChallenge(ctx context.Context, sessionID string, challenge core.Challenge, ttl time.Duration) error
	TakeChallenge(ctx context.Context, sessionID string) (core.Challenge, error)
}

// ConsumedLedger records challenges that have already been used
type ConsumedLedger interface {
	// MarkConsumed records id until ttl elapses. It returns false when id was
	// already recorded.
	MarkConsumed(ctx context.Context, id string, ttl time.Duration) (bool, error)
}
