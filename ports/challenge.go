package ports

import (
	"context"

	"github.com/layer-3/keyauth/core"
)

// ChallengeStore issues challenges and consumes them at most once
type ChallengeStore interface {
	// Mode names the storage strategy ("stateless" or "session")
	Mode() string

	// Issue creates a new challenge for the caller
	Issue(ctx context.Context, sessionID string, opts core.IssueOptions) (core.IssuedChallenge, error)

	// Consume returns the challenge the client must have signed
	Consume(ctx context.Context, resp core.ChallengeResponse) (core.Challenge, error)
}
