package challenge

import (
	"context"
	"fmt"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// ModeStateless names the self-contained token strategy
const ModeStateless = "stateless"

// StatelessStore keeps no server state per challenge. The challenge travels to
// the client inside a signed token and comes back with the proof.
type StatelessStore struct {
	codec ports.TokenCodec
	opts  options
}

// NewStatelessStore creates a challenge store backed by a token codec
func NewStatelessStore(codec ports.TokenCodec, opts ...Option) *StatelessStore {
	return &StatelessStore{
		codec: codec,
		opts:  newOptions(opts),
	}
}

// Mode returns the storage strategy name
func (s *StatelessStore) Mode() string {
	return ModeStateless
}

// Codec returns the token codec the store issues with
func (s *StatelessStore) Codec() ports.TokenCodec {
	return s.codec
}

// Issue generates a challenge and seals it into a token. The session ID is
// ignored.
func (s *StatelessStore) Issue(ctx context.Context, sessionID string, opts core.IssueOptions) (core.IssuedChallenge, error) {
	now := s.opts.clock.Now()

	challenge, err := core.NewChallenge(now, opts.Lifetime())
	if err != nil {
		return core.IssuedChallenge{}, err
	}

	token, err := s.codec.Encode(core.ChallengePayload{
		Challenge: challenge.Value,
		Exp:       challenge.ExpiresAt.Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    s.opts.appName,
	})
	if err != nil {
		return core.IssuedChallenge{}, fmt.Errorf("failed to encode challenge token: %w", err)
	}

	return core.IssuedChallenge{
		Challenge: challenge.Value,
		Token:     token,
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

// Consume verifies the presented token and returns the challenge it carries.
// When a ledger is configured a challenge is accepted only once.
func (s *StatelessStore) Consume(ctx context.Context, resp core.ChallengeResponse) (core.Challenge, error) {
	if resp.Token == "" {
		return core.Challenge{}, core.ErrTokenRequired
	}

	payload, err := s.codec.Verify(resp.Token)
	if err != nil {
		return core.Challenge{}, err
	}

	if resp.Challenge != "" && resp.Challenge != payload.Challenge {
		return core.Challenge{}, core.ErrChallengeMismatch
	}

	challenge := payload.ToChallenge()

	if s.opts.ledger != nil {
		// kept until the codec stops accepting the token
		ttl := retention(s.opts.clock.Now(), payload.ExpiredAt(), 0)
		fresh, err := s.opts.ledger.MarkConsumed(ctx, challenge.Value, ttl)
		if err != nil {
			return core.Challenge{}, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
		}
		if !fresh {
			s.opts.logger.Warn("challenge replayed", "challenge", challenge.Value)
			return core.Challenge{}, core.ErrReplay
		}
	}

	return challenge, nil
}
