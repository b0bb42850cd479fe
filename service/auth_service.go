package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// ErrInspectUnsupported is returned by Inspect when challenges are not tokens
var ErrInspectUnsupported = errors.New("challenge store does not issue tokens")

// Config holds the service settings
type Config struct {
	AppName      string
	ChallengeTTL time.Duration
	Clock        core.Clock
}

// LoginRequest is everything a client submits to log in
type LoginRequest struct {
	SessionID string
	Token     string
	Challenge string
	Proof     core.SignedProof
	Metadata  map[string]string
}

// codecProvider is implemented by challenge stores that issue tokens
type codecProvider interface {
	Codec() ports.TokenCodec
}

// AuthService handles authentication business logic
type AuthService struct {
	challenges ports.ChallengeStore
	verifier   ports.ProofVerifier
	eventPub   ports.EventPublisher
	logger     *slog.Logger
	cfg        Config
}

// NewAuthService creates a new authentication service
func NewAuthService(
	challenges ports.ChallengeStore,
	verifier ports.ProofVerifier,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
	cfg Config,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		challenges: challenges,
		verifier:   verifier,
		eventPub:   eventPub,
		logger:     logger.With("component", "auth", "mode", challenges.Mode()),
		cfg:        cfg,
	}
}

// Mode returns the challenge storage strategy
func (s *AuthService) Mode() string {
	return s.challenges.Mode()
}

// CreateChallenge issues a new challenge for the caller
func (s *AuthService) CreateChallenge(ctx context.Context, sessionID string) (core.IssuedChallenge, error) {
	issued, err := s.challenges.Issue(ctx, sessionID, core.IssueOptions{TTL: s.cfg.ChallengeTTL})
	if err != nil {
		s.logger.Error("failed to issue challenge", "error", err)
		return core.IssuedChallenge{}, err
	}

	s.logger.Debug("challenge issued", "state", core.StateIssued, "expires_at", issued.ExpiresAt)
	return issued, nil
}

// Login consumes the challenge, verifies the proof and returns the result.
// The challenge is spent whether or not the proof verifies.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (core.AuthResult, error) {
	s.logger.Debug("login submitted", "state", core.StateSubmitted)

	challenge, err := s.challenges.Consume(ctx, core.ChallengeResponse{
		SessionID: req.SessionID,
		Token:     req.Token,
		Challenge: req.Challenge,
	})
	if err != nil {
		return core.AuthResult{}, s.reject(ctx, req, err)
	}

	identity, err := s.verifier.Verify(challenge.Value, req.Proof)
	if err != nil {
		return core.AuthResult{}, s.reject(ctx, req, err)
	}

	result := core.BuildResult(identity, challenge, core.ResultMeta{
		AppName:    s.cfg.AppName,
		VerifiedAt: s.cfg.Clock.Now(),
		Metadata:   req.Metadata,
	})

	s.logger.Info("login verified", "state", core.StateVerified, "address", result.Address, "scheme", result.Scheme)

	// Publishing failures are logged, not returned
	if err := s.eventPub.PublishVerified(ctx, result); err != nil {
		s.logger.Warn("failed to publish verified event", "error", err)
	}

	return result, nil
}

// Inspect decodes a challenge token without checking its signature
func (s *AuthService) Inspect(token string) (core.ChallengePayload, error) {
	provider, ok := s.challenges.(codecProvider)
	if !ok {
		return core.ChallengePayload{}, ErrInspectUnsupported
	}
	return provider.Codec().Decode(token)
}

func (s *AuthService) reject(ctx context.Context, req LoginRequest, err error) error {
	kind := core.Kind(err)

	if core.IsClientError(err) {
		s.logger.Warn("login rejected", "state", core.StateRejected, "kind", kind, "error", err)
	} else {
		s.logger.Error("login failed", "state", core.StateRejected, "error", err)
	}

	attempt := ports.RejectedAttempt{
		State:     core.StateRejected,
		Kind:      kind,
		Reason:    err.Error(),
		Mode:      s.challenges.Mode(),
		PublicKey: req.Proof.PublicKey.String(),
	}
	if pubErr := s.eventPub.PublishRejected(ctx, attempt); pubErr != nil {
		s.logger.Warn("failed to publish rejected event", "error", pubErr)
	}

	return fmt.Errorf("login rejected: %w", err)
}
