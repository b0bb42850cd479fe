package core

import (
	"time"
)

// DefaultChallengeTTL is the lifetime of a challenge when none is configured
const DefaultChallengeTTL = 300 * time.Second

// Clock returns the current time. Components accept one so expiry can be tested
type Clock func() time.Time

// Now returns the current time, falling back to time.Now for a nil clock
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Challenge represents an issued authentication challenge
type Challenge struct {
	Value     string    `json:"challenge"`  // Random value the client signs
	IssuedAt  time.Time `json:"issued_at"`  // When the challenge was created
	ExpiresAt time.Time `json:"expires_at"` // When the challenge expires
}

// Expired reports whether the challenge is past its expiry at the given time
func (c Challenge) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// ChallengePayload is the signed content of a challenge token
type ChallengePayload struct {
	Challenge string `json:"challenge"`
	Exp       int64  `json:"exp"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Issuer    string `json:"iss,omitempty"`
}

// Expired reports whether the payload expiry is before the given time
func (p ChallengePayload) Expired(now time.Time) bool {
	return p.Exp < now.Unix()
}

// ExpiredAt returns the first instant at which Expired reports true
func (p ChallengePayload) ExpiredAt() time.Time {
	return time.Unix(p.Exp+1, 0)
}

// ToChallenge converts the payload into a Challenge
func (p ChallengePayload) ToChallenge() Challenge {
	c := Challenge{
		Value:     p.Challenge,
		ExpiresAt: time.Unix(p.Exp, 0),
	}
	if p.IssuedAt != 0 {
		c.IssuedAt = time.Unix(p.IssuedAt, 0)
	}
	return c
}

// IssueOptions controls challenge issuance
type IssueOptions struct {
	// TTL is the challenge lifetime. Zero means DefaultChallengeTTL; negative
	// values produce an already expired challenge.
	TTL time.Duration
}

// Lifetime returns the effective TTL
func (o IssueOptions) Lifetime() time.Duration {
	if o.TTL == 0 {
		return DefaultChallengeTTL
	}
	return o.TTL
}

// IssuedChallenge is what gets sent back to the client after issuance
type IssuedChallenge struct {
	Challenge string    `json:"challenge"`
	Token     string    `json:"token,omitempty"` // Empty in session-bound mode
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChallengeResponse is what the client presents back when logging in
type ChallengeResponse struct {
	SessionID string // Caller session, used by session-bound stores
	Token     string // Opaque or bearer token, used by stateless stores
	Challenge string // Raw challenge, optional for stateless stores
}

// SignedProof is the client-submitted proof of key possession
type SignedProof struct {
	Scheme    string  `json:"scheme,omitempty"`
	PublicKey Encoded `json:"publicKey"`
	Signature Encoded `json:"signature"`
}

// VerifiedIdentity is produced only after a proof has been verified
type VerifiedIdentity struct {
	Scheme    string `json:"scheme"`
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"`
}

// AttemptState is the state of a single authentication attempt
type AttemptState string

const (
	StateIssued    AttemptState = "issued"
	StateSubmitted AttemptState = "submitted"
	StateVerified  AttemptState = "verified"
	StateRejected  AttemptState = "rejected"
)

// Terminal reports whether no further transition is possible
func (s AttemptState) Terminal() bool {
	return s == StateVerified || s == StateRejected
}
