package ports

import "github.com/layer-3/keyauth/core"

// TokenCodec encodes challenge payloads into self-contained signed tokens
type TokenCodec interface {
	// Format names the wire format ("opaque" or "jwt")
	Format() string

	// Encode signs the payload and returns the token
	Encode(payload core.ChallengePayload) (string, error)

	// Decode returns the payload without checking the signature. Diagnostics only.
	Decode(token string) (core.ChallengePayload, error)

	// Verify checks structure, signature and expiry and returns the payload
	Verify(token string) (core.ChallengePayload, error)
}
