package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of them.
var (
	// ErrValidation is returned for missing or malformed caller input
	ErrValidation = errors.New("validation error")

	// ErrFormat is returned when a challenge or token fails structural checks
	ErrFormat = errors.New("format error")

	// ErrCrypto is returned for key, signature or HMAC parse/compare failures
	ErrCrypto = errors.New("crypto error")

	// ErrExpired is returned when a token or challenge is presented after expiry
	ErrExpired = errors.New("challenge expired")

	// ErrReplay is returned when a challenge has already been consumed
	ErrReplay = errors.New("challenge already consumed")

	// ErrInvalidSignature is returned for a well-formed proof that does not verify
	ErrInvalidSignature = errors.New("invalid signature")
)

var (
	ErrChallengeRequired = fmt.Errorf("%w: challenge required", ErrValidation)
	ErrTokenRequired     = fmt.Errorf("%w: challenge token required", ErrValidation)
	ErrSessionRequired   = fmt.Errorf("%w: session required", ErrValidation)
	ErrChallengeMismatch = fmt.Errorf("%w: challenge does not match", ErrValidation)
	ErrUnknownScheme     = fmt.Errorf("%w: unknown signature scheme", ErrValidation)

	ErrChallengeFormat = fmt.Errorf("%w: challenge is not a valid UUID", ErrFormat)
	ErrTokenFormat     = fmt.Errorf("%w: invalid challenge token format", ErrFormat)

	ErrPublicKey       = fmt.Errorf("%w: public key error", ErrCrypto)
	ErrSignatureFormat = fmt.Errorf("%w: signature error", ErrCrypto)
	ErrTokenSignature  = fmt.Errorf("%w: invalid challenge token signature", ErrCrypto)
)

// Server-side errors, never caused by the client
var (
	// ErrMissingSecret is returned when no server secret is configured
	ErrMissingSecret = errors.New("server secret not configured")

	// ErrStoreOperationFailed is returned when a store operation fails
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// Kind names the error kind of err for logs and events
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrReplay):
		return "replay"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrCrypto):
		return "crypto"
	default:
		return "internal"
	}
}

// IsClientError reports whether err was caused by the caller's input
func IsClientError(err error) bool {
	k := Kind(err)
	return k != "" && k != "internal"
}
