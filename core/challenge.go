package core

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// MinChallengeLength is the shortest challenge accepted when UUIDs are not required
const MinChallengeLength = 16

var (
	uuidV4Pattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	uuidPattern   = regexp.MustCompile(`(?i)^[0-9a-f]{8}(?:-[0-9a-f]{4}){3}-[0-9a-f]{12}$`)
)

// NewChallenge generates a random UUIDv4 challenge valid for ttl
func NewChallenge(now time.Time, ttl time.Duration) (Challenge, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to generate challenge: %w", err)
	}

	return Challenge{
		Value:     id.String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsUUIDv4 reports whether s is a canonical version 4 UUID
func IsUUIDv4(s string) bool {
	return uuidV4Pattern.MatchString(s)
}

// IsUUID reports whether s has the canonical 8-4-4-4-12 UUID shape
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// ValidateChallenge checks a presented challenge before any crypto is done
func ValidateChallenge(challenge string, requireUUID bool) error {
	if challenge == "" {
		return ErrChallengeRequired
	}

	if requireUUID {
		if !IsUUIDv4(challenge) {
			return ErrChallengeFormat
		}
		return nil
	}

	if len(challenge) < MinChallengeLength {
		return fmt.Errorf("%w: shorter than %d bytes", ErrFormat, MinChallengeLength)
	}
	return nil
}
