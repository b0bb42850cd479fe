package core

import (
	"crypto/sha256"
	"strconv"
)

// DefaultMessagePrefix is the prefix the signing agent prepends to every
// message before hashing. A signature made over anything else, such as a
// transaction, can never match a login digest.
const DefaultMessagePrefix = "\x16Nimiq Signed Message:\n"

// MessageHasher computes the domain-separated digest of a challenge
type MessageHasher struct {
	Prefix string
}

// NewMessageHasher creates a hasher, using DefaultMessagePrefix for an empty prefix
func NewMessageHasher(prefix string) MessageHasher {
	if prefix == "" {
		prefix = DefaultMessagePrefix
	}
	return MessageHasher{Prefix: prefix}
}

// Hash returns SHA256(prefix || decimal byte length || challenge)
func (h MessageHasher) Hash(challenge string) []byte {
	prefix := h.Prefix
	if prefix == "" {
		prefix = DefaultMessagePrefix
	}

	d := sha256.New()
	d.Write([]byte(prefix))
	d.Write([]byte(strconv.Itoa(len(challenge))))
	d.Write([]byte(challenge))
	return d.Sum(nil)
}

// HashChallenge hashes a challenge with the default prefix
func HashChallenge(challenge string) []byte {
	return MessageHasher{}.Hash(challenge)
}
