package ports

import "github.com/layer-3/keyauth/core"

// MessageHasher computes the digest a client signs for a challenge
type MessageHasher interface {
	Hash(challenge string) []byte
}

// PublicKey is a parsed signer key
type PublicKey interface {
	// Bytes returns the canonical serialization of the key
	Bytes() []byte

	// Address returns the deterministic address derived from the key
	Address() string
}

// Signature is a parsed proof over a digest. It may wrap several signatures.
type Signature interface {
	Bytes() []byte

	// Verify reports whether the proof is valid for digest under pub
	Verify(pub PublicKey, digest []byte) bool
}

// SignatureScheme parses keys and signatures of one algorithm
type SignatureScheme interface {
	Name() string
	ParsePublicKey(raw []byte) (PublicKey, error)
	ParseSignature(raw []byte) (Signature, error)
}

// ProofVerifier checks a signed proof against a challenge
type ProofVerifier interface {
	Verify(challenge string, proof core.SignedProof) (core.VerifiedIdentity, error)
}
