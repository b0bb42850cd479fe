// Package verifier checks signed proofs of key possession against a challenge.
package verifier

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// Options configures a Verifier
type Options struct {
	// RequireUUID enforces the canonical UUIDv4 shape on challenges. When
	// false only a minimum length is required.
	RequireUUID bool
}

// DefaultOptions returns the strict default options
func DefaultOptions() Options {
	return Options{RequireUUID: true}
}

// Verifier runs the ordered proof checks. It holds no mutable state and is
// safe for concurrent use.
type Verifier struct {
	hasher        ports.MessageHasher
	schemes       map[string]ports.SignatureScheme
	defaultScheme string
	opts          Options
}

var _ ports.ProofVerifier = (*Verifier)(nil)

// New creates a verifier. The first scheme is used for proofs that name none.
func New(hasher ports.MessageHasher, schemes []ports.SignatureScheme, opts Options) (*Verifier, error) {
	if hasher == nil {
		return nil, fmt.Errorf("verifier: hasher required")
	}
	if len(schemes) == 0 {
		return nil, fmt.Errorf("verifier: at least one signature scheme required")
	}

	v := &Verifier{
		hasher:        hasher,
		schemes:       make(map[string]ports.SignatureScheme, len(schemes)),
		defaultScheme: strings.ToLower(schemes[0].Name()),
		opts:          opts,
	}
	for _, s := range schemes {
		v.schemes[strings.ToLower(s.Name())] = s
	}

	return v, nil
}

// Schemes returns the names of the registered schemes, default first
func (v *Verifier) Schemes() []string {
	var rest []string
	for name := range v.schemes {
		if name != v.defaultScheme {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append([]string{v.defaultScheme}, rest...)
}

// Verify checks proof against challenge. The checks run in a fixed order and
// stop at the first failure.
func (v *Verifier) Verify(challenge string, proof core.SignedProof) (core.VerifiedIdentity, error) {
	if err := core.ValidateChallenge(challenge, v.opts.RequireUUID); err != nil {
		return core.VerifiedIdentity{}, err
	}

	scheme, err := v.scheme(proof.Scheme)
	if err != nil {
		return core.VerifiedIdentity{}, err
	}

	pubRaw, err := proof.PublicKey.Bytes()
	if err != nil {
		return core.VerifiedIdentity{}, fmt.Errorf("%w: %v", core.ErrPublicKey, err)
	}
	pub, err := scheme.ParsePublicKey(pubRaw)
	if err != nil {
		return core.VerifiedIdentity{}, fmt.Errorf("%w: %v", core.ErrPublicKey, err)
	}

	sigRaw, err := proof.Signature.Bytes()
	if err != nil {
		return core.VerifiedIdentity{}, fmt.Errorf("%w: %v", core.ErrSignatureFormat, err)
	}
	sig, err := scheme.ParseSignature(sigRaw)
	if err != nil {
		return core.VerifiedIdentity{}, fmt.Errorf("%w: %v", core.ErrSignatureFormat, err)
	}

	digest := v.hasher.Hash(challenge)

	if !sig.Verify(pub, digest) {
		return core.VerifiedIdentity{}, core.ErrInvalidSignature
	}

	return core.VerifiedIdentity{
		Scheme:    scheme.Name(),
		PublicKey: hex.EncodeToString(pub.Bytes()),
		Address:   pub.Address(),
	}, nil
}

func (v *Verifier) scheme(name string) (ports.SignatureScheme, error) {
	if name == "" {
		name = v.defaultScheme
	}
	s, ok := v.schemes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownScheme, name)
	}
	return s, nil
}
