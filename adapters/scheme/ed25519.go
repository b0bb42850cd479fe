package scheme

import (
	"crypto/ed25519"
	"fmt"

	"github.com/layer-3/keyauth/ports"
)

// NameEd25519 is the single key Ed25519 scheme
const NameEd25519 = "ed25519"

// Ed25519 verifies plain Ed25519 signatures
type Ed25519 struct{}

// Ed25519PublicKey is a 32 byte Ed25519 key
type Ed25519PublicKey struct {
	key ed25519.PublicKey
}

// Ed25519Signature is a 64 byte Ed25519 signature
type Ed25519Signature struct {
	sig []byte
}

func (Ed25519) Name() string {
	return NameEd25519
}

func (Ed25519) ParsePublicKey(raw []byte) (ports.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return Ed25519PublicKey{key: ed25519.PublicKey(clone(raw))}, nil
}

func (Ed25519) ParseSignature(raw []byte) (ports.Signature, error) {
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("ed25519 signature must be %d bytes, got %d", ed25519.SignatureSize, len(raw))
	}
	return Ed25519Signature{sig: clone(raw)}, nil
}

func (k Ed25519PublicKey) Bytes() []byte {
	return clone(k.key)
}

// Address derives the account address from the key
func (k Ed25519PublicKey) Address() string {
	return DeriveAddress(k.key)
}

func (s Ed25519Signature) Bytes() []byte {
	return clone(s.sig)
}

func (s Ed25519Signature) Verify(pub ports.PublicKey, digest []byte) bool {
	k, ok := pub.(Ed25519PublicKey)
	if !ok {
		return false
	}
	return ed25519.Verify(k.key, digest, s.sig)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
