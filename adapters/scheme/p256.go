package scheme

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/layer-3/keyauth/ports"
)

// NameP256 is the ECDSA P-256 scheme used by passkey authenticators
const NameP256 = "p256"

// P256 verifies ECDSA P-256 signatures over the digest
type P256 struct{}

// P256PublicKey keeps the parsed key and its SPKI encoding
type P256PublicKey struct {
	key  *ecdsa.PublicKey
	spki []byte
}

// P256Signature is an ASN.1 DER encoded ECDSA signature
type P256Signature struct {
	der []byte
}

type ecdsaSignature struct {
	R, S *big.Int
}

func (P256) Name() string {
	return NameP256
}

// ParsePublicKey accepts a DER SubjectPublicKeyInfo or a 65 byte uncompressed point
func (P256) ParsePublicKey(raw []byte) (ports.PublicKey, error) {
	spki := raw
	if len(raw) == 65 && raw[0] == 0x04 {
		point, err := ecdh.P256().NewPublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid p256 point: %w", err)
		}
		if spki, err = x509.MarshalPKIXPublicKey(point); err != nil {
			return nil, fmt.Errorf("encoding p256 key: %w", err)
		}
	}

	parsed, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("invalid p256 key: %w", err)
	}

	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("key is not an ECDSA P-256 key")
	}

	return P256PublicKey{key: key, spki: clone(spki)}, nil
}

// ParseSignature accepts DER or raw 64 byte R||S signatures
func (P256) ParseSignature(raw []byte) (ports.Signature, error) {
	if len(raw) == 64 {
		der, err := asn1.Marshal(ecdsaSignature{
			R: new(big.Int).SetBytes(raw[:32]),
			S: new(big.Int).SetBytes(raw[32:]),
		})
		if err != nil {
			return nil, fmt.Errorf("encoding p256 signature: %w", err)
		}
		return P256Signature{der: der}, nil
	}

	var sig ecdsaSignature
	rest, err := asn1.Unmarshal(raw, &sig)
	if err != nil {
		return nil, fmt.Errorf("invalid p256 signature: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("invalid p256 signature: trailing data")
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, fmt.Errorf("invalid p256 signature: non-positive component")
	}

	return P256Signature{der: clone(raw)}, nil
}

// Bytes returns the SubjectPublicKeyInfo encoding
func (k P256PublicKey) Bytes() []byte {
	return clone(k.spki)
}

func (k P256PublicKey) Address() string {
	return DeriveAddress(k.spki)
}

func (s P256Signature) Bytes() []byte {
	return clone(s.der)
}

func (s P256Signature) Verify(pub ports.PublicKey, digest []byte) bool {
	k, ok := pub.(P256PublicKey)
	if !ok {
		return false
	}
	return ecdsa.VerifyASN1(k.key, digest, s.der)
}
