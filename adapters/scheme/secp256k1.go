package scheme

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/keyauth/ports"
)

// NameSecp256k1 is the Ethereum style ECDSA scheme
const NameSecp256k1 = "secp256k1"

// Secp256k1 verifies ECDSA signatures over secp256k1, as produced by
// Ethereum wallets
type Secp256k1 struct{}

// Secp256k1PublicKey wraps a secp256k1 key
type Secp256k1PublicKey struct {
	key *ecdsa.PublicKey
}

// Secp256k1Signature holds the R||S part of a signature. A trailing recovery
// byte is accepted and dropped.
type Secp256k1Signature struct {
	sig []byte
}

func (Secp256k1) Name() string {
	return NameSecp256k1
}

// ParsePublicKey accepts 33 byte compressed, 65 byte uncompressed and 64 byte
// raw X||Y keys
func (Secp256k1) ParsePublicKey(raw []byte) (ports.PublicKey, error) {
	switch len(raw) {
	case 33:
		key, err := crypto.DecompressPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed key: %w", err)
		}
		return Secp256k1PublicKey{key: key}, nil
	case 64, 65:
		if len(raw) == 64 {
			raw = append([]byte{0x04}, raw...)
		}
		key, err := crypto.UnmarshalPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid uncompressed key: %w", err)
		}
		return Secp256k1PublicKey{key: key}, nil
	default:
		return nil, fmt.Errorf("secp256k1 public key must be 33, 64 or 65 bytes, got %d", len(raw))
	}
}

func (Secp256k1) ParseSignature(raw []byte) (ports.Signature, error) {
	switch len(raw) {
	case crypto.SignatureLength - 1, crypto.SignatureLength:
		return Secp256k1Signature{sig: clone(raw[:crypto.SignatureLength-1])}, nil
	default:
		return nil, fmt.Errorf("secp256k1 signature must be 64 or 65 bytes, got %d", len(raw))
	}
}

// Bytes returns the compressed key
func (k Secp256k1PublicKey) Bytes() []byte {
	return crypto.CompressPubkey(k.key)
}

// Address returns the checksummed Ethereum address of the key
func (k Secp256k1PublicKey) Address() string {
	return crypto.PubkeyToAddress(*k.key).Hex()
}

func (s Secp256k1Signature) Bytes() []byte {
	return clone(s.sig)
}

// Verify rejects high S signatures
func (s Secp256k1Signature) Verify(pub ports.PublicKey, digest []byte) bool {
	k, ok := pub.(Secp256k1PublicKey)
	if !ok || len(digest) != 32 {
		return false
	}
	return crypto.VerifySignature(crypto.CompressPubkey(k.key), digest, s.sig)
}
