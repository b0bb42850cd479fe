package scheme

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sort"

	"github.com/layer-3/keyauth/ports"
)

// NameMultiSig is the multi signer Ed25519 proof scheme
const NameMultiSig = "multisig"

// MaxSigners bounds the number of keys in one proof
const MaxSigners = 16

// MultiSig verifies proofs made of several Ed25519 signatures over the same
// digest. The public key field is the concatenation of the signer keys and the
// signature field the concatenation of their signatures, in the same order.
// A single signer is the one key case.
type MultiSig struct{}

// MultiSigPublicKey is an ordered set of distinct Ed25519 keys
type MultiSigPublicKey struct {
	keys []ed25519.PublicKey
}

// MultiSigSignature is an ordered list of Ed25519 signatures
type MultiSigSignature struct {
	sigs [][]byte
}

func (MultiSig) Name() string {
	return NameMultiSig
}

func (MultiSig) ParsePublicKey(raw []byte) (ports.PublicKey, error) {
	n, err := split(raw, ed25519.PublicKeySize, "public key")
	if err != nil {
		return nil, err
	}

	keys := make([]ed25519.PublicKey, 0, len(n))
	seen := make(map[string]struct{}, len(n))
	for _, k := range n {
		if _, dup := seen[string(k)]; dup {
			return nil, fmt.Errorf("duplicate signer key %x", k)
		}
		seen[string(k)] = struct{}{}
		keys = append(keys, ed25519.PublicKey(k))
	}

	return MultiSigPublicKey{keys: keys}, nil
}

func (MultiSig) ParseSignature(raw []byte) (ports.Signature, error) {
	sigs, err := split(raw, ed25519.SignatureSize, "signature")
	if err != nil {
		return nil, err
	}
	return MultiSigSignature{sigs: sigs}, nil
}

// Signers returns the number of keys in the set
func (k MultiSigPublicKey) Signers() int {
	return len(k.keys)
}

func (k MultiSigPublicKey) Bytes() []byte {
	return bytes.Join(toBytes(k.keys), nil)
}

// Address is derived from the sorted keys so the signer order does not matter
func (k MultiSigPublicKey) Address() string {
	sorted := toBytes(k.keys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return DeriveAddress(bytes.Join(sorted, nil))
}

func (s MultiSigSignature) Bytes() []byte {
	return bytes.Join(s.sigs, nil)
}

// Verify requires one valid signature per key
func (s MultiSigSignature) Verify(pub ports.PublicKey, digest []byte) bool {
	k, ok := pub.(MultiSigPublicKey)
	if !ok || len(k.keys) != len(s.sigs) {
		return false
	}

	for i, key := range k.keys {
		if !ed25519.Verify(key, digest, s.sigs[i]) {
			return false
		}
	}
	return true
}

// split cuts raw into chunks of size bytes
func split(raw []byte, size int, what string) ([][]byte, error) {
	if len(raw) == 0 || len(raw)%size != 0 {
		return nil, fmt.Errorf("%s must be a multiple of %d bytes, got %d", what, size, len(raw))
	}

	count := len(raw) / size
	if count > MaxSigners {
		return nil, fmt.Errorf("too many signers: %d > %d", count, MaxSigners)
	}

	chunks := make([][]byte, 0, count)
	for i := 0; i < len(raw); i += size {
		chunks = append(chunks, clone(raw[i:i+size]))
	}
	return chunks, nil
}

func toBytes(keys []ed25519.PublicKey) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
