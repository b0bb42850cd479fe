package scheme

import (
	"fmt"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// HasherSHA256 selects the default prefixed SHA-256 hasher
const HasherSHA256 = "sha256"

// DefaultNames lists every scheme in default order. The first is used when a
// proof names none.
var DefaultNames = []string{NameEd25519, NameMultiSig, NameSecp256k1, NameP256}

// ByName returns the scheme registered under name
func ByName(name string) (ports.SignatureScheme, error) {
	switch name {
	case NameEd25519:
		return Ed25519{}, nil
	case NameMultiSig:
		return MultiSig{}, nil
	case NameSecp256k1:
		return Secp256k1{}, nil
	case NameP256:
		return P256{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownScheme, name)
	}
}

// Resolve returns the schemes for names, keeping their order. An empty list
// resolves to DefaultNames.
func Resolve(names ...string) ([]ports.SignatureScheme, error) {
	if len(names) == 0 {
		names = DefaultNames
	}

	schemes := make([]ports.SignatureScheme, 0, len(names))
	for _, name := range names {
		s, err := ByName(name)
		if err != nil {
			return nil, err
		}
		schemes = append(schemes, s)
	}
	return schemes, nil
}

// Hasher returns the message hasher named by name. prefix only applies to
// the sha256 hasher.
func Hasher(name, prefix string) (ports.MessageHasher, error) {
	switch name {
	case "", HasherSHA256:
		return core.NewMessageHasher(prefix), nil
	case HasherEIP191:
		return EIP191Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q", name)
	}
}
