package scheme

import "github.com/ethereum/go-ethereum/accounts"

// HasherEIP191 selects EIP191Hasher
const HasherEIP191 = "eip191"

// EIP191Hasher hashes challenges the way Ethereum wallets do for
// personal_sign, so secp256k1 proofs can come straight from a browser wallet
type EIP191Hasher struct{}

// Hash returns keccak256("\x19Ethereum Signed Message:\n" + len + challenge)
func (EIP191Hasher) Hash(challenge string) []byte {
	return accounts.TextHash([]byte(challenge))
}
