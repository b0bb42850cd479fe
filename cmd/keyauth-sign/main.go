// Command keyauth-sign signs a login challenge with a local key. It is meant
// for development and testing against a running keyauth server.
package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/layer-3/keyauth/adapters/scheme"
	"github.com/layer-3/keyauth/core"
)

type proof struct {
	Scheme    string `json:"scheme"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

func main() {
	schemeName := flag.String("scheme", scheme.NameEd25519, "signature scheme: ed25519 or secp256k1")
	keyHex := flag.String("key", "", "hex private key (ed25519 seed or secp256k1 key); generated when empty")
	hasherName := flag.String("hasher", scheme.HasherSHA256, "message hasher: sha256 or eip191")
	prefix := flag.String("prefix", "", "message prefix for the sha256 hasher")
	jsonOut := flag.Bool("json", false, "print the proof as JSON")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: keyauth-sign [flags] <challenge>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	p, generated, err := sign(*schemeName, *keyHex, *hasherName, *prefix, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	label := color.New(color.FgCyan)
	if generated != "" {
		label.Print("privateKey: ")
		color.Yellow(generated)
	}
	label.Print("scheme:     ")
	fmt.Println(p.Scheme)
	label.Print("publicKey:  ")
	fmt.Println(p.PublicKey)
	label.Print("signature:  ")
	fmt.Println(p.Signature)
	label.Print("address:    ")
	fmt.Println(p.Address)
}

// sign signs challenge and returns the proof. When keyHex is empty a new key
// is generated and returned hex encoded.
func sign(schemeName, keyHex, hasherName, prefix, challenge string) (proof, string, error) {
	hasher, err := scheme.Hasher(hasherName, prefix)
	if err != nil {
		return proof{}, "", err
	}
	digest := hasher.Hash(challenge)

	var pub, sig []byte
	var generated string

	switch strings.ToLower(schemeName) {
	case scheme.NameEd25519:
		var priv ed25519.PrivateKey
		if keyHex == "" {
			_, priv, err = ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return proof{}, "", err
			}
			generated = hex.EncodeToString(priv.Seed())
		} else {
			seed, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
			if err != nil || len(seed) != ed25519.SeedSize {
				return proof{}, "", fmt.Errorf("ed25519 key must be a %d byte hex seed", ed25519.SeedSize)
			}
			priv = ed25519.NewKeyFromSeed(seed)
		}
		pub = priv.Public().(ed25519.PublicKey)
		sig = ed25519.Sign(priv, digest)

	case scheme.NameSecp256k1:
		var key *ecdsa.PrivateKey
		if keyHex == "" {
			key, err = crypto.GenerateKey()
		} else {
			key, err = crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
		}
		if err != nil {
			return proof{}, "", fmt.Errorf("secp256k1 key: %w", err)
		}
		if keyHex == "" {
			generated = hex.EncodeToString(crypto.FromECDSA(key))
		}
		pub = crypto.CompressPubkey(&key.PublicKey)
		sig, err = crypto.Sign(digest, key)
		if err != nil {
			return proof{}, "", fmt.Errorf("signing: %w", err)
		}

	default:
		return proof{}, "", fmt.Errorf("%w: %q", core.ErrUnknownScheme, schemeName)
	}

	s, err := scheme.ByName(strings.ToLower(schemeName))
	if err != nil {
		return proof{}, "", err
	}
	key, err := s.ParsePublicKey(pub)
	if err != nil {
		return proof{}, "", err
	}

	return proof{
		Scheme:    s.Name(),
		PublicKey: hex.EncodeToString(pub),
		Signature: hex.EncodeToString(sig),
		Address:   key.Address(),
	}, generated, nil
}
