package tokenizer

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// FormatOpaque names the base64 {payload, sig} token format
const FormatOpaque = "opaque"

// opaqueToken is the wire structure of an opaque token. The payload is kept
// as raw bytes so the HMAC covers exactly what was transmitted.
type opaqueToken struct {
	Payload json.RawMessage `json:"payload"`
	Sig     string          `json:"sig"`
}

// OpaqueCodec signs challenge payloads with HMAC-SHA256 and wraps them in a
// base64 encoded JSON envelope
type OpaqueCodec struct {
	secret []byte
	opts   options
}

// NewOpaqueCodec creates a new opaque token codec
func NewOpaqueCodec(secret []byte, opts ...Option) (ports.TokenCodec, error) {
	if len(secret) == 0 {
		return nil, core.ErrMissingSecret
	}
	return &OpaqueCodec{
		secret: append([]byte(nil), secret...),
		opts:   newOptions(opts),
	}, nil
}

// Format returns the token format name
func (c *OpaqueCodec) Format() string {
	return FormatOpaque
}

// Encode serializes, signs and wraps the payload
func (c *OpaqueCodec) Encode(payload core.ChallengePayload) (string, error) {
	if payload.Challenge == "" {
		return "", core.ErrChallengeRequired
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	envelope, err := json.Marshal(opaqueToken{
		Payload: payloadJSON,
		Sig:     hex.EncodeToString(c.sign(payloadJSON)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decode unwraps the token without checking its signature
func (c *OpaqueCodec) Decode(token string) (core.ChallengePayload, error) {
	_, payload, err := c.unwrap(token)
	if err != nil {
		return core.ChallengePayload{}, err
	}
	return payload, nil
}

// Verify checks the token structure, signature, expiry and challenge shape
func (c *OpaqueCodec) Verify(token string) (core.ChallengePayload, error) {
	envelope, payload, err := c.unwrap(token)
	if err != nil {
		return core.ChallengePayload{}, err
	}

	sig, err := hex.DecodeString(envelope.Sig)
	if err != nil || !hmac.Equal(sig, c.sign(envelope.Payload)) {
		return core.ChallengePayload{}, core.ErrTokenSignature
	}

	if payload.Expired(c.opts.clock.Now()) {
		return core.ChallengePayload{}, core.ErrExpired
	}

	if payload.Challenge == "" {
		return core.ChallengePayload{}, fmt.Errorf("%w: challenge missing", core.ErrTokenFormat)
	}

	if c.opts.requireUUID && !core.IsUUID(payload.Challenge) {
		return core.ChallengePayload{}, core.ErrChallengeFormat
	}

	return payload, nil
}

func (c *OpaqueCodec) unwrap(token string) (opaqueToken, core.ChallengePayload, error) {
	var envelope opaqueToken
	var payload core.ChallengePayload

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return envelope, payload, fmt.Errorf("%w: %v", core.ErrTokenFormat, err)
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, payload, fmt.Errorf("%w: %v", core.ErrTokenFormat, err)
	}

	if len(envelope.Payload) == 0 || bytes.Equal(envelope.Payload, []byte("null")) {
		return envelope, payload, fmt.Errorf("%w: payload missing", core.ErrTokenFormat)
	}

	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return envelope, payload, fmt.Errorf("%w: %v", core.ErrTokenFormat, err)
	}

	return envelope, payload, nil
}

func (c *OpaqueCodec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
