package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// FormatJWT names the bearer token format
const FormatJWT = "jwt"

// DefaultIssuer is used when neither the payload nor the codec names an issuer
const DefaultIssuer = "Nimiq Auth"

// ChallengeClaims are the claims of a bearer challenge token. The challenge
// travels in the jti claim.
type ChallengeClaims struct {
	jwt.RegisteredClaims
}

// JWTCodec implements the bearer token format using HS256 signed JWTs
type JWTCodec struct {
	secret []byte
	opts   options
}

// NewJWTCodec creates a new JWT codec
func NewJWTCodec(secret []byte, opts ...Option) (ports.TokenCodec, error) {
	if len(secret) == 0 {
		return nil, core.ErrMissingSecret
	}
	return &JWTCodec{
		secret: append([]byte(nil), secret...),
		opts:   newOptions(opts),
	}, nil
}

// Format returns the token format name
func (j *JWTCodec) Format() string {
	return FormatJWT
}

// Encode converts a payload to a signed JWT
func (j *JWTCodec) Encode(payload core.ChallengePayload) (string, error) {
	if payload.Issuer == "" {
		payload.Issuer = j.issuer()
	}
	if err := j.validatePayload(payload); err != nil {
		return "", err
	}

	claims := ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        payload.Challenge,
			Issuer:    payload.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Unix(payload.Exp, 0)),
		},
	}
	if payload.IssuedAt != 0 {
		claims.IssuedAt = jwt.NewNumericDate(time.Unix(payload.IssuedAt, 0))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Decode parses the token without verifying its signature
func (j *JWTCodec) Decode(tokenStr string) (core.ChallengePayload, error) {
	if tokenStr == "" {
		return core.ChallengePayload{}, core.ErrTokenRequired
	}

	claims := &ChallengeClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return core.ChallengePayload{}, fmt.Errorf("%w: %v", core.ErrTokenFormat, err)
	}

	payload := claimsToPayload(claims)
	if err := j.validatePayload(payload); err != nil {
		return core.ChallengePayload{}, err
	}

	return payload, nil
}

// Verify parses the token, checks its HS256 signature, expiry and claims
func (j *JWTCodec) Verify(tokenStr string) (core.ChallengePayload, error) {
	if tokenStr == "" {
		return core.ChallengePayload{}, core.ErrTokenRequired
	}

	claims := &ChallengeClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		// exp is inclusive to the second, as in ChallengePayload.Expired
		jwt.WithLeeway(time.Second),
		jwt.WithTimeFunc(j.opts.clock.Now),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return core.ChallengePayload{}, mapJWTError(err)
	}

	if !token.Valid {
		return core.ChallengePayload{}, core.ErrTokenSignature
	}

	payload := claimsToPayload(claims)
	if err := j.validatePayload(payload); err != nil {
		return core.ChallengePayload{}, err
	}

	return payload, nil
}

// validatePayload checks the required claims are present, unexpired and well formed
func (j *JWTCodec) validatePayload(payload core.ChallengePayload) error {
	if payload.Issuer == "" || payload.Challenge == "" || payload.Exp == 0 {
		return fmt.Errorf("%w: iss, jti and exp are required", core.ErrTokenFormat)
	}

	if payload.Expired(j.opts.clock.Now()) {
		return core.ErrExpired
	}

	if j.opts.requireUUID && !core.IsUUID(payload.Challenge) {
		return core.ErrChallengeFormat
	}

	return nil
}

func (j *JWTCodec) issuer() string {
	if j.opts.issuer != "" {
		return j.opts.issuer
	}
	return DefaultIssuer
}

func claimsToPayload(claims *ChallengeClaims) core.ChallengePayload {
	payload := core.ChallengePayload{
		Challenge: claims.ID,
		Issuer:    claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		payload.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Unix()
	}
	return payload
}

// mapJWTError translates jwt parse errors into the core taxonomy. Malformed
// tokens and missing claims are format errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", core.ErrTokenSignature, err)
	default:
		return fmt.Errorf("%w: %v", core.ErrTokenFormat, err)
	}
}
