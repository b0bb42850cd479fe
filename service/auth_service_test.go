package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/keyauth/adapters/challenge"
	"github.com/layer-3/keyauth/adapters/scheme"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/layer-3/keyauth/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	verified []core.AuthResult
	rejected []ports.RejectedAttempt
	err      error
}

func (p *recordingPublisher) PublishVerified(_ context.Context, result core.AuthResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verified = append(p.verified, result)
	return p.err
}

func (p *recordingPublisher) PublishRejected(_ context.Context, attempt ports.RejectedAttempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = append(p.rejected, attempt)
	return p.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVerifier(t *testing.T) *verifier.Verifier {
	t.Helper()
	schemes, err := scheme.Resolve()
	require.NoError(t, err)
	v, err := verifier.New(core.NewMessageHasher(""), schemes, verifier.DefaultOptions())
	require.NoError(t, err)
	return v
}

func newStatelessService(t *testing.T, pub ports.EventPublisher) *AuthService {
	t.Helper()
	codec, err := tokenizer.NewOpaqueCodec([]byte("service-secret"))
	require.NoError(t, err)
	ledger := store.NewMemoryStore(0)
	t.Cleanup(func() { ledger.Close() })

	challenges := challenge.NewStatelessStore(codec, challenge.WithAppName("Login with Nimiq"), challenge.WithLedger(ledger))
	return NewAuthService(challenges, newVerifier(t), pub, testLogger(), Config{AppName: "Login with Nimiq"})
}

func sign(t *testing.T, priv ed25519.PrivateKey, challenge string) core.SignedProof {
	t.Helper()
	return core.SignedProof{
		PublicKey: core.RawEncoded(priv.Public().(ed25519.PublicKey)),
		Signature: core.RawEncoded(ed25519.Sign(priv, core.HashChallenge(challenge))),
	}
}

func TestLogin_Stateless(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newStatelessService(t, pub)
	ctx := context.Background()

	publicKey, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	issued, err := svc.CreateChallenge(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, challenge.ModeStateless, svc.Mode())

	result, err := svc.Login(ctx, LoginRequest{
		Token:     issued.Token,
		Challenge: issued.Challenge,
		Proof:     sign(t, priv, issued.Challenge),
		Metadata:  map[string]string{"user_agent": "test"},
	})
	require.NoError(t, err)

	assert.Equal(t, scheme.DeriveAddress(publicKey), result.Address)
	assert.Equal(t, issued.Challenge, result.Challenge)
	assert.Equal(t, "Login with Nimiq", result.AppName)
	assert.Equal(t, "test", result.Metadata["user_agent"])
	assert.False(t, result.VerifiedAt.IsZero())

	require.Len(t, pub.verified, 1)
	assert.Equal(t, result.Address, pub.verified[0].Address)
	assert.Empty(t, pub.rejected)

	// the ledger refuses a second use of the same token
	_, err = svc.Login(ctx, LoginRequest{Token: issued.Token, Proof: sign(t, priv, issued.Challenge)})
	assert.ErrorIs(t, err, core.ErrReplay)
	require.Len(t, pub.rejected, 1)
	assert.Equal(t, core.StateRejected, pub.rejected[0].State)
	assert.Equal(t, "replay", pub.rejected[0].Kind)
	assert.Equal(t, challenge.ModeStateless, pub.rejected[0].Mode)
}

func TestLogin_InvalidSignature(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newStatelessService(t, pub)
	ctx := context.Background()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	first, err := svc.CreateChallenge(ctx, "")
	require.NoError(t, err)
	second, err := svc.CreateChallenge(ctx, "")
	require.NoError(t, err)

	// a signature over another challenge does not carry over
	_, err = svc.Login(ctx, LoginRequest{Token: second.Token, Proof: sign(t, priv, first.Challenge)})
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	require.Len(t, pub.rejected, 1)
	assert.Equal(t, "invalid_signature", pub.rejected[0].Kind)
	assert.NotEmpty(t, pub.rejected[0].PublicKey)
}

func TestLogin_Session(t *testing.T) {
	pub := &recordingPublisher{}
	backend := store.NewMemoryStore(0)
	defer backend.Close()

	svc := NewAuthService(challenge.NewSessionStore(backend), newVerifier(t), pub, testLogger(), Config{})
	ctx := context.Background()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = svc.CreateChallenge(ctx, "")
	assert.ErrorIs(t, err, core.ErrSessionRequired)

	issued, err := svc.CreateChallenge(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, issued.Token)

	// a failed attempt still clears the session challenge
	_, err = svc.Login(ctx, LoginRequest{SessionID: "session-1", Proof: sign(t, priv, "0f9a6bb4-54ad-4d6a-9c1f-3d2f1b8c7e11")})
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	_, err = svc.Login(ctx, LoginRequest{SessionID: "session-1", Proof: sign(t, priv, issued.Challenge)})
	assert.ErrorIs(t, err, core.ErrReplay)

	issued, err = svc.CreateChallenge(ctx, "session-1")
	require.NoError(t, err)
	_, err = svc.Login(ctx, LoginRequest{SessionID: "session-1", Proof: sign(t, priv, issued.Challenge)})
	assert.NoError(t, err)
}

func TestLogin_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newStatelessService(t, pub)
	ctx := context.Background()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	issued, err := svc.CreateChallenge(ctx, "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Token: issued.Token, Proof: sign(t, priv, issued.Challenge)})
	assert.NoError(t, err)
}

func TestCreateChallenge_TTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	codec, err := tokenizer.NewOpaqueCodec([]byte("service-secret"), tokenizer.WithClock(clock))
	require.NoError(t, err)
	svc := NewAuthService(
		challenge.NewStatelessStore(codec, challenge.WithClock(clock)),
		newVerifier(t), &recordingPublisher{}, testLogger(),
		Config{ChallengeTTL: time.Minute, Clock: clock},
	)

	issued, err := svc.CreateChallenge(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), issued.ExpiresAt)
}

func TestInspect(t *testing.T) {
	svc := newStatelessService(t, &recordingPublisher{})

	issued, err := svc.CreateChallenge(context.Background(), "")
	require.NoError(t, err)

	payload, err := svc.Inspect(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Challenge, payload.Challenge)
	assert.Equal(t, "Login with Nimiq", payload.Issuer)

	backend := store.NewMemoryStore(0)
	defer backend.Close()
	sessionSvc := NewAuthService(challenge.NewSessionStore(backend), newVerifier(t), &recordingPublisher{}, testLogger(), Config{})

	_, err = sessionSvc.Inspect(issued.Token)
	assert.ErrorIs(t, err, ErrInspectUnsupported)
}
