package http

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/adapters/challenge"
	"github.com/layer-3/keyauth/adapters/events"
	"github.com/layer-3/keyauth/adapters/scheme"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/layer-3/keyauth/service"
	"github.com/layer-3/keyauth/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("router-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, challenges ports.ChallengeStore) *service.AuthService {
	t.Helper()
	schemes, err := scheme.Resolve()
	require.NoError(t, err)
	v, err := verifier.New(core.NewMessageHasher(""), schemes, verifier.DefaultOptions())
	require.NoError(t, err)
	return service.NewAuthService(challenges, v, events.NopPublisher{}, discard(), service.Config{AppName: "Login with Nimiq"})
}

func statelessRouter(t *testing.T, csrfHeader string) *gin.Engine {
	t.Helper()
	opaque, err := tokenizer.NewOpaqueCodec(secret)
	require.NoError(t, err)
	jwtCodec, err := tokenizer.NewJWTCodec(secret)
	require.NoError(t, err)

	ledger := store.NewMemoryStore(0)
	t.Cleanup(func() { ledger.Close() })

	challengeSvc := newService(t, challenge.NewStatelessStore(opaque, challenge.WithLedger(ledger)))
	bearerSvc := newService(t, challenge.NewStatelessStore(jwtCodec, challenge.WithLedger(ledger)))

	return SetupRouter(RouterConfig{CSRFHeader: csrfHeader}, challengeSvc, bearerSvc, discard())
}

func do(router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signedData(priv ed25519.PrivateKey, challenge string) map[string]string {
	return map[string]string{
		"publicKey": hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
		"signature": hex.EncodeToString(ed25519.Sign(priv, core.HashChallenge(challenge))),
	}
}

func TestChallengeFlow_Stateless(t *testing.T) {
	router := statelessRouter(t, "")
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/challenge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var issued struct {
		Challenge string `json:"challenge"`
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	assert.True(t, core.IsUUIDv4(issued.Challenge))
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.ExpiresAt)

	body := gin.H{
		"challenge":  issued.Challenge,
		"token":      issued.Token,
		"signedData": signedData(priv, issued.Challenge),
	}
	w = do(router, http.MethodPost, "/challenge", body, map[string]string{"User-Agent": "router-test"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Verified bool `json:"verified"`
		User     struct {
			PublicKey string `json:"publicKey"`
			Address   string `json:"address"`
		} `json:"user"`
		Session core.AuthResult `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Verified)
	assert.Equal(t, hex.EncodeToString(pub), resp.User.PublicKey)
	assert.Equal(t, scheme.DeriveAddress(pub), resp.User.Address)
	assert.Equal(t, issued.Challenge, resp.Session.Challenge)
	assert.Equal(t, "router-test", resp.Session.Metadata["user_agent"])

	// replaying the same token is refused
	w = do(router, http.MethodPost, "/challenge", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), core.ErrReplay.Error())
}

func TestChallengeFlow_BadRequests(t *testing.T) {
	router := statelessRouter(t, "")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/challenge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var issued core.IssuedChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/challenge", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		w := do(router, http.MethodPost, "/challenge", gin.H{
			"token":      issued.Token,
			"signedData": signedData(priv, "0f9a6bb4-54ad-4d6a-9c1f-3d2f1b8c7e11"),
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_signature")
	})

	t.Run("missing token", func(t *testing.T) {
		w := do(router, http.MethodPost, "/challenge", gin.H{"signedData": signedData(priv, issued.Challenge)}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("byte array encoding", func(t *testing.T) {
		w := do(router, http.MethodGet, "/challenge", nil, nil)
		var fresh core.IssuedChallenge
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fresh))

		pubBytes := []byte(priv.Public().(ed25519.PublicKey))
		sigBytes := ed25519.Sign(priv, core.HashChallenge(fresh.Challenge))
		w = do(router, http.MethodPost, "/challenge", gin.H{
			"token":      fresh.Token,
			"signedData": gin.H{"publicKey": toInts(pubBytes), "signature": toInts(sigBytes)},
		}, nil)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func TestChallengeFlow_Session(t *testing.T) {
	backend := store.NewMemoryStore(0)
	defer backend.Close()
	router := SetupRouter(RouterConfig{}, newService(t, challenge.NewSessionStore(backend)), nil, discard())

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/challenge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	var issued core.IssuedChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	assert.Empty(t, issued.Token)

	body := gin.H{"challenge": issued.Challenge, "signedData": signedData(priv, issued.Challenge)}
	req := httptest.NewRequest(http.MethodPost, "/challenge", bytes.NewReader(mustJSON(t, body)))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the session challenge was consumed
	w = do(router, http.MethodPost, "/challenge", body, map[string]string{SessionHeader: cookies[0].Value})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a header session works without cookies
	w = do(router, http.MethodGet, "/challenge", nil, map[string]string{SessionHeader: "header-session"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))

	body = gin.H{"challenge": issued.Challenge, "signedData": signedData(priv, issued.Challenge)}
	w = do(router, http.MethodPost, "/challenge", body, map[string]string{SessionHeader: "header-session"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// bearer routes are not registered without a bearer service
	w = do(router, http.MethodGet, "/auth/token", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestBearerFlow(t *testing.T) {
	router := statelessRouter(t, "X-Requested-With")
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/auth/token", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	token := w.Body.String()
	require.Len(t, strings.Split(token, "."), 3)

	w = do(router, http.MethodGet, "/auth/token/inspect?token="+token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payload core.ChallengePayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, tokenizer.DefaultIssuer, payload.Issuer)

	body := gin.H{"token": token, "signedData": signedData(priv, payload.Challenge)}

	w = do(router, http.MethodPost, "/auth/token", body, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(router, http.MethodPost, "/auth/token", body, map[string]string{"X-Requested-With": "fetch"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result core.AuthResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, hex.EncodeToString(pub), result.PublicKey)
	assert.Equal(t, payload.Challenge, result.Challenge)

	w = do(router, http.MethodPost, "/auth/token", body, map[string]string{"X-Requested-With": "fetch"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBearerFlow_TamperedToken(t *testing.T) {
	router := statelessRouter(t, "")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w := do(router, http.MethodGet, "/auth/token", nil, nil)
	token := w.Body.String()
	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))

	w = do(router, http.MethodPost, "/auth/token", gin.H{
		"token":      strings.Join(parts, "."),
		"signedData": signedData(priv, "0f9a6bb4-54ad-4d6a-9c1f-3d2f1b8c7e11"),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), core.ErrTokenSignature.Error())
}

type failingChallenges struct {
	ports.ChallengeStore
}

func (failingChallenges) Mode() string { return "stateless" }

func (failingChallenges) Issue(context.Context, string, core.IssueOptions) (core.IssuedChallenge, error) {
	return core.IssuedChallenge{}, core.ErrMissingSecret
}

func TestChallenge_ServerError(t *testing.T) {
	router := SetupRouter(RouterConfig{}, newService(t, failingChallenges{}), nil, nil)

	w := do(router, http.MethodGet, "/challenge", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestHealth(t *testing.T) {
	router := statelessRouter(t, "")

	w := do(router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stateless")
}
