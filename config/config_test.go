package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
server:
  http_addr: ":8080"
auth:
  secret: ${KEYAUTH_TEST_SECRET}
  app_name: "Login with Nimiq"
  challenge_ttl: 2m
  mode: session
  token_format: jwt
  require_uuid: false
  schemes: [ed25519, secp256k1]
store:
  driver: redis
  redis_url: redis://localhost:6379/0
events:
  enabled: true
http:
  csrf_header: X-Requested-With
logging:
  level: debug
  format: json
`

const tomlConfig = `
[server]
http_addr = ":8080"

[auth]
secret = "${KEYAUTH_TEST_SECRET}"
app_name = "Login with Nimiq"
challenge_ttl = "2m"
mode = "session"
token_format = "jwt"
require_uuid = false
schemes = ["ed25519", "secp256k1"]

[store]
driver = "redis"
redis_url = "redis://localhost:6379/0"

[events]
enabled = true

[http]
csrf_header = "X-Requested-With"

[logging]
level = "debug"
format = "json"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_YAMLAndTOMLParity(t *testing.T) {
	t.Setenv("KEYAUTH_TEST_SECRET", "s3cret")

	fromYAML, err := Load(writeFile(t, "keyauth.yaml", yamlConfig))
	require.NoError(t, err)
	fromTOML, err := Load(writeFile(t, "keyauth.toml", tomlConfig))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromTOML)

	cfg := fromYAML
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Minute, cfg.Auth.ChallengeTTL)
	assert.Equal(t, ModeSession, cfg.Auth.Mode)
	assert.Equal(t, FormatJWT, cfg.Auth.TokenFormat)
	assert.False(t, cfg.Auth.RequiresUUID())
	assert.True(t, cfg.Auth.GuardsReplay())
	assert.Equal(t, []string{"ed25519", "secp256k1"}, cfg.Auth.Schemes)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Events.RedisURL)
	assert.Equal(t, "X-Requested-With", cfg.HTTP.CSRFHeader)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("auth:\n  secret: abc\n"), "yaml")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, core.DefaultChallengeTTL, cfg.Auth.ChallengeTTL)
	assert.Equal(t, ModeStateless, cfg.Auth.Mode)
	assert.Equal(t, FormatOpaque, cfg.Auth.TokenFormat)
	assert.True(t, cfg.Auth.RequiresUUID())
	assert.True(t, cfg.Auth.GuardsReplay())
	assert.Equal(t, "sha256", cfg.Auth.Hasher)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "keyauth", cfg.Events.TopicPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParse_MissingSecret(t *testing.T) {
	t.Setenv("KEYAUTH_TEST_SECRET", "")

	_, err := Parse([]byte("auth:\n  secret: ${KEYAUTH_TEST_SECRET}\n"), "yaml")
	assert.ErrorIs(t, err, core.ErrMissingSecret)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad duration":        "auth: {secret: x, challenge_ttl: soon}",
		"negative ttl":        "auth: {secret: x, challenge_ttl: -1s}",
		"unknown mode":        "auth: {secret: x, mode: cookie}",
		"unknown format":      "auth: {secret: x, token_format: paseto}",
		"unknown driver":      "auth: {secret: x}\nstore: {driver: etcd}",
		"redis without url":   "auth: {secret: x}\nstore: {driver: redis}",
		"sqlite without path": "auth: {secret: x}\nstore: {driver: sqlite}",
		"events without url":  "auth: {secret: x}\nevents: {enabled: true}",
		"not yaml":            "auth: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "yaml")
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("auth: {secret: x}"), "ini")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAuthConfig_SecretNeverRendered(t *testing.T) {
	cfg, err := Parse([]byte("auth:\n  secret: do-not-print\n"), "yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("config", "auth", cfg.Auth)

	assert.NotContains(t, buf.String(), "do-not-print")
	assert.Contains(t, buf.String(), "secret_set=true")
	assert.NotContains(t, fmt.Sprintf("%v", cfg.Auth), "do-not-print")
	assert.NotContains(t, fmt.Sprintf("%+v", *cfg), "do-not-print")
}
