// Package config loads the server configuration from YAML or TOML files.
// Environment variables in the form ${VAR_NAME} are expanded before parsing.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/layer-3/keyauth/core"
	"gopkg.in/yaml.v3"
)

const (
	ModeStateless = "stateless"
	ModeSession   = "session"

	FormatOpaque = "opaque"
	FormatJWT    = "jwt"

	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config represents the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Events  EventsConfig  `yaml:"events" toml:"events"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// AuthConfig holds the challenge/response settings
type AuthConfig struct {
	Secret        string   `yaml:"secret" toml:"secret"`
	AppName       string   `yaml:"app_name" toml:"app_name"`
	Mode          string   `yaml:"mode" toml:"mode"`
	TokenFormat   string   `yaml:"token_format" toml:"token_format"`
	RequireUUID   *bool    `yaml:"require_uuid" toml:"require_uuid"`
	ReplayGuard   *bool    `yaml:"replay_guard" toml:"replay_guard"`
	MessagePrefix string   `yaml:"message_prefix" toml:"message_prefix"`
	Hasher        string   `yaml:"hasher" toml:"hasher"`
	Schemes       []string `yaml:"schemes" toml:"schemes"`

	ChallengeTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	ChallengeTTLRaw string `yaml:"challenge_ttl" toml:"challenge_ttl"`
}

// StoreConfig selects the backend for session challenges and the consumed ledger
type StoreConfig struct {
	Driver     string `yaml:"driver" toml:"driver"`
	RedisURL   string `yaml:"redis_url" toml:"redis_url"`
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
}

// EventsConfig holds the event stream configuration
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	RedisURL    string `yaml:"redis_url" toml:"redis_url"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	// CSRFHeader, when set, must be present on bearer token logins
	CSRFHeader string `yaml:"csrf_header" toml:"csrf_header"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file. Files ending in .toml are parsed as TOML,
// everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}

	return Parse(data, format)
}

// Parse decodes, defaults and validates a configuration document
func Parse(data []byte, format string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	if cfg.Auth.ChallengeTTLRaw == "" {
		return nil
	}

	ttl, err := time.ParseDuration(cfg.Auth.ChallengeTTLRaw)
	if err != nil {
		return fmt.Errorf("parsing challenge_ttl %q: %w", cfg.Auth.ChallengeTTLRaw, err)
	}
	cfg.Auth.ChallengeTTL = ttl
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":9000"
	}
	if c.Auth.AppName == "" {
		c.Auth.AppName = "Nimiq Auth"
	}
	if c.Auth.ChallengeTTL == 0 {
		c.Auth.ChallengeTTL = core.DefaultChallengeTTL
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = ModeStateless
	}
	if c.Auth.TokenFormat == "" {
		c.Auth.TokenFormat = FormatOpaque
	}
	if c.Auth.RequireUUID == nil {
		c.Auth.RequireUUID = boolPtr(true)
	}
	if c.Auth.ReplayGuard == nil {
		c.Auth.ReplayGuard = boolPtr(true)
	}
	if c.Auth.Hasher == "" {
		c.Auth.Hasher = "sha256"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Events.TopicPrefix == "" {
		c.Events.TopicPrefix = "keyauth"
	}
	if c.Events.RedisURL == "" {
		c.Events.RedisURL = c.Store.RedisURL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required: %w", core.ErrMissingSecret)
	}

	if c.Auth.ChallengeTTL <= 0 {
		return fmt.Errorf("auth.challenge_ttl must be positive")
	}

	switch c.Auth.Mode {
	case ModeStateless, ModeSession:
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", ModeStateless, ModeSession, c.Auth.Mode)
	}

	switch c.Auth.TokenFormat {
	case FormatOpaque, FormatJWT:
	default:
		return fmt.Errorf("auth.token_format must be %q or %q, got %q", FormatOpaque, FormatJWT, c.Auth.TokenFormat)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis driver")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory, redis or sqlite, got %q", c.Store.Driver)
	}

	if c.Events.Enabled && c.Events.RedisURL == "" {
		return fmt.Errorf("events.redis_url is required when events are enabled")
	}

	return nil
}

// RequiresUUID reports whether challenges must be UUIDv4
func (c AuthConfig) RequiresUUID() bool {
	return c.RequireUUID == nil || *c.RequireUUID
}

// GuardsReplay reports whether stateless challenges are recorded once consumed
func (c AuthConfig) GuardsReplay() bool {
	return c.ReplayGuard == nil || *c.ReplayGuard
}

// LogValue implements slog.LogValuer. The secret is never included.
func (c AuthConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("app_name", c.AppName),
		slog.String("mode", c.Mode),
		slog.String("token_format", c.TokenFormat),
		slog.Duration("challenge_ttl", c.ChallengeTTL),
		slog.Bool("require_uuid", c.RequiresUUID()),
		slog.Bool("replay_guard", c.GuardsReplay()),
		slog.String("hasher", c.Hasher),
		slog.Any("schemes", c.Schemes),
		slog.Bool("secret_set", c.Secret != ""),
	)
}

// String renders the auth settings without the secret
func (c AuthConfig) String() string {
	return c.LogValue().String()
}

func boolPtr(b bool) *bool {
	return &b
}
