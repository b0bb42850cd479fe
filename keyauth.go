// Package keyauth assembles the challenge/response login engine from
// configuration.
package keyauth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/keyauth/adapters/challenge"
	"github.com/layer-3/keyauth/adapters/events"
	"github.com/layer-3/keyauth/adapters/scheme"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/config"
	"github.com/layer-3/keyauth/ports"
	"github.com/layer-3/keyauth/service"
	"github.com/layer-3/keyauth/verifier"
	"github.com/redis/go-redis/v9"
)

// backend is a store usable for both session challenges and the consumed ledger
type backend interface {
	ports.SessionStore
	ports.ConsumedLedger
}

// Engine holds the services built from a configuration
type Engine struct {
	// Challenge serves the configured challenge mode
	Challenge *service.AuthService

	// Bearer serves bearer (JWT) challenge tokens
	Bearer *service.AuthService

	closers []io.Closer
	logger  *slog.Logger
}

// Option configures New
type Option func(*buildOptions)

type buildOptions struct {
	publisher ports.EventPublisher
}

// WithPublisher replaces the event publisher built from configuration
func WithPublisher(publisher ports.EventPublisher) Option {
	return func(o *buildOptions) {
		o.publisher = publisher
	}
}

// New builds the engine. Call Close to release stores and connections.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{logger: logger}
	if err := e.build(cfg, o); err != nil {
		e.Close()
		return nil, err
	}

	logger.Info("keyauth engine ready", "auth", cfg.Auth, "store", cfg.Store.Driver, "events", cfg.Events.Enabled)
	return e, nil
}

func (e *Engine) build(cfg *config.Config, o buildOptions) error {
	hasher, err := scheme.Hasher(cfg.Auth.Hasher, cfg.Auth.MessagePrefix)
	if err != nil {
		return err
	}

	schemes, err := scheme.Resolve(cfg.Auth.Schemes...)
	if err != nil {
		return err
	}

	v, err := verifier.New(hasher, schemes, verifier.Options{RequireUUID: cfg.Auth.RequiresUUID()})
	if err != nil {
		return err
	}

	storage, err := e.openStore(cfg.Store)
	if err != nil {
		return err
	}

	publisher := o.publisher
	if publisher == nil {
		publisher, err = e.openPublisher(cfg.Events)
		if err != nil {
			return err
		}
	}

	secret := []byte(cfg.Auth.Secret)
	codecOpts := []tokenizer.Option{
		tokenizer.WithIssuer(cfg.Auth.AppName),
		tokenizer.WithRequireUUID(cfg.Auth.RequiresUUID()),
	}

	storeOpts := []challenge.Option{
		challenge.WithAppName(cfg.Auth.AppName),
		challenge.WithLogger(e.logger),
	}
	if cfg.Auth.GuardsReplay() {
		storeOpts = append(storeOpts, challenge.WithLedger(storage))
	}

	var challenges ports.ChallengeStore
	switch cfg.Auth.Mode {
	case config.ModeSession:
		challenges = challenge.NewSessionStore(storage, storeOpts...)
	default:
		codec, err := newCodec(cfg.Auth.TokenFormat, secret, codecOpts)
		if err != nil {
			return err
		}
		challenges = challenge.NewStatelessStore(codec, storeOpts...)
	}

	jwtCodec, err := tokenizer.NewJWTCodec(secret, codecOpts...)
	if err != nil {
		return err
	}

	svcCfg := service.Config{
		AppName:      cfg.Auth.AppName,
		ChallengeTTL: cfg.Auth.ChallengeTTL,
	}
	e.Challenge = service.NewAuthService(challenges, v, publisher, e.logger, svcCfg)
	e.Bearer = service.NewAuthService(challenge.NewStatelessStore(jwtCodec, storeOpts...), v, publisher, e.logger, svcCfg)

	return nil
}

func newCodec(format string, secret []byte, opts []tokenizer.Option) (ports.TokenCodec, error) {
	switch format {
	case config.FormatJWT:
		return tokenizer.NewJWTCodec(secret, opts...)
	case config.FormatOpaque, "":
		return tokenizer.NewOpaqueCodec(secret, opts...)
	default:
		return nil, fmt.Errorf("unknown token format %q", format)
	}
}

func (e *Engine) openStore(cfg config.StoreConfig) (backend, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		client, err := e.redisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client), nil
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath, e.logger)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s)
		return s, nil
	case config.DriverMemory, "":
		s := store.NewMemoryStore(store.DefaultCleanupInterval)
		e.closers = append(e.closers, s)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func (e *Engine) openPublisher(cfg config.EventsConfig) (ports.EventPublisher, error) {
	if !cfg.Enabled {
		return events.NopPublisher{}, nil
	}

	client, err := e.redisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		watermill.NewSlogLogger(e.logger.With("component", "events")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	e.closers = append(e.closers, publisher)

	return events.NewWatermillPublisher(publisher, cfg.TopicPrefix), nil
}

func (e *Engine) redisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	e.closers = append(e.closers, client)
	return client, nil
}

// Close releases every resource opened by New, most recent first
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
