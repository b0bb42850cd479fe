package challenge

import (
	"log/slog"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// SessionGrace keeps a stored session challenge around after its expiry so a
// late submission reports ErrExpired instead of ErrReplay
const SessionGrace = time.Minute

type options struct {
	clock   core.Clock
	appName string
	ledger  ports.ConsumedLedger
	logger  *slog.Logger
}

// Option configures a challenge store
type Option func(*options)

// WithClock sets the clock used for issuance and expiry checks
func WithClock(clock core.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithAppName sets the issuer written into stateless challenge tokens
func WithAppName(appName string) Option {
	return func(o *options) {
		o.appName = appName
	}
}

// WithLedger makes stateless challenges single use by recording every
// consumed challenge until it expires
func WithLedger(ledger ports.ConsumedLedger) Option {
	return func(o *options) {
		o.ledger = ledger
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", "challenge")
	return o
}

// retention returns how long a store should keep a record expiring at
// expiresAt, never less than a second
func retention(now, expiresAt time.Time, grace time.Duration) time.Duration {
	ttl := expiresAt.Sub(now) + grace
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
