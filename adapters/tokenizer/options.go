package tokenizer

import "github.com/layer-3/keyauth/core"

type options struct {
	clock       core.Clock
	requireUUID bool
	issuer      string
}

// Option configures a token codec
type Option func(*options)

// WithClock sets the clock used for expiry checks
func WithClock(clock core.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRequireUUID controls whether the challenge must look like a UUID.
// Enabled by default.
func WithRequireUUID(require bool) Option {
	return func(o *options) {
		o.requireUUID = require
	}
}

// WithIssuer sets the issuer used when a payload carries none
func WithIssuer(issuer string) Option {
	return func(o *options) {
		o.issuer = issuer
	}
}

func newOptions(opts []Option) options {
	o := options{requireUUID: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
