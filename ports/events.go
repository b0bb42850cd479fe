package ports

import (
	"context"

	"github.com/layer-3/keyauth/core"
)

// RejectedAttempt describes a failed login attempt
type RejectedAttempt struct {
	State     core.AttemptState `json:"state"`
	Kind      string            `json:"kind"`
	Reason    string            `json:"reason"`
	Mode      string            `json:"mode"`
	PublicKey string            `json:"public_key,omitempty"`
}

// EventPublisher publishes authentication outcomes to other services
type EventPublisher interface {
	PublishVerified(ctx context.Context, result core.AuthResult) error
	PublishRejected(ctx context.Context, attempt RejectedAttempt) error
}
