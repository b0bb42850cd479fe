package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// DefaultTopicPrefix is prepended to every topic
const DefaultTopicPrefix = "keyauth"

// VerifiedEvent is published after a successful login
type VerifiedEvent struct {
	State      core.AttemptState `json:"state"`
	Address    string            `json:"address"`
	PublicKey  string            `json:"public_key"`
	Scheme     string            `json:"scheme"`
	Challenge  string            `json:"challenge"`
	AppName    string            `json:"app_name,omitempty"`
	VerifiedAt int64             `json:"verified_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher     message.Publisher
	verifiedTopic string
	rejectedTopic string
}

// NewWatermillPublisher creates a new Watermill publisher. An empty prefix
// uses DefaultTopicPrefix.
func NewWatermillPublisher(publisher message.Publisher, topicPrefix string) *WatermillPublisher {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &WatermillPublisher{
		publisher:     publisher,
		verifiedTopic: topicPrefix + ".auth.verified",
		rejectedTopic: topicPrefix + ".auth.rejected",
	}
}

// Topics returns the verified and rejected topic names
func (p *WatermillPublisher) Topics() (verified, rejected string) {
	return p.verifiedTopic, p.rejectedTopic
}

// PublishVerified publishes a verified login
func (p *WatermillPublisher) PublishVerified(ctx context.Context, result core.AuthResult) error {
	return p.publish(ctx, p.verifiedTopic, VerifiedEvent{
		State:      core.StateVerified,
		Address:    result.Address,
		PublicKey:  result.PublicKey,
		Scheme:     result.Scheme,
		Challenge:  result.Challenge,
		AppName:    result.AppName,
		VerifiedAt: result.VerifiedAt.Unix(),
	})
}

// PublishRejected publishes a failed login attempt
func (p *WatermillPublisher) PublishRejected(ctx context.Context, attempt ports.RejectedAttempt) error {
	return p.publish(ctx, p.rejectedTopic, attempt)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishVerified(context.Context, core.AuthResult) error { return nil }

func (NopPublisher) PublishRejected(context.Context, ports.RejectedAttempt) error { return nil }

var (
	_ ports.EventPublisher = (*WatermillPublisher)(nil)
	_ ports.EventPublisher = NopPublisher{}
)
