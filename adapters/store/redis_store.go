package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the session store and ledger.
// Every instance of a cluster sharing the same Redis sees the same state.
type RedisStore struct {
	client         *redis.Client
	sessionPrefix  string
	consumedPrefix string
}

var (
	_ ports.SessionStore   = (*RedisStore)(nil)
	_ ports.ConsumedLedger = (*RedisStore)(nil)
)

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:         client,
		sessionPrefix:  "keyauth:session:",
		consumedPrefix: "keyauth:consumed:",
	}
}

// PutChallenge stores the session challenge with an expiration
func (s *RedisStore) PutChallenge(ctx context.Context, sessionID string, challenge core.Challenge, ttl time.Duration) error {
	key := s.sessionPrefix + sessionID

	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	if err := s.client.Set(ctx, key, data, minTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	return nil
}

// TakeChallenge atomically reads and deletes the session challenge
func (s *RedisStore) TakeChallenge(ctx context.Context, sessionID string) (core.Challenge, error) {
	key := s.sessionPrefix + sessionID

	data, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Challenge{}, ports.ErrNotFound
		}
		return core.Challenge{}, fmt.Errorf("failed to take challenge: %w", err)
	}

	var challenge core.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return core.Challenge{}, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	return challenge, nil
}

// MarkConsumed records the challenge id with SET NX
func (s *RedisStore) MarkConsumed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	key := s.consumedPrefix + id

	ok, err := s.client.SetNX(ctx, key, "1", minTTL(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark challenge consumed: %w", err)
	}

	return ok, nil
}

// minTTL keeps expirations positive so Redis never stores a key forever
func minTTL(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
