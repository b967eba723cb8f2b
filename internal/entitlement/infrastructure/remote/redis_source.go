// Package remote adapts the billing backend's entitlement mirror. The wire
// protocol is opaque to the sync coordinator: push and pull either succeed
// or fail as a whole.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/redis/go-redis/v9"
)

// stateKeyPrefix namespaces entitlement records in the shared keyspace.
const stateKeyPrefix = "subscription_state:"

// RedisSource implements domain.RemoteSource on a Redis-backed entitlement
// mirror keyed by user identifier, not by device. Push is an unconditional
// SET: the last writer to successfully sync wins.
type RedisSource struct {
	client *redis.Client
}

// NewRedisSource creates a remote source over an existing client.
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{client: client}
}

// Push publishes the state under the user's key.
func (s *RedisSource) Push(ctx context.Context, state *domain.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(state.UserID), payload, 0).Err(); err != nil {
		return fmt.Errorf("remote push failed: %w", err)
	}
	return nil
}

// Pull retrieves the most recently synced state for a user. Returns
// domain.ErrNotFound when no device has synced yet.
func (s *RedisSource) Pull(ctx context.Context, userID string) (*domain.State, error) {
	payload, err := s.client.Get(ctx, stateKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("remote pull failed: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("remote record malformed: %w", err)
	}
	return &state, nil
}

func stateKey(userID string) string {
	return stateKeyPrefix + userID
}

var _ domain.RemoteSource = (*RedisSource)(nil)
