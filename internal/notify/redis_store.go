package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pwhittaker/playpulse/pkg/models"
)

const redisKeyPrefix = "playpulse:failures:"

// RedisStateStore keeps failure state in Redis, one JSON value per source.
// Useful when several tracker instances share failure visibility or when
// the working directory is not writable.
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store and verifies the
// connection.
func NewRedisStateStore(ctx context.Context, addr, password string, db int) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStateStore{client: client}, nil
}

// Get returns the stored state for a source.
func (s *RedisStateStore) Get(ctx context.Context, key string) (models.FailureState, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return models.FailureState{}, false, nil
	}
	if err != nil {
		return models.FailureState{}, false, fmt.Errorf("failed to read failure state: %w", err)
	}

	var state models.FailureState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt value; start over rather than wedge the source.
		return models.FailureState{}, false, nil
	}
	return state, true, nil
}

// Put stores the state for a source.
func (s *RedisStateStore) Put(ctx context.Context, key string, state models.FailureState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode failure state: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write failure state: %w", err)
	}
	return nil
}

// Delete removes the state for a source.
func (s *RedisStateStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete failure state: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
