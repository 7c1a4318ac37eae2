package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists attempt buckets in Redis so the attempt count holds
// across processes. Buckets are stored as JSON arrays of unix-millisecond
// timestamps under the raw key, with the window as expiry.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var millis []int64
	if err := json.Unmarshal([]byte(raw), &millis); err != nil {
		return nil, fmt.Errorf("decode bucket %q: %w", key, err)
	}
	stamps := make([]time.Time, 0, len(millis))
	for _, ms := range millis {
		stamps = append(stamps, time.UnixMilli(ms))
	}
	return stamps, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, stamps []time.Time, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	millis := make([]int64, 0, len(stamps))
	for _, ts := range stamps {
		millis = append(millis, ts.UnixMilli())
	}
	data, err := json.Marshal(millis)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Health checks the Redis connection.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
