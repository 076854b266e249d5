package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/passpanel/internal/config"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SessionStore = (*RedisStore)(nil)
	_ driven.Pinger       = (*RedisStore)(nil)
)

const redisKeyPrefix = "passpanel:session:"

// RedisStore keeps sessions in Redis with native key expiry, so sessions
// survive restarts and are shared by every replica pointing at the same server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient creates a client from cfg and pings it with a short timeout.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisStore creates a RedisStore using client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create stores token with a ttl expiry.
func (s *RedisStore) Create(ctx context.Context, token string, ttl time.Duration) error {
	_, err := retryRedisOperation(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.Set(ctx, redisKey(token), 1, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Touch resets the expiry of a live session. Redis reports false from EXPIRE
// when the key is missing or already expired.
func (s *RedisStore) Touch(ctx context.Context, token string, ttl time.Duration) error {
	ok, err := retryRedisOperation(ctx, func() (bool, error) {
		return s.client.Expire(ctx, redisKey(token), ttl).Result()
	})
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if !ok {
		return driven.ErrSessionNotFound
	}
	return nil
}

// Delete removes the session key.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	_, err := retryRedisOperation(ctx, func() (int64, error) {
		return s.client.Del(ctx, redisKey(token)).Result()
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}

// retryRedisOperation executes a Redis operation with retry logic and exponential backoff
// so a Redis restart or dropped connection does not log every user out.
func retryRedisOperation[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	const maxRetries = 3
	const initialBackoff = 100 * time.Millisecond

	var lastErr error
	var zero T

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// 100ms, 200ms
			backoff := initialBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := operation()
		if err != nil {
			lastErr = err
			continue
		}

		return result, nil
	}

	return zero, fmt.Errorf("redis operation failed after %d retries: %w", maxRetries, lastErr)
}
