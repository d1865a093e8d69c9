package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
)

const redisKeyPrefix = "helpdesk:session:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBackend stores sessions as JSON values whose key TTL equals the session
// TTL, so expiry is enforced by Redis and Sweep has nothing to do.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient dials Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Load fetches and decodes a session.
func (b *RedisBackend) Load(ctx context.Context, id string) (*conversation.Session, bool, error) {
	raw, err := b.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", ErrBackend, err)
	}

	var s conversation.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		// a corrupt value is dropped and the conversation starts over
		_ = b.client.Del(ctx, redisKey(id)).Err()
		return nil, false, nil
	}
	if s.PendingFields == nil {
		s.PendingFields = make(map[string]string)
	}
	return &s, true, nil
}

// Save encodes the session and refreshes the key TTL.
func (b *RedisBackend) Save(ctx context.Context, s *conversation.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrBackend, err)
	}
	if err := b.client.Set(ctx, redisKey(s.ID), raw, b.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrBackend, err)
	}
	return nil
}

// Delete removes the key.
func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", ErrBackend, err)
	}
	return nil
}

// Sweep is a no-op: keys expire on their own.
func (b *RedisBackend) Sweep(context.Context, time.Time) ([]string, int, error) {
	return nil, -1, nil
}
