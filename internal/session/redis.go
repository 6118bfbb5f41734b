package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "session:"

var _ Registry = (*Redis)(nil)

// Redis is a registry backed by a shared Redis instance, the deployment
// shape for multi-process installs where every API replica must observe
// the same revocations. Expiry uses native key TTLs.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the given redis URL and verifies the connection.
// ttl <= 0 stores sessions without expiry.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Activate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	var ttl time.Duration
	if r.ttl > 0 {
		ttl = r.ttl
	}
	return r.client.Set(ctx, redisKeyPrefix+sessionID, "1", ttl).Err()
}

func (r *Redis) Deactivate(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, redisKeyPrefix+sessionID).Err()
}

func (r *Redis) IsActive(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
