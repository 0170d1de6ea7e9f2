package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hrms.org/internal/auth"
)

// Options configures the Redis connection.
type Options struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	MaxRetries    int
	RetryInterval time.Duration
}

// RedisStore keeps session records as plain string keys with a TTL.
type RedisStore struct {
	client *redis.Client
}

var _ auth.SessionStore = (*RedisStore)(nil)

// Connect dials Redis and pings it, retrying up to MaxRetries times.
func Connect(ctx context.Context, opts Options) (*RedisStore, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:         opts.Addr,
			Password:     opts.Password,
			DB:           opts.DB,
			PoolSize:     opts.PoolSize,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  4 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			lastErr = fmt.Errorf("ping redis: %w", err)
			_ = client.Close()
			if attempt < opts.MaxRetries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(opts.RetryInterval):
				}
			}
			continue
		}
		return &RedisStore{client: client}, nil
	}
	return nil, fmt.Errorf("connect redis after %d retries: %w", opts.MaxRetries, lastErr)
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) MarkValid(ctx context.Context, ns auth.Namespace, token string, ttl time.Duration) error {
	return s.set(ctx, ns.Key(token), auth.SessionValueValid, ttl)
}

func (s *RedisStore) Revoke(ctx context.Context, ns auth.Namespace, token string, ttl time.Duration) error {
	return s.set(ctx, ns.Key(token), auth.SessionValueInvalid, ttl)
}

func (s *RedisStore) set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session: non-positive ttl %s", ttl)
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) State(ctx context.Context, ns auth.Namespace, token string) (auth.SessionState, error) {
	v, err := s.client.Get(ctx, ns.Key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return auth.SessionAbsent, nil
	}
	if err != nil {
		return auth.SessionAbsent, err
	}
	return auth.ParseSessionValue(v), nil
}

// Track adds token to owner's set. The set expires with the newest token.
func (s *RedisStore) Track(ctx context.Context, owner, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session: non-positive ttl %s", ttl)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, owner, token)
		pipe.Expire(ctx, owner, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Tracked(ctx context.Context, owner string) ([]string, error) {
	return s.client.SMembers(ctx, owner).Result()
}

// Ping reports whether Redis is reachable; used by readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
