// Package redisstore keeps the session keys in Redis so several processes
// (or a restarted one) share one signed in session.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/go-console-session/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ sessions.Storage = (*RedisStorage)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Prepended to every key, e.g. "console:session:"
	Timeout  time.Duration // Per operation timeout, default 2s
}

type RedisStorage struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// New connects to Redis. An unreachable server is logged, not fatal, matching
// how the rest of the client treats storage errors as "absent".
func New(cfg Config, logger zerolog.Logger) *RedisStorage {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r := NewFromClient(client, cfg.Prefix, cfg.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("unable to reach redis")
	} else {
		logger.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	}
	return r
}

// NewFromClient wraps an existing client
func NewFromClient(client *redis.Client, prefix string, timeout time.Duration) *RedisStorage {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisStorage{client: client, prefix: prefix, timeout: timeout}
}

func (r *RedisStorage) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisStorage) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the client
func (r *RedisStorage) Close() {
	if r != nil && r.client != nil {
		if err := r.client.Close(); err != nil {
			log.Err(err).Msg("closing redis client")
		}
	}
}
