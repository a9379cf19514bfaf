package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultTTL = 10 * time.Minute

// Redis is a shared cache. When the server cannot be reached at startup it
// degrades to a cache that always misses.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger

	warnedUnavailable atomic.Bool
}

func NewRedis(ctx context.Context, url string, log zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, bypassing cache")
		_ = client.Close()
		return &Redis{log: log}, nil
	}
	return &Redis{client: client, log: log}, nil
}

func (r *Redis) unavailable() bool {
	return r == nil || r.client == nil
}

func (r *Redis) warnOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.log.Warn().Err(err).Msg("Redis unavailable, bypassing cache")
	}
}

func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if r.unavailable() {
		return false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.warnOnce(err)
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r.unavailable() {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		r.warnOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Close() error {
	if r.unavailable() {
		return nil
	}
	return r.client.Close()
}
