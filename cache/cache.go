// Package cache stores small JSON values with a time to live.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Cache is implemented by Memory and Redis. A miss is (false, nil).
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Close() error
}

// Memory is a process-local cache. Every entry lives for the window given
// to NewMemory; the per-call ttl is ignored.
type Memory struct {
	cache *bigcache.BigCache
}

func NewMemory(_ context.Context, window time.Duration) (*Memory, error) {
	if window <= 0 {
		window = 10 * time.Minute
	}
	cfg := bigcache.DefaultConfig(window)
	cfg.CleanWindow = window
	cfg.Verbose = false
	c, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: c}, nil
}

func (m *Memory) GetJSON(_ context.Context, key string, out any) (bool, error) {
	b, err := m.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.cache.Set(key, b)
}

func (m *Memory) Close() error {
	return m.cache.Close()
}
