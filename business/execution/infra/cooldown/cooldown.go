// Package cooldown implements the failure cool-down window over Redis, with
// an in-process fallback for single-instance deployments.
package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/cache"
)

const keyPrefix = "arb:cooldown:"

var (
	_ app.Cooldowns = (*Redis)(nil)
	_ app.Cooldowns = (*Memory)(nil)
)

// Redis stores cool-down windows as SET-with-TTL keys so every bot instance
// observes the same windows.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis-backed cool-down tracker.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, "1", ttl).Err(); err != nil {
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to set cooldown for %s", key)))
	}
	return nil
}

func (r *Redis) Active(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to check cooldown for %s", key)))
	}
	return n > 0, nil
}

// Memory tracks cool-down windows in-process.
type Memory struct {
	entries *cache.Cache[string, struct{}]
}

// NewMemory creates an in-process cool-down tracker.
func NewMemory() *Memory {
	return &Memory{entries: cache.New[string, struct{}](time.Minute)}
}

func (m *Memory) Set(ctx context.Context, key string, ttl time.Duration) error {
	m.entries.Set(ctx, key, struct{}{}, ttl)
	return nil
}

func (m *Memory) Active(ctx context.Context, key string) (bool, error) {
	_, ok := m.entries.Get(ctx, key)
	return ok, nil
}

// Close stops the in-process sweeper.
func (m *Memory) Close() {
	m.entries.Close()
}
