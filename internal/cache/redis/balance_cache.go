package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/attnroulette/betledger/internal/domain"
)

// defaultBalanceTTL bounds how stale a cached balance read may get before
// the next refresh goes back to the RPC node.
const defaultBalanceTTL = 30 * time.Second

// BalanceCache implements domain.BalanceCache with one string key per wallet
// address holding the last confirmed balance read.
//
// Key schema:
//
//	balance:{address} - decimal string in native units
type BalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBalanceCache creates a BalanceCache backed by the given Client. A zero
// ttl uses the default.
func NewBalanceCache(c *Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = defaultBalanceTTL
	}
	return &BalanceCache{rdb: c.Underlying(), ttl: ttl}
}

func balanceKey(address string) string { return "balance:" + address }

// Set stores a confirmed balance read.
func (bc *BalanceCache) Set(ctx context.Context, address, balance string) error {
	if err := bc.rdb.Set(ctx, balanceKey(address), balance, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set balance %s: %w", address, err)
	}
	return nil
}

// Get retrieves a cached balance. It returns domain.ErrNotFound when the key
// does not exist or has expired.
func (bc *BalanceCache) Get(ctx context.Context, address string) (string, error) {
	val, err := bc.rdb.Get(ctx, balanceKey(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get balance %s: %w", address, err)
	}
	return val, nil
}

// Invalidate drops the cached balance, forcing the next read to hit the
// chain.
func (bc *BalanceCache) Invalidate(ctx context.Context, address string) error {
	if err := bc.rdb.Del(ctx, balanceKey(address)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate balance %s: %w", address, err)
	}
	return nil
}
