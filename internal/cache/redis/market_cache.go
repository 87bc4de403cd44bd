package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// MarketCache implements domain.MarketCache with JSON-encoded market
// snapshots under a TTL. It serves the read API; the ledger never consults
// it.
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache with the given TTL.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(id uint64) string {
	return fmt.Sprintf("market:%d", id)
}

// Set stores a market snapshot.
func (mc *MarketCache) Set(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %d: %w", m.ID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(m.ID), data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %d: %w", m.ID, err)
	}
	return nil
}

// Get returns a cached market snapshot, or domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id uint64) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, fmt.Errorf("redis: market %d: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("redis: get market %d: %w", id, err)
	}

	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %d: %w", id, err)
	}
	return m, nil
}

// Invalidate removes a market snapshot so the next read repopulates it.
func (mc *MarketCache) Invalidate(ctx context.Context, id uint64) error {
	if err := mc.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %d: %w", id, err)
	}
	return nil
}
