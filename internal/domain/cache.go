package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market snapshot lookups for the read API.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id uint64) (Market, error)
	Invalidate(ctx context.Context, id uint64) error
}

// RateLimiter applies sliding-window request limits keyed by caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Channels carrying ledger events to live consumers (the websocket hub and
// any external relay/UI process attached to the bus directly).
const (
	ChannelMarkets     = "ch:market"
	ChannelBets        = "ch:bet"
	ChannelSettlements = "ch:settlement"
	ChannelPayouts     = "ch:payout"

	// StreamEvents is the durable, trimmed copy of every envelope, for
	// consumers that need catch-up after a disconnect.
	StreamEvents = "stream:events"
)

// EventBus fans ledger events out to live consumers. Publish targets an
// ephemeral pub/sub channel; StreamAppend additionally records the payload
// on a durable, trimmed stream for catch-up reads.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
