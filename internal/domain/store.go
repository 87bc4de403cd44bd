package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market read models. The in-memory ledger remains the
// synchronous authority; stores are populated write-behind by the projector.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id uint64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	ListTerminalBefore(ctx context.Context, before time.Time) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// BetStore persists bet read models.
type BetStore interface {
	Upsert(ctx context.Context, bet Bet) error
	Get(ctx context.Context, marketID uint64, bettor string) (Bet, error)
	ListByMarket(ctx context.Context, marketID uint64) ([]Bet, error)
}

// SubscriptionStore persists the relay watch-list.
type SubscriptionStore interface {
	Insert(ctx context.Context, marketID uint64, key EventKey) error
	List(ctx context.Context) ([]Subscription, error)
}

// JournalStore persists the append-only ledger event journal.
type JournalStore interface {
	Append(ctx context.Context, env Envelope) error
	ListByMarket(ctx context.Context, marketID uint64, opts ListOpts) ([]Envelope, error)
	ListBefore(ctx context.Context, before time.Time) ([]Envelope, error)
}
