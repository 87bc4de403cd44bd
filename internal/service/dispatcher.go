// Package service glues the ledger to its surroundings: event fan-out,
// write-behind projection into the durable stores, and cache-fronted reads
// for the API.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulsemarket/pulsed/internal/domain"
	"github.com/pulsemarket/pulsed/internal/ledger"
)

// Dispatcher consumes the ledger's event feed and fans each envelope out to
// the journal, the postgres read models, the redis bus, and the cache. The
// ledger commits synchronously and in memory; everything here is
// write-behind and must tolerate replays (all downstream writes are
// idempotent on envelope id or primary key).
type Dispatcher struct {
	ledger  *ledger.Ledger
	journal domain.JournalStore
	markets domain.MarketStore
	bets    domain.BetStore
	subs    domain.SubscriptionStore
	bus     domain.EventBus
	cache   domain.MarketCache
	logger  *slog.Logger

	ch chan domain.Envelope
}

// DispatcherStores bundles the optional durable stores. Any nil store is
// skipped, which lets serve mode run without postgres.
type DispatcherStores struct {
	Journal domain.JournalStore
	Markets domain.MarketStore
	Bets    domain.BetStore
	Subs    domain.SubscriptionStore
}

// NewDispatcher creates a Dispatcher. Bus and cache may be nil as well; the
// dispatcher then only journals and projects.
func NewDispatcher(led *ledger.Ledger, stores DispatcherStores, bus domain.EventBus, cache domain.MarketCache, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		ledger:  led,
		journal: stores.Journal,
		markets: stores.Markets,
		bets:    stores.Bets,
		subs:    stores.Subs,
		bus:     bus,
		cache:   cache,
		logger:  logger.With(slog.String("component", "dispatcher")),
		ch:      make(chan domain.Envelope, 1024),
	}
}

// Emit implements domain.EventSink. It blocks when the buffer is full
// rather than dropping: the journal is the audit trail and must see every
// envelope. The ledger calls Emit after releasing its lock, so backpressure
// slows the emitting request without stalling other operations.
func (d *Dispatcher) Emit(env domain.Envelope) {
	d.ch <- env
}

// Run consumes the feed until the context is cancelled. Remaining buffered
// envelopes are flushed before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case env := <-d.ch:
			d.process(ctx, env)
		case <-ctx.Done():
			for {
				select {
				case env := <-d.ch:
					d.process(context.Background(), env)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, env domain.Envelope) {
	if d.journal != nil {
		if err := d.journal.Append(ctx, env); err != nil {
			d.logger.ErrorContext(ctx, "journal append failed",
				slog.String("event_id", env.ID),
				slog.String("type", string(env.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	d.project(ctx, env)
	d.publish(ctx, env)
}

// project refreshes the read models touched by the event. State is re-read
// from the ledger rather than reconstructed from the payload so projections
// can never drift from the authority.
func (d *Dispatcher) project(ctx context.Context, env domain.Envelope) {
	if d.markets != nil {
		m, err := d.ledger.GetMarket(env.MarketID)
		if err != nil {
			d.logger.ErrorContext(ctx, "project: market lookup failed",
				slog.Uint64("market_id", env.MarketID),
				slog.String("error", err.Error()),
			)
			return
		}
		if err := d.markets.Upsert(ctx, m); err != nil {
			d.logger.ErrorContext(ctx, "project: market upsert failed",
				slog.Uint64("market_id", env.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if d.bets != nil {
		if bettor, ok := bettorOf(env.Payload); ok {
			b, err := d.ledger.GetBet(env.MarketID, bettor)
			if err == nil && b.Exists() {
				if err := d.bets.Upsert(ctx, b); err != nil {
					d.logger.ErrorContext(ctx, "project: bet upsert failed",
						slog.Uint64("market_id", env.MarketID),
						slog.String("bettor", bettor.Hex()),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}

	if d.subs != nil {
		if p, ok := env.Payload.(domain.MarketSubscribedEvent); ok {
			key := domain.EventKey{Contract: p.WatchedContract, Topic: p.EventTopic}
			if err := d.subs.Insert(ctx, p.MarketID, key); err != nil {
				d.logger.ErrorContext(ctx, "project: subscription insert failed",
					slog.Uint64("market_id", p.MarketID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if d.cache != nil {
		if err := d.cache.Invalidate(ctx, env.MarketID); err != nil {
			d.logger.WarnContext(ctx, "project: cache invalidate failed",
				slog.Uint64("market_id", env.MarketID),
				slog.String("error", err.Error()),
			)
			// Non-fatal: the cache entry expires on its own.
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, env domain.Envelope) {
	if d.bus == nil {
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		d.logger.ErrorContext(ctx, "publish: marshal envelope failed",
			slog.String("event_id", env.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := d.bus.Publish(ctx, channelFor(env.Type), data); err != nil {
		d.logger.WarnContext(ctx, "publish: bus publish failed",
			slog.String("event_id", env.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := d.bus.StreamAppend(ctx, domain.StreamEvents, data); err != nil {
		d.logger.WarnContext(ctx, "publish: stream append failed",
			slog.String("event_id", env.ID),
			slog.String("error", err.Error()),
		)
	}
}

// channelFor routes an event type to its pub/sub channel.
func channelFor(t domain.EventType) string {
	switch t {
	case domain.EventMarketCreated, domain.EventMarketSubscribed:
		return domain.ChannelMarkets
	case domain.EventBetPlaced:
		return domain.ChannelBets
	case domain.EventMarketResolved, domain.EventMarketSettled, domain.EventMarketCancelled:
		return domain.ChannelSettlements
	case domain.EventWinningsClaimed, domain.EventRefundClaimed, domain.EventCreatorFeeWithdrawn:
		return domain.ChannelPayouts
	default:
		return domain.ChannelMarkets
	}
}

// bettorOf extracts the address whose bet row an event touches.
func bettorOf(payload any) (common.Address, bool) {
	switch p := payload.(type) {
	case domain.MarketCreatedEvent:
		// The creation bond is the creator's implicit Yes bet.
		return p.Creator, true
	case domain.BetPlacedEvent:
		return p.Bettor, true
	case domain.WinningsClaimedEvent:
		return p.Claimant, true
	case domain.RefundClaimedEvent:
		return p.Claimant, true
	default:
		return common.Address{}, false
	}
}
