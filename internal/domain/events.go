package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names a ledger event. These are the contract between the core
// and its downstream consumers: the websocket feed, the relay/UI, the
// postgres journal, and the archiver.
type EventType string

const (
	EventMarketCreated       EventType = "market_created"
	EventBetPlaced           EventType = "bet_placed"
	EventMarketSubscribed    EventType = "market_subscribed"
	EventMarketResolved      EventType = "market_resolved"
	EventMarketSettled       EventType = "market_settled_by_reactivity"
	EventMarketCancelled     EventType = "market_cancelled"
	EventWinningsClaimed     EventType = "winnings_claimed"
	EventRefundClaimed       EventType = "refund_claimed"
	EventCreatorFeeWithdrawn EventType = "creator_fee_withdrawn"
)

// Envelope wraps a ledger event with its identity and emission time. The ID
// is a uuid so at-least-once consumers can deduplicate.
type Envelope struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	MarketID  uint64    `json:"market_id"`
	EmittedAt time.Time `json:"emitted_at"`
	Payload   any       `json:"payload"`
}

// MarketCreatedEvent is emitted once per market at creation.
type MarketCreatedEvent struct {
	MarketID        uint64         `json:"market_id"`
	Creator         common.Address `json:"creator"`
	WatchedContract common.Address `json:"watched_contract"`
	EventTopic      common.Hash    `json:"event_topic"`
	Question        string         `json:"question"`
	EndTime         time.Time      `json:"end_time"`
	Bond            *big.Int       `json:"bond"`
}

// BetPlacedEvent is emitted for every accepted stake.
type BetPlacedEvent struct {
	MarketID uint64         `json:"market_id"`
	Bettor   common.Address `json:"bettor"`
	IsYes    bool           `json:"is_yes"`
	Amount   *big.Int       `json:"amount"`
}

// MarketSubscribedEvent is emitted when a market joins the relay watch-list.
type MarketSubscribedEvent struct {
	MarketID        uint64         `json:"market_id"`
	WatchedContract common.Address `json:"watched_contract"`
	EventTopic      common.Hash    `json:"event_topic"`
}

// MarketResolvedEvent is emitted exactly once, when settlement drives the
// market to Resolved. Totals are final at this point.
type MarketResolvedEvent struct {
	MarketID     uint64   `json:"market_id"`
	Outcome      Outcome  `json:"outcome"`
	TotalYesBets *big.Int `json:"total_yes_bets"`
	TotalNoBets  *big.Int `json:"total_no_bets"`
}

// MarketSettledEvent accompanies MarketResolvedEvent and records the
// settlement trigger: whether the condition was met and the numeric value
// decoded from the observation (zero when none was decodable).
type MarketSettledEvent struct {
	MarketID     uint64   `json:"market_id"`
	ConditionMet bool     `json:"condition_met"`
	TriggerValue *big.Int `json:"trigger_value"`
}

// MarketCancelledEvent is emitted when an expired market is cancelled.
type MarketCancelledEvent struct {
	MarketID uint64 `json:"market_id"`
	Reason   string `json:"reason"`
}

// WinningsClaimedEvent is emitted when a winner withdraws a payout.
type WinningsClaimedEvent struct {
	MarketID uint64         `json:"market_id"`
	Claimant common.Address `json:"claimant"`
	Amount   *big.Int       `json:"amount"`
}

// RefundClaimedEvent is emitted when a bettor recovers a stake from a
// cancelled market.
type RefundClaimedEvent struct {
	MarketID uint64         `json:"market_id"`
	Claimant common.Address `json:"claimant"`
	Amount   *big.Int       `json:"amount"`
}

// CreatorFeeWithdrawnEvent is emitted when the market creator sweeps the
// accrued creator fee.
type CreatorFeeWithdrawnEvent struct {
	MarketID uint64         `json:"market_id"`
	Creator  common.Address `json:"creator"`
	Amount   *big.Int       `json:"amount"`
}

// EventSink receives envelopes from the ledger as operations commit. Sinks
// must not block: the ledger calls Emit after releasing its lock but on the
// caller's goroutine.
type EventSink interface {
	Emit(env Envelope)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(env Envelope)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(env Envelope) { f(env) }
