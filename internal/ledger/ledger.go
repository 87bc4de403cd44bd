// Package ledger implements the market ledger and reactive settlement
// engine: market creation, stake escrow, subscription tracking, event-driven
// resolution, and payout accounting.
//
// The Ledger is the single synchronous authority over market state. One
// RWMutex serializes every mutating operation, giving the global ordered log
// the settlement semantics depend on: each operation either fully commits or
// leaves state untouched, and concurrent callers are ordered by lock
// acquisition, never by wall-clock arrival. Durable stores and caches hang
// off the event feed and are never consulted on the mutation path.
package ledger

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// Params are the economic parameters of the ledger. Amounts are in wei.
type Params struct {
	MinBet          *big.Int
	MinCreationBond *big.Int
	PlatformFeeBps  int64
	CreatorFeeBps   int64
	MaxQuestionLen  int

	// Owner may sweep accrued platform fees.
	Owner common.Address
}

// betKey identifies a bet by (market, bettor).
type betKey struct {
	marketID uint64
	bettor   common.Address
}

// Ledger owns the market table, the bet table, the subscription index, and
// the balance sheet. All four are mutated only through the exported
// operations, under the single mutex.
type Ledger struct {
	mu sync.RWMutex

	params Params
	logger *slog.Logger
	sink   domain.EventSink

	// now is injectable so expiry behavior is testable.
	now func() time.Time

	// markets is arena-style: the slice index is the market id.
	markets []*domain.Market
	bets    map[betKey]*domain.Bet

	// subs maps an event key to the ids listening on it; subscribed guards
	// the one-subscription-per-market rule.
	subs       map[domain.EventKey][]uint64
	subscribed map[uint64]bool

	// balances holds withdrawable value credited by payouts. Credits happen
	// only after the owning claimed flag has flipped.
	balances     map[common.Address]*big.Int
	platformFees *big.Int
}

// New creates an empty Ledger. The sink receives an envelope for every
// committed mutation; pass nil to discard events.
func New(params Params, sink domain.EventSink, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		params:       params,
		logger:       logger.With(slog.String("component", "ledger")),
		sink:         sink,
		now:          time.Now,
		bets:         make(map[betKey]*domain.Bet),
		subs:         make(map[domain.EventKey][]uint64),
		subscribed:   make(map[uint64]bool),
		balances:     make(map[common.Address]*big.Int),
		platformFees: new(big.Int),
	}
}

// SetClock overrides the time source. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// emit publishes envelopes to the sink. Callers must have released the
// ledger lock first: the sink may fan out to external systems and no lock is
// ever held across that boundary.
func (l *Ledger) emit(marketID uint64, evts ...any) {
	if l.sink == nil {
		return
	}
	now := time.Now().UTC()
	for _, payload := range evts {
		l.sink.Emit(domain.Envelope{
			ID:        uuid.NewString(),
			Type:      eventTypeOf(payload),
			MarketID:  marketID,
			EmittedAt: now,
			Payload:   payload,
		})
	}
}

// eventTypeOf maps a payload struct to its wire event type.
func eventTypeOf(payload any) domain.EventType {
	switch payload.(type) {
	case domain.MarketCreatedEvent:
		return domain.EventMarketCreated
	case domain.BetPlacedEvent:
		return domain.EventBetPlaced
	case domain.MarketSubscribedEvent:
		return domain.EventMarketSubscribed
	case domain.MarketResolvedEvent:
		return domain.EventMarketResolved
	case domain.MarketSettledEvent:
		return domain.EventMarketSettled
	case domain.MarketCancelledEvent:
		return domain.EventMarketCancelled
	case domain.WinningsClaimedEvent:
		return domain.EventWinningsClaimed
	case domain.RefundClaimedEvent:
		return domain.EventRefundClaimed
	case domain.CreatorFeeWithdrawnEvent:
		return domain.EventCreatorFeeWithdrawn
	default:
		return EventTypeUnknown
	}
}

// EventTypeUnknown marks payloads the ledger does not recognize. Reaching it
// is a programming error surfaced in the journal rather than a panic.
const EventTypeUnknown domain.EventType = "unknown"
