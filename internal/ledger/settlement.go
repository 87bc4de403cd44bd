package ledger

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/pulsemarket/pulsed/internal/condition"
	"github.com/pulsemarket/pulsed/internal/domain"
)

// React is the reactive settlement entry point, invoked by the relay for
// every observed log matching an entry in the watch-list. It resolves every
// active market subscribed to the observation's (contract, topic0) pair.
//
// React is idempotent by construction: resolution is single-shot per market,
// so a duplicate or late trigger finds the market already terminal and is
// absorbed as a no-op. The relay may deliver the same logical event any
// number of times, in any order, without corrupting totals. The returned
// slice holds the ids settled by this call.
func (l *Ledger) React(obs domain.Observation) []uint64 {
	l.mu.Lock()

	ids := l.subs[obs.Key()]
	var (
		settled []uint64
		evts    []any
	)
	for _, id := range ids {
		m := l.markets[id]
		if m.Status != domain.MarketStatusActive {
			// Benign no-op, not an error: the market already left Active
			// via an earlier trigger or the expiry path.
			continue
		}

		met, value := condition.Evaluate(m.ConditionData, obs.Data)
		outcome := domain.OutcomeNo
		if met {
			outcome = domain.OutcomeYes
		}
		l.resolveLocked(m, outcome)

		settled = append(settled, id)
		evts = append(evts,
			domain.MarketResolvedEvent{
				MarketID:     id,
				Outcome:      outcome,
				TotalYesBets: new(big.Int).Set(m.TotalYesBets),
				TotalNoBets:  new(big.Int).Set(m.TotalNoBets),
			},
			domain.MarketSettledEvent{
				MarketID:     id,
				ConditionMet: met,
				TriggerValue: value,
			},
		)
	}
	l.mu.Unlock()

	for i := 0; i < len(evts); i += 2 {
		l.emit(settled[i/2], evts[i], evts[i+1])
	}

	if len(settled) > 0 {
		l.logger.Info("markets settled by reactivity",
			slog.Int("count", len(settled)),
			slog.String("contract", obs.Contract.Hex()),
			slog.String("topic", obs.Topic0.Hex()),
		)
	}

	return settled
}

// CancelExpiredMarket cancels an active market whose deadline passed without
// a matching event. Callable by anyone: it is the guaranteed exit that keeps
// funds from being locked forever on markets whose watched event never
// fires.
func (l *Ledger) CancelExpiredMarket(marketID uint64) error {
	l.mu.Lock()

	m, err := l.marketLocked(marketID)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("cancel expired: %w", err)
	}
	if m.Status != domain.MarketStatusActive {
		l.mu.Unlock()
		return fmt.Errorf("cancel expired: market %d: %w", marketID, domain.ErrMarketNotActive)
	}
	if l.now().UTC().Before(m.EndTime) {
		l.mu.Unlock()
		return fmt.Errorf("cancel expired: market %d: %w", marketID, domain.ErrMarketNotExpired)
	}

	m.Status = domain.MarketStatusCancelled
	l.mu.Unlock()

	l.emit(marketID, domain.MarketCancelledEvent{
		MarketID: marketID,
		Reason:   "deadline passed without a matching event",
	})

	return nil
}

// resolveLocked is the only code that moves a market from Active to
// Resolved. The settlement path reaches market state exclusively through
// this narrow entry point; fee accrual happens here, against the losing
// pool, so claim-time math stays pure.
//
// Callers hold l.mu and have already checked the market is Active.
func (l *Ledger) resolveLocked(m *domain.Market, outcome domain.Outcome) {
	now := l.now().UTC()
	m.Status = domain.MarketStatusResolved
	m.Outcome = outcome
	m.ResolvedAt = &now

	losing := m.LosingPool()
	if losing.Sign() == 0 {
		return
	}

	platformFee := feeOf(losing, l.params.PlatformFeeBps)
	creatorFee := feeOf(losing, l.params.CreatorFeeBps)
	l.platformFees.Add(l.platformFees, platformFee)
	m.CreatorFeeAccrued.Set(creatorFee)
}

// feeOf computes amount*bps/10000 with floor division.
func feeOf(amount *big.Int, bps int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(bps))
	return fee.Div(fee, big.NewInt(10_000))
}
