package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// PlaceBet escrows a stake on one side of an active market. An address bets
// at most once per market and the amount is final: there is deliberately no
// top-up and no betting both sides, so exposure is fixed the moment a side
// is chosen.
func (l *Ledger) PlaceBet(bettor common.Address, marketID uint64, isYes bool, amount *big.Int) (domain.Bet, error) {
	l.mu.Lock()

	m, err := l.marketLocked(marketID)
	if err != nil {
		l.mu.Unlock()
		return domain.Bet{}, fmt.Errorf("place bet: %w", err)
	}
	if m.Status != domain.MarketStatusActive {
		l.mu.Unlock()
		return domain.Bet{}, fmt.Errorf("place bet: market %d: %w", marketID, domain.ErrMarketNotActive)
	}
	now := l.now().UTC()
	if !now.Before(m.EndTime) {
		l.mu.Unlock()
		return domain.Bet{}, fmt.Errorf("place bet: market %d: %w", marketID, domain.ErrMarketExpired)
	}
	if amount == nil || amount.Cmp(l.params.MinBet) < 0 {
		l.mu.Unlock()
		return domain.Bet{}, fmt.Errorf("place bet: %w", domain.ErrBetTooSmall)
	}
	key := betKey{marketID: marketID, bettor: bettor}
	if _, exists := l.bets[key]; exists {
		l.mu.Unlock()
		return domain.Bet{}, fmt.Errorf("place bet: market %d: %w", marketID, domain.ErrAlreadyBet)
	}

	bet := &domain.Bet{
		MarketID: marketID,
		Bettor:   bettor,
		IsYes:    isYes,
		Amount:   new(big.Int).Set(amount),
		PlacedAt: now,
	}
	l.bets[key] = bet

	if isYes {
		m.TotalYesBets.Add(m.TotalYesBets, amount)
	} else {
		m.TotalNoBets.Add(m.TotalNoBets, amount)
	}

	snapshot := *bet
	snapshot.Amount = new(big.Int).Set(bet.Amount)
	l.mu.Unlock()

	l.emit(marketID, domain.BetPlacedEvent{
		MarketID: marketID,
		Bettor:   bettor,
		IsYes:    isYes,
		Amount:   new(big.Int).Set(amount),
	})

	return snapshot, nil
}

// GetBet returns the bet an address holds on a market. Addresses without a
// bet get the zero-valued Bet, mirroring a mapping read; the market must
// exist.
func (l *Ledger) GetBet(marketID uint64, bettor common.Address) (domain.Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, err := l.marketLocked(marketID); err != nil {
		return domain.Bet{}, fmt.Errorf("get bet: %w", err)
	}

	b, ok := l.bets[betKey{marketID: marketID, bettor: bettor}]
	if !ok {
		return domain.Bet{MarketID: marketID, Bettor: bettor, Amount: new(big.Int)}, nil
	}
	out := *b
	out.Amount = new(big.Int).Set(b.Amount)
	return out, nil
}
