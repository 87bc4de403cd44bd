package ledger

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// CreateMarket opens a new market. The bond is escrowed immediately and
// accounted as the creator's own Yes stake, so every market starts with a
// non-empty Yes pool and the creator carries exposure on their own question.
func (l *Ledger) CreateMarket(
	creator common.Address,
	question string,
	watchedContract common.Address,
	eventTopic common.Hash,
	conditionData []byte,
	duration time.Duration,
	bond *big.Int,
) (domain.Market, error) {
	question = strings.TrimSpace(question)

	l.mu.Lock()

	if question == "" || len(question) > l.params.MaxQuestionLen {
		l.mu.Unlock()
		return domain.Market{}, fmt.Errorf("create market: %w", domain.ErrInvalidQuestion)
	}
	if duration <= 0 {
		l.mu.Unlock()
		return domain.Market{}, fmt.Errorf("create market: %w", domain.ErrInvalidDuration)
	}
	if bond == nil || bond.Cmp(l.params.MinCreationBond) < 0 {
		l.mu.Unlock()
		return domain.Market{}, fmt.Errorf("create market: %w", domain.ErrInsufficientBond)
	}

	now := l.now().UTC()
	m := &domain.Market{
		ID:                uint64(len(l.markets)),
		Creator:           creator,
		Question:          question,
		WatchedContract:   watchedContract,
		EventTopic:        eventTopic,
		ConditionData:     append(hexutil.Bytes(nil), conditionData...),
		EndTime:           now.Add(duration),
		TotalYesBets:      new(big.Int).Set(bond),
		TotalNoBets:       new(big.Int),
		Status:            domain.MarketStatusActive,
		Outcome:           domain.OutcomeNone,
		CreatedAt:         now,
		CreatorFeeAccrued: new(big.Int),
	}
	l.markets = append(l.markets, m)

	l.bets[betKey{marketID: m.ID, bettor: creator}] = &domain.Bet{
		MarketID: m.ID,
		Bettor:   creator,
		IsYes:    true,
		Amount:   new(big.Int).Set(bond),
		PlacedAt: now,
	}

	snapshot := m.Clone()
	l.mu.Unlock()

	l.emit(m.ID, domain.MarketCreatedEvent{
		MarketID:        snapshot.ID,
		Creator:         creator,
		WatchedContract: watchedContract,
		EventTopic:      eventTopic,
		Question:        question,
		EndTime:         snapshot.EndTime,
		Bond:            new(big.Int).Set(bond),
	})

	return snapshot, nil
}

// GetMarket returns a snapshot of a single market.
func (l *Ledger) GetMarket(id uint64) (domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.marketLocked(id)
	if err != nil {
		return domain.Market{}, err
	}
	return m.Clone(), nil
}

// GetMarkets returns the contiguous creation-order slice [offset,
// offset+limit), clipped to the valid range. Requests past the end return an
// empty slice, never an error.
func (l *Ledger) GetMarkets(offset, limit int) []domain.Market {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if offset < 0 || limit <= 0 || offset >= len(l.markets) {
		return nil
	}
	end := offset + limit
	if end > len(l.markets) {
		end = len(l.markets)
	}

	out := make([]domain.Market, 0, end-offset)
	for _, m := range l.markets[offset:end] {
		out = append(out, m.Clone())
	}
	return out
}

// MarketCount returns the number of markets ever created.
func (l *Ledger) MarketCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.markets)
}

// marketLocked resolves an id to the live market record. Callers hold l.mu.
func (l *Ledger) marketLocked(id uint64) (*domain.Market, error) {
	if id >= uint64(len(l.markets)) {
		return nil, fmt.Errorf("market %d: %w", id, domain.ErrMarketNotFound)
	}
	return l.markets[id], nil
}
