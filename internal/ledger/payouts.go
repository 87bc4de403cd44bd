package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// ClaimWinnings pays out a winning bettor on a resolved market: their own
// stake back in full, plus a pro-rata share of the losing pool net of the
// platform and creator fees accrued at resolution.
//
// The claimed flag flips before any value moves. That ordering is the
// reentrancy discipline for every funds-moving operation here: once flipped,
// a re-entrant or repeated claim fails on ErrAlreadyClaimed no matter what
// happens downstream of the credit.
func (l *Ledger) ClaimWinnings(claimant common.Address, marketID uint64) (*big.Int, error) {
	l.mu.Lock()

	m, err := l.marketLocked(marketID)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim winnings: %w", err)
	}
	if m.Status != domain.MarketStatusResolved {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim winnings: market %d: %w", marketID, domain.ErrMarketNotResolved)
	}
	bet, ok := l.bets[betKey{marketID: marketID, bettor: claimant}]
	if !ok || !bet.WonAgainst(m.Outcome) {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim winnings: market %d: %w", marketID, domain.ErrNotAWinner)
	}
	if bet.Claimed {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim winnings: market %d: %w", marketID, domain.ErrAlreadyClaimed)
	}

	bet.Claimed = true

	payout := l.payoutLocked(m, bet)
	l.creditLocked(claimant, payout)
	l.mu.Unlock()

	l.emit(marketID, domain.WinningsClaimedEvent{
		MarketID: marketID,
		Claimant: claimant,
		Amount:   new(big.Int).Set(payout),
	})

	return payout, nil
}

// ClaimRefund returns a bettor's exact original stake from a cancelled
// market. Cancellation is a pure unwind: no fees, no pro-rata math, and each
// refund is independent of every other bettor.
func (l *Ledger) ClaimRefund(claimant common.Address, marketID uint64) (*big.Int, error) {
	l.mu.Lock()

	m, err := l.marketLocked(marketID)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim refund: %w", err)
	}
	if m.Status != domain.MarketStatusCancelled {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim refund: market %d: %w", marketID, domain.ErrMarketNotCancelled)
	}
	bet, ok := l.bets[betKey{marketID: marketID, bettor: claimant}]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim refund: market %d: %w", marketID, domain.ErrNoBet)
	}
	if bet.Claimed {
		l.mu.Unlock()
		return nil, fmt.Errorf("claim refund: market %d: %w", marketID, domain.ErrAlreadyClaimed)
	}

	bet.Claimed = true

	refund := new(big.Int).Set(bet.Amount)
	l.creditLocked(claimant, refund)
	l.mu.Unlock()

	l.emit(marketID, domain.RefundClaimedEvent{
		MarketID: marketID,
		Claimant: claimant,
		Amount:   new(big.Int).Set(refund),
	})

	return refund, nil
}

// WithdrawCreatorFee sweeps the creator fee accrued on a resolved market to
// the market creator. One-shot per market.
func (l *Ledger) WithdrawCreatorFee(caller common.Address, marketID uint64) (*big.Int, error) {
	l.mu.Lock()

	m, err := l.marketLocked(marketID)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("withdraw creator fee: %w", err)
	}
	if caller != m.Creator {
		l.mu.Unlock()
		return nil, fmt.Errorf("withdraw creator fee: market %d: %w", marketID, domain.ErrNotCreator)
	}
	if m.Status != domain.MarketStatusResolved {
		l.mu.Unlock()
		return nil, fmt.Errorf("withdraw creator fee: market %d: %w", marketID, domain.ErrMarketNotResolved)
	}
	if m.CreatorFeeWithdrawn || m.CreatorFeeAccrued.Sign() == 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("withdraw creator fee: market %d: %w", marketID, domain.ErrNothingToWithdraw)
	}

	m.CreatorFeeWithdrawn = true

	amount := new(big.Int).Set(m.CreatorFeeAccrued)
	l.creditLocked(caller, amount)
	l.mu.Unlock()

	l.emit(marketID, domain.CreatorFeeWithdrawnEvent{
		MarketID: marketID,
		Creator:  caller,
		Amount:   new(big.Int).Set(amount),
	})

	return amount, nil
}

// WithdrawPlatformFees sweeps all accrued platform fees to the owner.
func (l *Ledger) WithdrawPlatformFees(caller common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.params.Owner {
		return nil, fmt.Errorf("withdraw platform fees: %w", domain.ErrNotOwner)
	}
	if l.platformFees.Sign() == 0 {
		return nil, fmt.Errorf("withdraw platform fees: %w", domain.ErrNothingToWithdraw)
	}

	amount := new(big.Int).Set(l.platformFees)
	l.platformFees.SetInt64(0)
	l.creditLocked(caller, amount)
	return amount, nil
}

// PlatformFeeBalance returns platform fees accrued and not yet swept.
func (l *Ledger) PlatformFeeBalance() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.platformFees)
}

// payoutLocked computes a winner's payout against the market's final totals:
// stake + (losing - platformFee - creatorFee) * stake / winningPool, all in
// floor division. Callers hold l.mu.
func (l *Ledger) payoutLocked(m *domain.Market, bet *domain.Bet) *big.Int {
	payout := new(big.Int).Set(bet.Amount)

	losing := m.LosingPool()
	winning := m.WinningPool()
	if losing.Sign() == 0 || winning.Sign() == 0 {
		return payout
	}

	distributable := new(big.Int).Sub(losing, feeOf(losing, l.params.PlatformFeeBps))
	distributable.Sub(distributable, m.CreatorFeeAccrued)

	share := new(big.Int).Mul(distributable, bet.Amount)
	share.Div(share, winning)

	return payout.Add(payout, share)
}
