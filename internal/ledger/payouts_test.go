package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// settleYesMarket builds the reference scenario: creator bond 0.01 on Yes,
// alice 0.2 on Yes, bob 0.05 on No, settled Yes by an observed value of 200
// against the "> 100" condition.
func settleYesMarket(t *testing.T, l *Ledger) domain.Market {
	t.Helper()

	m := newMarket(t, l)
	_, err := l.PlaceBet(alice, m.ID, true, milliEther(200))
	require.NoError(t, err)
	_, err = l.PlaceBet(bob, m.ID, false, milliEther(50))
	require.NoError(t, err)

	require.NoError(t, l.SubscribeMarket(m.ID))
	require.Len(t, l.React(observationFor(m, numericPayload(t, 200))), 1)

	snap, err := l.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeYes, snap.Outcome)
	return snap
}

func TestClaimWinningsPayout(t *testing.T) {
	l, sink, _ := newTestLedger(t)
	m := settleYesMarket(t, l)

	// Losing pool 0.05 ether. Platform fee 1% = 0.0005, creator fee 2% =
	// 0.001, distributable 0.0485, winning pool 0.21.
	payout, err := l.ClaimWinnings(alice, m.ID)
	require.NoError(t, err)
	// 0.2 + 0.0485 * 0.2/0.21, floor division in wei.
	assert.Zero(t, payout.Cmp(big.NewInt(246_190_476_190_476_190)))
	assert.Zero(t, l.BalanceOf(alice).Cmp(payout))

	creatorPayout, err := l.ClaimWinnings(creator, m.ID)
	require.NoError(t, err)
	assert.Zero(t, creatorPayout.Cmp(big.NewInt(12_309_523_809_523_809)))

	last := sink.envs[len(sink.envs)-1]
	assert.Equal(t, domain.EventWinningsClaimed, last.Type)
}

func TestClaimWinningsOnce(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := settleYesMarket(t, l)

	_, err := l.ClaimWinnings(alice, m.ID)
	require.NoError(t, err)

	_, err = l.ClaimWinnings(alice, m.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// Balance is unchanged by the failed claim.
	assert.Zero(t, l.BalanceOf(alice).Cmp(big.NewInt(246_190_476_190_476_190)))
}

func TestClaimWinningsRejectsNonWinners(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := settleYesMarket(t, l)

	// bob bet No on a Yes outcome; carol never bet.
	_, err := l.ClaimWinnings(bob, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotAWinner)
	_, err = l.ClaimWinnings(carol, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotAWinner)
}

func TestClaimWinningsRequiresResolution(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := newMarket(t, l)

	_, err := l.ClaimWinnings(creator, m.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)

	_, err = l.ClaimWinnings(creator, 33)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestClaimWinningsEmptyLosingPool(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := newMarket(t, l)
	require.NoError(t, l.SubscribeMarket(m.ID))
	require.Len(t, l.React(observationFor(m, numericPayload(t, 200))), 1)

	// Nobody bet No, so there is nothing to distribute: the winner gets the
	// stake back and no fees accrue.
	payout, err := l.ClaimWinnings(creator, m.ID)
	require.NoError(t, err)
	assert.Zero(t, payout.Cmp(milliEther(10)))
	assert.Zero(t, l.PlatformFeeBalance().Sign())
}

func TestPayoutsNeverExceedPool(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := settleYesMarket(t, l)

	total := new(big.Int)
	for _, winner := range []common.Address{alice, creator} {
		payout, err := l.ClaimWinnings(winner, m.ID)
		require.NoError(t, err)
		total.Add(total, payout)
	}

	creatorFee, err := l.WithdrawCreatorFee(creator, m.ID)
	require.NoError(t, err)
	total.Add(total, creatorFee)
	total.Add(total, l.PlatformFeeBalance())

	// Floor division may strand dust, but credits never exceed escrow.
	assert.LessOrEqual(t, total.Cmp(m.Pool()), 0)
}

func TestClaimRefund(t *testing.T) {
	l, sink, clock := newTestLedger(t)
	m := newMarket(t, l)
	_, err := l.PlaceBet(alice, m.ID, false, milliEther(30))
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	require.NoError(t, l.CancelExpiredMarket(m.ID))

	// Cancellation is a pure unwind: exact stakes, no fees.
	refund, err := l.ClaimRefund(alice, m.ID)
	require.NoError(t, err)
	assert.Zero(t, refund.Cmp(milliEther(30)))

	refund, err = l.ClaimRefund(creator, m.ID)
	require.NoError(t, err)
	assert.Zero(t, refund.Cmp(milliEther(10)))

	assert.Zero(t, l.PlatformFeeBalance().Sign())

	last := sink.envs[len(sink.envs)-1]
	assert.Equal(t, domain.EventRefundClaimed, last.Type)
}

func TestClaimRefundPreconditions(t *testing.T) {
	l, _, clock := newTestLedger(t)
	m := newMarket(t, l)

	// Active market: nothing to refund yet.
	_, err := l.ClaimRefund(creator, m.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotCancelled)

	// Resolved markets pay out through ClaimWinnings, never refunds.
	resolved := settleYesMarket(t, l)
	_, err = l.ClaimRefund(alice, resolved.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotCancelled)

	clock.Advance(24 * time.Hour)
	require.NoError(t, l.CancelExpiredMarket(m.ID))

	_, err = l.ClaimRefund(carol, m.ID)
	assert.ErrorIs(t, err, domain.ErrNoBet)

	_, err = l.ClaimRefund(creator, m.ID)
	require.NoError(t, err)
	_, err = l.ClaimRefund(creator, m.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestWithdrawCreatorFee(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := settleYesMarket(t, l)

	// 2% of the 0.05 ether losing pool.
	fee, err := l.WithdrawCreatorFee(creator, m.ID)
	require.NoError(t, err)
	assert.Zero(t, fee.Cmp(milliEther(1)))
	assert.Zero(t, l.BalanceOf(creator).Cmp(fee))

	_, err = l.WithdrawCreatorFee(creator, m.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
}

func TestWithdrawCreatorFeePreconditions(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := settleYesMarket(t, l)

	_, err := l.WithdrawCreatorFee(alice, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotCreator)

	active := newMarket(t, l)
	_, err = l.WithdrawCreatorFee(creator, active.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)
}

func TestWithdrawPlatformFees(t *testing.T) {
	l, _, _ := newTestLedger(t)
	settleYesMarket(t, l)

	// 1% of the 0.05 ether losing pool.
	require.Zero(t, l.PlatformFeeBalance().Cmp(big.NewInt(500_000_000_000_000)))

	_, err := l.WithdrawPlatformFees(alice)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	swept, err := l.WithdrawPlatformFees(owner)
	require.NoError(t, err)
	assert.Zero(t, swept.Cmp(big.NewInt(500_000_000_000_000)))
	assert.Zero(t, l.PlatformFeeBalance().Sign())
	assert.Zero(t, l.BalanceOf(owner).Cmp(swept))

	_, err = l.WithdrawPlatformFees(owner)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
}

func TestPlatformFeesAccrueAcrossMarkets(t *testing.T) {
	l, _, _ := newTestLedger(t)
	settleYesMarket(t, l)
	settleYesMarket(t, l)

	assert.Zero(t, l.PlatformFeeBalance().Cmp(big.NewInt(1_000_000_000_000_000)))
}

func TestWithdrawDrainsBalance(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := settleYesMarket(t, l)

	payout, err := l.ClaimWinnings(alice, m.ID)
	require.NoError(t, err)

	drained := l.Withdraw(alice)
	assert.Zero(t, drained.Cmp(payout))
	assert.Zero(t, l.BalanceOf(alice).Sign())

	// Draining an empty balance yields zero, not an error.
	assert.Zero(t, l.Withdraw(alice).Sign())
	assert.Zero(t, l.Withdraw(carol).Sign())
}
