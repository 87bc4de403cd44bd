package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsemarket/pulsed/internal/domain"
)

func TestCreateMarket(t *testing.T) {
	l, sink, _ := newTestLedger(t)

	m := newMarket(t, l)

	assert.Equal(t, uint64(0), m.ID)
	assert.Equal(t, creator, m.Creator)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.Equal(t, domain.OutcomeNone, m.Outcome)
	assert.Equal(t, testEpoch, m.CreatedAt)
	assert.Equal(t, testEpoch.Add(24*time.Hour), m.EndTime)

	// The bond is escrowed as the creator's own Yes stake.
	assert.Zero(t, m.TotalYesBets.Cmp(milliEther(10)))
	assert.Zero(t, m.TotalNoBets.Sign())

	bet, err := l.GetBet(m.ID, creator)
	require.NoError(t, err)
	assert.True(t, bet.IsYes)
	assert.Zero(t, bet.Amount.Cmp(milliEther(10)))

	require.Len(t, sink.envs, 1)
	assert.Equal(t, domain.EventMarketCreated, sink.envs[0].Type)
	created, ok := sink.envs[0].Payload.(domain.MarketCreatedEvent)
	require.True(t, ok)
	assert.Zero(t, created.Bond.Cmp(milliEther(10)))
}

func TestCreateMarketSequentialIDs(t *testing.T) {
	l, _, _ := newTestLedger(t)

	for want := uint64(0); want < 5; want++ {
		m := newMarket(t, l)
		assert.Equal(t, want, m.ID)
	}
	assert.Equal(t, 5, l.MarketCount())
}

func TestCreateMarketValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.CreateMarket(creator, "   ", watchedContract, transferTopic,
		gtCondition(100), time.Hour, milliEther(10))
	assert.ErrorIs(t, err, domain.ErrInvalidQuestion)

	long := strings.Repeat("q", 281)
	_, err = l.CreateMarket(creator, long, watchedContract, transferTopic,
		gtCondition(100), time.Hour, milliEther(10))
	assert.ErrorIs(t, err, domain.ErrInvalidQuestion)

	_, err = l.CreateMarket(creator, "valid?", watchedContract, transferTopic,
		gtCondition(100), 0, milliEther(10))
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = l.CreateMarket(creator, "valid?", watchedContract, transferTopic,
		gtCondition(100), time.Hour, milliEther(9))
	assert.ErrorIs(t, err, domain.ErrInsufficientBond)

	_, err = l.CreateMarket(creator, "valid?", watchedContract, transferTopic,
		gtCondition(100), time.Hour, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBond)

	assert.Equal(t, 0, l.MarketCount())
}

func TestGetMarketNotFound(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.GetMarket(0)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestGetMarketReturnsSnapshot(t *testing.T) {
	l, _, _ := newTestLedger(t)
	m := newMarket(t, l)

	snap, err := l.GetMarket(m.ID)
	require.NoError(t, err)

	// Mutating the snapshot must not leak into ledger state.
	snap.TotalYesBets.SetInt64(0)

	again, err := l.GetMarket(m.ID)
	require.NoError(t, err)
	assert.Zero(t, again.TotalYesBets.Cmp(milliEther(10)))
}

func TestGetMarketsWindow(t *testing.T) {
	l, _, _ := newTestLedger(t)

	for i := 0; i < 5; i++ {
		newMarket(t, l)
	}

	page := l.GetMarkets(2, 2)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].ID)
	assert.Equal(t, uint64(3), page[1].ID)

	// Clipped at the end of the table.
	page = l.GetMarkets(4, 10)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(4), page[0].ID)

	assert.Empty(t, l.GetMarkets(5, 2))
	assert.Empty(t, l.GetMarkets(-1, 2))
	assert.Empty(t, l.GetMarkets(0, 0))
}
