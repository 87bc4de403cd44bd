package ledger

import (
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/pulsemarket/pulsed/internal/condition"
	"github.com/pulsemarket/pulsed/internal/domain"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	creator = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	carol   = common.HexToAddress("0x0000000000000000000000000000000000000004")

	watchedContract = common.HexToAddress("0x000000000000000000000000000000000000dead")
	transferTopic   = domain.TopicTransfer
)

// milliEther converts thousandths of an ether to wei.
func milliEther(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000))
}

// sinkRecorder captures every envelope the ledger emits.
type sinkRecorder struct {
	envs []domain.Envelope
}

func (r *sinkRecorder) Emit(env domain.Envelope) {
	r.envs = append(r.envs, env)
}

// typesOf flattens the recorded envelope types for order assertions.
func (r *sinkRecorder) typesOf() []domain.EventType {
	out := make([]domain.EventType, 0, len(r.envs))
	for _, env := range r.envs {
		out = append(out, env.Type)
	}
	return out
}

// testClock is a settable time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var testEpoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// newTestLedger builds a ledger with the reference economic parameters:
// 0.001 ether minimum bet, 0.01 ether minimum bond, 1% platform fee, 2%
// creator fee.
func newTestLedger(t *testing.T) (*Ledger, *sinkRecorder, *testClock) {
	t.Helper()

	sink := &sinkRecorder{}
	clock := &testClock{now: testEpoch}

	l := New(Params{
		MinBet:          milliEther(1),
		MinCreationBond: milliEther(10),
		PlatformFeeBps:  100,
		CreatorFeeBps:   200,
		MaxQuestionLen:  280,
		Owner:           owner,
	}, sink, slog.Default())
	l.SetClock(clock.Now)

	return l, sink, clock
}

// gtCondition encodes "observed value > threshold".
func gtCondition(threshold int64) []byte {
	return condition.MustEncode(condition.Condition{
		Op:        condition.OpGT,
		Threshold: big.NewInt(threshold),
	})
}

// newMarket creates a 24h market watching Transfer logs on the test
// contract, with a value > 100 condition and a 0.01 ether bond.
func newMarket(t *testing.T, l *Ledger) domain.Market {
	t.Helper()

	m, err := l.CreateMarket(
		creator,
		"Will the watched transfer exceed 100?",
		watchedContract,
		transferTopic,
		gtCondition(100),
		24*time.Hour,
		milliEther(10),
	)
	require.NoError(t, err)
	return m
}

// numericPayload ABI-encodes a uint256 observation payload.
func numericPayload(t *testing.T, v int64) []byte {
	t.Helper()

	data := make([]byte, 32)
	big.NewInt(v).FillBytes(data)
	return data
}

// observationFor builds an observation matching the market's subscription
// key with the given payload.
func observationFor(m domain.Market, payload []byte) domain.Observation {
	return domain.Observation{
		ChainID:  50312,
		Contract: m.WatchedContract,
		Topic0:   m.EventTopic,
		Data:     payload,
	}
}
