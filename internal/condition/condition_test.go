package condition

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeValue packs a uint256 the way an ABI event payload carries it.
func encodeValue(t *testing.T, v *big.Int) []byte {
	t.Helper()
	data, err := valueArg.Pack(v)
	require.NoError(t, err)
	return data
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, op := range []Op{OpGT, OpGTE, OpLT, OpLTE, OpEQ} {
		c := Condition{Op: op, Threshold: big.NewInt(1_000_000)}

		data, err := Encode(c)
		require.NoError(t, err)
		assert.Len(t, data, 64)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, op, got.Op)
		assert.Zero(t, got.Threshold.Cmp(c.Threshold))
	}
}

func TestEncodeRejectsBadThreshold(t *testing.T) {
	_, err := Encode(Condition{Op: OpGT, Threshold: nil})
	assert.Error(t, err)

	_, err = Encode(Condition{Op: OpGT, Threshold: big.NewInt(-1)})
	assert.Error(t, err)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = Encode(Condition{Op: OpGT, Threshold: tooBig})
	assert.Error(t, err)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 32, 63, 65, 128} {
		_, err := Decode(make([]byte, n))
		assert.ErrorIs(t, err, ErrBadEncoding, "length %d", n)
	}
}

func TestDecodeRejectsUnknownOperator(t *testing.T) {
	data := MustEncode(Condition{Op: OpEQ, Threshold: big.NewInt(5)})
	// Bump the operator byte past the last defined tag.
	data[31] = byte(OpEQ) + 1

	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrBadEncoding)
}

func TestEval(t *testing.T) {
	threshold := big.NewInt(100)
	cases := []struct {
		op       Op
		observed int64
		want     bool
	}{
		{OpGT, 101, true},
		{OpGT, 100, false},
		{OpGTE, 100, true},
		{OpGTE, 99, false},
		{OpLT, 99, true},
		{OpLT, 100, false},
		{OpLTE, 100, true},
		{OpLTE, 101, false},
		{OpEQ, 100, true},
		{OpEQ, 101, false},
	}
	for _, tc := range cases {
		c := Condition{Op: tc.op, Threshold: threshold}
		got := c.Eval(big.NewInt(tc.observed))
		assert.Equal(t, tc.want, got, "%d %s 100", tc.observed, tc.op)
	}
}

func TestDecodeValue(t *testing.T) {
	v, ok := DecodeValue(encodeValue(t, big.NewInt(42)))
	require.True(t, ok)
	assert.Zero(t, v.Cmp(big.NewInt(42)))

	_, ok = DecodeValue(nil)
	assert.False(t, ok)

	_, ok = DecodeValue(make([]byte, 64))
	assert.False(t, ok)
}

func TestEvaluateComparesNumericPayload(t *testing.T) {
	desc := MustEncode(Condition{Op: OpGT, Threshold: big.NewInt(100)})

	met, value := Evaluate(desc, encodeValue(t, big.NewInt(200)))
	assert.True(t, met)
	assert.Zero(t, value.Cmp(big.NewInt(200)))

	met, value = Evaluate(desc, encodeValue(t, big.NewInt(50)))
	assert.False(t, met)
	assert.Zero(t, value.Cmp(big.NewInt(50)))
}

func TestEvaluateNonNumericPayloadIsTriviallyMet(t *testing.T) {
	desc := MustEncode(Condition{Op: OpLT, Threshold: big.NewInt(1)})

	// An empty payload carries no comparable value; the bare occurrence of
	// the event settles the market Yes.
	met, value := Evaluate(desc, nil)
	assert.True(t, met)
	assert.Zero(t, value.Sign())

	met, _ = Evaluate(desc, make([]byte, 96))
	assert.True(t, met)
}

func TestEvaluateBadDescriptorIsTriviallyMet(t *testing.T) {
	met, value := Evaluate([]byte{0x01, 0x02}, encodeValue(t, big.NewInt(7)))
	assert.True(t, met)
	assert.Zero(t, value.Cmp(big.NewInt(7)))
}

func TestOpString(t *testing.T) {
	assert.Equal(t, ">", OpGT.String())
	assert.Equal(t, ">=", OpGTE.String())
	assert.Equal(t, "<", OpLT.String())
	assert.Equal(t, "<=", OpLTE.String())
	assert.Equal(t, "==", OpEQ.String())
}
