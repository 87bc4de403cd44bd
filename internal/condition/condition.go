// Package condition implements the comparison-condition codec and evaluator
// used for reactive settlement. A condition is a comparison operator plus a
// uint256 threshold, ABI-encoded as (uint8, uint256) to stay byte-compatible
// with descriptors produced by on-chain market creators.
package condition

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Op is the comparison operator tag of a condition descriptor.
type Op uint8

const (
	OpGT Op = iota
	OpGTE
	OpLT
	OpLTE
	OpEQ
)

// String returns the operator as a comparison symbol.
func (op Op) String() string {
	switch op {
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	case OpEQ:
		return "=="
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// ErrBadEncoding is returned when a condition descriptor cannot be decoded.
// Callers on the settlement path must treat this as the trivially-met
// fallback, not as a failure.
var ErrBadEncoding = errors.New("condition: bad encoding")

// Condition is a decoded comparison descriptor.
type Condition struct {
	Op        Op
	Threshold *big.Int
}

// descriptorArgs is the ABI tuple (uint8, uint256) shared by Encode and
// Decode.
var descriptorArgs = func() abi.Arguments {
	uint8T, err := abi.NewType("uint8", "", nil)
	if err != nil {
		panic(err)
	}
	uint256T, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: uint8T}, {Type: uint256T}}
}()

// valueArg is the ABI tuple (uint256) used to decode observed event payloads.
var valueArg = func() abi.Arguments {
	uint256T, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: uint256T}}
}()

// Encode serializes the condition into its opaque on-wire form.
func Encode(c Condition) ([]byte, error) {
	if c.Threshold == nil || c.Threshold.Sign() < 0 || c.Threshold.BitLen() > 256 {
		return nil, fmt.Errorf("condition: threshold out of uint256 range")
	}
	data, err := descriptorArgs.Pack(uint8(c.Op), c.Threshold)
	if err != nil {
		return nil, fmt.Errorf("condition: encode: %w", err)
	}
	return data, nil
}

// MustEncode is Encode for known-good inputs, used in tests and fixtures.
func MustEncode(c Condition) []byte {
	data, err := Encode(c)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode is the total decode function for condition descriptors. Every
// failure mode maps to ErrBadEncoding so the settlement path has a single
// explicit fallback branch to take.
func Decode(data []byte) (Condition, error) {
	if len(data) != 64 {
		return Condition{}, fmt.Errorf("%w: want 64 bytes, got %d", ErrBadEncoding, len(data))
	}
	vals, err := descriptorArgs.Unpack(data)
	if err != nil {
		return Condition{}, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	op, ok := vals[0].(uint8)
	if !ok || Op(op) > OpEQ {
		return Condition{}, fmt.Errorf("%w: unknown operator %v", ErrBadEncoding, vals[0])
	}
	threshold, ok := vals[1].(*big.Int)
	if !ok {
		return Condition{}, fmt.Errorf("%w: threshold is not uint256", ErrBadEncoding)
	}
	return Condition{Op: Op(op), Threshold: threshold}, nil
}

// Eval applies the comparison to the observed value.
func (c Condition) Eval(observed *big.Int) bool {
	cmp := observed.Cmp(c.Threshold)
	switch c.Op {
	case OpGT:
		return cmp > 0
	case OpGTE:
		return cmp >= 0
	case OpLT:
		return cmp < 0
	case OpLTE:
		return cmp <= 0
	case OpEQ:
		return cmp == 0
	default:
		return false
	}
}

// DecodeValue extracts the single uint256 from an observed event payload.
// The second return is false when the payload does not carry one comparable
// numeric field.
func DecodeValue(data []byte) (*big.Int, bool) {
	if len(data) != 32 {
		return nil, false
	}
	vals, err := valueArg.Unpack(data)
	if err != nil {
		return nil, false
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, false
	}
	return v, true
}

// Evaluate decides whether an observed payload satisfies a stored condition
// descriptor. An undecodable descriptor or a non-numeric payload resolves to
// met: the bare occurrence of the watched event settles such markets Yes.
// This is the generic self-settling policy for markets that watch for any
// occurrence rather than a magnitude, and it is a deliberate branch, not an
// error path.
func Evaluate(conditionData []byte, payload []byte) (met bool, value *big.Int) {
	observed, numeric := DecodeValue(payload)
	if !numeric {
		return true, new(big.Int)
	}

	cond, err := Decode(conditionData)
	if err != nil {
		return true, observed
	}

	return cond.Eval(observed), observed
}
