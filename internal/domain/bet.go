package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bet is a single stake on one side of a market. There is at most one Bet
// per (market, bettor) pair and the amount is final once placed; choosing a
// side fixes the address's exposure for the life of the market.
type Bet struct {
	MarketID uint64         `json:"market_id"`
	Bettor   common.Address `json:"bettor"`
	IsYes    bool           `json:"is_yes"`
	Amount   *big.Int       `json:"amount"`
	Claimed  bool           `json:"claimed"`
	PlacedAt time.Time      `json:"placed_at"`
}

// Exists reports whether the bet carries a stake. The ledger returns the
// zero-valued Bet for addresses that never bet, mirroring a mapping read.
func (b Bet) Exists() bool {
	return b.Amount != nil && b.Amount.Sign() > 0
}

// WonAgainst reports whether the bet is on the winning side of the given
// outcome.
func (b Bet) WonAgainst(outcome Outcome) bool {
	switch outcome {
	case OutcomeYes:
		return b.IsYes
	case OutcomeNo:
		return !b.IsYes
	default:
		return false
	}
}
