package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MarketStatus represents the lifecycle state of a market. A market is
// created Active and leaves Active exactly once, either by reactive
// settlement (Resolved) or by expiry cancellation (Cancelled).
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusResolved || s == MarketStatusCancelled
}

// Outcome is the settled result of a market. It is None until the market is
// Resolved and is set exactly once.
type Outcome string

const (
	OutcomeNone Outcome = "none"
	OutcomeYes  Outcome = "yes"
	OutcomeNo   Outcome = "no"
)

// Market is a single Yes/No wager on whether an observed on-chain event will
// satisfy a condition before a deadline. Ids are sequential and never reused;
// markets are never destroyed and remain queryable after settlement.
type Market struct {
	ID              uint64         `json:"id"`
	Creator         common.Address `json:"creator"`
	Question        string         `json:"question"`
	WatchedContract common.Address `json:"watched_contract"`
	EventTopic      common.Hash    `json:"event_topic"`
	ConditionData   hexutil.Bytes  `json:"condition_data"`
	EndTime         time.Time      `json:"end_time"`
	TotalYesBets    *big.Int       `json:"total_yes_bets"`
	TotalNoBets     *big.Int       `json:"total_no_bets"`
	Status          MarketStatus   `json:"status"`
	Outcome         Outcome        `json:"outcome"`
	CreatedAt       time.Time      `json:"created_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`

	// CreatorFeeAccrued is carved off the losing pool when the market
	// resolves. It stays zero on cancelled markets.
	CreatorFeeAccrued   *big.Int `json:"creator_fee_accrued"`
	CreatorFeeWithdrawn bool     `json:"creator_fee_withdrawn"`
}

// Pool returns the total escrowed value on the market.
func (m *Market) Pool() *big.Int {
	return new(big.Int).Add(m.TotalYesBets, m.TotalNoBets)
}

// WinningPool returns the side of the pool matching the settled outcome, or
// nil when the market is not Resolved.
func (m *Market) WinningPool() *big.Int {
	switch m.Outcome {
	case OutcomeYes:
		return m.TotalYesBets
	case OutcomeNo:
		return m.TotalNoBets
	default:
		return nil
	}
}

// LosingPool returns the side of the pool opposite the settled outcome, or
// nil when the market is not Resolved.
func (m *Market) LosingPool() *big.Int {
	switch m.Outcome {
	case OutcomeYes:
		return m.TotalNoBets
	case OutcomeNo:
		return m.TotalYesBets
	default:
		return nil
	}
}

// Clone returns a deep copy so callers can hand out market snapshots without
// aliasing the ledger's mutable big.Int fields.
func (m *Market) Clone() Market {
	out := *m
	out.TotalYesBets = new(big.Int).Set(m.TotalYesBets)
	out.TotalNoBets = new(big.Int).Set(m.TotalNoBets)
	out.CreatorFeeAccrued = new(big.Int).Set(m.CreatorFeeAccrued)
	out.ConditionData = append(hexutil.Bytes(nil), m.ConditionData...)
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
