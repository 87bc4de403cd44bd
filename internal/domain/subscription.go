package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EventKey identifies a class of on-chain events: the emitting contract plus
// the topic0 event signature hash. It is the unit of the relay's watch-list.
type EventKey struct {
	Contract common.Address `json:"contract"`
	Topic    common.Hash    `json:"topic"`
}

// String renders the key in "address:topic" form, used for log fields and
// cache keys.
func (k EventKey) String() string {
	return fmt.Sprintf("%s:%s", k.Contract.Hex(), k.Topic.Hex())
}

// Subscription links an event key to the markets listening on it. A market
// subscribes at most once, always under its own (contract, topic) pair, and
// the subscription persists for the market's lifetime.
type Subscription struct {
	Key       EventKey  `json:"key"`
	MarketIDs []uint64  `json:"market_ids"`
}
