package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Observation is a raw log entry reported by the relay: the reactive
// settlement input. Topic0 is the event signature; Topic1-3 are the indexed
// parameters; Data is the ABI-encoded non-indexed payload.
type Observation struct {
	ChainID  uint64         `json:"chain_id"`
	Contract common.Address `json:"contract"`
	Topic0   common.Hash    `json:"topic0"`
	Topic1   common.Hash    `json:"topic1"`
	Topic2   common.Hash    `json:"topic2"`
	Topic3   common.Hash    `json:"topic3"`
	Data     hexutil.Bytes  `json:"data"`
}

// Key returns the subscription key this observation matches against.
func (o Observation) Key() EventKey {
	return EventKey{Contract: o.Contract, Topic: o.Topic0}
}
