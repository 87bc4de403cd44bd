package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TopicFor derives the topic0 hash for a canonical event signature such as
// "Transfer(address,address,uint256)".
func TopicFor(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// Well-known event topics offered as presets when creating markets.
var (
	TopicTransfer = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	TopicApproval = common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")
	TopicSwap     = common.HexToHash("0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822")
)

// WellKnownTopics maps canonical event signatures to their topic0 hashes.
var WellKnownTopics = map[string]common.Hash{
	"Transfer(address,address,uint256)":                       TopicTransfer,
	"Approval(address,address,uint256)":                       TopicApproval,
	"Swap(address,uint256,uint256,uint256,uint256,address)":   TopicSwap,
}
