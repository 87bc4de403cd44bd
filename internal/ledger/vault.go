package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The vault is the ledger's balance sheet: value leaving escrow is credited
// to a per-address withdrawable balance rather than pushed anywhere. The
// wallet layer that moves real value sits outside this module and drains
// balances through Withdraw.

// creditLocked adds amount to an address's withdrawable balance. Callers
// hold l.mu and have already flipped the flag guarding the payout.
func (l *Ledger) creditLocked(addr common.Address, amount *big.Int) {
	bal, ok := l.balances[addr]
	if !ok {
		bal = new(big.Int)
		l.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// BalanceOf returns an address's withdrawable balance.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bal, ok := l.balances[addr]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// Withdraw drains an address's entire withdrawable balance and returns the
// amount drained. A zero balance withdraws zero; it is not an error.
func (l *Ledger) Withdraw(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok := l.balances[addr]
	if !ok || bal.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Set(bal)
	bal.SetInt64(0)
	return out
}
