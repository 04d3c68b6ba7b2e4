package escrow

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shadowbid/shadowbid/core"
)

// Bank is the single fungible-asset ledger that escrow deposits are drawn
// from and releases are paid into. One balance per account, no overdrafts.
type Bank struct {
	mu       sync.Mutex
	balances map[core.AccountID]decimal.Decimal
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[core.AccountID]decimal.Decimal),
	}
}

// Mint credits an account out of thin air. Test and bootstrap helper; the
// core never mints during auction operation.
func (b *Bank) Mint(account core.AccountID, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = b.balances[account].Add(amount)
}

// Balance returns the current balance of an account. Unknown accounts have a
// zero balance.
func (b *Bank) Balance(account core.AccountID) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

// debit removes amount from an account, failing with ErrInsufficientFunds if
// the balance is short. Called by the vault with amount > 0.
func (b *Bank) debit(account core.AccountID, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[account]
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	b.balances[account] = balance.Sub(amount)
	return nil
}

// credit adds amount to an account.
func (b *Bank) credit(account core.AccountID, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = b.balances[account].Add(amount)
}
