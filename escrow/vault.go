package escrow

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shadowbid/shadowbid/core"
)

// Recoverable escrow errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds in source account")
	ErrEscrowExists      = errors.New("escrow already open for auction")
	ErrEscrowNotFound    = errors.New("no escrow open for auction")
	ErrUnauthorized      = errors.New("release token does not match escrow authority")
)

// Fault is an internal consistency failure: the escrow's bookkeeping
// contradicts itself (e.g. a release finds the balance short even though
// every deposit was recorded). It indicates a bug, not a caller mistake, and
// is deliberately a distinct type from the recoverable errors above.
type Fault struct {
	msg string
}

func (f *Fault) Error() string { return "escrow fault: " + f.msg }

// IsFault reports whether err is an internal consistency fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// ReceiptKind discriminates vault movements.
type ReceiptKind string

const (
	ReceiptDeposit ReceiptKind = "deposit"
	ReceiptRelease ReceiptKind = "release"
)

// Receipt records a single fund movement through the vault.
type Receipt struct {
	ID        uuid.UUID       `json:"id"`
	Kind      ReceiptKind     `json:"kind"`
	Auction   core.AuctionKey `json:"auction"`
	From      core.AccountID  `json:"from,omitempty"`
	To        core.AccountID  `json:"to,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// escrowAccount tracks one auction's custody. Running deposit and release
// totals back the fund-conservation invariant:
// deposited == released + balance, always.
type escrowAccount struct {
	balance   decimal.Decimal
	deposited decimal.Decimal
	released  decimal.Decimal
}

// Vault holds custody of deposited funds, one escrow account per auction.
// Releases require a capability token derived from the vault's domain secret
// and the auction key; see authority.go.
type Vault struct {
	mu      sync.Mutex
	bank    *Bank
	secret  []byte
	escrows map[core.AuctionKey]*escrowAccount
}

// NewVault creates a vault over the given bank. If secret is nil a random
// domain secret is generated, which is the normal mode: the secret never
// needs to leave the process.
func NewVault(bank *Bank, secret []byte) (*Vault, error) {
	if secret == nil {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate vault secret: %w", err)
		}
	}
	return &Vault{
		bank:    bank,
		secret:  secret,
		escrows: make(map[core.AuctionKey]*escrowAccount),
	}, nil
}

// Open creates the escrow account for an auction. Called once at auction
// creation; the account is retained after the auction reaches a terminal
// state.
func (v *Vault) Open(key core.AuctionKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.escrows[key]; exists {
		return ErrEscrowExists
	}
	v.escrows[key] = &escrowAccount{
		balance:   decimal.Zero,
		deposited: decimal.Zero,
		released:  decimal.Zero,
	}
	return nil
}

// AuthorityFor returns the release capability for one auction's escrow.
// Only holders of the vault (i.e. the auction state machine) can call this;
// the token is scoped to the single auction and useless elsewhere.
func (v *Vault) AuthorityFor(key core.AuctionKey) Token {
	return deriveToken(v.secret, key)
}

// Deposit moves amount from the source account into the auction's escrow.
// Fails with ErrInsufficientFunds if the source balance is short; no state
// changes on failure.
func (v *Vault) Deposit(key core.AuctionKey, from core.AccountID, amount decimal.Decimal) (*Receipt, error) {
	if !amount.IsPositive() {
		return nil, core.ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	account, ok := v.escrows[key]
	if !ok {
		return nil, ErrEscrowNotFound
	}

	if err := v.bank.debit(from, amount); err != nil {
		return nil, err
	}

	account.balance = account.balance.Add(amount)
	account.deposited = account.deposited.Add(amount)

	receipt := &Receipt{
		ID:        uuid.New(),
		Kind:      ReceiptDeposit,
		Auction:   key,
		From:      from,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
	log.Printf("INFO: Escrow deposit: auction=%s from=%s amount=%s balance=%s",
		key, from, amount, account.balance)
	return receipt, nil
}

// Release moves amount out of the auction's escrow to the destination
// account. The token must match the escrow authority for this specific
// auction. A short escrow balance here means the ledger invariants were
// already broken, so it surfaces as a Fault rather than a user error.
func (v *Vault) Release(key core.AuctionKey, to core.AccountID, amount decimal.Decimal, token Token) (*Receipt, error) {
	if !amount.IsPositive() {
		return nil, core.ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	account, ok := v.escrows[key]
	if !ok {
		return nil, ErrEscrowNotFound
	}

	if !tokenMatches(deriveToken(v.secret, key), token) {
		return nil, ErrUnauthorized
	}

	if account.balance.LessThan(amount) {
		return nil, &Fault{msg: fmt.Sprintf(
			"escrow balance short for auction %s: have %s, releasing %s",
			key, account.balance, amount)}
	}

	account.balance = account.balance.Sub(amount)
	account.released = account.released.Add(amount)
	v.bank.credit(to, amount)

	receipt := &Receipt{
		ID:        uuid.New(),
		Kind:      ReceiptRelease,
		Auction:   key,
		To:        to,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
	log.Printf("INFO: Escrow release: auction=%s to=%s amount=%s balance=%s",
		key, to, amount, account.balance)
	return receipt, nil
}

// Balance returns the auction's current escrow balance.
func (v *Vault) Balance(key core.AuctionKey) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	account, ok := v.escrows[key]
	if !ok {
		return decimal.Zero, ErrEscrowNotFound
	}
	return account.balance, nil
}

// Deposited returns the running total ever deposited for the auction.
func (v *Vault) Deposited(key core.AuctionKey) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	account, ok := v.escrows[key]
	if !ok {
		return decimal.Zero, ErrEscrowNotFound
	}
	return account.deposited, nil
}

// Released returns the running total ever released for the auction.
func (v *Vault) Released(key core.AuctionKey) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	account, ok := v.escrows[key]
	if !ok {
		return decimal.Zero, ErrEscrowNotFound
	}
	return account.released, nil
}
