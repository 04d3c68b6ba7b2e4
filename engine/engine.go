// Package engine implements the auction state machine: the authoritative
// status of every auction and the rules governing how auctions and bids move
// through their lifecycles, with funds locked in escrow until settlement.
//
// Transitions for one auction are serialized behind a single per-auction
// lock covering status, bid count, ledger head and escrow balance. Different
// auctions proceed fully in parallel.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shadowbid/shadowbid/core"
	"github.com/shadowbid/shadowbid/escrow"
	"github.com/shadowbid/shadowbid/eventlog"
	"github.com/shadowbid/shadowbid/ledger"
	"github.com/shadowbid/shadowbid/mpc"
	"github.com/shadowbid/shadowbid/validation"
)

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	// Clock overrides the wall clock, for tests.
	Clock Clock

	// EventSinks receive every state transition event (e.g. a NATS
	// publisher). Delivery is best-effort.
	EventSinks []eventlog.Sink

	// VaultSecret pins the escrow capability derivation secret. Leave nil
	// to generate a random one.
	VaultSecret []byte
}

// Engine owns the process-wide auction registry. Auctions are created
// explicitly and retained forever: terminal states are kept for audit, never
// torn down.
type Engine struct {
	clock       Clock
	vault       *escrow.Vault
	ledger      *ledger.Ledger
	events      *eventlog.Log
	validator   *validation.ResultValidator
	coordinator mpc.Coordinator

	mu       sync.RWMutex
	auctions map[core.AuctionKey]*auctionHandle
}

// auctionHandle is the unit of mutual exclusion for one auction.
type auctionHandle struct {
	mu      sync.Mutex
	auction *core.Auction
}

// New creates an engine over the given fund ledger and MPC collaborator.
func New(bank *escrow.Bank, coordinator mpc.Coordinator, verifier mpc.ProofVerifier, opts Options) (*Engine, error) {
	vault, err := escrow.NewVault(bank, opts.VaultSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create escrow vault: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = defaultClock
	}
	return &Engine{
		clock:       clock,
		vault:       vault,
		ledger:      ledger.New(),
		events:      eventlog.New(opts.EventSinks...),
		validator:   validation.NewResultValidator(verifier),
		coordinator: coordinator,
		auctions:    make(map[core.AuctionKey]*auctionHandle),
	}, nil
}

// Vault exposes the escrow vault for balance and conservation queries.
func (e *Engine) Vault() *escrow.Vault { return e.vault }

// Events exposes the transition event log.
func (e *Engine) Events() *eventlog.Log { return e.events }

// CreateAuctionParams carries everything needed to open a new auction.
type CreateAuctionParams struct {
	Creator          core.AccountID
	AuctionID        uint64
	StartTime        time.Time
	EndTime          time.Time
	ReservePrice     decimal.Decimal
	ItemName         string
	ItemDescription  string
	MPCComputationID [32]byte
}

// CreateAuction validates the parameters and registers a new Pending
// auction with an open escrow account. All validation happens before any
// state is touched.
func (e *Engine) CreateAuction(params CreateAuctionParams) (*core.Auction, error) {
	now := e.clock.Now()

	if !params.EndTime.After(params.StartTime) {
		return nil, core.ErrInvalidTimeRange
	}
	if params.StartTime.Before(now) {
		return nil, core.ErrStartTimeInPast
	}
	if len(params.ItemName) > core.MaxItemNameLen {
		return nil, core.ErrNameTooLong
	}
	if len(params.ItemDescription) > core.MaxItemDescriptionLen {
		return nil, core.ErrDescriptionTooLong
	}
	if params.ReservePrice.IsNegative() {
		return nil, core.ErrInvalidAmount
	}

	key := core.AuctionKey{Creator: params.Creator, AuctionID: params.AuctionID}

	e.mu.Lock()
	if _, exists := e.auctions[key]; exists {
		e.mu.Unlock()
		return nil, core.ErrAuctionExists
	}
	auction := &core.Auction{
		Key:              key,
		StartTime:        params.StartTime,
		EndTime:          params.EndTime,
		ReservePrice:     params.ReservePrice,
		ItemName:         params.ItemName,
		ItemDescription:  params.ItemDescription,
		Status:           core.AuctionPending,
		MPCComputationID: params.MPCComputationID,
		CreatedAt:        now,
	}
	e.auctions[key] = &auctionHandle{auction: auction}
	e.mu.Unlock()

	if err := e.vault.Open(key); err != nil {
		return nil, fmt.Errorf("failed to open escrow for auction %s: %w", key, err)
	}

	e.events.Append(eventlog.AuctionCreated, key, eventlog.AuctionCreatedPayload{
		StartTime:        params.StartTime,
		EndTime:          params.EndTime,
		ReservePrice:     params.ReservePrice.String(),
		ItemName:         params.ItemName,
		MPCComputationID: params.MPCComputationID[:],
	})
	log.Printf("INFO: Auction created: %s reserve=%s window=[%s, %s)",
		key, params.ReservePrice, params.StartTime.Format(time.RFC3339), params.EndTime.Format(time.RFC3339))

	snapshot := *auction
	return &snapshot, nil
}

// handle looks up the registry entry for an auction.
func (e *Engine) handle(key core.AuctionKey) (*auctionHandle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.auctions[key]
	if !ok {
		return nil, core.ErrAuctionNotFound
	}
	return h, nil
}

// Get returns a snapshot of the auction's current state.
func (e *Engine) Get(key core.AuctionKey) (*core.Auction, error) {
	h, err := e.handle(key)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	snapshot := *h.auction
	return &snapshot, nil
}

// StartAuction moves a Pending auction to Active. Only the creator may
// start it, and not before its start time.
func (e *Engine) StartAuction(key core.AuctionKey, caller core.AccountID) error {
	h, err := e.handle(key)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	auction := h.auction
	if caller != auction.Key.Creator {
		return core.ErrNotAuthority
	}
	if auction.Status != core.AuctionPending {
		return core.ErrAuctionAlreadyStarted
	}
	now := e.clock.Now()
	if now.Before(auction.StartTime) {
		return core.ErrTooEarlyToStart
	}

	auction.Status = core.AuctionActive
	e.events.Append(eventlog.AuctionStarted, key, eventlog.AuctionStartedPayload{Timestamp: now})
	log.Printf("INFO: Auction started: %s", key)
	return nil
}

// PlaceBid appends a bid record and moves the custodied amount into escrow,
// atomically with respect to every other transition on the same auction.
// The sealed payload and validity proof are stored opaquely; only their
// sizes are checked.
func (e *Engine) PlaceBid(key core.AuctionKey, bidder core.AccountID, amount decimal.Decimal, sealedPayload, validityProof []byte) (*core.BidRecord, *escrow.Receipt, error) {
	if !amount.IsPositive() {
		return nil, nil, core.ErrInvalidAmount
	}
	if len(sealedPayload) > core.MaxSealedPayloadLen {
		return nil, nil, core.ErrSealedPayloadSize
	}
	if len(validityProof) > core.MaxValidityProofLen {
		return nil, nil, core.ErrValidityProofSize
	}

	h, err := e.handle(key)
	if err != nil {
		return nil, nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	auction := h.auction
	if auction.Status != core.AuctionActive {
		return nil, nil, core.ErrAuctionNotActive
	}
	now := e.clock.Now()
	if now.Before(auction.StartTime) {
		return nil, nil, core.ErrAuctionNotStarted
	}
	if !now.Before(auction.EndTime) {
		return nil, nil, core.ErrAuctionEnded
	}

	// One active bid per bidder: checked before the deposit so a rejected
	// re-bid moves no funds.
	if _, exists := e.ledger.FindByBidder(key, bidder); exists {
		return nil, nil, core.ErrBidAlreadyActive
	}

	receipt, err := e.vault.Deposit(key, bidder, amount)
	if err != nil {
		return nil, nil, err
	}

	record, err := e.ledger.Append(auction, bidder, amount, sealedPayload, validityProof, now)
	if err != nil {
		// Unreachable while transitions are serialized per auction; the
		// duplicate check above already ran under the same lock.
		return nil, nil, err
	}
	auction.BidCount++

	sealedHash := core.ComputeSealedBidHash(record.SealedPayload)
	e.events.Append(eventlog.BidPlaced, key, eventlog.BidPlacedPayload{
		Bidder:        bidder,
		SealedBidHash: sealedHash,
		Timestamp:     now,
	})
	log.Printf("INFO: Bid placed: auction=%s bidder=%s amount=%s hash=%s", key, bidder, amount, sealedHash)

	snapshot := *record
	return &snapshot, receipt, nil
}

// RequestClose submits the auction's sealed bid set to the MPC collaborator
// for winner computation. Fire-and-forget: no local state changes until the
// result comes back through ApplyResult. Only the creator may request it.
func (e *Engine) RequestClose(ctx context.Context, key core.AuctionKey, caller core.AccountID) (mpc.Handle, error) {
	h, err := e.handle(key)
	if err != nil {
		return mpc.Handle{}, err
	}

	h.mu.Lock()
	auction := h.auction
	if caller != auction.Key.Creator {
		h.mu.Unlock()
		return mpc.Handle{}, core.ErrNotAuthority
	}
	if auction.Status != core.AuctionActive {
		h.mu.Unlock()
		return mpc.Handle{}, core.ErrAuctionNotActive
	}

	sealedPayloads := make([][]byte, 0, auction.BidCount)
	cursor := e.ledger.Traverse(auction.LedgerHead)
	for {
		record, ok := cursor.Next()
		if !ok {
			break
		}
		sealedPayloads = append(sealedPayloads, record.SealedPayload)
	}
	h.mu.Unlock()

	// The external call happens outside the auction lock; it may be slow
	// and must not block concurrent bids.
	handle, err := e.coordinator.RequestWinnerComputation(ctx, key, sealedPayloads)
	if err != nil {
		return mpc.Handle{}, fmt.Errorf("winner computation request failed: %w", err)
	}
	log.Printf("INFO: Winner computation requested: auction=%s handle=%s", key, handle)
	return handle, nil
}

// ApplyResult applies an externally delivered winner determination, moving
// the auction from Active to Closed. The result is untrusted: it must pass
// the validator before any state changes. Replays are harmless because the
// Active precondition turns false after the first application.
func (e *Engine) ApplyResult(key core.AuctionKey, result *mpc.Result) error {
	h, err := e.handle(key)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return e.applyResultLocked(h.auction, result)
}

// CloseByTimeout is the creator-driven path to the same Closed transition,
// for when the MPC callback never arrives and the result is fetched
// manually. Identical preconditions and validation as ApplyResult, plus the
// caller must hold the creation authority.
func (e *Engine) CloseByTimeout(key core.AuctionKey, caller core.AccountID, result *mpc.Result) error {
	h, err := e.handle(key)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if caller != h.auction.Key.Creator {
		return core.ErrNotAuthority
	}
	return e.applyResultLocked(h.auction, result)
}

// applyResultLocked holds the Active→Closed transition logic shared by both
// close paths. Caller must hold the auction lock.
func (e *Engine) applyResultLocked(auction *core.Auction, result *mpc.Result) error {
	if auction.Status != core.AuctionActive {
		return core.ErrAuctionNotActive
	}
	if e.clock.Now().Before(auction.EndTime) {
		return core.ErrAuctionNotEnded
	}

	outcome, err := e.validator.ValidateResult(auction, e.ledger.Traverse(auction.LedgerHead), result)
	if err != nil {
		log.Printf("WARNING: Result validation errored for auction %s: %v", auction.Key, err)
		return fmt.Errorf("%w: %v", core.ErrRejectedResult, err)
	}
	if !outcome.IsValid() {
		log.Printf("WARNING: Result rejected for auction %s: %s",
			auction.Key, strings.Join(outcome.ValidationDetails, "; "))
		return fmt.Errorf("%w: %s", core.ErrRejectedResult, strings.Join(outcome.ValidationDetails, "; "))
	}

	auction.Status = core.AuctionClosed
	auction.Winner = result.Winner
	auction.WinningAmount = result.WinningAmount

	e.events.Append(eventlog.AuctionClosed, auction.Key, eventlog.AuctionClosedPayload{
		Winner:        result.Winner,
		WinningAmount: result.WinningAmount.String(),
		TotalBids:     auction.BidCount,
	})
	log.Printf("INFO: Auction closed: %s winner=%s amount=%s bids=%d",
		auction.Key, result.Winner, result.WinningAmount, auction.BidCount)
	return nil
}

// Settle releases the winning amount from escrow to the auction creator and
// marks the winning record Won. Only the winner may settle, and only once.
func (e *Engine) Settle(key core.AuctionKey, caller core.AccountID) (*escrow.Receipt, error) {
	h, err := e.handle(key)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	auction := h.auction
	if auction.Status != core.AuctionClosed {
		return nil, core.ErrAuctionNotClosed
	}
	if caller != auction.Winner {
		return nil, core.ErrNotWinner
	}

	record, ok := e.ledger.FindByBidder(key, auction.Winner)
	if !ok {
		return nil, core.ErrBidNotFound
	}
	if record.Status != core.BidActive {
		return nil, core.ErrBidAlreadyProcessed
	}

	receipt, err := e.vault.Release(key, auction.Key.Creator, auction.WinningAmount, e.vault.AuthorityFor(key))
	if err != nil {
		return nil, err
	}
	if err := e.ledger.SetStatus(record.ID, core.BidWon); err != nil {
		// Cannot happen while this lock is held; the record was Active above.
		log.Printf("ERROR: Failed to mark winning bid %s: %v", record.ID, err)
	}

	e.events.Append(eventlog.AuctionSettled, key, eventlog.AuctionSettledPayload{
		Winner: auction.Winner,
		Amount: auction.WinningAmount.String(),
	})
	log.Printf("INFO: Auction settled: %s winner=%s amount=%s", key, auction.Winner, auction.WinningAmount)
	return receipt, nil
}

// RefundBid returns one losing bidder's custodied amount. Permissionless:
// anyone may crank refunds once the auction is Closed, but each record is
// refunded at most once and the winner's record never.
func (e *Engine) RefundBid(key core.AuctionKey, bidder core.AccountID) (*escrow.Receipt, error) {
	h, err := e.handle(key)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return e.refundLocked(h.auction, bidder)
}

// refundLocked performs one refund under the auction lock.
func (e *Engine) refundLocked(auction *core.Auction, bidder core.AccountID) (*escrow.Receipt, error) {
	if auction.Status != core.AuctionClosed {
		return nil, core.ErrAuctionNotClosed
	}
	record, ok := e.ledger.FindByBidder(auction.Key, bidder)
	if !ok {
		return nil, core.ErrBidNotFound
	}
	if record.Status != core.BidActive {
		return nil, core.ErrBidAlreadyProcessed
	}
	if record.Bidder == auction.Winner {
		return nil, core.ErrCannotRefundWinner
	}

	receipt, err := e.vault.Release(auction.Key, record.Bidder, record.Amount, e.vault.AuthorityFor(auction.Key))
	if err != nil {
		return nil, err
	}
	if err := e.ledger.SetStatus(record.ID, core.BidRefunded); err != nil {
		log.Printf("ERROR: Failed to mark refunded bid %s: %v", record.ID, err)
	}

	e.events.Append(eventlog.BidRefunded, auction.Key, eventlog.BidRefundedPayload{
		Bidder: record.Bidder,
		Amount: record.Amount.String(),
	})
	log.Printf("INFO: Bid refunded: auction=%s bidder=%s amount=%s", auction.Key, record.Bidder, record.Amount)
	return receipt, nil
}

// SweepRefunds walks the full bid chain of a Closed auction and refunds
// every remaining Active record except the winner's. Returns the receipts
// for the refunds performed.
func (e *Engine) SweepRefunds(key core.AuctionKey) ([]*escrow.Receipt, error) {
	h, err := e.handle(key)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	auction := h.auction
	if auction.Status != core.AuctionClosed {
		return nil, core.ErrAuctionNotClosed
	}

	var receipts []*escrow.Receipt
	cursor := e.ledger.Traverse(auction.LedgerHead)
	for {
		record, ok := cursor.Next()
		if !ok {
			break
		}
		if record.Status != core.BidActive || record.Bidder == auction.Winner {
			continue
		}
		receipt, err := e.refundLocked(auction, record.Bidder)
		if err != nil {
			return receipts, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// CancelAuction moves a Pending or Active auction with no bids to
// Cancelled. Once any bid exists, cancellation is permanently unavailable.
func (e *Engine) CancelAuction(key core.AuctionKey, caller core.AccountID) error {
	h, err := e.handle(key)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	auction := h.auction
	if caller != auction.Key.Creator {
		return core.ErrNotAuthority
	}
	if auction.BidCount > 0 {
		return core.ErrCannotCancelWithBids
	}
	if auction.Status != core.AuctionPending && auction.Status != core.AuctionActive {
		return core.ErrCannotCancelClosed
	}

	auction.Status = core.AuctionCancelled
	e.events.Append(eventlog.AuctionCancelled, key, eventlog.AuctionCancelledPayload{})
	log.Printf("INFO: Auction cancelled: %s", key)
	return nil
}

// Bids returns a cursor over the auction's bid chain, newest first, for
// audits. The cursor sees a consistent snapshot as of this call.
func (e *Engine) Bids(key core.AuctionKey) (*ledger.Cursor, error) {
	h, err := e.handle(key)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	head := h.auction.LedgerHead
	h.mu.Unlock()
	return e.ledger.Traverse(head), nil
}
