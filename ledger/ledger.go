// Package ledger implements the append-only bid ledger: an arena of bid
// records keyed by opaque id, chained newest-to-oldest per auction through
// Prev id references. Ids, never pointers, cross the package boundary.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shadowbid/shadowbid/core"
)

// Ledger stores every bid record in the process, for all auctions.
// Records are immutable after creation except for Status, which leaves
// Active at most once.
type Ledger struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]*core.BidRecord
	byBidder map[core.AuctionKey]map[core.AccountID]uuid.UUID
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		records:  make(map[uuid.UUID]*core.BidRecord),
		byBidder: make(map[core.AuctionKey]map[core.AccountID]uuid.UUID),
	}
}

// Append creates a new bid record whose Prev is the auction's current ledger
// head, then advances the head to the new record. O(1).
//
// A bidder may hold at most one record per auction: a second bid while the
// first exists is rejected with core.ErrBidAlreadyActive rather than
// superseding it. The caller must hold the auction's transition lock, since
// this updates auction.LedgerHead.
func (l *Ledger) Append(auction *core.Auction, bidder core.AccountID, amount decimal.Decimal, sealedPayload, validityProof []byte, now time.Time) (*core.BidRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bidders, ok := l.byBidder[auction.Key]
	if !ok {
		bidders = make(map[core.AccountID]uuid.UUID)
		l.byBidder[auction.Key] = bidders
	}
	if _, exists := bidders[bidder]; exists {
		return nil, core.ErrBidAlreadyActive
	}

	record := &core.BidRecord{
		ID:            uuid.New(),
		Auction:       auction.Key,
		Bidder:        bidder,
		Amount:        amount,
		SealedPayload: append([]byte(nil), sealedPayload...),
		ValidityProof: append([]byte(nil), validityProof...),
		Prev:          auction.LedgerHead,
		Timestamp:     now,
		Status:        core.BidActive,
	}

	l.records[record.ID] = record
	bidders[bidder] = record.ID
	auction.LedgerHead = record.ID

	return record, nil
}

// Get returns a snapshot copy of the record with the given id.
func (l *Ledger) Get(id uuid.UUID) (core.BidRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.records[id]
	if !ok {
		return core.BidRecord{}, false
	}
	return *record, true
}

// FindByBidder returns a snapshot of the bidder's record on an auction.
func (l *Ledger) FindByBidder(key core.AuctionKey, bidder core.AccountID) (core.BidRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bidders, ok := l.byBidder[key]
	if !ok {
		return core.BidRecord{}, false
	}
	id, ok := bidders[bidder]
	if !ok {
		return core.BidRecord{}, false
	}
	return *l.records[id], true
}

// SetStatus moves a record out of Active. The Active → terminal transition
// happens at most once; any further attempt fails with
// core.ErrBidAlreadyProcessed.
func (l *Ledger) SetStatus(id uuid.UUID, status core.BidStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[id]
	if !ok {
		return core.ErrBidNotFound
	}
	if record.Status != core.BidActive {
		return core.ErrBidAlreadyProcessed
	}
	record.Status = status
	return nil
}

// Traverse returns a cursor over the chain starting at head, newest first.
// The cursor sees a consistent snapshot: records appended after the head was
// captured sit ahead of it in the chain and are never visited. Traversal is
// restartable by calling Traverse again with the same head.
func (l *Ledger) Traverse(head uuid.UUID) *Cursor {
	return &Cursor{ledger: l, next: head}
}

// Cursor walks a bid chain newest-to-oldest.
type Cursor struct {
	ledger *Ledger
	next   uuid.UUID
}

// Next returns a snapshot of the next record, or false when the chain is
// exhausted.
func (c *Cursor) Next() (core.BidRecord, bool) {
	if c.next == uuid.Nil {
		return core.BidRecord{}, false
	}

	c.ledger.mu.RLock()
	record, ok := c.ledger.records[c.next]
	c.ledger.mu.RUnlock()
	if !ok {
		// Head ids always come from Append; a dangling id means the caller
		// fabricated one.
		c.next = uuid.Nil
		return core.BidRecord{}, false
	}

	c.next = record.Prev
	return *record, true
}
