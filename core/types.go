package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountID identifies a participant in the system (auction creator or bidder).
type AccountID string

// AuctionKey uniquely identifies an auction. Auction ids are scoped per
// creator, so the pair is the global identity.
type AuctionKey struct {
	Creator   AccountID `json:"creator"`
	AuctionID uint64    `json:"auction_id"`
}

// String renders the key in "creator/id" form, used in log lines and event
// subjects.
func (k AuctionKey) String() string {
	return fmt.Sprintf("%s/%d", k.Creator, k.AuctionID)
}

// AuctionStatus is the lifecycle state of an auction.
// Legal transitions: Pending → Active → Closed, with Pending → Cancelled and
// Active → Cancelled as alternate terminal edges. Closed and Cancelled are
// terminal.
type AuctionStatus string

const (
	AuctionPending   AuctionStatus = "pending"
	AuctionActive    AuctionStatus = "active"
	AuctionClosed    AuctionStatus = "closed"
	AuctionCancelled AuctionStatus = "cancelled"
)

// BidStatus is the lifecycle state of a bid record. A record leaves Active at
// most once; Won, Lost and Refunded are terminal.
type BidStatus string

const (
	BidActive   BidStatus = "active"
	BidWon      BidStatus = "won"
	BidLost     BidStatus = "lost"
	BidRefunded BidStatus = "refunded"
)

// Metadata and attachment size limits, checked before any state mutation.
const (
	MaxItemNameLen        = 64
	MaxItemDescriptionLen = 256
	MaxSealedPayloadLen   = 256
	MaxValidityProofLen   = 256
)

// Auction is the authoritative record for one sealed-bid auction.
// It is created once, mutated only by the state machine's transition
// operations, and retained forever (terminal states are kept for audit).
type Auction struct {
	Key             AuctionKey      `json:"key"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	ReservePrice    decimal.Decimal `json:"reserve_price"`
	ItemName        string          `json:"item_name"`
	ItemDescription string          `json:"item_description"`
	Status          AuctionStatus   `json:"status"`

	// BidCount increments exactly once per accepted bid and never decreases.
	BidCount uint32 `json:"bid_count"`

	// LedgerHead references the most recently appended bid record, or
	// uuid.Nil if none. The ledger owns the records; this is a reference.
	LedgerHead uuid.UUID `json:"ledger_head"`

	// Winner and WinningAmount are set exactly once, on the transition to
	// Closed driven by a validated computation result. Until then Winner is
	// empty and WinningAmount is zero.
	Winner        AccountID       `json:"winner"`
	WinningAmount decimal.Decimal `json:"winning_amount"`

	// MPCComputationID binds the auction to its registered winner
	// computation at the external MPC service.
	MPCComputationID [32]byte `json:"mpc_computation_id"`

	CreatedAt time.Time `json:"created_at"`
}

// BidRecord is one accepted bid. Immutable after creation except for Status.
// Records form a singly-linked list per auction via Prev, newest first.
type BidRecord struct {
	ID      uuid.UUID  `json:"id"`
	Auction AuctionKey `json:"auction"`
	Bidder  AccountID  `json:"bidder"`

	// Amount is the custodied amount actually transferred into escrow for
	// this bid. The sealed "true" bid value lives in SealedPayload and is
	// never inspected here.
	Amount decimal.Decimal `json:"amount"`

	// SealedPayload and ValidityProof are opaque attachments produced by the
	// external cryptography collaborator. The core stores and hashes them
	// but never interprets them.
	SealedPayload []byte `json:"sealed_payload"`
	ValidityProof []byte `json:"validity_proof"`

	// Prev is the id of the chronologically previous bid in the same
	// auction, or uuid.Nil for the first bid.
	Prev uuid.UUID `json:"prev"`

	Timestamp time.Time `json:"timestamp"`
	Status    BidStatus `json:"status"`
}
