// Package eventlog records every successful state transition for external
// observers. The log is derived, append-only, and never read back by the
// core to make decisions.
package eventlog

import (
	"log"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/shadowbid/shadowbid/core"
)

// Type discriminates event entries.
type Type string

const (
	AuctionCreated   Type = "auction_created"
	AuctionStarted   Type = "auction_started"
	BidPlaced        Type = "bid_placed"
	AuctionClosed    Type = "auction_closed"
	AuctionSettled   Type = "auction_settled"
	BidRefunded      Type = "bid_refunded"
	AuctionCancelled Type = "auction_cancelled"
)

// Event is one log entry: the transition kind plus a CBOR-encoded snapshot
// of the resulting state.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      Type            `json:"type"`
	Auction   core.AuctionKey `json:"auction"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   cbor.RawMessage `json:"payload"`
}

// Per-type payloads. Amounts are rendered as decimal strings so the encoded
// form is representation-independent.

type AuctionCreatedPayload struct {
	StartTime        time.Time `cbor:"start_time"`
	EndTime          time.Time `cbor:"end_time"`
	ReservePrice     string    `cbor:"reserve_price"`
	ItemName         string    `cbor:"item_name"`
	MPCComputationID []byte    `cbor:"mpc_computation_id"`
}

type AuctionStartedPayload struct {
	Timestamp time.Time `cbor:"timestamp"`
}

type BidPlacedPayload struct {
	Bidder        core.AccountID `cbor:"bidder"`
	SealedBidHash string         `cbor:"sealed_bid_hash"`
	Timestamp     time.Time      `cbor:"timestamp"`
}

type AuctionClosedPayload struct {
	Winner        core.AccountID `cbor:"winner"`
	WinningAmount string         `cbor:"winning_amount"`
	TotalBids     uint32         `cbor:"total_bids"`
}

type AuctionSettledPayload struct {
	Winner core.AccountID `cbor:"winner"`
	Amount string         `cbor:"amount"`
}

type BidRefundedPayload struct {
	Bidder core.AccountID `cbor:"bidder"`
	Amount string         `cbor:"amount"`
}

type AuctionCancelledPayload struct{}

// Sink receives every appended event. Delivery is best-effort: a failing
// sink never blocks or fails the transition that produced the event.
type Sink interface {
	Publish(event Event) error
}

// Log is the in-process append-only event log.
type Log struct {
	mu      sync.Mutex
	entries []Event
	sinks   []Sink
}

// New creates a log with optional sinks.
func New(sinks ...Sink) *Log {
	return &Log{sinks: sinks}
}

// Append records an event and fans it out to the sinks. Payload encoding
// failures only affect the snapshot, never the transition: the entry is
// still appended with an empty payload.
func (l *Log) Append(eventType Type, key core.AuctionKey, payload any) {
	var raw cbor.RawMessage
	if payload != nil {
		encoded, err := cbor.Marshal(payload)
		if err != nil {
			log.Printf("ERROR: Failed to encode %s payload for auction %s: %v", eventType, key, err)
		} else {
			raw = encoded
		}
	}

	event := Event{
		ID:        uuid.New(),
		Type:      eventType,
		Auction:   key,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	l.mu.Lock()
	l.entries = append(l.entries, event)
	sinks := l.sinks
	l.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Publish(event); err != nil {
			log.Printf("WARNING: Event sink failed for %s on auction %s: %v", eventType, key, err)
		}
	}
}

// Entries returns a copy of the full log.
func (l *Log) Entries() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesFor returns a copy of the log filtered to one auction.
func (l *Log) EntriesFor(key core.AuctionKey) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0)
	for _, event := range l.entries {
		if event.Auction == key {
			out = append(out, event)
		}
	}
	return out
}
