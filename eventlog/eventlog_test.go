package eventlog

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/shadowbid/shadowbid/core"
)

// recordingSink captures published events for assertions.
type recordingSink struct {
	events []Event
	fail   bool
}

func (s *recordingSink) Publish(event Event) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func TestLog_AppendAndQuery(t *testing.T) {
	l := New()
	key1 := core.AuctionKey{Creator: "alice", AuctionID: 1}
	key2 := core.AuctionKey{Creator: "alice", AuctionID: 2}

	l.Append(AuctionCreated, key1, AuctionCreatedPayload{ItemName: "painting", ReservePrice: "100"})
	l.Append(AuctionStarted, key1, AuctionStartedPayload{})
	l.Append(AuctionCreated, key2, AuctionCreatedPayload{ItemName: "vase", ReservePrice: "50"})

	check.Equal(t, 3, len(l.Entries()))

	forKey1 := l.EntriesFor(key1)
	check.Equal(t, 2, len(forKey1))
	check.Equal(t, AuctionCreated, forKey1[0].Type)
	check.Equal(t, AuctionStarted, forKey1[1].Type)

	var payload AuctionCreatedPayload
	assert.NoError(t, cbor.Unmarshal(forKey1[0].Payload, &payload))
	check.Equal(t, "painting", payload.ItemName)
	check.Equal(t, "100", payload.ReservePrice)
}

func TestLog_FansOutToSinks(t *testing.T) {
	sink := &recordingSink{}
	l := New(sink)
	key := core.AuctionKey{Creator: "alice", AuctionID: 1}

	l.Append(BidPlaced, key, BidPlacedPayload{Bidder: "bob", SealedBidHash: "abc"})

	assert.Equal(t, 1, len(sink.events))
	check.Equal(t, BidPlaced, sink.events[0].Type)
	check.Equal(t, key, sink.events[0].Auction)
}

func TestLog_SinkFailureDoesNotLoseEntry(t *testing.T) {
	sink := &recordingSink{fail: true}
	l := New(sink)
	key := core.AuctionKey{Creator: "alice", AuctionID: 1}

	l.Append(AuctionCancelled, key, AuctionCancelledPayload{})

	// The sink failed but the log still holds the entry
	check.Equal(t, 1, len(l.Entries()))
	check.Equal(t, 0, len(sink.events))
}

func TestLog_EntriesReturnsCopy(t *testing.T) {
	l := New()
	key := core.AuctionKey{Creator: "alice", AuctionID: 1}
	l.Append(AuctionCreated, key, nil)

	entries := l.Entries()
	entries[0].Type = "mutated"

	check.Equal(t, AuctionCreated, l.Entries()[0].Type)
}
