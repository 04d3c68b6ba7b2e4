package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestComputeSealedBidHash_Deterministic(t *testing.T) {
	payload := []byte("sealed-bid-payload")

	hash1 := ComputeSealedBidHash(payload)
	hash2 := ComputeSealedBidHash(payload)

	check.Equal(t, hash1, hash2)
	check.Equal(t, 64, len(hash1)) // SHA-256 hex
}

func TestComputeSealedBidHash_DifferentPayloads(t *testing.T) {
	hash1 := ComputeSealedBidHash([]byte("payload-a"))
	hash2 := ComputeSealedBidHash([]byte("payload-b"))

	check.NotEqual(t, hash1, hash2)
}

func TestComputeSealedBidHash_EmptyPayload(t *testing.T) {
	// Known SHA-256 of the empty string
	hash := ComputeSealedBidHash(nil)
	check.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hash)
}

func TestComputeResultBinding_Deterministic(t *testing.T) {
	key := AuctionKey{Creator: "creator-1", AuctionID: 7}

	hash1 := ComputeResultBinding(key, "bidder-a", decimal.NewFromInt(150))
	hash2 := ComputeResultBinding(key, "bidder-a", decimal.NewFromInt(150))

	check.Equal(t, hash1, hash2)
}

func TestComputeResultBinding_SensitiveToEveryField(t *testing.T) {
	key := AuctionKey{Creator: "creator-1", AuctionID: 7}
	base := ComputeResultBinding(key, "bidder-a", decimal.NewFromInt(150))

	otherKey := ComputeResultBinding(AuctionKey{Creator: "creator-1", AuctionID: 8}, "bidder-a", decimal.NewFromInt(150))
	otherWinner := ComputeResultBinding(key, "bidder-b", decimal.NewFromInt(150))
	otherAmount := ComputeResultBinding(key, "bidder-a", decimal.NewFromInt(151))

	check.NotEqual(t, base, otherKey)
	check.NotEqual(t, base, otherWinner)
	check.NotEqual(t, base, otherAmount)
}

func TestAuctionKey_String(t *testing.T) {
	key := AuctionKey{Creator: "alice", AuctionID: 42}
	check.Equal(t, "alice/42", key.String())
}
