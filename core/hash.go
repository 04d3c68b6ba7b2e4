package core

import (
	"crypto/sha256"
	"fmt"

	"github.com/shopspring/decimal"
)

// ComputeSealedBidHash computes the content hash of a sealed bid payload.
// The hash is carried on BidPlaced events so observers can bind a bid record
// to its opaque payload without ever seeing the plaintext.
//
// Formula: SHA256(payload), hex-encoded.
func ComputeSealedBidHash(sealedPayload []byte) string {
	hash := sha256.Sum256(sealedPayload)
	return fmt.Sprintf("%x", hash)
}

// ComputeResultBinding computes the digest that binds a reported winner
// determination to one auction. Both the result validator and any external
// auditor derive it the same way.
//
// Formula: SHA256(auction_key + "|" + winner + "|" + amount)
// The amount is rendered with decimal string formatting so the digest is
// independent of any floating-point representation.
func ComputeResultBinding(key AuctionKey, winner AccountID, winningAmount decimal.Decimal) string {
	data := fmt.Sprintf("%s|%s|%s", key, winner, winningAmount.String())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
