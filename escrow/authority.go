package escrow

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/shadowbid/shadowbid/core"
)

// Token is a release capability scoped to a single auction's escrow. It is
// derived from the vault's domain secret, so only code holding the auction's
// creation authority (the state machine that owns the vault) can compute it.
// There is no free-standing signer: a token for one auction is useless
// against any other auction's escrow.
type Token [32]byte

const tokenDomain = "shadowbid/escrow/v1"

// deriveToken computes the capability token for one auction's escrow.
//
// Formula: HMAC-SHA256(secret, domain + "|" + auction_key)
func deriveToken(secret []byte, key core.AuctionKey) Token {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(tokenDomain))
	mac.Write([]byte("|"))
	mac.Write([]byte(key.String()))

	var token Token
	copy(token[:], mac.Sum(nil))
	return token
}

// tokenMatches compares tokens in constant time.
func tokenMatches(a, b Token) bool {
	return hmac.Equal(a[:], b[:])
}
