// Package mpc defines the boundary to the external multi-party computation
// collaborator: sealing bid amounts, requesting winner computations, and
// verifying the proofs that come back. The core trusts nothing across this
// boundary until a proof verifies.
package mpc

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shadowbid/shadowbid/core"
)

// Handle identifies one in-flight winner computation at the MPC service.
type Handle = uuid.UUID

// Result is the winner determination delivered by the MPC service. It is
// untrusted input: the validator checks it against the recorded bid set and
// verifies ComputationProof before it may drive any state transition.
type Result struct {
	Winner           core.AccountID  `json:"winner"`
	WinningAmount    decimal.Decimal `json:"winning_amount"`
	ComputationProof []byte          `json:"computation_proof"`
}

// PublicInputs binds a computation proof to one auction and its recorded bid
// set. Both the prover and the verifier derive the same canonical encoding,
// so a proof for one auction (or one bid set) cannot be replayed against
// another.
type PublicInputs struct {
	Auction         string   `cbor:"auction"`
	Winner          string   `cbor:"winner"`
	WinningAmount   string   `cbor:"winning_amount"`
	SealedBidHashes []string `cbor:"sealed_bid_hashes"`
}

// canonical CBOR so the prover and verifier agree byte-for-byte
var encMode, _ = cbor.CanonicalEncOptions().EncMode()

// Encode returns the canonical CBOR encoding of the public inputs.
func (p PublicInputs) Encode() ([]byte, error) {
	return encMode.Marshal(p)
}

// NewPublicInputs assembles public inputs from core domain values.
func NewPublicInputs(key core.AuctionKey, winner core.AccountID, winningAmount decimal.Decimal, sealedBidHashes []string) PublicInputs {
	return PublicInputs{
		Auction:         key.String(),
		Winner:          string(winner),
		WinningAmount:   winningAmount.String(),
		SealedBidHashes: sealedBidHashes,
	}
}

// Sealer produces the opaque attachments stored on a bid record. The core
// never interprets its output.
type Sealer interface {
	EncryptAndProve(amount decimal.Decimal, bidder core.AccountID) (sealedPayload, validityProof []byte, err error)
}

// Coordinator is the request side of the winner computation. The request is
// fire-and-forget; the result arrives later, out of band, and is fed to the
// state machine as an independent transition.
type Coordinator interface {
	RequestWinnerComputation(ctx context.Context, key core.AuctionKey, sealedPayloads [][]byte) (Handle, error)

	// DeliverResult fetches the finished computation for a handle.
	DeliverResult(ctx context.Context, handle Handle) (*Result, error)
}

// ProofVerifier decides whether a computation proof vouches for the given
// public inputs. Pure: no state, no side effects.
type ProofVerifier interface {
	VerifyComputationProof(proof []byte, inputs PublicInputs) (bool, error)
}
