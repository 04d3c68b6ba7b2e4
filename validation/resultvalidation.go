// Package validation decides whether an externally reported winner
// determination may be trusted to drive the Closed transition. Rejection is
// non-fatal: the auction stays Active and the caller may retry with a
// corrected result.
package validation

import (
	"fmt"

	"github.com/shadowbid/shadowbid/core"
	"github.com/shadowbid/shadowbid/ledger"
	"github.com/shadowbid/shadowbid/mpc"
)

// ResultValidationResult contains the detailed outcome of validating one
// computation result. Call IsValid to check overall status.
type ResultValidationResult struct {
	ReservePriceMet   bool
	WinningBidFound   bool
	ProofValid        bool
	ValidationDetails []string
}

// IsValid returns true if every validation check passed.
func (r *ResultValidationResult) IsValid() bool {
	return r.ReservePriceMet && r.WinningBidFound && r.ProofValid
}

// ResultValidator validates MPC results against the recorded bid set and the
// external proof verifier.
type ResultValidator struct {
	verifier mpc.ProofVerifier
}

// NewResultValidator creates a validator over the given proof verifier.
func NewResultValidator(verifier mpc.ProofVerifier) *ResultValidator {
	return &ResultValidator{verifier: verifier}
}

// ValidateResult verifies that:
//   - the reported winning amount meets the auction's reserve price
//   - an Active bid record exists for (auction, winner) whose custodied
//     amount equals the reported winning amount
//   - the computation proof vouches for exactly this auction, winner, amount
//     and recorded bid set
//
// bids must be a cursor over the auction's ledger chain (newest first, the
// same order the sealed payloads were submitted for computation).
//
// Returns the detailed result, or an error only if validation could not be
// performed at all (e.g. the verifier failed on malformed input).
func (v *ResultValidator) ValidateResult(auction *core.Auction, bids *ledger.Cursor, result *mpc.Result) (*ResultValidationResult, error) {
	out := &ResultValidationResult{}

	// Reserve price check
	if result.WinningAmount.GreaterThanOrEqual(auction.ReservePrice) {
		out.ReservePriceMet = true
		out.ValidationDetails = append(out.ValidationDetails,
			fmt.Sprintf("Reserve price met: winning=%s reserve=%s", result.WinningAmount, auction.ReservePrice))
	} else {
		out.ValidationDetails = append(out.ValidationDetails,
			fmt.Sprintf("Winning amount %s is below reserve price %s", result.WinningAmount, auction.ReservePrice))
	}

	// Walk the recorded bid set once: collect sealed payload hashes and look
	// for the winner's record.
	sealedBidHashes := make([]string, 0, auction.BidCount)
	for {
		record, ok := bids.Next()
		if !ok {
			break
		}
		sealedBidHashes = append(sealedBidHashes, core.ComputeSealedBidHash(record.SealedPayload))

		if record.Bidder != result.Winner {
			continue
		}
		if !record.Amount.Equal(result.WinningAmount) {
			out.ValidationDetails = append(out.ValidationDetails,
				fmt.Sprintf("Winner record amount mismatch: recorded=%s reported=%s", record.Amount, result.WinningAmount))
			continue
		}
		if record.Status != core.BidActive {
			out.ValidationDetails = append(out.ValidationDetails,
				fmt.Sprintf("Winner record is not active: status=%s", record.Status))
			continue
		}
		out.WinningBidFound = true
		out.ValidationDetails = append(out.ValidationDetails,
			fmt.Sprintf("Winning bid record found for %s with amount %s", result.Winner, result.WinningAmount))
	}
	if !out.WinningBidFound {
		out.ValidationDetails = append(out.ValidationDetails,
			fmt.Sprintf("No active bid record matches winner %s at amount %s", result.Winner, result.WinningAmount))
	}

	// Computation proof check
	inputs := mpc.NewPublicInputs(auction.Key, result.Winner, result.WinningAmount, sealedBidHashes)
	valid, err := v.verifier.VerifyComputationProof(result.ComputationProof, inputs)
	if err != nil {
		return nil, fmt.Errorf("proof verification could not be performed: %w", err)
	}
	out.ProofValid = valid
	if valid {
		out.ValidationDetails = append(out.ValidationDetails, "Computation proof verified")
	} else {
		out.ValidationDetails = append(out.ValidationDetails,
			fmt.Sprintf("Computation proof does not vouch for binding %s",
				core.ComputeResultBinding(auction.Key, result.Winner, result.WinningAmount)))
	}

	return out, nil
}
