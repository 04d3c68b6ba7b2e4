package mpc

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/veraison/go-cose"

	"github.com/shadowbid/shadowbid/core"
)

// sealedBody is the stub's sealed payload content. A real deployment seals
// with the MPC cluster's encryption scheme; the stub only needs the payload
// to be opaque to the core and decodable by itself.
type sealedBody struct {
	Bidder string `cbor:"bidder"`
	Amount string `cbor:"amount"`
	Nonce  []byte `cbor:"nonce"`
}

// InMemoryService simulates the MPC collaborator in one process: it seals
// bids, compares them, and signs results as COSE_Sign1 envelopes over the
// canonical public inputs. It provides no privacy against its own host and
// exists for tests and local runs; the signatures it produces are real, so
// the validator's proof check is exercised end to end.
type InMemoryService struct {
	mu      sync.Mutex
	signer  cose.Signer
	public  ed25519.PublicKey
	pending map[Handle]*pendingComputation
}

type pendingComputation struct {
	auction         core.AuctionKey
	winner          core.AccountID
	winningAmount   decimal.Decimal
	sealedBidHashes []string
}

// NewInMemoryService creates a stub service with a fresh Ed25519 signing key.
func NewInMemoryService() (*InMemoryService, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	signer, err := cose.NewSigner(cose.AlgorithmEdDSA, private)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}
	return &InMemoryService{
		signer:  signer,
		public:  public,
		pending: make(map[Handle]*pendingComputation),
	}, nil
}

// EncryptAndProve seals an amount for a bidder. The payload is CBOR with a
// random nonce so equal amounts never produce equal payloads; the validity
// proof is a placeholder commitment.
func (s *InMemoryService) EncryptAndProve(amount decimal.Decimal, bidder core.AccountID) ([]byte, []byte, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate sealing nonce: %w", err)
	}

	sealed, err := cbor.Marshal(sealedBody{
		Bidder: string(bidder),
		Amount: amount.String(),
		Nonce:  nonce,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to seal bid: %w", err)
	}

	proof := []byte(core.ComputeSealedBidHash(sealed))
	return sealed, proof, nil
}

// RequestWinnerComputation compares the sealed payloads and stages the
// result for later delivery. Highest amount wins; ties go to the payload
// appearing first in the request.
func (s *InMemoryService) RequestWinnerComputation(_ context.Context, key core.AuctionKey, sealedPayloads [][]byte) (Handle, error) {
	var (
		winner core.AccountID
		best   decimal.Decimal
		found  bool
	)
	hashes := make([]string, 0, len(sealedPayloads))

	for _, payload := range sealedPayloads {
		hashes = append(hashes, core.ComputeSealedBidHash(payload))

		var body sealedBody
		if err := cbor.Unmarshal(payload, &body); err != nil {
			return uuid.Nil, fmt.Errorf("malformed sealed payload: %w", err)
		}
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			return uuid.Nil, fmt.Errorf("malformed sealed amount: %w", err)
		}
		if !found || amount.GreaterThan(best) {
			winner = core.AccountID(body.Bidder)
			best = amount
			found = true
		}
	}

	if !found {
		return uuid.Nil, fmt.Errorf("no sealed payloads to compare for auction %s", key)
	}

	handle := uuid.New()
	s.mu.Lock()
	s.pending[handle] = &pendingComputation{
		auction:         key,
		winner:          winner,
		winningAmount:   best,
		sealedBidHashes: hashes,
	}
	s.mu.Unlock()

	log.Printf("INFO: Winner computation staged: auction=%s bids=%d handle=%s", key, len(sealedPayloads), handle)
	return handle, nil
}

// DeliverResult returns the staged result for a handle, signed as a
// COSE_Sign1 envelope over the canonical public inputs.
func (s *InMemoryService) DeliverResult(_ context.Context, handle Handle) (*Result, error) {
	s.mu.Lock()
	computation, ok := s.pending[handle]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown computation handle %s", handle)
	}

	inputs := PublicInputs{
		Auction:         computation.auction.String(),
		Winner:          string(computation.winner),
		WinningAmount:   computation.winningAmount.String(),
		SealedBidHashes: computation.sealedBidHashes,
	}
	payload, err := inputs.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode public inputs: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmEdDSA)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, s.signer); err != nil {
		return nil, fmt.Errorf("failed to sign computation result: %w", err)
	}
	proof, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal computation proof: %w", err)
	}

	return &Result{
		Winner:           computation.winner,
		WinningAmount:    computation.winningAmount,
		ComputationProof: proof,
	}, nil
}

// Verifier returns a ProofVerifier holding the service's public key.
func (s *InMemoryService) Verifier() ProofVerifier {
	return &coseVerifier{public: s.public}
}

// coseVerifier checks COSE_Sign1 computation proofs against a trusted
// verification key.
type coseVerifier struct {
	public ed25519.PublicKey
}

// VerifyComputationProof verifies the envelope signature and that the signed
// payload equals the canonical encoding of the expected public inputs.
// Returns false (not an error) when the proof simply does not vouch for
// these inputs.
func (v *coseVerifier) VerifyComputationProof(proof []byte, inputs PublicInputs) (bool, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(proof); err != nil {
		return false, fmt.Errorf("malformed computation proof: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmEdDSA, v.public)
	if err != nil {
		return false, fmt.Errorf("failed to create COSE verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return false, nil
	}

	expected, err := inputs.Encode()
	if err != nil {
		return false, fmt.Errorf("failed to encode public inputs: %w", err)
	}
	if len(msg.Payload) != len(expected) {
		return false, nil
	}
	for i := range expected {
		if msg.Payload[i] != expected[i] {
			return false, nil
		}
	}
	return true, nil
}
