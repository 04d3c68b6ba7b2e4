package core

import "errors"

// Validation errors: rejected before any state mutation, recoverable by the
// caller correcting input.
var (
	ErrInvalidTimeRange   = errors.New("invalid time range: end time must be after start time")
	ErrStartTimeInPast    = errors.New("start time cannot be in the past")
	ErrNameTooLong        = errors.New("item name is too long")
	ErrDescriptionTooLong = errors.New("item description is too long")
	ErrSealedPayloadSize  = errors.New("sealed payload exceeds size limit")
	ErrValidityProofSize  = errors.New("validity proof exceeds size limit")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// Precondition-violation errors: wrong status, wrong caller, or outside the
// auction's time window. No mutation occurs; the caller must wait or use the
// correct path.
var (
	ErrAuctionExists         = errors.New("auction already exists")
	ErrAuctionNotFound       = errors.New("auction not found")
	ErrAuctionNotActive      = errors.New("auction is not active")
	ErrAuctionNotStarted     = errors.New("auction has not started yet")
	ErrAuctionEnded          = errors.New("auction has already ended")
	ErrAuctionAlreadyStarted = errors.New("auction has already started")
	ErrTooEarlyToStart       = errors.New("too early to start auction")
	ErrAuctionNotEnded       = errors.New("auction has not ended yet")
	ErrAuctionNotClosed      = errors.New("auction is not closed")
	ErrNotAuthority          = errors.New("caller is not the auction authority")
	ErrNotWinner             = errors.New("caller is not the auction winner")
	ErrBidAlreadyActive      = errors.New("bidder already has an active bid on this auction")
	ErrBidAlreadyProcessed   = errors.New("bid has already been processed")
	ErrBidNotFound           = errors.New("bid not found")
	ErrCannotRefundWinner    = errors.New("cannot refund the winning bid")
	ErrCannotCancelWithBids  = errors.New("cannot cancel auction with active bids")
	ErrCannotCancelClosed    = errors.New("cannot cancel a closed auction")
)

// Collaborator-rejection errors: non-fatal, auction state unchanged, retry
// permitted.
var (
	ErrRejectedResult = errors.New("computation result rejected by validator")
)
