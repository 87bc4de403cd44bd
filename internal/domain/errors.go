package domain

import "errors"

// Validation errors: rejected before any state change.
var (
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInsufficientBond = errors.New("insufficient creation bond")
	ErrBetTooSmall      = errors.New("bet below minimum")
)

// State-conflict errors: valid input against the wrong state. Rejected with
// no state change.
var (
	ErrMarketNotFound    = errors.New("market not found")
	ErrMarketNotActive   = errors.New("market not active")
	ErrMarketExpired     = errors.New("market expired")
	ErrMarketNotExpired  = errors.New("market not yet expired")
	ErrMarketNotResolved = errors.New("market not resolved")
	ErrMarketNotCancelled = errors.New("market not cancelled")
	ErrAlreadyBet        = errors.New("already bet")
	ErrAlreadySubscribed = errors.New("market already subscribed")
	ErrNoBet             = errors.New("no bet on market")
	ErrNotAWinner        = errors.New("not a winner")
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrNotCreator        = errors.New("caller is not the market creator")
	ErrNotOwner          = errors.New("caller is not the platform owner")
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
)

// Infrastructure errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)
