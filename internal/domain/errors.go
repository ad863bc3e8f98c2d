package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionNotLive       = errors.New("auction is not live")
	ErrNotJoined            = errors.New("session has not joined this auction")
	ErrInvalidAmount        = errors.New("bid amount must be a finite positive number")
	ErrBidTooLow            = errors.New("bid too low")
	ErrAlreadyHighestBidder = errors.New("already the highest bidder")
	ErrSellerCannotJoin     = errors.New("seller cannot join own auction")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrBidStateNotFound     = errors.New("bid state not found")
	ErrInternal             = errors.New("internal error")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BidError is a business rejection of a bid. Code is one of the bid sentinels.
// The bid fields are the state the rejection was judged against.
type BidError struct {
	Code            error
	MinimumRequired decimal.Decimal
	CurrentBid      decimal.Decimal
	CurrentBidder   string
}

func (e *BidError) Error() string {
	if errors.Is(e.Code, ErrBidTooLow) {
		return fmt.Sprintf("%s: minimum required %s", e.Code, e.MinimumRequired.String())
	}
	return e.Code.Error()
}

func (e *BidError) Unwrap() error {
	return e.Code
}

// IsBidRejection reports whether err is a business rule rejection of a bid,
// as opposed to an infrastructure failure.
func IsBidRejection(err error) bool {
	switch {
	case errors.Is(err, ErrAuctionNotLive),
		errors.Is(err, ErrNotJoined),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrBidTooLow),
		errors.Is(err, ErrAlreadyHighestBidder),
		errors.Is(err, ErrSellerCannotJoin):
		return true
	}
	return false
}
