package services

import (
	"errors"
	"time"

	"live-auction/internal/domain"
)

// Payloads carried by outbound events. Money goes out as JSON numbers.

type AuthSuccessPayload struct {
	AuctionID     string  `json:"auctionId"`
	CurrentBid    float64 `json:"currentBid"`
	CurrentBidder *string `json:"currentBidder"`
	ActiveUsers   int     `json:"activeUsers"`
	Live          bool    `json:"live"`
}

type PresencePayload struct {
	UserID      string `json:"userId"`
	ActiveUsers int    `json:"activeUsers"`
}

type NewBidPayload struct {
	Bid       float64   `json:"bid"`
	Bidder    string    `json:"bidder"`
	Timestamp time.Time `json:"timestamp"`
}

type BidSuccessPayload struct {
	Bid       float64   `json:"bid"`
	Timestamp time.Time `json:"timestamp"`
}

type AuctionStartedPayload struct {
	AuctionID string    `json:"auctionId"`
	StartBid  float64   `json:"startBid"`
	EndsAt    time.Time `json:"endsAt"`
}

type AuctionEndedPayload struct {
	FinalBid float64 `json:"finalBid"`
	Winner   *string `json:"winner"`
	Message  string  `json:"message"`
}

type BidErrorPayload struct {
	Code            string   `json:"code"`
	Message         string   `json:"message"`
	MinimumRequired *float64 `json:"minimumRequired,omitempty"`
	CurrentBid      *float64 `json:"currentBid,omitempty"`
	CurrentBidder   *string  `json:"currentBidder,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomInfoPayload struct {
	AuctionID       string    `json:"auctionId"`
	Item            string    `json:"item"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	StartBid        float64   `json:"startBid"`
	BidIncrement    float64   `json:"bidIncrement"`
	StartDate       time.Time `json:"startDate"`
	DurationMinutes int       `json:"durationMinutes"`
	Seller          string    `json:"seller"`
	CurrentBid      float64   `json:"currentBid"`
	CurrentBidder   *string   `json:"currentBidder"`
	ActiveUsers     int       `json:"activeUsers"`
	Live            bool      `json:"live"`
}

func NewRoomInfoPayload(info *domain.RoomInfo) RoomInfoPayload {
	a := info.Auction
	return RoomInfoPayload{
		AuctionID:       a.ID,
		Item:            a.Item,
		Description:     a.Description,
		Status:          a.Status.String(),
		StartBid:        a.StartBid.InexactFloat64(),
		BidIncrement:    a.BidIncrement.InexactFloat64(),
		StartDate:       a.StartDate,
		DurationMinutes: a.DurationMinutes,
		Seller:          a.Seller,
		CurrentBid:      info.CurrentBid.InexactFloat64(),
		CurrentBidder:   optional(info.CurrentBidder),
		ActiveUsers:     info.ActiveUsers,
		Live:            info.Live,
	}
}

// ErrorCode names an engine error for clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		return "AUCTION_NOT_FOUND"
	case errors.Is(err, domain.ErrAuctionNotLive):
		return "AUCTION_NOT_LIVE"
	case errors.Is(err, domain.ErrNotJoined):
		return "NOT_JOINED"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, domain.ErrBidTooLow):
		return "BID_TOO_LOW"
	case errors.Is(err, domain.ErrAlreadyHighestBidder):
		return "ALREADY_HIGHEST_BIDDER"
	case errors.Is(err, domain.ErrSellerCannotJoin):
		return "SELLER_CANNOT_JOIN"
	case errors.Is(err, domain.ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	default:
		return "INTERNAL_ERROR"
	}
}

func NewBidErrorPayload(err error) BidErrorPayload {
	payload := BidErrorPayload{Code: ErrorCode(err), Message: clientMessage(err)}

	var bidErr *domain.BidError
	if errors.As(err, &bidErr) {
		current := bidErr.CurrentBid.InexactFloat64()
		payload.CurrentBid = &current
		payload.CurrentBidder = optional(bidErr.CurrentBidder)
		if errors.Is(err, domain.ErrBidTooLow) {
			minimum := bidErr.MinimumRequired.InexactFloat64()
			payload.MinimumRequired = &minimum
		}
	}
	return payload
}

func NewErrorPayload(err error) ErrorPayload {
	return ErrorPayload{Code: ErrorCode(err), Message: clientMessage(err)}
}

// clientMessage hides infrastructure details behind the internal sentinel.
func clientMessage(err error) string {
	if domain.IsBidRejection(err) || errors.Is(err, domain.ErrAuctionNotFound) || errors.Is(err, domain.ErrValidation) {
		var bidErr *domain.BidError
		if errors.As(err, &bidErr) {
			return bidErr.Code.Error()
		}
		return rootMessage(err)
	}
	return domain.ErrInternal.Error()
}

func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrAuctionNotFound, domain.ErrAuctionNotLive, domain.ErrNotJoined,
		domain.ErrInvalidAmount, domain.ErrSellerCannotJoin,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
