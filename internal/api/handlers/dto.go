package handlers

import (
	"time"

	"live-auction/internal/domain"

	"github.com/shopspring/decimal"
)

type CreateAuctionRequest struct {
	Item            string          `json:"item" validate:"required,max=255"`
	Description     string          `json:"description" validate:"max=2000"`
	StartBid        decimal.Decimal `json:"startBid"`
	BidIncrement    decimal.Decimal `json:"bidIncrement"`
	StartDate       time.Time       `json:"startDate"`
	DurationMinutes int             `json:"duration" validate:"required,min=1,max=10080"`
	// Seller is honoured for moderators only; everyone else sells as themselves.
	Seller string `json:"seller" validate:"max=64"`
}

type UpdateAuctionRequest struct {
	Item            *string    `json:"item" validate:"omitempty,min=1,max=255"`
	Description     *string    `json:"description" validate:"omitempty,max=2000"`
	StartDate       *time.Time `json:"startDate"`
	DurationMinutes *int       `json:"duration" validate:"omitempty,min=1,max=10080"`
}

func (r UpdateAuctionRequest) changes() domain.AuctionChanges {
	return domain.AuctionChanges{
		Item:            r.Item,
		Description:     r.Description,
		StartDate:       r.StartDate,
		DurationMinutes: r.DurationMinutes,
	}
}

type AuctionResponse struct {
	ID              string    `json:"id"`
	Item            string    `json:"item"`
	Description     string    `json:"description"`
	StartBid        float64   `json:"startBid"`
	BidIncrement    float64   `json:"bidIncrement"`
	StartDate       time.Time `json:"startDate"`
	DurationMinutes int       `json:"duration"`
	EndsAt          time.Time `json:"endsAt"`
	Status          string    `json:"status"`
	CurrentBid      float64   `json:"currentBid"`
	HighestBidder   *string   `json:"highestBidder"`
	Seller          string    `json:"seller"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func newAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		ID:              a.ID,
		Item:            a.Item,
		Description:     a.Description,
		StartBid:        a.StartBid.InexactFloat64(),
		BidIncrement:    a.BidIncrement.InexactFloat64(),
		StartDate:       a.StartDate,
		DurationMinutes: a.DurationMinutes,
		EndsAt:          a.EndsAt(),
		Status:          a.Status.String(),
		CurrentBid:      a.CurrentBid.InexactFloat64(),
		HighestBidder:   a.HighestBidder,
		Seller:          a.Seller,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type LogEntryResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Bid       *float64  `json:"bid,omitempty"`
	Bidder    *string   `json:"bidder,omitempty"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newLogEntryResponse(e *domain.LogEntry) LogEntryResponse {
	resp := LogEntryResponse{
		ID:        e.ID,
		Type:      string(e.Type),
		Bidder:    e.Bidder,
		Note:      e.Note,
		Timestamp: e.Timestamp,
	}
	if e.Bid != nil {
		bid := e.Bid.InexactFloat64()
		resp.Bid = &bid
	}
	return resp
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
