package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "scheduled"
	AuctionPending   AuctionStatus = "pending"
	AuctionAccepted  AuctionStatus = "accepted"
	AuctionRejected  AuctionStatus = "rejected"
	AuctionLive      AuctionStatus = "live"
	AuctionEnded     AuctionStatus = "ended"
)

func (s AuctionStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionRejected || s == AuctionEnded
}

// AwaitingApproval is true for the states that may still be accepted or rejected.
func (s AuctionStatus) AwaitingApproval() bool {
	return s == AuctionScheduled || s == AuctionPending
}

func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionScheduled, AuctionPending, AuctionAccepted, AuctionRejected, AuctionLive, AuctionEnded:
		return true
	}
	return false
}

type Auction struct {
	ID              string
	Item            string
	Description     string
	StartBid        decimal.Decimal
	BidIncrement    decimal.Decimal
	StartDate       time.Time
	DurationMinutes int
	Status          AuctionStatus
	CurrentBid      decimal.Decimal
	HighestBidder   *string
	Seller          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsAt is startDate + duration.
func (a *Auction) EndsAt() time.Time {
	return a.StartDate.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a *Auction) Clone() *Auction {
	c := *a
	if a.HighestBidder != nil {
		bidder := *a.HighestBidder
		c.HighestBidder = &bidder
	}
	return &c
}

// NewAuction is the input of CreateAuction.
type NewAuction struct {
	Item            string
	Description     string
	StartBid        decimal.Decimal
	BidIncrement    decimal.Decimal
	StartDate       time.Time
	DurationMinutes int
	Seller          string
}

// AuctionChanges holds the seller-editable fields. Nil means unchanged.
type AuctionChanges struct {
	Item            *string
	Description     *string
	StartDate       *time.Time
	DurationMinutes *int
}

func (c AuctionChanges) Empty() bool {
	return c.Item == nil && c.Description == nil && c.StartDate == nil && c.DurationMinutes == nil
}

// AuctionUpdate is a partial row update for the durable store. Nil means unchanged.
// ClearHighestBidder writes NULL and wins over HighestBidder.
type AuctionUpdate struct {
	Item               *string
	Description        *string
	StartDate          *time.Time
	DurationMinutes    *int
	Status             *AuctionStatus
	CurrentBid         *decimal.Decimal
	HighestBidder      *string
	ClearHighestBidder bool
}

func (u AuctionUpdate) Empty() bool {
	return u.Item == nil && u.Description == nil && u.StartDate == nil && u.DurationMinutes == nil &&
		u.Status == nil && u.CurrentBid == nil && u.HighestBidder == nil && !u.ClearHighestBidder
}

// Apply writes the fields set in u onto a.
func (a *Auction) Apply(u AuctionUpdate) {
	if u.Item != nil {
		a.Item = *u.Item
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
	if u.StartDate != nil {
		a.StartDate = *u.StartDate
	}
	if u.DurationMinutes != nil {
		a.DurationMinutes = *u.DurationMinutes
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.CurrentBid != nil {
		a.CurrentBid = *u.CurrentBid
	}
	if u.ClearHighestBidder {
		a.HighestBidder = nil
	} else if u.HighestBidder != nil {
		bidder := *u.HighestBidder
		a.HighestBidder = &bidder
	}
}

// Merge overlays newer on top of u.
func (u AuctionUpdate) Merge(newer AuctionUpdate) AuctionUpdate {
	if newer.Item != nil {
		u.Item = newer.Item
	}
	if newer.Description != nil {
		u.Description = newer.Description
	}
	if newer.StartDate != nil {
		u.StartDate = newer.StartDate
	}
	if newer.DurationMinutes != nil {
		u.DurationMinutes = newer.DurationMinutes
	}
	if newer.Status != nil {
		u.Status = newer.Status
	}
	if newer.CurrentBid != nil {
		u.CurrentBid = newer.CurrentBid
	}
	if newer.HighestBidder != nil {
		u.HighestBidder = newer.HighestBidder
		u.ClearHighestBidder = false
	}
	if newer.ClearHighestBidder {
		u.HighestBidder = nil
		u.ClearHighestBidder = true
	}
	return u
}

// Without drops the fields that newer sets, so an older pending write never
// overwrites a value that already reached the store.
func (u AuctionUpdate) Without(newer AuctionUpdate) AuctionUpdate {
	if newer.Item != nil {
		u.Item = nil
	}
	if newer.Description != nil {
		u.Description = nil
	}
	if newer.StartDate != nil {
		u.StartDate = nil
	}
	if newer.DurationMinutes != nil {
		u.DurationMinutes = nil
	}
	if newer.Status != nil {
		u.Status = nil
	}
	if newer.CurrentBid != nil {
		u.CurrentBid = nil
	}
	if newer.HighestBidder != nil || newer.ClearHighestBidder {
		u.HighestBidder = nil
		u.ClearHighestBidder = false
	}
	return u
}

// BidState is the cached current winning bid of a live auction.
// Bidder is empty until the first bid is accepted.
type BidState struct {
	Bid    decimal.Decimal
	Bidder string
}

func (s BidState) HasBidder() bool {
	return s.Bidder != ""
}

type JobKind string

const (
	JobStart JobKind = "start"
	JobEnd   JobKind = "end"
)

// JobHandle identifies one scheduled firing. ID changes on every Schedule call,
// so a stale handle can be told apart from the current one for the same key.
type JobHandle struct {
	ID        string
	AuctionID string
	Kind      JobKind
	FiresAt   time.Time
}

type LogType string

const (
	LogCreated LogType = "created"
	LogUpdated LogType = "updated"
	LogBidding LogType = "bidding"
	LogStart   LogType = "start"
	LogEnd     LogType = "end"
	LogDeleted LogType = "deleted"
)

type LogEntry struct {
	ID        int64
	AuctionID string
	Type      LogType
	Bid       *decimal.Decimal
	Bidder    *string
	Note      string
	Timestamp time.Time
}

type Session struct {
	ID        string
	UserID    string
	AuctionID string
}

// Identity is what the identity provider resolves a bearer credential to.
type Identity struct {
	UserID    string
	Moderator bool
}

type BidResult struct {
	AuctionID string
	Amount    decimal.Decimal
	Bidder    string
	Timestamp time.Time
}

// RoomInfo is an advisory snapshot; it is assembled without the auction lock.
type RoomInfo struct {
	Auction       *Auction
	CurrentBid    decimal.Decimal
	CurrentBidder string
	ActiveUsers   int
	Live          bool
}
