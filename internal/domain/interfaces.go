package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStore is the durable record of auctions and their audit log.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, update AuctionUpdate) error
	DeleteAuction(ctx context.Context, auctionID string) error
	ListAuctions(ctx context.Context, statuses ...AuctionStatus) ([]*Auction, error)
	AppendLogEntry(ctx context.Context, entry *LogEntry) error
	ListLogEntries(ctx context.Context, auctionID string) ([]*LogEntry, error)
}

// BidStateCache holds the authoritative current bid of live auctions.
type BidStateCache interface {
	// Get returns ErrBidStateNotFound when the auction has no state.
	Get(ctx context.Context, auctionID string) (BidState, error)
	// CompareAndSet writes next only if the stored state still equals expected.
	// A missing key is reported as ErrBidStateNotFound.
	CompareAndSet(ctx context.Context, auctionID string, expected, next BidState) (bool, error)
	// Initialize creates the state if absent and reports whether it did.
	Initialize(ctx context.Context, auctionID string, initial BidState, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, auctionID string) error
}

type Scheduler interface {
	Schedule(auctionID string, firesAt time.Time, kind JobKind) JobHandle
	Cancel(handle JobHandle)
	CancelAuction(auctionID string)
	// Claim consumes a fired handle. It fails if the handle was cancelled or replaced.
	Claim(handle JobHandle) bool
	Pending(auctionID string, kind JobKind) bool
}

// SessionSender delivers one event to one session. Implementations must not block
// on a slow peer.
type SessionSender interface {
	Send(sessionID string, event Event) error
}

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*Identity, error)
}

type LeaderElection interface {
	Campaign(ctx context.Context) error
	Resign(ctx context.Context) error
	IsLeader() bool
	Lost() <-chan struct{}
}

// Bidder is the engine surface the session transport drives.
type Bidder interface {
	Join(ctx context.Context, sessionID, auctionID, userID string) error
	Leave(ctx context.Context, sessionID string)
	PlaceBid(ctx context.Context, sessionID, auctionID, userID string, amount decimal.Decimal) (*BidResult, error)
	RoomInfo(ctx context.Context, auctionID string) (*RoomInfo, error)
	SendRoomInfo(ctx context.Context, sessionID, auctionID string) error
}
