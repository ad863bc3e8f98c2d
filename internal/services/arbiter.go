package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"

	"github.com/shopspring/decimal"
)

// BidArbiter decides bids. All checks and the cache commit for one auction
// run under that auction's lock; the cache CAS guards against any writer that
// does not share the lock.
type BidArbiter struct {
	cache          domain.BidStateCache
	rooms          *RoomRegistry
	members        *Membership
	locker         *KeyedLocker
	writer         *DurableWriter
	fanout         *Broadcaster
	maxRetries     int
	allowSelfRaise bool
	restore        func(ctx context.Context, auctionID string) (domain.BidState, error)
	log            logger.Logger
}

func NewBidArbiter(
	cache domain.BidStateCache,
	rooms *RoomRegistry,
	members *Membership,
	locker *KeyedLocker,
	writer *DurableWriter,
	fanout *Broadcaster,
	maxRetries int,
	allowSelfRaise bool,
	log logger.Logger,
) *BidArbiter {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &BidArbiter{
		cache:          cache,
		rooms:          rooms,
		members:        members,
		locker:         locker,
		writer:         writer,
		fanout:         fanout,
		maxRetries:     maxRetries,
		allowSelfRaise: allowSelfRaise,
		log:            log,
	}
}

// SetRestorer sets how a live room gets its bid state back after the cache
// lost it. It is called with the auction lock held.
func (a *BidArbiter) SetRestorer(restore func(ctx context.Context, auctionID string) (domain.BidState, error)) {
	a.restore = restore
}

func (a *BidArbiter) PlaceBid(ctx context.Context, sessionID, auctionID, userID string, amount decimal.Decimal) (*domain.BidResult, error) {
	unlock := a.locker.Lock(auctionID)
	defer unlock()

	a.log.Debug("Placing bid", "auction_id", auctionID, "user_id", userID, "amount", amount.String())

	auction, ok := a.rooms.Get(auctionID)
	if !ok {
		return nil, domain.ErrAuctionNotLive
	}
	session, ok := a.members.Session(sessionID)
	if !ok || session.AuctionID != auctionID || session.UserID != userID {
		return nil, domain.ErrNotJoined
	}
	if userID == auction.Seller {
		return nil, domain.ErrSellerCannotJoin
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var state domain.BidState
	committed := false
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		var err error
		state, err = a.readState(ctx, auctionID)
		if err != nil {
			a.log.Error("Failed to read bid state", "auction_id", auctionID, "error", err)
			return nil, fmt.Errorf("%w: read bid state: %v", domain.ErrInternal, err)
		}

		if amount.LessThanOrEqual(state.Bid) {
			return nil, a.rejection(domain.ErrBidTooLow, auction, state)
		}
		if !a.allowSelfRaise && state.Bidder == userID {
			return nil, a.rejection(domain.ErrAlreadyHighestBidder, auction, state)
		}

		ok, err := a.cache.CompareAndSet(ctx, auctionID, state, domain.BidState{Bid: amount, Bidder: userID})
		if errors.Is(err, domain.ErrBidStateNotFound) && a.restore != nil {
			a.log.Warn("Bid state vanished during commit", "auction_id", auctionID)
			continue
		}
		if err != nil {
			a.log.Error("Failed to commit bid", "auction_id", auctionID, "user_id", userID, "error", err)
			return nil, fmt.Errorf("%w: commit bid: %v", domain.ErrInternal, err)
		}
		if ok {
			committed = true
			break
		}
		a.log.Debug("Bid state changed during commit, retrying", "auction_id", auctionID, "attempt", attempt+1)
	}

	if !committed {
		latest, err := a.cache.Get(ctx, auctionID)
		if err != nil {
			latest = state
		}
		return nil, a.rejection(domain.ErrBidTooLow, auction, latest)
	}

	result := &domain.BidResult{AuctionID: auctionID, Amount: amount, Bidder: userID, Timestamp: time.Now()}
	a.afterCommit(ctx, sessionID, result)
	return result, nil
}

func (a *BidArbiter) readState(ctx context.Context, auctionID string) (domain.BidState, error) {
	state, err := a.cache.Get(ctx, auctionID)
	if !errors.Is(err, domain.ErrBidStateNotFound) || a.restore == nil {
		return state, err
	}
	a.log.Warn("Bid state missing for live room, restoring from store", "auction_id", auctionID)
	return a.restore(ctx, auctionID)
}

func (a *BidArbiter) afterCommit(ctx context.Context, sessionID string, result *domain.BidResult) {
	bid := result.Amount
	bidder := result.Bidder

	if err := a.writer.Update(ctx, result.AuctionID, domain.AuctionUpdate{CurrentBid: &bid, HighestBidder: &bidder}); err != nil &&
		!errors.Is(err, domain.ErrAuctionNotFound) {
		a.log.Warn("Bid accepted but store write deferred", "auction_id", result.AuctionID, "amount", bid.String())
	}
	a.writer.AppendLog(ctx, &domain.LogEntry{
		AuctionID: result.AuctionID,
		Type:      domain.LogBidding,
		Bid:       &bid,
		Bidder:    &bidder,
		Timestamp: result.Timestamp,
	})

	a.fanout.Broadcast(result.AuctionID, domain.EventNewBid, NewBidPayload{
		Bid:       bid.InexactFloat64(),
		Bidder:    bidder,
		Timestamp: result.Timestamp,
	})
	_ = a.fanout.SendTo(sessionID, result.AuctionID, domain.EventBidSuccess, BidSuccessPayload{
		Bid:       bid.InexactFloat64(),
		Timestamp: result.Timestamp,
	})

	a.log.Info("Bid accepted", "auction_id", result.AuctionID, "user_id", bidder, "amount", bid.String())
}

func (a *BidArbiter) rejection(code error, auction *domain.Auction, state domain.BidState) *domain.BidError {
	return &domain.BidError{
		Code:            code,
		MinimumRequired: minimumRequired(state.Bid, auction.BidIncrement),
		CurrentBid:      state.Bid,
		CurrentBidder:   state.Bidder,
	}
}
