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

type EngineConfig struct {
	GracePeriod         time.Duration
	CASMaxRetries       int
	StartRetryDelay     time.Duration
	BidStateTTL         time.Duration
	AllowSelfRaise      bool
	ReconcileSpec       string
	StoreRetryInterval  time.Duration
	StoreRetryMaxWindow time.Duration
}

// AuctionEngine wires the engine components together and is the surface the
// session transport talks to. Outcomes are also delivered to the calling
// session as events, so the transport only has to forward inbound messages.
type AuctionEngine struct {
	Store     domain.AuctionStore
	Cache     domain.BidStateCache
	Locker    *KeyedLocker
	Rooms     *RoomRegistry
	Members   *Membership
	Fanout    *Broadcaster
	Scheduler *TimerScheduler
	Writer    *DurableWriter
	Arbiter   *BidArbiter
	Lifecycle *LifecycleManager

	reconciler *Reconciler
	cancel     context.CancelFunc
	log        logger.Logger
}

func NewAuctionEngine(store domain.AuctionStore, cache domain.BidStateCache, sender domain.SessionSender, cfg EngineConfig, log logger.Logger) *AuctionEngine {
	locker := NewKeyedLocker()
	rooms := NewRoomRegistry()
	members := NewMembership()
	fanout := NewBroadcaster(members, sender, log)
	scheduler := NewTimerScheduler(log)
	writer := NewDurableWriter(store, locker, cfg.StoreRetryInterval, cfg.StoreRetryMaxWindow, log)
	arbiter := NewBidArbiter(cache, rooms, members, locker, writer, fanout, cfg.CASMaxRetries, cfg.AllowSelfRaise, log)
	lifecycle := NewLifecycleManager(store, cache, scheduler, rooms, members, locker, writer, fanout, LifecycleConfig{
		GracePeriod:     cfg.GracePeriod,
		StartRetryDelay: cfg.StartRetryDelay,
		BidStateTTL:     cfg.BidStateTTL,
	}, log)
	scheduler.SetHandler(lifecycle.HandleJob)
	arbiter.SetRestorer(lifecycle.RestoreBidState)

	e := &AuctionEngine{
		Store:     store,
		Cache:     cache,
		Locker:    locker,
		Rooms:     rooms,
		Members:   members,
		Fanout:    fanout,
		Scheduler: scheduler,
		Writer:    writer,
		Arbiter:   arbiter,
		Lifecycle: lifecycle,
		log:       log,
	}
	if cfg.ReconcileSpec != "" {
		e.reconciler = NewReconciler(lifecycle, cfg.ReconcileSpec, log)
	}
	return e
}

// Start restores state from the store and starts the background loops.
func (e *AuctionEngine) Start(ctx context.Context) error {
	if err := e.Lifecycle.Reconcile(ctx); err != nil {
		return fmt.Errorf("engine: initial reconcile: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.Writer.Run(runCtx)

	if e.reconciler != nil {
		if err := e.reconciler.Start(runCtx); err != nil {
			cancel()
			return err
		}
	}
	e.log.Info("Auction engine started", "live_rooms", e.Rooms.Count())
	return nil
}

func (e *AuctionEngine) Stop(ctx context.Context) {
	if e.reconciler != nil {
		e.reconciler.Stop()
	}
	e.Scheduler.Stop()
	e.Lifecycle.Close()
	if e.cancel != nil {
		e.cancel()
	}
	e.Writer.Flush(ctx)
	e.log.Info("Auction engine stopped", "pending_writes", e.Writer.Pending())
}

func (e *AuctionEngine) Health() error {
	return e.Writer.Health()
}

func (e *AuctionEngine) Join(ctx context.Context, sessionID, auctionID, userID string) error {
	unlock := e.Locker.Lock(auctionID)
	auction, err := e.joinable(ctx, auctionID, userID)
	if err != nil {
		unlock()
		e.reject(sessionID, auctionID, err)
		return err
	}

	// Membership.Join moves the session out of its old room, so a rejected
	// join above leaves the session where it was.
	previous, err := e.Members.Join(sessionID, userID, auctionID, auction.Seller)
	if err != nil {
		unlock()
		e.reject(sessionID, auctionID, err)
		return err
	}
	active := e.Members.MembersOf(auctionID)
	if previous != auctionID {
		e.Fanout.Broadcast(auctionID, domain.EventUserJoined, PresencePayload{UserID: userID, ActiveUsers: active})
	}

	state, live := e.currentBid(ctx, auction)
	_ = e.Fanout.SendTo(sessionID, auctionID, domain.EventAuthSuccess, AuthSuccessPayload{
		AuctionID:     auctionID,
		CurrentBid:    state.Bid.InexactFloat64(),
		CurrentBidder: optional(state.Bidder),
		ActiveUsers:   active,
		Live:          live,
	})
	unlock()

	if previous != "" && previous != auctionID {
		e.announceLeft(previous, userID)
	}
	e.log.Info("Session joined auction", "session_id", sessionID, "user_id", userID, "auction_id", auctionID)
	return nil
}

// announceLeft tells a room that a session moved elsewhere. Locks are never
// nested, so it runs after the new room's lock is released.
func (e *AuctionEngine) announceLeft(auctionID, userID string) {
	unlock := e.Locker.Lock(auctionID)
	defer unlock()
	e.Fanout.Broadcast(auctionID, domain.EventUserLeft, PresencePayload{
		UserID:      userID,
		ActiveUsers: e.Members.MembersOf(auctionID),
	})
}

func (e *AuctionEngine) joinable(ctx context.Context, auctionID, userID string) (*domain.Auction, error) {
	auction, err := e.Lifecycle.Load(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status.Terminal() {
		return nil, domain.ErrAuctionNotLive
	}
	if auction.Seller == userID {
		return nil, domain.ErrSellerCannotJoin
	}
	return auction, nil
}

// Leave is safe to call for sessions that never joined.
func (e *AuctionEngine) Leave(ctx context.Context, sessionID string) {
	auctionID, ok := e.Members.AuctionOf(sessionID)
	if !ok {
		return
	}
	e.leaveRoom(sessionID, auctionID)
}

func (e *AuctionEngine) leaveRoom(sessionID, auctionID string) {
	unlock := e.Locker.Lock(auctionID)
	defer unlock()

	session, ok := e.Members.Session(sessionID)
	if !ok || session.AuctionID != auctionID {
		return
	}
	e.Members.Leave(sessionID)
	e.Fanout.Broadcast(auctionID, domain.EventUserLeft, PresencePayload{
		UserID:      session.UserID,
		ActiveUsers: e.Members.MembersOf(auctionID),
	})
	e.log.Info("Session left auction", "session_id", sessionID, "user_id", session.UserID, "auction_id", auctionID)
}

func (e *AuctionEngine) PlaceBid(ctx context.Context, sessionID, auctionID, userID string, amount decimal.Decimal) (*domain.BidResult, error) {
	result, err := e.Arbiter.PlaceBid(ctx, sessionID, auctionID, userID, amount)
	if err != nil {
		e.rejectBid(sessionID, auctionID, err)
		return nil, err
	}
	return result, nil
}

// RoomInfo is advisory: it takes no lock and may mix values from either side
// of a concurrent commit.
func (e *AuctionEngine) RoomInfo(ctx context.Context, auctionID string) (*domain.RoomInfo, error) {
	auction, err := e.Lifecycle.Load(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	state, live := e.currentBid(ctx, auction)
	return &domain.RoomInfo{
		Auction:       auction,
		CurrentBid:    state.Bid,
		CurrentBidder: state.Bidder,
		ActiveUsers:   e.Members.MembersOf(auctionID),
		Live:          live,
	}, nil
}

func (e *AuctionEngine) SendRoomInfo(ctx context.Context, sessionID, auctionID string) error {
	info, err := e.RoomInfo(ctx, auctionID)
	if err != nil {
		_ = e.Fanout.SendTo(sessionID, auctionID, domain.EventError, NewErrorPayload(err))
		return err
	}
	return e.Fanout.SendTo(sessionID, auctionID, domain.EventRoomInfo, NewRoomInfoPayload(info))
}

func (e *AuctionEngine) currentBid(ctx context.Context, auction *domain.Auction) (domain.BidState, bool) {
	if !e.Rooms.IsLive(auction.ID) {
		return bidStateOf(auction), false
	}
	state, err := e.Cache.Get(ctx, auction.ID)
	if err != nil {
		e.log.Warn("Bid state unavailable, using stored bid", "auction_id", auction.ID, "error", err)
		return bidStateOf(auction), true
	}
	return state, true
}

func (e *AuctionEngine) reject(sessionID, auctionID string, err error) {
	if !domain.IsBidRejection(err) && !errors.Is(err, domain.ErrAuctionNotFound) {
		e.log.Error("Engine operation failed", "session_id", sessionID, "auction_id", auctionID, "error", err)
	}
	_ = e.Fanout.SendTo(sessionID, auctionID, domain.EventError, NewErrorPayload(err))
}

func (e *AuctionEngine) rejectBid(sessionID, auctionID string, err error) {
	if !domain.IsBidRejection(err) {
		e.reject(sessionID, auctionID, err)
		return
	}
	_ = e.Fanout.SendTo(sessionID, auctionID, domain.EventBidError, NewBidErrorPayload(err))
}
