package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

const jobTimeout = 10 * time.Second

type LifecycleConfig struct {
	GracePeriod     time.Duration
	StartRetryDelay time.Duration
	BidStateTTL     time.Duration
}

// LifecycleManager owns the auction state machine. Every transition runs
// under the auction lock and re-reads the current status first, so repeated
// or late timer firings do nothing.
type LifecycleManager struct {
	store     domain.AuctionStore
	cache     domain.BidStateCache
	scheduler domain.Scheduler
	rooms     *RoomRegistry
	members   *Membership
	locker    *KeyedLocker
	writer    *DurableWriter
	fanout    *Broadcaster
	cfg       LifecycleConfig
	log       logger.Logger
	now       func() time.Time

	teardownMu sync.Mutex
	teardowns  map[string]*time.Timer
}

func NewLifecycleManager(
	store domain.AuctionStore,
	cache domain.BidStateCache,
	scheduler domain.Scheduler,
	rooms *RoomRegistry,
	members *Membership,
	locker *KeyedLocker,
	writer *DurableWriter,
	fanout *Broadcaster,
	cfg LifecycleConfig,
	log logger.Logger,
) *LifecycleManager {
	return &LifecycleManager{
		store:     store,
		cache:     cache,
		scheduler: scheduler,
		rooms:     rooms,
		members:   members,
		locker:    locker,
		writer:    writer,
		fanout:    fanout,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		teardowns: make(map[string]*time.Timer),
	}
}

func (m *LifecycleManager) CreateAuction(ctx context.Context, in domain.NewAuction) (*domain.Auction, error) {
	now := m.now()
	if err := validateNewAuction(in, now); err != nil {
		return nil, err
	}

	auction := &domain.Auction{
		ID:              utils.GenerateID("auction"),
		Item:            in.Item,
		Description:     in.Description,
		StartBid:        in.StartBid,
		BidIncrement:    in.BidIncrement,
		StartDate:       in.StartDate,
		DurationMinutes: in.DurationMinutes,
		Status:          domain.AuctionScheduled,
		CurrentBid:      in.StartBid,
		Seller:          in.Seller,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	unlock := m.locker.Lock(auction.ID)
	defer unlock()

	if err := m.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("lifecycle: create auction: %w", err)
	}
	m.writer.AppendLog(ctx, &domain.LogEntry{AuctionID: auction.ID, Type: domain.LogCreated, Timestamp: now})
	m.scheduler.Schedule(auction.ID, auction.StartDate, domain.JobStart)

	m.log.Info("Auction created", "auction_id", auction.ID, "seller", auction.Seller, "start_date", auction.StartDate)
	return auction, nil
}

func (m *LifecycleManager) AcceptAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	unlock := m.locker.Lock(auctionID)
	defer unlock()

	auction, err := m.load(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.Status.AwaitingApproval() {
		return nil, fmt.Errorf("%w: cannot accept %s auction", domain.ErrInvalidTransition, auction.Status)
	}

	if err := m.setStatus(ctx, auction, domain.AuctionAccepted); err != nil {
		return nil, err
	}
	m.writer.AppendLog(ctx, &domain.LogEntry{AuctionID: auctionID, Type: domain.LogUpdated, Note: "accepted", Timestamp: m.now()})

	if !m.scheduler.Pending(auctionID, domain.JobStart) {
		m.scheduler.Schedule(auctionID, auction.StartDate, domain.JobStart)
	}

	m.log.Info("Auction accepted", "auction_id", auctionID)
	return auction, nil
}

func (m *LifecycleManager) RejectAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	unlock := m.locker.Lock(auctionID)
	defer unlock()

	auction, err := m.load(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.Status.AwaitingApproval() {
		return nil, fmt.Errorf("%w: cannot reject %s auction", domain.ErrInvalidTransition, auction.Status)
	}

	if err := m.setStatus(ctx, auction, domain.AuctionRejected); err != nil {
		return nil, err
	}
	m.scheduler.CancelAuction(auctionID)
	m.writer.AppendLog(ctx, &domain.LogEntry{AuctionID: auctionID, Type: domain.LogUpdated, Note: "rejected", Timestamp: m.now()})

	m.log.Info("Auction rejected", "auction_id", auctionID)
	return auction, nil
}

// UpdateAuction edits an auction that has not started yet and re-arms its start.
func (m *LifecycleManager) UpdateAuction(ctx context.Context, auctionID string, changes domain.AuctionChanges) (*domain.Auction, error) {
	if err := validateChanges(changes, m.now()); err != nil {
		return nil, err
	}

	unlock := m.locker.Lock(auctionID)
	defer unlock()

	auction, err := m.load(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != domain.AuctionAccepted && !auction.Status.AwaitingApproval() {
		return nil, fmt.Errorf("%w: cannot edit %s auction", domain.ErrInvalidTransition, auction.Status)
	}
	if changes.Empty() {
		return auction, nil
	}

	update := domain.AuctionUpdate{
		Item:            changes.Item,
		Description:     changes.Description,
		StartDate:       changes.StartDate,
		DurationMinutes: changes.DurationMinutes,
	}
	if err := m.store.UpdateAuction(ctx, auctionID, update); err != nil {
		return nil, fmt.Errorf("lifecycle: update auction %s: %w", auctionID, err)
	}
	auction.Apply(update)
	m.writer.AppendLog(ctx, &domain.LogEntry{AuctionID: auctionID, Type: domain.LogUpdated, Note: "edited", Timestamp: m.now()})

	if changes.StartDate != nil {
		m.scheduler.Schedule(auctionID, auction.StartDate, domain.JobStart)
	}

	m.log.Info("Auction updated", "auction_id", auctionID)
	return auction, nil
}

// DeleteAuction removes a non-terminal auction. A live room is torn down
// immediately without an end transition.
func (m *LifecycleManager) DeleteAuction(ctx context.Context, auctionID string) error {
	unlock := m.locker.Lock(auctionID)
	defer unlock()

	auction, err := m.load(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.Status.Terminal() {
		return fmt.Errorf("%w: cannot delete %s auction", domain.ErrInvalidTransition, auction.Status)
	}

	if err := m.store.DeleteAuction(ctx, auctionID); err != nil {
		return fmt.Errorf("lifecycle: delete auction %s: %w", auctionID, err)
	}
	m.scheduler.CancelAuction(auctionID)
	m.writer.Discard(auctionID)

	if m.rooms.Remove(auctionID) || auction.Status == domain.AuctionLive {
		m.fanout.Broadcast(auctionID, domain.EventError, ErrorPayload{Code: "AUCTION_DELETED", Message: "auction was deleted"})
		m.members.ClearAuction(auctionID)
		if err := m.cache.Delete(ctx, auctionID); err != nil {
			m.log.Warn("Failed to remove bid state of deleted auction", "auction_id", auctionID, "error", err)
		}
	}
	m.writer.AppendLog(ctx, &domain.LogEntry{AuctionID: auctionID, Type: domain.LogDeleted, Timestamp: m.now()})

	m.log.Info("Auction deleted", "auction_id", auctionID)
	return nil
}

// EndAuction closes a live auction ahead of its schedule.
func (m *LifecycleManager) EndAuction(ctx context.Context, auctionID string) error {
	unlock := m.locker.Lock(auctionID)
	defer unlock()

	ended, err := m.endLocked(ctx, auctionID, "Auction ended early")
	if err != nil {
		return err
	}
	if !ended {
		return fmt.Errorf("%w: auction %s is not live", domain.ErrInvalidTransition, auctionID)
	}
	return nil
}

// HandleJob runs a fired scheduler job. Handles that were cancelled or
// replaced before the lock was taken are dropped.
func (m *LifecycleManager) HandleJob(handle domain.JobHandle) {
	unlock := m.locker.Lock(handle.AuctionID)
	defer unlock()

	if !m.scheduler.Claim(handle) {
		m.log.Debug("Dropping stale job", "auction_id", handle.AuctionID, "kind", handle.Kind, "job_id", handle.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	switch handle.Kind {
	case domain.JobStart:
		m.startLocked(ctx, handle.AuctionID)
	case domain.JobEnd:
		if _, err := m.endLocked(ctx, handle.AuctionID, "Auction has ended"); err != nil {
			if errors.Is(err, domain.ErrAuctionNotFound) {
				m.log.Info("End fired for missing auction", "auction_id", handle.AuctionID)
				return
			}
			m.log.Error("Failed to end auction", "auction_id", handle.AuctionID, "error", err)
			m.retryEnd(handle.AuctionID)
		}
	}
}

func (m *LifecycleManager) startLocked(ctx context.Context, auctionID string) {
	auction, err := m.load(ctx, auctionID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		m.log.Info("Start fired for missing auction", "auction_id", auctionID)
		return
	}
	if err != nil {
		m.log.Error("Failed to load auction for start", "auction_id", auctionID, "error", err)
		m.retryStart(auctionID)
		return
	}
	if auction.Status == domain.AuctionLive || m.rooms.IsLive(auctionID) {
		return
	}
	if auction.Status != domain.AuctionAccepted {
		m.log.Info("Auction not accepted at start time", "auction_id", auctionID, "status", auction.Status)
		return
	}

	if _, err := m.cache.Initialize(ctx, auctionID, bidStateOf(auction), m.bidStateTTL(auction)); err != nil {
		m.log.Error("Failed to initialize bid state", "auction_id", auctionID, "error", err)
		m.retryStart(auctionID)
		return
	}
	if err := m.setStatus(ctx, auction, domain.AuctionLive); err != nil {
		m.log.Error("Failed to mark auction live", "auction_id", auctionID, "error", err)
		m.retryStart(auctionID)
		return
	}

	m.rooms.Put(auction)
	m.scheduler.Schedule(auctionID, auction.EndsAt(), domain.JobEnd)
	m.writer.AppendLog(ctx, &domain.LogEntry{
		AuctionID: auctionID,
		Type:      domain.LogStart,
		Bid:       &auction.StartBid,
		Timestamp: m.now(),
	})
	m.fanout.Broadcast(auctionID, domain.EventAuctionStarted, AuctionStartedPayload{
		AuctionID: auctionID,
		StartBid:  auction.StartBid.InexactFloat64(),
		EndsAt:    auction.EndsAt(),
	})

	m.log.Info("Auction started", "auction_id", auctionID, "ends_at", auction.EndsAt())
}

func (m *LifecycleManager) retryStart(auctionID string) {
	m.scheduler.Schedule(auctionID, m.now().Add(m.cfg.StartRetryDelay), domain.JobStart)
}

func (m *LifecycleManager) retryEnd(auctionID string) {
	m.scheduler.Schedule(auctionID, m.now().Add(m.cfg.StartRetryDelay), domain.JobEnd)
}

// endLocked reports false when the auction was not live, which makes a
// repeated end a no-op.
func (m *LifecycleManager) endLocked(ctx context.Context, auctionID, message string) (bool, error) {
	auction, err := m.load(ctx, auctionID)
	if err != nil {
		// A live room can still close from its snapshot and the bid cache;
		// the final write waits in the durable writer.
		snapshot, live := m.rooms.Get(auctionID)
		if errors.Is(err, domain.ErrAuctionNotFound) || !live {
			return false, err
		}
		m.log.Warn("Store unavailable at end, closing from live snapshot", "auction_id", auctionID, "error", err)
		auction = snapshot
	}
	wasLive := m.rooms.IsLive(auctionID)
	if auction.Status != domain.AuctionLive && !wasLive {
		m.log.Debug("End ignored, auction not live", "auction_id", auctionID, "status", auction.Status)
		return false, nil
	}

	final, err := m.cache.Get(ctx, auctionID)
	if err != nil {
		m.log.Warn("Bid state unavailable at end, using stored bid", "auction_id", auctionID, "error", err)
		final = bidStateOf(auction)
	}

	m.rooms.Remove(auctionID)

	ended := domain.AuctionEnded
	update := domain.AuctionUpdate{Status: &ended, CurrentBid: &final.Bid}
	if final.HasBidder() {
		update.HighestBidder = &final.Bidder
	} else {
		update.ClearHighestBidder = true
	}
	if err := m.writer.Update(ctx, auctionID, update); err != nil && !errors.Is(err, domain.ErrAuctionNotFound) {
		m.log.Warn("Auction ended but store write deferred", "auction_id", auctionID)
	}

	entry := &domain.LogEntry{AuctionID: auctionID, Type: domain.LogEnd, Bid: &final.Bid, Timestamp: m.now()}
	if final.HasBidder() {
		entry.Bidder = &final.Bidder
	}
	m.writer.AppendLog(ctx, entry)

	m.fanout.Broadcast(auctionID, domain.EventAuctionEnded, AuctionEndedPayload{
		FinalBid: final.Bid.InexactFloat64(),
		Winner:   optional(final.Bidder),
		Message:  message,
	})
	m.scheduler.CancelAuction(auctionID)
	m.scheduleTeardown(auctionID)

	m.log.Info("Auction ended", "auction_id", auctionID, "final_bid", final.Bid.String(), "winner", final.Bidder)
	return true, nil
}

// scheduleTeardown clears the room and its bid state once clients have had
// the grace period to show the result.
func (m *LifecycleManager) scheduleTeardown(auctionID string) {
	m.teardownMu.Lock()
	defer m.teardownMu.Unlock()

	if existing, ok := m.teardowns[auctionID]; ok {
		existing.Stop()
	}
	m.teardowns[auctionID] = time.AfterFunc(m.cfg.GracePeriod, func() {
		m.teardown(auctionID)
	})
}

func (m *LifecycleManager) teardown(auctionID string) {
	unlock := m.locker.Lock(auctionID)
	defer unlock()

	m.teardownMu.Lock()
	delete(m.teardowns, auctionID)
	m.teardownMu.Unlock()

	if m.rooms.IsLive(auctionID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sessions := m.members.ClearAuction(auctionID)
	if err := m.cache.Delete(ctx, auctionID); err != nil {
		m.log.Warn("Failed to remove bid state", "auction_id", auctionID, "error", err)
	}
	m.log.Debug("Room torn down", "auction_id", auctionID, "sessions", len(sessions))
}

// Reconcile re-arms timers and live rooms from the store. It runs at startup
// and periodically, and only adds what is missing.
func (m *LifecycleManager) Reconcile(ctx context.Context) error {
	auctions, err := m.store.ListAuctions(ctx,
		domain.AuctionScheduled, domain.AuctionPending, domain.AuctionAccepted, domain.AuctionLive)
	if err != nil {
		return fmt.Errorf("lifecycle: list active auctions: %w", err)
	}

	for _, listed := range auctions {
		m.reconcileOne(ctx, listed.ID)
	}
	return nil
}

func (m *LifecycleManager) reconcileOne(ctx context.Context, auctionID string) {
	unlock := m.locker.Lock(auctionID)
	defer unlock()

	auction, err := m.load(ctx, auctionID)
	if err != nil {
		if !errors.Is(err, domain.ErrAuctionNotFound) {
			m.log.Warn("Reconcile could not load auction", "auction_id", auctionID, "error", err)
		}
		return
	}

	switch auction.Status {
	case domain.AuctionAccepted:
		if !m.scheduler.Pending(auctionID, domain.JobStart) {
			m.scheduler.Schedule(auctionID, auction.StartDate, domain.JobStart)
		}
	case domain.AuctionScheduled, domain.AuctionPending:
		if auction.StartDate.After(m.now()) && !m.scheduler.Pending(auctionID, domain.JobStart) {
			m.scheduler.Schedule(auctionID, auction.StartDate, domain.JobStart)
		}
	case domain.AuctionLive:
		created, err := m.cache.Initialize(ctx, auctionID, bidStateOf(auction), m.bidStateTTL(auction))
		if err != nil {
			m.log.Error("Failed to restore bid state", "auction_id", auctionID, "error", err)
			return
		}
		if !m.rooms.IsLive(auctionID) {
			m.rooms.Put(auction)
			m.log.Info("Resumed live auction", "auction_id", auctionID, "bid_state_restored", created)
		} else if created {
			m.log.Warn("Restored lost bid state for live auction", "auction_id", auctionID)
		}
		if !m.scheduler.Pending(auctionID, domain.JobEnd) {
			m.scheduler.Schedule(auctionID, auction.EndsAt(), domain.JobEnd)
		}
	}
}

// RestoreBidState rebuilds a live room's bid state from the durable record
// when the cache lost it. The caller holds the auction lock.
func (m *LifecycleManager) RestoreBidState(ctx context.Context, auctionID string) (domain.BidState, error) {
	auction, err := m.load(ctx, auctionID)
	if err != nil {
		return domain.BidState{}, err
	}
	if _, err := m.cache.Initialize(ctx, auctionID, bidStateOf(auction), m.bidStateTTL(auction)); err != nil {
		return domain.BidState{}, fmt.Errorf("lifecycle: restore bid state %s: %w", auctionID, err)
	}
	return m.cache.Get(ctx, auctionID)
}

// Close stops pending teardown timers.
func (m *LifecycleManager) Close() {
	m.teardownMu.Lock()
	defer m.teardownMu.Unlock()
	for id, timer := range m.teardowns {
		timer.Stop()
		delete(m.teardowns, id)
	}
}

// Load returns the auction as the engine currently sees it.
func (m *LifecycleManager) Load(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return m.load(ctx, auctionID)
}

// ListAuctions returns auctions in the given statuses, or all of them, ordered by start date.
func (m *LifecycleManager) ListAuctions(ctx context.Context, statuses ...domain.AuctionStatus) ([]*domain.Auction, error) {
	auctions, err := m.store.ListAuctions(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list auctions: %w", err)
	}
	for _, auction := range auctions {
		m.writer.Overlay(auction)
	}
	return auctions, nil
}

// History returns the audit log of an auction, oldest first. Entries still
// queued for the store are not included.
func (m *LifecycleManager) History(ctx context.Context, auctionID string) ([]*domain.LogEntry, error) {
	if _, err := m.load(ctx, auctionID); err != nil {
		return nil, err
	}
	entries, err := m.store.ListLogEntries(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list logs %s: %w", auctionID, err)
	}
	return entries, nil
}

func (m *LifecycleManager) load(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := m.store.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lifecycle: load auction %s: %w", auctionID, err)
	}
	m.writer.Overlay(auction)
	return auction, nil
}

func (m *LifecycleManager) setStatus(ctx context.Context, auction *domain.Auction, status domain.AuctionStatus) error {
	if err := m.store.UpdateAuction(ctx, auction.ID, domain.AuctionUpdate{Status: &status}); err != nil {
		return fmt.Errorf("lifecycle: set %s status %s: %w", auction.ID, status, err)
	}
	auction.Status = status
	return nil
}

func (m *LifecycleManager) bidStateTTL(auction *domain.Auction) time.Duration {
	remaining := auction.EndsAt().Sub(m.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining + m.cfg.BidStateTTL
}

func bidStateOf(auction *domain.Auction) domain.BidState {
	state := domain.BidState{Bid: auction.CurrentBid}
	if auction.HighestBidder != nil {
		state.Bidder = *auction.HighestBidder
	}
	if state.Bid.LessThan(auction.StartBid) {
		state.Bid = auction.StartBid
	}
	return state
}
