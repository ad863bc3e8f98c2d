package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

type pendingUpdate struct {
	update   domain.AuctionUpdate
	since    time.Time
	attempts int
}

type pendingLog struct {
	entry *domain.LogEntry
	since time.Time
}

// DurableWriter applies store writes that follow an already committed cache
// change. Failed writes are kept and retried in the background; they are
// never rolled back. Update must be called with the auction lock held.
type DurableWriter struct {
	store     domain.AuctionStore
	locker    *KeyedLocker
	log       logger.Logger
	interval  time.Duration
	maxWindow time.Duration

	flushMu sync.Mutex
	mu      sync.Mutex
	pending map[string]*pendingUpdate
	logs    []pendingLog
}

func NewDurableWriter(store domain.AuctionStore, locker *KeyedLocker, interval, maxWindow time.Duration, log logger.Logger) *DurableWriter {
	return &DurableWriter{
		store:     store,
		locker:    locker,
		log:       log,
		interval:  interval,
		maxWindow: maxWindow,
		pending:   make(map[string]*pendingUpdate),
	}
}

// Update writes through to the store. On failure the fields are queued and the
// error is returned for logging only.
func (w *DurableWriter) Update(ctx context.Context, auctionID string, update domain.AuctionUpdate) error {
	err := w.store.UpdateAuction(ctx, auctionID, update)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			delete(w.pending, auctionID)
			return err
		}
		p, ok := w.pending[auctionID]
		if !ok {
			p = &pendingUpdate{since: time.Now()}
			w.pending[auctionID] = p
		}
		p.update = p.update.Merge(update)
		w.log.Warn("Store update failed, queued for retry", "auction_id", auctionID, "error", err)
		return err
	}

	if p, ok := w.pending[auctionID]; ok {
		p.update = p.update.Without(update)
		if p.update.Empty() {
			delete(w.pending, auctionID)
		}
	}
	return nil
}

// AppendLog appends an audit entry, queueing it when the store is unavailable.
func (w *DurableWriter) AppendLog(ctx context.Context, entry *domain.LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	w.mu.Lock()
	queued := len(w.logs) > 0
	if queued {
		// keep audit order behind the entries already waiting
		w.logs = append(w.logs, pendingLog{entry: entry, since: time.Now()})
	}
	w.mu.Unlock()
	if queued {
		return
	}

	if err := w.store.AppendLogEntry(ctx, entry); err != nil {
		w.log.Warn("Log append failed, queued for retry", "auction_id", entry.AuctionID, "type", entry.Type, "error", err)
		w.mu.Lock()
		w.logs = append(w.logs, pendingLog{entry: entry, since: time.Now()})
		w.mu.Unlock()
	}
}

// Overlay applies writes that have not reached the store yet onto a freshly
// read auction.
func (w *DurableWriter) Overlay(auction *domain.Auction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[auction.ID]; ok {
		auction.Apply(p.update)
	}
}

// Discard forgets queued field writes for a deleted auction.
func (w *DurableWriter) Discard(auctionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, auctionID)
}

func (w *DurableWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending) + len(w.logs)
}

// Health fails once any write has been waiting longer than the retry window.
func (w *DurableWriter) Health() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	oldest := time.Time{}
	for _, p := range w.pending {
		if oldest.IsZero() || p.since.Before(oldest) {
			oldest = p.since
		}
	}
	if len(w.logs) > 0 && (oldest.IsZero() || w.logs[0].since.Before(oldest)) {
		oldest = w.logs[0].since
	}
	if oldest.IsZero() {
		return nil
	}
	if age := time.Since(oldest); age > w.maxWindow {
		return fmt.Errorf("durable store writes pending for %s (%d queued)", age.Truncate(time.Second), len(w.pending)+len(w.logs))
	}
	return nil
}

// Run retries queued writes every interval until ctx is done.
func (w *DurableWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush makes one retry pass over everything queued.
func (w *DurableWriter) Flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	for _, id := range ids {
		w.retryUpdate(ctx, id)
	}
	w.retryLogs(ctx)
}

func (w *DurableWriter) retryUpdate(ctx context.Context, auctionID string) {
	unlock := w.locker.Lock(auctionID)
	defer unlock()

	w.mu.Lock()
	p, ok := w.pending[auctionID]
	if !ok {
		w.mu.Unlock()
		return
	}
	update := p.update
	w.mu.Unlock()

	err := w.store.UpdateAuction(ctx, auctionID, update)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err == nil:
		delete(w.pending, auctionID)
		w.log.Info("Queued store update applied", "auction_id", auctionID, "attempts", p.attempts+1)
	case errors.Is(err, domain.ErrAuctionNotFound):
		delete(w.pending, auctionID)
		w.log.Warn("Dropping queued update for missing auction", "auction_id", auctionID)
	default:
		p.attempts++
		w.log.Warn("Queued store update still failing", "auction_id", auctionID, "attempts", p.attempts, "error", err)
	}
}

func (w *DurableWriter) retryLogs(ctx context.Context) {
	for {
		w.mu.Lock()
		if len(w.logs) == 0 {
			w.mu.Unlock()
			return
		}
		next := w.logs[0]
		w.mu.Unlock()

		if err := w.store.AppendLogEntry(ctx, next.entry); err != nil {
			w.log.Warn("Queued log append still failing", "auction_id", next.entry.AuctionID, "error", err)
			return
		}

		w.mu.Lock()
		w.logs = w.logs[1:]
		w.mu.Unlock()
	}
}
