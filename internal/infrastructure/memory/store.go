package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"live-auction/internal/domain"
)

// Store is a concurrency-safe in-memory durable store, used with
// store.driver=memory and by tests.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	logs     map[string][]*domain.LogEntry
	nextLog  int64
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[string]*domain.Auction),
		logs:     make(map[string][]*domain.LogEntry),
	}
}

func (s *Store) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auction.ID]; ok {
		return fmt.Errorf("memory: auction %s already exists", auction.ID)
	}
	s.auctions[auction.ID] = auction.Clone()
	return nil
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return auction.Clone(), nil
}

func (s *Store) UpdateAuction(ctx context.Context, auctionID string, update domain.AuctionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	auction.Apply(update)
	auction.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteAuction(ctx context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auctionID]; !ok {
		return domain.ErrAuctionNotFound
	}
	delete(s.auctions, auctionID)
	return nil
}

func (s *Store) ListAuctions(ctx context.Context, statuses ...domain.AuctionStatus) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[domain.AuctionStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	var auctions []*domain.Auction
	for _, auction := range s.auctions {
		if len(wanted) > 0 && !wanted[auction.Status] {
			continue
		}
		auctions = append(auctions, auction.Clone())
	}
	sort.Slice(auctions, func(i, j int) bool {
		return auctions[i].StartDate.Before(auctions[j].StartDate)
	})
	return auctions, nil
}

func (s *Store) AppendLogEntry(ctx context.Context, entry *domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLog++
	entry.ID = s.nextLog
	stored := *entry
	s.logs[entry.AuctionID] = append(s.logs[entry.AuctionID], &stored)
	return nil
}

func (s *Store) ListLogEntries(ctx context.Context, auctionID string) ([]*domain.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*domain.LogEntry, 0, len(s.logs[auctionID]))
	for _, entry := range s.logs[auctionID] {
		copied := *entry
		entries = append(entries, &copied)
	}
	return entries, nil
}
