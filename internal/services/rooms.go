package services

import (
	"sync"

	"live-auction/internal/domain"
)

// RoomRegistry holds a snapshot of every auction that is currently Live.
// Only the lifecycle manager adds or removes entries, always under the
// auction lock, so membership here is authoritative for "is live".
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Auction
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*domain.Auction)}
}

func (r *RoomRegistry) Put(auction *domain.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[auction.ID] = auction.Clone()
}

func (r *RoomRegistry) Get(auctionID string) (*domain.Auction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	auction, ok := r.rooms[auctionID]
	if !ok {
		return nil, false
	}
	return auction.Clone(), true
}

func (r *RoomRegistry) IsLive(auctionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[auctionID]
	return ok
}

func (r *RoomRegistry) Remove(auctionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[auctionID]
	delete(r.rooms, auctionID)
	return ok
}

func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
