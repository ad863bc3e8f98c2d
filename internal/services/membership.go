package services

import (
	"sort"
	"sync"

	"live-auction/internal/domain"
)

// Membership tracks which session sits in which auction room.
// A session is in at most one room.
type Membership struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	rooms    map[string]map[string]struct{}
}

func NewMembership() *Membership {
	return &Membership{
		sessions: make(map[string]domain.Session),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// Join places the session in auctionID, removing it from any other room first.
// previous is the room the session was in before, or "" if none.
func (m *Membership) Join(sessionID, userID, auctionID, sellerID string) (previous string, err error) {
	if userID == sellerID {
		return "", domain.ErrSellerCannotJoin
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.sessions[sessionID]; ok {
		previous = current.AuctionID
		if previous == auctionID && current.UserID == userID {
			return previous, nil
		}
		m.removeLocked(sessionID)
	}

	m.sessions[sessionID] = domain.Session{ID: sessionID, UserID: userID, AuctionID: auctionID}
	room, ok := m.rooms[auctionID]
	if !ok {
		room = make(map[string]struct{})
		m.rooms[auctionID] = room
	}
	room[sessionID] = struct{}{}
	return previous, nil
}

// Leave is a no-op for sessions without a room.
func (m *Membership) Leave(sessionID string) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(sessionID)
}

func (m *Membership) removeLocked(sessionID string) (domain.Session, bool) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return domain.Session{}, false
	}
	delete(m.sessions, sessionID)
	if room, ok := m.rooms[session.AuctionID]; ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(m.rooms, session.AuctionID)
		}
	}
	return session, true
}

func (m *Membership) MembersOf(auctionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[auctionID])
}

func (m *Membership) AuctionOf(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session.AuctionID, ok
}

func (m *Membership) UserOf(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session.UserID, ok
}

func (m *Membership) Session(sessionID string) (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session, ok
}

// Sessions returns the room's session ids in a stable order.
func (m *Membership) Sessions(auctionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.rooms[auctionID]))
	for id := range m.rooms[auctionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearAuction empties the room and returns the sessions that were in it.
func (m *Membership) ClearAuction(auctionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.rooms[auctionID]))
	for id := range m.rooms[auctionID] {
		delete(m.sessions, id)
		ids = append(ids, id)
	}
	delete(m.rooms, auctionID)
	sort.Strings(ids)
	return ids
}
