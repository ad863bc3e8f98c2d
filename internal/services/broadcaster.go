package services

import (
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// Broadcaster fans events out to the sessions of a room. Callers hold the
// auction lock, so two broadcasts for one auction are enqueued in commit order.
type Broadcaster struct {
	members *Membership
	sender  domain.SessionSender
	log     logger.Logger
}

func NewBroadcaster(members *Membership, sender domain.SessionSender, log logger.Logger) *Broadcaster {
	return &Broadcaster{members: members, sender: sender, log: log}
}

// Broadcast returns how many sessions accepted the event.
func (b *Broadcaster) Broadcast(auctionID, name string, payload interface{}) int {
	event := domain.Event{Name: name, AuctionID: auctionID, Payload: payload, Timestamp: time.Now()}

	delivered := 0
	for _, sessionID := range b.members.Sessions(auctionID) {
		if err := b.sender.Send(sessionID, event); err != nil {
			b.log.Warn("Failed to deliver event", "auction_id", auctionID, "session_id", sessionID, "event", name, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Broadcaster) SendTo(sessionID, auctionID, name string, payload interface{}) error {
	event := domain.Event{Name: name, AuctionID: auctionID, Payload: payload, Timestamp: time.Now()}
	if err := b.sender.Send(sessionID, event); err != nil {
		b.log.Warn("Failed to deliver event", "session_id", sessionID, "event", name, "error", err)
		return err
	}
	return nil
}
