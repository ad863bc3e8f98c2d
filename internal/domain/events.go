package domain

import "time"

// Outbound event names delivered to sessions.
const (
	EventRoomInfo       = "room_info"
	EventAuthSuccess    = "auth_success"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventNewBid         = "new_bid"
	EventBidSuccess     = "bid_success"
	EventAuctionStarted = "auction_started"
	EventAuctionEnded   = "auction_ended"
	EventBidError       = "bid_error"
	EventError          = "error"
	EventPong           = "pong"
)

// Event is one notification for a session. Payload is encoded by the transport.
type Event struct {
	Name      string      `json:"type"`
	AuctionID string      `json:"auctionId,omitempty"`
	Payload   interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
