package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/auth"
	"live-auction/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Inbound message types.
const (
	MessageJoin        = "join"
	MessageLeave       = "leave"
	MessageBid         = "bid"
	MessagePlaceBid    = "place_bid"
	MessageGetRoomInfo = "get_room_info"
	MessagePing        = "ping"
)

const messageTimeout = 10 * time.Second

type inboundMessage struct {
	Type      string          `json:"type"`
	AuctionID string          `json:"auctionId"`
	Amount    json.RawMessage `json:"amount"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler upgrades authenticated requests and forwards each inbound message
// to the engine. The engine answers the session itself.
type Handler struct {
	engine   domain.Bidder
	auth     domain.Authenticator
	manager  *ConnectionManager
	upgrader websocket.Upgrader
	opts     Options
	log      logger.Logger
}

func NewHandler(engine domain.Bidder, authenticator domain.Authenticator, manager *ConnectionManager, opts Options, log logger.Logger) *Handler {
	return &Handler{
		engine:  engine,
		auth:    authenticator,
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts: opts,
		log:  log,
	}
}

// Routes registers /ws and /ws/auction/{auctionID}; the latter joins the room on connect.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleConnection)
	r.HandleFunc("/ws/auction/{auctionID}", h.HandleConnection)
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Authenticate(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		h.log.Info("Rejected connection", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := newConnection(uuid.NewString(), identity.UserID, conn, h.opts, h.log)
	h.manager.Register(c)
	go c.writePump()

	if auctionID := mux.Vars(r)["auctionID"]; auctionID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
		h.join(ctx, c, auctionID)
		cancel()
	}

	c.readPump(h.dispatch)

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()
	h.engine.Leave(ctx, c.sessionID)
	h.manager.Unregister(c.sessionID)
}

func (h *Handler) dispatch(c *Connection, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.replyError(c, "INVALID_MESSAGE", "malformed message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	auctionID := msg.AuctionID
	if auctionID == "" {
		auctionID = c.room
	}

	switch msg.Type {
	case MessageJoin:
		if auctionID == "" {
			h.replyError(c, "VALIDATION_ERROR", "auctionId is required")
			return
		}
		h.join(ctx, c, auctionID)
	case MessageLeave:
		h.engine.Leave(ctx, c.sessionID)
		c.room = ""
	case MessageBid, MessagePlaceBid:
		if _, err := h.engine.PlaceBid(ctx, c.sessionID, auctionID, c.userID, parseAmount(msg.Amount)); err != nil {
			h.log.Debug("Bid rejected", "session_id", c.sessionID, "auction_id", auctionID, "error", err)
		}
	case MessageGetRoomInfo:
		_ = h.engine.SendRoomInfo(ctx, c.sessionID, auctionID)
	case MessagePing:
		_ = h.manager.Send(c.sessionID, domain.Event{Name: domain.EventPong, Timestamp: time.Now()})
	default:
		h.replyError(c, "INVALID_MESSAGE", "unknown message type: "+msg.Type)
	}
}

func (h *Handler) join(ctx context.Context, c *Connection, auctionID string) {
	if err := h.engine.Join(ctx, c.sessionID, auctionID, c.userID); err != nil {
		h.log.Debug("Join refused", "session_id", c.sessionID, "auction_id", auctionID, "error", err)
		return
	}
	c.room = auctionID
}

func (h *Handler) replyError(c *Connection, code, message string) {
	_ = h.manager.Send(c.sessionID, domain.Event{
		Name:      domain.EventError,
		Payload:   errorPayload{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// parseAmount accepts a JSON number or a numeric string. Anything else becomes
// zero so the engine reports it as an invalid amount.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return amount
}
