package websocket

import (
	"errors"
	"sync"
	"time"

	"live-auction/pkg/logger"

	"github.com/gorilla/websocket"
)

var (
	ErrSessionNotFound = errors.New("websocket: session not found")
	ErrSlowConsumer    = errors.New("websocket: send buffer full")
	ErrConnectionGone  = errors.New("websocket: connection closed")
)

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Send pings to peer with this period. Must be less than PongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Connection is one client socket. Reads happen on the handler goroutine,
// writes on writePump; everything else talks to it through enqueue.
type Connection struct {
	sessionID string
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	opts      Options
	log       logger.Logger

	// last room this connection asked to join; used when a message omits auctionId
	room string
}

func newConnection(sessionID, userID string, conn *websocket.Conn, opts Options, log logger.Logger) *Connection {
	return &Connection{
		sessionID: sessionID,
		userID:    userID,
		conn:      conn,
		send:      make(chan []byte, opts.SendBuffer),
		done:      make(chan struct{}),
		opts:      opts,
		log:       log,
	}
}

func (c *Connection) SessionID() string { return c.sessionID }

func (c *Connection) UserID() string { return c.userID }

// enqueue never blocks. A full buffer means the peer is not keeping up.
func (c *Connection) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionGone
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// close signals writePump to send a close frame and drop the socket.
func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "session_id", c.sessionID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			return
		}
	}
}

// readPump blocks until the peer goes away or the connection is closed.
func (c *Connection) readPump(handle func(c *Connection, data []byte)) {
	defer c.close()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn("Connection closed unexpectedly", "session_id", c.sessionID, "error", err)
			}
			return
		}
		handle(c, data)
	}
}
