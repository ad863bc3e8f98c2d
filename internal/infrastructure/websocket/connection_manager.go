package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// ConnectionManager maps session ids to live connections and implements
// domain.SessionSender for the engine's fan-out.
type ConnectionManager struct {
	connections map[string]*Connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		log:         log,
	}
}

func (cm *ConnectionManager) Register(conn *Connection) {
	cm.mutex.Lock()
	cm.connections[conn.sessionID] = conn
	total := len(cm.connections)
	cm.mutex.Unlock()

	cm.log.Info("Connection registered", "session_id", conn.sessionID, "user_id", conn.userID, "total_connections", total)
}

func (cm *ConnectionManager) Unregister(sessionID string) {
	cm.mutex.Lock()
	conn, ok := cm.connections[sessionID]
	delete(cm.connections, sessionID)
	total := len(cm.connections)
	cm.mutex.Unlock()

	if !ok {
		return
	}
	conn.close()
	cm.log.Info("Connection unregistered", "session_id", sessionID, "user_id", conn.userID, "total_connections", total)
}

// Send encodes the event and queues it on the session's connection. A session
// whose buffer is full is disconnected rather than waited on.
func (cm *ConnectionManager) Send(sessionID string, event domain.Event) error {
	cm.mutex.RLock()
	conn, ok := cm.connections[sessionID]
	cm.mutex.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("websocket: encode %s: %w", event.Name, err)
	}

	if err := conn.enqueue(data); err != nil {
		if errors.Is(err, ErrSlowConsumer) {
			cm.log.Warn("Dropping slow connection", "session_id", sessionID, "user_id", conn.userID)
			conn.close()
		}
		return err
	}
	return nil
}

func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// CloseAll asks every connection to close. Their handlers unregister them.
func (cm *ConnectionManager) CloseAll() {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	for _, conn := range cm.connections {
		conn.close()
	}
	cm.log.Info("Closing all connections", "total_connections", len(cm.connections))
}
