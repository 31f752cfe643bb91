package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager keeps websocket subscribers grouped by topic.
type ConnectionManager struct {
	topics map[string]map[*Connection]bool
	mu     sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcast
}

// Connection is one websocket subscriber.
type Connection struct {
	ID       string
	PlayerID string
	Topic    string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds websocket limits and timeouts.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

type broadcast struct {
	topic string
	data  []byte
}

// DefaultConnectionConfig returns the default websocket settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. Call Start to begin
// delivering broadcasts.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultConnectionConfig().SendBuffer
	}
	return &ConnectionManager{
		topics: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Start delivers broadcasts until ctx is done, then closes every
// connection.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager stopped")
			return nil
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

// Subscribe upgrades the request and registers the connection on topic.
// render, when not nil, produces the first message the subscriber receives.
func (cm *ConnectionManager) Subscribe(w http.ResponseWriter, r *http.Request, playerID, topic string, render func() ([]byte, error)) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		Topic:       topic,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.register(c)

	// Rendered after registering so no change can fall between the initial
	// snapshot and the first broadcast.
	if render != nil {
		initial, err := render()
		if err != nil {
			cm.unregister(c)
			_ = conn.Close()
			return fmt.Errorf("failed to render initial snapshot: %w", err)
		}
		cm.enqueue(c, initial)
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("player_id", playerID).
		Str("topic", topic).
		Msg("websocket subscriber connected")
	return nil
}

// Broadcast queues data for every subscriber of topic. It never blocks.
func (cm *ConnectionManager) Broadcast(topic string, data []byte) {
	select {
	case cm.broadcastCh <- broadcast{topic: topic, data: data}:
	default:
		log.Warn().Str("topic", topic).Msg("broadcast channel full, dropping message")
	}
}

// Subscribers returns the number of connections on topic.
func (cm *ConnectionManager) Subscribers(topic string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.topics[topic])
}

// Stats counts connections per topic.
func (cm *ConnectionManager) Stats() map[string]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make(map[string]int, len(cm.topics))
	for topic, conns := range cm.topics {
		out[topic] = len(conns)
	}
	return out
}

func (cm *ConnectionManager) register(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.topics[c.Topic] == nil {
		cm.topics[c.Topic] = make(map[*Connection]bool)
	}
	cm.topics[c.Topic][c] = true
}

func (cm *ConnectionManager) unregister(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conns, ok := cm.topics[c.Topic]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	close(c.Send)
	if len(conns) == 0 {
		delete(cm.topics, c.Topic)
	}
	log.Debug().
		Str("connection_id", c.ID).
		Str("topic", c.Topic).
		Msg("websocket subscriber disconnected")
}

// enqueue sends to a single registered connection without blocking.
func (cm *ConnectionManager) enqueue(c *Connection, data []byte) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.topics[c.Topic][c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping initial snapshot")
	}
}

// deliver sends under the read lock so unregister cannot close a Send
// channel mid-send. Sends never block; slow subscribers are dropped.
func (cm *ConnectionManager) deliver(msg broadcast) {
	var slow []*Connection
	cm.mu.RLock()
	for c := range cm.topics[msg.topic] {
		select {
		case c.Send <- msg.data:
		default:
			slow = append(slow, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.ID).
			Str("topic", c.Topic).
			Msg("subscriber too slow, closing connection")
		cm.unregister(c)
		c.Conn.Close()
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, conns := range cm.topics {
		for c := range conns {
			all = append(all, c)
		}
	}
	cm.mu.RUnlock()
	for _, c := range all {
		cm.unregister(c)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; subscribers send commands over
// RPC, not the socket.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
	}
}
