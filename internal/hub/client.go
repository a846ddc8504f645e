package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/internal/domain"
	"github.com/directfanz/interact-service/internal/metrics"
	"github.com/directfanz/interact-service/pkg/log"
)

// Client is one live WebSocket connection for an authenticated user.
type Client struct {
	ID       string
	Identity domain.Identity
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte

	mu       sync.Mutex
	joined   map[string]struct{}
	detached bool

	config config.WebSocketConfig
}

func NewClient(id string, identity domain.Identity, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, cfg.SendBufferSize),
		joined:   make(map[string]struct{}),
		config:   cfg,
	}
}

// ReadPump consumes inbound frames until the connection dies, then runs the
// disconnect callback exactly once.
func (c *Client) ReadPump(handler func(*Client, []byte), disconnect func(*Client)) {
	defer func() {
		disconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.L().Debug().Str(log.FieldConnID, c.ID).Err(err).Msg("websocket read failed")
			}
			break
		}

		handler(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a message for this connection only. A client whose
// buffer is full gets its socket closed so the disconnect path can reclaim
// its presence.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if !c.trySend(data) {
		c.dropSlow()
	}
	return nil
}

// trySend reports false only when the buffer is full. Sends to a detached
// client are dropped and reported as delivered; the connection is already on
// its way out.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) dropSlow() {
	metrics.SlowClientDrops.Inc()
	log.L().Warn().
		Str(log.FieldConnID, c.ID).
		Str(log.FieldUserID, c.Identity.UserID).
		Msg("send buffer full, closing connection")
	go c.Conn.Close()
}

// markDetached closes the send channel. Safe against concurrent trySend
// because both run under c.mu.
func (c *Client) markDetached() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return
	}
	c.detached = true
	close(c.Send)
}

func (c *Client) addJoined(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[streamID] = struct{}{}
}

func (c *Client) removeJoined(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, streamID)
}

// HasJoined reports whether this connection has an active membership in the
// given stream.
func (c *Client) HasJoined(streamID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[streamID]
	return ok
}

// JoinedStreams returns the streams this connection is currently a member of.
func (c *Client) JoinedStreams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.joined))
	for id := range c.joined {
		out = append(out, id)
	}
	return out
}
