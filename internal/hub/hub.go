package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/internal/domain"
	"github.com/directfanz/interact-service/internal/metrics"
	"github.com/directfanz/interact-service/pkg/log"
)

// Hub tracks every live connection and every active stream room. Connection
// state lives behind h.mu; per-stream state lives behind each room's own
// mutex so that mutate-then-broadcast sequences for one stream are serialized
// without stalling the others.
//
// Lock order is room.mu, then h.mu (read), then Client.mu. No path acquires a
// room mutex while holding h.mu.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*Client // connection ID -> client
	connsByUser map[string]*Client // user ID -> live client
	rooms       map[string]*room

	config config.WebSocketConfig
}

// room is the in-memory state of one active stream. members maps user ID to
// the connection ID that joined, so a stale connection of a reconnected user
// can neither receive nor mutate on the user's behalf. likeCount is seeded
// from storage when the room is created and is authoritative while the room
// lives.
type room struct {
	id string

	mu        sync.Mutex
	members   map[string]string // user ID -> connection ID
	likeCount int
	closed    bool
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		connsByUser: make(map[string]*Client),
		rooms:       make(map[string]*room),
		config:      cfg,
	}
}

// Run periodically publishes hub gauges and a stats line until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conns, streams := h.counts()
			metrics.ActiveConnections.Set(float64(conns))
			metrics.ActiveStreams.Set(float64(streams))
			log.L().Debug().Int("connections", conns).Int("streams", streams).Msg("hub stats")
		}
	}
}

// AttachClient registers a connection. A user gets one live connection: an
// existing one for the same user is detached and returned so the caller can
// run its leave flow.
func (h *Hub) AttachClient(c *Client) *Client {
	h.mu.Lock()
	old := h.connsByUser[c.Identity.UserID]
	if old != nil {
		delete(h.clients, old.ID)
	}
	h.clients[c.ID] = c
	h.connsByUser[c.Identity.UserID] = c
	h.mu.Unlock()

	if old != nil {
		old.markDetached()
		log.L().Info().
			Str(log.FieldUserID, c.Identity.UserID).
			Str(log.FieldConnID, c.ID).
			Str("replaced_conn_id", old.ID).
			Msg("connection replaced")
	}
	return old
}

// DetachClient removes a connection from the registry. It reports false when
// the connection was already detached, so duplicate unregisters are no-ops.
func (h *Hub) DetachClient(c *Client) bool {
	h.mu.Lock()
	cur := h.connsByUser[c.Identity.UserID]
	if cur != c {
		delete(h.clients, c.ID)
		h.mu.Unlock()
		return false
	}
	delete(h.clients, c.ID)
	delete(h.connsByUser, c.Identity.UserID)
	h.mu.Unlock()

	c.markDetached()
	return true
}

// JoinStream adds the connection's user to the stream room, creating the room
// with the given like seed if it does not exist. The joiner always receives a
// stream_joined snapshot; the rest of the room hears a viewer count update
// only when membership actually changed. Rejoining the same stream on the
// same connection is a no-op apart from the snapshot.
func (h *Hub) JoinStream(c *Client, streamID string, likeSeed int) (viewers int, joined bool) {
	uid := c.Identity.UserID
	for {
		r := h.getOrCreateRoom(streamID, likeSeed)
		r.mu.Lock()
		if r.closed {
			// Lost a race with the last leaver tearing the room down.
			r.mu.Unlock()
			continue
		}

		prevConn, present := r.members[uid]
		if present && prevConn == c.ID {
			snapshot := domain.StreamJoinedMessage{
				Type:        domain.MsgTypeStreamJoined,
				StreamID:    streamID,
				ViewerCount: len(r.members),
				LikeCount:   r.likeCount,
			}
			c.SendMessage(snapshot)
			r.mu.Unlock()
			return snapshot.ViewerCount, false
		}

		r.members[uid] = c.ID
		c.addJoined(streamID)
		viewers = len(r.members)
		snapshot := domain.StreamJoinedMessage{
			Type:        domain.MsgTypeStreamJoined,
			StreamID:    streamID,
			ViewerCount: viewers,
			LikeCount:   r.likeCount,
		}
		c.SendMessage(snapshot)
		if !present {
			h.fanOut(r, domain.NewViewerCountMessage(streamID, viewers))
		}
		r.mu.Unlock()
		return viewers, !present
	}
}

// LeaveStream removes the connection's user from the room. It reports false
// when the connection held no membership, which makes repeated leaves and
// leave-after-reconnect no-ops. The last leaver tears the room down.
func (h *Hub) LeaveStream(c *Client, streamID string) (remaining int, left bool) {
	c.removeJoined(streamID)

	r := h.getRoom(streamID)
	if r == nil {
		return 0, false
	}

	uid := c.Identity.UserID
	r.mu.Lock()
	if r.closed || r.members[uid] != c.ID {
		r.mu.Unlock()
		return 0, false
	}
	delete(r.members, uid)
	remaining = len(r.members)
	if remaining == 0 {
		r.closed = true
	} else {
		h.fanOut(r, domain.NewViewerCountMessage(streamID, remaining))
	}
	r.mu.Unlock()

	if remaining == 0 {
		h.deleteRoom(streamID, r)
	}
	return remaining, true
}

// ApplyLike bumps the room's like count when the tally gained a new row and
// broadcasts the resulting count either way, so every member converges on the
// same number.
func (h *Hub) ApplyLike(c *Client, streamID string, added bool) (int, bool) {
	r := h.getRoom(streamID)
	if r == nil {
		return 0, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.members[c.Identity.UserID] != c.ID {
		return 0, false
	}
	if added {
		r.likeCount++
	}
	h.fanOut(r, domain.NewLikeCountMessage(streamID, r.likeCount))
	return r.likeCount, true
}

// BroadcastToStream delivers the given messages, in order, to every member of
// the stream under one room lock hold. Members whose connection has gone away
// are skipped. A missing room delivers to nobody and is not an error.
func (h *Hub) BroadcastToStream(streamID string, messages ...interface{}) (int, error) {
	frames := make([][]byte, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return 0, err
		}
		frames = append(frames, data)
	}

	r := h.getRoom(streamID)
	if r == nil {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, nil
	}
	return h.fanOutFrames(r, frames...), nil
}

// fanOut marshals and delivers one message to the room. Callers must hold
// r.mu.
func (h *Hub) fanOut(r *room, message interface{}) int {
	data, err := json.Marshal(message)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldStreamID, r.id).Msg("marshal broadcast failed")
		return 0
	}
	return h.fanOutFrames(r, data)
}

// fanOutFrames resolves each member's live connection at delivery time and
// queues the frames in order. Callers must hold r.mu.
func (h *Hub) fanOutFrames(r *room, frames ...[]byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	metrics.BroadcastsTotal.Inc()
	reached := 0
	for uid, connID := range r.members {
		c, ok := h.connsByUser[uid]
		if !ok || c.ID != connID {
			continue
		}
		delivered := true
		for _, frame := range frames {
			if !c.trySend(frame) {
				c.dropSlow()
				delivered = false
				break
			}
		}
		if delivered {
			reached++
		}
	}
	return reached
}

// ViewerCount returns the live member count for a stream, zero when the room
// is not active.
func (h *Hub) ViewerCount(streamID string) int {
	r := h.getRoom(streamID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	return len(r.members)
}

// StreamStats returns the live counters for one stream.
func (h *Hub) StreamStats(streamID string) (domain.StreamStats, bool) {
	r := h.getRoom(streamID)
	if r == nil {
		return domain.StreamStats{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.StreamStats{}, false
	}
	return domain.StreamStats{
		StreamID:    r.id,
		ViewerCount: len(r.members),
		LikeCount:   r.likeCount,
	}, true
}

// ActiveStreams snapshots the counters of every live room.
func (h *Hub) ActiveStreams() []domain.StreamStats {
	h.mu.RLock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	out := make([]domain.StreamStats, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			out = append(out, domain.StreamStats{
				StreamID:    r.id,
				ViewerCount: len(r.members),
				LikeCount:   r.likeCount,
			})
		}
		r.mu.Unlock()
	}
	return out
}

// ConnectionCount returns the number of attached connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every attached connection so their read pumps unwind
// through the normal disconnect path.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Conn.Close()
	}
}

func (h *Hub) getRoom(id string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[id]
}

func (h *Hub) getOrCreateRoom(id string, likeSeed int) *room {
	h.mu.RLock()
	r, ok := h.rooms[id]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[id]; ok {
		return r
	}
	r = &room{
		id:        id,
		members:   make(map[string]string),
		likeCount: likeSeed,
	}
	h.rooms[id] = r
	log.L().Info().Str(log.FieldStreamID, id).Int("like_seed", likeSeed).Msg("stream room opened")
	return r
}

// deleteRoom drops the room only if it is still the one we closed; a new room
// under the same stream ID may already have replaced it.
func (h *Hub) deleteRoom(id string, r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[id] == r {
		delete(h.rooms, id)
		log.L().Info().Str(log.FieldStreamID, id).Msg("stream room closed")
	}
}

func (h *Hub) counts() (conns, streams int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}
