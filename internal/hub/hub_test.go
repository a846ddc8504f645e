package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/internal/domain"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 32,
	}
}

func newTestClient(h *Hub, connID, userID string) *Client {
	identity := domain.Identity{UserID: userID, Username: "user-" + userID, Role: domain.RoleViewer}
	return NewClient(connID, identity, h, nil, testWSConfig())
}

// frame is the superset of outbound payload fields the tests care about.
type frame struct {
	Type        string `json:"type"`
	StreamID    string `json:"stream_id"`
	ViewerCount int    `json:"viewer_count"`
	LikeCount   int    `json:"like_count"`
	Count       int    `json:"count"`
	Content     string `json:"content"`
	Amount      int64  `json:"amount"`
}

func nextFrame(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return frame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJoinStreamNotifiesJoinerThenRoom(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	c2 := newTestClient(h, "conn-2", "u2")
	require.Nil(t, h.AttachClient(c1))
	require.Nil(t, h.AttachClient(c2))

	viewers, joined := h.JoinStream(c1, "s1", 0)
	assert.Equal(t, 1, viewers)
	assert.True(t, joined)

	f := nextFrame(t, c1)
	assert.Equal(t, domain.MsgTypeStreamJoined, f.Type)
	assert.Equal(t, "s1", f.StreamID)
	assert.Equal(t, 1, f.ViewerCount)

	f = nextFrame(t, c1)
	assert.Equal(t, domain.MsgTypeViewerCountUpdated, f.Type)
	assert.Equal(t, 1, f.Count)

	viewers, joined = h.JoinStream(c2, "s1", 0)
	assert.Equal(t, 2, viewers)
	assert.True(t, joined)

	// The joiner hears its snapshot before the room-wide count update.
	f = nextFrame(t, c2)
	assert.Equal(t, domain.MsgTypeStreamJoined, f.Type)
	assert.Equal(t, 2, f.ViewerCount)
	f = nextFrame(t, c2)
	assert.Equal(t, domain.MsgTypeViewerCountUpdated, f.Type)
	assert.Equal(t, 2, f.Count)

	f = nextFrame(t, c1)
	assert.Equal(t, domain.MsgTypeViewerCountUpdated, f.Type)
	assert.Equal(t, 2, f.Count)
}

func TestJoinStreamTwiceOnlyResendsSnapshot(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	h.AttachClient(c1)

	h.JoinStream(c1, "s1", 0)
	nextFrame(t, c1) // stream_joined
	nextFrame(t, c1) // viewer_count_updated

	viewers, joined := h.JoinStream(c1, "s1", 0)
	assert.Equal(t, 1, viewers)
	assert.False(t, joined)

	f := nextFrame(t, c1)
	assert.Equal(t, domain.MsgTypeStreamJoined, f.Type)
	assert.Equal(t, 1, f.ViewerCount)
	assertNoFrame(t, c1)
}

func TestLeaveStreamNotifiesRemaining(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	c2 := newTestClient(h, "conn-2", "u2")
	h.AttachClient(c1)
	h.AttachClient(c2)
	h.JoinStream(c1, "s1", 0)
	h.JoinStream(c2, "s1", 0)
	drain(c1)
	drain(c2)

	remaining, left := h.LeaveStream(c2, "s1")
	assert.Equal(t, 1, remaining)
	assert.True(t, left)

	f := nextFrame(t, c1)
	assert.Equal(t, domain.MsgTypeViewerCountUpdated, f.Type)
	assert.Equal(t, 1, f.Count)
	assertNoFrame(t, c2)

	// Repeat leaves are no-ops.
	remaining, left = h.LeaveStream(c2, "s1")
	assert.Equal(t, 0, remaining)
	assert.False(t, left)
	assertNoFrame(t, c1)
}

func TestLastLeaverClosesRoom(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	h.AttachClient(c1)
	h.JoinStream(c1, "s1", 3)
	drain(c1)

	remaining, left := h.LeaveStream(c1, "s1")
	assert.Equal(t, 0, remaining)
	assert.True(t, left)

	_, ok := h.StreamStats("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, h.ViewerCount("s1"))

	// A later room is rebuilt from scratch with a fresh seed.
	h.JoinStream(c1, "s1", 7)
	f := nextFrame(t, c1)
	assert.Equal(t, domain.MsgTypeStreamJoined, f.Type)
	assert.Equal(t, 7, f.LikeCount)
}

func TestApplyLikeCounts(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	c2 := newTestClient(h, "conn-2", "u2")
	h.AttachClient(c1)
	h.AttachClient(c2)
	h.JoinStream(c1, "s1", 5)
	h.JoinStream(c2, "s1", 5)
	drain(c1)
	drain(c2)

	count, ok := h.ApplyLike(c1, "s1", true)
	require.True(t, ok)
	assert.Equal(t, 6, count)
	for _, c := range []*Client{c1, c2} {
		f := nextFrame(t, c)
		assert.Equal(t, domain.MsgTypeStreamLikeUpdated, f.Type)
		assert.Equal(t, 6, f.Count)
	}

	// A repeat like does not move the count but still converges the room.
	count, ok = h.ApplyLike(c1, "s1", false)
	require.True(t, ok)
	assert.Equal(t, 6, count)
	f := nextFrame(t, c2)
	assert.Equal(t, 6, f.Count)

	// Likes against a stream the user is not in are rejected.
	_, ok = h.ApplyLike(c1, "s2", true)
	assert.False(t, ok)
}

func TestBroadcastToStreamDeliversInOrder(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	c2 := newTestClient(h, "conn-2", "u2")
	h.AttachClient(c1)
	h.AttachClient(c2)
	h.JoinStream(c1, "s1", 0)
	h.JoinStream(c2, "s1", 0)
	drain(c1)
	drain(c2)

	donation := domain.DonationOut{
		Type:     domain.MsgTypeStreamDonation,
		ID:       "d1",
		StreamID: "s1",
		Amount:   500,
		Donor:    domain.Author{ID: "u1", Username: "user-u1"},
	}
	chat := domain.ChatMessageOut{
		Type:     domain.MsgTypeStreamChatMessage,
		ID:       "m1",
		StreamID: "s1",
		ChatType: domain.ChatTypeDonation,
		Content:  "thanks!",
		Author:   domain.Author{ID: "u1", Username: "user-u1"},
	}

	reached, err := h.BroadcastToStream("s1", donation, chat)
	require.NoError(t, err)
	assert.Equal(t, 2, reached)

	for _, c := range []*Client{c1, c2} {
		f := nextFrame(t, c)
		assert.Equal(t, domain.MsgTypeStreamDonation, f.Type)
		assert.Equal(t, int64(500), f.Amount)
		f = nextFrame(t, c)
		assert.Equal(t, domain.MsgTypeStreamChatMessage, f.Type)
		assert.Equal(t, "thanks!", f.Content)
	}
}

func TestBroadcastToMissingStreamIsSilent(t *testing.T) {
	h := NewHub(testWSConfig())
	reached, err := h.BroadcastToStream("nope", domain.NewLikeCountMessage("nope", 1))
	require.NoError(t, err)
	assert.Equal(t, 0, reached)
}

func TestBroadcastSkipsMembersWithoutLiveConnection(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	c2 := newTestClient(h, "conn-2", "u2")
	h.AttachClient(c1)
	h.AttachClient(c2)
	h.JoinStream(c1, "s1", 0)
	h.JoinStream(c2, "s1", 0)
	drain(c1)
	drain(c2)

	// u2's connection dies before its leave flow has run.
	require.True(t, h.DetachClient(c2))

	reached, err := h.BroadcastToStream("s1", domain.NewLikeCountMessage("s1", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, reached)

	f := nextFrame(t, c1)
	assert.Equal(t, 1, f.Count)
}

func TestAttachClientReplacesSameUser(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	require.Nil(t, h.AttachClient(c1))
	h.JoinStream(c1, "s1", 0)
	drain(c1)

	c1b := newTestClient(h, "conn-1b", "u1")
	old := h.AttachClient(c1b)
	require.Same(t, c1, old)

	// The replaced connection's send channel is closed.
	_, ok := <-c1.Send
	assert.False(t, ok)

	// Detaching the replaced connection is now a no-op.
	assert.False(t, h.DetachClient(c1))
	assert.Equal(t, 1, h.ConnectionCount())
}

func TestStaleConnectionCannotMutateRoom(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	h.AttachClient(c1)
	h.JoinStream(c1, "s1", 0)
	drain(c1)

	c1b := newTestClient(h, "conn-1b", "u1")
	h.AttachClient(c1b)

	// The new connection takes over the user's membership.
	viewers, joined := h.JoinStream(c1b, "s1", 0)
	assert.Equal(t, 1, viewers)
	assert.False(t, joined)

	// The stale connection can no longer leave or like on the user's behalf.
	_, left := h.LeaveStream(c1, "s1")
	assert.False(t, left)
	_, ok := h.ApplyLike(c1, "s1", true)
	assert.False(t, ok)
	assert.Equal(t, 1, h.ViewerCount("s1"))
}

func TestActiveStreams(t *testing.T) {
	h := NewHub(testWSConfig())
	c1 := newTestClient(h, "conn-1", "u1")
	c2 := newTestClient(h, "conn-2", "u2")
	h.AttachClient(c1)
	h.AttachClient(c2)
	h.JoinStream(c1, "s1", 2)
	h.JoinStream(c2, "s1", 2)
	h.JoinStream(c2, "s2", 0)

	stats := h.ActiveStreams()
	require.Len(t, stats, 2)

	byID := make(map[string]domain.StreamStats, len(stats))
	for _, s := range stats {
		byID[s.StreamID] = s
	}
	assert.Equal(t, 2, byID["s1"].ViewerCount)
	assert.Equal(t, 2, byID["s1"].LikeCount)
	assert.Equal(t, 1, byID["s2"].ViewerCount)
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}
