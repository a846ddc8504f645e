package domain

// WebSocket message types from client.
const (
	MsgTypeJoinStream  = "join_stream"
	MsgTypeLeaveStream = "leave_stream"
	MsgTypeStreamChat  = "stream_chat"
	MsgTypeStreamLike  = "stream_like"
	MsgTypePing        = "ping"

	// Sent by clients to announce a captured donation; also the type of
	// the room broadcast that results.
	MsgTypeStreamDonation = "stream_donation"
)

// WebSocket message types to client.
const (
	MsgTypeStreamJoined       = "stream_joined"
	MsgTypeViewerCountUpdated = "viewer_count_updated"
	MsgTypeStreamChatMessage  = "stream_chat_message"
	MsgTypeStreamLikeUpdated  = "stream_like_updated"
	MsgTypeError              = "error"
	MsgTypePong               = "pong"
)

// Error frame codes. Authentication failures never reach frame land; a bad
// token is answered with HTTP 401 before the upgrade.
const (
	ErrCodeAccessDenied  = "ACCESS_DENIED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeNotInStream   = "NOT_IN_STREAM"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinStreamMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

type LeaveStreamMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

type StreamChatInbound struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Message  string `json:"message"`
}

type StreamDonationInbound struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Amount   int64  `json:"amount"` // smallest currency unit, captured upstream
	Message  string `json:"message,omitempty"`
}

type StreamLikeInbound struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// Server -> Client messages

// Author identifies the user behind a broadcast event.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type StreamJoinedMessage struct {
	Type        string `json:"type"`
	StreamID    string `json:"stream_id"`
	ViewerCount int    `json:"viewer_count"`
	LikeCount   int    `json:"like_count"`
}

type ViewerCountMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Count    int    `json:"count"`
}

type ChatMessageOut struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	StreamID  string   `json:"stream_id"`
	ChatType  ChatType `json:"chat_type"`
	Content   string   `json:"content"`
	Author    Author   `json:"author"`
	CreatedAt int64    `json:"created_at"`
}

type DonationOut struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	StreamID  string `json:"stream_id"`
	Amount    int64  `json:"amount"`
	Message   string `json:"message,omitempty"`
	Donor     Author `json:"donor"`
	CreatedAt int64  `json:"created_at"`
}

type LikeCountMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Count    int    `json:"count"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

// NewChatMessageOut builds the room broadcast for a stored chat entry.
func NewChatMessageOut(m *ChatMessage) *ChatMessageOut {
	return &ChatMessageOut{
		Type:      MsgTypeStreamChatMessage,
		ID:        m.ID,
		StreamID:  m.StreamID,
		ChatType:  m.Type,
		Content:   m.Content,
		Author:    Author{ID: m.AuthorID, Username: m.AuthorName},
		CreatedAt: m.CreatedAt.UnixMilli(),
	}
}

// NewDonationOut builds the room broadcast for a stored donation event.
func NewDonationOut(d *DonationEvent) *DonationOut {
	return &DonationOut{
		Type:      MsgTypeStreamDonation,
		ID:        d.ID,
		StreamID:  d.StreamID,
		Amount:    d.Amount,
		Message:   d.Message,
		Donor:     Author{ID: d.DonorID, Username: d.DonorName},
		CreatedAt: d.CreatedAt.UnixMilli(),
	}
}

// NewViewerCountMessage builds the room broadcast for a presence change.
func NewViewerCountMessage(streamID string, count int) *ViewerCountMessage {
	return &ViewerCountMessage{
		Type:     MsgTypeViewerCountUpdated,
		StreamID: streamID,
		Count:    count,
	}
}

// NewLikeCountMessage builds the room broadcast for a like-tally change.
func NewLikeCountMessage(streamID string, count int) *LikeCountMessage {
	return &LikeCountMessage{
		Type:     MsgTypeStreamLikeUpdated,
		StreamID: streamID,
		Count:    count,
	}
}
