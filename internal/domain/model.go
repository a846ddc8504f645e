package domain

import (
	"time"
)

// ChatType classifies entries in a stream's chat feed.
type ChatType string

const (
	ChatTypeMessage  ChatType = "message"
	ChatTypeDonation ChatType = "donation"
	ChatTypeSystem   ChatType = "system"
)

// ChatMessage is a persisted chat-feed entry. Donation-annotated entries
// carry the id of the donation they announce.
type ChatMessage struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Type       ChatType  `json:"type"`
	Content    string    `json:"content"`
	DonationID *string   `json:"donation_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DonationEvent records a donation whose payment was already captured by
// the billing service before it reached this hub.
type DonationEvent struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"stream_id"`
	DonorID   string    `json:"donor_id"`
	DonorName string    `json:"donor_name"`
	Amount    int64     `json:"amount"` // smallest currency unit
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessageModel is the GORM model for the chat_messages table.
type ChatMessageModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	StreamID   string    `gorm:"type:varchar(36);not null;index:idx_chat_stream_created,priority:1"`
	AuthorID   string    `gorm:"type:varchar(36);not null;index"`
	AuthorName string    `gorm:"type:varchar(50);not null"`
	Type       string    `gorm:"type:varchar(20);not null;default:'message'"`
	Content    string    `gorm:"type:text;not null"`
	DonationID *string   `gorm:"type:varchar(36)"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_chat_stream_created,priority:2"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts ChatMessageModel to a domain ChatMessage.
func (m *ChatMessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:         m.ID,
		StreamID:   m.StreamID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Type:       ChatType(m.Type),
		Content:    m.Content,
		DonationID: m.DonationID,
		CreatedAt:  m.CreatedAt,
	}
}

// ChatMessageToModel converts a domain ChatMessage to its GORM model.
func ChatMessageToModel(c *ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		ID:         c.ID,
		StreamID:   c.StreamID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Type:       string(c.Type),
		Content:    c.Content,
		DonationID: c.DonationID,
		CreatedAt:  c.CreatedAt,
	}
}

// DonationEventModel is the GORM model for the donation_events table.
type DonationEventModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	StreamID  string    `gorm:"type:varchar(36);not null;index"`
	DonorID   string    `gorm:"type:varchar(36);not null;index"`
	DonorName string    `gorm:"type:varchar(50);not null"`
	Amount    int64     `gorm:"not null"`
	Message   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for DonationEventModel.
func (DonationEventModel) TableName() string {
	return "donation_events"
}

// ToDomain converts DonationEventModel to a domain DonationEvent.
func (m *DonationEventModel) ToDomain() *DonationEvent {
	return &DonationEvent{
		ID:        m.ID,
		StreamID:  m.StreamID,
		DonorID:   m.DonorID,
		DonorName: m.DonorName,
		Amount:    m.Amount,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

// DonationEventToModel converts a domain DonationEvent to its GORM model.
func DonationEventToModel(d *DonationEvent) *DonationEventModel {
	return &DonationEventModel{
		ID:        d.ID,
		StreamID:  d.StreamID,
		DonorID:   d.DonorID,
		DonorName: d.DonorName,
		Amount:    d.Amount,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
	}
}

// ViewerRecordModel is the GORM model for the viewer_records table.
// A row is a viewing session: opened on join, closed (left_at set) on
// leave or disconnect. Live counts never come from this table.
type ViewerRecordModel struct {
	ID       string     `gorm:"type:varchar(36);primaryKey"`
	StreamID string     `gorm:"type:varchar(36);not null;index:idx_viewer_stream_user,priority:1"`
	UserID   string     `gorm:"type:varchar(36);not null;index:idx_viewer_stream_user,priority:2"`
	JoinedAt time.Time  `gorm:"not null"`
	LeftAt   *time.Time `gorm:"index"`
}

// TableName specifies the table name for ViewerRecordModel.
func (ViewerRecordModel) TableName() string {
	return "viewer_records"
}

// LikeTallyModel is the GORM model for the like_tallies table. The
// composite primary key collapses repeated likes from one user into a
// single row.
type LikeTallyModel struct {
	StreamID  string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for LikeTallyModel.
func (LikeTallyModel) TableName() string {
	return "like_tallies"
}
