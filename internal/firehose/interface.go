package firehose

import "context"

// Event kinds shipped to the analytics firehose.
const (
	EventChat     = "chat"
	EventDonation = "donation"
	EventLike     = "like"
	EventJoin     = "join"
	EventLeave    = "leave"
)

// Event is one accepted interaction, emitted after its side effects landed.
// Consumers (analytics, creator dashboards, moderation tooling) replay these
// independently of the live fan-out.
type Event struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	RefID    string `json:"ref_id,omitempty"` // chat message or donation id
	Amount   int64  `json:"amount,omitempty"`
	Count    int    `json:"count,omitempty"` // viewer or like count after the event
	At       int64  `json:"at"`              // unix millis
}

// Producer ships events to the firehose topic.
type Producer interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
