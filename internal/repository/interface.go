package repository

import (
	"context"

	"github.com/directfanz/interact-service/internal/domain"
)

// Store persists the durable side of live-stream interactions: the chat feed,
// donation events, like tallies, and viewer sessions.
type Store interface {
	// CreateChatMessage appends one entry to a stream's chat feed,
	// assigning its id and timestamp.
	CreateChatMessage(ctx context.Context, msg *domain.ChatMessage) error

	// CreateDonationWithChat writes a donation event and its annotated
	// chat entry in one transaction; either both land or neither does.
	CreateDonationWithChat(ctx context.Context, donation *domain.DonationEvent, chat *domain.ChatMessage) error

	// UpsertLike records that a user liked a stream. It reports true only
	// when the tally gained a new row, so repeats can be told apart
	// without a prior read.
	UpsertLike(ctx context.Context, streamID, userID string) (bool, error)

	// CountLikes returns the number of distinct users who liked a stream.
	CountLikes(ctx context.Context, streamID string) (int, error)

	// OpenViewerSession opens a viewing session unless the user already
	// has one open for the stream.
	OpenViewerSession(ctx context.Context, streamID, userID string) error

	// CloseViewerSessions stamps the departure time on the user's open
	// sessions for the stream. Closing when none are open is a no-op.
	CloseViewerSessions(ctx context.Context, streamID, userID string) error
}
