package service

import (
	"context"

	"github.com/directfanz/interact-service/internal/hub"
)

// InteractService processes inbound client events: it validates them, applies
// their durable side effects, and drives the room broadcasts that follow.
// Rejections go to the originating client only.
type InteractService interface {
	HandleConnect(ctx context.Context, client *hub.Client)
	HandleJoinStream(ctx context.Context, client *hub.Client, streamID string) error
	HandleLeaveStream(ctx context.Context, client *hub.Client, streamID string) error
	HandleChat(ctx context.Context, client *hub.Client, streamID, content string) error
	HandleDonation(ctx context.Context, client *hub.Client, streamID string, amount int64, message string) error
	HandleLike(ctx context.Context, client *hub.Client, streamID string) error
	HandleDisconnect(ctx context.Context, client *hub.Client)
	Start(ctx context.Context) error
	Stop() error
}
