package access

import (
	"context"
	"errors"
)

// ErrDenied means the platform answered and the viewer may not enter the
// stream. Any other error means no decision could be obtained, which callers
// treat as a denial without caching it.
var ErrDenied = errors.New("stream access denied")

// Checker answers whether a user may join a stream's room. Entitlement lives
// with the platform core: subscription tiers, blocks, and pay-per-view gates
// are its business, not this service's.
type Checker interface {
	CheckAccess(ctx context.Context, streamID, userID, role string) error
}
