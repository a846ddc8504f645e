package registry

import "context"

// Registry advertises which instance hosts each active stream and mirrors
// viewer counts for off-process consumers such as edge routers and the
// discovery page. The in-process hub stays authoritative; nothing written
// here is ever read back to answer a client.
type Registry interface {
	RegisterStream(ctx context.Context, streamID string) error
	DeregisterStream(ctx context.Context, streamID string) error
	PublishViewerCount(ctx context.Context, streamID string, count int) error
	Lookup(ctx context.Context, streamID string) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
