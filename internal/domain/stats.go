package domain

// StreamStats is a point-in-time snapshot of one live stream, served by
// the REST surface. Counts come from the in-memory room state.
type StreamStats struct {
	StreamID    string `json:"stream_id"`
	ViewerCount int    `json:"viewer_count"`
	LikeCount   int    `json:"like_count"`
}
