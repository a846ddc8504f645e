package domain

// Connection roles. A broadcaster token is minted by the platform when a
// creator goes live; everyone else connects as a viewer.
const (
	RoleViewer      = "viewer"
	RoleBroadcaster = "broadcaster"
)

// Identity is the verified user behind a connection. It is established
// once at the WebSocket handshake and never changes for the lifetime of
// the connection.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// IsBroadcaster reports whether the connection was opened with a
// broadcaster token.
func (i Identity) IsBroadcaster() bool {
	return i.Role == RoleBroadcaster
}
