package model

// SessionInfo describes a joined session to the transport layer.
type SessionInfo struct {
	ID       string
	Role     Role
	Identity Identity
	Room     string
}
