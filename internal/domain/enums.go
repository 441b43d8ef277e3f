// Package domain defines the core domain models for the chat service.
package domain

// Role identifies who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	SessionStateActive  SessionState = "ACTIVE"
	SessionStateDeleted SessionState = "DELETED"
)

// Limits shared by the store, the service and the transport.
const (
	MaxTurnContentLength = 4000
	MaxSummaryLength     = 500
	MaxOwnerIDLength     = 128
	MaxSessionIDLength   = 128

	// SummaryPreviewLength is how much of the first user turn becomes the summary.
	SummaryPreviewLength = 100
)
