package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SendMessageRequest is the inbound chat message.
type SendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// ResponseMetadata describes how the reply was produced.
type ResponseMetadata struct {
	TokenCount int    `json:"tokenCount"`
	LatencyMs  int64  `json:"latencyMs"`
	Model      string `json:"model"`
}

// SendMessageResponse is returned after a successful provider reply.
type SendMessageResponse struct {
	Message   string           `json:"message"`
	SessionID string           `json:"sessionId"`
	Metadata  ResponseMetadata `json:"metadata"`
}

// HistoryQuery selects a page of sessions.
type HistoryQuery struct {
	Page      int
	PageSize  int
	SessionID string
}

// Pagination is the metadata returned with a history page.
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	Limit         int  `json:"limit"`
	TotalSessions int  `json:"totalSessions"`
	TotalPages    int  `json:"totalPages"`
	HasNext       bool `json:"hasNext"`
	HasPrev       bool `json:"hasPrev"`
}

// HistoryPage is one page of active sessions.
type HistoryPage struct {
	Sessions   []Session  `json:"sessions"`
	Pagination Pagination `json:"pagination"`
}

// UsageStats aggregates an owner's active sessions.
type UsageStats struct {
	TotalSessions             int     `json:"totalSessions"`
	TotalMessages             int     `json:"totalMessages"`
	AverageMessagesPerSession float64 `json:"averageMessagesPerSession"`
}

// ValidateOwnerID checks an identity handed over by the credential layer.
// Owner ids are opaque; only their shape is checked.
func ValidateOwnerID(ownerID string) error {
	return validateKey("owner id", ownerID, MaxOwnerIDLength)
}

// ValidateSessionID checks a caller supplied session id.
func ValidateSessionID(sessionID string) error {
	return validateKey("session id", sessionID, MaxSessionIDLength)
}

func validateKey(name, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return NewValidationError("%s is required", name)
	}
	if utf8.RuneCountInString(v) > max {
		return NewValidationError("%s is too long (max %d characters)", name, max)
	}
	for _, r := range v {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return NewValidationError("%s contains invalid characters", name)
		}
	}
	return nil
}
