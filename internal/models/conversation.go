package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is one citation returned by the synchronous query endpoint.
type Source struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type Turn struct {
	ID        string
	Role      Role
	Content   string
	Sources   []Source
	CreatedAt time.Time
	// Incomplete marks an assistant turn whose answer ended on an error
	// or cancellation.
	Incomplete bool
}

// StatusSnapshot is the combined liveness view shown to the user.
type StatusSnapshot struct {
	Connected     bool
	DocumentCount int
	CheckedAt     time.Time
}
