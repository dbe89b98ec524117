package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// SessionKey identifies a conversation. It is opaque to the memory store;
// callers typically use a chat or channel identifier.
type SessionKey string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return goerr.New("invalid role", goerr.V("role", r))
	}
}

// MemoryEntry is one stored turn of a session. Entries are immutable once
// created and owned exclusively by their session.
type MemoryEntry struct {
	Role      Role
	Content   string
	Vector    []float32
	CreatedAt time.Time
}

// Recalled is a memory entry returned by similarity recall, carrying the
// cosine similarity against the query.
type Recalled struct {
	Role       Role
	Content    string
	Similarity float64
}

// Line renders the entry in the "role: content" form used for prompt context.
func (r Recalled) Line() string {
	return string(r.Role) + ": " + r.Content
}
