// Package memory owns the conversation, fact, and session lifecycle.
package memory

import "time"

// FactType classifies an extracted semantic fact.
type FactType string

const (
	FactLocation    FactType = "location"
	FactCondition   FactType = "condition"
	FactResource    FactType = "resource"
	FactEnvironment FactType = "environment"
	FactTemporal    FactType = "temporal"
)

// SemanticFact is a typed, importance-weighted inference extracted from one
// conversation turn. Facts are never updated in place.
type SemanticFact struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Type            FactType  `json:"fact_type"`
	Text            string    `json:"fact_text"`
	SourceMessageID int64     `json:"source_message_id,omitempty"`
	Importance      float64   `json:"importance"`
	Embedding       []float32 `json:"-"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

// ConversationMessage is one turn of dialogue, immutable once written.
type ConversationMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	IsUser    bool      `json:"is_user"`
	Category  string    `json:"category,omitempty"`
	Urgency   string    `json:"urgency,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session groups messages and facts under one conversational context.
type Session struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	LastActive   time.Time `json:"last_active"`
	AutoExpireAt time.Time `json:"auto_expire_at"`
	UserCleared  bool      `json:"user_cleared"`
}

// Stats holds aggregate counts across all sessions, for diagnostics.
type Stats struct {
	Conversations int `json:"conversations"`
	Facts         int `json:"facts"`
	Sessions      int `json:"sessions"`
}
