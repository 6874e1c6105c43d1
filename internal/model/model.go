package model

import (
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem is only ever sent to the completion provider, never stored.
	RoleSystem Role = "system"
)

// Valid reports whether r may be stored in a conversation.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation stores metadata about a thread of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageState tags which lifecycle a message is in.
type MessageState uint8

const (
	// StatePersisted messages carry a backend-assigned ID.
	StatePersisted MessageState = iota
	// StatePending is an optimistic placeholder identified by LocalID.
	StatePending
	// StateInterrupted is a placeholder whose stream failed part way. It keeps
	// its partial content but is never reconciled.
	StateInterrupted
)

func (s MessageState) String() string {
	switch s {
	case StatePersisted:
		return "persisted"
	case StatePending:
		return "pending"
	case StateInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("MessageState(%d)", uint8(s))
	}
}

func (s MessageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MessageState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "persisted":
		*s = StatePersisted
	case "pending":
		*s = StatePending
	case "interrupted":
		*s = StateInterrupted
	default:
		return fmt.Errorf("unknown message state %q", string(text))
	}
	return nil
}

// Message stores a single message in a conversation.
type Message struct {
	ID             string       `json:"id,omitempty"`
	LocalID        string       `json:"local_id,omitempty"` // Set only while not persisted.
	ConversationID string       `json:"conversation_id"`
	Role           Role         `json:"role"`
	Content        string       `json:"content"`
	CreatedAt      time.Time    `json:"created_at"`
	State          MessageState `json:"state,omitempty"`
}

// NewPendingMessage builds an optimistic placeholder with empty content.
func NewPendingMessage(localID, conversationID string, role Role, now time.Time) Message {
	return Message{
		LocalID:        localID,
		ConversationID: conversationID,
		Role:           role,
		CreatedAt:      now,
		State:          StatePending,
	}
}

// Pending reports whether m is an unreconciled placeholder.
func (m Message) Pending() bool { return m.State == StatePending }

// Persisted reports whether m has been confirmed by the backend.
func (m Message) Persisted() bool { return m.State == StatePersisted }

// Key returns the identity of m regardless of its state.
func (m Message) Key() string {
	if m.State == StatePersisted {
		return m.ID
	}
	return m.LocalID
}

// Settings holds the generation parameters stored alongside the history.
type Settings struct {
	SystemPrompt string  `json:"system_prompt" validate:"required,max=4000"`
	Model        string  `json:"model" validate:"required,max=200"`
	Temperature  float64 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int     `json:"max_tokens" validate:"gte=1,lte=32000"`
}
