package store

import (
	"slices"
	"time"

	"servimatt/chat/internal/model"
)

// Action is one state transition. Each action's apply method is its reducer.
type Action interface {
	apply(s *State)
}

// SetCurrentConversation changes the selection only; it never fetches.
type SetCurrentConversation struct{ ID string }

func (a SetCurrentConversation) apply(s *State) { s.CurrentConversationID = a.ID }

type SetStreaming struct{ Streaming bool }

func (a SetStreaming) apply(s *State) { s.IsStreaming = a.Streaming }

// SetError replaces the single global error slot.
type SetError struct{ Message string }

func (a SetError) apply(s *State) {
	s.Error = a.Message
	s.IsLoading = false
}

type ClearError struct{}

func (ClearError) apply(s *State) { s.Error = "" }

type ClearMessages struct{}

func (ClearMessages) apply(s *State) { s.Messages = nil }

// AddPendingMessage appends an optimistic placeholder; it becomes the
// chronologically last message.
type AddPendingMessage struct{ Message model.Message }

func (a AddPendingMessage) apply(s *State) {
	m := a.Message
	m.State = model.StatePending
	s.Messages = append(s.Messages, m)
}

// SetPendingContent replaces the whole content of the placeholder identified
// by LocalID. It is a no-op once the placeholder has left the cache.
type SetPendingContent struct {
	LocalID string
	Content string
}

func (a SetPendingContent) apply(s *State) {
	if i := indexOfLocal(s.Messages, a.LocalID); i >= 0 && s.Messages[i].Pending() {
		s.Messages[i].Content = a.Content
	}
}

// AbandonPending ends a placeholder whose stream failed: an empty placeholder
// is removed, one with partial content is kept as interrupted.
type AbandonPending struct{ LocalID string }

func (a AbandonPending) apply(s *State) {
	i := indexOfLocal(s.Messages, a.LocalID)
	if i < 0 || !s.Messages[i].Pending() {
		return
	}
	if s.Messages[i].Content == "" {
		s.Messages = slices.Delete(s.Messages, i, i+1)
		return
	}
	s.Messages[i].State = model.StateInterrupted
}

// --- results of backend operations ---

type loadStarted struct{}

func (loadStarted) apply(s *State) {
	s.IsLoading = true
	s.Error = ""
}

type conversationsLoaded struct{ conversations []model.Conversation }

func (a conversationsLoaded) apply(s *State) {
	s.IsLoading = false
	s.Conversations = slices.Clone(a.conversations)
}

type messagesLoaded struct{ messages []model.Message }

func (a messagesLoaded) apply(s *State) {
	s.IsLoading = false
	s.Messages = slices.Clone(a.messages)
}

type conversationCreated struct{ conversation model.Conversation }

func (a conversationCreated) apply(s *State) {
	s.Conversations = slices.Insert(s.Conversations, 0, a.conversation)
	s.CurrentConversationID = a.conversation.ID
}

type conversationUpdated struct{ conversation model.Conversation }

func (a conversationUpdated) apply(s *State) {
	for i := range s.Conversations {
		if s.Conversations[i].ID == a.conversation.ID {
			s.Conversations[i] = a.conversation
			return
		}
	}
}

type conversationDeleted struct{ id string }

func (a conversationDeleted) apply(s *State) {
	s.Conversations = slices.DeleteFunc(s.Conversations, func(c model.Conversation) bool { return c.ID == a.id })
	if s.CurrentConversationID == a.id {
		s.CurrentConversationID = ""
		s.Messages = nil
		return
	}
	s.Messages = slices.DeleteFunc(s.Messages, func(m model.Message) bool { return m.ConversationID == a.id })
}

// messageSaved reconciles a persisted message into the cache and records the
// parent's new updated_at.
type messageSaved struct {
	message   model.Message
	touchedAt time.Time
}

func (a messageSaved) apply(s *State) {
	s.Messages = reconcile(s.Messages, a.message)

	for i, c := range s.Conversations {
		if c.ID != a.message.ConversationID {
			continue
		}
		if !a.touchedAt.IsZero() {
			c.UpdatedAt = a.touchedAt
		}
		s.Conversations = slices.Delete(s.Conversations, i, i+1)
		s.Conversations = slices.Insert(s.Conversations, 0, c)
		break
	}
}

// messageSaveFailed purges every unreconciled message of every conversation.
type messageSaveFailed struct{ message string }

func (a messageSaveFailed) apply(s *State) {
	s.Error = a.message
	s.IsLoading = false
	s.Messages = slices.DeleteFunc(s.Messages, func(m model.Message) bool { return !m.Persisted() })
}

// reconcile replaces the earliest pending placeholder with the same
// conversation and role, unless a persisted message matching both was cached
// after it. Otherwise the message is appended. Already cached ids are ignored.
func reconcile(messages []model.Message, saved model.Message) []model.Message {
	for _, m := range messages {
		if m.Persisted() && m.ID == saved.ID {
			return messages
		}
	}
	for i, m := range messages {
		if !m.Pending() || m.ConversationID != saved.ConversationID || m.Role != saved.Role {
			continue
		}
		superseded := slices.ContainsFunc(messages[i+1:], func(later model.Message) bool {
			return later.Persisted() && later.ConversationID == saved.ConversationID && later.Role == saved.Role
		})
		if !superseded {
			messages[i] = saved
			return messages
		}
	}
	return append(messages, saved)
}

func indexOfLocal(messages []model.Message, localID string) int {
	if localID == "" {
		return -1
	}
	return slices.IndexFunc(messages, func(m model.Message) bool { return !m.Persisted() && m.LocalID == localID })
}
