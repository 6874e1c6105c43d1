package store

import (
	"slices"

	"servimatt/chat/internal/model"
)

// State is everything the chat client caches. CurrentConversationID is empty
// while the user is on the "new chat" screen.
type State struct {
	Conversations         []model.Conversation
	CurrentConversationID string
	Messages              []model.Message
	IsLoading             bool
	IsStreaming           bool
	Error                 string
}

func (s State) clone() State {
	s.Conversations = slices.Clone(s.Conversations)
	s.Messages = slices.Clone(s.Messages)
	return s
}

// Conversation looks up a cached conversation by id.
func (s State) Conversation(id string) (model.Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// MessagesFor returns the cached messages that belong to conversationID, in
// cache order.
func (s State) MessagesFor(conversationID string) []model.Message {
	out := make([]model.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

// View is the read model handed to user interfaces.
type View struct {
	Conversations         []model.Conversation `json:"conversations"`
	CurrentConversationID *string              `json:"current_conversation_id"`
	Messages              []model.Message      `json:"messages"`
	IsLoading             bool                 `json:"is_loading"`
	IsStreaming           bool                 `json:"is_streaming"`
	Error                 string               `json:"error,omitempty"`
}

// View filters the message cache down to the selected conversation.
func (s State) View() View {
	v := View{
		Conversations: slices.Clone(s.Conversations),
		Messages:      []model.Message{},
		IsLoading:     s.IsLoading,
		IsStreaming:   s.IsStreaming,
		Error:         s.Error,
	}
	if v.Conversations == nil {
		v.Conversations = []model.Conversation{}
	}
	if s.CurrentConversationID != "" {
		id := s.CurrentConversationID
		v.CurrentConversationID = &id
		v.Messages = s.MessagesFor(id)
	}
	return v
}
