package repository

import (
	"context"
	"time"

	"servimatt/chat/internal/model"
)

// Repository is the persistence backend consumed by the conversation store.
// Implementations assign ids and timestamps; conversations are returned most
// recently updated first and messages oldest first.
type Repository interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, title string) (*model.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) (*model.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	DeleteConversation(ctx context.Context, id string) error

	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	InsertMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error)

	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, settings *model.Settings) error
}
