package interfaces

import (
	"context"

	"servimatt/chat/internal/llm"
	"servimatt/chat/internal/model"
	"servimatt/chat/internal/store"
)

// These are the contracts the API and CLI layers depend on. The concrete
// implementations live in internal/service; mocks are generated into ./mocks.

// ChatService is the user-facing surface of the chat client.
type ChatService interface {
	Refresh(ctx context.Context) ([]model.Conversation, error)
	SelectConversation(ctx context.Context, id, currentInput string) (string, error)
	NewChat(currentInput string) string
	CreateConversation(ctx context.Context, title string) (*model.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	SendMessage(ctx context.Context, content string) (*model.Message, error)
	SendMessageAsync(content string) error
	SetDraft(conversationID, text string)
	GetDraft(conversationID string) string
	ClearError()
	View() store.View
	Subscribe(fn func(store.View)) (unsubscribe func())
}

// ModelService lists and checks the provider's models.
type ModelService interface {
	List(ctx context.Context) (*llm.ListModelsResponse, error)
	Probe(ctx context.Context, modelID string) (string, error)
}

// SettingsService manages the generation settings.
type SettingsService interface {
	InitAndGet(ctx context.Context) (*model.Settings, error)
	Get(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, settings *model.Settings) error
}
