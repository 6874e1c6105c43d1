package cli

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/interfaces/mocks"
	"servimatt/chat/internal/llm"
	"servimatt/chat/internal/model"
	"servimatt/chat/internal/store"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type replEnv struct {
	chat   *mocks.MockChatService
	models *mocks.MockModelService
	view   store.View
	out    bytes.Buffer
}

func newReplEnv(t *testing.T) *replEnv {
	env := &replEnv{
		chat:   mocks.NewMockChatService(t),
		models: mocks.NewMockModelService(t),
	}
	env.chat.On("View").Return(func() store.View { return env.view }).Maybe()
	return env
}

func (e *replEnv) run(t *testing.T, input string) string {
	t.Helper()
	r := NewREPL(e.chat, e.models, strings.NewReader(input), &e.out)
	assert.NoError(t, r.Run(testContext(t)))
	return e.out.String()
}

func (e *replEnv) selected(id string) {
	e.view.CurrentConversationID = &id
}

func pendingReply(content string) store.View {
	id := "c1"
	return store.View{
		CurrentConversationID: &id,
		Messages: []model.Message{
			{ID: "m1", ConversationID: "c1", Role: model.RoleUser, Content: "Hello"},
			{LocalID: "local-1", ConversationID: "c1", Role: model.RoleAssistant, Content: content, State: model.StatePending},
		},
	}
}

func expectStreamedSend(env *replEnv, text string, partials []string, final *model.Message, err error) {
	var listener func(store.View)
	env.chat.On("Subscribe", mock.Anything).
		Run(func(args mock.Arguments) { listener = args.Get(0).(func(store.View)) }).
		Return(func() {}).Once()
	env.chat.On("SendMessage", mock.Anything, text).
		Run(func(mock.Arguments) {
			for _, p := range partials {
				listener(pendingReply(p))
			}
		}).
		Return(final, err).Once()
}

func TestREPL_SendStreamsReply(t *testing.T) {
	env := newReplEnv(t)
	expectStreamedSend(env, "Hello", []string{"", "Hel", "Hello", "Hello!"},
		&model.Message{ID: "m2", Role: model.RoleAssistant, Content: "Hello!"}, nil)

	out := env.run(t, "Hello\n/quit\n")

	assert.Contains(t, out, "Assistant: Hello!\n")
	assert.Equal(t, 1, strings.Count(out, "Hello!"))
}

func TestREPL_SendPrintsUnstreamedRemainder(t *testing.T) {
	env := newReplEnv(t)
	expectStreamedSend(env, "Hello", []string{"Hel"},
		&model.Message{ID: "m2", Role: model.RoleAssistant, Content: "Hello there"}, nil)

	out := env.run(t, "Hello\n")

	assert.Contains(t, out, "Assistant: Hello there\n")
}

func TestREPL_SendFailureShowsStateError(t *testing.T) {
	env := newReplEnv(t)
	env.chat.On("Subscribe", mock.Anything).Return(func() {}).Once()
	env.chat.On("SendMessage", mock.Anything, "Hello").
		Run(func(mock.Arguments) { env.view.Error = "Failed to stream AI response: Invalid API key" }).
		Return(nil, &llm.APIError{StatusCode: 401, Message: "Invalid API key"}).Once()
	env.chat.On("ClearError").Run(func(mock.Arguments) { env.view.Error = "" }).Return().Once()

	out := env.run(t, "Hello\n")

	assert.Contains(t, out, "Failed to stream AI response: Invalid API key")
}

func TestREPL_SendValidationError(t *testing.T) {
	env := newReplEnv(t)
	env.chat.On("Subscribe", mock.Anything).Return(func() {}).Once()
	env.chat.On("SendMessage", mock.Anything, "again").
		Return(nil, errors.Join(app_errors.ErrConflict, errors.New("a reply is still streaming in this conversation"))).Once()

	out := env.run(t, "again\n")

	assert.Contains(t, out, "a reply is still streaming")
}

func TestREPL_ListAndOpen(t *testing.T) {
	env := newReplEnv(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	conversations := []model.Conversation{
		{ID: "c1", Title: "First", UpdatedAt: now},
		{ID: "c2", Title: "Second", UpdatedAt: now.Add(-time.Hour)},
	}
	env.view.Conversations = conversations
	env.chat.On("Refresh", mock.Anything).Return(conversations, nil).Once()
	env.chat.On("SelectConversation", mock.Anything, "c2", "").
		Run(func(mock.Arguments) {
			env.selected("c2")
			env.view.Messages = []model.Message{
				{ID: "m1", ConversationID: "c2", Role: model.RoleUser, Content: "Question"},
				{LocalID: "local-9", ConversationID: "c2", Role: model.RoleAssistant, Content: "Half an ans", State: model.StateInterrupted},
			}
		}).
		Return("unsent words", nil).Once()
	expectStreamedSend(env, "unsent words", nil, &model.Message{ID: "m3", Content: "Reply"}, nil)

	out := env.run(t, "/list\n/open 2\n\n")

	assert.Contains(t, out, " 1. First")
	assert.Contains(t, out, " 2. Second")
	assert.Contains(t, out, "== Second ==")
	assert.Contains(t, out, "You: Question")
	assert.Contains(t, out, "Assistant: Half an ans (interrupted)")
	assert.Contains(t, out, "Draft: unsent words")
	assert.Contains(t, out, "Assistant: Reply")
}

func TestREPL_OpenErrors(t *testing.T) {
	env := newReplEnv(t)
	env.chat.On("SelectConversation", mock.Anything, "missing", "").
		Return("", errors.Join(app_errors.ErrNotFound, errors.New("conversation missing"))).Once()

	out := env.run(t, "/open 3\n/open\n/open missing\n")

	assert.Contains(t, out, "no conversation numbered 3")
	assert.Contains(t, out, "expected a number from /list")
	assert.Contains(t, out, "conversation missing")
}

func TestREPL_DraftThenNewChat(t *testing.T) {
	env := newReplEnv(t)
	env.selected("c1")
	env.chat.On("SetDraft", "c1", "finish later").Return().Once()
	env.chat.On("NewChat", "finish later").
		Run(func(mock.Arguments) { env.view.CurrentConversationID = nil }).
		Return("").Once()

	out := env.run(t, "/draft finish later\n/new\n\n/quit\n")

	assert.Contains(t, out, "Draft saved.")
	assert.Contains(t, out, "New chat.")
	// The empty line sends nothing: the new chat starts with an empty input.
	env.chat.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestREPL_Rename(t *testing.T) {
	t.Run("needs an open conversation", func(t *testing.T) {
		env := newReplEnv(t)
		out := env.run(t, "/rename Trip\n")
		assert.Contains(t, out, "open a conversation first")
	})

	t.Run("renames the open conversation", func(t *testing.T) {
		env := newReplEnv(t)
		env.selected("c1")
		env.chat.On("RenameConversation", mock.Anything, "c1", "Trip plans").
			Return(&model.Conversation{ID: "c1", Title: "Trip plans"}, nil).Once()

		out := env.run(t, "/rename Trip plans\n")
		assert.Contains(t, out, `Renamed to "Trip plans".`)
	})
}

func TestREPL_Delete(t *testing.T) {
	env := newReplEnv(t)
	env.selected("c1")
	env.chat.On("SetDraft", "c1", "draft").Return().Once()
	env.chat.On("DeleteConversation", mock.Anything, "c1").
		Run(func(mock.Arguments) { env.view.CurrentConversationID = nil }).
		Return(nil).Once()

	out := env.run(t, "/draft draft\n/delete\n\n/delete\n")

	assert.Contains(t, out, "Conversation deleted.")
	assert.Contains(t, out, "open a conversation first or name one")
	env.chat.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestREPL_ModelsAndUnknownCommand(t *testing.T) {
	env := newReplEnv(t)
	env.models.On("List", mock.Anything).
		Return(&llm.ListModelsResponse{Models: []llm.Model{{ID: "gpt-4o"}, {ID: "gpt-4o-mini"}}}, nil).Once()

	out := env.run(t, "/models\n/frobnicate\n/help\n/exit\n")

	assert.Contains(t, out, "gpt-4o\ngpt-4o-mini\n")
	assert.Contains(t, out, "unknown command /frobnicate")
	assert.Contains(t, out, "/rename <title>")
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newStreamPrinter(&buf)

	p.onView(pendingReply("Hel"))
	p.onView(pendingReply("Hel"))
	p.onView(pendingReply("Hello"))
	p.onView(store.View{}) // placeholder reconciled away
	p.flush("Hello")

	assert.Equal(t, "Hello", buf.String())
}
