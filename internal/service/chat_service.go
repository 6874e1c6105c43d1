package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"servimatt/chat/internal/drafts"
	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/llm"
	"servimatt/chat/internal/model"
	"servimatt/chat/internal/store"
)

// Phase is one step of a single send operation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUserMessagePersisting
	PhasePlaceholderCreated
	PhaseStreaming
	PhaseFinalizing
	// PhaseErrorAbort is terminal for the send that reached it.
	PhaseErrorAbort
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUserMessagePersisting:
		return "user_message_persisting"
	case PhasePlaceholderCreated:
		return "placeholder_created"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseErrorAbort:
		return "error_abort"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PhaseHook observes send transitions. It runs synchronously on the sending
// goroutine.
type PhaseHook func(conversationID string, phase Phase)

// ErrConversationBusy rejects a send into a conversation whose previous reply
// is still in flight.
var ErrConversationBusy = fmt.Errorf("%w: a reply is still streaming in this conversation", app_errors.ErrConflict)

const (
	titleWords    = 4
	titleSuffix   = "..."
	localIDPrefix = "temp-"
)

// DeriveTitle names an auto-created conversation after the first four words
// of its first message.
func DeriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ") + titleSuffix
}

type ChatOption func(*ChatService)

// WithCancelOnNavigate makes selecting another conversation abort in-flight
// replies of the conversations left behind.
func WithCancelOnNavigate(on bool) ChatOption {
	return func(s *ChatService) { s.cancelOnNavigate = on }
}

func WithPhaseHook(h PhaseHook) ChatOption {
	return func(s *ChatService) { s.hook = h }
}

// WithLocalIDs replaces the placeholder id generator.
func WithLocalIDs(next func() string) ChatOption {
	return func(s *ChatService) { s.newLocalID = next }
}

func WithNow(now func() time.Time) ChatOption {
	return func(s *ChatService) { s.now = now }
}

// flight is one in-flight reply.
type flight struct {
	cancel context.CancelFunc
	// quiet is set when the reply was aborted on purpose (navigation or
	// deletion); such aborts are not reported as errors.
	quiet atomic.Bool
}

// ChatService coordinates sending a message: it persists the user turn,
// streams the assistant reply into a placeholder and reconciles it once saved.
// It is also the surface user interfaces drive.
type ChatService struct {
	store    *store.Store
	drafts   *drafts.Store
	llm      llm.LLMProvider
	settings *SettingsService

	cancelOnNavigate bool
	hook             PhaseHook
	newLocalID       func() string
	now              func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inflight map[string]*flight
	streams  int
}

func NewChatService(st *store.Store, d *drafts.Store, llmProvider llm.LLMProvider, settings *SettingsService, opts ...ChatOption) *ChatService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ChatService{
		store:      st,
		drafts:     d,
		llm:        llmProvider,
		settings:   settings,
		newLocalID: func() string { return localIDPrefix + uuid.NewString() },
		now:        func() time.Time { return time.Now().UTC() },
		baseCtx:    ctx,
		baseCancel: cancel,
		inflight:   make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sendPlan is everything captured before the user message is saved.
type sendPlan struct {
	text           string
	conversationID string // empty: create one
	history        []llm.Message
	streamCtx      context.Context
	flight         *flight
}

// SendMessage runs the whole send flow and returns the persisted assistant
// message.
func (s *ChatService) SendMessage(ctx context.Context, content string) (*model.Message, error) {
	plan, err := s.prepare(ctx, content)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, plan)
}

// SendMessageAsync validates and reserves the send, then runs it in the
// background. Progress is observed through Subscribe.
func (s *ChatService) SendMessageAsync(content string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: chat service is shutting down", app_errors.ErrConflict)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	plan, err := s.prepare(s.baseCtx, content)
	if err != nil {
		s.wg.Done()
		return err
	}
	go func() {
		defer s.wg.Done()
		if _, err := s.run(s.baseCtx, plan); err != nil {
			slog.Warn("Background send failed", "conversation_id", plan.conversationID, "error", err)
		}
	}()
	return nil
}

func (s *ChatService) prepare(ctx context.Context, content string) (*sendPlan, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", app_errors.ErrValidation)
	}

	snap := s.store.Snapshot()
	plan := &sendPlan{text: text, conversationID: snap.CurrentConversationID}
	if plan.conversationID == "" {
		return plan, nil
	}
	for _, m := range snap.MessagesFor(plan.conversationID) {
		if m.Persisted() {
			plan.history = append(plan.history, llm.Message{Role: string(m.Role), Content: m.Content})
		}
	}

	var err error
	plan.streamCtx, plan.flight, err = s.reserve(ctx, plan.conversationID)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *ChatService) run(ctx context.Context, plan *sendPlan) (*model.Message, error) {
	conversationID := plan.conversationID
	if conversationID == "" {
		conv, err := s.store.CreateConversation(ctx, DeriveTitle(plan.text))
		if err != nil {
			s.enter("", PhaseErrorAbort)
			return nil, err
		}
		conversationID = conv.ID
		plan.streamCtx, plan.flight, err = s.reserve(ctx, conversationID)
		if err != nil {
			return nil, err
		}
	}
	defer s.release(conversationID, plan.flight)

	s.enter(conversationID, PhaseUserMessagePersisting)
	if _, err := s.store.SaveMessage(ctx, conversationID, model.RoleUser, plan.text); err != nil {
		s.enter(conversationID, PhaseErrorAbort)
		return nil, err
	}
	s.drafts.Clear(conversationID)
	if plan.conversationID == "" {
		s.drafts.Clear(drafts.NewChat)
	}

	localID := s.newLocalID()
	if err := s.store.AddPendingMessage(model.NewPendingMessage(localID, conversationID, model.RoleAssistant, s.now())); err != nil {
		s.enter(conversationID, PhaseErrorAbort)
		return nil, err
	}
	s.streamStarted()
	s.enter(conversationID, PhasePlaceholderCreated)

	history := append(slices.Clone(plan.history), llm.Message{Role: string(model.RoleUser), Content: plan.text})
	reply, err := s.stream(plan.streamCtx, conversationID, localID, history)
	s.streamEnded()
	if err != nil {
		s.store.AbandonPending(localID)
		s.enter(conversationID, PhaseErrorAbort)
		if plan.flight.quiet.Load() || ctx.Err() != nil {
			slog.Info("Reply aborted", "conversation_id", conversationID, "error", err)
			return nil, err
		}
		slog.Error("Failed to stream reply", "conversation_id", conversationID, "error", err)
		s.store.SetError(displayError(err))
		return nil, err
	}

	s.enter(conversationID, PhaseFinalizing)
	saved, err := s.store.SaveMessage(ctx, conversationID, model.RoleAssistant, reply)
	if err != nil {
		s.enter(conversationID, PhaseErrorAbort)
		return nil, err
	}
	s.enter(conversationID, PhaseIdle)
	return &saved, nil
}

// stream pulls the reply and mirrors the accumulated text into the
// placeholder after every chunk.
func (s *ChatService) stream(ctx context.Context, conversationID, localID string, history []llm.Message) (string, error) {
	settings := s.settings.Current(ctx)
	s.enter(conversationID, PhaseStreaming)

	chunks, err := s.llm.Stream(ctx, &llm.CompletionRequest{
		Model:        settings.Model,
		SystemPrompt: settings.SystemPrompt,
		Messages:     history,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if err := chunks.Close(); err != nil {
			slog.Debug("Failed to close reply stream", "error", err)
		}
	}()

	var reply strings.Builder
	for chunks.Next() {
		reply.WriteString(chunks.Chunk())
		s.store.SetPendingContent(localID, reply.String())
	}
	if err := chunks.Err(); err != nil {
		return "", err
	}
	return reply.String(), nil
}

func (s *ChatService) reserve(ctx context.Context, conversationID string) (context.Context, *flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[conversationID]; busy {
		return nil, nil, ErrConversationBusy
	}
	streamCtx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel}
	s.inflight[conversationID] = f
	return streamCtx, f, nil
}

func (s *ChatService) release(conversationID string, f *flight) {
	s.mu.Lock()
	if s.inflight[conversationID] == f {
		delete(s.inflight, conversationID)
	}
	s.mu.Unlock()
	f.cancel()
}

// abort cancels the in-flight replies of every conversation matched by match.
func (s *ChatService) abort(match func(conversationID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.inflight {
		if match(id) {
			f.quiet.Store(true)
			f.cancel()
		}
	}
}

// streamStarted and streamEnded keep isStreaming true while any reply is
// streaming.
func (s *ChatService) streamStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams++
	if s.streams == 1 {
		s.store.SetStreaming(true)
	}
}

func (s *ChatService) streamEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams--
	if s.streams == 0 {
		s.store.SetStreaming(false)
	}
}

func (s *ChatService) enter(conversationID string, p Phase) {
	slog.Debug("Send phase changed", "conversation_id", conversationID, "phase", p.String())
	if s.hook != nil {
		s.hook(conversationID, p)
	}
}

// Refresh reloads the conversation list.
func (s *ChatService) Refresh(ctx context.Context) ([]model.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// SelectConversation flushes currentInput as the draft of the conversation
// being left, selects id, reloads its messages and returns the draft to show
// for id.
func (s *ChatService) SelectConversation(ctx context.Context, id, currentInput string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: conversation id is required", app_errors.ErrValidation)
	}
	snap := s.store.Snapshot()
	if _, ok := snap.Conversation(id); !ok {
		return "", fmt.Errorf("%w: conversation %s", app_errors.ErrNotFound, id)
	}

	draft := s.drafts.Switch(snap.CurrentConversationID, currentInput, id)
	s.store.SetCurrentConversation(id)
	if s.cancelOnNavigate {
		s.abort(func(other string) bool { return other != id })
	}
	if _, err := s.store.ListMessages(ctx, id); err != nil {
		return draft, err
	}
	return draft, nil
}

// NewChat moves to the unsaved "new chat" screen. The returned input is
// always empty.
func (s *ChatService) NewChat(currentInput string) string {
	snap := s.store.Snapshot()
	draft := s.drafts.Switch(snap.CurrentConversationID, currentInput, drafts.NewChat)
	s.store.SetCurrentConversation("")
	s.store.ClearMessages()
	if s.cancelOnNavigate {
		s.abort(func(string) bool { return true })
	}
	return draft
}

// CreateConversation creates and selects an empty conversation.
func (s *ChatService) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	conv, err := s.store.CreateConversation(ctx, title)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// RenameConversation changes a title. The conversation's updated_at is left
// as it was.
func (s *ChatService) RenameConversation(ctx context.Context, id, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	slog.Info("Renaming conversation", "conversation_id", id, "title", title)
	conv, err := s.store.UpdateConversationTitle(ctx, id, title)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation drops a conversation, its messages and its draft. When
// it is selected, the selection is cleared before the backend call.
func (s *ChatService) DeleteConversation(ctx context.Context, id string) error {
	if s.store.Snapshot().CurrentConversationID == id {
		s.store.SetCurrentConversation("")
		s.store.ClearMessages()
	}
	s.abort(func(other string) bool { return other == id })

	slog.Info("Deleting conversation", "conversation_id", id)
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.drafts.Clear(id)
	return nil
}

func (s *ChatService) SetDraft(conversationID, text string) { s.drafts.Set(conversationID, text) }

func (s *ChatService) GetDraft(conversationID string) string { return s.drafts.Get(conversationID) }

func (s *ChatService) ClearError() { s.store.ClearError() }

func (s *ChatService) View() store.View { return s.store.View() }

// Subscribe registers fn for every state change. fn must not call back into
// ChatService.
func (s *ChatService) Subscribe(fn func(store.View)) (unsubscribe func()) {
	return s.store.Subscribe(func(st store.State) { fn(st.View()) })
}

// Close aborts background sends and waits for them to return.
func (s *ChatService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.baseCancel()
	s.wg.Wait()
}

// displayError turns a transport error into the text shown to the user.
func displayError(err error) string {
	msg := err.Error()
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) && !strings.Contains(msg, apiErr.Message) {
		msg = apiErr.Message
	}
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
