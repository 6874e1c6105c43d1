// Package store is the client-side cache of conversations and messages. Every
// change goes through Dispatch, which applies one Action under a lock and then
// notifies subscribers with a snapshot.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/model"
	"servimatt/chat/internal/repository"
)

// DefaultErrorDismissDelay is how long an error stays visible before it is
// cleared automatically.
const DefaultErrorDismissDelay = 5 * time.Second

// Listener receives a snapshot after every dispatched action. Listeners run
// while dispatch is serialized, so they must not call Dispatch themselves.
type Listener func(State)

type Option func(*Store)

// WithErrorDismissDelay overrides DefaultErrorDismissDelay. Zero or negative
// disables auto-dismissal.
func WithErrorDismissDelay(d time.Duration) Option {
	return func(s *Store) { s.dismissDelay = d }
}

// WithClock replaces time.Now for the updated_at stamps written on save.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	repo repository.Repository
	now  func() time.Time

	dispatchMu sync.Mutex // serializes apply+notify
	mu         sync.RWMutex
	state      State

	listeners  map[int]Listener
	nextListen int

	dismissDelay time.Duration
	errorGen     uint64
	errorTimer   *time.Timer
}

func New(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		repo:         repo,
		now:          func() time.Time { return time.Now().UTC() },
		listeners:    make(map[int]Listener),
		dismissDelay: DefaultErrorDismissDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state that the caller may keep.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// View returns the read model for the current selection.
func (s *Store) View() View {
	return s.Snapshot().View()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.dispatchMu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	s.dispatchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.dispatchMu.Lock()
			delete(s.listeners, id)
			s.dispatchMu.Unlock()
		})
	}
}

// Dispatch applies a and notifies subscribers.
func (s *Store) Dispatch(a Action) {
	s.dispatch(a, nil)
}

func (s *Store) dispatch(a Action, guard func() bool) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if guard != nil && !guard() {
		return
	}

	s.mu.Lock()
	prevErr := s.state.Error
	a.apply(&s.state)
	snap := s.state.clone()
	s.mu.Unlock()

	if snap.Error != prevErr {
		s.scheduleDismiss(snap.Error)
	}
	for _, fn := range s.listeners {
		fn(snap.clone())
	}
}

// scheduleDismiss must be called with dispatchMu held.
func (s *Store) scheduleDismiss(current string) {
	s.errorGen++
	if s.errorTimer != nil {
		s.errorTimer.Stop()
		s.errorTimer = nil
	}
	if current == "" || s.dismissDelay <= 0 {
		return
	}
	gen := s.errorGen
	s.errorTimer = time.AfterFunc(s.dismissDelay, func() {
		s.dispatch(ClearError{}, func() bool { return s.errorGen == gen })
	})
}

// Close stops the pending auto-dismiss timer, if any.
func (s *Store) Close() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.errorGen++
	if s.errorTimer != nil {
		s.errorTimer.Stop()
		s.errorTimer = nil
	}
}

// ListConversations loads every conversation, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	s.Dispatch(loadStarted{})
	list, err := s.repo.ListConversations(ctx)
	if err != nil {
		return nil, s.fail(err, "Failed to fetch conversations")
	}
	s.Dispatch(conversationsLoaded{conversations: list})
	return list, nil
}

// CreateConversation inserts a conversation at the front of the list and
// selects it.
func (s *Store) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	c, err := s.repo.CreateConversation(ctx, title)
	if err != nil {
		return model.Conversation{}, s.fail(err, "Failed to create conversation")
	}
	s.Dispatch(conversationCreated{conversation: *c})
	return *c, nil
}

// ListMessages replaces the whole message cache with conversationID's history.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.Dispatch(loadStarted{})
	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, s.fail(err, "Failed to fetch messages")
	}
	s.Dispatch(messagesLoaded{messages: msgs})
	return msgs, nil
}

// SaveMessage persists a message, bumps the parent's updated_at and
// reconciles the result into the cache. A rejected save purges every
// unreconciled message.
func (s *Store) SaveMessage(ctx context.Context, conversationID string, role model.Role, content string) (model.Message, error) {
	msg, err := s.repo.InsertMessage(ctx, conversationID, role, content)
	if err != nil {
		text := errorText(err, "Failed to save message")
		s.Dispatch(messageSaveFailed{message: text})
		return model.Message{}, translate(err)
	}

	touchedAt := s.now()
	if err := s.repo.TouchConversation(ctx, conversationID, touchedAt); err != nil {
		slog.Warn("Failed to update conversation timestamp", "conversation_id", conversationID, "error", err)
		touchedAt = time.Time{}
	}
	s.Dispatch(messageSaved{message: *msg, touchedAt: touchedAt})
	return *msg, nil
}

// DeleteConversation removes a conversation. If it was selected, the selection
// and the message cache are cleared.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if err := s.repo.DeleteConversation(ctx, id); err != nil {
		return s.fail(err, "Failed to delete conversation")
	}
	s.Dispatch(conversationDeleted{id: id})
	return nil
}

// UpdateConversationTitle renames a conversation in place.
func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) (model.Conversation, error) {
	c, err := s.repo.UpdateConversationTitle(ctx, id, title)
	if err != nil {
		return model.Conversation{}, s.fail(err, "Failed to update conversation")
	}
	s.Dispatch(conversationUpdated{conversation: *c})
	return *c, nil
}

func (s *Store) SetCurrentConversation(id string) { s.Dispatch(SetCurrentConversation{ID: id}) }

func (s *Store) SetStreaming(streaming bool) { s.Dispatch(SetStreaming{Streaming: streaming}) }

func (s *Store) SetError(message string) { s.Dispatch(SetError{Message: message}) }

func (s *Store) ClearError() { s.Dispatch(ClearError{}) }

func (s *Store) ClearMessages() { s.Dispatch(ClearMessages{}) }

// AddPendingMessage appends a placeholder. m.LocalID must be set.
func (s *Store) AddPendingMessage(m model.Message) error {
	if m.LocalID == "" {
		return fmt.Errorf("%w: pending message needs a local id", app_errors.ErrValidation)
	}
	s.Dispatch(AddPendingMessage{Message: m})
	return nil
}

func (s *Store) SetPendingContent(localID, content string) {
	s.Dispatch(SetPendingContent{LocalID: localID, Content: content})
}

func (s *Store) AbandonPending(localID string) { s.Dispatch(AbandonPending{LocalID: localID}) }

// fail records a backend failure in the error slot and returns it translated
// to the application's sentinel errors.
func (s *Store) fail(err error, fallback string) error {
	s.Dispatch(SetError{Message: errorText(err, fallback)})
	return translate(err)
}

func errorText(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", app_errors.ErrNotFound, err)
	case errors.Is(err, repository.ErrInvalidRole):
		return fmt.Errorf("%w: %w", app_errors.ErrValidation, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", app_errors.ErrPersistence, err)
	}
}
