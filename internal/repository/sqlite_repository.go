package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"servimatt/chat/internal/model"
)

type sqliteRepository struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (r *sqliteRepository) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	query := "SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *sqliteRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	query := "SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?"
	var c model.Conversation
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *sqliteRepository) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	now := r.now()
	c := &model.Conversation{ID: r.newID(), Title: title, CreatedAt: now, UpdatedAt: now}
	query := "INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Title, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("could not insert conversation: %w", err)
	}
	return c, nil
}

func (r *sqliteRepository) UpdateConversationTitle(ctx context.Context, id, title string) (*model.Conversation, error) {
	query := "UPDATE conversations SET title = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, title, id)
	if err != nil {
		return nil, fmt.Errorf("could not update conversation title: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.GetConversation(ctx, id)
}

func (r *sqliteRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	query := "UPDATE conversations SET updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("could not update conversation timestamp: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and its messages. Deleting an
// unknown id is not an error.
func (r *sqliteRepository) DeleteConversation(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("could not delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("could not delete conversation: %w", err)
	}
	return tx.Commit()
}

func (r *sqliteRepository) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var msg model.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *sqliteRepository) InsertMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	msg := &model.Message{
		ID:             r.newID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      r.now(),
	}
	query := "INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("could not insert message: %w", err)
	}
	return msg, nil
}

const (
	settingSystemPrompt = "system_prompt"
	settingModel        = "model"
	settingTemperature  = "temperature"
	settingMaxTokens    = "max_tokens"
)

func (r *sqliteRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	settings := &model.Settings{
		SystemPrompt: values[settingSystemPrompt],
		Model:        values[settingModel],
	}
	if v, ok := values[settingTemperature]; ok {
		if settings.Temperature, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid stored temperature %q: %w", v, err)
		}
	}
	if v, ok := values[settingMaxTokens]; ok {
		if settings.MaxTokens, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid stored max_tokens %q: %w", v, err)
		}
	}
	return settings, nil
}

func (r *sqliteRepository) SaveSettings(ctx context.Context, settings *model.Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	values := [][2]string{
		{settingSystemPrompt, settings.SystemPrompt},
		{settingModel, settings.Model},
		{settingTemperature, strconv.FormatFloat(settings.Temperature, 'f', -1, 64)},
		{settingMaxTokens, strconv.Itoa(settings.MaxTokens)},
	}
	for _, kv := range values {
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", kv[0], kv[1]); err != nil {
			return fmt.Errorf("could not save setting %s: %w", kv[0], err)
		}
	}
	return tx.Commit()
}
