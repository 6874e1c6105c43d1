package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servimatt/chat/internal/database"
	"servimatt/chat/internal/model"
)

// newTestSQLiteRepository opens a migrated database in a temp dir and makes
// the clock and id generator deterministic.
func newTestSQLiteRepository(t *testing.T) *sqliteRepository {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLiteRepository(db).(*sqliteRepository)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	seq := 0
	repo.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return repo
}

func TestSQLiteRepository_Conversations(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepository(t)

	first, err := repo.CreateConversation(ctx, "First")
	require.NoError(t, err)
	second, err := repo.CreateConversation(ctx, "Second")
	require.NoError(t, err)

	t.Run("List is most recently updated first", func(t *testing.T) {
		list, err := repo.ListConversations(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})

	t.Run("Touch moves a conversation to the front", func(t *testing.T) {
		require.NoError(t, repo.TouchConversation(ctx, first.ID, repo.now()))
		list, err := repo.ListConversations(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, list[0].ID)
	})

	t.Run("Update title", func(t *testing.T) {
		updated, err := repo.UpdateConversationTitle(ctx, first.ID, "Renamed")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, first.ID, updated.ID)
	})

	t.Run("Unknown ids", func(t *testing.T) {
		_, err := repo.GetConversation(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.UpdateConversationTitle(ctx, "missing", "x")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.TouchConversation(ctx, "missing", time.Now()), ErrNotFound)
	})
}

func TestSQLiteRepository_Messages(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepository(t)

	conv, err := repo.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	userMsg, err := repo.InsertMessage(ctx, conv.ID, model.RoleUser, "Hello")
	require.NoError(t, err)
	assistantMsg, err := repo.InsertMessage(ctx, conv.ID, model.RoleAssistant, "Hi!")
	require.NoError(t, err)

	messages, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, userMsg.ID, messages[0].ID)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, assistantMsg.ID, messages[1].ID)
	assert.Equal(t, "Hi!", messages[1].Content)
	assert.True(t, messages[1].Persisted())

	t.Run("Invalid role is rejected", func(t *testing.T) {
		_, err := repo.InsertMessage(ctx, conv.ID, model.RoleSystem, "nope")
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("Unknown conversation violates the foreign key", func(t *testing.T) {
		_, err := repo.InsertMessage(ctx, "missing", model.RoleUser, "orphan")
		assert.Error(t, err)
	})

	t.Run("Delete removes messages too", func(t *testing.T) {
		require.NoError(t, repo.DeleteConversation(ctx, conv.ID))
		messages, err := repo.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
		require.NoError(t, repo.DeleteConversation(ctx, conv.ID), "deleting twice is not an error")
	})
}

func TestSQLiteRepository_Settings(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepository(t)

	_, err := repo.GetSettings(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	want := &model.Settings{SystemPrompt: "be brief", Model: "gpt-4o", Temperature: 0.3, MaxTokens: 512}
	require.NoError(t, repo.SaveSettings(ctx, want))

	got, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteRepository_DriverErrors(t *testing.T) {
	ctx := context.Background()
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	repo := NewSQLiteRepository(db)

	t.Run("ListConversations query fails", func(t *testing.T) {
		mockDB.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at, updated_at FROM conversations")).
			WillReturnError(errors.New("db down"))
		_, err := repo.ListConversations(ctx)
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("InsertMessage exec fails", func(t *testing.T) {
		mockDB.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
			WithArgs(sqlmock.AnyArg(), "conv-1", "user", "Hello", sqlmock.AnyArg()).
			WillReturnError(errors.New("disk full"))
		_, err := repo.InsertMessage(ctx, "conv-1", model.RoleUser, "Hello")
		assert.ErrorContains(t, err, "could not insert message")
	})

	t.Run("DeleteConversation rolls back on failure", func(t *testing.T) {
		mockDB.ExpectBegin()
		mockDB.ExpectExec(regexp.QuoteMeta("DELETE FROM messages WHERE conversation_id = ?")).
			WithArgs("conv-1").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mockDB.ExpectExec(regexp.QuoteMeta("DELETE FROM conversations WHERE id = ?")).
			WithArgs("conv-1").
			WillReturnError(errors.New("locked"))
		mockDB.ExpectRollback()
		err := repo.DeleteConversation(ctx, "conv-1")
		assert.ErrorContains(t, err, "could not delete conversation")
	})

	t.Run("Settings with a corrupt number", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"key", "value"}).
			AddRow("model", "gpt-4o").
			AddRow("temperature", "warm")
		mockDB.ExpectQuery("SELECT key, value FROM settings").WillReturnRows(rows)
		_, err := repo.GetSettings(ctx)
		assert.ErrorContains(t, err, "invalid stored temperature")
	})

	require.NoError(t, mockDB.ExpectationsWereMet())
}
