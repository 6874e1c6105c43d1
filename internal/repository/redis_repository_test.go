package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servimatt/chat/internal/model"
)

func newTestRedisRepository(t *testing.T) (*redisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewRedisRepository(rdb).(*redisRepository)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	seq := 0
	repo.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return repo, mr
}

func TestRedisRepository_Conversations(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRedisRepository(t)

	first, err := repo.CreateConversation(ctx, "First")
	require.NoError(t, err)
	second, err := repo.CreateConversation(ctx, "Second")
	require.NoError(t, err)

	list, err := repo.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, first.CreatedAt.Equal(list[1].CreatedAt))

	require.NoError(t, repo.TouchConversation(ctx, first.ID, repo.now()))
	list, err = repo.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID)

	renamed, err := repo.UpdateConversationTitle(ctx, second.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	_, err = repo.UpdateConversationTitle(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRepository_Messages(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRedisRepository(t)

	conv, err := repo.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	_, err = repo.InsertMessage(ctx, conv.ID, model.RoleUser, "Hello")
	require.NoError(t, err)
	_, err = repo.InsertMessage(ctx, conv.ID, model.RoleAssistant, "Hi!")
	require.NoError(t, err)

	messages, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
	assert.Equal(t, conv.ID, messages[1].ConversationID)
	assert.True(t, messages[1].Persisted())

	_, err = repo.InsertMessage(ctx, "missing", model.RoleUser, "orphan")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteConversation(ctx, conv.ID))
	assert.False(t, mr.Exists("conversation:"+conv.ID))
	assert.False(t, mr.Exists("message:"+messages[0].ID))

	list, err := repo.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRedisRepository_Settings(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRedisRepository(t)

	_, err := repo.GetSettings(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	want := &model.Settings{SystemPrompt: "be brief", Model: "gpt-4o", Temperature: 0.7, MaxTokens: 1000}
	require.NoError(t, repo.SaveSettings(ctx, want))
	got, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
