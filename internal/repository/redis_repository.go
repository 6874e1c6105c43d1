package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"servimatt/chat/internal/model"
)

const (
	conversationsKey = "conversations"
	settingsKey      = "settings"
)

type redisRepository struct {
	rdb   *redis.Client
	now   func() time.Time
	newID func() string
}

func NewRedisRepository(rdb *redis.Client) Repository {
	return &redisRepository{
		rdb:   rdb,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Key Generation Helpers
func (r *redisRepository) conversationKey(id string) string { return fmt.Sprintf("conversation:%s", id) }
func (r *redisRepository) messagesKey(id string) string     { return fmt.Sprintf("conversation:%s:messages", id) }
func (r *redisRepository) messageKey(id string) string      { return fmt.Sprintf("message:%s", id) }

// Sorted set scores use microseconds so they stay exact in a float64.
// Conversations are scored negatively so ZRange returns newest first.
func recencyScore(t time.Time) float64 { return float64(-t.UnixMicro()) }
func orderScore(t time.Time) float64   { return float64(t.UnixMicro()) }

// --- Conversation Operations ---
func (r *redisRepository) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	ids, err := r.rdb.ZRange(ctx, conversationsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	conversations := make([]model.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetConversation(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, nil
}

func (r *redisRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	fields, err := r.rdb.HGetAll(ctx, r.conversationKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	var c model.Conversation
	if err := mapToStruct(fields, &c); err != nil {
		return nil, fmt.Errorf("could not decode conversation %s: %w", id, err)
	}
	return &c, nil
}

func (r *redisRepository) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	now := r.now()
	c := &model.Conversation{ID: r.newID(), Title: title, CreatedAt: now, UpdatedAt: now}
	fields, err := structToMap(c)
	if err != nil {
		return nil, fmt.Errorf("could not convert conversation to map: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.conversationKey(c.ID), fields)
	pipe.ZAdd(ctx, conversationsKey, redis.Z{Score: recencyScore(c.UpdatedAt), Member: c.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("could not store conversation: %w", err)
	}
	return c, nil
}

func (r *redisRepository) UpdateConversationTitle(ctx context.Context, id, title string) (*model.Conversation, error) {
	if err := r.requireConversation(ctx, id); err != nil {
		return nil, err
	}
	if err := r.rdb.HSet(ctx, r.conversationKey(id), "title", title).Err(); err != nil {
		return nil, fmt.Errorf("could not update conversation title: %w", err)
	}
	return r.GetConversation(ctx, id)
}

func (r *redisRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	if err := r.requireConversation(ctx, id); err != nil {
		return err
	}
	at = at.UTC()
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.conversationKey(id), "updated_at", at.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, conversationsKey, redis.Z{Score: recencyScore(at), Member: id})
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisRepository) DeleteConversation(ctx context.Context, id string) error {
	msgIDs, err := r.rdb.ZRange(ctx, r.messagesKey(id), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("could not get message IDs for deletion: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	if len(msgIDs) > 0 {
		messageKeys := make([]string, len(msgIDs))
		for i, msgID := range msgIDs {
			messageKeys[i] = r.messageKey(msgID)
		}
		pipe.Del(ctx, messageKeys...)
	}
	pipe.Del(ctx, r.conversationKey(id), r.messagesKey(id))
	pipe.ZRem(ctx, conversationsKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute conversation deletion pipeline: %w", err)
	}
	return nil
}

// --- Message Operations ---
func (r *redisRepository) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	msgIDs, err := r.rdb.ZRange(ctx, r.messagesKey(conversationID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.Message{}, nil
		}
		return nil, err
	}
	messages := make([]model.Message, 0, len(msgIDs))
	for _, id := range msgIDs {
		fields, err := r.rdb.HGetAll(ctx, r.messageKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		var msg model.Message
		if err := mapToStruct(fields, &msg); err != nil {
			return nil, fmt.Errorf("could not decode message %s: %w", id, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *redisRepository) InsertMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	msg := &model.Message{
		ID:             r.newID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      r.now(),
	}
	fields, err := structToMap(msg)
	if err != nil {
		return nil, fmt.Errorf("could not convert message to map: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.messageKey(msg.ID), fields)
	pipe.ZAdd(ctx, r.messagesKey(conversationID), redis.Z{Score: orderScore(msg.CreatedAt), Member: msg.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("could not store message: %w", err)
	}
	return msg, nil
}

// --- Settings Operations ---
func (r *redisRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	val, err := r.rdb.Get(ctx, settingsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var settings model.Settings
	if err := json.Unmarshal([]byte(val), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &settings, nil
}

func (r *redisRepository) SaveSettings(ctx context.Context, settings *model.Settings) error {
	val, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return r.rdb.Set(ctx, settingsKey, val, 0).Err()
}

func (r *redisRepository) requireConversation(ctx context.Context, id string) error {
	n, err := r.rdb.Exists(ctx, r.conversationKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helper Functions ---
func structToMap(obj interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var mapData map[string]interface{}
	return mapData, json.Unmarshal(data, &mapData)
}

func mapToStruct(data map[string]string, obj interface{}) error {
	jsonStr, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonStr, obj)
}
