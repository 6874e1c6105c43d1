package drafts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var draftsBucket = []byte("drafts")

// newChatKey stores the unkeyed slot; real ids are never empty.
const newChatKey = "\x00new-chat"

// boltBacking mirrors the draft map into a local bbolt file. A nil backing is
// valid and does nothing.
type boltBacking struct {
	db *bolt.DB
}

// Open returns a draft store whose contents survive restarts by mirroring them
// into the bbolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create drafts directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open drafts file: %w", err)
	}

	s := NewStore()
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(draftsBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			if string(k) == newChatKey {
				s.newChat = string(v)
			} else {
				s.drafts[string(k)] = string(v)
			}
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	s.backing = &boltBacking{db: db}
	return s, nil
}

func boltKey(conversationID string) []byte {
	if conversationID == NewChat {
		return []byte(newChatKey)
	}
	return []byte(conversationID)
}

func (b *boltBacking) put(conversationID, text string) {
	if b == nil {
		return
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Put(boltKey(conversationID), []byte(text))
	})
	if err != nil {
		slog.Warn("Failed to persist draft", "conversation_id", conversationID, "error", err)
	}
}

func (b *boltBacking) delete(conversationID string) {
	if b == nil {
		return
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Delete(boltKey(conversationID))
	})
	if err != nil {
		slog.Warn("Failed to delete persisted draft", "conversation_id", conversationID, "error", err)
	}
}

func (b *boltBacking) close() error {
	if b == nil {
		return nil
	}
	return b.db.Close()
}
