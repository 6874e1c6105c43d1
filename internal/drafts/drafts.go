// Package drafts keeps unsent input text per conversation so it survives
// switching between conversations. Drafts are never sent to the backend.
package drafts

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// NewChat addresses the single unkeyed slot used before a conversation exists.
const NewChat = ""

// Store maps conversation ids to draft text. The zero value is not usable;
// call NewStore or Open.
type Store struct {
	mu      sync.RWMutex
	drafts  map[string]string
	newChat string
	backing *boltBacking
}

// NewStore returns an in-memory draft store.
func NewStore() *Store {
	return &Store{drafts: make(map[string]string)}
}

// Set overwrites the draft for conversationID. Any text, including "", is accepted.
func (s *Store) Set(conversationID, text string) {
	s.mu.Lock()
	if conversationID == NewChat {
		s.newChat = text
	} else {
		s.drafts[conversationID] = text
	}
	s.mu.Unlock()
	s.backing.put(conversationID, text)
}

// Get returns the stored draft or "" if there is none.
func (s *Store) Get(conversationID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conversationID == NewChat {
		return s.newChat
	}
	return s.drafts[conversationID]
}

// Clear resets the draft for conversationID to empty.
func (s *Store) Clear(conversationID string) {
	s.mu.Lock()
	if conversationID == NewChat {
		s.newChat = ""
	} else {
		delete(s.drafts, conversationID)
	}
	s.mu.Unlock()
	s.backing.delete(conversationID)
}

// Switch flushes currentInput under from and returns the normalized draft to
// load for to. Switching to NewChat always loads an empty input.
func (s *Store) Switch(from, currentInput, to string) string {
	s.Set(from, currentInput)
	if to == NewChat {
		return ""
	}
	return Normalize(s.Get(to))
}

// Close releases the on-disk backing, if any.
func (s *Store) Close() error {
	return s.backing.close()
}

var blankLineRun = regexp.MustCompile(`\n{3,}`)

// Normalize trims the text, collapses runs of blank lines to a single blank
// line and strips trailing whitespace from each line.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	t := strings.TrimSpace(strings.Join(lines, "\n"))
	return blankLineRun.ReplaceAllString(t, "\n\n")
}
