// Package history persists per-session chat messages.
package history

import (
	"context"
	"sort"
	"sync"
)

const (
	TypeHuman = "human"
	TypeAI    = "ai"
)

// Message is one chat turn as the HTTP API shows it.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func HumanMessage(content string) Message { return Message{Type: TypeHuman, Content: content} }

func AIMessage(content string) Message { return Message{Type: TypeAI, Content: content} }

// Store is the external history store keyed by session id.
type Store interface {
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	SessionIDs(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// MemoryStore keeps history in process. Used by tests and the CLI dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Message)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msgs...)
	return nil
}

func (s *MemoryStore) Messages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.sessions[sessionID]...), nil
}

func (s *MemoryStore) SessionIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.sessions[sessionID]))
	delete(s.sessions, sessionID)
	return n, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, msgs := range s.sessions {
		n += int64(len(msgs))
	}
	s.sessions = make(map[string][]Message)
	return n, nil
}
