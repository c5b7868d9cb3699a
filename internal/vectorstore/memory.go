package vectorstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory store using brute-force cosine similarity.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
	vectors map[string][]float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		vectors: make(map[string][]float32),
	}
}

func (s *MemoryStore) Add(_ context.Context, chunks []Chunk, vectors [][]float32) ([]string, error) {
	if len(chunks) != len(vectors) {
		return nil, ErrLengthMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		id := uuid.NewString()
		ids[i] = id
		s.order = append(s.order, id)
		s.records[id] = Record{ID: id, Text: c.Text, Source: c.Source}
		s.vectors[id] = vectors[i]
	}
	return ids, nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.order))
	for _, id := range s.order {
		matches = append(matches, Match{Record: s.records[id], Score: cosine(vector, s.vectors[id])})
	}
	return topK(matches, k), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			drop[id] = struct{}{}
			delete(s.records, id)
			delete(s.vectors, id)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return len(drop), nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *MemoryStore) Close() error { return nil }
