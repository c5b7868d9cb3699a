package chat

import (
	"context"
	"sort"
	"sync"

	"abogacia-chatbot/internal/history"
)

// Factory builds the bot for a session id.
type Factory func(sessionID string) (*ChainBot, error)

// Registry maps session ids to bots. Creation happens under one lock so a
// session never gets two bots.
type Registry struct {
	mu      sync.Mutex
	bots    map[string]*ChainBot
	factory Factory
}

// NewRegistry returns an empty registry building bots with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{bots: make(map[string]*ChainBot), factory: factory}
}

// Get returns the bot of an existing session.
func (r *Registry) Get(sessionID string) (*ChainBot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bot, ok := r.bots[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return bot, nil
}

// Open returns the session's bot, creating it when missing. A created bot
// greets the user before its history is first read.
func (r *Registry) Open(sessionID string) (bot *ChainBot, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bot, ok := r.bots[sessionID]; ok {
		return bot, false, nil
	}
	bot, err = r.factory(sessionID)
	if err != nil {
		return nil, false, err
	}
	bot.greet = true
	r.bots[sessionID] = bot
	return bot, true, nil
}

// Seed registers a bot for every session already in the history store.
// Seeded sessions are not greeted again.
func (r *Registry) Seed(ctx context.Context, store history.Store) (int, error) {
	ids, err := store.SessionIDs(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := r.bots[id]; ok {
			continue
		}
		bot, err := r.factory(id)
		if err != nil {
			return n, err
		}
		r.bots[id] = bot
		n++
	}
	return n, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bots)
}

func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.bots))
	for id := range r.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
