// Package chat answers legal questions over the indexed documents, one
// ChainBot per chat session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/history"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/vectorstore"
)

// ErrSessionNotFound is returned by Registry.Get for ids never opened.
var ErrSessionNotFound = errors.New("session not found")

// ChatModel is the hosted completion model. *ai.GeminiClient implements it.
type ChatModel interface {
	Generate(ctx context.Context, prompt string) (ai.Completion, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]vectorstore.Match, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorRetriever embeds the query and returns the K most similar chunks.
type VectorRetriever struct {
	Store    vectorstore.Store
	Embedder QueryEmbedder
	K        int
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]vectorstore.Match, error) {
	vec, err := r.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	k := r.K
	if k <= 0 {
		k = 6
	}
	return r.Store.Search(ctx, vec, k)
}

// Answer is the result of one Ask.
type Answer struct {
	Text     string
	Question string // standalone question sent to retrieval
	Sources  []string
	Tokens   int
}

// ChainBot is the conversation of one session. Calls are serialized.
type ChainBot struct {
	sessionID string
	history   history.Store
	memory    Memory
	model     ChatModel
	retriever Retriever
	log       *slog.Logger

	mu          sync.Mutex
	greet       bool
	totalTokens int
}

// countingModel adds every completion's token usage to the bot's total.
type countingModel struct {
	inner ChatModel
	bot   *ChainBot
}

func (c countingModel) Generate(ctx context.Context, prompt string) (ai.Completion, error) {
	completion, err := c.inner.Generate(ctx, prompt)
	if err == nil {
		c.bot.totalTokens += completion.TotalTokens
	}
	return completion, err
}

// NewChainBot builds a bot over the session's stored history.
func NewChainBot(sessionID string, store history.Store, model ChatModel, retriever Retriever, memOpts MemoryOptions) (*ChainBot, error) {
	b := &ChainBot{
		sessionID: sessionID,
		history:   store,
		retriever: retriever,
		log:       logger.With("component", "chain_bot", "session_id", sessionID),
	}
	// all model calls run under b.mu, so the counter needs no extra lock
	b.model = countingModel{inner: model, bot: b}

	mem, err := NewMemory(memOpts, sessionID, store, b.model)
	if err != nil {
		return nil, err
	}
	b.memory = mem
	return b, nil
}

func (b *ChainBot) SessionID() string { return b.sessionID }

// TotalTokens is the model usage of this bot since it was created.
func (b *ChainBot) TotalTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalTokens
}

// flushGreeting writes the pending greeting. Callers hold b.mu.
func (b *ChainBot) flushGreeting(ctx context.Context) error {
	if !b.greet {
		return nil
	}
	if err := b.history.Append(ctx, b.sessionID, history.AIMessage(Greeting)); err != nil {
		return fmt.Errorf("failed to store greeting: %w", err)
	}
	b.greet = false
	return nil
}

// History returns the session's messages, oldest first.
func (b *ChainBot) History(ctx context.Context) ([]history.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flushGreeting(ctx); err != nil {
		return nil, err
	}
	return b.history.Messages(ctx, b.sessionID)
}

// Ask answers one question. Follow-ups are first condensed into a standalone
// question using the conversation so far.
func (b *ChainBot) Ask(ctx context.Context, question string) (Answer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.flushGreeting(ctx); err != nil {
		return Answer{}, err
	}
	startTokens := b.totalTokens

	chatHistory, err := b.memory.Render(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to load memory: %w", err)
	}

	standalone := question
	if chatHistory != "" {
		completion, err := b.model.Generate(ctx, buildCondensePrompt(chatHistory, question))
		if err != nil {
			return Answer{}, fmt.Errorf("failed to condense question: %w", err)
		}
		if text := strings.TrimSpace(completion.Text); text != "" {
			standalone = text
		}
	}

	matches, err := b.retriever.Retrieve(ctx, standalone)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to retrieve documents: %w", err)
	}

	texts := make([]string, 0, len(matches))
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Text)
		sources = append(sources, m.Source)
	}

	completion, err := b.model.Generate(ctx, buildQAPrompt(strings.Join(texts, "\n\n"), chatHistory, standalone))
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}
	answer := strings.TrimSpace(completion.Text)

	if err := b.history.Append(ctx, b.sessionID, history.HumanMessage(question), history.AIMessage(answer)); err != nil {
		return Answer{}, err
	}

	used := b.totalTokens - startTokens
	b.log.Info("Question answered",
		"sources", sources,
		"tokens", used,
		"total_tokens", b.totalTokens)

	return Answer{Text: answer, Question: standalone, Sources: sources, Tokens: used}, nil
}
