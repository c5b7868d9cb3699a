package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/history"
	"abogacia-chatbot/internal/vectorstore"
)

type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) string
	err     error
}

func (f *fakeModel) Generate(_ context.Context, prompt string) (ai.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return ai.Completion{}, f.err
	}
	text := "respuesta"
	if f.reply != nil {
		text = f.reply(prompt)
	}
	return ai.Completion{Text: text, TotalTokens: 10}, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeRetriever struct {
	queries []string
	matches []vectorstore.Match
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]vectorstore.Match, error) {
	f.queries = append(f.queries, query)
	return f.matches, nil
}

func newBot(t *testing.T, store history.Store, model ChatModel, retriever Retriever, opts MemoryOptions) *ChainBot {
	t.Helper()
	bot, err := NewChainBot("s1", store, model, retriever, opts)
	require.NoError(t, err)
	return bot
}

func TestAsk_FirstQuestionSkipsCondense(t *testing.T) {
	store := history.NewMemoryStore()
	model := &fakeModel{}
	retriever := &fakeRetriever{matches: []vectorstore.Match{
		{Record: vectorstore.Record{Text: "El divorcio puede ser de mutuo acuerdo.", Source: "downloads/divorcio/a.pdf"}, Score: 0.9},
	}}
	bot := newBot(t, store, model, retriever, MemoryOptions{Type: MemoryBufferWindow, Window: 2})

	answer, err := bot.Ask(context.Background(), "¿Qué es el divorcio?")
	require.NoError(t, err)

	assert.Equal(t, "respuesta", answer.Text)
	assert.Equal(t, []string{"downloads/divorcio/a.pdf"}, answer.Sources)
	assert.Equal(t, []string{"¿Qué es el divorcio?"}, retriever.queries)
	require.Equal(t, 1, model.calls())
	assert.Contains(t, model.prompts[0], "El divorcio puede ser de mutuo acuerdo.")
	assert.Contains(t, model.prompts[0], "Answer the User question:\n¿Qué es el divorcio?")
	assert.Equal(t, 10, bot.TotalTokens())

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []history.Message{history.HumanMessage("¿Qué es el divorcio?"), history.AIMessage("respuesta")}, msgs)
}

func TestAsk_FollowUpIsCondensed(t *testing.T) {
	store := history.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), "s1",
		history.HumanMessage("¿Qué es el divorcio?"), history.AIMessage("Es la disolución del matrimonio.")))

	model := &fakeModel{reply: func(prompt string) string {
		if strings.Contains(prompt, "Standalone question:") {
			return "¿Cuánto tarda un divorcio en Colombia?"
		}
		return "Unos meses."
	}}
	retriever := &fakeRetriever{}
	bot := newBot(t, store, model, retriever, MemoryOptions{Type: MemoryBuffer})

	answer, err := bot.Ask(context.Background(), "¿Y cuánto tarda?")
	require.NoError(t, err)

	assert.Equal(t, "Unos meses.", answer.Text)
	assert.Equal(t, "¿Cuánto tarda un divorcio en Colombia?", answer.Question)
	assert.Equal(t, []string{"¿Cuánto tarda un divorcio en Colombia?"}, retriever.queries)
	require.Equal(t, 2, model.calls())
	assert.Contains(t, model.prompts[0], "Human: ¿Qué es el divorcio?\nAI: Es la disolución del matrimonio.")
	assert.Contains(t, model.prompts[0], "Follow Up Input: ¿Y cuánto tarda?")
	assert.Equal(t, 20, bot.TotalTokens())

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	// the user's own wording is stored, not the condensed one
	assert.Equal(t, history.HumanMessage("¿Y cuánto tarda?"), msgs[2])
}

func TestAsk_ModelErrorStoresNothing(t *testing.T) {
	store := history.NewMemoryStore()
	model := &fakeModel{err: errors.New("boom")}
	bot := newBot(t, store, model, &fakeRetriever{}, MemoryOptions{})

	_, err := bot.Ask(context.Background(), "hola")
	require.Error(t, err)

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBufferWindowKeepsLastExchanges(t *testing.T) {
	store := history.NewMemoryStore()
	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Append(context.Background(), "s1",
			history.HumanMessage(fmt.Sprintf("q%d", i)), history.AIMessage(fmt.Sprintf("a%d", i))))
	}

	mem, err := NewMemory(MemoryOptions{Type: MemoryBufferWindow, Window: 2}, "s1", store, nil)
	require.NoError(t, err)

	rendered, err := mem.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Human: q3\nAI: a3\nHuman: q4\nAI: a4", rendered)
}

func TestBufferSummaryFoldsOldMessages(t *testing.T) {
	store := history.NewMemoryStore()
	long := strings.Repeat("x", 40) // 10 tokens each
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(context.Background(), "s1", history.HumanMessage(long), history.AIMessage(long)))
	}

	model := &fakeModel{reply: func(string) string { return "resumen" }}
	mem, err := NewMemory(MemoryOptions{Type: MemoryBufferSummary, MaxTokens: 25}, "s1", store, model)
	require.NoError(t, err)

	rendered, err := mem.Render(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, model.calls())
	assert.True(t, strings.HasPrefix(rendered, "System: resumen\n"), rendered)
	assert.LessOrEqual(t, ai.EstimateTokens(strings.TrimPrefix(rendered, "System: resumen\n")), 25)

	// nothing new to fold
	_, err = mem.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls())
}

func TestAsk_UnavailableModelLeavesHistoryAlone(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	prior := []history.Message{history.HumanMessage("¿Qué es el divorcio?"), history.AIMessage("Es la disolución del matrimonio.")}
	require.NoError(t, store.Append(ctx, "s1", prior...))

	model := &fakeModel{err: ai.ErrCircuitOpen}
	retriever := &fakeRetriever{}
	bot := newBot(t, store, model, retriever, MemoryOptions{Type: MemoryBuffer})

	_, err := bot.Ask(ctx, "¿Y cuánto tarda?")
	require.ErrorIs(t, err, ai.ErrCircuitOpen)
	assert.Empty(t, retriever.queries, "no retrieval without a condensed question")
	assert.Equal(t, 0, bot.TotalTokens())

	msgs, err := store.Messages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, prior, msgs)
}

func TestBufferSummaryKeepsSummaryWhenModelFails(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	long := strings.Repeat("x", 40)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, "s1", history.HumanMessage(long), history.AIMessage(long)))
	}

	model := &fakeModel{reply: func(string) string { return "resumen" }}
	mem, err := NewMemory(MemoryOptions{Type: MemoryBufferSummary, MaxTokens: 25}, "s1", store, model)
	require.NoError(t, err)
	sm := mem.(*summaryMemory)

	_, err = mem.Render(ctx)
	require.NoError(t, err)
	folded := sm.summarized

	// more history arrives while the model is down
	require.NoError(t, store.Append(ctx, "s1", history.HumanMessage(long), history.AIMessage(long)))
	model.mu.Lock()
	model.err = ai.ErrCircuitOpen
	model.mu.Unlock()

	_, err = mem.Render(ctx)
	require.ErrorIs(t, err, ai.ErrCircuitOpen)
	assert.Equal(t, "resumen", sm.summary)
	assert.Equal(t, folded, sm.summarized)

	model.mu.Lock()
	model.err = nil
	model.mu.Unlock()

	rendered, err := mem.Render(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rendered, "System: resumen\n"), rendered)
	assert.Greater(t, sm.summarized, folded)
}

func TestNewMemoryRejectsUnknownType(t *testing.T) {
	_, err := NewMemory(MemoryOptions{Type: "entity"}, "s1", history.NewMemoryStore(), nil)
	assert.Error(t, err)
}

func TestVectorRetriever(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	_, err := store.Add(ctx,
		[]vectorstore.Chunk{{Text: "uno", Source: "a.pdf"}, {Text: "dos", Source: "b.pdf"}},
		[][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	r := &VectorRetriever{Store: store, Embedder: staticEmbedder{0, 1}, K: 1}
	matches, err := r.Retrieve(ctx, "dos")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b.pdf", matches[0].Source)
}

type staticEmbedder []float32

func (s staticEmbedder) EmbedQuery(context.Context, string) ([]float32, error) { return s, nil }

func newRegistry(store history.Store, model ChatModel) *Registry {
	return NewRegistry(func(id string) (*ChainBot, error) {
		return NewChainBot(id, store, model, &fakeRetriever{}, MemoryOptions{})
	})
}

func TestRegistry_UnknownSession(t *testing.T) {
	r := newRegistry(history.NewMemoryStore(), &fakeModel{})
	_, err := r.Get("xyz")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_NewSessionIsGreetedOnce(t *testing.T) {
	store := history.NewMemoryStore()
	r := newRegistry(store, &fakeModel{})

	bot, created, err := r.Open("nuevo")
	require.NoError(t, err)
	assert.True(t, created)

	msgs, err := bot.History(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []history.Message{history.AIMessage(Greeting)}, msgs)

	again, created, err := r.Open("nuevo")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, bot, again)

	msgs, err = again.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRegistry_ConcurrentOpenCreatesOneBot(t *testing.T) {
	store := history.NewMemoryStore()
	r := newRegistry(store, &fakeModel{})

	var wg sync.WaitGroup
	bots := make([]*ChainBot, 20)
	for i := range bots {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bot, _, err := r.Open("s")
			if err == nil {
				_, _ = bot.History(context.Background())
			}
			bots[i] = bot
		}(i)
	}
	wg.Wait()

	for _, b := range bots {
		assert.Same(t, bots[0], b)
	}
	msgs, err := store.Messages(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRegistry_SeedFromHistory(t *testing.T) {
	store := history.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), "viejo", history.AIMessage(Greeting)))
	r := newRegistry(store, &fakeModel{})

	n, err := r.Seed(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"viejo"}, r.Sessions())

	bot, err := r.Get("viejo")
	require.NoError(t, err)
	msgs, err := bot.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
