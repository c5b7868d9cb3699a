package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/history"
)

const (
	MemoryBuffer        = "buffer"
	MemoryBufferWindow  = "buffer_window"
	MemoryBufferSummary = "buffer_summary"
)

// Memory renders the conversation of one session for prompt use.
type Memory interface {
	// Render returns "" when the session has no messages yet.
	Render(ctx context.Context) (string, error)
}

// FormatMessages renders messages one per line as "Human: ..." / "AI: ...".
func FormatMessages(msgs []history.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, rolePrefix(m.Type)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func rolePrefix(kind string) string {
	switch kind {
	case history.TypeHuman:
		return "Human"
	case history.TypeAI:
		return "AI"
	default:
		return kind
	}
}

// MemoryOptions select the conversation memory of new bots.
type MemoryOptions struct {
	Type string
	// Window is the number of exchanges kept by buffer_window.
	Window int
	// MaxTokens is the buffer budget of buffer_summary.
	MaxTokens int
}

// NewMemory builds the memory named by opts.Type. model is only used by the
// summary memory.
func NewMemory(opts MemoryOptions, sessionID string, store history.Store, model ChatModel) (Memory, error) {
	switch opts.Type {
	case MemoryBuffer:
		return &bufferMemory{sessionID: sessionID, store: store}, nil
	case MemoryBufferWindow, "":
		k := opts.Window
		if k <= 0 {
			k = 2
		}
		return &bufferMemory{sessionID: sessionID, store: store, window: k}, nil
	case MemoryBufferSummary:
		limit := opts.MaxTokens
		if limit <= 0 {
			limit = 500
		}
		return &summaryMemory{sessionID: sessionID, store: store, model: model, maxTokens: limit}, nil
	default:
		return nil, fmt.Errorf("unknown memory type %q", opts.Type)
	}
}

// bufferMemory returns the whole history, or the last window exchanges when window > 0.
type bufferMemory struct {
	sessionID string
	store     history.Store
	window    int
}

func (m *bufferMemory) Render(ctx context.Context) (string, error) {
	msgs, err := m.store.Messages(ctx, m.sessionID)
	if err != nil {
		return "", err
	}
	if m.window > 0 && len(msgs) > 2*m.window {
		msgs = msgs[len(msgs)-2*m.window:]
	}
	return FormatMessages(msgs), nil
}

// summaryMemory keeps recent messages verbatim up to maxTokens and folds
// older ones into a running summary written by the model. The summary lives
// in process only.
type summaryMemory struct {
	sessionID string
	store     history.Store
	model     ChatModel
	maxTokens int

	mu         sync.Mutex
	summary    string
	summarized int
}

func (m *summaryMemory) Render(ctx context.Context) (string, error) {
	msgs, err := m.store.Messages(ctx, m.sessionID)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.summarized > len(msgs) {
		// history was deleted underneath us
		m.summary, m.summarized = "", 0
	}

	buffer := msgs[m.summarized:]
	var pruned []history.Message
	for len(buffer) > 0 && ai.EstimateTokens(FormatMessages(buffer)) > m.maxTokens {
		pruned = append(pruned, buffer[0])
		buffer = buffer[1:]
	}

	if len(pruned) > 0 {
		completion, err := m.model.Generate(ctx, buildSummaryPrompt(m.summary, FormatMessages(pruned)))
		if err != nil {
			return "", fmt.Errorf("failed to summarize history: %w", err)
		}
		m.summary = strings.TrimSpace(completion.Text)
		m.summarized += len(pruned)
	}

	rendered := FormatMessages(buffer)
	if m.summary != "" {
		if rendered == "" {
			return "System: " + m.summary, nil
		}
		rendered = "System: " + m.summary + "\n" + rendered
	}
	return rendered, nil
}
