package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/chat"
	"abogacia-chatbot/internal/history"
	"abogacia-chatbot/internal/scraper"
	"abogacia-chatbot/internal/vectorstore"
	"abogacia-chatbot/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingModel struct {
	calls int
	reply string
	err   error
}

func (m *countingModel) Generate(context.Context, string) (ai.Completion, error) {
	m.calls++
	if m.err != nil {
		return ai.Completion{}, m.err
	}
	return ai.Completion{Text: m.reply, TotalTokens: 5}, nil
}

type noRetrieval struct{}

func (noRetrieval) Retrieve(context.Context, string) ([]vectorstore.Match, error) { return nil, nil }

type fakeHarvester struct {
	topics map[string]int
	err    error
}

func (f *fakeHarvester) Run(_ context.Context, topics map[string]int) ([]scraper.TopicReport, error) {
	f.topics = topics
	return nil, f.err
}

type fakeDeleter struct {
	result *services.DeleteResult
	err    error
}

func (f *fakeDeleter) DeleteDocumentAndFile(_ context.Context, filename string) (*services.DeleteResult, error) {
	if err := services.ValidateFilename(filename); err != nil {
		return nil, err
	}
	return f.result, f.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

type harness struct {
	router    *gin.Engine
	model     *countingModel
	store     *history.MemoryStore
	harvester *fakeHarvester
	deleter   *fakeDeleter
	enqueuer  *fakeEnqueuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		router:    gin.New(),
		model:     &countingModel{reply: "Un PQR es una petición."},
		store:     history.NewMemoryStore(),
		harvester: &fakeHarvester{},
		deleter:   &fakeDeleter{result: &services.DeleteResult{Status: services.StatusSuccess, Message: "ok"}},
		enqueuer:  &fakeEnqueuer{},
	}

	registry := chat.NewRegistry(func(id string) (*chat.ChainBot, error) {
		return chat.NewChainBot(id, h.store, h.model, noRetrieval{}, chat.MemoryOptions{Type: chat.MemoryBufferWindow, Window: 2})
	})

	SetupChatRoutes(h.router, &ChatHandlers{
		Registry: registry,
		Exporter: services.NewExportService(h.store),
		Model:    "test",
	})
	SetupDocumentRoutes(h.router, &DocumentHandlers{
		Harvester:     h.harvester,
		Deleter:       h.deleter,
		DefaultTopics: map[string]int{"Divorcio": 10, "PQR": 2},
		Enqueuer:      h.enqueuer,
	}, func(c *gin.Context) { c.Next() })
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAskUnknownSession(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/ask_chain_bot", `{"query":"hola","session_id":"xyz"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"","error":"Session with session_id 'xyz' not found. Please create a new session."}`, w.Body.String())
	assert.Equal(t, 0, h.model.calls)
}

func TestLoadHistoryGreetsNewSession(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/load_chat_history", `{"session_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"chat_history":[{"type":"ai","content":"Hello, I'm AbogacIA Chatbot. \n How can i Help You today?"}]}`, w.Body.String())

	// second load does not greet again
	w = h.do(t, http.MethodPost, "/load_chat_history", `{"session_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["chat_history"], 1)
}

func TestLoadHistoryRequiresSessionID(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/load_chat_history", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskAfterLoad(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/load_chat_history", `{"session_id":"abc"}`).Code)

	w := h.do(t, http.MethodPost, "/ask_chain_bot", `{"query":"¿Qué es un PQR?","session_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"Un PQR es una petición.","error":""}`, w.Body.String())
	// greeting makes the history non-empty, so the question is condensed first
	assert.Equal(t, 2, h.model.calls)

	msgs, err := h.store.Messages(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestAskWhileModelUnavailable(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/load_chat_history", `{"session_id":"abc"}`).Code)
	h.model.err = ai.ErrCircuitOpen

	w := h.do(t, http.MethodPost, "/ask_chain_bot", `{"query":"¿Qué es un PQR?","session_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ai.FallbackAnswer, decode(t, w)["answer"])

	msgs, err := h.store.Messages(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []history.Message{history.AIMessage(chat.Greeting)}, msgs, "fallback is not stored as an answer")

	h.model.err = ai.ErrQuotaExhausted
	w = h.do(t, http.MethodPost, "/ask_chain_bot", `{"query":"¿Qué es un PQR?","session_id":"abc"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAskBlankQuery(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/load_chat_history", `{"session_id":"abc"}`).Code)

	w := h.do(t, http.MethodPost, "/ask_chain_bot", `{"query":"   ","session_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"Please enter a valid question","error":""}`, w.Body.String())
	assert.Equal(t, 0, h.model.calls)
}

func TestDownloadDocuments(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/download_documents/", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Documents downloaded successfully.", body["message"])
	assert.Equal(t, map[string]int{"Divorcio": 10, "PQR": 2}, h.harvester.topics)

	w = h.do(t, http.MethodPost, "/download_documents/", `{"temas_legales":{"PQR":1}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]int{"PQR": 1}, h.harvester.topics)
}

func TestDownloadDocumentsErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/download_documents/", `{"temas_legales":{"PQR":-1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.harvester.err = errors.New("chrome not found")
	w = h.do(t, http.MethodPost, "/download_documents/", `{}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "chrome not found", decode(t, w)["message"])
}

func TestDownloadDocumentsAsync(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/download_documents/?async=true", `{"temas_legales":{"PQR":2}}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"queued","task_id":"task-1"}`, w.Body.String())
	require.Len(t, h.enqueuer.tasks, 1)
	assert.Nil(t, h.harvester.topics)
}

func TestDeleteDocument(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodDelete, "/delete_document/", `{"filename":"a.pdf"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"ok"}`, w.Body.String())

	w = h.do(t, http.MethodDelete, "/delete_document/", `{"filename":"../etc/passwd"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.deleter.err = errors.New("disk error")
	w = h.do(t, http.MethodDelete, "/delete_document/", `{"filename":"a.pdf"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestExportChatHistory(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/export_chat_history/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/load_chat_history", `{"session_id":"abc"}`).Code)

	w = h.do(t, http.MethodGet, "/export_chat_history/abc?format=json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var data services.ChatExportData
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&data))
	assert.Equal(t, 1, data.Summary.Answers)

	w = h.do(t, http.MethodGet, "/export_chat_history/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "chat_abc.xlsx")

	w = h.do(t, http.MethodGet, "/export_chat_history/abc?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}
