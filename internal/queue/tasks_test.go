package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abogacia-chatbot/internal/scraper"
)

type fakeHarvester struct {
	topics map[string]int
	err    error
}

func (f *fakeHarvester) Run(_ context.Context, topics map[string]int) ([]scraper.TopicReport, error) {
	f.topics = topics
	if f.err != nil {
		return nil, f.err
	}
	return []scraper.TopicReport{{Topic: "PQR", Quota: topics["PQR"], Known: 2, Accepted: 2, Stopped: "quota reached"}}, nil
}

type fakeIngester struct {
	paths []string
}

func (f *fakeIngester) Ingest(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return "stored in database: " + path + " file number 1", nil
}

func TestNewDownloadTask(t *testing.T) {
	task, err := NewDownloadTask(map[string]int{"PQR": 2})
	require.NoError(t, err)
	assert.Equal(t, TaskDownloadDocuments, task.Type())

	var payload DownloadPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, map[string]int{"PQR": 2}, payload.Topics)
}

func TestProcessDownload(t *testing.T) {
	h := &fakeHarvester{}
	p := NewTaskProcessor(h, &fakeIngester{})

	task, err := NewDownloadTask(map[string]int{"PQR": 2})
	require.NoError(t, err)
	require.NoError(t, p.ProcessDownload(context.Background(), task))
	assert.Equal(t, map[string]int{"PQR": 2}, h.topics)
}

func TestProcessDownload_HarvestErrorIsRetried(t *testing.T) {
	p := NewTaskProcessor(&fakeHarvester{err: errors.New("chrome exited")}, &fakeIngester{})

	task, err := NewDownloadTask(map[string]int{"PQR": 2})
	require.NoError(t, err)
	err = p.ProcessDownload(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessDownload_BadPayloadSkipsRetry(t *testing.T) {
	p := NewTaskProcessor(&fakeHarvester{}, &fakeIngester{})

	err := p.ProcessDownload(context.Background(), asynq.NewTask(TaskDownloadDocuments, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.ProcessDownload(context.Background(), asynq.NewTask(TaskDownloadDocuments, []byte(`{"temas_legales":{}}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessIngest(t *testing.T) {
	ing := &fakeIngester{}
	p := NewTaskProcessor(&fakeHarvester{}, ing)

	task, err := NewIngestTask("downloads/pqr/a.pdf")
	require.NoError(t, err)
	require.NoError(t, p.ProcessIngest(context.Background(), task))
	assert.Equal(t, []string{"downloads/pqr/a.pdf"}, ing.paths)
}
