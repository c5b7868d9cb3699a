package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/scraper"
)

const (
	TaskDownloadDocuments = "documents:download"
	TaskIngestDocument    = "documents:ingest"
)

// DownloadPayload uses the same field name as the HTTP request body.
type DownloadPayload struct {
	Topics map[string]int `json:"temas_legales"`
}

type IngestPayload struct {
	Path string `json:"path"`
}

// Task creators
func NewDownloadTask(topics map[string]int) (*asynq.Task, error) {
	payload, err := json.Marshal(DownloadPayload{Topics: topics})
	if err != nil {
		return nil, err
	}

	// one browser run at a time is enforced by the harvester; retries would
	// only re-download what the dedup log already skips
	return asynq.NewTask(
		TaskDownloadDocuments,
		payload,
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Hour),
		asynq.Queue("default"),
	), nil
}

// NewIngestTask queues one file for indexing. The worker must see path.
func NewIngestTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{Path: path})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

type Harvester interface {
	Run(ctx context.Context, topics map[string]int) ([]scraper.TopicReport, error)
}

// Task handlers
type TaskProcessor struct {
	harvester Harvester
	ingester  scraper.Ingester
}

func NewTaskProcessor(harvester Harvester, ingester scraper.Ingester) *TaskProcessor {
	return &TaskProcessor{harvester: harvester, ingester: ingester}
}

// ProcessDownload runs one acquisition over the payload topics.
func (p *TaskProcessor) ProcessDownload(ctx context.Context, t *asynq.Task) error {
	var payload DownloadPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.Topics) == 0 {
		return fmt.Errorf("no topics in payload: %w", asynq.SkipRetry)
	}

	logger.Info("Processing download task", "topics", len(payload.Topics))

	reports, err := p.harvester.Run(ctx, payload.Topics)
	if err != nil {
		return err
	}
	for _, r := range reports {
		logger.Info("Topic finished",
			"topic", r.Topic,
			"quota", r.Quota,
			"known", r.Known,
			"accepted", r.Accepted,
			"stopped", r.Stopped,
			"errors", len(r.Errors))
	}
	return nil
}

// ProcessIngest indexes the file named in the payload.
func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	result, err := p.ingester.Ingest(ctx, payload.Path)
	if err != nil {
		return err
	}
	if result == "" {
		logger.Info("Nothing ingested", "path", payload.Path)
		return nil
	}
	logger.Info(result)
	return nil
}

// Register wires the handlers into a mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskDownloadDocuments, p.ProcessDownload)
	mux.HandleFunc(TaskIngestDocument, p.ProcessIngest)
}
