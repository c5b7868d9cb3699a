package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/telemetry"
	"abogacia-chatbot/internal/vectorstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// IngestionService loads downloaded files into the vector index.
type IngestionService struct {
	store    vectorstore.Store
	embedder ai.Embedder
	splitter *TextSplitter
	metrics  *telemetry.Metrics
}

// NewIngestionService indexes documents into store. metrics may be nil.
func NewIngestionService(store vectorstore.Store, embedder ai.Embedder, splitter *TextSplitter, metrics *telemetry.Metrics) *IngestionService {
	return &IngestionService{
		store:    store,
		embedder: embedder,
		splitter: splitter,
		metrics:  metrics,
	}
}

// Ingest indexes one file and reports the index size afterwards.
// Unsupported files and files without text are skipped with an empty result.
func (s *IngestionService) Ingest(ctx context.Context, path string) (string, error) {
	ctx, span := otel.Tracer("ingestion").Start(ctx, "ingest.document")
	defer span.End()
	span.SetAttributes(attribute.String("document.path", path))

	start := time.Now()

	text, err := LoadDocument(path)
	if errors.Is(err, ErrUnsupportedFormat) {
		logger.Info("Skipping file with unsupported format", "file", path)
		return "", nil
	}
	if err != nil {
		s.metrics.RecordIngest(0, time.Since(start).Seconds(), "error")
		return "", fmt.Errorf("loading %s: %w", path, err)
	}

	texts := s.splitter.Split(text)
	if len(texts) == 0 {
		logger.Warn("No text extracted, nothing indexed", "file", path)
		return "", nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		s.metrics.RecordIngest(0, time.Since(start).Seconds(), "error")
		return "", fmt.Errorf("embedding %s: %w", path, err)
	}

	chunks := make([]vectorstore.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = vectorstore.Chunk{Text: t, Source: path}
	}
	if _, err := s.store.Add(ctx, chunks, vectors); err != nil {
		return "", fmt.Errorf("indexing %s: %w", path, err)
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return "", err
	}

	span.SetAttributes(attribute.Int("document.chunks", len(chunks)))
	s.metrics.RecordIngest(len(chunks), time.Since(start).Seconds(), "success")
	logger.Info("Document indexed", "file", path, "chunks", len(chunks), "index_size", count)

	return fmt.Sprintf("stored in database: %s file number %d", path, count), nil
}
