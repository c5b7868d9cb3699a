package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	DocumentsIngested   metric.Int64Counter
	ChunksIndexed       metric.Int64Counter
	DuplicatesDiscarded metric.Int64Counter
	IngestDuration      metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("abogacia-chatbot")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	documentsIngested, err := meter.Int64Counter(
		"documents.ingested.total",
		metric.WithDescription("Documents loaded into the vector index"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"chunks.indexed.total",
		metric.WithDescription("Chunks inserted into the vector index"),
	)
	if err != nil {
		return nil, err
	}

	duplicates, err := meter.Int64Counter(
		"downloads.duplicates.total",
		metric.WithDescription("Downloaded files discarded as already known"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"document.ingest.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		DocumentsIngested:   documentsIngested,
		ChunksIndexed:       chunksIndexed,
		DuplicatesDiscarded: duplicates,
		IngestDuration:      ingestDuration,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(
		attribute.String("gemini.model", model),
	))
}

// RecordIngest records one ingested document and the chunks it produced.
func (m *Metrics) RecordIngest(chunks int, duration float64, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("ingest.status", status))

	m.DocumentsIngested.Add(context.Background(), 1, attrs)
	m.ChunksIndexed.Add(context.Background(), int64(chunks), attrs)
	m.IngestDuration.Record(context.Background(), duration, attrs)
}

// RecordDuplicate records a staged download dropped by dedup.
func (m *Metrics) RecordDuplicate(topic string) {
	if m == nil {
		return
	}
	m.DuplicatesDiscarded.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("topic", topic),
	))
}
