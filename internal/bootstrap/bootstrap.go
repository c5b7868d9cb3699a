// Package bootstrap builds the components shared by the server, the worker
// and the admin CLI from one Config.
package bootstrap

import (
	"context"
	"fmt"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/chat"
	"abogacia-chatbot/internal/config"
	"abogacia-chatbot/internal/history"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/scraper"
	"abogacia-chatbot/internal/telemetry"
	"abogacia-chatbot/internal/vectorstore"
	"abogacia-chatbot/services"

	"go.mongodb.org/mongo-driver/mongo"
)

// Index is the document side: vector store, embeddings, ingestion and deletion.
type Index struct {
	Store     vectorstore.Store
	Embedder  ai.Embedder
	Ingestion *services.IngestionService
	Documents *services.DocumentService
}

// NewIndex opens the on-disk vector index and the configured embedder.
func NewIndex(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Index, error) {
	store, err := vectorstore.NewSQLiteStore(cfg.VectorDBDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	splitter := services.NewTextSplitter(cfg.MaxChunkSize, cfg.ChunkOverlap)
	return &Index{
		Store:     store,
		Embedder:  embedder,
		Ingestion: services.NewIngestionService(store, embedder, splitter, metrics),
		Documents: services.NewDocumentService(cfg.DownloadDir, store, embedder),
	}, nil
}

func (i *Index) Close() {
	if err := i.Embedder.Close(); err != nil {
		logger.Warn("Failed to close embedder", "error", err)
	}
	if err := i.Store.Close(); err != nil {
		logger.Warn("Failed to close vector index", "error", err)
	}
}

// NewHarvester wires the portal automation to the ingestion pipeline.
func NewHarvester(cfg *config.Config, ingester scraper.Ingester, metrics *telemetry.Metrics) (*scraper.Harvester, error) {
	tracker, err := scraper.NewTracker(cfg.DedupStrategy, cfg.DownloadDir)
	if err != nil {
		return nil, err
	}

	portals := scraper.ChromePortalFactory(scraper.PortalOptions{
		URL:         cfg.PortalURL,
		Headless:    cfg.Headless,
		StepTimeout: cfg.StepTimeout,
	})

	return scraper.NewHarvester(scraper.HarvesterOptions{
		DownloadDir:  cfg.DownloadDir,
		DownloadWait: cfg.DownloadWait,
		PageWait:     cfg.PageWait,
	}, portals, tracker, ingester, metrics), nil
}

// HistoryStore returns the chat history collection named by cfg.
func HistoryStore(client *mongo.Client, cfg *config.Config) *history.MongoStore {
	return history.NewMongoStore(client.Database(cfg.DBName).Collection(cfg.CollectionName))
}

// NewRegistry builds the session registry; every bot shares the model, the
// retriever and the history store.
func NewRegistry(cfg *config.Config, store history.Store, model chat.ChatModel, index *Index) *chat.Registry {
	retriever := &chat.VectorRetriever{Store: index.Store, Embedder: index.Embedder, K: cfg.RetrieverK}
	memOpts := chat.MemoryOptions{
		Type:      cfg.MemoryType,
		Window:    cfg.MemoryWindow,
		MaxTokens: cfg.MemoryTokens,
	}
	return chat.NewRegistry(func(sessionID string) (*chat.ChainBot, error) {
		return chat.NewChainBot(sessionID, store, model, retriever, memOpts)
	})
}
