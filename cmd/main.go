package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/bootstrap"
	"abogacia-chatbot/internal/config"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/scraper"
	"abogacia-chatbot/internal/telemetry"
	"abogacia-chatbot/middleware"
	"abogacia-chatbot/routes"
	"abogacia-chatbot/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const serviceName = "abogacia-chatbot"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	topics, err := config.LoadTopics(cfg.TopicsFile)
	if err != nil {
		log.Fatal("Failed to load topics:", err)
	}

	var metrics *telemetry.Metrics
	if cfg.OTelEnabled {
		shutdown, err := telemetry.InitTracer(serviceName, cfg.OTelEndpoint, cfg.GinMode)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
		if metrics, err = telemetry.InitMetrics(); err != nil {
			logger.Warn("Metrics disabled", "error", err)
		}
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	historyStore := bootstrap.HistoryStore(mongoClient, cfg)

	index, err := bootstrap.NewIndex(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to open document index:", err)
	}
	defer index.Close()

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.ChatModel, cfg.ChatTemperature, cfg.ChatTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	registry := bootstrap.NewRegistry(cfg, historyStore, geminiClient, index)
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	seeded, err := registry.Seed(seedCtx, historyStore)
	seedCancel()
	if err != nil {
		log.Fatal("Failed to load chat sessions:", err)
	}
	logger.Info("Chat sessions loaded", "sessions", seeded)

	harvester, err := bootstrap.NewHarvester(cfg, index.Ingestion, metrics)
	if err != nil {
		log.Fatal("Failed to set up document acquisition:", err)
	}

	var scheduler *scraper.Scheduler
	if cfg.AcquisitionCron != "" {
		scheduler = scraper.NewScheduler()
		if err := scheduler.ScheduleAcquisition(cfg.AcquisitionCron, harvester, topics); err != nil {
			log.Fatal("Invalid ACQUISITION_CRON:", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	var enqueuer routes.TaskEnqueuer
	if cfg.AsyncDownloads {
		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Background downloads need Redis:", err)
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		enqueuer = client
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(1 << 20))
	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware(serviceName), middleware.EnrichTrace(), middleware.MetricsMiddleware(metrics))
	}
	router.Use(middleware.CompressionMiddleware())

	if cfg.RateLimitEnabled {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			log.Fatal("Rate limiting needs Redis:", err)
		}
		defer rdb.Close()
		router.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second))
	}

	// Setup routes
	routes.SetupChatRoutes(router, &routes.ChatHandlers{
		Registry: registry,
		Exporter: services.NewExportService(historyStore),
		Metrics:  metrics,
		Model:    cfg.ChatModel,
	})
	routes.SetupDocumentRoutes(router, &routes.DocumentHandlers{
		Harvester:     harvester,
		Deleter:       index.Documents,
		DefaultTopics: topics,
		Enqueuer:      enqueuer,
	}, middleware.AdminAuth(cfg.AdminJWTSecret))

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
