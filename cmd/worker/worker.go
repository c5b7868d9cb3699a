package main

import (
	"context"
	"log"

	"abogacia-chatbot/internal/bootstrap"
	"abogacia-chatbot/internal/config"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/queue"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	index, err := bootstrap.NewIndex(context.Background(), cfg, nil)
	if err != nil {
		log.Fatal("Failed to open document index:", err)
	}
	defer index.Close()

	harvester, err := bootstrap.NewHarvester(cfg, index.Ingestion, nil)
	if err != nil {
		log.Fatal("Failed to set up document acquisition:", err)
	}

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Worker needs Redis:", err)
	}

	// Downloads drive one browser at a time, so a small pool is enough.
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(harvester, index.Ingestion)

	mux := asynq.NewServeMux()
	processor.Register(mux)

	logger.Info("Starting Asynq worker", "concurrency", 2, "redis", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
