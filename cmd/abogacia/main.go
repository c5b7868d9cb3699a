// Command abogacia is the admin CLI: chat sessions, the document index and
// stand-alone acquisition runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"abogacia-chatbot/internal/bootstrap"
	"abogacia-chatbot/internal/config"
	"abogacia-chatbot/internal/history"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/scraper"

	"github.com/hibiken/asynq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(defaultApp())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// defaultApp opens the real stores from the environment on first use.
func defaultApp() *app {
	a := &app{}
	a.loadConfig = func() (*config.Config, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		logger.InitLogger(cfg)
		return cfg, nil
	}
	a.openHistory = func(ctx context.Context, cfg *config.Config) (history.Store, func(), error) {
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			client.Disconnect(ctx)
		}
		return bootstrap.HistoryStore(client, cfg), closer, nil
	}
	a.openIndex = func(ctx context.Context, cfg *config.Config) (*bootstrap.Index, error) {
		return bootstrap.NewIndex(ctx, cfg, nil)
	}
	a.newHarvester = func(cfg *config.Config, index *bootstrap.Index) (harvester, error) {
		return bootstrap.NewHarvester(cfg, index.Ingestion, nil)
	}
	a.openQueue = func(cfg *config.Config) (enqueuer, func(), error) {
		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			return nil, nil, err
		}
		client := asynq.NewClient(redisOpt)
		return client, func() { client.Close() }, nil
	}
	return a
}

type harvester interface {
	Run(ctx context.Context, topics map[string]int) ([]scraper.TopicReport, error)
}
