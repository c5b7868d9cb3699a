package main

import (
	"context"

	"abogacia-chatbot/internal/bootstrap"
	"abogacia-chatbot/internal/config"
	"abogacia-chatbot/internal/history"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

// app holds how commands reach the stores, so tests can swap them.
type app struct {
	loadConfig   func() (*config.Config, error)
	openHistory  func(ctx context.Context, cfg *config.Config) (history.Store, func(), error)
	openIndex    func(ctx context.Context, cfg *config.Config) (*bootstrap.Index, error)
	newHarvester func(cfg *config.Config, index *bootstrap.Index) (harvester, error)
	openQueue    func(cfg *config.Config) (enqueuer, func(), error)

	cfg *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "abogacia",
		Short: "AbogacIA chatbot administration",
		Long: `abogacia manages the AbogacIA chatbot data outside the HTTP service.

Example usage:
  abogacia sessions list             # List chat sessions
  abogacia sessions delete <id>      # Delete one conversation
  abogacia index stats               # Show what the document index holds
  abogacia index query "divorcio"    # Raw similarity search
  abogacia index ingest --async f.pdf # Queue a document for the worker
  abogacia download                  # Run acquisition with the default topics
  abogacia token --subject ops       # Mint an admin token`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg != nil {
				return nil
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		newSessionsCmd(a),
		newIndexCmd(a),
		newDownloadCmd(a),
		newTokenCmd(a),
	)
	return root
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// withHistory runs fn against the history store and closes it afterwards.
func (a *app) withHistory(ctx context.Context, fn func(history.Store) error) error {
	store, closer, err := a.openHistory(ctx, a.cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}
	return fn(store)
}

func (a *app) withIndex(ctx context.Context, fn func(*bootstrap.Index) error) error {
	index, err := a.openIndex(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer index.Close()
	return fn(index)
}
