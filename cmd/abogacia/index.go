package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"abogacia-chatbot/internal/bootstrap"
	"abogacia-chatbot/internal/queue"

	"github.com/spf13/cobra"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and maintain the document index",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count chunks and sources in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return a.withIndex(cmd.Context(), func(index *bootstrap.Index) error {
				s, err := index.Documents.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(s)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Chunks:        %d\n", s.Chunks)
				fmt.Fprintf(out, "URL sources:   %d (%d chunks)\n", s.URLSources, s.URLChunks)
				fmt.Fprintf(out, "File sources:  %d (%d chunks)\n", s.FileSources, s.FileChunks)
				return nil
			})
		},
	}
	stats.Flags().Bool("json", false, "output as JSON")

	query := &cobra.Command{
		Use:   "query <question>",
		Short: "Run a raw similarity search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("k")
			return a.withIndex(cmd.Context(), func(index *bootstrap.Index) error {
				res, err := index.Documents.Query(cmd.Context(), args[0], k)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for i, m := range res.Matches {
					fmt.Fprintf(out, "%d. [%.4f] %s\n   %s\n", i+1, m.Score, m.Source, preview(m.Text, 200))
				}
				fmt.Fprintf(out, "Query took %s\n", res.Took)
				return nil
			})
		},
	}
	query.Flags().IntP("k", "k", 6, "number of chunks to return")

	ingest := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index documents from disk",
		Long: `Index documents from disk.

With --async the paths are queued for the worker instead, which must see
the same filesystem.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if async, _ := cmd.Flags().GetBool("async"); async {
				return a.enqueueIngest(cmd, args)
			}
			return a.withIndex(cmd.Context(), func(index *bootstrap.Index) error {
				for _, path := range args {
					result, err := index.Ingestion.Ingest(cmd.Context(), path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					if result == "" {
						result = "skipped " + path
					}
					fmt.Fprintln(cmd.OutOrStdout(), result)
				}
				return nil
			})
		},
	}

	ingest.Flags().Bool("async", false, "queue the documents for the worker")

	del := &cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete a document from the download folder and the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(cmd.Context(), func(index *bootstrap.Index) error {
				res, err := index.Documents.DeleteDocumentAndFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Status, res.Message)
				return nil
			})
		},
	}

	cmd.AddCommand(stats, query, ingest, del)
	return cmd
}

func (a *app) enqueueIngest(cmd *cobra.Command, paths []string) error {
	// resolve and check every path before anything is queued
	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, err := os.Stat(abs); err != nil {
			return err
		}
		resolved = append(resolved, abs)
	}

	client, closer, err := a.openQueue(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to open task queue: %w", err)
	}
	if closer != nil {
		defer closer()
	}

	for _, path := range resolved {
		task, err := queue.NewIngestTask(path)
		if err != nil {
			return err
		}
		info, err := client.EnqueueContext(cmd.Context(), task)
		if err != nil {
			return fmt.Errorf("%s: failed to enqueue: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s (task %s)\n", path, info.ID)
	}
	return nil
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
