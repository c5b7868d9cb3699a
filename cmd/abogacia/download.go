package main

import (
	"fmt"
	"strconv"
	"strings"

	"abogacia-chatbot/internal/bootstrap"
	"abogacia-chatbot/internal/config"

	"github.com/spf13/cobra"
)

func newDownloadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download, file and index documents from the judicial portal",
		Long: `Run one acquisition pass. Without --topic the topics come from
--topics-file, then TOPICS_FILE, then the built-in defaults.

Examples:
  abogacia download
  abogacia download --topic "Divorcio=5" --topic "PQR=2"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, _ := cmd.Flags().GetStringArray("topic")
			file, _ := cmd.Flags().GetString("topics-file")

			topics, err := parseTopicFlags(flags)
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				if file == "" {
					file = a.cfg.TopicsFile
				}
				if topics, err = config.LoadTopics(file); err != nil {
					return err
				}
			}

			return a.withIndex(cmd.Context(), func(index *bootstrap.Index) error {
				h, err := a.newHarvester(a.cfg, index)
				if err != nil {
					return err
				}
				reports, err := h.Run(cmd.Context(), topics)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range reports {
					fmt.Fprintf(out, "%s: %d/%d known, %d new (%s)\n", r.Topic, r.Known, r.Quota, r.Accepted, r.Stopped)
					for _, e := range r.Errors {
						fmt.Fprintf(out, "  error: %s\n", e)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArray("topic", nil, `topic and quota as "name=count" (repeatable)`)
	cmd.Flags().String("topics-file", "", "YAML file with a temas_legales map")
	return cmd
}

func parseTopicFlags(values []string) (map[string]int, error) {
	topics := make(map[string]int, len(values))
	for _, v := range values {
		i := strings.LastIndex(v, "=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid --topic %q, want name=count", v)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v[i+1:]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid quota in --topic %q", v)
		}
		topics[strings.TrimSpace(v[:i])] = n
	}
	return topics, nil
}
