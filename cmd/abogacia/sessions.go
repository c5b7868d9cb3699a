package main

import (
	"fmt"

	"abogacia-chatbot/internal/history"

	"github.com/spf13/cobra"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored chat conversations",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List session ids with stored messages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(cmd.Context(), func(store history.Store) error {
				ids, err := store.SessionIDs(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete one session's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(cmd.Context(), func(store history.Store) error {
				n, err := store.DeleteSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages of session %s\n", n, args[0])
				return nil
			})
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to delete all conversations without --yes")
			}
			return a.withHistory(cmd.Context(), func(store history.Store) error {
				n, err := store.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages\n", n)
				return nil
			})
		},
	}
	purge.Flags().Bool("yes", false, "confirm deleting all conversations")

	cmd.AddCommand(list, del, purge)
	return cmd
}
