package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) conversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Browse and manage your conversation history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.svc.Conversations.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No conversations yet. Start one with `vita chat --new`.")
				return nil
			}
			tw := newTable(a.out, "ID", "TITLE", "MESSAGES", "UPDATED")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Title, c.Count.Messages, formatTime(c.UpdatedAt))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.svc.Conversations.FetchConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n\n", titleStyle(conv.Title), dimStyle(formatTime(conv.UpdatedAt)))
			for _, m := range conv.Messages {
				printMessage(a.out, m)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create [title]",
		Short: "Create an empty conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.svc.Conversations.CreateConversation(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Created %q (%s)\n", okStyle("✓"), created.Title, created.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := a.svc.Conversations.RenameConversation(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Renamed to %q\n", okStyle("✓"), updated.Title)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Conversations.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Deleted %s\n", okStyle("✓"), args[0])
			return nil
		},
	})

	return cmd
}
