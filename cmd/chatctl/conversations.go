package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/wire"
	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List your conversations, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = env.Logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		convs, err := env.Client().ListConversations(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			out := make([]wire.Conversation, len(convs))
			for i, c := range convs {
				out[i] = wire.ConversationFromChat(c)
			}
			outputJSON(out)
			return nil
		}
		if len(convs) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, c := range convs {
			fmt.Printf("%-36s %-30s %4d unread  %s\n",
				c.ID, others(c, env.Config.UserID), c.UnreadCount, lastActivity(c))
		}
		return nil
	},
}

func others(c chat.Conversation, self string) string {
	var names []string
	for _, p := range c.Participants {
		if p.ID != self {
			names = append(names, p.ID)
		}
	}
	if len(names) == 0 {
		return "(you)"
	}
	return strings.Join(names, ", ")
}

func lastActivity(c chat.Conversation) string {
	if c.LastMessageAt.IsZero() {
		return "-"
	}
	return c.LastMessageAt.Local().Format("2006-01-02 15:04")
}
