package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/wire"
	"github.com/spf13/cobra"
)

var (
	historyPage  int
	historyLimit int

	sendTo           string
	sendConversation string
)

var historyCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Print one page of a conversation, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = env.Logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		msgs, err := env.Client().GetMessages(ctx, args[0], chat.PageRequest{Page: historyPage, Limit: historyLimit})
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(toWire(msgs))
			return nil
		}
		for _, m := range msgs {
			printMessage(m)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send --to <member> | --conversation <id> <text>...",
	Short: "Send a message, creating the direct conversation if needed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (sendTo == "") == (sendConversation == "") {
			return errors.New("exactly one of --to or --conversation is required")
		}
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = env.Logger.Sync() }()

		s, err := env.Open(cmd.Context(), chat.ResolveInput{ConversationID: sendConversation, RecipientID: sendTo})
		if s == nil {
			return err
		}
		defer s.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}

		m, err := s.Send(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(wire.MessageFromChat(m))
			return nil
		}
		fmt.Printf("sent %s in %s\n", m.ID, m.ConversationID)
		return nil
	},
}

var tailCmd = &cobra.Command{
	Use:   "tail <conversation-id>",
	Short: "Follow a conversation until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = env.Logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := env.Open(ctx, chat.ResolveInput{ConversationID: args[0]})
		if s == nil {
			return err
		}
		defer s.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}

		changed := make(chan struct{}, 1)
		s.OnChange(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})

		seen := make(map[string]bool)
		flush := func() {
			for _, m := range s.Messages() {
				if m.Status != chat.StatusConfirmed || seen[m.ID] {
					continue
				}
				seen[m.ID] = true
				if jsonOutput {
					outputJSON(wire.MessageFromChat(m))
				} else {
					printMessage(m)
				}
			}
		}

		flush()
		fmt.Fprintf(os.Stderr, "following %s via %s, Ctrl-C to stop\n", args[0], s.TransportKind())
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				flush()
			}
		}
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "page number, 1 is the most recent")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "messages per page")

	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient member id")
	sendCmd.Flags().StringVar(&sendConversation, "conversation", "", "existing conversation id")
}

func printMessage(m chat.Message) {
	fmt.Printf("%s  %-20s %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"), m.SenderID, m.Body)
}

func toWire(msgs []chat.Message) []wire.Message {
	out := make([]wire.Message, len(msgs))
	for i, m := range msgs {
		out[i] = wire.MessageFromChat(m)
	}
	return out
}
