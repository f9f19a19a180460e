package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/tui"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	conversation := flag.String("conversation", "", "open this conversation on start")
	to := flag.String("to", "", "open the direct conversation with this member on start")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	env, err := app.Load(app.Options{
		Profile:  *profileFlag,
		Program:  "chattui",
		FileOnly: true,
		Debug:    *debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = env.Logger.Sync() }()

	if env.Config.UserID == "" {
		fmt.Fprintln(os.Stderr, "error: user_id is not set in config.toml")
		os.Exit(1)
	}

	// The screen still starts when the server is down; polling picks up
	// once it answers.
	if !probeServer(env) {
		fmt.Fprintf(os.Stderr, "server %s not reachable, starting anyway...\n", env.Config.APIBaseURL)
		time.Sleep(time.Second)
	}

	a := tui.NewApp(env)
	if err := a.Run(chat.ResolveInput{ConversationID: *conversation, RecipientID: *to}); err != nil {
		env.Logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeServer checks the server health endpoint.
func probeServer(env *app.Env) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.Client().Health(ctx); err != nil {
		env.Logger.Warn("health probe failed", zap.Error(err))
		return false
	}
	return true
}
