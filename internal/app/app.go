// Package app wires the chat engine to a configured server for the client
// programs.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/remote"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Env is everything a client program needs to open conversations.
type Env struct {
	Profile string
	Config  *config.Config
	Logger  *zap.Logger
	Bus     *bus.Bus

	tokens remote.TokenSource
	client *remote.Client
}

// Options selects the profile and how the program logs.
type Options struct {
	Profile string
	Program string
	// FileOnly keeps log output off the terminal.
	FileOnly bool
	Debug    bool
}

// Load resolves the profile, reads the config file and builds the logger.
func Load(opts Options) (*Env, error) {
	name := profile.Resolve(opts.Profile)
	if err := profile.ValidateName(name); err != nil {
		return nil, err
	}
	if err := profile.EnsureDir(name); err != nil {
		return nil, fmt.Errorf("profile dir: %w", err)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var logger *zap.Logger
	logPath := profile.LogPath(name, opts.Program)
	if opts.FileOnly {
		level := zapcore.InfoLevel
		if opts.Debug {
			level = zapcore.DebugLevel
		}
		logger, err = logging.NewFile(logPath, name, level)
	} else {
		logger, err = logging.New(logPath, name)
	}
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	return New(name, cfg, logger), nil
}

// New builds an Env from an already loaded config.
func New(profileName string, cfg *config.Config, logger *zap.Logger) *Env {
	e := &Env{
		Profile: profileName,
		Config:  cfg,
		Logger:  logger,
		Bus:     bus.New(),
	}
	if cfg.Token != "" {
		e.tokens = remote.StaticToken(cfg.Token)
	} else if cfg.UserID != "" {
		e.tokens = &devToken{
			client: remote.New(cfg.APIBaseURL, nil, remote.WithLogger(logger)),
			userID: cfg.UserID,
		}
	}
	e.client = remote.New(cfg.APIBaseURL, e.tokens,
		remote.WithTimeout(cfg.SendTimeout.Duration+cfg.HistoryTimeout.Duration),
		remote.WithLogger(logger.Named("remote")))
	return e
}

// Client is the HTTP client of the configured server.
func (e *Env) Client() *remote.Client {
	return e.client
}

// Push returns the websocket push factory, or nil when push_url is unset so
// sessions fall back to polling.
func (e *Env) Push() chat.PushFactory {
	if e.Config.PushURL == "" {
		return nil
	}
	return remote.NewInsertSubscriber(e.Config.PushURL, e.tokens,
		remote.WithSubscriberLogger(e.Logger.Named("push")))
}

// ChatConfig maps the config file onto engine tunables.
func (e *Env) ChatConfig() chat.Config {
	c := e.Config
	return chat.Config{
		SelfID:               c.UserID,
		PageSize:             c.HistoryPageSize,
		PollInterval:         c.PollInterval.Duration,
		PollTimeout:          c.PollTimeout.Duration,
		SendTimeout:          c.SendTimeout.Duration,
		HistoryTimeout:       c.HistoryTimeout.Duration,
		ReconnectDelay:       c.ReconnectDelay.Duration,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
	}
}

// Deps returns the collaborators of a chat session.
func (e *Env) Deps() chat.Deps {
	return chat.Deps{
		Directory:  e.client,
		Source:     e.client,
		Sender:     e.client,
		ReadMarker: e.client,
		Push:       e.Push(),
		Bus:        e.Bus,
		Logger:     e.Logger,
	}
}

// Open opens a conversation with the configured collaborators.
func (e *Env) Open(ctx context.Context, in chat.ResolveInput) (*chat.Session, error) {
	return chat.Open(ctx, e.ChatConfig(), e.Deps(), in)
}

// devToken asks a development server for a token on first use and again
// shortly before it expires.
type devToken struct {
	client *remote.Client
	userID string

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (d *devToken) Token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.token != "" && time.Until(d.expires) > time.Minute {
		return d.token, nil
	}
	resp, err := d.client.IssueToken(ctx, d.userID)
	if err != nil {
		return "", err
	}
	d.token, d.expires = resp.Token, resp.ExpiresAt
	return d.token, nil
}
