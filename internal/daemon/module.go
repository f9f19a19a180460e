package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved server configuration passed to the fx module.
type Params struct {
	Profile string
	Addr    string
	// DataDir overrides the profile directory; used by tests.
	DataDir       string
	JWTSecret     string
	TokenTTL      time.Duration
	SendPerMinute int
	SendBurst     int
	// DevTokens mounts the password-less token endpoint.
	DevTokens bool
}

func (p Params) dir() string {
	if p.DataDir != "" {
		return p.DataDir
	}
	return profile.Dir(p.Profile)
}

func (p Params) dbPath() string {
	if p.DataDir != "" {
		return filepath.Join(p.DataDir, "chatd.db")
	}
	return profile.DBPath(p.Profile)
}

func (p Params) logPath() string {
	if p.DataDir != "" {
		return filepath.Join(p.DataDir, "logs", "chatd.log")
	}
	return profile.LogPath(p.Profile, "chatd")
}

// Module returns the fx module for the server, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("chatd",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideIssuer,
			provideLimiter,
			api.NewHub,
			api.NewConversationService,
			api.NewMessageService,
			api.NewInsertStream,
			provideAuthService,
			provideServices,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(p.logPath(), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := os.MkdirAll(p.dir(), 0700); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(p.dir())
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("path", l.Path()))
	return l, nil
}

// provideStore depends on the lock so two servers never share a database.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.dbPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideIssuer(p Params) (*auth.Issuer, error) {
	if p.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return auth.NewIssuer(p.JWTSecret, p.TokenTTL), nil
}

func provideLimiter(p Params) *api.Limiter {
	burst := p.SendBurst
	if burst <= 0 {
		burst = 10
	}
	return api.NewLimiter(p.SendPerMinute, burst, time.Minute)
}

func provideAuthService(p Params, iss *auth.Issuer, logger *zap.Logger) *api.AuthService {
	if !p.DevTokens {
		return nil
	}
	logger.Warn("development token endpoint enabled")
	return api.NewAuthService(iss, logger)
}

func provideServices(
	iss *auth.Issuer,
	authSvc *api.AuthService,
	convs *api.ConversationService,
	msgs *api.MessageService,
	inserts *api.InsertStream,
	limiter *api.Limiter,
	logger *zap.Logger,
) api.Services {
	return api.Services{
		Issuer:        iss,
		Auth:          authSvc,
		Conversations: convs,
		Messages:      msgs,
		Inserts:       inserts,
		SendLimiter:   limiter,
		Logger:        logger,
	}
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, hub *api.Hub, limiter *api.Limiter, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	hubCtx, stopHub := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go hub.Run(hubCtx)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			stopHub()
			limiter.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("server stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
