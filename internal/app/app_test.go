package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

func TestChatConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.UserID = "alice"
	cfg.PollInterval = config.Duration{Duration: 7 * time.Second}
	cfg.MaxReconnectAttempts = 2

	cc := New("main", cfg, zap.NewNop()).ChatConfig()
	if cc.SelfID != "alice" || cc.PollInterval != 7*time.Second || cc.MaxReconnectAttempts != 2 || cc.PageSize != 50 {
		t.Errorf("chat config = %+v", cc)
	}
}

func TestPushDisabledWithoutURL(t *testing.T) {
	cfg := config.Default()
	cfg.PushURL = ""
	env := New("main", cfg, zap.NewNop())
	if env.Push() != nil {
		t.Error("Push() should be nil without push_url")
	}
	if env.Deps().Push != nil {
		t.Error("Deps().Push should be nil without push_url")
	}

	cfg.PushURL = "ws://127.0.0.1:1/api/ws"
	if New("main", cfg, zap.NewNop()).Push() == nil {
		t.Error("Push() nil with push_url set")
	}
}

func TestDevTokenIsCachedUntilExpiry(t *testing.T) {
	var issued atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case wire.PathToken:
			n := issued.Add(1)
			_ = json.NewEncoder(w).Encode(wire.TokenResponse{
				Token:     "tok" + string(rune('0'+n)),
				ExpiresAt: time.Now().Add(time.Hour),
			})
		case wire.PathConversations:
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(wire.ConversationsResponse{})
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	cfg.UserID = "alice"
	env := New("main", cfg, zap.NewNop())
	ctx := context.Background()

	for range 3 {
		if _, err := env.Client().ListConversations(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := issued.Load(); got != 1 {
		t.Errorf("issued %d tokens, want 1", got)
	}

	// A token about to expire is replaced.
	env.tokens.(*devToken).expires = time.Now()
	if _, err := env.Client().ListConversations(ctx); err != nil {
		t.Fatal(err)
	}
	if got := issued.Load(); got != 2 {
		t.Errorf("issued %d tokens, want 2", got)
	}
}

func TestStaticTokenWins(t *testing.T) {
	cfg := config.Default()
	cfg.UserID = "alice"
	cfg.Token = "fixed"
	env := New("main", cfg, zap.NewNop())
	tok, err := env.tokens.Token(context.Background())
	if err != nil || tok != "fixed" {
		t.Errorf("token = %q, %v", tok, err)
	}
}
