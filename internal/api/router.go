// Package api is the HTTP and websocket surface of the reference chat
// server.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

// Services groups the handlers mounted by NewRouter. Auth may be nil to
// disable token issuance.
type Services struct {
	Issuer        *auth.Issuer
	Auth          *AuthService
	Conversations *ConversationService
	Messages      *MessageService
	Inserts       *InsertStream
	SendLimiter   *Limiter
	Logger        *zap.Logger
}

// NewRouter mounts every route on a fresh gin engine.
func NewRouter(s Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(s.Logger))

	r.GET(wire.PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.Auth != nil {
		r.POST(wire.PathToken, s.Auth.IssueToken)
	}

	authed := r.Group("/api", auth.Middleware(s.Issuer))
	authed.GET("/conversations", s.Conversations.List)
	authed.GET("/conversations/:id/messages", s.Conversations.Messages)
	authed.POST("/conversations/:id/read", s.Conversations.MarkRead)
	if s.SendLimiter != nil {
		authed.POST("/messages", RateLimit(s.SendLimiter), s.Messages.Send)
	} else {
		authed.POST("/messages", s.Messages.Send)
	}
	authed.GET("/ws", s.Inserts.Serve)

	return r
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("member", auth.MemberID(c)),
			zap.Duration("took", time.Since(start)))
	}
}
