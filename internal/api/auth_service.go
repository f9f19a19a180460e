package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

// AuthService hands out tokens on development servers. There is no
// password: whoever reaches the endpoint may act as any member.
type AuthService struct {
	issuer *auth.Issuer
	logger *zap.Logger
}

func NewAuthService(iss *auth.Issuer, logger *zap.Logger) *AuthService {
	return &AuthService{issuer: iss, logger: logger}
}

func (s *AuthService) IssueToken(c *gin.Context) {
	var req wire.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	tok, exp, err := s.issuer.Issue(req.UserID, "member")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("token issued", zap.String("member", req.UserID))
	ok(c, http.StatusOK, wire.TokenResponse{Token: tok, ExpiresAt: exp})
}
