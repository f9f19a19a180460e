package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxMemberID   = "member_id"
	ctxMemberType = "member_type"
)

// Middleware rejects requests without a valid bearer token. Browsers cannot
// set headers on websocket upgrades, so a token query parameter is accepted
// as well.
func Middleware(iss *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c.GetHeader("Authorization"))
		if tok == "" {
			tok = c.Query("token")
		}
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := iss.Verify(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxMemberID, claims.Subject)
		c.Set(ctxMemberType, claims.MemberType)
		c.Next()
	}
}

// MemberID returns the authenticated member of the request.
func MemberID(c *gin.Context) string {
	return c.GetString(ctxMemberID)
}

func MemberType(c *gin.Context) string {
	return c.GetString(ctxMemberType)
}

func bearer(h string) string {
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
