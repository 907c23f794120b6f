package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/config"
)

const (
	PlayerIDKey = "player_id"
	GuestKey    = "guest"
	TokenKey    = "token"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session expired")
)

// SessionKey is the cache key marking a token as logged in.
func SessionKey(token string) string { return "session:" + token }

// TokenFromRequest reads a Bearer header, falling back to the token query
// parameter used by WebSocket and SSE clients.
func TokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// Authenticate validates token and checks that its session is still live.
func Authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, SessionKey(token))
	if err != nil || !exists {
		return nil, ErrSessionExpired
	}
	return claims, nil
}

// Auth validates the JWT token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := TokenFromRequest(ctx)
		claims, err := Authenticate(ctx.Request.Context(), sec, c, token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		ctx.Set(PlayerIDKey, claims.PlayerID)
		ctx.Set(GuestKey, claims.Guest)
		ctx.Set(TokenKey, token)
		ctx.Next()
	}
}

// GetPlayerID retrieves the authenticated player id from the Gin context.
func GetPlayerID(c *gin.Context) string {
	return c.GetString(PlayerIDKey)
}

// IsGuest reports whether the authenticated player holds a guest token.
func IsGuest(c *gin.Context) bool {
	return c.GetBool(GuestKey)
}

// GetToken returns the raw token of the authenticated request.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
