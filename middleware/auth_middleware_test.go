package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/config"
)

var testSec = config.SecurityConfig{JWTSecret: "secret", JWTTTLH: time.Hour}

func setupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(config.CacheConfig{})
	require.NoError(t, err)
	return c
}

func login(t *testing.T, c cache.Cache, playerID string, guest bool) string {
	t.Helper()
	token, err := GenerateToken(playerID, guest, testSec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(token), playerID, time.Hour))
	return token
}

func newProtectedRouter(c cache.Cache) *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.GET("/protected", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, GetPlayerID(ctx))
	})
	return r
}

func TestAuth_MissingToken(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing token")
}

func TestAuth_NoBearer(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer notavalidtoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestAuth_SessionExpired(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))

	// valid JWT, no session in the cache
	token, err := GenerateToken("p42", false, testSec.JWTSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session expired")
}

func TestAuth_ValidBearer(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(c)
	token := login(t, c, "p42", false)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p42", w.Body.String())
}

func TestAuth_QueryToken(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(c)
	token := login(t, c, "p7", true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p7", w.Body.String())
}

func TestAuth_SetsContext(t *testing.T) {
	c := setupTestCache(t)
	token := login(t, c, "guest-1", true)

	var gotID, gotToken string
	var gotGuest bool
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.GET("/me", func(ctx *gin.Context) {
		gotID, gotGuest, gotToken = GetPlayerID(ctx), IsGuest(ctx), GetToken(ctx)
		ctx.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest-1", gotID)
	assert.True(t, gotGuest)
	assert.Equal(t, token, gotToken)
}

func TestAuthenticate(t *testing.T) {
	c := setupTestCache(t)
	_, err := Authenticate(context.Background(), testSec, c, "")
	assert.ErrorIs(t, err, ErrMissingToken)

	token := login(t, c, "p1", false)
	claims, err := Authenticate(context.Background(), testSec, c, token)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.PlayerID)

	require.NoError(t, c.Del(context.Background(), SessionKey(token)))
	_, err = Authenticate(context.Background(), testSec, c, token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestGetPlayerID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetPlayerID(c))
	assert.False(t, IsGuest(c))
}

func TestRecovery_CatchesPanic(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(zap.New(core)))
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
}

func TestRecovery_NoPanic_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ping", "/bad", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/fail", entries[2].ContextMap()["path"])
}
