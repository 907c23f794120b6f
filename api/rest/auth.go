package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/config"
	mw "github.com/kasuganosora/mathmon/server/middleware"
	"github.com/kasuganosora/mathmon/server/model"
)

var bcryptCost = bcrypt.DefaultCost

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. db may be nil, which disables
// account login; guests still work.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{db: db, cache: c, sec: sec, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// issue signs a token for playerID and records its session.
func (h *AuthHandler) issue(c *gin.Context, playerID string, guest bool) (string, bool) {
	token, err := mw.GenerateToken(playerID, guest, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		h.logger.Error("sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return "", false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), playerID, h.sec.JWTTTLH); err != nil {
		h.logger.Error("store session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return "", false
	}
	return token, true
}

// Guest handles POST /api/auth/guest. Every call mints a fresh player.
func (h *AuthHandler) Guest(c *gin.Context) {
	playerID := "guest-" + uuid.NewString()
	token, ok := h.issue(c, playerID, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "player_id": playerID, "guest": true})
}

// Login handles POST /api/auth/login.
// Auto-registers on first login if the username does not exist.
func (h *AuthHandler) Login(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "accounts disabled"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		acc = model.Account{
			PlayerID:     uuid.NewString(),
			Username:     req.Username,
			PasswordHash: string(hash),
			Status:       model.AccountNormal,
		}
		if err := h.db.Create(&acc).Error; err != nil {
			// another request registered the same name first
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			}
			return
		}
		h.logger.Info("account registered", zap.String("player", acc.PlayerID))
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	default:
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if acc.Banned() {
			c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
			return
		}
	}

	token, ok := h.issue(c, acc.PlayerID, false)
	if !ok {
		return
	}

	// best-effort
	_ = h.db.Model(&acc).Updates(map[string]any{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	}).Error

	c.JSON(http.StatusOK, gin.H{"token": token, "player_id": acc.PlayerID})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.GetToken(c)))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	_ = h.cache.Del(ctx, mw.SessionKey(mw.GetToken(c)))
	cancel()

	token, ok := h.issue(c, mw.GetPlayerID(c), mw.IsGuest(c))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
