package rest

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/config"
	"github.com/kasuganosora/mathmon/server/game/player"
	"github.com/kasuganosora/mathmon/server/game/run"
	"github.com/kasuganosora/mathmon/server/journal"
	mw "github.com/kasuganosora/mathmon/server/middleware"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/store"
)

// Deps is everything the REST handlers need. DB, Journal and Sessions may
// be nil.
type Deps struct {
	DB        *gorm.DB
	Cache     cache.Cache
	Security  config.SecurityConfig
	AdminIPs  []string
	Runs      *run.Manager
	Store     *store.Store
	Resources *resource.ResourceLoader
	Sessions  *player.SessionManager
	Journal   *journal.Service
	Logger    *zap.Logger
}

// Register mounts the /api routes on r.
func Register(r gin.IRouter, d Deps) {
	authH := NewAuthHandler(d.DB, d.Cache, d.Security, d.Logger)
	battleH := NewBattleHandler(d.Runs, d.Resources, d.Logger)
	recordsH := NewRecordsHandler(d.Store, d.Resources, d.Logger)
	healthH := NewHealthHandler(d.DB, d.Runs)
	auth := mw.Auth(d.Security, d.Cache)

	api := r.Group("/api")
	api.GET("/health", healthH.Health)
	api.GET("/starters", battleH.Starters)

	authG := api.Group("/auth")
	authG.POST("/guest", authH.Guest)
	authG.POST("/login", authH.Login)
	authG.POST("/logout", auth, authH.Logout)
	authG.POST("/refresh", auth, authH.Refresh)

	battles := api.Group("/battles", auth)
	battles.POST("", battleH.Start)
	battles.POST("/resume", battleH.Resume)
	battles.GET("/current", battleH.Current)
	battles.POST("/current/select", battleH.Select)
	battles.POST("/current/answer", battleH.Answer)
	battles.POST("/current/advance", battleH.Advance)
	battles.POST("/current/quit", battleH.Quit)
	battles.POST("/current/pause", battleH.Pause)
	battles.POST("/current/item", battleH.Item)

	me := api.Group("", auth)
	me.GET("/achievements", recordsH.Achievements)
	me.GET("/encyclopedia", recordsH.Encyclopedia)
	me.GET("/sessions", recordsH.Sessions)
	me.GET("/inventory", recordsH.Inventory)
	me.GET("/leaderboard/tower", recordsH.Tower)

	if len(d.AdminIPs) == 0 {
		return
	}
	adminH := NewAdminHandler(d.Runs, d.Sessions, d.Journal, d.Logger)
	admin := api.Group("/admin", mw.IPWhitelist(d.AdminIPs))
	admin.GET("/runs", adminH.Runs)
	admin.DELETE("/runs/:player", adminH.DropRun)
	admin.POST("/journal/prune", adminH.PruneJournal)
}
