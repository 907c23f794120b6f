// Package app wires the server together. main and the integration tests
// build the same graph through New.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	apirest "github.com/kasuganosora/mathmon/server/api/rest"
	"github.com/kasuganosora/mathmon/server/api/sse"
	apows "github.com/kasuganosora/mathmon/server/api/ws"
	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/cache/local"
	"github.com/kasuganosora/mathmon/server/config"
	dbadapter "github.com/kasuganosora/mathmon/server/db"
	"github.com/kasuganosora/mathmon/server/game/player"
	"github.com/kasuganosora/mathmon/server/game/run"
	"github.com/kasuganosora/mathmon/server/i18n"
	"github.com/kasuganosora/mathmon/server/journal"
	mw "github.com/kasuganosora/mathmon/server/middleware"
	"github.com/kasuganosora/mathmon/server/model"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/scheduler"
	"github.com/kasuganosora/mathmon/server/store"
)

// SessionSweepJob closes WebSocket sessions that went quiet.
const SessionSweepJob = "session.sweep"

// App holds every long-lived component.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *gorm.DB
	Cache     cache.Cache
	PubSub    cache.PubSub
	Journal   *journal.Service
	Store     *store.Store
	Resources *resource.ResourceLoader
	Runs      *run.Manager
	Sessions  *player.SessionManager
	Scheduler *scheduler.Scheduler
	SSE       *sse.Handler
	Router    *gin.Engine
}

// New opens storage, loads game data and builds the HTTP router.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if _, err := mw.ParseAllowList(cfg.Server.AdminIPs); err != nil {
		return nil, fmt.Errorf("server.admin_ips: %w", err)
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		_ = dbadapter.Close(db)
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	a.DB = db
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	if a.Cache, a.PubSub, err = cache.Open(cfg.Cache); err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("cache: %w", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Game data ----
	if cfg.Data.Dir == "" {
		a.Resources = resource.MustLoadDefault()
	} else {
		a.Resources = resource.NewLoader(cfg.Data.Dir)
		if err := a.Resources.Load(); err != nil {
			a.Close(context.Background())
			return nil, fmt.Errorf("game data: %w", err)
		}
	}
	logger.Info("game data loaded",
		zap.Int("starters", len(a.Resources.Starters)),
		zap.Int("enemies", len(a.Resources.Enemies)))

	bundle, err := i18n.Load()
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("i18n: %w", err)
	}

	// ---- Persistence ----
	a.Journal = journal.New(db, journal.Options{
		Batch:      cfg.Game.JournalBatch,
		FlushEvery: time.Duration(cfg.Game.JournalFlushMs) * time.Millisecond,
	}, logger.Named("journal"))
	a.Store = store.New(a.Cache, store.Options{
		DB:          db,
		Journal:     a.Journal,
		SessionKeep: cfg.Game.SessionKeep,
		Logger:      logger,
	})

	// ---- Runs ----
	a.Sessions = player.NewSessionManager(logger)
	a.Runs = run.NewManager(run.Options{
		Resources:  a.Resources,
		Repos:      a.Store.Repositories(),
		Translator: bundle.Catalog(cfg.Game.Locale),
		PubSub:     a.PubSub,
		Game:       cfg.Game,
		Logger:     logger,
		OnEvict: func(playerID string) {
			if err := a.Store.Evict(playerID); err != nil {
				logger.Warn("evict player cache", zap.String("player", playerID), zap.Error(err))
			}
		},
	})

	// ---- Scheduler ----
	a.Scheduler = scheduler.New(logger)
	a.Runs.Schedule(a.Scheduler)
	if idle := cfg.Game.IdleTimeout(); idle > 0 {
		a.Scheduler.AddTicker(SessionSweepJob, max(idle/4, time.Second), func() {
			a.sweepSessions(idle)
		})
	}

	a.Router = a.routes()
	return a, nil
}

// sweepSessions closes connections idle for longer than idle. Their engines
// stay until the run reaper takes them.
func (a *App) sweepSessions(idle time.Duration) {
	for _, s := range a.Sessions.All() {
		if s.Idle() > idle {
			a.Logger.Info("closing idle session", zap.String("player", s.PlayerID))
			s.Close()
			a.Sessions.Unregister(s)
		}
	}
}

func (a *App) routes() *gin.Engine {
	cfg := a.Config
	logger := a.Logger

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	if len(cfg.Server.AdminIPs) == 0 {
		logger.Warn("server.admin_ips is not set; admin endpoints are disabled")
	}
	apirest.Register(r, apirest.Deps{
		DB:        a.DB,
		Cache:     a.Cache,
		Security:  cfg.Security,
		AdminIPs:  cfg.Server.AdminIPs,
		Runs:      a.Runs,
		Store:     a.Store,
		Resources: a.Resources,
		Sessions:  a.Sessions,
		Journal:   a.Journal,
		Logger:    logger,
	})

	// ---- WebSocket ----
	wsRouter := apows.NewRouter(logger)
	apows.NewBattleHandlers(a.Runs, logger).RegisterHandlers(wsRouter)
	wsH := apows.NewHandler(a.Cache, a.PubSub, cfg.Security, a.Sessions, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE ----
	a.SSE = sse.NewHandler(a.PubSub, a.Runs, logger)
	r.GET("/sse", mw.Auth(cfg.Security, a.Cache), a.SSE.ServeSSE)

	return r
}

// Close stops background work and releases storage. It tolerates a
// partially built App.
func (a *App) Close(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Sessions != nil {
		a.Sessions.CloseAllSessions(2 * time.Second)
	}
	if a.Runs != nil {
		a.Runs.Close()
	}
	if a.Journal != nil {
		a.Journal.Stop(ctx)
	}
	switch c := a.Cache.(type) {
	case *local.LocalCache:
		c.Close()
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			a.Logger.Warn("cache close", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := dbadapter.Close(a.DB); err != nil {
			a.Logger.Warn("db close", zap.Error(err))
		}
	}
}
