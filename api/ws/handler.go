package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/config"
	"github.com/kasuganosora/mathmon/server/game/player"
	mw "github.com/kasuganosora/mathmon/server/middleware"
)

// Server packet types besides handler replies.
const (
	// BattleEventType carries a run.Envelope.
	BattleEventType = "battle_event"
	HelloType       = "hello"
)

// maxFrameBytes caps client frames; every client packet is a small command.
const maxFrameBytes = 8 << 10

// Hello is the first packet on every connection.
type Hello struct {
	PlayerID string   `json:"player_id"`
	Guest    bool     `json:"guest"`
	Accepts  []string `json:"accepts"`
}

// Handler serves GET /ws. A connection is a view onto the player's run:
// closing it leaves the engine to the run manager.
type Handler struct {
	cache    cache.Cache
	pubsub   cache.PubSub
	sec      config.SecurityConfig
	sm       *player.SessionManager
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the endpoint. An empty sec.AllowedOrigins accepts any
// Origin.
func NewHandler(
	c cache.Cache,
	ps cache.PubSub,
	sec config.SecurityConfig,
	sm *player.SessionManager,
	router *Router,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := sec.AllowedOrigins
	return &Handler{
		cache:  c,
		pubsub: ps,
		sec:    sec,
		sm:     sm,
		router: router,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return len(origins) == 0 || slices.Contains(origins, r.Header.Get("Origin"))
			},
		},
	}
}

// ServeWS authenticates ?token=, subscribes to the player's battle channel
// and only then upgrades, so a subscription failure is still an HTTP error.
func (h *Handler) ServeWS(c *gin.Context) {
	claims, err := mw.Authenticate(c.Request.Context(), h.sec, h.cache, mw.TokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, unsub, err := h.pubsub.Subscribe(subCtx, cache.BattleChannel(claims.PlayerID))
	if err != nil {
		h.logger.Error("battle subscribe failed", zap.String("player", claims.PlayerID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	defer unsub()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.String("player", claims.PlayerID), zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	s := player.NewPlayerSession(claims.PlayerID, claims.Guest, conn, h.logger)
	h.sm.Register(s)
	s.SendJSON(HelloType, Hello{PlayerID: s.PlayerID, Guest: s.Guest, Accepts: h.router.Types()})

	go h.relay(s, events)
	h.readPump(s)
}

// relay copies battle events into the session's send queue.
func (h *Handler) relay(s *player.PlayerSession, events <-chan *cache.Message) {
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			s.Send(&player.Packet{Type: BattleEventType, Payload: json.RawMessage(msg.Payload)})
		case <-s.Done:
			return
		}
	}
}

// readPump dispatches frames in arrival order until the socket fails.
func (h *Handler) readPump(s *player.PlayerSession) {
	defer func() {
		s.Close()
		h.sm.Unregister(s)
		h.logger.Info("player disconnected", zap.String("player", s.PlayerID))
	}()

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})
	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws closed", zap.String("player", s.PlayerID), zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}
