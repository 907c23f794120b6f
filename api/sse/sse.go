package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/game/run"
	mw "github.com/kasuganosora/mathmon/server/middleware"
)

// AnnounceChannel carries operator announcements to every stream.
const AnnounceChannel = "announce"

const keepAliveEvery = 30 * time.Second

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	runs      *run.Manager
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler. runs may be nil, in which case no
// initial state is sent.
func NewHandler(pubsub cache.PubSub, runs *run.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, runs: runs, keepAlive: keepAliveEvery, logger: logger}
}

func writeEvent(c *gin.Context, event string, data []byte) {
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Writer.Flush()
}

// ServeSSE handles GET /sse?token=<jwt>, behind middleware.Auth. It streams
// the caller's battle events, one SSE event per engine event named after
// its type, plus announcements.
func (h *Handler) ServeSSE(c *gin.Context) {
	playerID := mw.GetPlayerID(c)

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, cache.BattleChannel(playerID), AnnounceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("player", playerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeEvent(c, "connected", []byte(`{}`))
	if h.runs != nil {
		if e, err := h.runs.Lookup(playerID); err == nil {
			if data, err := json.Marshal(battle.StateEvent{State: e.Snapshot().Redacted()}); err == nil {
				writeEvent(c, "state", data)
			}
		}
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			if msg.Channel == AnnounceChannel {
				writeEvent(c, "announce", []byte(msg.Payload))
				continue
			}
			var env run.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("sse bad envelope", zap.String("player", playerID), zap.Error(err))
				continue
			}
			writeEvent(c, env.Type, env.Data)

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// Announce publishes an announcement message to all SSE subscribers.
func (h *Handler) Announce(ctx context.Context, message string) error {
	data, err := json.Marshal(struct {
		Message string `json:"message"`
	}{message})
	if err != nil {
		return err
	}
	return h.pubsub.Publish(ctx, AnnounceChannel, string(data))
}
