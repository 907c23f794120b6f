package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/mathmon/server/config"
	"github.com/kasuganosora/mathmon/server/game/player"
	"github.com/kasuganosora/mathmon/server/game/run"
	mw "github.com/kasuganosora/mathmon/server/middleware"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type wsFixture struct {
	srv   *httptest.Server
	runs  *run.Manager
	sm    *player.SessionManager
	token string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	c, ps := testutil.SetupTestCache(t)
	sec := testutil.Security()
	logger := testutil.Logger(t)

	runs := run.NewManager(run.Options{
		Resources: resource.MustLoadDefault(),
		PubSub:    ps,
		Game:      config.GameConfig{},
		Logger:    logger,
	})
	t.Cleanup(runs.Close)

	router := NewRouter(logger)
	NewBattleHandlers(runs, logger).RegisterHandlers(router)
	sm := player.NewSessionManager(logger)
	h := NewHandler(c, ps, sec, sm, router, logger)

	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	token, err := mw.GenerateToken("p1", false, sec.JWTSecret, sec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), mw.SessionKey(token), "p1", time.Hour))

	return &wsFixture{srv: srv, runs: runs, sm: sm, token: token}
}

func (f *wsFixture) url(token string) string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + token
}

func send(t *testing.T, conn *websocket.Conn, seq uint64, typ string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, makePacket(t, seq, typ, payload)))
}

// readUntil reads packets until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) player.Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var pkt player.Packet
		require.NoError(t, json.Unmarshal(raw, &pkt))
		if pkt.Type == typ {
			return pkt
		}
	}
}

func TestServeWS_Unauthorized(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(f.url("garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_StartAndEvents(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.sm.IsOnline("p1") }, 2*time.Second, 5*time.Millisecond)

	send(t, conn, 1, "start", map[string]any{"starter_id": "ember", "seed": 7})
	pkt := readUntil(t, conn, "result")
	var res Result
	require.NoError(t, json.Unmarshal(pkt.Payload, &res))
	assert.Equal(t, Result{Action: "start", OK: true}, res)

	ev := readUntil(t, conn, BattleEventType)
	var env run.Envelope
	require.NoError(t, json.Unmarshal(ev.Payload, &env))
	assert.NotEmpty(t, env.Type)

	send(t, conn, 2, "snapshot", nil)
	pkt = readUntil(t, conn, "snapshot")
	assert.Contains(t, string(pkt.Payload), `"starter_id":"ember"`)

	send(t, conn, 3, "select_move", map[string]any{"index": 0})
	pkt = readUntil(t, conn, "result")
	require.NoError(t, json.Unmarshal(pkt.Payload, &res))
	assert.Equal(t, "select_move", res.Action)
}

func TestServeWS_ErrorsReported(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.token), nil)
	require.NoError(t, err)
	defer conn.Close()

	// no run yet
	send(t, conn, 1, "advance", nil)
	pkt := readUntil(t, conn, "error")
	assert.Contains(t, string(pkt.Payload), run.ErrNoRun.Error())

	send(t, conn, 2, "answer", map[string]any{})
	pkt = readUntil(t, conn, "error")
	assert.Contains(t, string(pkt.Payload), errBadPayload.Error())
}

func TestServeWS_DisconnectKeepsEngine(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.token), nil)
	require.NoError(t, err)

	send(t, conn, 1, "start", map[string]any{"starter_id": "ember"})
	readUntil(t, conn, "result")
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return !f.sm.IsOnline("p1") }, 2*time.Second, 5*time.Millisecond)
	_, err = f.runs.Lookup("p1")
	assert.NoError(t, err)
}

func TestServeWS_HelloFirst(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var pkt player.Packet
	require.NoError(t, json.Unmarshal(raw, &pkt))
	require.Equal(t, HelloType, pkt.Type)

	var hello Hello
	require.NoError(t, json.Unmarshal(pkt.Payload, &hello))
	assert.Equal(t, "p1", hello.PlayerID)
	assert.False(t, hello.Guest)
	assert.Contains(t, hello.Accepts, "answer")
	assert.Contains(t, hello.Accepts, "use_item")
}

func TestServeWS_OversizedFrameDrops(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.token), nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, HelloType)

	big := strings.Repeat("x", maxFrameBytes+1)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))
	require.Eventually(t, func() bool { return !f.sm.IsOnline("p1") }, 2*time.Second, 5*time.Millisecond)
}
