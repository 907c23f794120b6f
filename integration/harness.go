package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/app"
	"github.com/kasuganosora/mathmon/server/config"
	dbadapter "github.com/kasuganosora/mathmon/server/db"
	"github.com/kasuganosora/mathmon/server/game/battle"
)

// TestServer wraps a real HTTP server built by app.New.
type TestServer struct {
	App    *app.App
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
	Sec    config.SecurityConfig
}

// TestConfig is the configuration integration servers run with: a private
// memory database, the in-process cache and fast battle pacing.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Mode: dbadapter.ModeMemory}
	cfg.Security.JWTSecret = "integration-test-secret"
	cfg.Security.RateLimitRPS = 1000
	cfg.Security.RateLimitBurst = 2000
	cfg.Server.AdminIPs = []string{"127.0.0.1"}
	cfg.Game.AttackMs = 5
	cfg.Game.StatusMs = 5
	cfg.Game.EnemyWindupMs = 5
	cfg.Game.EnemyHitMs = 5
	cfg.Game.TextMs = 5
	cfg.Game.KOMs = 5
	cfg.Game.JournalFlushMs = 20
	return cfg
}

// NewTestServer creates a fully wired server for integration testing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	return NewTestServerWithConfig(t, TestConfig())
}

// NewTestServerWithConfig is NewTestServer with a caller-tuned config.
func NewTestServerWithConfig(t *testing.T, cfg *config.Config) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err, "app.New")

	server := httptest.NewServer(a.Router)
	ts := &TestServer{
		App:    a,
		Server: server,
		URL:    server.URL,
		WSURL:  "ws" + server.URL[len("http"):] + "/ws",
		Sec:    cfg.Security,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the test server and all game systems.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.App.Close(ctx)
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body and Bearer token.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, token)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Guest mints a guest player and returns its token and player id.
func (ts *TestServer) Guest(t *testing.T) (token, playerID string) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/guest", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token    string `json:"token"`
		PlayerID string `json:"player_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.PlayerID
}

// Login logs in (auto-registers on first call) and returns the token and
// player id.
func (ts *TestServer) Login(t *testing.T, username, password string) (token, playerID string) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token    string `json:"token"`
		PlayerID string `json:"player_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.PlayerID
}

// AnswerIndex peeks at the server-side engine for the correct choice of the
// pending question.
func (ts *TestServer) AnswerIndex(t *testing.T, playerID string) int {
	t.Helper()
	e, err := ts.App.Runs.Lookup(playerID)
	require.NoError(t, err)
	s := e.Snapshot()
	require.NotNil(t, s.Question, "no pending question")
	return s.Question.AnswerIndex()
}

// WaitPhase polls the engine until it reaches one of phases.
func (ts *TestServer) WaitPhase(t *testing.T, playerID string, phases ...battle.Phase) battle.State {
	t.Helper()
	var last battle.State
	require.Eventually(t, func() bool {
		e, err := ts.App.Runs.Lookup(playerID)
		if err != nil {
			return false
		}
		last = e.Snapshot()
		for _, p := range phases {
			if last.Phase == p {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond, "waiting for phase %v", phases)
	return last
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop keeps read deadlines off the connection.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
	// packets read while waiting for something else
	pending []Packet
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the test server's WS endpoint with the given JWT token.
func (ts *TestServer) ConnectWS(t *testing.T, token string) *WSClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	t.Cleanup(wc.Close)
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Packet is a decoded server packet.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (p Packet) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(p.Payload, v), "payload: %s", string(p.Payload))
}

// Send writes a packet with the next sequence number.
func (wc *WSClient) Send(msgType string, payload any) {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	raw, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	data, err := json.Marshal(Packet{Seq: seq, Type: msgType, Payload: raw})
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// RecvAny reads one packet, returning an error on timeout or read failure.
func (wc *WSClient) RecvAny(timeout time.Duration) (Packet, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return Packet{}, res.err
		}
		var pkt Packet
		err := json.Unmarshal(res.data, &pkt)
		return pkt, err
	case <-time.After(timeout):
		return Packet{}, fmt.Errorf("read timeout after %s", timeout)
	}
}

// RecvType reads packets until one with the given type arrives.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) Packet {
	wc.t.Helper()
	return wc.RecvMatch(timeout, func(p Packet) bool { return p.Type == msgType }, msgType)
}

// RecvEvent reads until a forwarded battle event of the given type arrives
// and returns its data.
func (wc *WSClient) RecvEvent(eventType string, timeout time.Duration) json.RawMessage {
	wc.t.Helper()
	var data json.RawMessage
	wc.RecvMatch(timeout, func(p Packet) bool {
		if p.Type != "battle_event" {
			return false
		}
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(p.Payload, &env) != nil || env.Type != eventType {
			return false
		}
		data = env.Data
		return true
	}, "battle_event/"+eventType)
	return data
}

// RecvMatch returns the first packet match accepts, looking at packets
// skipped by earlier calls before reading new ones.
func (wc *WSClient) RecvMatch(timeout time.Duration, match func(Packet) bool, what string) Packet {
	wc.t.Helper()
	for i, pkt := range wc.pending {
		if match(pkt) {
			wc.pending = append(wc.pending[:i], wc.pending[i+1:]...)
			return pkt
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			wc.t.Fatalf("timed out waiting for %s", what)
		}
		pkt, err := wc.RecvAny(remaining)
		if err != nil {
			wc.t.Fatalf("WS recv failed while waiting for %s: %v", what, err)
		}
		if match(pkt) {
			return pkt
		}
		wc.pending = append(wc.pending, pkt)
	}
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

var testCounter uint64

// UniqueID returns a short unique string suitable for usernames.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
