package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apows "github.com/kasuganosora/mathmon/server/api/ws"
	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/model"
)

const recvTimeout = 5 * time.Second

func expectResult(t *testing.T, ws *WSClient, action string, ok bool) {
	t.Helper()
	var res apows.Result
	ws.RecvType("result", recvTimeout).Decode(t, &res)
	assert.Equal(t, apows.Result{Action: action, OK: ok}, res)
}

func TestWSBattle_CorrectAnswerHitsEnemy(t *testing.T) {
	ts := NewTestServer(t)
	token, playerID := ts.Guest(t)
	ws := ts.ConnectWS(t, token)

	ws.Send("start", battle.StartOptions{StarterID: "ember", Seed: 7})
	expectResult(t, ws, "start", true)

	ws.Send("select_move", map[string]int{"index": 0})
	expectResult(t, ws, "select_move", true)

	ws.Send("answer", map[string]int{"choice": ts.AnswerIndex(t, playerID)})
	expectResult(t, ws, "answer", true)

	var dmg battle.DamageEvent
	require.NoError(t, json.Unmarshal(ws.RecvEvent("damage", recvTimeout), &dmg))
	assert.Equal(t, "enemy", dmg.Target)
	assert.Positive(t, dmg.Amount)

	// the turn settles without further input
	st := ts.WaitPhase(t, playerID, battle.PhaseMenu, battle.PhaseVictory)
	assert.Equal(t, 1, st.Streak)
}

func TestWSBattle_RejectedActionsAnswerFalse(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.Guest(t)
	ws := ts.ConnectWS(t, token)

	ws.Send("start", battle.StartOptions{StarterID: "sprout", Seed: 3})
	expectResult(t, ws, "start", true)

	// no question is pending yet
	ws.Send("answer", map[string]int{"choice": 0})
	expectResult(t, ws, "answer", false)

	ws.Send("pause", nil)
	expectResult(t, ws, "pause", true)
	ws.Send("select_move", map[string]int{"index": 0})
	expectResult(t, ws, "select_move", false)
}

func TestRESTAndWSShareEngine(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.Guest(t)

	resp := ts.PostJSON(t, "/api/battles", map[string]any{"starter_id": "ripple", "seed": 5}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	ws := ts.ConnectWS(t, token)
	ws.Send("snapshot", nil)
	var snap apows.Snapshot
	ws.RecvType("snapshot", recvTimeout).Decode(t, &snap)
	assert.Equal(t, "ripple", snap.State.StarterID)
	assert.Equal(t, battle.ScreenBattle, snap.State.Screen)
	assert.True(t, snap.HasSave)
}

func TestResumeAfterEviction(t *testing.T) {
	ts := NewTestServer(t)
	token, playerID := ts.Guest(t)

	resp := ts.PostJSON(t, "/api/battles", map[string]any{"starter_id": "volt", "seed": 9}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	require.True(t, ts.App.Runs.Remove(playerID))
	require.NoError(t, ts.App.Store.Evict(playerID))

	ws := ts.ConnectWS(t, token)
	ws.Send("resume", nil)
	expectResult(t, ws, "resume", true)

	ws.Send("snapshot", nil)
	var snap apows.Snapshot
	ws.RecvType("snapshot", recvTimeout).Decode(t, &snap)
	assert.Equal(t, "volt", snap.State.StarterID)
}

func TestQuitIsJournaled(t *testing.T) {
	ts := NewTestServer(t)
	token, playerID := ts.Guest(t)
	ws := ts.ConnectWS(t, token)

	ws.Send("start", battle.StartOptions{StarterID: "ember", Seed: 1})
	expectResult(t, ws, "start", true)
	ws.Send("quit", nil)
	expectResult(t, ws, "quit", true)
	ws.RecvEvent("run_end", recvTimeout)

	require.Eventually(t, func() bool {
		var n int64
		ts.App.DB.Model(&model.SessionLog{}).Where("player_id = ?", playerID).Count(&n)
		return n == 1
	}, recvTimeout, 10*time.Millisecond)

	resp := ts.Get(t, "/api/sessions", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Sessions []struct {
			StarterID string `json:"starter_id"`
		} `json:"sessions"`
	}
	ReadJSON(t, resp, &out)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, "ember", out.Sessions[0].StarterID)
}

func TestSSEStreamsBattleEvents(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.Guest(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 256)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	waitLine := func(prefix string) {
		t.Helper()
		deadline := time.After(recvTimeout)
		for {
			select {
			case l, ok := <-lines:
				require.True(t, ok, "stream closed before %q", prefix)
				if strings.HasPrefix(l, prefix) {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	waitLine("event: connected")

	resp2 := ts.PostJSON(t, "/api/battles", map[string]any{"starter_id": "ember"}, token)
	require.Equal(t, http.StatusCreated, resp2.StatusCode)
	resp2.Body.Close()

	waitLine("event: state")
}
