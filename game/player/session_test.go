package player

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *PlayerSession) Packet {
	t.Helper()
	select {
	case raw := <-s.SendChan:
		var pkt Packet
		require.NoError(t, json.Unmarshal(raw, &pkt))
		return pkt
	default:
		t.Fatal("no packet queued")
		return Packet{}
	}
}

func TestSession_SendJSON(t *testing.T) {
	s := NewDetachedSession("p1", nil)
	s.SendJSON("battle_event", map[string]int{"round": 2})

	pkt := drain(t, s)
	assert.Equal(t, "battle_event", pkt.Type)
	assert.JSONEq(t, `{"round":2}`, string(pkt.Payload))
}

func TestSession_SendAfterCloseDropped(t *testing.T) {
	s := NewDetachedSession("p1", nil)
	s.Close()
	s.Close()
	assert.True(t, s.IsClosed())
	s.SendJSON("x", nil)
	s.SendRaw([]byte("{}"))
	assert.Empty(t, s.SendChan)
}

func TestSession_FullChannelDrops(t *testing.T) {
	s := NewDetachedSession("p1", nil)
	for range sendChanBuf + 5 {
		s.SendRaw([]byte("{}"))
	}
	assert.Len(t, s.SendChan, sendChanBuf)
}

func TestSession_ErrorAndPong(t *testing.T) {
	s := NewDetachedSession("p1", nil)
	s.SendError("answer", "no run")
	pkt := drain(t, s)
	assert.Equal(t, "error", pkt.Type)
	assert.JSONEq(t, `{"type":"answer","message":"no run"}`, string(pkt.Payload))

	s.SendHeartbeatPong(99)
	pkt = drain(t, s)
	assert.Equal(t, "pong", pkt.Type)
	assert.Contains(t, string(pkt.Payload), `"client_ts":99`)
}

func TestSession_Idle(t *testing.T) {
	s := NewDetachedSession("p1", nil)
	s.lastInput = time.Now().Add(-time.Minute)
	assert.GreaterOrEqual(t, s.Idle(), time.Minute)
	s.Touch()
	assert.Less(t, s.Idle(), time.Minute)
}

func TestSessionManager_RegisterDisplacesOld(t *testing.T) {
	sm := NewSessionManager(nil)
	a := NewDetachedSession("p1", nil)
	b := NewDetachedSession("p1", nil)

	sm.Register(a)
	sm.Register(b)
	assert.True(t, a.IsClosed())
	assert.Same(t, b, sm.Get("p1"))

	// the displaced session's read loop must not remove the new one
	sm.Unregister(a)
	assert.True(t, sm.IsOnline("p1"))

	sm.Unregister(b)
	assert.False(t, sm.IsOnline("p1"))
	assert.Nil(t, sm.Get("p1"))
}

func TestSessionManager_Broadcast(t *testing.T) {
	sm := NewSessionManager(nil)
	a := NewDetachedSession("p1", nil)
	b := NewDetachedSession("p2", nil)
	sm.Register(a)
	sm.Register(b)
	assert.Equal(t, 2, sm.Count())
	assert.Len(t, sm.All(), 2)

	sm.BroadcastToAll(&Packet{Type: "notice"})
	assert.Equal(t, "notice", drain(t, a).Type)
	assert.Equal(t, "notice", drain(t, b).Type)
}

func TestSessionManager_CloseAll(t *testing.T) {
	sm := NewSessionManager(nil)
	a := NewDetachedSession("p1", nil)
	sm.Register(a)
	go func() {
		<-a.Done
		sm.Unregister(a)
	}()
	sm.CloseAllSessions(2 * time.Second)
	assert.True(t, a.IsClosed())
	assert.Equal(t, 0, sm.Count())
}
