package player

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of all connected PlayerSessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*PlayerSession // player id → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		sessions: make(map[string]*PlayerSession),
		logger:   logger,
	}
}

// Register adds a session. If a previous session exists for the same player
// it is closed first (handles duplicate login / reconnect).
func (sm *SessionManager) Register(s *PlayerSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.sessions[s.PlayerID]; ok && old != s {
		old.Close()
		sm.logger.Info("duplicate session displaced", zap.String("player", s.PlayerID))
	}
	sm.sessions[s.PlayerID] = s
	sm.logger.Info("player session registered", zap.String("player", s.PlayerID))
}

// Unregister removes s. A newer session registered under the same player is
// left in place.
func (sm *SessionManager) Unregister(s *PlayerSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if cur, ok := sm.sessions[s.PlayerID]; ok && cur == s {
		delete(sm.sessions, s.PlayerID)
		sm.logger.Info("player session unregistered", zap.String("player", s.PlayerID))
	}
}

// Get returns the session for a player, or nil if not found.
func (sm *SessionManager) Get(playerID string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[playerID]
}

// IsOnline reports whether a player is currently connected.
func (sm *SessionManager) IsOnline(playerID string) bool {
	return sm.Get(playerID) != nil
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*PlayerSession, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// BroadcastToAll sends a packet to every connected session. Slow clients
// drop the packet.
func (sm *SessionManager) BroadcastToAll(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		sm.logger.Error("failed to marshal broadcast packet", zap.Error(err))
		return
	}
	for _, s := range sm.All() {
		select {
		case s.SendChan <- data:
		default:
			sm.logger.Warn("broadcast dropped packet for slow client",
				zap.String("player", s.PlayerID))
		}
	}
}

// CloseAllSessions closes every session and waits up to maxWait for their
// read loops to unregister them.
func (sm *SessionManager) CloseAllSessions(maxWait time.Duration) {
	sessions := sm.All()
	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		if sm.Count() == 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
