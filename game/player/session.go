package player

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadlineS = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
)

// Packet is the unified WS message envelope.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayerSession is one connected player's WebSocket session.
type PlayerSession struct {
	PlayerID string
	Guest    bool

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	mu        sync.Mutex
	lastInput time.Time
	logger    *zap.Logger
}

// NewPlayerSession creates a session and starts its write goroutine.
func NewPlayerSession(playerID string, guest bool, conn *websocket.Conn, logger *zap.Logger) *PlayerSession {
	s := newSession(playerID, guest, logger)
	s.Conn = conn
	go s.writePump()
	return s
}

// NewDetachedSession creates a session without a connection. Packets queue
// on SendChan until the caller drains it.
func NewDetachedSession(playerID string, logger *zap.Logger) *PlayerSession {
	return newSession(playerID, false, logger)
}

func newSession(playerID string, guest bool, logger *zap.Logger) *PlayerSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayerSession{
		PlayerID:  playerID,
		Guest:     guest,
		SendChan:  make(chan []byte, sendChanBuf),
		Done:      make(chan struct{}),
		lastInput: time.Now(),
		logger:    logger,
	}
}

// writePump drains SendChan and writes to the WebSocket connection.
// Also sends periodic WebSocket pings to detect dead connections quickly.
func (s *PlayerSession) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.String("player", s.PlayerID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and sends it non-blocking. Drops if channel full or closed.
func (s *PlayerSession) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	s.enqueue(data, pkt.Type)
}

// SendJSON wraps v as the payload of a packet of the given type.
func (s *PlayerSession) SendJSON(typ string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode packet payload", zap.String("type", typ), zap.Error(err))
		return
	}
	s.Send(&Packet{Type: typ, Payload: payload})
}

// SendRaw sends raw bytes non-blocking. Drops if channel full or closed.
func (s *PlayerSession) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	s.enqueue(data, "raw")
}

func (s *PlayerSession) enqueue(data []byte, typ string) {
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		// Only log if not closed (to avoid spam on normal disconnect)
		if !s.IsClosed() {
			s.logger.Warn("send channel full, dropping packet",
				zap.String("player", s.PlayerID),
				zap.String("type", typ))
		}
	}
}

// Close signals the writePump to shut down.
func (s *PlayerSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.Done:
	default:
		close(s.Done)
	}
}

// IsClosed returns true if the session has been closed.
func (s *PlayerSession) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// Touch records client input.
func (s *PlayerSession) Touch() {
	s.mu.Lock()
	s.lastInput = time.Now()
	s.mu.Unlock()
}

// Idle returns the time since the last client input.
func (s *PlayerSession) Idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastInput)
}

// SendHeartbeatPong sends a pong packet in response to a client ping.
func (s *PlayerSession) SendHeartbeatPong(clientTS int64) {
	s.SendJSON("pong", struct {
		ClientTS int64 `json:"client_ts"`
		ServerTS int64 `json:"server_ts"`
	}{clientTS, time.Now().UnixMilli()})
}

// SendError reports a rejected request to the client.
func (s *PlayerSession) SendError(typ, msg string) {
	s.SendJSON("error", struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{typ, msg})
}

// SetReadDeadline resets the WebSocket read deadline to 60 s from now.
func (s *PlayerSession) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadlineS))
}
