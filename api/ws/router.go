package ws

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/game/player"
)

// Error packet types the router itself produces.
const (
	ErrBadPacket = "bad_packet"
	ErrStaleSeq  = "stale_seq"
	ErrInternal  = "internal"
)

// DefaultHandlerTimeout bounds one handler call.
const DefaultHandlerTimeout = 5 * time.Second

// HandlerFunc handles one client packet. A returned error is sent back to
// the client as an error packet under the packet's type.
type HandlerFunc func(ctx context.Context, session *player.PlayerSession, payload json.RawMessage) error

// Router maps packet types to handlers. Registration happens before the
// first Dispatch; the map is not guarded.
type Router struct {
	handlers map[string]HandlerFunc
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[string]HandlerFunc),
		timeout:  DefaultHandlerTimeout,
		logger:   logger,
	}
}

// On registers fn for msgType, replacing any earlier handler.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Types lists registered packet types in order.
func (r *Router) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Dispatch decodes one frame and runs its handler on the caller's
// goroutine, so packets from one connection are handled in order.
// A non-zero Seq must increase; Seq 0 opts out of ordering.
func (r *Router) Dispatch(s *player.PlayerSession, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil || pkt.Type == "" {
		r.logger.Warn("bad packet", zap.String("player", s.PlayerID), zap.Error(err))
		s.SendError(ErrBadPacket, "packet must be {seq,type,payload}")
		return
	}
	if pkt.Seq != 0 {
		if pkt.Seq <= s.LastSeq {
			r.logger.Debug("stale packet",
				zap.String("player", s.PlayerID),
				zap.Uint64("seq", pkt.Seq),
				zap.Uint64("last_seq", s.LastSeq))
			s.SendError(ErrStaleSeq, pkt.Type)
			return
		}
		s.LastSeq = pkt.Seq
	}
	s.Touch()

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		s.SendError(pkt.Type, "unknown message type")
		return
	}

	s.TraceID = uuid.NewString()
	ctx, cancel := context.WithTimeout(withTraceID(context.Background(), s.TraceID), r.timeout)
	defer cancel()
	if err := r.call(ctx, fn, s, pkt); err != nil {
		r.logger.Warn("handler error",
			zap.String("type", pkt.Type),
			zap.String("player", s.PlayerID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
		s.SendError(pkt.Type, err.Error())
	}
}

func (r *Router) call(ctx context.Context, fn HandlerFunc, s *player.PlayerSession, pkt player.Packet) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panic",
				zap.String("type", pkt.Type),
				zap.String("player", s.PlayerID),
				zap.Any("panic", p),
				zap.Stack("stack"))
			s.SendError(ErrInternal, pkt.Type)
			err = nil
		}
	}()
	return fn(ctx, s, pkt.Payload)
}

type traceKey struct{}

func withTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceIDFromCtx returns the id Dispatch assigned to the packet, or "".
func TraceIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
