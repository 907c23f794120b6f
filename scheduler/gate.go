package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Gate schedules delayed continuations fenced by an epoch. Invalidate bumps
// the epoch and stops every pending timer; a continuation whose epoch is no
// longer current never runs, even if its timer already fired.
//
// Continuations run while holding guard, which is the owner's state lock.
// Callers of SafeTo and Invalidate are expected to hold guard already.
type Gate struct {
	clock  Clock
	guard  sync.Locker
	logger *zap.Logger

	mu      sync.Mutex
	epoch   uint64
	nextID  uint64
	pending map[uint64]Timer
}

// NewGate creates a gate. A nil guard disables locking, a nil logger is
// replaced with a no-op logger.
func NewGate(clock Clock, guard sync.Locker, logger *zap.Logger) *Gate {
	if clock == nil {
		clock = RealClock{}
	}
	if guard == nil {
		guard = nopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		clock:   clock,
		guard:   guard,
		logger:  logger,
		pending: make(map[uint64]Timer),
	}
}

// SafeTo runs fn after d unless the gate is invalidated first.
func (g *Gate) SafeTo(fn func(), d time.Duration) {
	g.mu.Lock()
	epoch := g.epoch
	g.nextID++
	id := g.nextID
	g.mu.Unlock()

	t := g.clock.AfterFunc(d, func() { g.fire(id, epoch, fn) })

	g.mu.Lock()
	if g.epoch == epoch {
		g.pending[id] = t
	} else {
		t.Stop()
	}
	g.mu.Unlock()
}

func (g *Gate) fire(id, epoch uint64, fn func()) {
	g.guard.Lock()
	defer g.guard.Unlock()

	g.mu.Lock()
	delete(g.pending, id)
	current := g.epoch == epoch
	g.mu.Unlock()
	if !current {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("scheduled continuation panicked",
				zap.Uint64("epoch", epoch), zap.Any("recover", r))
		}
	}()
	fn()
}

// Invalidate cancels every pending continuation.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	for id, t := range g.pending {
		t.Stop()
		delete(g.pending, id)
	}
}

// Epoch returns the current generation.
func (g *Gate) Epoch() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

// Pending returns the number of continuations still waiting to fire.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
