package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Countdown is a per-question timer. It ticks every tick interval, can be
// paused and resumed, and calls onTimeout at most once per Start.
//
// Callbacks run while holding guard, like Gate continuations.
type Countdown struct {
	clock  Clock
	guard  sync.Locker
	tick   time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	gen       uint64
	running   bool
	paused    bool
	remaining time.Duration
	stepStart time.Time
	timer     Timer
	onTick    func(remaining time.Duration)
	onTimeout func()
}

// NewCountdown creates a stopped countdown.
func NewCountdown(clock Clock, guard sync.Locker, tick time.Duration, logger *zap.Logger) *Countdown {
	if clock == nil {
		clock = RealClock{}
	}
	if guard == nil {
		guard = nopLocker{}
	}
	if tick <= 0 {
		tick = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Countdown{clock: clock, guard: guard, tick: tick, logger: logger}
}

// Start (re)starts the countdown from limit. Any previous run is discarded.
func (c *Countdown) Start(limit time.Duration, onTick func(time.Duration), onTimeout func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.running = true
	c.paused = false
	c.remaining = limit
	c.onTick = onTick
	c.onTimeout = onTimeout
	c.scheduleLocked()
}

// Stop cancels the countdown without firing onTimeout.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.running = false
	c.paused = false
}

// Pause freezes the remaining time.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused {
		return
	}
	c.remaining -= c.clock.Now().Sub(c.stepStart)
	if c.remaining < 0 {
		c.remaining = 0
	}
	c.cancelLocked()
	c.paused = true
}

// Resume continues a paused countdown.
func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || !c.paused {
		return
	}
	c.paused = false
	c.scheduleLocked()
}

// Remaining returns the time left, accounting for the step in progress.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	if c.paused {
		return c.remaining
	}
	r := c.remaining - c.clock.Now().Sub(c.stepStart)
	if r < 0 {
		r = 0
	}
	return r
}

// Running reports whether a countdown is active (paused counts as active).
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Paused reports whether the countdown is paused.
func (c *Countdown) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Countdown) cancelLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) scheduleLocked() {
	step := c.tick
	if c.remaining < step {
		step = c.remaining
	}
	gen := c.gen
	c.stepStart = c.clock.Now()
	c.timer = c.clock.AfterFunc(step, func() { c.step(gen, step) })
}

func (c *Countdown) step(gen uint64, elapsed time.Duration) {
	c.guard.Lock()
	defer c.guard.Unlock()

	c.mu.Lock()
	if gen != c.gen || !c.running || c.paused {
		c.mu.Unlock()
		return
	}
	c.remaining -= elapsed
	var cb func()
	if c.remaining <= 0 {
		c.remaining = 0
		c.running = false
		c.timer = nil
		c.gen++
		cb = c.onTimeout
	} else {
		rem := c.remaining
		tick := c.onTick
		c.scheduleLocked()
		if tick != nil {
			cb = func() { tick(rem) }
		}
	}
	c.mu.Unlock()

	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("countdown callback panicked", zap.Any("recover", r))
		}
	}()
	cb()
}
