// Package run owns the live battle engines of a server: one engine per
// player, created on demand, with every engine event fanned out to the
// player's pubsub channel.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/config"
	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/i18n"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/scheduler"
)

// ErrNoRun is returned when a player has no engine.
var ErrNoRun = errors.New("run: no active engine")

// ReapJob is the scheduler job name of the idle reaper.
const ReapJob = "run.reap"

const publishTimeout = 2 * time.Second

// Envelope is the wire form of an engine event on a pubsub channel.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps ev in an Envelope.
func Encode(ev battle.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: ev.EventType(), Data: data})
}

// Options configure a Manager.
type Options struct {
	Resources  *resource.ResourceLoader
	Repos      battle.Repositories
	Translator i18n.Translator
	PubSub     cache.PubSub
	Clock      scheduler.Clock
	Game       config.GameConfig
	Logger     *zap.Logger
	// OnEvict runs after an idle engine is dropped.
	OnEvict func(playerID string)
}

type entry struct {
	engine     *battle.Engine
	unsub      func()
	done       chan struct{}
	lastActive time.Time
}

// Manager is safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*entry
	opts Options
	log  *zap.Logger
}

// NewManager creates an empty Manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = scheduler.RealClock{}
	}
	if opts.Translator == nil {
		opts.Translator = i18n.Fallback{}
	}
	if opts.Game.EventBuffer <= 0 {
		opts.Game.EventBuffer = 64
	}
	if !opts.Game.SaveSnapshots {
		// engine-local saves: resume works until the engine is reaped
		opts.Repos.Saves = nil
	}
	return &Manager{
		runs: make(map[string]*entry),
		opts: opts,
		log:  opts.Logger.Named("run"),
	}
}

// Engine returns the player's engine, creating it on first use.
func (m *Manager) Engine(playerID string) *battle.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if en, ok := m.runs[playerID]; ok {
		en.lastActive = m.opts.Clock.Now()
		return en.engine
	}
	e := battle.NewEngine(battle.Config{
		PlayerID:     playerID,
		Resources:    m.opts.Resources,
		Repos:        m.opts.Repos,
		Translator:   m.opts.Translator,
		Clock:        m.opts.Clock,
		Delays:       m.opts.Game.Delays(),
		TimedLimit:   m.opts.Game.TimedLimit(),
		TickInterval: m.opts.Game.Tick(),
		DailySalt:    m.opts.Game.DailySalt,
		Logger:       m.opts.Logger,
	})
	ch, unsub := e.Subscribe(m.opts.Game.EventBuffer)
	en := &entry{
		engine:     e,
		unsub:      unsub,
		done:       make(chan struct{}),
		lastActive: m.opts.Clock.Now(),
	}
	m.runs[playerID] = en
	go m.forward(playerID, ch, en.done)
	m.log.Debug("engine created", zap.String("player", playerID))
	return e
}

// Lookup returns an existing engine without creating one.
func (m *Manager) Lookup(playerID string) (*battle.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	en, ok := m.runs[playerID]
	if !ok {
		return nil, ErrNoRun
	}
	en.lastActive = m.opts.Clock.Now()
	return en.engine, nil
}

// Start begins a run with the configured default tier applied.
func (m *Manager) Start(playerID string, opts battle.StartOptions) (*battle.Engine, error) {
	if opts.Tier == "" {
		opts.Tier = battle.Tier(m.opts.Game.DefaultTier)
	}
	e := m.Engine(playerID)
	if err := e.StartGame(opts); err != nil {
		return nil, err
	}
	return e, nil
}

// forward publishes engine events until the engine is dropped.
func (m *Manager) forward(playerID string, ch <-chan battle.Event, done chan struct{}) {
	defer close(done)
	channel := cache.BattleChannel(playerID)
	for ev := range ch {
		if m.opts.PubSub == nil {
			continue
		}
		msg, err := Encode(ev)
		if err != nil {
			m.log.Error("encode event", zap.String("type", ev.EventType()), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.opts.PubSub.Publish(ctx, channel, string(msg)); err != nil {
			m.log.Warn("publish event failed",
				zap.String("player", playerID), zap.String("type", ev.EventType()), zap.Error(err))
		}
		cancel()
	}
}

// Remove drops a player's engine. Pending continuations are cancelled; the
// mid-run save stays so the run can be resumed.
func (m *Manager) Remove(playerID string) bool {
	m.mu.Lock()
	en, ok := m.runs[playerID]
	if ok {
		delete(m.runs, playerID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.drop(en)
	return true
}

func (m *Manager) drop(en *entry) {
	en.engine.InvalidateAsyncWork()
	en.unsub()
	<-en.done
}

// ReapIdle drops engines untouched for the configured idle timeout and
// returns their player ids sorted.
func (m *Manager) ReapIdle() []string {
	timeout := m.opts.Game.IdleTimeout()
	if timeout <= 0 {
		return nil
	}
	cutoff := m.opts.Clock.Now().Add(-timeout)

	m.mu.Lock()
	var ids []string
	var victims []*entry
	for id, en := range m.runs {
		if en.lastActive.Before(cutoff) {
			ids = append(ids, id)
			victims = append(victims, en)
			delete(m.runs, id)
		}
	}
	m.mu.Unlock()

	for _, en := range victims {
		m.drop(en)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if m.opts.OnEvict != nil {
			m.opts.OnEvict(id)
		}
	}
	if len(ids) > 0 {
		m.log.Info("reaped idle engines", zap.Int("count", len(ids)))
	}
	return ids
}

// Schedule registers the idle reaper on s.
func (m *Manager) Schedule(s *scheduler.Scheduler) {
	interval := m.opts.Game.ReapInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	s.AddTicker(ReapJob, interval, func() { m.ReapIdle() })
}

// Info describes one live engine.
type Info struct {
	PlayerID   string        `json:"player_id"`
	Screen     battle.Screen `json:"screen"`
	Phase      battle.Phase  `json:"phase"`
	Mode       battle.Mode   `json:"mode,omitempty"`
	Round      int           `json:"round"`
	LastActive time.Time     `json:"last_active"`
}

// Active lists live engines sorted by player id.
func (m *Manager) Active() []Info {
	m.mu.Lock()
	type pair struct {
		id   string
		en   *entry
		last time.Time
	}
	pairs := make([]pair, 0, len(m.runs))
	for id, en := range m.runs {
		pairs = append(pairs, pair{id, en, en.lastActive})
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(pairs))
	for _, p := range pairs {
		s := p.en.engine.Snapshot()
		out = append(out, Info{
			PlayerID:   p.id,
			Screen:     s.Screen,
			Phase:      s.Phase,
			Mode:       s.Mode,
			Round:      s.Round,
			LastActive: p.last,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Count returns the number of live engines.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// Close drops every engine.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*entry, 0, len(m.runs))
	for id, en := range m.runs {
		all = append(all, en)
		delete(m.runs, id)
	}
	m.mu.Unlock()
	for _, en := range all {
		m.drop(en)
	}
}
