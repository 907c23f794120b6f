// Package ability tracks per-operator skill and turns it into the numeric
// difficulty multiplier used by the question generator.
package ability

import (
	"math"
	"sync"
	"time"

	"github.com/kasuganosora/mathmon/server/game/question"
)

const (
	BaselineLevel = 2
	MinLevel      = 1
	MaxLevel      = 8
	WindowSize    = 5

	promoteAccuracy = 0.8
	demoteAccuracy  = 0.4
	fastLatency     = 6 * time.Second
)

// DiffMods maps a difficulty level to the range multiplier.
var DiffMods = map[int]float64{
	1: 0.6,
	2: 1.0,
	3: 1.3,
	4: 1.6,
	5: 2.0,
	6: 2.4,
	7: 2.8,
	8: 3.2,
}

type sample struct {
	Correct bool          `json:"correct"`
	Latency time.Duration `json:"latency"`
}

// OpState is the persisted per-operator record.
type OpState struct {
	Level  int      `json:"level"`
	Window []sample `json:"window,omitempty"`
}

// Model is the adaptive difficulty model of one player.
type Model struct {
	mu  sync.Mutex
	ops map[question.Op]*OpState
}

// New returns a model with every operator at the baseline.
func New() *Model {
	return &Model{ops: make(map[question.Op]*OpState)}
}

func (m *Model) get(op question.Op) *OpState {
	s, ok := m.ops[op]
	if !ok {
		s = &OpState{Level: BaselineLevel}
		m.ops[op] = s
	}
	return s
}

// Level returns the current level for op.
func (m *Model) Level(op question.Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(op).Level
}

// Record feeds one graded answer into the model and returns the op's level
// after any adjustment.
func (m *Model) Record(op question.Op, correct bool, latency time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(op)
	s.Window = append(s.Window, sample{Correct: correct, Latency: latency})
	if len(s.Window) > WindowSize {
		s.Window = s.Window[len(s.Window)-WindowSize:]
	}
	if len(s.Window) < WindowSize {
		return s.Level
	}

	hits := 0
	var total time.Duration
	for _, w := range s.Window {
		if w.Correct {
			hits++
		}
		total += w.Latency
	}
	acc := float64(hits) / float64(len(s.Window))
	mean := total / time.Duration(len(s.Window))

	switch {
	case acc >= promoteAccuracy && mean <= fastLatency && s.Level < MaxLevel:
		s.Level++
		s.Window = nil
	case acc <= demoteAccuracy && s.Level > MinLevel:
		s.Level--
		s.Window = nil
	}
	return s.Level
}

// MoveDiffLevel maps a move's operator set to a single level: the rounded
// mean of the operators' levels.
func (m *Model) MoveDiffLevel(ops []question.Op) int {
	if len(ops) == 0 {
		return BaselineLevel
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, op := range ops {
		sum += m.get(op).Level
	}
	lvl := int(math.Round(float64(sum) / float64(len(ops))))
	return clampLevel(lvl)
}

// Multiplier returns the DiffMods entry for the move's operator set.
func (m *Model) Multiplier(ops []question.Op) float64 {
	return DiffMods[m.MoveDiffLevel(ops)]
}

// Snapshot copies the model for persistence.
func (m *Model) Snapshot() map[question.Op]OpState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[question.Op]OpState, len(m.ops))
	for op, s := range m.ops {
		out[op] = OpState{Level: s.Level, Window: append([]sample(nil), s.Window...)}
	}
	return out
}

// Restore replaces the model's contents. Unknown operators and out-of-range
// levels are dropped back to the baseline.
func (m *Model) Restore(snap map[question.Op]OpState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = make(map[question.Op]*OpState, len(snap))
	for op, s := range snap {
		if !op.Valid() {
			continue
		}
		lvl := s.Level
		if lvl < MinLevel || lvl > MaxLevel {
			lvl = BaselineLevel
		}
		w := s.Window
		if len(w) > WindowSize {
			w = w[len(w)-WindowSize:]
		}
		m.ops[op] = &OpState{Level: lvl, Window: append([]sample(nil), w...)}
	}
}

func clampLevel(l int) int {
	if l < MinLevel {
		return MinLevel
	}
	if l > MaxLevel {
		return MaxLevel
	}
	return l
}
