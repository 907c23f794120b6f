package battle

import (
	"time"

	"github.com/kasuganosora/mathmon/server/game/record"
)

// Event is anything the engine publishes to subscribers.
type Event interface {
	EventType() string
}

// StateEvent carries the committed state, redacted while a question is open.
type StateEvent struct {
	State State `json:"state"`
}

func (StateEvent) EventType() string { return "state" }

// ScreenEvent is the navigation signal.
type ScreenEvent struct {
	Screen Screen `json:"screen"`
}

func (ScreenEvent) EventType() string { return "screen" }

// MessageEvent is a rendered battle message.
type MessageEvent struct {
	Key    string         `json:"key"`
	Params map[string]any `json:"params,omitempty"`
	Text   string         `json:"text"`
}

func (MessageEvent) EventType() string { return "message" }

// TimerEvent is a countdown tick. RemainingMs reaches 0 on timeout.
type TimerEvent struct {
	RemainingMs int64 `json:"remaining_ms"`
}

func (TimerEvent) EventType() string { return "timer" }

// DamageEvent reports one hit.
type DamageEvent struct {
	// Target is "enemy" or "player".
	Target string  `json:"target"`
	Slot   int     `json:"slot"`
	Amount int     `json:"amount"`
	Eff    float64 `json:"eff,omitempty"`
	Crit   bool    `json:"crit,omitempty"`
	Source string  `json:"source,omitempty"`
}

func (DamageEvent) EventType() string { return "damage" }

// AchievementEvent lists newly unlocked achievements.
type AchievementEvent struct {
	IDs []string `json:"ids"`
}

func (AchievementEvent) EventType() string { return "achievement" }

// RunEndEvent is published once when a run finishes or is quit.
type RunEndEvent struct {
	Summary record.Summary `json:"summary"`
	Winner  int            `json:"winner"`
	At      time.Time      `json:"at"`
}

func (RunEndEvent) EventType() string { return "run_end" }
