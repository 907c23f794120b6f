// Package record holds the bookkeeping layered on top of battle events:
// session logs, achievements, the encyclopedia and collection perks.
package record

import (
	"time"
)

// EventKind classifies a session log entry.
type EventKind string

const (
	EventAnswer EventKind = "answer"
	EventBattle EventKind = "battle"
	EventItem   EventKind = "item"
	EventQuit   EventKind = "quit"
)

// Event is one append-only session log entry.
type Event struct {
	Kind      EventKind `json:"kind"`
	At        time.Time `json:"at"`
	Round     int       `json:"round"`
	Op        string    `json:"op,omitempty"`
	Move      int       `json:"move,omitempty"`
	Correct   bool      `json:"correct,omitempty"`
	TimedOut  bool      `json:"timed_out,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	EnemyID   string    `json:"enemy_id,omitempty"`
	Result    string    `json:"result,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
}

// Summary is the finalized record of one run.
type Summary struct {
	RunID         string        `json:"run_id"`
	PlayerID      string        `json:"player_id"`
	Mode          string        `json:"mode"`
	StarterID     string        `json:"starter_id"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
	Duration      time.Duration `json:"duration"`
	Completed     bool          `json:"completed"`
	RoundsCleared int           `json:"rounds_cleared"`
	Correct       int           `json:"correct"`
	Wrong         int           `json:"wrong"`
	Accuracy      float64       `json:"accuracy"`
	MaxStreak     int           `json:"max_streak"`
	DamageTaken   int           `json:"damage_taken"`
	Events        []Event       `json:"events"`
}

// Log accumulates events for a run and is finalized exactly once.
type Log struct {
	runID     string
	playerID  string
	mode      string
	starterID string
	startedAt time.Time

	events      []Event
	streak      int
	maxStreak   int
	damageTaken int
	cleared     int

	final *Summary
}

// NewLog starts a session log.
func NewLog(runID, playerID, mode, starterID string, startedAt time.Time) *Log {
	return &Log{
		runID:     runID,
		playerID:  playerID,
		mode:      mode,
		starterID: starterID,
		startedAt: startedAt,
	}
}

// Append adds an event. Appends after Finalize are ignored.
func (l *Log) Append(e Event) {
	if l == nil || l.final != nil {
		return
	}
	l.events = append(l.events, e)
	switch e.Kind {
	case EventAnswer:
		if e.Correct {
			l.streak++
			if l.streak > l.maxStreak {
				l.maxStreak = l.streak
			}
		} else {
			l.streak = 0
		}
	case EventBattle:
		if e.Result == "win" {
			l.cleared++
		}
	}
}

// AddDamageTaken accumulates damage dealt to the player side.
func (l *Log) AddDamageTaken(n int) {
	if l == nil || l.final != nil || n <= 0 {
		return
	}
	l.damageTaken += n
}

// Events returns a copy of the logged events.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	return append([]Event(nil), l.events...)
}

// Finalized reports whether Finalize already ran.
func (l *Log) Finalized() bool { return l != nil && l.final != nil }

// Finalize closes the log and returns its summary. The second and later
// calls return the first summary and false.
func (l *Log) Finalize(completed bool, at time.Time) (Summary, bool) {
	if l == nil {
		return Summary{}, false
	}
	if l.final != nil {
		return *l.final, false
	}
	s := Summary{
		RunID:         l.runID,
		PlayerID:      l.playerID,
		Mode:          l.mode,
		StarterID:     l.starterID,
		StartedAt:     l.startedAt,
		EndedAt:       at,
		Duration:      at.Sub(l.startedAt),
		Completed:     completed,
		RoundsCleared: l.cleared,
		MaxStreak:     l.maxStreak,
		DamageTaken:   l.damageTaken,
		Events:        append([]Event(nil), l.events...),
	}
	for _, e := range l.events {
		if e.Kind != EventAnswer {
			continue
		}
		if e.Correct {
			s.Correct++
		} else {
			s.Wrong++
		}
	}
	if n := s.Correct + s.Wrong; n > 0 {
		s.Accuracy = float64(s.Correct) / float64(n)
	}
	l.final = &s
	return s, true
}

// LogState is the serializable content of an open log, carried by mid-run
// saves.
type LogState struct {
	Events      []Event `json:"events"`
	Streak      int     `json:"streak"`
	MaxStreak   int     `json:"max_streak"`
	DamageTaken int     `json:"damage_taken"`
	Cleared     int     `json:"cleared"`
}

// State captures the log for a save.
func (l *Log) State() LogState {
	if l == nil {
		return LogState{}
	}
	return LogState{
		Events:      append([]Event(nil), l.events...),
		Streak:      l.streak,
		MaxStreak:   l.maxStreak,
		DamageTaken: l.damageTaken,
		Cleared:     l.cleared,
	}
}

// RestoreLog reopens a log from a saved state.
func RestoreLog(runID, playerID, mode, starterID string, startedAt time.Time, st LogState) *Log {
	l := NewLog(runID, playerID, mode, starterID, startedAt)
	l.events = append([]Event(nil), st.Events...)
	l.streak = st.Streak
	l.maxStreak = st.MaxStreak
	l.damageTaken = st.DamageTaken
	l.cleared = st.Cleared
	return l
}

// Streak is the current run of consecutive correct answers.
func (l *Log) Streak() int {
	if l == nil {
		return 0
	}
	return l.streak
}
