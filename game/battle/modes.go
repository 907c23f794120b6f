package battle

import (
	"github.com/kasuganosora/mathmon/server/game/question"
	"github.com/kasuganosora/mathmon/server/game/rng"
)

// Mode is the battle mode, fixed for a run.
type Mode string

const (
	ModeSingle    Mode = "single"
	ModeCoop      Mode = "coop"
	ModePvP       Mode = "pvp"
	ModeChallenge Mode = "challenge"
	ModeTower     Mode = "tower"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSingle, ModeCoop, ModePvP, ModeChallenge, ModeTower:
		return true
	}
	return false
}

// Modifier is a daily-challenge rule change.
type Modifier string

const (
	ModNone       Modifier = ""
	ModOpsOnlyMul Modifier = "ops_only_mul"
	ModOpsOnlyAdd Modifier = "ops_only_addsub"
	ModEnemyAtkUp Modifier = "enemy_atk_up"
	ModNoItems    Modifier = "no_items"
)

const towerBossEvery = 5

// Modifiers lists every challenge modifier.
var Modifiers = []Modifier{ModOpsOnlyMul, ModOpsOnlyAdd, ModEnemyAtkUp, ModNoItems}

// modeRules is the per-mode turn resolution strategy, chosen once when a
// run starts.
type modeRules interface {
	// setup adjusts options and state for the mode before the first round.
	setup(e *Engine, s *State)
	// encounter returns the enemies of round, or false when the run is over.
	encounter(e *Engine, round int) (Encounter, bool)
	// sides is the number of player monsters.
	sides() int
	statuses() bool
	items(mod Modifier) bool
	allowedOps(mod Modifier) []question.Op
	// partyDown reports whether the player side lost.
	partyDown(s State) bool
	// endPlayerTurn continues after the player's action resolved without
	// ending the encounter.
	endPlayerTurn(e *Engine)
	// target returns the enemy slot the active side attacks.
	target(s State) int
}

func rulesFor(m Mode) modeRules {
	switch m {
	case ModeCoop:
		return coopRules{}
	case ModePvP:
		return pvpRules{}
	case ModeChallenge:
		return challengeRules{}
	case ModeTower:
		return towerRules{}
	default:
		return singleRules{}
	}
}

type singleRules struct{}

func (singleRules) setup(*Engine, *State) {}

func (singleRules) encounter(e *Engine, round int) (Encounter, bool) {
	if round >= len(e.run.roster) {
		return Encounter{}, false
	}
	return e.run.roster[round], true
}

func (singleRules) sides() int { return 1 }
func (singleRules) statuses() bool { return true }
func (singleRules) items(mod Modifier) bool { return mod != ModNoItems }
func (singleRules) partyDown(s State) bool { return s.PHp <= 0 }
func (singleRules) endPlayerTurn(e *Engine) { e.beginEnemyTurn() }
func (singleRules) target(State) int { return 0 }
func (singleRules) allowedOps(mod Modifier) []question.Op {
	switch mod {
	case ModOpsOnlyMul:
		return []question.Op{question.OpMul}
	case ModOpsOnlyAdd:
		return []question.Op{question.OpAdd, question.OpSub}
	}
	return nil
}

// coopRules: two starters against enemy pairs. The active side alternates
// every turn.
type coopRules struct{ singleRules }

func (coopRules) sides() int { return 2 }

func (coopRules) partyDown(s State) bool { return s.PHp <= 0 && s.PHpSub <= 0 }

func (coopRules) target(s State) int {
	if s.EHp <= 0 && s.EnemySub != nil && s.EHpSub > 0 {
		return 1
	}
	return 0
}

// pvpRules: a hot-seat duel between side 0 and side 1. There is no enemy
// phase and no lingering statuses.
type pvpRules struct{ singleRules }

func (pvpRules) setup(_ *Engine, s *State) {
	s.Enemy = nil
	s.EnemySub = nil
	s.Winner = -1
}

func (pvpRules) encounter(_ *Engine, round int) (Encounter, bool) {
	return Encounter{}, round == 0
}

func (pvpRules) sides() int { return 2 }
func (pvpRules) statuses() bool { return false }
func (pvpRules) items(Modifier) bool { return false }
func (pvpRules) partyDown(s State) bool { return s.PHp <= 0 || s.PHpSub <= 0 }
func (pvpRules) endPlayerTurn(e *Engine) { e.passTurn() }

// challengeRules: the daily run. Seed, roster order and modifier come from
// the date key, so every player faces the same run on the same day.
type challengeRules struct{ singleRules }

func (challengeRules) setup(e *Engine, s *State) {
	s.Timed = true
	s.Modifier = Modifiers[e.rng.PickIndex(len(Modifiers))]
}

// towerRules: endless floors with a boss every fifth floor.
type towerRules struct{ singleRules }

func (towerRules) encounter(e *Engine, round int) (Encounter, bool) {
	for len(e.run.roster) <= round {
		e.run.roster = append(e.run.roster, e.towerFloor(len(e.run.roster)))
	}
	return e.run.roster[round], true
}

// pickEnemyIndex selects a template for a tower floor.
func pickEnemyIndex(r *rng.RNG, n int, boss bool, isBoss func(int) bool) int {
	if n == 0 {
		return -1
	}
	var pool []int
	for i := 0; i < n; i++ {
		if isBoss(i) == boss {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return r.PickIndex(n)
	}
	return pool[r.PickIndex(len(pool))]
}
