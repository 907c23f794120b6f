package battle

import (
	"github.com/kasuganosora/mathmon/server/game/question"
)

// Action is a state transition. Every mutation of the battle state is an
// Action passed through reduce.
type Action interface {
	apply(s State) State
}

// reduce applies a and re-establishes the state invariants.
func reduce(s State, a Action) State {
	return normalize(a.apply(s))
}

func normalize(s State) State {
	emax := 0
	if s.Enemy != nil {
		emax = s.Enemy.MaxHP
	}
	s.EHp = clampInt(s.EHp, 0, emax)
	emax = 0
	if s.EnemySub != nil {
		emax = s.EnemySub.MaxHP
	}
	s.EHpSub = clampInt(s.EHpSub, 0, emax)

	if s.PMaxHp < 0 {
		s.PMaxHp = 0
	}
	if s.PMaxHpSub < 0 {
		s.PMaxHpSub = 0
	}
	s.PHp = clampInt(s.PHp, 0, s.PMaxHp)
	s.PHpSub = clampInt(s.PHpSub, 0, s.PMaxHpSub)

	if s.Streak < 0 {
		s.Streak = 0
	}
	s.Charge = clampInt(s.Charge, 0, MaxCharge)
	s.RivalCharge = clampInt(s.RivalCharge, 0, MaxCharge)
	s.PStg = clampInt(s.PStg, 0, MaxStage)
	for _, st := range []*Status{&s.EStatus, &s.EStatusSub} {
		st.BurnStack = clampInt(st.BurnStack, 0, MaxBurnStack)
		st.StaticStack = clampInt(st.StaticStack, 0, MaxStaticStack)
	}
	for i := range s.MLvls {
		s.MLvls[i] = clampInt(s.MLvls[i], 1, MaxMoveLvl)
		s.MLvlsSub[i] = clampInt(s.MLvlsSub[i], 1, MaxMoveLvl)
	}
	if s.Phase == PhaseQuestion && (s.Question == nil || s.SelIdx < 0) {
		s.Phase = PhaseMenu
	}
	return s
}

type resetState struct{ next State }

func (a resetState) apply(State) State { return a.next }

type setPhase struct{ phase Phase }

func (a setPhase) apply(s State) State {
	s.Phase = a.phase
	if a.phase != PhaseQuestion {
		s.Question = nil
		s.SelIdx = -1
		s.Answered = false
		s.AskedAt = 0
	}
	return s
}

type setScreen struct{ screen Screen }

func (a setScreen) apply(s State) State {
	s.Screen = a.screen
	return s
}

type sayMessage struct {
	key    string
	params map[string]any
	text   string
}

func (a sayMessage) apply(s State) State {
	s.MsgKey = a.key
	s.MsgParams = a.params
	s.Message = a.text
	return s
}

type askQuestion struct {
	idx int
	q   question.Question
	at  int64
}

func (a askQuestion) apply(s State) State {
	q := a.q
	s.Question = &q
	s.SelIdx = a.idx
	s.Answered = false
	s.AskedAt = a.at
	s.Phase = PhaseQuestion
	return s
}

type markAnswered struct{}

func (markAnswered) apply(s State) State {
	s.Answered = true
	return s
}

// grade updates the streak: a correct answer extends streak and charge, a
// wrong one resets both together.
type grade struct{ correct bool }

func (a grade) apply(s State) State {
	if a.correct {
		s.Streak++
		s.Charge++
	} else {
		s.Streak = 0
		s.Charge = 0
	}
	return s
}

type setSpecDef struct{ on bool }

func (a setSpecDef) apply(s State) State {
	s.SpecDef = a.on
	return s
}

type consumeSpecDef struct{}

func (consumeSpecDef) apply(s State) State {
	s.SpecDef = false
	s.Streak = 0
	s.Charge = 0
	return s
}

type damageEnemy struct{ slot, amount int }

func (a damageEnemy) apply(s State) State {
	if a.slot == 1 {
		s.EHpSub -= a.amount
	} else {
		s.EHp -= a.amount
	}
	return s
}

type damagePlayer struct {
	side, amount int
	// counted marks damage dealt by the enemy side during the encounter.
	counted bool
}

func (a damagePlayer) apply(s State) State {
	if a.side == 1 {
		s.PHpSub -= a.amount
	} else {
		s.PHp -= a.amount
	}
	if a.counted && a.amount > 0 {
		s.BattleDamage += a.amount
	}
	return s
}

type healPlayer struct{ side, amount int }

func (a healPlayer) apply(s State) State {
	if a.side == 1 {
		s.PHpSub += a.amount
	} else {
		s.PHp += a.amount
	}
	return s
}

type setStatus struct {
	slot int
	st   Status
}

func (a setStatus) apply(s State) State {
	if a.slot == 1 {
		s.EStatusSub = a.st
	} else {
		s.EStatus = a.st
	}
	return s
}

type moveHit struct {
	side, idx int
	levelUp   bool
}

func (a moveHit) apply(s State) State {
	hits, lvls := &s.MHits, &s.MLvls
	if a.side == 1 {
		hits, lvls = &s.MHitsSub, &s.MLvlsSub
	}
	if a.levelUp {
		lvls[a.idx]++
		hits[a.idx] = 0
	} else {
		hits[a.idx]++
	}
	return s
}

type setCursed struct{ on bool }

func (a setCursed) apply(s State) State {
	s.Cursed = a.on
	return s
}

type setShield struct{ on bool }

func (a setShield) apply(s State) State {
	s.Shield = a.on
	return s
}

type addCharge struct{ n int }

func (a addCharge) apply(s State) State {
	s.Charge += a.n
	return s
}

// spendCharge empties the charge after a risky move.
type spendCharge struct{}

func (spendCharge) apply(s State) State {
	s.Charge = 0
	return s
}

type progress struct {
	exp, lvl      int
	maxHp         int
	maxHpSub      int
	pendingEvolve bool
	reward        *Reward
}

// apply raises the max HP by the gained amount while keeping current HP
// relative to it.
func (a progress) apply(s State) State {
	if s.PHp > 0 {
		s.PHp += a.maxHp - s.PMaxHp
	}
	if s.PHpSub > 0 {
		s.PHpSub += a.maxHpSub - s.PMaxHpSub
	}
	s.PExp = a.exp
	s.PLvl = a.lvl
	s.PMaxHp = a.maxHp
	s.PMaxHpSub = a.maxHpSub
	s.PendingEvolve = s.PendingEvolve || a.pendingEvolve
	s.LastReward = a.reward
	return s
}

// evolve raises the stage, restores HP and bumps every move level.
type evolve struct{ maxHp, maxHpSub int }

func (a evolve) apply(s State) State {
	s.PStg++
	s.PendingEvolve = false
	s.PMaxHp = a.maxHp
	s.PMaxHpSub = a.maxHpSub
	s.PHp = a.maxHp
	if s.PMaxHpSub > 0 {
		s.PHpSub = a.maxHpSub
	}
	for i := range s.MLvls {
		s.MLvls[i]++
		s.MLvlsSub[i]++
	}
	return s
}

// enterEncounter replaces the enemies wholesale and resets their statuses.
type enterEncounter struct {
	round int
	floor int
	enc   Encounter
}

func (a enterEncounter) apply(s State) State {
	s.Round = a.round
	s.Floor = a.floor
	s.Enemy = a.enc.Primary
	s.EnemySub = a.enc.Sub
	s.EHp, s.EHpSub = 0, 0
	if s.Enemy != nil {
		s.EHp = s.Enemy.MaxHP
	}
	if s.EnemySub != nil {
		s.EHpSub = s.EnemySub.MaxHP
	}
	s.EStatus = Status{}
	s.EStatusSub = Status{}
	s.BattleDamage = 0
	s.LastReward = nil
	s.Phase = PhaseMenu
	s.Screen = ScreenBattle
	s.Question = nil
	s.SelIdx = -1
	s.Answered = false
	return s
}

type setActive struct{ side int }

func (a setActive) apply(s State) State {
	s.Active = a.side
	return s
}

// passTurn hands a pvp duel to the other side, swapping streak and charge.
type passTurn struct{}

func (passTurn) apply(s State) State {
	s.Active = 1 - s.Active
	s.Streak, s.RivalStreak = s.RivalStreak, s.Streak
	s.Charge, s.RivalCharge = s.RivalCharge, s.Charge
	return s
}

type setInventory struct{ inv map[string]int }

func (a setInventory) apply(s State) State {
	s.Inventory = a.inv
	return s
}

type setPaused struct{ on bool }

func (a setPaused) apply(s State) State {
	s.Paused = a.on
	return s
}

type finishRun struct {
	completed bool
	winner    int
}

func (a finishRun) apply(s State) State {
	s.Completed = a.completed
	s.Winner = a.winner
	s.Screen = ScreenGameOver
	s.Paused = false
	s.Question = nil
	s.SelIdx = -1
	return s
}
