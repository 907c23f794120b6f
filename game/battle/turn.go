package battle

import (
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/game/question"
	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/resource"
)

func moveOps(m resource.MoveDef) []question.Op {
	ops := make([]question.Op, 0, len(m.Ops))
	for _, o := range m.Ops {
		ops = append(ops, question.Op(o))
	}
	return ops
}

// SelectMove asks the question of the active side's move i. Ignored
// outside the menu, while paused, or for a risky move without full charge.
func (e *Engine) SelectMove(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	s := e.latest
	if e.run == nil || s.Screen != ScreenBattle || s.Phase != PhaseMenu || s.Paused {
		return false
	}
	st := e.activeStarter()
	if st == nil || i < 0 || i >= len(st.Moves) {
		return false
	}
	mv := st.Moves[i]
	if mv.Risky && s.Charge < MaxCharge {
		return false
	}
	ops := moveOps(mv)
	q := e.gen.Generate(question.Move{Range: mv.Range, Ops: ops}, e.ability.Multiplier(ops), e.run.rules.allowedOps(s.Modifier))
	if !e.trigger(PhaseQuestion) {
		return false
	}
	e.dispatch(askQuestion{idx: i, q: q, at: e.clock.Now().UnixMilli()})
	e.audio.PlaySfx("select")
	if s.Timed {
		e.countdown.Start(e.limit, e.onTick, func() {
			e.onTimeout()
			e.flush()
		})
	}
	return true
}

// OnAnswer grades choice (an index into the question's choices). Only the
// first answer of a question counts.
func (e *Engine) OnAnswer(choice int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	s := e.latest
	if e.run == nil || s.Phase != PhaseQuestion || s.Question == nil || s.Answered || s.Paused {
		return false
	}
	if choice < 0 || choice >= len(s.Question.Choices) {
		return false
	}
	e.countdown.Stop()
	e.dispatch(markAnswered{})
	correct := s.Question.Correct(s.Question.Choices[choice])
	latency := e.clock.Now().Sub(time.UnixMilli(s.AskedAt))
	e.recordAnswer(correct, false, latency)
	if correct {
		e.resolveHit()
	} else {
		e.resolveMiss(false)
	}
	return true
}

func (e *Engine) onTick(remaining time.Duration) {
	e.emit(TimerEvent{RemainingMs: remaining.Milliseconds()})
}

// onTimeout behaves like a wrong answer.
func (e *Engine) onTimeout() {
	s := e.latest
	if e.run == nil || s.Phase != PhaseQuestion || s.Answered {
		return
	}
	e.dispatch(markAnswered{})
	e.recordAnswer(false, true, e.limit)
	e.resolveMiss(true)
}

func (e *Engine) recordAnswer(correct, timedOut bool, latency time.Duration) {
	s := e.latest
	q := s.Question
	e.ability.Record(q.Op, correct, latency)
	if err := e.repos.Ability.SaveAbility(e.playerID, e.ability.Snapshot()); err != nil {
		e.logger.Warn("save ability failed", zap.Error(err))
	}
	e.run.log.Append(record.Event{
		Kind:      record.EventAnswer,
		At:        e.clock.Now(),
		Round:     s.Round,
		Op:        string(q.Op),
		Move:      s.SelIdx,
		Correct:   correct,
		TimedOut:  timedOut,
		LatencyMs: latency.Milliseconds(),
	})
	if correct {
		e.unlock(record.OnAnswer(e.run.log.Streak())...)
	}
}

// resolveHit starts the attack chain of a correct answer.
func (e *Engine) resolveHit() {
	s := e.latest
	side, idx := s.Active, s.SelIdx
	st := e.run.starters[side]
	mv := st.Moves[idx]
	lvl := s.Levels(side)[idx]
	pow := MovePower(mv, lvl)
	slot := e.run.rules.target(s)

	e.dispatch(grade{correct: true})
	if mv.Risky {
		e.dispatch(spendCharge{})
	}

	hits := s.MHits[idx]
	if side == 1 {
		hits = s.MHitsSub[idx]
	}
	levelUp := hits+1 >= MoveLevelUpHits(lvl) && lvl < MaxMoveLvl &&
		(mv.PowerCap <= 0 || mv.BasePower+lvl*mv.Growth <= mv.PowerCap)
	e.dispatch(moveHit{side: side, idx: idx, levelUp: levelUp})

	e.transition(PhasePlayerAtk)
	e.say(msgCorrect, nil)
	if levelUp {
		e.say(msgMoveUp, params{"move": mv.Name, "level": lvl + 1})
	}
	if s.Mode != ModePvP && !e.latest.SpecDef && e.latest.Streak >= SpecDefStreak {
		e.dispatch(setSpecDef{on: true})
		e.say(msgSpecialReady, params{"name": e.sideName(side)})
	}

	target := "enemy"
	if s.Mode == ModePvP {
		target = "player"
	}
	e.renderer.PlayEffect(EffectRequest{Element: mv.Type, MoveIndex: idx, MoveLevel: lvl, Target: target}, nil)
	e.audio.PlaySfx("hit_" + mv.Type)
	e.after(e.delays.Attack, func() { e.applyPlayerHit(side, idx, pow, slot) })
}

// applyPlayerHit lands the damage and elemental side effects.
func (e *Engine) applyPlayerHit(side, idx, pow, slot int) {
	s := e.latest
	mv := e.run.starters[side].Moves[idx]
	lvl := s.Levels(side)[idx]
	name := e.sideName(side)

	mult := StreakMult(s.Streak)
	if s.Cursed {
		mult = 1
		e.dispatch(setCursed{on: false})
		e.say(msgCurseLifted, params{"name": name})
	}

	if s.Mode == ModePvP {
		other := 1 - side
		eff := DualEff(mv.Type, e.run.starters[other].Types)
		dmg := Damage(pow, mult, s.PStg, eff)
		e.dispatch(damagePlayer{side: other, amount: dmg})
		e.emit(DamageEvent{Target: "player", Slot: other, Amount: dmg, Eff: eff, Source: mv.Name})
		e.say(msgHit, params{"name": name, "move": mv.Name, "dmg": dmg})
		if hp, _ := e.latest.SideHP(other); hp > 0 && mv.Type == TypeGrass {
			e.heal(side, healPerLevel*lvl)
		}
		e.after(e.delays.Status, e.resolveStatus)
		return
	}

	en, hp, st := s.EnemyAt(slot)
	if en == nil || hp <= 0 {
		slot = 1 - slot
		en, hp, st = s.EnemyAt(slot)
	}
	if en == nil || hp <= 0 {
		e.after(e.delays.Status, e.resolveStatus)
		return
	}

	eff := DualEff(mv.Type, en.Types)
	dmg := Damage(pow, mult, s.PStg, eff)
	if en.Boss && !st.Shattered {
		if eff >= EffSuper {
			st.Shattered = true
			e.say(msgShatter, params{"enemy": en.DisplayName()})
		} else {
			dmg = max(1, round(float64(dmg)*bossArmorMult))
			e.say(msgArmor, params{"enemy": en.DisplayName()})
		}
	}
	e.dispatch(damageEnemy{slot: slot, amount: dmg})
	e.emit(DamageEvent{Target: "enemy", Slot: slot, Amount: dmg, Eff: eff, Source: mv.Name})
	e.say(msgHit, params{"name": name, "move": mv.Name, "dmg": dmg})
	switch {
	case eff > EffNeutral:
		e.say(msgSuper, nil)
	case eff < EffNeutral:
		e.say(msgResist, nil)
	}

	_, hpAfter, _ := e.latest.EnemyAt(slot)
	if hpAfter > 0 {
		if e.run.rules.statuses() {
			e.applyElement(mv.Type, lvl, en, &st)
		}
		if mv.Type == TypeGrass {
			e.heal(side, healPerLevel*lvl)
		}
		if en.Boss && !st.Enraged && hpAfter*2 <= en.MaxHP {
			st.Enraged = true
			e.say(msgEnrage, params{"enemy": en.DisplayName()})
		}
	}
	e.dispatch(setStatus{slot: slot, st: st})
	e.after(e.delays.Status, e.resolveStatus)
}

func (e *Engine) applyElement(typ string, lvl int, en *Enemy, st *Status) {
	name := en.DisplayName()
	switch typ {
	case TypeFire:
		st.BurnStack = min(MaxBurnStack, st.BurnStack+1)
		e.say(msgBurn, params{"enemy": name, "stack": st.BurnStack})
	case TypeWater:
		if e.rng.Chance(FreezeChance(lvl)) {
			st.Frozen = true
			e.say(msgFreeze, params{"enemy": name})
		}
	case TypeElectric:
		st.StaticStack++
		if st.StaticStack >= MaxStaticStack {
			st.StaticStack = 0
			st.Paralyzed = true
			e.say(msgParalyze, params{"enemy": name})
		} else {
			e.say(msgStatic, params{"enemy": name, "stack": st.StaticStack})
		}
	}
}

func (e *Engine) heal(side, amount int) {
	before, _ := e.latest.SideHP(side)
	e.dispatch(healPlayer{side: side, amount: amount})
	after, _ := e.latest.SideHP(side)
	if after > before {
		e.say(msgHeal, params{"name": e.sideName(side), "hp": after - before})
	}
}

// resolveStatus applies burn chip damage and decides how the turn goes on.
func (e *Engine) resolveStatus() {
	if e.run.rules.statuses() {
		e.burnTick(false)
	}
	s := e.latest
	if e.run.rules.partyDown(s) {
		e.handleKO()
		return
	}
	if s.EnemiesDefeated() {
		e.handleVictory()
		return
	}
	e.run.rules.endPlayerTurn(e)
}

// burnTick deals stack*2 to each burning enemy still standing. A tick
// caused by a missed turn also burns off one stack.
func (e *Engine) burnTick(decay bool) {
	for slot := 0; slot < 2; slot++ {
		en, hp, st := e.latest.EnemyAt(slot)
		if en == nil || hp <= 0 || st.BurnStack <= 0 {
			continue
		}
		chip := st.BurnStack * burnChipPerStack
		e.dispatch(damageEnemy{slot: slot, amount: chip})
		e.emit(DamageEvent{Target: "enemy", Slot: slot, Amount: chip, Source: "burn"})
		e.say(msgBurnTick, params{"enemy": en.DisplayName(), "dmg": chip})
		if decay {
			st.BurnStack--
			e.dispatch(setStatus{slot: slot, st: st})
		}
	}
}

// resolveMiss handles a wrong answer or a timeout.
func (e *Engine) resolveMiss(timedOut bool) {
	s := e.latest
	side, idx := s.Active, s.SelIdx
	mv := e.run.starters[side].Moves[idx]
	answer := s.Question.Answer.String()

	e.dispatch(grade{correct: false})
	e.transition(PhaseText)
	if timedOut {
		e.say(msgTimeout, params{"answer": answer})
		e.emit(TimerEvent{RemainingMs: 0})
	} else {
		e.say(msgWrong, params{"answer": answer})
	}
	e.audio.PlaySfx("wrong")

	if mv.Risky {
		dmg := RecoilDamage(MovePower(mv, s.Levels(side)[idx]))
		e.dispatch(damagePlayer{side: side, amount: dmg})
		e.emit(DamageEvent{Target: "player", Slot: side, Amount: dmg, Source: "recoil"})
		e.say(msgRecoil, params{"name": e.sideName(side), "dmg": dmg})
	}
	e.after(e.delays.Text, e.afterMiss)
}

func (e *Engine) afterMiss() {
	if e.run.rules.partyDown(e.latest) {
		e.handleKO()
		return
	}
	if e.run.rules.statuses() {
		e.burnTick(true)
	}
	if e.latest.EnemiesDefeated() {
		e.handleVictory()
		return
	}
	e.run.rules.endPlayerTurn(e)
}

// passTurn hands a pvp duel to the other player.
func (e *Engine) passTurn() {
	e.dispatch(passTurn{})
	e.transition(PhaseText)
	e.say(msgPvPTurn, params{"side": e.latest.Active + 1})
	e.after(e.delays.Text, e.backToMenu)
}

// backToMenu ends a turn cycle and writes the mid-run save.
func (e *Engine) backToMenu() {
	if !e.transition(PhaseMenu) {
		return
	}
	e.say(msgChoose, params{"name": e.sideName(e.latest.Active)})
	e.saveSnapshot()
}
