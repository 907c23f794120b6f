package battle

import (
	"slices"
)

// beginEnemyTurn lets every standing enemy act, primary first.
func (e *Engine) beginEnemyTurn() {
	e.enemyStep(0)
}

func (e *Engine) enemyStep(slot int) {
	s := e.latest
	for ; slot < 2; slot++ {
		if en, hp, _ := s.EnemyAt(slot); en != nil && hp > 0 {
			break
		}
	}
	if slot >= 2 {
		e.endEnemyTurn()
		return
	}

	en, _, st := s.EnemyAt(slot)
	if st.Frozen || st.Paralyzed {
		key := msgParalyzedSkip
		if st.Frozen {
			key = msgFrozenSkip
			st.Frozen = false
		} else {
			st.Paralyzed = false
		}
		e.dispatch(setStatus{slot: slot, st: st})
		e.transition(PhaseText)
		e.say(key, params{"enemy": en.DisplayName()})
		next := slot + 1
		e.after(e.delays.Text, func() { e.enemyStep(next) })
		return
	}

	e.transition(PhaseEnemyAtk)
	e.audio.PlaySfx("enemy_windup")
	e.after(e.delays.EnemyWindup, func() { e.enemyStrike(slot) })
}

// enemyTarget picks the player side an enemy slot attacks: the primary
// goes for the active side, the sub for the other, falling back to
// whichever is standing. -1 when nobody is.
func (e *Engine) enemyTarget(slot int) int {
	s := e.latest
	want := s.Active
	if slot == 1 && e.run.rules.sides() == 2 {
		want = 1 - s.Active
	}
	if hp, _ := s.SideHP(want); hp > 0 {
		return want
	}
	if e.run.rules.sides() == 2 {
		if hp, _ := s.SideHP(1 - want); hp > 0 {
			return 1 - want
		}
	}
	return -1
}

func (e *Engine) enemyStrike(slot int) {
	s := e.latest
	en, hp, st := s.EnemyAt(slot)
	if en == nil || hp <= 0 {
		e.enemyStep(slot + 1)
		return
	}
	side := e.enemyTarget(slot)
	if side < 0 {
		e.handleKO()
		return
	}
	starter := e.run.starters[side]

	atk := float64(en.Atk)
	if st.Enraged {
		atk *= bossEnrageMult
	}
	if s.Tier == TierHard {
		atk *= hardTierAtkMult
	}
	if s.Modifier == ModEnemyAtkUp {
		atk *= atkUpModMult
	}
	attackType := ""
	if len(en.Types) > 0 {
		attackType = en.Types[0]
	}
	eff := DualEff(attackType, starter.Types)
	roll := e.rng.Rand()
	crit := e.rng.Chance(critChance)
	dmg := EnemyDamage(atk, roll, eff, crit)
	name := e.sideName(side)

	switch {
	case s.Shield:
		e.dispatch(setShield{on: false})
		e.say(msgShieldBlock, nil)
	case s.SpecDef:
		e.dispatch(consumeSpecDef{})
		switch starter.PrimaryType() {
		case TypeWater:
			e.say(msgDodge, params{"name": name})
		case TypeGrass:
			back := ReflectDamage(dmg)
			e.dispatch(damageEnemy{slot: slot, amount: back})
			e.emit(DamageEvent{Target: "enemy", Slot: slot, Amount: back, Source: "reflect"})
			e.say(msgReflect, params{"name": name, "dmg": back})
		default:
			e.say(msgBlock, params{"name": name})
		}
	default:
		e.dispatch(damagePlayer{side: side, amount: dmg, counted: true})
		e.run.log.AddDamageTaken(dmg)
		e.emit(DamageEvent{Target: "player", Slot: side, Amount: dmg, Eff: eff, Crit: crit, Source: en.ID})
		e.say(msgEnemyAttack, params{"enemy": en.DisplayName(), "dmg": dmg})
		if crit {
			e.say(msgCrit, nil)
		}
		if s.Tier == TierHard && !e.latest.Cursed && slices.Contains(en.Types, TypeDark) && e.rng.Chance(curseChance) {
			e.dispatch(setCursed{on: true})
			e.say(msgCursed, params{"name": name})
		}
	}
	e.renderer.PlayEffect(EffectRequest{Element: attackType, Target: "player"}, nil)
	e.audio.PlaySfx("enemy_hit")
	e.after(e.delays.EnemyHit, func() { e.afterStrike(slot) })
}

func (e *Engine) afterStrike(slot int) {
	s := e.latest
	if e.run.rules.partyDown(s) {
		e.handleKO()
		return
	}
	if s.EnemiesDefeated() {
		e.handleVictory()
		return
	}
	e.enemyStep(slot + 1)
}

// endEnemyTurn returns control to the player. In coop the active side
// alternates, skipping a fainted side.
func (e *Engine) endEnemyTurn() {
	s := e.latest
	if e.run.rules.sides() == 2 && s.Mode != ModePvP {
		next := 1 - s.Active
		if hp, _ := s.SideHP(next); hp <= 0 {
			next = s.Active
		}
		e.dispatch(setActive{side: next})
	}
	e.backToMenu()
}
