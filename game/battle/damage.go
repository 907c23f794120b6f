package battle

import (
	"math"

	"github.com/kasuganosora/mathmon/server/resource"
)

const (
	MaxMoveLvl     = 6
	MaxStage       = 2
	MaxCharge      = 3
	MaxBurnStack   = 5
	MaxStaticStack = 3
	SpecDefStreak  = 8

	stageBonus       = 0.15
	riskyRecoil      = 0.4
	enemyScaleStep   = 0.12
	critChance       = 0.1
	critMult         = 1.5
	reflectMult      = 1.2
	bossArmorMult    = 0.7
	bossEnrageMult   = 1.3
	hardTierAtkMult  = 1.2
	atkUpModMult     = 1.2
	curseChance      = 0.3
	freezeBase       = 0.25
	freezePerLevel   = 0.03
	burnChipPerStack = 2
	healPerLevel     = 2
	evolvedStatMult  = 1.25
)

func round(x float64) int { return int(math.Round(x)) }

// MovePower is the move's power at level, never above its cap.
func MovePower(m resource.MoveDef, level int) int {
	if level < 1 {
		level = 1
	}
	p := m.BasePower + (level-1)*m.Growth
	if m.PowerCap > 0 && p > m.PowerCap {
		p = m.PowerCap
	}
	return p
}

// StreakMult is the damage multiplier earned by a streak of correct answers.
func StreakMult(streak int) float64 {
	switch {
	case streak >= 5:
		return 1.8
	case streak >= 3:
		return 1.5
	default:
		return 1.0
	}
}

// Damage is the player hit formula.
func Damage(power int, streakMult float64, stage int, eff float64) int {
	return round(float64(power) * streakMult * (1 + float64(stage)*stageBonus) * eff)
}

// RecoilDamage is the self-damage of a missed risky move.
func RecoilDamage(power int) int {
	return round(riskyRecoil * float64(power))
}

// EnemyDamage is the enemy hit formula. roll is a uniform sample in [0,1).
func EnemyDamage(atk float64, roll float64, eff float64, crit bool) int {
	m := 1.0
	if crit {
		m = critMult
	}
	d := round(atk * (0.9 + 0.2*roll) * eff * m)
	if d < 1 {
		d = 1
	}
	return d
}

// ReflectDamage is the counter dealt by a grass special defense.
func ReflectDamage(incoming int) int {
	return round(reflectMult * float64(incoming))
}

// FreezeChance is the water side effect probability.
func FreezeChance(moveLevel int) float64 {
	return freezeBase + float64(moveLevel)*freezePerLevel
}

// EnemyScale is the per-encounter stat multiplier.
func EnemyScale(index int) float64 {
	return 1 + float64(index)*enemyScaleStep
}

// ExpToLevel is the XP needed to leave level.
func ExpToLevel(level int) int { return level * 30 }

// EnemyXP is the XP awarded for defeating an enemy of level.
func EnemyXP(level int) int { return level * 15 }

// MoveLevelUpHits is the hit count that levels a move at level.
func MoveLevelUpHits(level int) int { return 3 * level }

// PlayerMaxHP derives the max HP of a starter.
func PlayerMaxHP(baseHP, level, stage, perkBonus int) int {
	return baseHP + (level-1)*8 + stage*20 + perkBonus
}
