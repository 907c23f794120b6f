package battle

// Message keys. The English text doubles as the fallback when the
// translator has no entry.
const (
	msgAppear        = "battle.appear"
	msgAppearPair    = "battle.appear_pair"
	msgChoose        = "battle.choose"
	msgCorrect       = "battle.correct"
	msgWrong         = "battle.wrong"
	msgTimeout       = "battle.timeout"
	msgHit           = "battle.hit"
	msgSuper         = "battle.super"
	msgResist        = "battle.resist"
	msgBurn          = "battle.burn"
	msgBurnTick      = "battle.burn_tick"
	msgFreeze        = "battle.freeze"
	msgFrozenSkip    = "battle.frozen_skip"
	msgParalyze      = "battle.paralyze"
	msgParalyzedSkip = "battle.paralyzed_skip"
	msgStatic        = "battle.static"
	msgHeal          = "battle.heal"
	msgEnemyAttack   = "battle.enemy_attack"
	msgCrit          = "battle.crit"
	msgBlock         = "battle.block"
	msgDodge         = "battle.dodge"
	msgReflect       = "battle.reflect"
	msgSpecialReady  = "battle.special_ready"
	msgRecoil        = "battle.recoil"
	msgMoveUp        = "battle.move_up"
	msgVictory       = "battle.victory"
	msgLevelUp       = "battle.level_up"
	msgDrop          = "battle.drop"
	msgEvolve        = "battle.evolve"
	msgKO            = "battle.ko"
	msgShieldBlock   = "battle.shield_block"
	msgArmor         = "battle.armor"
	msgShatter       = "battle.shatter"
	msgEnrage        = "battle.enrage"
	msgCursed        = "battle.cursed"
	msgCurseLifted   = "battle.curse_lifted"
	msgItemUsed      = "battle.item_used"
	msgRunClear      = "battle.run_clear"
	msgPvPTurn       = "pvp.turn"
	msgPvPWin        = "pvp.win"
	msgTowerFloor    = "tower.floor"
)

var fallbacks = map[string]string{
	msgAppear:        "A wild {enemy} appeared!",
	msgAppearPair:    "{enemy} and {sub} appeared!",
	msgChoose:        "What will {name} do?",
	msgCorrect:       "Correct!",
	msgWrong:         "Wrong! The answer was {answer}.",
	msgTimeout:       "Time's up! The answer was {answer}.",
	msgHit:           "{name} used {move}! {dmg} damage.",
	msgSuper:         "It's super effective!",
	msgResist:        "It's not very effective...",
	msgBurn:          "{enemy} is burned! (x{stack})",
	msgBurnTick:      "{enemy} takes {dmg} burn damage.",
	msgFreeze:        "{enemy} froze solid!",
	msgFrozenSkip:    "{enemy} is frozen and can't move!",
	msgParalyze:      "{enemy} is paralyzed by static!",
	msgParalyzedSkip: "{enemy} is paralyzed and can't move!",
	msgStatic:        "Static builds up on {enemy}. ({stack}/3)",
	msgHeal:          "{name} recovered {hp} HP.",
	msgEnemyAttack:   "{enemy} attacks! {dmg} damage.",
	msgCrit:          "A critical hit!",
	msgBlock:         "{name} blocked the attack!",
	msgDodge:         "{name} dodged the attack!",
	msgReflect:       "{name} reflected {dmg} damage!",
	msgSpecialReady:  "{name} is ready to defend!",
	msgRecoil:        "{name} took {dmg} recoil damage!",
	msgMoveUp:        "{move} grew to level {level}!",
	msgVictory:       "{enemy} was defeated! +{xp} XP",
	msgLevelUp:       "{name} reached level {level}!",
	msgDrop:          "{enemy} dropped {item}!",
	msgEvolve:        "{old} evolved into {new}!",
	msgKO:            "{name} fainted...",
	msgShieldBlock:   "The shield absorbed the attack!",
	msgArmor:         "{enemy}'s armor dulls the blow.",
	msgShatter:       "{enemy}'s armor shattered!",
	msgEnrage:        "{enemy} is enraged!",
	msgCursed:        "{name} is cursed!",
	msgCurseLifted:   "The curse weakens {name}'s strike.",
	msgItemUsed:      "Used {item}.",
	msgRunClear:      "You cleared every battle!",
	msgPvPTurn:       "Player {side}, your turn!",
	msgPvPWin:        "Player {side} wins!",
	msgTowerFloor:    "Floor {floor}",
}

type params = map[string]any
