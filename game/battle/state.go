package battle

import (
	"github.com/kasuganosora/mathmon/server/game/question"
	"github.com/kasuganosora/mathmon/server/resource"
)

// Phase is the battle-screen sub-state.
type Phase string

const (
	PhaseMenu      Phase = "menu"
	PhaseQuestion  Phase = "question"
	PhaseText      Phase = "text"
	PhasePlayerAtk Phase = "playerAtk"
	PhaseEnemyAtk  Phase = "enemyAtk"
	PhaseVictory   Phase = "victory"
	PhaseKO        Phase = "ko"
)

// Screen is the engine's navigation signal.
type Screen string

const (
	ScreenTitle     Screen = "title"
	ScreenSelection Screen = "selection"
	ScreenBattle    Screen = "battle"
	ScreenEvolve    Screen = "evolve"
	ScreenGameOver  Screen = "gameover"
)

// Tier is the difficulty tier.
type Tier string

const (
	TierNormal Tier = "normal"
	TierHard   Tier = "hard"
)

// Enemy is one encounter's opponent: a template combined with the
// encounter's scale, variant and evolution. Never mutated once built.
type Enemy struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Variant string          `json:"variant,omitempty"`
	Types   []string        `json:"types"`
	MaxHP   int             `json:"max_hp"`
	Atk     int             `json:"atk"`
	Level   int             `json:"level"`
	Boss    bool            `json:"boss,omitempty"`
	Evolved bool            `json:"evolved,omitempty"`
	Drops   []resource.Drop `json:"drops,omitempty"`
}

// Encounter is the enemy line-up of one round.
type Encounter struct {
	Primary *Enemy `json:"primary"`
	Sub     *Enemy `json:"sub,omitempty"`
}

// Status is the set of status effects on one enemy.
type Status struct {
	BurnStack   int  `json:"burn_stack"`
	Frozen      bool `json:"frozen"`
	StaticStack int  `json:"static_stack"`
	Paralyzed   bool `json:"paralyzed"`
	Shattered   bool `json:"shattered"`
	Enraged     bool `json:"enraged"`
}

// Reward summarises the last victory.
type Reward struct {
	XP        int      `json:"xp"`
	Drops     []string `json:"drops,omitempty"`
	LeveledTo int      `json:"leveled_to,omitempty"`
}

// State is the battle aggregate. It is only ever replaced through reduce;
// pointer and map fields are treated as immutable once committed.
type State struct {
	Screen Screen `json:"screen"`
	Phase  Phase  `json:"phase"`
	Mode   Mode   `json:"mode"`
	Tier   Tier   `json:"tier"`
	Timed  bool   `json:"timed"`
	Paused bool   `json:"paused"`

	Modifier Modifier `json:"modifier,omitempty"`

	Round      int    `json:"round"`
	Floor      int    `json:"floor,omitempty"`
	Enemy      *Enemy `json:"enemy"`
	EnemySub   *Enemy `json:"enemy_sub,omitempty"`
	EHp        int    `json:"e_hp"`
	EHpSub     int    `json:"e_hp_sub"`
	EStatus    Status `json:"e_status"`
	EStatusSub Status `json:"e_status_sub"`

	StarterID string `json:"starter_id"`
	PartnerID string `json:"partner_id,omitempty"`
	Active    int    `json:"active"`
	PHp       int    `json:"p_hp"`
	PHpSub    int    `json:"p_hp_sub"`
	PMaxHp    int    `json:"p_max_hp"`
	PMaxHpSub int    `json:"p_max_hp_sub"`
	PExp      int    `json:"p_exp"`
	PLvl      int    `json:"p_lvl"`
	PStg      int    `json:"p_stg"`

	Streak int `json:"streak"`
	Charge int `json:"charge"`
	// Streak and charge of the waiting side in pvp; swapped on every turn.
	RivalStreak int `json:"rival_streak,omitempty"`
	RivalCharge int `json:"rival_charge,omitempty"`

	MHits    [4]int `json:"m_hits"`
	MLvls    [4]int `json:"m_lvls"`
	MHitsSub [4]int `json:"m_hits_sub"`
	MLvlsSub [4]int `json:"m_lvls_sub"`

	SpecDef bool `json:"spec_def"`
	Cursed  bool `json:"cursed"`
	Shield  bool `json:"shield"`

	Question *question.Question `json:"question,omitempty"`
	SelIdx   int                `json:"sel_idx"`
	Answered bool               `json:"answered"`
	AskedAt  int64              `json:"asked_at,omitempty"`

	MsgKey    string         `json:"msg_key,omitempty"`
	MsgParams map[string]any `json:"msg_params,omitempty"`
	Message   string         `json:"message,omitempty"`

	PendingEvolve bool    `json:"pending_evolve"`
	LastReward    *Reward `json:"last_reward,omitempty"`
	BattleDamage  int     `json:"battle_damage"`
	Winner        int     `json:"winner"`
	Completed     bool    `json:"completed"`

	Inventory map[string]int `json:"inventory,omitempty"`
}

// EnemyAt returns the enemy in slot 0 (primary) or 1 (sub).
func (s State) EnemyAt(slot int) (*Enemy, int, Status) {
	if slot == 1 {
		return s.EnemySub, s.EHpSub, s.EStatusSub
	}
	return s.Enemy, s.EHp, s.EStatus
}

// SideHP returns the HP and max HP of a player side.
func (s State) SideHP(side int) (hp, maxHP int) {
	if side == 1 {
		return s.PHpSub, s.PMaxHpSub
	}
	return s.PHp, s.PMaxHp
}

// Levels returns the move levels of a player side.
func (s State) Levels(side int) [4]int {
	if side == 1 {
		return s.MLvlsSub
	}
	return s.MLvls
}

// EnemiesDefeated reports whether every enemy of the encounter is down.
func (s State) EnemiesDefeated() bool {
	if s.Enemy == nil {
		return false
	}
	if s.EHp > 0 {
		return false
	}
	return s.EnemySub == nil || s.EHpSub <= 0
}

// Redacted returns a copy safe to show to the answering player: while a
// question is open its answer and worked steps are hidden.
func (s State) Redacted() State {
	if s.Question != nil && !s.Answered {
		q := *s.Question
		q.Answer = question.Value{}
		q.Steps = nil
		s.Question = &q
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
