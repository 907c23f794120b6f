package record

import "sort"

// Achievement identifiers.
const (
	AchFirstWin         = "first_win"
	AchStreak10         = "streak_10"
	AchNoDamageBattle   = "no_damage_battle"
	AchPerfectRun       = "perfect_run"
	AchTimedClear       = "timed_clear"
	AchFullEncyclopedia = "full_encyclopedia"
	AchFinalEvolution   = "final_evolution"
	AchBossSlayer       = "boss_slayer"
	AchTower10          = "tower_10"
	AchDailyClear       = "daily_clear"
	AchCoopClear        = "coop_clear"
	AchPvPWin           = "pvp_win"
	AchLevel10          = "level_10"
)

// AllAchievements lists every id in display order.
var AllAchievements = []string{
	AchFirstWin, AchStreak10, AchNoDamageBattle, AchPerfectRun, AchTimedClear,
	AchFullEncyclopedia, AchFinalEvolution, AchBossSlayer, AchTower10,
	AchDailyClear, AchCoopClear, AchPvPWin, AchLevel10,
}

// Set is a grow-only set of unlocked achievement ids.
type Set map[string]bool

// Has reports whether id is unlocked.
func (s Set) Has(id string) bool { return s[id] }

// Unlock adds ids and returns the ones that were not already present, in
// argument order. Unlocking never removes anything.
func (s Set) Unlock(ids ...string) []string {
	var fresh []string
	for _, id := range ids {
		if id == "" || s[id] {
			continue
		}
		s[id] = true
		fresh = append(fresh, id)
	}
	return fresh
}

// Merge unions other into s.
func (s Set) Merge(other Set) {
	for id, ok := range other {
		if ok {
			s[id] = true
		}
	}
}

// IDs returns the unlocked ids sorted.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id, ok := range s {
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// BattleStats describes one won encounter.
type BattleStats struct {
	DamageTaken int
	Boss        bool
	PlayerLevel int
	Stage       int
	MaxStage    int
}

// OnBattleWon returns the achievements earned by a single victory.
func OnBattleWon(b BattleStats) []string {
	ids := []string{AchFirstWin}
	if b.DamageTaken == 0 {
		ids = append(ids, AchNoDamageBattle)
	}
	if b.Boss {
		ids = append(ids, AchBossSlayer)
	}
	if b.PlayerLevel >= 10 {
		ids = append(ids, AchLevel10)
	}
	if b.MaxStage > 0 && b.Stage >= b.MaxStage {
		ids = append(ids, AchFinalEvolution)
	}
	return ids
}

// StreakGoal is the run of consecutive correct answers behind streak_10.
const StreakGoal = 10

// OnAnswer returns the achievements earned by the answer that brought the
// log's streak to streak.
func OnAnswer(streak int) []string {
	if streak >= StreakGoal {
		return []string{AchStreak10}
	}
	return nil
}

// RunStats describes a finished run for the end-of-run sweep.
type RunStats struct {
	Mode         string
	Completed    bool
	Timed        bool
	Wrong        int
	TowerFloor   int
	PvPWinner    int
	Encyclopedia Encyclopedia
	AllEnemyIDs  []string
}

// Sweep evaluates end-of-run conditions.
func Sweep(r RunStats) []string {
	var ids []string
	// A duel ends with a KO on either side, so only pvp_win applies to it.
	if r.Completed && r.Mode != "pvp" {
		if r.Wrong == 0 {
			ids = append(ids, AchPerfectRun)
		}
		if r.Timed {
			ids = append(ids, AchTimedClear)
		}
	}
	if r.Completed {
		switch r.Mode {
		case "challenge":
			ids = append(ids, AchDailyClear)
		case "coop":
			ids = append(ids, AchCoopClear)
		case "pvp":
			if r.PvPWinner >= 0 {
				ids = append(ids, AchPvPWin)
			}
		}
	}
	if r.TowerFloor >= 10 {
		ids = append(ids, AchTower10)
	}
	if len(r.AllEnemyIDs) > 0 && r.Encyclopedia.Complete(r.AllEnemyIDs) {
		ids = append(ids, AchFullEncyclopedia)
	}
	return ids
}
