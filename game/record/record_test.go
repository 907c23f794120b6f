package record

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestLog_FinalizeOnce(t *testing.T) {
	l := NewLog("run-1", "p1", "single", "ember", t0)
	l.Append(Event{Kind: EventAnswer, Op: "+", Correct: true})
	l.Append(Event{Kind: EventAnswer, Op: "+", Correct: true})
	l.Append(Event{Kind: EventAnswer, Op: "-", Correct: false})
	l.Append(Event{Kind: EventAnswer, Op: "×", Correct: true})
	l.Append(Event{Kind: EventBattle, Result: "win"})
	l.AddDamageTaken(7)

	s, ok := l.Finalize(true, t0.Add(90*time.Second))
	require.True(t, ok)
	assert.Equal(t, 3, s.Correct)
	assert.Equal(t, 1, s.Wrong)
	assert.InDelta(t, 0.75, s.Accuracy, 1e-9)
	assert.Equal(t, 2, s.MaxStreak)
	assert.Equal(t, 1, s.RoundsCleared)
	assert.Equal(t, 7, s.DamageTaken)
	assert.Equal(t, 90*time.Second, s.Duration)
	assert.True(t, s.Completed)

	l.Append(Event{Kind: EventAnswer, Correct: false})
	again, ok := l.Finalize(false, t0.Add(time.Hour))
	assert.False(t, ok)
	assert.Equal(t, s.EndedAt, again.EndedAt)
	assert.True(t, again.Completed)
	assert.Len(t, l.Events(), 5)
}

func TestSet_UnlockIsIdempotentUnion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := Set{}
		var all []string
		rounds := rapid.IntRange(1, 20).Draw(rt, "rounds")
		for i := 0; i < rounds; i++ {
			ids := rapid.SliceOfN(rapid.SampledFrom(AllAchievements), 0, 5).Draw(rt, "ids")
			before := len(s)
			fresh := s.Unlock(ids...)
			if len(s) != before+len(fresh) {
				rt.Fatalf("fresh %v does not match growth %d -> %d", fresh, before, len(s))
			}
			all = append(all, ids...)
			for _, id := range all {
				if !s.Has(id) {
					rt.Fatalf("%s was revoked", id)
				}
			}
		}
	})
}

func TestOnBattleWon(t *testing.T) {
	ids := OnBattleWon(BattleStats{DamageTaken: 0, Boss: true, PlayerLevel: 10, Stage: 2, MaxStage: 2})
	assert.ElementsMatch(t, []string{AchFirstWin, AchNoDamageBattle, AchBossSlayer, AchLevel10, AchFinalEvolution}, ids)

	ids = OnBattleWon(BattleStats{DamageTaken: 3, PlayerLevel: 2, MaxStage: 2})
	assert.Equal(t, []string{AchFirstWin}, ids)
}

func TestOnAnswer_StreakGoal(t *testing.T) {
	l := NewLog("run-1", "p1", "single", "ember", t0)
	var got []string
	for i := 0; i < StreakGoal; i++ {
		assert.Empty(t, got, "unlocked before answer %d", i+1)
		l.Append(Event{Kind: EventAnswer, Correct: true})
		got = OnAnswer(l.Streak())
	}
	assert.Equal(t, []string{AchStreak10}, got)

	l.Append(Event{Kind: EventAnswer, Correct: false})
	assert.Zero(t, l.Streak())
	assert.Empty(t, OnAnswer(l.Streak()))
}

func TestRestoreLog_ContinuesCounters(t *testing.T) {
	l := NewLog("run-1", "p1", "single", "ember", t0)
	l.Append(Event{Kind: EventAnswer, Correct: false})
	l.Append(Event{Kind: EventAnswer, Correct: true})
	l.Append(Event{Kind: EventAnswer, Correct: true})
	l.Append(Event{Kind: EventBattle, Result: "win"})
	l.AddDamageTaken(5)

	st := l.State()
	st.Events[0].Op = "mutated"
	r := RestoreLog("run-1", "p1", "single", "ember", t0, l.State())
	assert.Equal(t, 2, r.Streak())
	assert.Empty(t, l.Events()[0].Op)

	r.Append(Event{Kind: EventAnswer, Correct: true})
	r.AddDamageTaken(2)
	s, ok := r.Finalize(true, t0.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, 3, s.Correct)
	assert.Equal(t, 1, s.Wrong)
	assert.Equal(t, 3, s.MaxStreak)
	assert.Equal(t, 1, s.RoundsCleared)
	assert.Equal(t, 7, s.DamageTaken)
	assert.Equal(t, t0, s.StartedAt)
	assert.Len(t, s.Events, 5)
}

func TestSweep(t *testing.T) {
	enc := Encyclopedia{}
	enc.Defeat("slime")
	enc.Defeat("bat")

	ids := Sweep(RunStats{Mode: "challenge", Completed: true, Timed: true, Encyclopedia: enc, AllEnemyIDs: []string{"slime", "bat"}})
	assert.ElementsMatch(t, []string{AchPerfectRun, AchTimedClear, AchDailyClear, AchFullEncyclopedia}, ids)

	ids = Sweep(RunStats{Mode: "tower", TowerFloor: 11, Wrong: 4, AllEnemyIDs: []string{"slime", "golem"}, Encyclopedia: enc})
	assert.Equal(t, []string{AchTower10}, ids)

	ids = Sweep(RunStats{Mode: "pvp", Completed: true, Wrong: 1, PvPWinner: 1})
	assert.Equal(t, []string{AchPvPWin}, ids)

	ids = Sweep(RunStats{Mode: "pvp", Completed: true, Timed: true, PvPWinner: 0})
	assert.Equal(t, []string{AchPvPWin}, ids)
}

func TestEncyclopediaAndPerks(t *testing.T) {
	enc := Encyclopedia{}
	enc.See("slime")
	enc.See("slime")
	enc.Defeat("slime")
	enc.Defeat("wisp")
	assert.Equal(t, Entry{Seen: 2, Defeated: 1}, enc["slime"])
	assert.Equal(t, Entry{Seen: 1, Defeated: 1}, enc["wisp"])
	assert.Equal(t, 2, enc.DistinctDefeated())
	assert.Equal(t, Perks{MaxHPBonus: 4}, PerksFor(enc))

	for i := 0; i < 12; i++ {
		enc.Defeat(fmt.Sprintf("e%d", i))
	}
	p := PerksFor(enc)
	assert.Equal(t, 20, p.MaxHPBonus)
	assert.InDelta(t, 0.10, p.XPBonus, 1e-9)

	clone := enc.Clone()
	clone.Defeat("slime")
	assert.Equal(t, 1, enc["slime"].Defeated)
}
