package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/scheduler"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	e     *Engine
	clock *scheduler.ManualClock
	store *MemoryStore
	repos Repositories
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos, store := MemoryRepositories()
	clock := scheduler.NewManualClock(t0)
	e := NewEngine(Config{
		PlayerID:  "p1",
		Resources: resource.MustLoadDefault(),
		Repos:     repos,
		Clock:     clock,
	})
	return &fixture{t: t, e: e, clock: clock, store: store, repos: repos}
}

func (f *fixture) start(opts StartOptions) {
	f.t.Helper()
	if opts.StarterID == "" {
		opts.StarterID = "ember"
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	require.NoError(f.t, f.e.StartGame(opts))
}

// set edits the committed state directly and re-syncs the phase machine.
func (f *fixture) set(mut func(s *State)) {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	s := f.e.latest
	mut(&s)
	f.e.latest = s
	f.e.resetPhases()
}

func (f *fixture) answer(correct bool) bool {
	f.t.Helper()
	s := f.e.Snapshot()
	require.NotNil(f.t, s.Question)
	idx := s.Question.AnswerIndex()
	require.GreaterOrEqual(f.t, idx, 0)
	if !correct {
		idx = (idx + 1) % len(s.Question.Choices)
	}
	return f.e.OnAnswer(idx)
}

func (f *fixture) advance(d time.Duration) { f.clock.Advance(d) }

func dummy(hp, atk, level int, types ...string) *Enemy {
	if len(types) == 0 {
		types = []string{TypeLight}
	}
	return &Enemy{ID: "dummy", Name: "Dummy", Types: types, MaxHP: hp, Atk: atk, Level: level}
}

func withEnemy(en *Enemy) func(s *State) {
	return func(s *State) {
		s.Enemy = en
		s.EHp = en.MaxHP
		s.EStatus = Status{}
	}
}

func TestStartGame_UnknownStarter(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.e.StartGame(StartOptions{StarterID: "nobody"}), ErrUnknownStarter)
	assert.ErrorIs(t, f.e.StartGame(StartOptions{StarterID: "ember", Mode: "arena"}), ErrUnknownMode)
	assert.Equal(t, ScreenTitle, f.e.Snapshot().Screen)
}

func TestStartGame_FreshState(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})

	s := f.e.Snapshot()
	assert.Equal(t, ScreenBattle, s.Screen)
	assert.Equal(t, PhaseMenu, s.Phase)
	assert.Equal(t, 0, s.Round)
	require.NotNil(t, s.Enemy)
	assert.Equal(t, "slime", s.Enemy.ID)
	assert.Equal(t, s.Enemy.MaxHP, s.EHp)
	assert.Equal(t, 60, s.PMaxHp)
	assert.Equal(t, s.PMaxHp, s.PHp)
	assert.Equal(t, [4]int{1, 1, 1, 1}, s.MLvls)
	assert.Equal(t, map[string]int{"potion": 2, "shield": 1}, s.Inventory)
	assert.Len(t, f.e.run.roster, 8)
}

func TestCorrectAnswer_ComboDamageAndBurn(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(100, 1, 1)))
	f.set(func(s *State) { s.Streak = 4 })

	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))
	s := f.e.Snapshot()
	assert.Equal(t, PhasePlayerAtk, s.Phase)
	assert.Equal(t, 5, s.Streak)
	assert.Equal(t, 100, s.EHp, "damage lands after the attack delay")

	f.advance(DefaultDelays().Attack)
	s = f.e.Snapshot()
	assert.Equal(t, 82, s.EHp)
	assert.Equal(t, 1, s.EStatus.BurnStack)

	f.advance(DefaultDelays().Status)
	s = f.e.Snapshot()
	assert.Equal(t, 80, s.EHp)
	assert.Equal(t, PhaseEnemyAtk, s.Phase)
}

func TestAnswer_Guards(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})

	assert.False(t, f.e.OnAnswer(0), "no question yet")
	require.True(t, f.e.SelectMove(0))
	assert.False(t, f.e.SelectMove(1), "already asking")
	assert.False(t, f.e.OnAnswer(7))
	require.True(t, f.answer(true))
	assert.False(t, f.e.OnAnswer(0), "answered once")
}

func TestSelectMove_RiskyLockedUntilCharged(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})

	assert.False(t, f.e.SelectMove(3))
	f.set(func(s *State) { s.Charge = MaxCharge })
	assert.True(t, f.e.SelectMove(3))
}

func TestRiskyMiss_RecoilCanKO(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(func(s *State) {
		s.Charge = MaxCharge
		s.Streak = 6
		s.PHp = 1
	})

	require.True(t, f.e.SelectMove(3))
	require.True(t, f.answer(false))
	s := f.e.Snapshot()
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, 0, s.Charge)
	assert.Equal(t, 0, s.PHp)
	assert.Equal(t, PhaseText, s.Phase)

	f.advance(DefaultDelays().Text)
	assert.Equal(t, PhaseKO, f.e.Snapshot().Phase)

	f.advance(DefaultDelays().KO)
	s = f.e.Snapshot()
	assert.Equal(t, ScreenGameOver, s.Screen)
	assert.False(t, s.Completed)

	sessions, err := f.store.ListSessions("p1", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Completed)
	assert.Equal(t, 1, sessions[0].Wrong)

	assert.True(t, f.e.Advance())
	assert.Equal(t, ScreenTitle, f.e.Snapshot().Screen)
}

func TestTimeout_FiresOnceAtLimit(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{Timed: true})
	f.set(withEnemy(dummy(100, 1, 1)))
	f.set(func(s *State) {
		s.Streak = 3
		s.Charge = 2
	})
	events, cancel := f.e.Subscribe(256)
	defer cancel()

	require.True(t, f.e.SelectMove(0))
	f.advance(9999 * time.Millisecond)
	assert.Equal(t, PhaseQuestion, f.e.Snapshot().Phase)

	f.advance(time.Millisecond)
	s := f.e.Snapshot()
	assert.Equal(t, PhaseText, s.Phase)
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, 0, s.Charge)
	assert.Equal(t, msgTimeout, s.MsgKey)

	f.advance(DefaultDelays().Text)
	assert.Equal(t, PhaseEnemyAtk, f.e.Snapshot().Phase)
	f.advance(20 * time.Second)

	timeouts, ticks := 0, 0
	for len(events) > 0 {
		switch ev := (<-events).(type) {
		case MessageEvent:
			if ev.Key == msgTimeout {
				timeouts++
			}
		case TimerEvent:
			if ev.RemainingMs > 0 {
				ticks++
			}
		}
	}
	assert.Equal(t, 1, timeouts)
	assert.Equal(t, 9, ticks)
}

func TestPause_FreezesCountdownOnly(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{Timed: true})

	require.True(t, f.e.SelectMove(0))
	f.advance(4 * time.Second)
	require.True(t, f.e.TogglePause())
	assert.False(t, f.answer(true), "answers are ignored while paused")
	f.advance(time.Minute)
	assert.Equal(t, PhaseQuestion, f.e.Snapshot().Phase)

	require.True(t, f.e.TogglePause())
	f.advance(5999 * time.Millisecond)
	assert.Equal(t, PhaseQuestion, f.e.Snapshot().Phase)
	f.advance(time.Millisecond)
	assert.Equal(t, PhaseText, f.e.Snapshot().Phase)
}

func winRound(t *testing.T, f *fixture) {
	t.Helper()
	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))
	f.advance(DefaultDelays().Attack + DefaultDelays().Status)
}

func TestVictory_LevelsAndGatesEvolution(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(1, 1, 1)))
	f.set(func(s *State) {
		s.PLvl = 2
		s.PExp = 55
	})

	winRound(t, f)
	s := f.e.Snapshot()
	require.Equal(t, PhaseVictory, s.Phase)
	assert.Equal(t, 3, s.PLvl)
	assert.Equal(t, 10, s.PExp)
	assert.True(t, s.PendingEvolve)
	assert.Equal(t, PlayerMaxHP(60, 3, 0, 0), s.PMaxHp)
	require.NotNil(t, s.LastReward)
	assert.Equal(t, 15, s.LastReward.XP)

	f.advance(time.Minute)
	assert.Equal(t, PhaseVictory, f.e.Snapshot().Phase)

	require.True(t, f.e.Advance())
	assert.Equal(t, ScreenEvolve, f.e.Snapshot().Screen)

	require.True(t, f.e.Advance())
	s = f.e.Snapshot()
	assert.Equal(t, ScreenBattle, s.Screen)
	assert.Equal(t, PhaseMenu, s.Phase)
	assert.Equal(t, 1, s.PStg)
	assert.False(t, s.PendingEvolve)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, s.PMaxHp, s.PHp)
	assert.Equal(t, [4]int{2, 2, 2, 2}, s.MLvls)

	ach, _ := f.store.LoadAchievements("p1")
	assert.True(t, ach.Has(record.AchFirstWin))
	enc, _ := f.store.LoadEncyclopedia("p1")
	assert.Equal(t, 1, enc["dummy"].Defeated)
}

func TestVictory_WithoutEvolutionGoesToNextRound(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(1, 1, 1)))

	winRound(t, f)
	require.Equal(t, PhaseVictory, f.e.Snapshot().Phase)
	assert.False(t, f.e.Snapshot().PendingEvolve)
	require.True(t, f.e.Advance())
	s := f.e.Snapshot()
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, "bat", s.Enemy.ID)
}

func TestRosterExhausted_CompletesRun(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(1, 1, 1)))
	f.set(func(s *State) { s.Round = 7 })
	events, cancel := f.e.Subscribe(256)
	defer cancel()

	winRound(t, f)
	require.True(t, f.e.Advance())
	s := f.e.Snapshot()
	assert.Equal(t, ScreenGameOver, s.Screen)
	assert.True(t, s.Completed)

	sessions, _ := f.store.ListSessions("p1", 0)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Completed)
	assert.Equal(t, 1, sessions[0].RoundsCleared)
	assert.Equal(t, 1.0, sessions[0].Accuracy)

	ach, _ := f.store.LoadAchievements("p1")
	assert.True(t, ach.Has(record.AchPerfectRun))

	save, _ := f.store.LoadSave("p1")
	assert.Nil(t, save)

	var ended int
	for len(events) > 0 {
		if _, ok := (<-events).(RunEndEvent); ok {
			ended++
		}
	}
	assert.Equal(t, 1, ended)
}

func TestQuit_InvalidatesPendingWork(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(100, 1, 1)))

	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))
	require.Positive(t, f.e.gate.Pending())

	require.True(t, f.e.QuitGame())
	assert.Zero(t, f.e.gate.Pending())
	f.advance(time.Minute)

	s := f.e.Snapshot()
	assert.Equal(t, ScreenTitle, s.Screen)
	assert.Nil(t, s.Enemy)
	assert.False(t, f.e.QuitGame())

	sessions, _ := f.store.ListSessions("p1", 0)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Completed)
	last := sessions[0].Events[len(sessions[0].Events)-1]
	assert.Equal(t, record.EventQuit, last.Kind)
}

func TestRestart_DropsStaleContinuations(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(100, 1, 1)))
	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))

	f.start(StartOptions{Seed: 7})
	hp := f.e.Snapshot().EHp
	f.advance(time.Minute)
	s := f.e.Snapshot()
	assert.Equal(t, hp, s.EHp)
	assert.Equal(t, PhaseMenu, s.Phase)
}

func TestRestart_RecordsAbandonedRun(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	first := f.e.run.id
	f.set(withEnemy(dummy(100, 1, 1)))
	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(false))

	f.start(StartOptions{Seed: 7})
	sessions, _ := f.store.ListSessions("p1", 0)
	require.Len(t, sessions, 1)
	assert.Equal(t, first, sessions[0].RunID)
	assert.False(t, sessions[0].Completed)
	assert.Equal(t, 1, sessions[0].Wrong)
	assert.Equal(t, record.EventQuit, sessions[0].Events[len(sessions[0].Events)-1].Kind)

	save, _ := f.store.LoadSave("p1")
	require.NotNil(t, save)
	assert.Equal(t, f.e.run.id, save.RunID)
}

func TestTransition_RefusesEdgeOutsideTable(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	require.False(t, canTransition(PhaseMenu, PhaseVictory))

	f.e.mu.Lock()
	ok := f.e.transition(PhaseVictory)
	f.e.mu.Unlock()
	assert.False(t, ok)
	assert.Equal(t, PhaseMenu, f.e.Snapshot().Phase)
	assert.True(t, f.e.SelectMove(0))
}

func TestStreakAchievement_TenCorrectAnswers(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(10000, 1, 1)))

	for i := 0; i < record.StreakGoal; i++ {
		ach, _ := f.store.LoadAchievements("p1")
		require.False(t, ach.Has(record.AchStreak10), "unlocked after %d answers", i)
		require.True(t, f.e.SelectMove(0), "answer %d", i)
		require.True(t, f.answer(true))
		f.advance(10 * time.Second)
		require.Equal(t, PhaseMenu, f.e.Snapshot().Phase)
	}
	ach, _ := f.store.LoadAchievements("p1")
	assert.True(t, ach.Has(record.AchStreak10))
}

func TestSpecialDefense_FireBlocks(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(500, 10, 1)))
	f.set(func(s *State) { s.Streak = 7 })

	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))
	assert.True(t, f.e.Snapshot().SpecDef)

	hp := f.e.Snapshot().PHp
	d := DefaultDelays()
	f.advance(d.Attack + d.Status + d.EnemyWindup)
	s := f.e.Snapshot()
	assert.False(t, s.SpecDef)
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, 0, s.Charge)
	assert.Equal(t, hp, s.PHp)
	assert.Equal(t, msgBlock, s.MsgKey)
}

func TestSpecialDefense_GrassReflects(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{StarterID: "sprout"})
	f.set(withEnemy(dummy(500, 10, 1, TypeLight)))
	f.set(func(s *State) { s.Streak = 7 })

	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))
	d := DefaultDelays()
	f.advance(d.Attack + d.Status)
	before := f.e.Snapshot().EHp
	f.advance(d.EnemyWindup)
	s := f.e.Snapshot()
	assert.Equal(t, msgReflect, s.MsgKey)
	assert.Less(t, s.EHp, before)
	assert.Equal(t, s.PMaxHp, s.PHp)
}

func TestFrozenEnemy_SkipsTurnKeepsSpecDef(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(500, 10, 1)))
	f.set(func(s *State) {
		s.EStatus.Frozen = true
		s.SpecDef = true
		s.Streak = 9
	})

	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(false))
	d := DefaultDelays()
	f.advance(d.Text)
	s := f.e.Snapshot()
	assert.Equal(t, PhaseText, s.Phase)
	assert.Equal(t, msgFrozenSkip, s.MsgKey)
	assert.False(t, s.EStatus.Frozen)

	f.advance(d.Text)
	s = f.e.Snapshot()
	assert.Equal(t, PhaseMenu, s.Phase)
	assert.True(t, s.SpecDef)
	assert.Equal(t, s.PMaxHp, s.PHp)
}

func TestShieldItem_BlocksNextAttack(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(500, 10, 1)))

	require.True(t, f.e.UseItem("shield"))
	s := f.e.Snapshot()
	assert.True(t, s.Shield)
	assert.Equal(t, PhaseText, s.Phase)
	assert.NotContains(t, s.Inventory, "shield")
	assert.False(t, f.e.UseItem("potion"), "not in menu")

	d := DefaultDelays()
	f.advance(d.Text + d.EnemyWindup)
	s = f.e.Snapshot()
	assert.False(t, s.Shield)
	assert.Equal(t, s.PMaxHp, s.PHp)
	assert.Equal(t, msgShieldBlock, s.MsgKey)

	f.advance(d.EnemyHit)
	assert.Equal(t, PhaseMenu, f.e.Snapshot().Phase)
	inv, _ := f.store.LoadInventory("p1")
	assert.Equal(t, map[string]int{"potion": 2}, inv)
}

func TestPotion_HealsAndIsConsumed(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})

	assert.False(t, f.e.UseItem("potion"), "already at full HP")
	assert.False(t, f.e.UseItem("candy"), "not owned")
	f.set(func(s *State) { s.PHp = 10 })
	require.True(t, f.e.UseItem("potion"))
	s := f.e.Snapshot()
	assert.Equal(t, 40, s.PHp)
	assert.Equal(t, 1, s.Inventory["potion"])
}

func TestChallenge_NoItemsModifier(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{Mode: ModeChallenge, DailyKey: "k"})
	f.set(func(s *State) {
		s.Modifier = ModNoItems
		s.PHp = 10
	})
	assert.False(t, f.e.UseItem("potion"))
}

func TestChallenge_SameDaySameRun(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	a.start(StartOptions{Mode: ModeChallenge, DailyKey: "salt-2026-03-01"})
	b.start(StartOptions{Mode: ModeChallenge, DailyKey: "salt-2026-03-01", Seed: 99})

	sa, sb := a.e.Snapshot(), b.e.Snapshot()
	assert.True(t, sa.Timed)
	assert.NotEmpty(t, sa.Modifier)
	assert.Equal(t, sa.Modifier, sb.Modifier)
	assert.Equal(t, a.e.run.roster, b.e.run.roster)
	assert.Equal(t, "shade", a.e.run.roster[len(a.e.run.roster)-1].Primary.ID)
}

func TestPvP_TurnsAlternateAndWinnerRecorded(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{Mode: ModePvP, PartnerID: "ripple"})
	s := f.e.Snapshot()
	assert.Nil(t, s.Enemy)
	assert.Equal(t, 0, s.Active)
	assert.Equal(t, 66, s.PMaxHpSub)

	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))
	d := DefaultDelays()
	f.advance(d.Attack)
	assert.Less(t, f.e.Snapshot().PHpSub, 66)

	f.advance(d.Status)
	s = f.e.Snapshot()
	assert.Equal(t, 1, s.Active)
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, 1, s.RivalStreak)
	f.advance(d.Text)
	require.Equal(t, PhaseMenu, f.e.Snapshot().Phase)

	f.set(func(s *State) { s.PHp = 1 })
	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(true))
	f.advance(d.Attack + d.Status)
	assert.Equal(t, PhaseKO, f.e.Snapshot().Phase)
	f.advance(d.KO)

	s = f.e.Snapshot()
	assert.Equal(t, ScreenGameOver, s.Screen)
	assert.Equal(t, 1, s.Winner)
	ach, _ := f.store.LoadAchievements("p1")
	assert.True(t, ach.Has(record.AchPvPWin))
	assert.False(t, ach.Has(record.AchPerfectRun))
	assert.False(t, ach.Has(record.AchTimedClear))
	assert.False(t, f.e.UseItem("potion"))
}

func TestCoop_ActiveSideAlternates(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{Mode: ModeCoop, PartnerID: "sprout"})
	s := f.e.Snapshot()
	require.NotNil(t, s.Enemy)
	require.NotNil(t, s.EnemySub)
	assert.Len(t, f.e.run.roster, 4)
	f.set(func(s *State) {
		s.EStatus = Status{}
		s.EStatusSub = Status{}
	})

	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(false))
	f.advance(10 * time.Second)
	s = f.e.Snapshot()
	assert.Equal(t, PhaseMenu, s.Phase)
	assert.Equal(t, 1, s.Active)
	assert.Positive(t, s.BattleDamage)
}

func TestCoop_TargetFallsToSub(t *testing.T) {
	s := State{Enemy: dummy(10, 1, 1), EnemySub: dummy(10, 1, 1), EHp: 0, EHpSub: 5}
	assert.Equal(t, 1, coopRules{}.target(s))
	s.EHp = 3
	assert.Equal(t, 0, coopRules{}.target(s))
	assert.False(t, coopRules{}.partyDown(State{PHp: 0, PHpSub: 1}))
	assert.True(t, pvpRules{}.partyDown(State{PHp: 0, PHpSub: 1}))
}

func TestTower_FloorsAndLeaderboard(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{Mode: ModeTower})
	s := f.e.Snapshot()
	assert.Equal(t, 1, s.Floor)
	require.NotNil(t, s.Enemy)

	f.e.mu.Lock()
	boss := f.e.towerFloor(4)
	normal := f.e.towerFloor(5)
	f.e.mu.Unlock()
	assert.True(t, boss.Primary.Boss)
	assert.False(t, normal.Primary.Boss)

	f.set(func(s *State) { s.Phase = PhaseText })
	f.e.mu.Lock()
	f.e.run.bestFloor = 3
	f.e.handleKO()
	f.e.mu.Unlock()
	f.advance(DefaultDelays().KO)

	top, err := f.store.TopScores(BoardTower, 10)
	require.NoError(t, err)
	assert.Equal(t, []LeaderEntry{{PlayerID: "p1", Score: 3}}, top)
}

func TestResume_RestoresSavedRun(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{StarterID: "volt"})
	want := f.e.Snapshot()

	other := NewEngine(Config{PlayerID: "p1", Repos: f.repos, Clock: f.clock})
	require.NoError(t, other.ResumeGame())
	got := other.Snapshot()
	assert.Equal(t, want.StarterID, got.StarterID)
	assert.Equal(t, want.Enemy, got.Enemy)
	assert.Equal(t, want.EHp, got.EHp)
	assert.Equal(t, PhaseMenu, got.Phase)
	assert.True(t, other.SelectMove(0))

	require.True(t, f.e.QuitGame())
	assert.ErrorIs(t, NewEngine(Config{PlayerID: "p1", Repos: f.repos, Clock: f.clock}).ResumeGame(), ErrNoSave)
}

func TestResume_OwnRunIsNotAbandoned(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	require.NoError(t, f.e.ResumeGame())
	sessions, _ := f.store.ListSessions("p1", 0)
	assert.Empty(t, sessions)
}

func TestResume_RecordsReplacedRun(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	first := f.e.run.id

	other := NewEngine(Config{PlayerID: "p1", Repos: f.repos, Clock: f.clock})
	require.NoError(t, other.StartGame(StartOptions{StarterID: "volt", Seed: 3}))

	require.NoError(t, f.e.ResumeGame())
	assert.Equal(t, "volt", f.e.Snapshot().StarterID)
	sessions, _ := f.store.ListSessions("p1", 0)
	require.Len(t, sessions, 1)
	assert.Equal(t, first, sessions[0].RunID)
	assert.False(t, sessions[0].Completed)
}

func TestResume_KeepsRunHistory(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(100, 1, 1)))
	require.True(t, f.e.SelectMove(0))
	require.True(t, f.answer(false))
	f.advance(10 * time.Second)
	require.Equal(t, PhaseMenu, f.e.Snapshot().Phase)

	g := &fixture{t: t, clock: f.clock, store: f.store, repos: f.repos}
	g.e = NewEngine(Config{PlayerID: "p1", Repos: f.repos, Clock: f.clock})
	require.NoError(t, g.e.ResumeGame())
	g.set(withEnemy(dummy(1, 1, 1)))
	g.set(func(s *State) { s.Round = len(g.e.run.roster) - 1 })

	winRound(t, g)
	require.True(t, g.e.Advance())
	require.Equal(t, ScreenGameOver, g.e.Snapshot().Screen)

	sessions, _ := f.store.ListSessions("p1", 0)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Completed)
	assert.Equal(t, 1, sessions[0].Wrong)
	assert.Equal(t, 1, sessions[0].Correct)
	assert.Positive(t, sessions[0].DamageTaken)
	ach, _ := f.store.LoadAchievements("p1")
	assert.False(t, ach.Has(record.AchPerfectRun))
}

func TestMoveLevelsUpAfterEnoughHits(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	f.set(withEnemy(dummy(1000, 1, 1)))

	d := DefaultDelays()
	for i := 0; i < 3; i++ {
		require.True(t, f.e.SelectMove(0), "round %d", i)
		require.True(t, f.answer(true))
		f.advance(d.Attack + d.Status + d.EnemyWindup + d.EnemyHit)
	}
	s := f.e.Snapshot()
	assert.Equal(t, 2, s.MLvls[0])
	assert.Equal(t, 0, s.MHits[0])
	assert.Equal(t, 12, f.e.GetPow(0))
}

func TestSubscribe_RedactsOpenQuestion(t *testing.T) {
	f := newFixture(t)
	f.start(StartOptions{})
	events, cancel := f.e.Subscribe(64)
	require.True(t, f.e.SelectMove(0))

	var last *StateEvent
	for len(events) > 0 {
		if ev, ok := (<-events).(StateEvent); ok {
			last = &ev
		}
	}
	require.NotNil(t, last)
	require.NotNil(t, last.State.Question)
	assert.Empty(t, last.State.Question.Steps)
	assert.Zero(t, last.State.Question.Answer.Den)

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
}
