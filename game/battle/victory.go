package battle

import (
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/game/record"
)

// handleVictory awards XP, drops and achievements, then waits in the
// victory phase for Advance.
func (e *Engine) handleVictory() {
	s := e.latest
	if !e.transition(PhaseVictory) {
		return
	}
	e.countdown.Stop()
	run := e.run

	var defeated []*Enemy
	for _, en := range []*Enemy{s.Enemy, s.EnemySub} {
		if en != nil {
			defeated = append(defeated, en)
		}
	}
	xp := 0
	boss := false
	for _, en := range defeated {
		xp += EnemyXP(en.Level)
		boss = boss || en.Boss
	}
	xp = round(float64(xp) * (1 + run.perks.XPBonus))

	exp, lvl := s.PExp+xp, s.PLvl
	pending := false
	for exp >= ExpToLevel(lvl) {
		exp -= ExpToLevel(lvl)
		lvl++
		if lvl%3 == 0 && s.PStg < MaxStage {
			pending = true
		}
	}
	maxHp := PlayerMaxHP(run.starters[0].BaseHP, lvl, s.PStg, run.perks.MaxHPBonus)
	maxHpSub := 0
	if p := run.starters[1]; p != nil {
		maxHpSub = PlayerMaxHP(p.BaseHP, lvl, s.PStg, run.perks.MaxHPBonus)
	}

	reward := &Reward{XP: xp}
	if lvl > s.PLvl {
		reward.LeveledTo = lvl
	}
	inv := copyInventory(s.Inventory)
	for _, en := range defeated {
		for _, d := range en.Drops {
			if e.rng.Chance(d.Chance) {
				inv[d.ItemID]++
				reward.Drops = append(reward.Drops, d.ItemID)
				e.say(msgDrop, params{"enemy": en.DisplayName(), "item": e.itemName(d.ItemID)})
				break
			}
		}
		run.enc.Defeat(en.ID)
		run.log.Append(record.Event{Kind: record.EventBattle, At: e.clock.Now(), Round: s.Round, EnemyID: en.ID, Result: "win"})
	}
	e.saveEncyclopedia()
	if len(reward.Drops) > 0 {
		e.dispatch(setInventory{inv: inv})
		e.saveInventory(inv)
	}

	e.dispatch(progress{exp: exp, lvl: lvl, maxHp: maxHp, maxHpSub: maxHpSub, pendingEvolve: pending, reward: reward})
	e.say(msgVictory, params{"enemy": defeated[0].DisplayName(), "xp": xp})
	if reward.LeveledTo > 0 {
		e.say(msgLevelUp, params{"name": e.sideName(0), "level": lvl})
	}

	e.unlock(record.OnBattleWon(record.BattleStats{
		DamageTaken: s.BattleDamage,
		Boss:        boss,
		PlayerLevel: lvl,
		Stage:       s.PStg,
		MaxStage:    MaxStage,
	})...)
	if s.Mode == ModeTower && s.Floor > run.bestFloor {
		run.bestFloor = s.Floor
	}
	e.audio.PlaySfx("victory")
}

// applyEvolve raises the stage from the evolve screen.
func (e *Engine) applyEvolve() {
	s := e.latest
	run := e.run
	if !s.PendingEvolve || s.PStg >= MaxStage {
		return
	}
	old := e.sideName(0)
	stage := s.PStg + 1
	maxHp := PlayerMaxHP(run.starters[0].BaseHP, s.PLvl, stage, run.perks.MaxHPBonus)
	maxHpSub := 0
	if p := run.starters[1]; p != nil {
		maxHpSub = PlayerMaxHP(p.BaseHP, s.PLvl, stage, run.perks.MaxHPBonus)
	}
	e.dispatch(evolve{maxHp: maxHp, maxHpSub: maxHpSub})
	e.say(msgEvolve, params{"old": old, "new": e.sideName(0)})
	e.audio.PlaySfx("evolve")
	if e.latest.PStg >= MaxStage {
		e.unlock(record.AchFinalEvolution)
	}
}

// handleKO ends the encounter in defeat; in pvp the standing side wins.
func (e *Engine) handleKO() {
	s := e.latest
	if !e.transition(PhaseKO) {
		return
	}
	e.countdown.Stop()
	if s.Mode == ModePvP {
		e.say(msgPvPWin, params{"side": winnerOf(s) + 1})
	} else {
		name := e.sideName(s.Active)
		e.say(msgKO, params{"name": name})
		if s.Enemy != nil {
			e.run.log.Append(record.Event{Kind: record.EventBattle, At: e.clock.Now(), Round: s.Round, EnemyID: s.Enemy.ID, Result: "lose"})
		}
	}
	e.audio.PlaySfx("ko")
	e.after(e.delays.KO, func() { e.finishGame(e.latest.Mode == ModePvP) })
}

// winnerOf is the standing side of a pvp duel, -1 otherwise.
func winnerOf(s State) int {
	if s.Mode != ModePvP {
		return -1
	}
	switch {
	case s.PHp > 0 && s.PHpSub <= 0:
		return 0
	case s.PHpSub > 0 && s.PHp <= 0:
		return 1
	}
	return -1
}

// finishGame finalizes the session, sweeps run achievements and moves to
// the game-over screen. Runs once per run.
func (e *Engine) finishGame(completed bool) {
	run := e.run
	if run == nil || run.log.Finalized() {
		return
	}
	e.invalidateLocked()
	s := e.latest
	now := e.clock.Now()
	winner := winnerOf(s)

	summary, _ := run.log.Finalize(completed, now)
	if err := e.repos.Sessions.AppendSession(e.playerID, summary); err != nil {
		e.logger.Warn("append session failed", zap.Error(err))
	}
	e.unlock(record.Sweep(record.RunStats{
		Mode:         string(s.Mode),
		Completed:    completed,
		Timed:        s.Timed,
		Wrong:        summary.Wrong,
		TowerFloor:   run.bestFloor,
		PvPWinner:    winner,
		Encyclopedia: run.enc,
		AllEnemyIDs:  e.res.EnemyIDs(),
	})...)
	if s.Mode == ModeTower && run.bestFloor > 0 {
		if err := e.repos.Leaderboard.RecordScore(BoardTower, e.playerID, run.bestFloor); err != nil {
			e.logger.Warn("record tower score failed", zap.Error(err))
		}
	}
	e.deleteSave()

	e.dispatch(finishRun{completed: completed, winner: winner})
	if completed && s.Mode != ModePvP {
		e.say(msgRunClear, nil)
	}
	e.audio.StopBgm()
	e.emit(RunEndEvent{Summary: summary, Winner: winner, At: now})
	e.logger.Info("run finished",
		zap.String("run", run.id), zap.Bool("completed", completed),
		zap.Int("rounds_cleared", summary.RoundsCleared), zap.Float64("accuracy", summary.Accuracy))
}

// unlock records achievements and publishes the fresh ones.
func (e *Engine) unlock(ids ...string) {
	fresh := e.run.ach.Unlock(ids...)
	if len(fresh) == 0 {
		return
	}
	if err := e.repos.Achievements.SaveAchievements(e.playerID, e.run.ach); err != nil {
		e.logger.Warn("save achievements failed", zap.Error(err))
	}
	e.emit(AchievementEvent{IDs: fresh})
}

func (e *Engine) itemName(id string) string {
	if it, ok := e.res.Item(id); ok {
		return it.Name
	}
	return id
}
