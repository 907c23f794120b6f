package battle

import (
	"errors"
	"sync"
	"time"

	"github.com/enetx/fsm"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/game/ability"
	"github.com/kasuganosora/mathmon/server/game/question"
	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/game/rng"
	"github.com/kasuganosora/mathmon/server/i18n"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/scheduler"
)

var (
	ErrUnknownStarter = errors.New("battle: unknown starter")
	ErrUnknownMode    = errors.New("battle: unknown mode")
	ErrNoSave         = errors.New("battle: no saved run")
)

// Delays are the pauses between the steps of a turn.
type Delays struct {
	Attack      time.Duration
	Status      time.Duration
	EnemyWindup time.Duration
	EnemyHit    time.Duration
	Text        time.Duration
	KO          time.Duration
}

// DefaultDelays returns the standard pacing.
func DefaultDelays() Delays {
	return Delays{
		Attack:      600 * time.Millisecond,
		Status:      500 * time.Millisecond,
		EnemyWindup: 700 * time.Millisecond,
		EnemyHit:    700 * time.Millisecond,
		Text:        1200 * time.Millisecond,
		KO:          1500 * time.Millisecond,
	}
}

// Config wires an engine. Zero values get defaults.
type Config struct {
	PlayerID     string
	Resources    *resource.ResourceLoader
	Repos        Repositories
	Translator   i18n.Translator
	Renderer     EffectRenderer
	Audio        AudioMixer
	Clock        scheduler.Clock
	Delays       Delays
	TimedLimit   time.Duration
	TickInterval time.Duration
	DailySalt    string
	Logger       *zap.Logger
}

// StartOptions select the run to play.
type StartOptions struct {
	Mode      Mode   `json:"mode"`
	StarterID string `json:"starter_id"`
	PartnerID string `json:"partner_id,omitempty"`
	Tier      Tier   `json:"tier,omitempty"`
	Timed     bool   `json:"timed,omitempty"`
	Seed      uint32 `json:"seed,omitempty"`
	DailyKey  string `json:"daily_key,omitempty"`
}

// runCtx is everything that lives for one run besides the state.
type runCtx struct {
	id        string
	opts      StartOptions
	rules     modeRules
	starters  [2]*resource.Starter
	roster    []Encounter
	log       *record.Log
	ach       record.Set
	enc       record.Encyclopedia
	perks     record.Perks
	startedAt time.Time
	bestFloor int
}

// Engine orchestrates battles for one player. Every exported method is
// safe for concurrent use; scheduled continuations share the same lock.
type Engine struct {
	playerID string
	res      *resource.ResourceLoader
	repos    Repositories
	tr       i18n.Translator
	renderer EffectRenderer
	audio    AudioMixer
	clock    scheduler.Clock
	delays   Delays
	limit    time.Duration
	salt     string
	logger   *zap.Logger

	mu        sync.Mutex
	rng       *rng.RNG
	gen       *question.Generator
	ability   *ability.Model
	gate      *scheduler.Gate
	countdown *scheduler.Countdown
	phases    *fsm.FSM
	latest    State
	dirty     bool
	run       *runCtx

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewEngine creates an engine on the title screen.
func NewEngine(cfg Config) *Engine {
	if cfg.Resources == nil {
		cfg.Resources = resource.MustLoadDefault()
	}
	if cfg.Translator == nil {
		cfg.Translator = i18n.Fallback{}
	}
	if cfg.Renderer == nil {
		cfg.Renderer = nopRenderer{}
	}
	if cfg.Audio == nil {
		cfg.Audio = nopAudio{}
	}
	if cfg.Clock == nil {
		cfg.Clock = scheduler.RealClock{}
	}
	if cfg.Delays == (Delays{}) {
		cfg.Delays = DefaultDelays()
	}
	if cfg.TimedLimit <= 0 {
		cfg.TimedLimit = 10 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.With(zap.String("player", cfg.PlayerID))

	e := &Engine{
		playerID: cfg.PlayerID,
		res:      cfg.Resources,
		repos:    cfg.Repos.withDefaults(),
		tr:       cfg.Translator,
		renderer: cfg.Renderer,
		audio:    cfg.Audio,
		clock:    cfg.Clock,
		delays:   cfg.Delays,
		limit:    cfg.TimedLimit,
		salt:     cfg.DailySalt,
		logger:   logger,
		rng:      rng.New(rng.EntropySeed()),
		ability:  ability.New(),
		latest:   titleState(),
		subs:     make(map[int]chan Event),
	}
	e.gen = question.NewGenerator(e.rng)
	e.gate = scheduler.NewGate(cfg.Clock, &e.mu, logger)
	e.countdown = scheduler.NewCountdown(cfg.Clock, &e.mu, cfg.TickInterval, logger)
	e.phases = newPhaseMachine(e.latest.Phase)

	if snap, err := e.repos.Ability.LoadAbility(e.playerID); err != nil {
		logger.Warn("load ability failed, using baseline", zap.Error(err))
	} else {
		e.ability.Restore(snap)
	}
	return e
}

func titleState() State {
	return State{Screen: ScreenTitle, Phase: PhaseMenu, SelIdx: -1, Winner: -1}
}

// PlayerID returns the owning player.
func (e *Engine) PlayerID() string { return e.playerID }

// Snapshot returns the latest committed state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Subscribe registers an event listener. Events are dropped rather than
// blocking the engine when the buffer is full.
func (e *Engine) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan Event, buf)
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			close(ch)
			e.subMu.Unlock()
		})
	}
}

func (e *Engine) emit(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for id, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.logger.Warn("subscriber buffer full, dropping event",
				zap.Int("subscriber", id), zap.String("type", ev.EventType()))
		}
	}
}

// dispatch commits an action. Must hold mu.
func (e *Engine) dispatch(a Action) {
	prev := e.latest
	e.latest = reduce(prev, a)
	e.dirty = true
	if prev.Screen != e.latest.Screen {
		e.emit(ScreenEvent{Screen: e.latest.Screen})
	}
}

// flush publishes the state once per action or continuation.
func (e *Engine) flush() {
	if !e.dirty {
		return
	}
	e.dirty = false
	e.emit(StateEvent{State: e.latest.Redacted()})
}

// after schedules fn behind the gate.
func (e *Engine) after(d time.Duration, fn func()) {
	e.gate.SafeTo(func() {
		fn()
		e.flush()
	}, d)
}

func (e *Engine) say(key string, p params) {
	text := e.tr.T(key, fallbacks[key], p)
	e.dispatch(sayMessage{key: key, params: p, text: text})
	e.emit(MessageEvent{Key: key, Params: p, Text: text})
}

func (e *Engine) resetPhases() {
	e.phases = newPhaseMachine(e.latest.Phase)
}

// trigger advances the phase machine only. Edges missing from the table are
// refused before the machine sees them.
func (e *Engine) trigger(p Phase) bool {
	if !canTransition(e.latest.Phase, p) {
		e.logger.Debug("phase transition not in table",
			zap.String("from", string(e.latest.Phase)), zap.String("to", string(p)))
		return false
	}
	if err := e.phases.Trigger(fsm.Event(p)); err != nil {
		e.logger.Debug("phase transition rejected",
			zap.String("from", string(e.latest.Phase)), zap.String("to", string(p)), zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) transition(p Phase) bool {
	if !e.trigger(p) {
		return false
	}
	e.dispatch(setPhase{phase: p})
	return true
}

func (e *Engine) invalidateLocked() {
	e.gate.Invalidate()
	e.countdown.Stop()
}

// InvalidateAsyncWork cancels every pending continuation and the question
// timer.
func (e *Engine) InvalidateAsyncWork() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidateLocked()
}

// StartGame begins a fresh run.
func (e *Engine) StartGame(opts StartOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	if opts.Mode == "" {
		opts.Mode = ModeSingle
	}
	if !opts.Mode.Valid() {
		return ErrUnknownMode
	}
	if opts.Tier != TierHard {
		opts.Tier = TierNormal
	}
	rules := rulesFor(opts.Mode)
	starter, ok := e.res.Starter(opts.StarterID)
	if !ok {
		return ErrUnknownStarter
	}
	var partner *resource.Starter
	if rules.sides() == 2 {
		if opts.PartnerID == "" {
			opts.PartnerID = opts.StarterID
		}
		if partner, ok = e.res.Starter(opts.PartnerID); !ok {
			return ErrUnknownStarter
		}
	} else {
		opts.PartnerID = ""
	}

	e.invalidateLocked()
	if e.abandonLocked("restart") {
		e.deleteSave()
	}
	switch {
	case opts.Mode == ModeChallenge:
		if opts.DailyKey == "" {
			opts.DailyKey = rng.DailyKey(e.clock.Now(), e.salt)
		}
		opts.Seed = rng.SeedFromKey(opts.DailyKey)
	case opts.Seed == 0:
		opts.Seed = rng.EntropySeed()
	}
	e.rng.Reseed(opts.Seed)
	e.gen.Reset()

	now := e.clock.Now()
	run := &runCtx{
		id:        uuid.NewString(),
		opts:      opts,
		rules:     rules,
		starters:  [2]*resource.Starter{starter, partner},
		startedAt: now,
	}
	run.log = record.NewLog(run.id, e.playerID, string(opts.Mode), starter.ID, now)
	run.ach = e.loadAchievements()
	run.enc = e.loadEncyclopedia()
	run.perks = record.PerksFor(run.enc)
	e.run = run

	s := State{
		Screen:    ScreenBattle,
		Phase:     PhaseMenu,
		Mode:      opts.Mode,
		Tier:      opts.Tier,
		Timed:     opts.Timed,
		StarterID: starter.ID,
		PartnerID: opts.PartnerID,
		PLvl:      1,
		SelIdx:    -1,
		Winner:    -1,
		Inventory: e.loadInventory(),
	}
	s.PMaxHp = PlayerMaxHP(starter.BaseHP, 1, 0, run.perks.MaxHPBonus)
	s.PHp = s.PMaxHp
	if partner != nil {
		s.PMaxHpSub = PlayerMaxHP(partner.BaseHP, 1, 0, run.perks.MaxHPBonus)
		s.PHpSub = s.PMaxHpSub
	}
	for i := range s.MLvls {
		s.MLvls[i] = 1
		s.MLvlsSub[i] = 1
	}
	rules.setup(e, &s)
	run.opts.Timed = s.Timed
	run.roster = e.buildRoster(opts.Mode)

	e.dispatch(resetState{next: s})
	e.resetPhases()
	e.logger.Info("run started",
		zap.String("run", run.id), zap.String("mode", string(opts.Mode)),
		zap.String("starter", starter.ID), zap.Uint32("seed", opts.Seed))
	e.enterRound(0)
	return nil
}

// ResumeGame restores the mid-run save.
func (e *Engine) ResumeGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	snap, err := e.repos.Saves.LoadSave(e.playerID)
	if err != nil {
		e.logger.Warn("load save failed", zap.Error(err))
		return ErrNoSave
	}
	if snap == nil || snap.Version != SaveVersion || !snap.Options.Mode.Valid() {
		return ErrNoSave
	}
	opts := snap.Options
	starter, ok := e.res.Starter(opts.StarterID)
	if !ok {
		return ErrUnknownStarter
	}
	rules := rulesFor(opts.Mode)
	var partner *resource.Starter
	if rules.sides() == 2 {
		if partner, ok = e.res.Starter(opts.PartnerID); !ok {
			return ErrUnknownStarter
		}
	}

	e.invalidateLocked()
	if e.run != nil && e.run.id != snap.RunID {
		e.abandonLocked("resume")
	}
	e.rng.SetState(snap.RNGState)
	e.gen.Reset()
	run := &runCtx{
		id:        snap.RunID,
		opts:      opts,
		rules:     rules,
		starters:  [2]*resource.Starter{starter, partner},
		roster:    append([]Encounter(nil), snap.Encounters...),
		startedAt: snap.StartedAt,
	}
	run.log = record.RestoreLog(run.id, e.playerID, string(opts.Mode), starter.ID, snap.StartedAt, snap.Log)
	run.ach = e.loadAchievements()
	run.enc = e.loadEncyclopedia()
	run.perks = record.PerksFor(run.enc)
	run.bestFloor = snap.State.Floor - 1
	e.run = run

	s := snap.State
	s.Screen = ScreenBattle
	s.Phase = PhaseMenu
	s.Paused = false
	s.Question = nil
	s.SelIdx = -1
	s.Answered = false
	e.dispatch(resetState{next: s})
	e.resetPhases()
	e.say(msgChoose, params{"name": e.sideName(e.latest.Active)})
	e.logger.Info("run resumed", zap.String("run", run.id), zap.Int("round", s.Round))
	return nil
}

// enterRound loads the encounter of round or finishes a cleared run.
func (e *Engine) enterRound(round int) {
	enc, ok := e.run.rules.encounter(e, round)
	if !ok {
		e.finishGame(true)
		return
	}
	floor := 0
	if e.latest.Mode == ModeTower {
		floor = round + 1
	}
	e.dispatch(enterEncounter{round: round, floor: floor, enc: enc})
	e.resetPhases()

	switch {
	case e.latest.Mode == ModePvP:
		e.say(msgPvPTurn, params{"side": e.latest.Active + 1})
	case enc.Sub != nil:
		e.seeEnemies(enc)
		e.say(msgAppearPair, params{"enemy": enc.Primary.DisplayName(), "sub": enc.Sub.DisplayName()})
	case enc.Primary != nil:
		e.seeEnemies(enc)
		if floor > 0 {
			e.say(msgTowerFloor, params{"floor": floor})
		}
		e.say(msgAppear, params{"enemy": enc.Primary.DisplayName()})
	}
	track := "battle"
	if enc.Primary != nil && enc.Primary.Boss {
		track = "boss"
	}
	e.audio.StartBgm(track)
	e.saveSnapshot()
}

func (e *Engine) seeEnemies(enc Encounter) {
	for _, en := range []*Enemy{enc.Primary, enc.Sub} {
		if en != nil {
			e.run.enc.See(en.ID)
		}
	}
	e.saveEncyclopedia()
}

// nextRound leaves the victory phase for the following encounter.
func (e *Engine) nextRound() {
	e.invalidateLocked()
	e.enterRound(e.latest.Round + 1)
}

// Advance is the "tap to continue" action.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	s := e.latest
	switch {
	case s.Screen == ScreenGameOver:
		e.invalidateLocked()
		e.run = nil
		e.dispatch(resetState{next: titleState()})
		e.resetPhases()
		return true
	case e.run == nil:
		return false
	case s.Screen == ScreenEvolve:
		e.applyEvolve()
		e.nextRound()
		return true
	case s.Screen == ScreenBattle && s.Phase == PhaseVictory:
		if s.PendingEvolve && s.PStg < MaxStage {
			e.invalidateLocked()
			e.dispatch(setScreen{screen: ScreenEvolve})
			return true
		}
		e.nextRound()
		return true
	}
	return false
}

// QuitGame abandons the run and returns to the title screen.
func (e *Engine) QuitGame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	run := e.run
	if run == nil {
		return false
	}
	e.invalidateLocked()
	e.abandonLocked("quit")
	e.deleteSave()
	e.run = nil
	e.audio.StopBgm()
	e.dispatch(resetState{next: titleState()})
	e.resetPhases()
	return true
}

// abandonLocked closes the log of an unfinished run as a quit and records
// its session. Finished runs are left alone.
func (e *Engine) abandonLocked(reason string) bool {
	run := e.run
	if run == nil || run.log.Finalized() {
		return false
	}
	now := e.clock.Now()
	run.log.Append(record.Event{Kind: record.EventQuit, At: now, Round: e.latest.Round})
	summary, _ := run.log.Finalize(false, now)
	if err := e.repos.Sessions.AppendSession(e.playerID, summary); err != nil {
		e.logger.Warn("append session failed", zap.Error(err))
	}
	e.emit(RunEndEvent{Summary: summary, Winner: -1, At: now})
	e.logger.Info("run abandoned",
		zap.String("run", run.id), zap.String("reason", reason), zap.Int("round", e.latest.Round))
	return true
}

// TogglePause freezes or resumes the question timer. Scheduled
// continuations keep running.
func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	if e.run == nil || e.latest.Screen != ScreenBattle {
		return false
	}
	on := !e.latest.Paused
	e.dispatch(setPaused{on: on})
	if on {
		e.countdown.Pause()
	} else {
		e.countdown.Resume()
	}
	return true
}

// GetPow is the current power of the active side's move i.
func (e *Engine) GetPow(i int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.activeStarter()
	if st == nil || i < 0 || i >= len(st.Moves) {
		return 0
	}
	return MovePower(st.Moves[i], e.latest.Levels(e.latest.Active)[i])
}

// DualEff is the effectiveness of the active side's move i against its
// current target.
func (e *Engine) DualEff(i int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.activeStarter()
	if st == nil || i < 0 || i >= len(st.Moves) {
		return EffNeutral
	}
	types := e.defenderTypes(e.latest)
	return DualEff(st.Moves[i].Type, types)
}

// Sfx plays a sound effect.
func (e *Engine) Sfx(tag string) { e.audio.PlaySfx(tag) }

func (e *Engine) activeStarter() *resource.Starter {
	if e.run == nil {
		return nil
	}
	return e.run.starters[e.latest.Active]
}

func (e *Engine) defenderTypes(s State) []string {
	if s.Mode == ModePvP {
		if d := e.run.starters[1-s.Active]; d != nil {
			return d.Types
		}
		return nil
	}
	en, _, _ := s.EnemyAt(e.run.rules.target(s))
	if en == nil {
		return nil
	}
	return en.Types
}

// sideName is the stage name of a player side.
func (e *Engine) sideName(side int) string {
	if e.run == nil {
		return ""
	}
	st := e.run.starters[side]
	if st == nil {
		return ""
	}
	if n := st.StageNames[e.latest.PStg]; n != "" {
		return n
	}
	return st.Name
}
