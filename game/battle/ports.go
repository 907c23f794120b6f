package battle

import (
	"sort"
	"sync"
	"time"

	"github.com/kasuganosora/mathmon/server/game/ability"
	"github.com/kasuganosora/mathmon/server/game/question"
	"github.com/kasuganosora/mathmon/server/game/record"
)

// AchievementRepo persists a player's unlocked achievements.
type AchievementRepo interface {
	LoadAchievements(playerID string) (record.Set, error)
	SaveAchievements(playerID string, s record.Set) error
}

// EncyclopediaRepo persists a player's encounter counters.
type EncyclopediaRepo interface {
	LoadEncyclopedia(playerID string) (record.Encyclopedia, error)
	SaveEncyclopedia(playerID string, e record.Encyclopedia) error
}

// SessionRepo stores finalized session summaries.
type SessionRepo interface {
	AppendSession(playerID string, s record.Summary) error
	ListSessions(playerID string, limit int) ([]record.Summary, error)
}

// InventoryRepo persists item counts. A nil map from Load means the player
// has no inventory yet.
type InventoryRepo interface {
	LoadInventory(playerID string) (map[string]int, error)
	SaveInventory(playerID string, inv map[string]int) error
}

// SaveRepo holds the mid-run snapshot. Load returns nil when absent.
type SaveRepo interface {
	LoadSave(playerID string) (*SaveSnapshot, error)
	StoreSave(playerID string, snap *SaveSnapshot) error
	DeleteSave(playerID string) error
}

// AbilityRepo persists the adaptive difficulty model.
type AbilityRepo interface {
	LoadAbility(playerID string) (map[question.Op]ability.OpState, error)
	SaveAbility(playerID string, snap map[question.Op]ability.OpState) error
}

// LeaderEntry is one leaderboard row.
type LeaderEntry struct {
	PlayerID string `json:"player_id"`
	Score    int    `json:"score"`
}

// LeaderboardRepo keeps the best score per player on a named board.
type LeaderboardRepo interface {
	RecordScore(board, playerID string, score int) error
	TopScores(board string, n int) ([]LeaderEntry, error)
}

// BoardTower is the tower leaderboard name.
const BoardTower = "tower"

// Repositories bundles every persistence port. Nil members are replaced by
// in-memory implementations.
type Repositories struct {
	Achievements AchievementRepo
	Encyclopedia EncyclopediaRepo
	Sessions     SessionRepo
	Inventory    InventoryRepo
	Saves        SaveRepo
	Ability      AbilityRepo
	Leaderboard  LeaderboardRepo
}

func (r Repositories) withDefaults() Repositories {
	var mem *MemoryStore
	get := func() *MemoryStore {
		if mem == nil {
			mem = NewMemoryStore()
		}
		return mem
	}
	if r.Achievements == nil {
		r.Achievements = get()
	}
	if r.Encyclopedia == nil {
		r.Encyclopedia = get()
	}
	if r.Sessions == nil {
		r.Sessions = get()
	}
	if r.Inventory == nil {
		r.Inventory = get()
	}
	if r.Saves == nil {
		r.Saves = get()
	}
	if r.Ability == nil {
		r.Ability = get()
	}
	if r.Leaderboard == nil {
		r.Leaderboard = get()
	}
	return r
}

// SaveSnapshot is the mid-run save written whenever the battle returns to
// the menu.
type SaveSnapshot struct {
	Version    int             `json:"version"`
	RunID      string          `json:"run_id"`
	Options    StartOptions    `json:"options"`
	State      State           `json:"state"`
	RNGState   uint32          `json:"rng_state"`
	Encounters []Encounter     `json:"encounters"`
	Log        record.LogState `json:"log"`
	StartedAt  time.Time       `json:"started_at"`
	SavedAt    time.Time       `json:"saved_at"`
}

// SaveVersion is the current snapshot layout.
const SaveVersion = 2

// MemoryStore implements every repository in memory. Values are copied on
// the way in and out.
type MemoryStore struct {
	mu       sync.Mutex
	ach      map[string]record.Set
	enc      map[string]record.Encyclopedia
	sessions map[string][]record.Summary
	inv      map[string]map[string]int
	saves    map[string]*SaveSnapshot
	ability  map[string]map[question.Op]ability.OpState
	boards   map[string]map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ach:      make(map[string]record.Set),
		enc:      make(map[string]record.Encyclopedia),
		sessions: make(map[string][]record.Summary),
		inv:      make(map[string]map[string]int),
		saves:    make(map[string]*SaveSnapshot),
		ability:  make(map[string]map[question.Op]ability.OpState),
		boards:   make(map[string]map[string]int),
	}
}

// MemoryRepositories wires one MemoryStore into every port.
func MemoryRepositories() (Repositories, *MemoryStore) {
	m := NewMemoryStore()
	return Repositories{
		Achievements: m, Encyclopedia: m, Sessions: m, Inventory: m,
		Saves: m, Ability: m, Leaderboard: m,
	}, m
}

func (m *MemoryStore) LoadAchievements(id string) (record.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := record.Set{}
	out.Merge(m.ach[id])
	return out, nil
}

func (m *MemoryStore) SaveAchievements(id string, s record.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := record.Set{}
	cp.Merge(s)
	m.ach[id] = cp
	return nil
}

func (m *MemoryStore) LoadEncyclopedia(id string) (record.Encyclopedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enc[id]; ok {
		return e.Clone(), nil
	}
	return record.Encyclopedia{}, nil
}

func (m *MemoryStore) SaveEncyclopedia(id string, e record.Encyclopedia) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enc[id] = e.Clone()
	return nil
}

func (m *MemoryStore) AppendSession(id string, s record.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = append(m.sessions[id], s)
	return nil
}

// ListSessions returns the newest sessions first.
func (m *MemoryStore) ListSessions(id string, limit int) ([]record.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sessions[id]
	out := make([]record.Summary, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemoryStore) LoadInventory(id string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inv[id]
	if !ok {
		return nil, nil
	}
	return copyInventory(inv), nil
}

func (m *MemoryStore) SaveInventory(id string, inv map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inv[id] = copyInventory(inv)
	return nil
}

func (m *MemoryStore) LoadSave(id string) (*SaveSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saves[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Encounters = append([]Encounter(nil), s.Encounters...)
	return &cp, nil
}

func (m *MemoryStore) StoreSave(id string, snap *SaveSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snap
	cp.Encounters = append([]Encounter(nil), snap.Encounters...)
	m.saves[id] = &cp
	return nil
}

func (m *MemoryStore) DeleteSave(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves, id)
	return nil
}

func (m *MemoryStore) LoadAbility(id string) (map[question.Op]ability.OpState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[question.Op]ability.OpState, len(m.ability[id]))
	for k, v := range m.ability[id] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveAbility(id string, snap map[question.Op]ability.OpState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[question.Op]ability.OpState, len(snap))
	for k, v := range snap {
		cp[k] = v
	}
	m.ability[id] = cp
	return nil
}

// RecordScore keeps the best score.
func (m *MemoryStore) RecordScore(board, id string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[board]
	if !ok {
		b = make(map[string]int)
		m.boards[board] = b
	}
	if cur, ok := b[id]; !ok || score > cur {
		b[id] = score
	}
	return nil
}

func (m *MemoryStore) TopScores(board string, n int) ([]LeaderEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LeaderEntry, 0, len(m.boards[board]))
	for id, sc := range m.boards[board] {
		out = append(out, LeaderEntry{PlayerID: id, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func copyInventory(inv map[string]int) map[string]int {
	out := make(map[string]int, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}

// EffectRequest describes a visual effect for the renderer.
type EffectRequest struct {
	Element   string `json:"element"`
	MoveIndex int    `json:"move_index"`
	MoveLevel int    `json:"move_level"`
	Target    string `json:"target"`
}

// EffectRenderer plays a time-bounded visual effect. The engine never
// waits on done.
type EffectRenderer interface {
	PlayEffect(req EffectRequest, done func())
}

// AudioMixer is fire-and-forget audio.
type AudioMixer interface {
	PlaySfx(tag string)
	StartBgm(track string)
	StopBgm()
	SetVolume(v float64)
	SetMuted(muted bool)
}

type nopRenderer struct{}

func (nopRenderer) PlayEffect(_ EffectRequest, done func()) {
	if done != nil {
		done()
	}
}

type nopAudio struct{}

func (nopAudio) PlaySfx(string)    {}
func (nopAudio) StartBgm(string)   {}
func (nopAudio) StopBgm()          {}
func (nopAudio) SetVolume(float64) {}
func (nopAudio) SetMuted(bool)     {}
