// Package resource loads the static game data: starters, enemies, the
// campaign roster and items. Data is embedded in the binary and can be
// overridden from a directory holding files of the same names.
package resource

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

//go:embed data/*.json
var embedded embed.FS

// ResourceLoader reads and holds all game data files.
type ResourceLoader struct {
	DataPath string

	Starters []*Starter
	Enemies  []*Enemy
	Roster   []string
	Items    []*Item
	Starting []StartingItem

	starterByID map[string]*Starter
	enemyByID   map[string]*Enemy
	itemByID    map[string]*Item
}

// NewLoader creates a loader. An empty dataPath uses the embedded data.
func NewLoader(dataPath string) *ResourceLoader {
	return &ResourceLoader{DataPath: dataPath}
}

// Load reads every data file and builds the lookup indexes.
func (rl *ResourceLoader) Load() error {
	var fsys fs.FS
	if rl.DataPath != "" {
		fsys = os.DirFS(rl.DataPath)
	} else {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			return fmt.Errorf("resource: embedded data: %w", err)
		}
		fsys = sub
	}

	loaders := []func(fs.FS) error{
		rl.loadStarters,
		rl.loadEnemies,
		rl.loadRoster,
		rl.loadItems,
	}
	for _, fn := range loaders {
		if err := fn(fsys); err != nil {
			return err
		}
	}
	rl.buildIndexes()
	return rl.validate()
}

// MustLoadDefault loads the embedded data and panics on failure. Intended
// for tests and tools.
func MustLoadDefault() *ResourceLoader {
	rl := NewLoader("")
	if err := rl.Load(); err != nil {
		panic(err)
	}
	return rl
}

func loadJSONArray[T any](fsys fs.FS, name string) ([]*T, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", name, err)
	}
	var arr []*T
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", name, err)
	}
	return arr, nil
}

func loadJSONObject[T any](fsys fs.FS, name string, out *T) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("resource: parse %s: %w", name, err)
	}
	return nil
}

func (rl *ResourceLoader) loadStarters(fsys fs.FS) error {
	var err error
	rl.Starters, err = loadJSONArray[Starter](fsys, "starters.json")
	return err
}

func (rl *ResourceLoader) loadEnemies(fsys fs.FS) error {
	var err error
	rl.Enemies, err = loadJSONArray[Enemy](fsys, "enemies.json")
	return err
}

func (rl *ResourceLoader) loadRoster(fsys fs.FS) error {
	return loadJSONObject(fsys, "roster.json", &rl.Roster)
}

func (rl *ResourceLoader) loadItems(fsys fs.FS) error {
	var doc struct {
		Items    []*Item        `json:"items"`
		Starting []StartingItem `json:"starting"`
	}
	if err := loadJSONObject(fsys, "items.json", &doc); err != nil {
		return err
	}
	rl.Items = doc.Items
	rl.Starting = doc.Starting
	return nil
}

func (rl *ResourceLoader) buildIndexes() {
	rl.starterByID = make(map[string]*Starter, len(rl.Starters))
	for _, s := range rl.Starters {
		if s != nil {
			rl.starterByID[s.ID] = s
		}
	}
	rl.enemyByID = make(map[string]*Enemy, len(rl.Enemies))
	for _, e := range rl.Enemies {
		if e != nil {
			rl.enemyByID[e.ID] = e
		}
	}
	rl.itemByID = make(map[string]*Item, len(rl.Items))
	for _, it := range rl.Items {
		if it != nil {
			rl.itemByID[it.ID] = it
		}
	}
}

func (rl *ResourceLoader) validate() error {
	for _, s := range rl.Starters {
		if s == nil {
			continue
		}
		if len(s.Moves) != 4 {
			return fmt.Errorf("resource: starter %s has %d moves, want 4", s.ID, len(s.Moves))
		}
		if len(s.Types) == 0 {
			return fmt.Errorf("resource: starter %s has no type", s.ID)
		}
	}
	for _, id := range rl.Roster {
		if _, ok := rl.enemyByID[id]; !ok {
			return fmt.Errorf("resource: roster references unknown enemy %q", id)
		}
	}
	for _, e := range rl.Enemies {
		if e == nil {
			continue
		}
		for _, d := range e.Drops {
			if _, ok := rl.itemByID[d.ItemID]; !ok {
				return fmt.Errorf("resource: enemy %s drops unknown item %q", e.ID, d.ItemID)
			}
		}
	}
	return nil
}

// Starter returns a starter by id.
func (rl *ResourceLoader) Starter(id string) (*Starter, bool) {
	s, ok := rl.starterByID[id]
	return s, ok
}

// Enemy returns an enemy template by id.
func (rl *ResourceLoader) Enemy(id string) (*Enemy, bool) {
	e, ok := rl.enemyByID[id]
	return e, ok
}

// Item returns an item by id.
func (rl *ResourceLoader) Item(id string) (*Item, bool) {
	it, ok := rl.itemByID[id]
	return it, ok
}

// EnemyIDs returns every enemy id sorted.
func (rl *ResourceLoader) EnemyIDs() []string {
	ids := make([]string, 0, len(rl.enemyByID))
	for id := range rl.enemyByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
