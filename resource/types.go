package resource

// MoveDef is one of a starter's four moves. Range and Ops are the question
// generation contract.
type MoveDef struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	BasePower int      `json:"basePower"`
	Growth    int      `json:"growth"`
	PowerCap  int      `json:"powerCap"`
	Range     [2]int   `json:"range"`
	Ops       []string `json:"ops"`
	Risky     bool     `json:"risky"`
}

// Starter is a player monster template.
type Starter struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Types      []string  `json:"types"`
	BaseHP     int       `json:"baseHp"`
	StageNames [3]string `json:"stageNames"`
	Moves      []MoveDef `json:"moves"`
}

// PrimaryType returns the first declared type.
func (s *Starter) PrimaryType() string {
	if len(s.Types) == 0 {
		return ""
	}
	return s.Types[0]
}

// Drop is one entry of an enemy's drop table.
type Drop struct {
	ItemID string  `json:"itemId"`
	Chance float64 `json:"chance"`
}

// Variant re-skins an enemy template, re-rolled on every new run.
type Variant struct {
	Suffix string   `json:"suffix"`
	Types  []string `json:"types"`
	HPMod  float64  `json:"hpMod"`
}

// Enemy is an immutable enemy template.
type Enemy struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Types       []string  `json:"types"`
	HP          int       `json:"hp"`
	Atk         int       `json:"atk"`
	Level       int       `json:"level"`
	EvolveLvl   int       `json:"evolveLvl"`
	EvolvedName string    `json:"evolvedName"`
	Boss        bool      `json:"boss"`
	Variants    []Variant `json:"variants"`
	Drops       []Drop    `json:"drops"`
}

// ItemKind selects an item's effect.
type ItemKind string

const (
	ItemHeal     ItemKind = "heal"
	ItemFullHeal ItemKind = "full_heal"
	ItemShield   ItemKind = "shield"
	ItemCharge   ItemKind = "charge"
)

// Item is a consumable.
type Item struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Kind   ItemKind `json:"kind"`
	Amount int      `json:"amount"`
}

// Starting inventory handed to a player with no saved inventory.
type StartingItem struct {
	ItemID string `json:"itemId"`
	Count  int    `json:"count"`
}
