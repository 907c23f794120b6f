package record

// Entry counts encounters with one enemy template.
type Entry struct {
	Seen     int `json:"seen"`
	Defeated int `json:"defeated"`
}

// Encyclopedia maps enemy id to its counters.
type Encyclopedia map[string]Entry

// See records an encounter.
func (e Encyclopedia) See(id string) {
	if id == "" {
		return
	}
	en := e[id]
	en.Seen++
	e[id] = en
}

// Defeat records a defeat. A defeat implies the enemy was seen.
func (e Encyclopedia) Defeat(id string) {
	if id == "" {
		return
	}
	en := e[id]
	en.Defeated++
	if en.Seen < en.Defeated {
		en.Seen = en.Defeated
	}
	e[id] = en
}

// DistinctDefeated counts templates defeated at least once.
func (e Encyclopedia) DistinctDefeated() int {
	n := 0
	for _, en := range e {
		if en.Defeated > 0 {
			n++
		}
	}
	return n
}

// Complete reports whether every id in all was defeated at least once.
func (e Encyclopedia) Complete(all []string) bool {
	for _, id := range all {
		if e[id].Defeated == 0 {
			return false
		}
	}
	return true
}

// Clone copies the encyclopedia.
func (e Encyclopedia) Clone() Encyclopedia {
	out := make(Encyclopedia, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

const (
	perkHPPerEnemy = 2
	perkHPCap      = 20
	perkXPAt       = 10
	perkXPBonus    = 0.10
)

// Perks are collection bonuses derived from the encyclopedia.
type Perks struct {
	MaxHPBonus int     `json:"max_hp_bonus"`
	XPBonus    float64 `json:"xp_bonus"`
}

// PerksFor derives the collection perks.
func PerksFor(e Encyclopedia) Perks {
	n := e.DistinctDefeated()
	p := Perks{MaxHPBonus: n * perkHPPerEnemy}
	if p.MaxHPBonus > perkHPCap {
		p.MaxHPBonus = perkHPCap
	}
	if n >= perkXPAt {
		p.XPBonus = perkXPBonus
	}
	return p
}
