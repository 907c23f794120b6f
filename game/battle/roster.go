package battle

import (
	"github.com/kasuganosora/mathmon/server/game/rng"
	"github.com/kasuganosora/mathmon/server/resource"
)

// DisplayName is the enemy name with its variant, e.g. "red Slime".
func (en *Enemy) DisplayName() string {
	if en == nil {
		return ""
	}
	if en.Variant == "" {
		return en.Name
	}
	return en.Variant + " " + en.Name
}

// instantiate combines a template with the encounter index. Variants are
// re-rolled on every call.
func instantiate(t *resource.Enemy, idx int, scale float64, r *rng.RNG) *Enemy {
	types := t.Types
	hpMod := 1.0
	variant := ""
	if len(t.Variants) > 0 {
		v := t.Variants[r.PickIndex(len(t.Variants))]
		variant = v.Suffix
		if len(v.Types) > 0 {
			types = v.Types
		}
		if v.HPMod > 0 {
			hpMod = v.HPMod
		}
	}
	en := &Enemy{
		ID:      t.ID,
		Name:    t.Name,
		Variant: variant,
		Types:   append([]string(nil), types...),
		Level:   t.Level,
		Boss:    t.Boss,
		Drops:   append([]resource.Drop(nil), t.Drops...),
	}
	hp := float64(t.HP) * scale * hpMod
	atk := float64(t.Atk) * scale
	if t.EvolveLvl > 0 && idx+1 >= t.EvolveLvl {
		en.Evolved = true
		hp *= evolvedStatMult
		atk *= evolvedStatMult
		en.Level++
		if t.EvolvedName != "" {
			en.Name = t.EvolvedName
		}
	}
	en.MaxHP = max(1, round(hp))
	en.Atk = max(1, round(atk))
	return en
}

// buildRoster lays out the encounters of a run. Tower floors are generated
// lazily and pvp has no enemies.
func (e *Engine) buildRoster(m Mode) []Encounter {
	if m == ModePvP || m == ModeTower {
		return nil
	}
	ids := append([]string(nil), e.res.Roster...)
	if m == ModeChallenge && len(ids) > 1 {
		// the final encounter stays last
		n := len(ids) - 1
		e.rng.Shuffle(n, func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	enemies := make([]*Enemy, 0, len(ids))
	for idx, id := range ids {
		t, ok := e.res.Enemy(id)
		if !ok {
			continue
		}
		enemies = append(enemies, instantiate(t, idx, EnemyScale(idx), e.rng))
	}

	var out []Encounter
	if m == ModeCoop {
		for i := 0; i < len(enemies); i += 2 {
			enc := Encounter{Primary: enemies[i]}
			if i+1 < len(enemies) {
				enc.Sub = enemies[i+1]
			}
			out = append(out, enc)
		}
		return out
	}
	for _, en := range enemies {
		out = append(out, Encounter{Primary: en})
	}
	return out
}

// towerFloor builds floor n+1 of the tower. Every fifth floor is a boss.
func (e *Engine) towerFloor(n int) Encounter {
	floor := n + 1
	ts := e.res.Enemies
	i := pickEnemyIndex(e.rng, len(ts), floor%towerBossEvery == 0, func(i int) bool { return ts[i].Boss })
	if i < 0 {
		return Encounter{}
	}
	return Encounter{Primary: instantiate(ts[i], n, EnemyScale(n), e.rng)}
}
