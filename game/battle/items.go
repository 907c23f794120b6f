package battle

import (
	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/resource"
)

// UseItem consumes one unit of an item for the active side. It takes the
// turn, so the enemy acts afterwards.
func (e *Engine) UseItem(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.flush()

	s := e.latest
	if e.run == nil || s.Screen != ScreenBattle || s.Phase != PhaseMenu || s.Paused {
		return false
	}
	if !e.run.rules.items(s.Modifier) || s.Inventory[id] <= 0 {
		return false
	}
	it, ok := e.res.Item(id)
	if !ok {
		return false
	}
	side := s.Active
	hp, maxHP := s.SideHP(side)
	switch it.Kind {
	case resource.ItemHeal, resource.ItemFullHeal:
		if hp <= 0 || hp >= maxHP {
			return false
		}
	case resource.ItemShield:
		if s.Shield {
			return false
		}
	case resource.ItemCharge:
		if s.Charge >= MaxCharge {
			return false
		}
	default:
		return false
	}
	if !e.transition(PhaseText) {
		return false
	}

	inv := copyInventory(s.Inventory)
	inv[id]--
	if inv[id] <= 0 {
		delete(inv, id)
	}
	e.dispatch(setInventory{inv: inv})
	e.saveInventory(inv)
	e.say(msgItemUsed, params{"item": it.Name})

	switch it.Kind {
	case resource.ItemHeal:
		e.heal(side, it.Amount)
	case resource.ItemFullHeal:
		e.heal(side, maxHP)
	case resource.ItemShield:
		e.dispatch(setShield{on: true})
	case resource.ItemCharge:
		e.dispatch(addCharge{n: max(1, it.Amount)})
	}
	e.run.log.Append(record.Event{Kind: record.EventItem, At: e.clock.Now(), Round: s.Round, ItemID: id})
	e.audio.PlaySfx("item")
	e.after(e.delays.Text, e.beginEnemyTurn)
	return true
}
