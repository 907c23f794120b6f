package battle

import (
	"github.com/enetx/fsm"
)

// phaseEdges is the battle-screen transition table. Each edge is triggered
// by an event named after its target phase.
var phaseEdges = map[Phase][]Phase{
	PhaseMenu:      {PhaseQuestion, PhaseText},
	PhaseQuestion:  {PhasePlayerAtk, PhaseText},
	PhasePlayerAtk: {PhaseText, PhaseEnemyAtk, PhaseVictory, PhaseMenu, PhaseKO},
	PhaseText:      {PhaseText, PhaseEnemyAtk, PhaseMenu, PhaseVictory, PhaseKO},
	PhaseEnemyAtk:  {PhaseEnemyAtk, PhaseText, PhaseMenu, PhaseVictory, PhaseKO},
	PhaseVictory:   {PhaseMenu},
	PhaseKO:        {},
}

func newPhaseMachine(initial Phase) *fsm.FSM {
	m := fsm.New(fsm.State(initial))
	for from, tos := range phaseEdges {
		for _, to := range tos {
			m.Transition(fsm.State(from), fsm.Event(to), fsm.State(to))
		}
	}
	return m
}

// canTransition reports whether the table has an edge from -> to.
func canTransition(from, to Phase) bool {
	for _, p := range phaseEdges[from] {
		if p == to {
			return true
		}
	}
	return false
}
