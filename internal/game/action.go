// internal/game/action.go
package game

import (
	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/mechanics"
)

// ActionKind tags a player action. Dispatch goes through an explicit
// handler table, not a type hierarchy.
type ActionKind string

const (
	ActionPlayCard   ActionKind = "PlayCard"
	ActionMeditate   ActionKind = "Meditate"
	ActionStudy      ActionKind = "Study"
	ActionDivination ActionKind = "Divination"
	ActionEndTurn    ActionKind = "EndTurn"
	ActionSurrender  ActionKind = "Surrender"
)

// Action is one requested move. Fields beyond Kind are used only by the
// kinds that need them.
type Action struct {
	Kind ActionKind

	// PlayCard
	CardID uuid.UUID
	Target uuid.UUID // optional target seat; zero means self

	// Meditate
	Side mechanics.Polarity

	// Divination
	Question string
}

// global reports whether the action is allowed out of turn. Surrender is
// the only one.
func (a Action) global() bool { return a.Kind == ActionSurrender }
