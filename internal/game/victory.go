// internal/game/victory.go
package game

import "github.com/google/uuid"

// VictoryKind names the predicate that ended the game.
type VictoryKind string

const (
	VictoryElimination    VictoryKind = "elimination"
	VictoryProgression    VictoryKind = "progression"
	VictoryBalance        VictoryKind = "sustained_balance"
	VictoryElements       VictoryKind = "elemental_mastery"
	VictoryTransformation VictoryKind = "transformation_count"
)

// Victory thresholds. Fixed by the ruleset.
const (
	ProgressionTarget = 100
	// BalanceStreakTarget is consecutive completed turns at ratio >= 0.8.
	BalanceStreakTarget = 5
	// ElementalMasteryThreshold must be strictly exceeded in every element.
	ElementalMasteryThreshold = 7
	TransformationTarget      = 20
)

// VictoryResult names the winner, the satisfied predicate, and the turn
// on which evaluation fired.
type VictoryResult struct {
	Winner uuid.UUID   `json:"winner"`
	Kind   VictoryKind `json:"kind"`
	Turn   int         `json:"turn"`
}

// predicate reports whether one player satisfies one victory path.
type predicate struct {
	kind VictoryKind
	ok   func(*Player) bool
}

// Predicates are scanned in fixed priority order; the first satisfied
// one wins regardless of what lower-priority predicates say.
var predicates = []predicate{
	{VictoryProgression, func(p *Player) bool { return p.DaoXing >= ProgressionTarget }},
	{VictoryBalance, func(p *Player) bool { return p.BalanceStreak >= BalanceStreakTarget }},
	{VictoryElements, func(p *Player) bool {
		for _, a := range p.Affinities {
			if a <= ElementalMasteryThreshold {
				return false
			}
		}
		return true
	}},
	{VictoryTransformation, func(p *Player) bool { return p.Transformations >= TransformationTarget }},
}

// EvaluateVictory scans the ordered predicates against a state that just
// committed a mutation. actorID is the player whose action triggered the
// evaluation; it breaks ties within a predicate ahead of roster order.
// Returns nil while the game continues.
func EvaluateVictory(s *GameState, actorID uuid.UUID) *VictoryResult {
	// Elimination outranks everything else.
	if s.ActiveCount() == 1 {
		for _, p := range s.Players {
			if !p.Eliminated {
				return &VictoryResult{Winner: p.ID, Kind: VictoryElimination, Turn: s.Turn}
			}
		}
	}

	for _, pred := range predicates {
		var winner *Player
		for _, p := range s.Players {
			if p.Eliminated || !pred.ok(p) {
				continue
			}
			if p.ID == actorID {
				winner = p
				break
			}
			if winner == nil {
				winner = p
			}
		}
		if winner != nil {
			return &VictoryResult{Winner: winner.ID, Kind: pred.kind, Turn: s.Turn}
		}
	}
	return nil
}
