// internal/game/resolver.go
package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/catalog"
	"github.com/zhongsurehow/zhouyi/internal/mechanics"
)

// Fixed action economy. Costs and conversion rates are part of the
// ruleset, not per-room configuration.
const (
	MeditateCost = 2 // qi spent per meditation
	MeditateGain = 2 // polarity points gained on the chosen side

	StudyCost = 2 // qi spent per study
	StudyGain = 1 // dao xing gained; study also draws one card

	DivinationCost = 2 // cheng yi spent per cast
)

// fortuneRewards maps a divination reading onto dao xing / qi deltas.
// Negative deltas clamp at zero; counters never go below it.
var fortuneRewards = map[mechanics.Fortune]struct{ dao, qi int }{
	mechanics.GreatFortune:    {2, 1},
	mechanics.GoodFortune:     {1, 1},
	mechanics.SmallFortune:    {1, 0},
	mechanics.EvenFortune:     {0, 0},
	mechanics.SmallMisfortune: {0, -1},
	mechanics.Misfortune:      {-1, -1},
	mechanics.GreatMisfortune: {-1, -2},
}

// Resolver validates and atomically applies single actions. It is
// stateless apart from its collaborators and safe to share across rooms.
type Resolver struct {
	catalog  catalog.Catalog
	policy   mechanics.LinePolicy
	handlers map[ActionKind]handlerFunc
}

// mutation carries a cloned state through one apply call. Handlers write
// only to player copies obtained via actor/target and append effects.
type mutation struct {
	state   *GameState
	actorIx int
	actor   *Player
	effects []Effect
	r       *Resolver
}

type handlerFunc func(*mutation, Action) error

// NewResolver wires the handler table.
func NewResolver(cat catalog.Catalog, policy mechanics.LinePolicy) *Resolver {
	r := &Resolver{catalog: cat, policy: policy}
	r.handlers = map[ActionKind]handlerFunc{
		ActionPlayCard:   (*mutation).playCard,
		ActionMeditate:   (*mutation).meditate,
		ActionStudy:      (*mutation).study,
		ActionDivination: (*mutation).divine,
		ActionEndTurn:    (*mutation).endTurn,
		ActionSurrender:  (*mutation).surrender,
	}
	return r
}

// Validate checks an action against the current state without applying
// it. Resource and target preconditions are re-checked inside Apply; the
// two never disagree because Apply calls Validate first.
func (r *Resolver) Validate(s *GameState, playerID uuid.UUID, a Action) error {
	if s.Winner != nil {
		return fmt.Errorf("%w: game already ended", ErrInvalidAction)
	}
	if _, ok := r.handlers[a.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	}
	p := s.PlayerByID(playerID)
	if p == nil {
		return fmt.Errorf("%w: player %s not in room", ErrInvalidAction, playerID)
	}
	if p.Eliminated {
		return fmt.Errorf("%w: player %s is eliminated", ErrInvalidAction, playerID)
	}
	if !a.global() && s.CurrentPlayer().ID != playerID {
		return fmt.Errorf("%w: not %s's turn", ErrInvalidAction, playerID)
	}

	switch a.Kind {
	case ActionPlayCard:
		def, ok := r.catalog.CardDefinition(a.CardID)
		if !ok {
			return fmt.Errorf("%w: unknown card %s", ErrInvalidTarget, a.CardID)
		}
		if indexOf(p.Hand, a.CardID) < 0 {
			return fmt.Errorf("%w: card %s not in hand", ErrInvalidTarget, a.CardID)
		}
		if p.Qi < def.Cost {
			return fmt.Errorf("%w: need %d qi, have %d", ErrInsufficientResource, def.Cost, p.Qi)
		}
		if _, err := resolveTarget(s, p, def.Effect.Target, a.Target); err != nil {
			return err
		}
	case ActionMeditate:
		if p.Qi < MeditateCost {
			return fmt.Errorf("%w: need %d qi, have %d", ErrInsufficientResource, MeditateCost, p.Qi)
		}
	case ActionStudy:
		if p.Qi < StudyCost {
			return fmt.Errorf("%w: need %d qi, have %d", ErrInsufficientResource, StudyCost, p.Qi)
		}
	case ActionDivination:
		if p.ChengYi < DivinationCost {
			return fmt.Errorf("%w: need %d cheng yi, have %d", ErrInsufficientResource, DivinationCost, p.ChengYi)
		}
	}
	return nil
}

// Apply validates, then applies the action to a copy-on-write clone.
// Either every effect of the action commits together or the original
// state is returned unchanged alongside the error.
func (r *Resolver) Apply(s *GameState, playerID uuid.UUID, a Action) (*GameState, []Effect, error) {
	if err := r.Validate(s, playerID, a); err != nil {
		return s, nil, err
	}

	next := s.clone()
	m := &mutation{state: next, r: r}
	for i, p := range next.Players {
		if p.ID == playerID {
			m.actorIx = i
			break
		}
	}
	m.actor = next.mutablePlayer(m.actorIx)

	if err := r.handlers[a.Kind](m, a); err != nil {
		return s, nil, err
	}

	next.History = append(append([]Record(nil), next.History...), Record{
		Seq:      len(next.History),
		Turn:     next.Turn,
		PlayerID: playerID,
		Action:   a.Kind,
		Effects:  m.effects,
	})

	if err := next.checkInvariants(); err != nil {
		return s, nil, err
	}
	return next, m.effects, nil
}

func indexOf(hand []uuid.UUID, id uuid.UUID) int {
	for i, c := range hand {
		if c == id {
			return i
		}
	}
	return -1
}

// resolveTarget maps an effect's target mode plus an optional explicit
// target id onto a seat index.
func resolveTarget(s *GameState, actor *Player, mode catalog.TargetMode, target uuid.UUID) (int, error) {
	if mode != catalog.TargetOther {
		return actor.Seat, nil
	}
	if target == uuid.Nil || target == actor.ID {
		return 0, fmt.Errorf("%w: card requires another player as target", ErrInvalidTarget)
	}
	t := s.PlayerByID(target)
	if t == nil {
		return 0, fmt.Errorf("%w: player %s not in room", ErrInvalidTarget, target)
	}
	if t.Eliminated {
		return 0, fmt.Errorf("%w: player %s is eliminated", ErrInvalidTarget, target)
	}
	return t.Seat, nil
}

func (m *mutation) emit(kind string, payload map[string]any) {
	m.effects = append(m.effects, Effect{Kind: kind, Payload: payload})
}

// applyPolarity adds points to one side of a player's polarity pair and
// grants the balance bonus as qi.
func (m *mutation) applyPolarity(p *Player, side mechanics.Polarity, points int) {
	if side == mechanics.Yang {
		p.YangPoints += points
	} else {
		p.YinPoints += points
	}
	m.emit("polarity", map[string]any{"player": p.ID, "side": side.String(), "points": points})

	if bonus := mechanics.BalanceBonus(p.BalanceRatio()); bonus > 0 {
		p.Qi += bonus
		m.emit("balance_bonus", map[string]any{"player": p.ID, "qi": bonus})
	}
}

// applyElement routes an element effect through the interaction table.
func (m *mutation) applyElement(p *Player, e mechanics.Element, strength int) {
	next, applied := mechanics.ApplyElement(p.Affinities, e, strength)
	p.Affinities = next
	m.emit("element", map[string]any{"player": p.ID, "element": e.String(), "applied": applied})
}

// transformOnce performs one hexagram transformation for the player and
// counts it toward the transformation victory path.
func (m *mutation) transformOnce(p *Player, primary mechanics.Hexagram) {
	set := m.r.policy.Select(m.state.rng)
	out := mechanics.Transform(primary, set)
	p.Transformations++
	m.emit("transformation", map[string]any{
		"player":      p.ID,
		"primary":     primary.Pattern(),
		"lines":       set.Indices(),
		"transformed": out.Pattern(),
	})
}

func (m *mutation) playCard(a Action) error {
	def, _ := m.r.catalog.CardDefinition(a.CardID)

	targetIx, err := resolveTarget(m.state, m.actor, def.Effect.Target, a.Target)
	if err != nil {
		return err
	}
	target := m.actor
	if targetIx != m.actorIx {
		target = m.state.mutablePlayer(targetIx)
	}

	m.actor.Qi -= def.Cost
	ix := indexOf(m.actor.Hand, a.CardID)
	m.actor.Hand = append(m.actor.Hand[:ix:ix], m.actor.Hand[ix+1:]...)
	m.actor.Consumed = append(m.actor.Consumed, a.CardID)
	m.emit("card_played", map[string]any{"player": m.actor.ID, "card": a.CardID, "cost": def.Cost})

	spec := def.Effect
	if spec.Polarity != nil {
		m.applyPolarity(target, *spec.Polarity, spec.PolarityPoints)
	}
	if spec.Element != nil {
		m.applyElement(target, *spec.Element, spec.ElementStrength)
	}
	if spec.Qi != 0 {
		target.Qi += spec.Qi
	}
	if spec.DaoXing != 0 {
		target.DaoXing += spec.DaoXing
	}
	if spec.ChengYi != 0 {
		target.ChengYi += spec.ChengYi
	}
	if spec.Transform {
		hx, ok := m.r.catalog.HexagramDefinition(def.Hexagram)
		if !ok {
			return fmt.Errorf("%w: card %s references unknown hexagram %d", ErrInvalidTarget, def.ID, def.Hexagram)
		}
		m.transformOnce(m.actor, hx)
	}
	return nil
}

func (m *mutation) meditate(a Action) error {
	m.actor.Qi -= MeditateCost
	m.applyPolarity(m.actor, a.Side, MeditateGain)
	return nil
}

func (m *mutation) study(Action) error {
	m.actor.Qi -= StudyCost
	m.actor.DaoXing += StudyGain
	m.emit("study", map[string]any{"player": m.actor.ID, "dao_xing": StudyGain})

	if len(m.state.DrawPile) > 0 {
		pile := m.state.DrawPile
		card := pile[len(pile)-1]
		m.state.DrawPile = append([]uuid.UUID(nil), pile[:len(pile)-1]...)
		m.actor.Hand = append(m.actor.Hand, card)
		m.emit("card_drawn", map[string]any{"player": m.actor.ID, "card": card})
	}
	return nil
}

func (m *mutation) divine(a Action) error {
	m.actor.ChengYi -= DivinationCost

	primary := mechanics.HexagramFromPattern(uint8(m.state.rng.Intn(64)))
	set := m.r.policy.Select(m.state.rng)
	transformed := mechanics.Transform(primary, set)
	fortune := mechanics.ReadFortune(primary, set)

	result := DivinationResult{
		ID:             uuid.New(),
		Question:       a.Question,
		Primary:        primary.Pattern(),
		ChangingLines:  set,
		Transformed:    transformed.Pattern(),
		Fortune:        fortune.String(),
		Interpretation: mechanics.Interpret(primary, transformed, set, fortune),
		Turn:           m.state.Turn,
	}
	m.actor.Divinations = append(m.actor.Divinations, result)
	m.actor.Transformations++

	reward := fortuneRewards[fortune]
	m.actor.DaoXing = clampZero(m.actor.DaoXing + reward.dao)
	m.actor.Qi = clampZero(m.actor.Qi + reward.qi)

	m.emit("divination", map[string]any{
		"player":      m.actor.ID,
		"primary":     result.Primary,
		"transformed": result.Transformed,
		"fortune":     result.Fortune,
	})
	return nil
}

func (m *mutation) endTurn(Action) error {
	// Turn boundary: the balance streak ticks or resets on the ratio the
	// player finishes the turn with.
	if m.actor.BalanceRatio() >= 0.8 {
		m.actor.BalanceStreak++
	} else {
		m.actor.BalanceStreak = 0
	}
	m.state.Turn++
	m.state.AdvanceTurn()
	m.emit("turn_ended", map[string]any{"player": m.actor.ID, "next": m.state.CurrentPlayer().ID, "turn": m.state.Turn})
	return nil
}

func (m *mutation) surrender(Action) error {
	m.actor.Eliminated = true
	m.emit("surrendered", map[string]any{"player": m.actor.ID})
	if m.state.CurrentIndex == m.actorIx {
		m.state.AdvanceTurn()
	}
	return nil
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
