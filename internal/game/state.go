// internal/game/state.go
package game

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/mechanics"
)

// DivinationResult is one completed cast, appended to the casting
// player's history.
type DivinationResult struct {
	ID             uuid.UUID                 `json:"id"`
	Question       string                    `json:"question"`
	Primary        uint8                     `json:"primary"`
	ChangingLines  mechanics.ChangingLineSet `json:"changing_lines"`
	Transformed    uint8                     `json:"transformed"`
	Fortune        string                    `json:"fortune"`
	Interpretation string                    `json:"interpretation"`
	Turn           int                       `json:"turn"`
}

// Player is one seat in a room. Elimination sets a flag rather than
// removing the entry so seat arithmetic stays stable for the room's
// lifetime. Counters never go negative; only the resolver mutates them.
type Player struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Seat int       `json:"seat"`

	Qi      int `json:"qi"`       // primary action resource
	DaoXing int `json:"dao_xing"` // progression counter
	ChengYi int `json:"cheng_yi"` // sincerity, consumed by divination

	YinPoints  int `json:"yin_points"`
	YangPoints int `json:"yang_points"`

	Affinities mechanics.Affinities `json:"affinities"`

	Hand     []uuid.UUID `json:"hand"`
	Consumed []uuid.UUID `json:"consumed"`

	Eliminated bool `json:"eliminated"`

	BalanceStreak   int                `json:"balance_streak"`
	Transformations int                `json:"transformations"`
	Divinations     []DivinationResult `json:"divinations"`
}

// BalanceRatio is the player's current yin/yang balance.
func (p *Player) BalanceRatio() float64 {
	return mechanics.BalanceRatio(p.YinPoints, p.YangPoints)
}

func (p *Player) clone() *Player {
	cp := *p
	cp.Hand = append([]uuid.UUID(nil), p.Hand...)
	cp.Consumed = append([]uuid.UUID(nil), p.Consumed...)
	cp.Divinations = append([]DivinationResult(nil), p.Divinations...)
	return &cp
}

// Record is one committed action in the append-only history.
type Record struct {
	Seq      int        `json:"seq"`
	Turn     int        `json:"turn"`
	PlayerID uuid.UUID  `json:"player_id"`
	Action   ActionKind `json:"action"`
	Effects  []Effect   `json:"effects,omitempty"`
}

// Effect is one observable consequence of a committed action.
type Effect struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Starting resources for a fresh seat.
const (
	InitialQi       = 10
	InitialChengYi  = 3
	InitialHandSize = 4
)

// NewPlayer creates a seat with the starting resource pool. Seat index is
// assigned when the roster enters NewGameState.
func NewPlayer(id uuid.UUID, name string) *Player {
	return &Player{ID: id, Name: name, Qi: InitialQi, ChengYi: InitialChengYi}
}

// GameState is the canonical per-room state. It is owned by exactly one
// room lane; nothing else mutates it.
type GameState struct {
	RoomID       uuid.UUID `json:"room_id"`
	Players      []*Player `json:"players"`
	CurrentIndex int       `json:"current_index"`
	Turn         int       `json:"turn"`

	DrawPile []uuid.UUID    `json:"draw_pile"`
	History  []Record       `json:"history"`
	Winner   *VictoryResult `json:"winner,omitempty"`

	rng *rand.Rand
}

// NewGameState creates room state from a fixed roster. Membership never
// changes afterward. The draw pile is the catalog deck shuffled with the
// room's seed.
func NewGameState(roomID uuid.UUID, roster []*Player, deck []uuid.UUID, seed int64) *GameState {
	s := &GameState{
		RoomID:   roomID,
		Players:  roster,
		DrawPile: append([]uuid.UUID(nil), deck...),
		Turn:     1,
		rng:      rand.New(rand.NewSource(seed)),
	}
	for i, p := range roster {
		p.Seat = i
	}
	s.rng.Shuffle(len(s.DrawPile), func(i, j int) {
		s.DrawPile[i], s.DrawPile[j] = s.DrawPile[j], s.DrawPile[i]
	})
	for i := 0; i < InitialHandSize; i++ {
		for _, p := range s.Players {
			if len(s.DrawPile) == 0 {
				break
			}
			card := s.DrawPile[len(s.DrawPile)-1]
			s.DrawPile = s.DrawPile[:len(s.DrawPile)-1]
			p.Hand = append(p.Hand, card)
		}
	}
	return s
}

// RNG exposes the state-owned random source. Tests replace it for
// deterministic casts.
func (s *GameState) RNG() *rand.Rand { return s.rng }

// SetRNG swaps the random source. Used when restoring a persisted state
// and in tests.
func (s *GameState) SetRNG(r *rand.Rand) { s.rng = r }

// CurrentPlayer returns the player at the turn pointer.
func (s *GameState) CurrentPlayer() *Player {
	return s.Players[s.CurrentIndex]
}

// PlayerByID returns the seat with the given id, or nil.
func (s *GameState) PlayerByID(id uuid.UUID) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ActiveCount returns how many seats are not eliminated.
func (s *GameState) ActiveCount() int {
	n := 0
	for _, p := range s.Players {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

// AdvanceTurn moves the turn pointer to the next non-eliminated seat in
// roster order, wrapping around. With a single active seat left the
// pointer settles on it and stays; the elimination predicate ends the
// game instead.
func (s *GameState) AdvanceTurn() {
	switch s.ActiveCount() {
	case 0:
		return
	case 1:
		for i, p := range s.Players {
			if !p.Eliminated {
				s.CurrentIndex = i
				return
			}
		}
	}
	idx := s.CurrentIndex
	for i := 0; i < len(s.Players); i++ {
		idx = (idx + 1) % len(s.Players)
		if !s.Players[idx].Eliminated {
			s.CurrentIndex = idx
			return
		}
	}
}

// clone makes a shallow copy sharing player pointers. Mutating handlers
// call mutablePlayer to copy-on-write the seats they touch, so a failed
// apply leaves the original state observably untouched.
func (s *GameState) clone() *GameState {
	cp := *s
	cp.Players = append([]*Player(nil), s.Players...)
	return &cp
}

// mutablePlayer returns a private copy of seat i inside a cloned state.
func (s *GameState) mutablePlayer(i int) *Player {
	p := s.Players[i].clone()
	s.Players[i] = p
	return p
}

// checkInvariants verifies counters and the turn pointer after a
// mutation. A violation here is a bug in the resolver, so it surfaces as
// the fatal ErrStateCorrupt rather than a client error.
func (s *GameState) checkInvariants() error {
	if len(s.Players) == 0 {
		return fmt.Errorf("%w: empty roster", ErrStateCorrupt)
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Players) {
		return fmt.Errorf("%w: current index %d out of range", ErrStateCorrupt, s.CurrentIndex)
	}
	if s.ActiveCount() > 0 && s.CurrentPlayer().Eliminated {
		return fmt.Errorf("%w: turn pointer on eliminated seat %d", ErrStateCorrupt, s.CurrentIndex)
	}
	for _, p := range s.Players {
		counters := []int{p.Qi, p.DaoXing, p.ChengYi, p.YinPoints, p.YangPoints, p.BalanceStreak, p.Transformations}
		for _, c := range counters {
			if c < 0 {
				return fmt.Errorf("%w: negative counter on player %s", ErrStateCorrupt, p.ID)
			}
		}
		for _, a := range p.Affinities {
			if a < 0 {
				return fmt.Errorf("%w: negative affinity on player %s", ErrStateCorrupt, p.ID)
			}
		}
	}
	return nil
}

// ValidateLoaded checks a state restored from persistence before a room
// starts from it. The same invariants apply; a corrupt load refuses the
// room rather than attempting repair.
func (s *GameState) ValidateLoaded() error {
	return s.checkInvariants()
}
