// internal/game/snapshot.go
package game

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/mechanics"
)

// PlayerSnapshot is the serializable view of one seat.
type PlayerSnapshot struct {
	ID              uuid.UUID            `json:"id"`
	Name            string               `json:"name"`
	Seat            int                  `json:"seat"`
	Qi              int                  `json:"qi"`
	DaoXing         int                  `json:"dao_xing"`
	ChengYi         int                  `json:"cheng_yi"`
	YinPoints       int                  `json:"yin_points"`
	YangPoints      int                  `json:"yang_points"`
	BalanceRatio    float64              `json:"balance_ratio"`
	Affinities      mechanics.Affinities `json:"affinities"`
	Hand            []uuid.UUID          `json:"hand"`
	Consumed        []uuid.UUID          `json:"consumed"`
	Eliminated      bool                 `json:"eliminated"`
	BalanceStreak   int                  `json:"balance_streak"`
	Transformations int                  `json:"transformations"`
	Divinations     []DivinationResult   `json:"divinations"`
}

// Snapshot is the full externally-serializable representation of a room's
// state. It serves three consumers: broadcast after each commit,
// reconnect catch-up, and the persistence collaborator (it round-trips
// losslessly apart from the random source).
type Snapshot struct {
	RoomID          uuid.UUID        `json:"room_id"`
	Players         []PlayerSnapshot `json:"players"`
	CurrentPlayerID uuid.UUID        `json:"current_player_id"`
	CurrentIndex    int              `json:"current_index"`
	Turn            int              `json:"turn"`
	DrawPile        []uuid.UUID      `json:"draw_pile"`
	History         []Record         `json:"history"`
	Winner          *VictoryResult   `json:"winner,omitempty"`
}

// Snapshot produces the broadcast/persistence view of the state.
func (s *GameState) Snapshot() Snapshot {
	snap := Snapshot{
		RoomID:          s.RoomID,
		CurrentPlayerID: s.CurrentPlayer().ID,
		CurrentIndex:    s.CurrentIndex,
		Turn:            s.Turn,
		DrawPile:        append([]uuid.UUID(nil), s.DrawPile...),
		History:         append([]Record(nil), s.History...),
		Winner:          s.Winner,
	}
	for _, p := range s.Players {
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID:              p.ID,
			Name:            p.Name,
			Seat:            p.Seat,
			Qi:              p.Qi,
			DaoXing:         p.DaoXing,
			ChengYi:         p.ChengYi,
			YinPoints:       p.YinPoints,
			YangPoints:      p.YangPoints,
			BalanceRatio:    p.BalanceRatio(),
			Affinities:      p.Affinities,
			Hand:            append([]uuid.UUID(nil), p.Hand...),
			Consumed:        append([]uuid.UUID(nil), p.Consumed...),
			Eliminated:      p.Eliminated,
			BalanceStreak:   p.BalanceStreak,
			Transformations: p.Transformations,
			Divinations:     append([]DivinationResult(nil), p.Divinations...),
		})
	}
	return snap
}

// FromSnapshot rebuilds room state from a persisted snapshot. The caller
// supplies a fresh seed for the restored random source.
func FromSnapshot(snap Snapshot, seed int64) *GameState {
	s := &GameState{
		RoomID:       snap.RoomID,
		CurrentIndex: snap.CurrentIndex,
		Turn:         snap.Turn,
		DrawPile:     append([]uuid.UUID(nil), snap.DrawPile...),
		History:      append([]Record(nil), snap.History...),
		Winner:       snap.Winner,
		rng:          rand.New(rand.NewSource(seed)),
	}
	for _, ps := range snap.Players {
		s.Players = append(s.Players, &Player{
			ID:              ps.ID,
			Name:            ps.Name,
			Seat:            ps.Seat,
			Qi:              ps.Qi,
			DaoXing:         ps.DaoXing,
			ChengYi:         ps.ChengYi,
			YinPoints:       ps.YinPoints,
			YangPoints:      ps.YangPoints,
			Affinities:      ps.Affinities,
			Hand:            append([]uuid.UUID(nil), ps.Hand...),
			Consumed:        append([]uuid.UUID(nil), ps.Consumed...),
			Eliminated:      ps.Eliminated,
			BalanceStreak:   ps.BalanceStreak,
			Transformations: ps.Transformations,
			Divinations:     append([]DivinationResult(nil), ps.Divinations...),
		})
	}
	return s
}
