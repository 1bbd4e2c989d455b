// internal/protocol/messages.go
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/game"
	"github.com/zhongsurehow/zhouyi/internal/mechanics"
)

// ErrProtocol marks a malformed envelope. It is returned only to the
// offending client and never disturbs the room lane.
var ErrProtocol = errors.New("protocol error")

// Envelope is the client-to-server message frame.
type Envelope struct {
	RoomID    string          `json:"room_id"`
	PlayerID  string          `json:"player_id"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Heartbeat is carried in the same frame as game actions but handled at
// the protocol layer, not by the resolver.
const ActionHeartbeat = "Heartbeat"

// actionData is the payload schema shared by all action kinds; each kind
// reads only its own fields.
type actionData struct {
	CardID   string `json:"card_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Side     string `json:"side,omitempty"`
	Question string `json:"question,omitempty"`
}

// DecodeEnvelope parses a raw websocket frame.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid json: %v", ErrProtocol, err)
	}
	if env.Action == "" {
		return Envelope{}, fmt.Errorf("%w: missing action", ErrProtocol)
	}
	return env, nil
}

// ParseAction maps an envelope onto a game action.
func ParseAction(env Envelope) (game.Action, error) {
	var data actionData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return game.Action{}, fmt.Errorf("%w: invalid action data: %v", ErrProtocol, err)
		}
	}

	a := game.Action{Kind: game.ActionKind(env.Action), Question: data.Question}
	switch a.Kind {
	case game.ActionPlayCard:
		cardID, err := uuid.Parse(data.CardID)
		if err != nil {
			return game.Action{}, fmt.Errorf("%w: bad card_id %q", ErrProtocol, data.CardID)
		}
		a.CardID = cardID
		if data.TargetID != "" {
			target, err := uuid.Parse(data.TargetID)
			if err != nil {
				return game.Action{}, fmt.Errorf("%w: bad target_id %q", ErrProtocol, data.TargetID)
			}
			a.Target = target
		}
	case game.ActionMeditate:
		side, ok := mechanics.ParsePolarity(data.Side)
		if !ok {
			return game.Action{}, fmt.Errorf("%w: bad side %q", ErrProtocol, data.Side)
		}
		a.Side = side
	case game.ActionStudy, game.ActionDivination, game.ActionEndTurn, game.ActionSurrender:
	default:
		return game.Action{}, fmt.Errorf("%w: unknown action %q", ErrProtocol, env.Action)
	}
	return a, nil
}

// Server-to-client message kinds.
const (
	MsgStateUpdate  = "state_update"
	MsgGameEnded    = "game_ended"
	MsgPlayerJoined = "player_joined"
	MsgPlayerLeft   = "player_left"
	MsgError        = "error"
	MsgHeartbeatAck = "heartbeat_ack"
)

// ServerMessage is the server-to-client frame. Fields are populated per
// kind; absent ones are omitted.
type ServerMessage struct {
	Type      string              `json:"type"`
	State     *game.Snapshot      `json:"state,omitempty"`
	Result    *game.VictoryResult `json:"result,omitempty"`
	PlayerID  string              `json:"player_id,omitempty"`
	ErrorKind string              `json:"error_kind,omitempty"`
	Message   string              `json:"message,omitempty"`
	Timestamp int64               `json:"timestamp,omitempty"`
}

// StateUpdate builds the post-commit broadcast frame.
func StateUpdate(snap game.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgStateUpdate, State: &snap}
}

// GameEnded announces the winner and the final snapshot.
func GameEnded(result game.VictoryResult, snap game.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgGameEnded, Result: &result, State: &snap}
}

// Error builds a rejection frame for the offending client only.
func Error(kind, message string) ServerMessage {
	return ServerMessage{Type: MsgError, ErrorKind: kind, Message: message}
}
