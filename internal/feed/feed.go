// internal/feed/feed.go
package feed

import (
	"context"

	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/game"
)

// Event is one committed mutation as seen by the read-only observer feed:
// the action, its effects, and the resulting snapshot. Observers
// (tutorial, achievement, wisdom subsystems) consume these; they never
// call back into the resolver or the store.
type Event struct {
	RoomID    uuid.UUID       `json:"room_id"`
	Seq       int             `json:"seq"`
	PlayerID  uuid.UUID       `json:"player_id"`
	Action    game.ActionKind `json:"action"`
	Effects   []game.Effect   `json:"effects,omitempty"`
	Snapshot  game.Snapshot   `json:"snapshot"`
	Timestamp int64           `json:"timestamp"`
}

// Subscriber receives the feed. Implementations must not block the room
// lane; anything slow belongs behind a queue or goroutine of its own.
type Subscriber interface {
	Notify(ctx context.Context, ev Event)
}

// Func adapts a plain function to the Subscriber interface.
type Func func(ctx context.Context, ev Event)

func (f Func) Notify(ctx context.Context, ev Event) { f(ctx, ev) }
