// internal/persist/persist.go
package persist

import (
	"context"

	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/game"
)

// Store is the persistence collaborator. It is invoked only at room start
// (LoadState) and teardown (SaveState/DeleteState), never mid-action.
type Store interface {
	LoadState(ctx context.Context, roomID uuid.UUID) (game.Snapshot, bool, error)
	SaveState(ctx context.Context, roomID uuid.UUID, snap game.Snapshot) error
	DeleteState(ctx context.Context, roomID uuid.UUID) error
}

// Noop is the default store when no database is configured. Rooms are
// purely in-memory and vanish on teardown.
type Noop struct{}

func (Noop) LoadState(context.Context, uuid.UUID) (game.Snapshot, bool, error) {
	return game.Snapshot{}, false, nil
}

func (Noop) SaveState(context.Context, uuid.UUID, game.Snapshot) error { return nil }

func (Noop) DeleteState(context.Context, uuid.UUID) error { return nil }
