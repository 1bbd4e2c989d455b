// internal/room/registry.go
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhongsurehow/zhouyi/internal/catalog"
	"github.com/zhongsurehow/zhouyi/internal/feed"
	"github.com/zhongsurehow/zhouyi/internal/game"
	"github.com/zhongsurehow/zhouyi/internal/mechanics"
	"github.com/zhongsurehow/zhouyi/internal/persist"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room full")
	ErrRosterSize   = errors.New("roster too small")
)

// Registry tracks every live room on this server instance and owns the
// shared dependencies new rooms are wired with.
type Registry struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room

	cat         catalog.Catalog
	policy      mechanics.LinePolicy
	opts        Options
	maxPlayers  int
	store       persist.Store
	subscribers []feed.Subscriber
	logger      *logrus.Logger

	ctx context.Context
}

// NewRegistry builds a registry. ctx bounds the lifetime of every room
// lane it starts.
func NewRegistry(ctx context.Context, cat catalog.Catalog, policy mechanics.LinePolicy, opts Options, maxPlayers int, store persist.Store, subscribers []feed.Subscriber, logger *logrus.Logger) *Registry {
	if store == nil {
		store = persist.Noop{}
	}
	return &Registry{
		rooms:       make(map[uuid.UUID]*Room),
		cat:         cat,
		policy:      policy,
		opts:        opts,
		maxPlayers:  maxPlayers,
		store:       store,
		subscribers: subscribers,
		logger:      logger,
		ctx:         ctx,
	}
}

// Create starts a room with a fixed roster. Membership never changes
// after this point; later connections either claim one of these seats
// or spectate.
func (r *Registry) Create(roster []*game.Player) (*Room, error) {
	if len(roster) < 2 {
		return nil, fmt.Errorf("%w: got %d players, want at least 2", ErrRosterSize, len(roster))
	}
	if len(roster) > r.maxPlayers {
		return nil, fmt.Errorf("%w: got %d players, max %d", ErrRoomFull, len(roster), r.maxPlayers)
	}

	roomID := uuid.New()
	state := game.NewGameState(roomID, roster, r.cat.Deck(), time.Now().UnixNano())
	return r.start(state), nil
}

// Restore rebuilds a room from its persisted snapshot. A snapshot that
// fails validation is refused rather than repaired.
func (r *Registry) Restore(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	snap, found, err := r.store.LoadState(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	state := game.FromSnapshot(snap, time.Now().UnixNano())
	if err := state.ValidateLoaded(); err != nil {
		return nil, fmt.Errorf("refusing to restore room %s: %w", roomID, err)
	}
	return r.start(state), nil
}

func (r *Registry) start(state *game.GameState) *Room {
	resolver := game.NewResolver(r.cat, r.policy)
	rm := New(state, resolver, r.opts, r.store, r.subscribers, r.logger)
	rm.OnEmpty = r.remove

	r.mu.Lock()
	r.rooms[rm.ID] = rm
	r.mu.Unlock()

	go rm.Run(r.ctx)
	return rm
}

// Get returns the live room for an id.
func (r *Registry) Get(roomID uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return rm, nil
}

// List returns the ids of every live room.
func (r *Registry) List() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Delete drops a room from the registry. The lane keeps draining until
// its context ends or it times out idle; new lookups fail immediately.
func (r *Registry) Delete(roomID uuid.UUID) {
	r.remove(roomID)
}

func (r *Registry) remove(roomID uuid.UUID) {
	r.mu.Lock()
	delete(r.rooms, roomID)
	r.mu.Unlock()
}
