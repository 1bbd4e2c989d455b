// internal/room/room.go
package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhongsurehow/zhouyi/internal/feed"
	"github.com/zhongsurehow/zhouyi/internal/game"
	"github.com/zhongsurehow/zhouyi/internal/persist"
	"github.com/zhongsurehow/zhouyi/internal/protocol"
)

// Options carries the per-room timing and policy knobs.
type Options struct {
	HeartbeatInterval    time.Duration
	HeartbeatTimeoutMult int
	DisconnectGrace      time.Duration
	IdleTimeout          time.Duration
	AutoSurrender        bool
}

// Client is a single participant's live connection to a room. OutChan is
// drained by the connection's write pump; Cancel tears the socket down.
type Client struct {
	PlayerID  uuid.UUID
	Spectator bool
	Cancel    func()
	OutChan   chan protocol.ServerMessage
}

// Write pushes a message onto the client's OutChan non-blockingly.
// A full or abandoned channel drops the message rather than stalling
// the room lane.
func (c *Client) Write(logger *logrus.Entry, msg protocol.ServerMessage) {
	select {
	case c.OutChan <- msg:
	default:
		logger.WithFields(logrus.Fields{
			"player": c.PlayerID,
			"type":   msg.Type,
		}).Warn("client outbound channel full, dropping message")
	}
}

type cmdKind int

const (
	cmdAction cmdKind = iota
	cmdJoin
	cmdLeave
	cmdHeartbeat
	cmdSnapshot
)

// command is one unit of work for the room lane. Every mutation of room
// state flows through the commands channel, so arrival order is
// resolution order.
type command struct {
	kind     cmdKind
	client   *Client
	playerID uuid.UUID
	action   game.Action
	done     chan error
	snap     chan game.Snapshot
}

// Room owns one game and the connections watching it. A single goroutine
// (Run) drains the command channel; actions resolve one at a time, each
// against the state left by the previous one.
type Room struct {
	ID uuid.UUID

	opts     Options
	state    *game.GameState
	resolver *game.Resolver

	clients    map[uuid.UUID]*Client
	spectators map[uuid.UUID]*Client
	lastSeen   map[uuid.UUID]time.Time
	graceUntil map[uuid.UUID]time.Time

	subscribers []feed.Subscriber
	store       persist.Store
	logger      *logrus.Entry

	// OnEmpty fires after idle teardown, once the lane has stopped.
	OnEmpty func(roomID uuid.UUID)

	commands   chan command
	emptySince time.Time
}

// New wraps freshly created or restored game state in a room lane.
// Run must be started before Submit or Join are called.
func New(state *game.GameState, resolver *game.Resolver, opts Options, store persist.Store, subscribers []feed.Subscriber, logger *logrus.Logger) *Room {
	if store == nil {
		store = persist.Noop{}
	}
	return &Room{
		ID:          state.RoomID,
		opts:        opts,
		state:       state,
		resolver:    resolver,
		clients:     make(map[uuid.UUID]*Client),
		spectators:  make(map[uuid.UUID]*Client),
		lastSeen:    make(map[uuid.UUID]time.Time),
		graceUntil:  make(map[uuid.UUID]time.Time),
		subscribers: subscribers,
		store:       store,
		logger:      logger.WithField("room", state.RoomID),
		commands:    make(chan command, 64),
		emptySince:  time.Now(),
	}
}

// Submit queues an action without waiting for resolution.
func (rm *Room) Submit(playerID uuid.UUID, a game.Action) {
	rm.commands <- command{kind: cmdAction, playerID: playerID, action: a}
}

// SubmitWait queues an action and blocks until the lane has resolved it.
func (rm *Room) SubmitWait(playerID uuid.UUID, a game.Action) error {
	done := make(chan error, 1)
	rm.commands <- command{kind: cmdAction, playerID: playerID, action: a, done: done}
	return <-done
}

// Join registers a connection. Players reconnecting within their grace
// window resume their seat; unknown player ids attach as spectators.
// The full current snapshot is delivered to the new connection before
// Join returns.
func (rm *Room) Join(c *Client) error {
	done := make(chan error, 1)
	rm.commands <- command{kind: cmdJoin, client: c, done: done}
	return <-done
}

// Leave detaches a connection. The player's seat is retained for the
// disconnect grace window.
func (rm *Room) Leave(playerID uuid.UUID) {
	rm.commands <- command{kind: cmdLeave, playerID: playerID}
}

// Heartbeat records liveness for a connected client.
func (rm *Room) Heartbeat(playerID uuid.UUID) {
	rm.commands <- command{kind: cmdHeartbeat, playerID: playerID}
}

// Snapshot returns the lane's current view of the game.
func (rm *Room) Snapshot() game.Snapshot {
	snap := make(chan game.Snapshot, 1)
	rm.commands <- command{kind: cmdSnapshot, snap: snap}
	return <-snap
}

// Run drains the command channel until the context is cancelled or the
// room tears itself down after sitting empty past the idle timeout.
func (rm *Room) Run(ctx context.Context) {
	ticker := time.NewTicker(rm.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rm.teardown(context.Background())
			return
		case cmd := <-rm.commands:
			rm.dispatch(ctx, cmd)
		case now := <-ticker.C:
			rm.sweepDead(now)
			rm.sweepGrace(ctx, now)
			if rm.idleExpired(now) {
				rm.teardown(ctx)
				return
			}
		}
	}
}

func (rm *Room) dispatch(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdAction:
		err := rm.handleAction(ctx, cmd.playerID, cmd.action)
		if cmd.done != nil {
			cmd.done <- err
		}
	case cmdJoin:
		err := rm.handleJoin(cmd.client)
		if cmd.done != nil {
			cmd.done <- err
		}
	case cmdLeave:
		rm.handleLeave(cmd.playerID)
	case cmdHeartbeat:
		if c, ok := rm.lookup(cmd.playerID); ok {
			rm.lastSeen[cmd.playerID] = time.Now()
			c.Write(rm.logger, protocol.ServerMessage{Type: protocol.MsgHeartbeatAck, Timestamp: time.Now().UnixMilli()})
		}
	case cmdSnapshot:
		cmd.snap <- rm.state.Snapshot()
	}
}

func (rm *Room) lookup(playerID uuid.UUID) (*Client, bool) {
	if c, ok := rm.clients[playerID]; ok {
		return c, ok
	}
	c, ok := rm.spectators[playerID]
	return c, ok
}

// handleAction resolves one action against the current state. A rejection
// is reported to the acting client only; a commit is broadcast to every
// connection and pushed to the event feed.
func (rm *Room) handleAction(ctx context.Context, playerID uuid.UUID, a game.Action) error {
	// An action is proof of life, but only connections get liveness
	// tracking; the auto-surrender path acts for players long gone.
	if _, ok := rm.lookup(playerID); ok {
		rm.lastSeen[playerID] = time.Now()
	}

	next, effects, err := rm.resolver.Apply(rm.state, playerID, a)
	if err != nil {
		if errors.Is(err, game.ErrStateCorrupt) {
			rm.logger.WithError(err).Error("action produced corrupt state, prior state retained")
		}
		if c, ok := rm.clients[playerID]; ok {
			c.Write(rm.logger, protocol.Error(game.ErrorKind(err), err.Error()))
		}
		return err
	}

	result := game.EvaluateVictory(next, playerID)
	next.Winner = result
	rm.state = next

	rm.publish(ctx, playerID, a.Kind, effects)

	if result != nil {
		rm.broadcast(protocol.GameEnded(*result, next.Snapshot()))
		if saveErr := rm.store.SaveState(ctx, rm.ID, next.Snapshot()); saveErr != nil {
			rm.logger.WithError(saveErr).Warn("failed to persist final state")
		}
		return nil
	}
	rm.broadcast(protocol.StateUpdate(next.Snapshot()))
	return nil
}

func (rm *Room) publish(ctx context.Context, playerID uuid.UUID, kind game.ActionKind, effects []game.Effect) {
	if len(rm.subscribers) == 0 {
		return
	}
	ev := feed.Event{
		RoomID:    rm.ID,
		Seq:       len(rm.state.History) - 1,
		PlayerID:  playerID,
		Action:    kind,
		Effects:   effects,
		Snapshot:  rm.state.Snapshot(),
		Timestamp: time.Now().UnixMilli(),
	}
	for _, sub := range rm.subscribers {
		sub.Notify(ctx, ev)
	}
}

func (rm *Room) handleJoin(c *Client) error {
	if c.Spectator || rm.state.PlayerByID(c.PlayerID) == nil {
		c.Spectator = true
		if prev, ok := rm.spectators[c.PlayerID]; ok && prev.Cancel != nil {
			prev.Cancel()
		}
		rm.spectators[c.PlayerID] = c
	} else {
		if prev, ok := rm.clients[c.PlayerID]; ok && prev.Cancel != nil {
			prev.Cancel()
		}
		rm.clients[c.PlayerID] = c
		delete(rm.graceUntil, c.PlayerID)
	}
	rm.lastSeen[c.PlayerID] = time.Now()
	rm.emptySince = time.Time{}

	// Reconnect recovery is a full snapshot, never a diff.
	c.Write(rm.logger, protocol.StateUpdate(rm.state.Snapshot()))
	rm.broadcast(protocol.ServerMessage{Type: protocol.MsgPlayerJoined, PlayerID: c.PlayerID.String()})
	return nil
}

func (rm *Room) handleLeave(playerID uuid.UUID) {
	if c, ok := rm.spectators[playerID]; ok {
		delete(rm.spectators, playerID)
		if c.Cancel != nil {
			c.Cancel()
		}
	}
	if c, ok := rm.clients[playerID]; ok {
		delete(rm.clients, playerID)
		if c.Cancel != nil {
			c.Cancel()
		}
		rm.graceUntil[playerID] = time.Now().Add(rm.opts.DisconnectGrace)
	}
	delete(rm.lastSeen, playerID)

	rm.broadcast(protocol.ServerMessage{Type: protocol.MsgPlayerLeft, PlayerID: playerID.String()})
	if len(rm.clients) == 0 && len(rm.spectators) == 0 {
		rm.emptySince = time.Now()
	}
}

// sweepDead drops clients that have gone silent past the heartbeat
// timeout.
func (rm *Room) sweepDead(now time.Time) {
	timeout := rm.opts.HeartbeatInterval * time.Duration(rm.opts.HeartbeatTimeoutMult)
	for id, seen := range rm.lastSeen {
		if now.Sub(seen) <= timeout {
			continue
		}
		rm.logger.WithField("player", id).Info("heartbeat timeout, dropping connection")
		rm.handleLeave(id)
	}
}

// sweepGrace fires expired disconnect grace windows. The seat survives
// either way; auto surrender is opt-in.
func (rm *Room) sweepGrace(ctx context.Context, now time.Time) {
	for id, deadline := range rm.graceUntil {
		if now.Before(deadline) {
			continue
		}
		delete(rm.graceUntil, id)
		if !rm.opts.AutoSurrender || rm.state.Winner != nil {
			continue
		}
		if p := rm.state.PlayerByID(id); p == nil || p.Eliminated {
			continue
		}
		rm.logger.WithField("player", id).Info("disconnect grace expired, surrendering seat")
		if err := rm.handleAction(ctx, id, game.Action{Kind: game.ActionSurrender}); err != nil {
			rm.logger.WithError(err).Warn("auto surrender rejected")
		}
	}
}

func (rm *Room) idleExpired(now time.Time) bool {
	if rm.opts.IdleTimeout <= 0 || rm.emptySince.IsZero() {
		return false
	}
	return len(rm.clients) == 0 && len(rm.spectators) == 0 && now.Sub(rm.emptySince) > rm.opts.IdleTimeout
}

func (rm *Room) teardown(ctx context.Context) {
	// Finished games leave nothing to resume; live ones persist for a
	// later Restore.
	if rm.state.Winner != nil {
		if err := rm.store.DeleteState(ctx, rm.ID); err != nil {
			rm.logger.WithError(err).Warn("failed to delete state during teardown")
		}
	} else if err := rm.store.SaveState(ctx, rm.ID, rm.state.Snapshot()); err != nil {
		rm.logger.WithError(err).Warn("failed to persist state during teardown")
	}
	for _, c := range rm.clients {
		if c.Cancel != nil {
			c.Cancel()
		}
	}
	for _, c := range rm.spectators {
		if c.Cancel != nil {
			c.Cancel()
		}
	}
	rm.logger.Info("room torn down")
	if rm.OnEmpty != nil {
		rm.OnEmpty(rm.ID)
	}
}

func (rm *Room) broadcast(msg protocol.ServerMessage) {
	for _, c := range rm.clients {
		c.Write(rm.logger, msg)
	}
	for _, c := range rm.spectators {
		c.Write(rm.logger, msg)
	}
}
