package room

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zhongsurehow/zhouyi/internal/catalog"
	"github.com/zhongsurehow/zhouyi/internal/feed"
	"github.com/zhongsurehow/zhouyi/internal/game"
	"github.com/zhongsurehow/zhouyi/internal/mechanics"
	"github.com/zhongsurehow/zhouyi/internal/persist"
	"github.com/zhongsurehow/zhouyi/internal/protocol"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testOptions() Options {
	return Options{
		HeartbeatInterval:    time.Hour,
		HeartbeatTimeoutMult: 3,
		DisconnectGrace:      time.Hour,
		IdleTimeout:          0,
	}
}

func buildRoom(t *testing.T, roster []*game.Player, subs []feed.Subscriber, opts Options, store persist.Store) *Room {
	t.Helper()
	cat := catalog.Default()
	state := game.NewGameState(uuid.New(), roster, cat.Deck(), 7)
	resolver := game.NewResolver(cat, mechanics.UniformPolicy{})
	return New(state, resolver, opts, store, subs, testLogger())
}

func runRoom(t *testing.T, rm *Room) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go rm.Run(ctx)
}

func startRoom(t *testing.T, roster []*game.Player, subs []feed.Subscriber) *Room {
	t.Helper()
	rm := buildRoom(t, roster, subs, testOptions(), nil)
	runRoom(t, rm)
	return rm
}

func newClient(id uuid.UUID) *Client {
	return &Client{PlayerID: id, OutChan: make(chan protocol.ServerMessage, 32)}
}

func drain(c *Client) {
	for {
		select {
		case <-c.OutChan:
		default:
			return
		}
	}
}

func nextMessage(t *testing.T, c *Client) protocol.ServerMessage {
	t.Helper()
	select {
	case msg := <-c.OutChan:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server message")
		return protocol.ServerMessage{}
	}
}

func TestActionsResolveInArrivalOrder(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	// Both submissions land on the lane at the same instant; the second
	// must resolve against the state the first left behind.
	rm.Submit(p1.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yang})
	rm.Submit(p1.ID, game.Action{Kind: game.ActionEndTurn})

	// Valid only if the end turn above committed first.
	err := rm.SubmitWait(p2.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yin})
	require.NoError(t, err)

	snap := rm.Snapshot()
	require.Equal(t, 2, snap.Turn)
	require.Len(t, snap.History, 3)
	require.Equal(t, game.ActionMeditate, snap.History[0].Action)
	require.Equal(t, game.ActionEndTurn, snap.History[1].Action)
	require.Equal(t, p2.ID, snap.History[2].PlayerID)
	for i, rec := range snap.History {
		require.Equal(t, i, rec.Seq)
	}
}

func TestJoinDeliversFullSnapshot(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	c1 := newClient(p1.ID)
	require.NoError(t, rm.Join(c1))

	msg := nextMessage(t, c1)
	require.Equal(t, protocol.MsgStateUpdate, msg.Type)
	require.NotNil(t, msg.State)
	require.Len(t, msg.State.Players, 2)
	require.Equal(t, p1.ID, msg.State.Players[0].ID)
	require.Equal(t, game.InitialQi, msg.State.Players[0].Qi)
}

func TestUnknownPlayerJoinsAsSpectator(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	watcher := newClient(uuid.New())
	require.NoError(t, rm.Join(watcher))
	require.True(t, watcher.Spectator)

	msg := nextMessage(t, watcher)
	require.Equal(t, protocol.MsgStateUpdate, msg.Type)
}

func TestSpectatorRejoinCancelsPrevious(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	watcherID := uuid.New()
	cancelled := make(chan struct{})
	first := newClient(watcherID)
	first.Cancel = func() { close(cancelled) }
	require.NoError(t, rm.Join(first))

	second := newClient(watcherID)
	require.NoError(t, rm.Join(second))

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("displaced spectator connection was never cancelled")
	}
}

func TestRejectionReachesOriginOnly(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	c1, c2 := newClient(p1.ID), newClient(p2.ID)
	require.NoError(t, rm.Join(c1))
	require.NoError(t, rm.Join(c2))
	drain(c1)
	drain(c2)

	// Out of turn: seat 0 acts first.
	err := rm.SubmitWait(p2.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yin})
	require.Error(t, err)

	msg := nextMessage(t, c2)
	require.Equal(t, protocol.MsgError, msg.Type)
	require.Equal(t, "InvalidAction", msg.ErrorKind)
	require.Empty(t, c1.OutChan)

	snap := rm.Snapshot()
	require.Empty(t, snap.History)
}

func TestCommitBroadcastsToEveryConnection(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	c1, c2 := newClient(p1.ID), newClient(p2.ID)
	require.NoError(t, rm.Join(c1))
	require.NoError(t, rm.Join(c2))
	drain(c1)
	drain(c2)

	require.NoError(t, rm.SubmitWait(p1.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yang}))

	for _, c := range []*Client{c1, c2} {
		msg := nextMessage(t, c)
		require.Equal(t, protocol.MsgStateUpdate, msg.Type)
		require.Len(t, msg.State.History, 1)
	}
}

func TestVictoryBroadcastsGameEnded(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	p1.DaoXing = 99
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	c1, c2 := newClient(p1.ID), newClient(p2.ID)
	require.NoError(t, rm.Join(c1))
	require.NoError(t, rm.Join(c2))
	drain(c1)
	drain(c2)

	require.NoError(t, rm.SubmitWait(p1.ID, game.Action{Kind: game.ActionStudy}))

	for _, c := range []*Client{c1, c2} {
		msg := nextMessage(t, c)
		require.Equal(t, protocol.MsgGameEnded, msg.Type)
		require.NotNil(t, msg.Result)
		require.Equal(t, p1.ID, msg.Result.Winner)
		require.Equal(t, game.VictoryProgression, msg.Result.Kind)
	}

	// The lane rejects anything after the result is set.
	err := rm.SubmitWait(p2.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yin})
	require.Error(t, err)
}

func TestFeedReceivesCommittedEvents(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")

	events := make(chan feed.Event, 8)
	sub := feed.Func(func(_ context.Context, ev feed.Event) { events <- ev })
	rm := startRoom(t, []*game.Player{p1, p2}, []feed.Subscriber{sub})

	require.NoError(t, rm.SubmitWait(p1.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yang}))

	select {
	case ev := <-events:
		require.Equal(t, rm.ID, ev.RoomID)
		require.Equal(t, 0, ev.Seq)
		require.Equal(t, p1.ID, ev.PlayerID)
		require.Equal(t, game.ActionMeditate, ev.Action)
		require.NotEmpty(t, ev.Effects)
	case <-time.After(2 * time.Second):
		t.Fatal("no feed event received")
	}

	// Rejections never hit the feed.
	_ = rm.SubmitWait(p2.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yin})
	require.Empty(t, events)
}

func TestReconnectReclaimsSeat(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	c1 := newClient(p1.ID)
	require.NoError(t, rm.Join(c1))
	rm.Leave(p1.ID)

	again := newClient(p1.ID)
	require.NoError(t, rm.Join(again))
	require.False(t, again.Spectator)

	msg := nextMessage(t, again)
	require.Equal(t, protocol.MsgStateUpdate, msg.Type)

	// The held seat can act immediately after reconnecting.
	require.NoError(t, rm.SubmitWait(p1.ID, game.Action{Kind: game.ActionMeditate, Side: mechanics.Yang}))
}

func TestHeartbeatAcknowledged(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	rm := startRoom(t, []*game.Player{p1, p2}, nil)

	c1 := newClient(p1.ID)
	require.NoError(t, rm.Join(c1))
	drain(c1)

	rm.Heartbeat(p1.ID)
	msg := nextMessage(t, c1)
	require.Equal(t, protocol.MsgHeartbeatAck, msg.Type)
}

type recordingStore struct {
	saved   chan uuid.UUID
	deleted chan uuid.UUID
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		saved:   make(chan uuid.UUID, 4),
		deleted: make(chan uuid.UUID, 4),
	}
}

func (s *recordingStore) LoadState(context.Context, uuid.UUID) (game.Snapshot, bool, error) {
	return game.Snapshot{}, false, nil
}

func (s *recordingStore) SaveState(_ context.Context, roomID uuid.UUID, _ game.Snapshot) error {
	s.saved <- roomID
	return nil
}

func (s *recordingStore) DeleteState(_ context.Context, roomID uuid.UUID) error {
	s.deleted <- roomID
	return nil
}

func TestMissedHeartbeatsDropClient(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	opts := Options{
		HeartbeatInterval:    20 * time.Millisecond,
		HeartbeatTimeoutMult: 1,
		DisconnectGrace:      time.Hour,
	}
	rm := buildRoom(t, []*game.Player{p1, p2}, nil, opts, nil)
	runRoom(t, rm)

	dropped := make(chan struct{})
	c1 := newClient(p1.ID)
	c1.Cancel = func() { close(dropped) }
	require.NoError(t, rm.Join(c1))

	// No heartbeats arrive, so the sweep cuts the connection.
	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatal("silent client was never dropped")
	}

	// The seat survives the drop; a fresh connection reclaims it.
	again := newClient(p1.ID)
	require.NoError(t, rm.Join(again))
	require.False(t, again.Spectator)
}

func TestGraceExpiryAutoSurrenders(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	opts := Options{
		HeartbeatInterval:    10 * time.Millisecond,
		HeartbeatTimeoutMult: 1000,
		DisconnectGrace:      20 * time.Millisecond,
		AutoSurrender:        true,
	}
	rm := buildRoom(t, []*game.Player{p1, p2}, nil, opts, nil)
	runRoom(t, rm)

	c1 := newClient(p1.ID)
	require.NoError(t, rm.Join(c1))
	rm.Leave(p1.ID)

	require.Eventually(t, func() bool {
		snap := rm.Snapshot()
		return snap.Winner != nil
	}, 2*time.Second, 10*time.Millisecond, "grace expiry never surrendered the seat")

	snap := rm.Snapshot()
	require.Equal(t, game.VictoryElimination, snap.Winner.Kind)
	require.Equal(t, p2.ID, snap.Winner.Winner)
	require.True(t, snap.Players[0].Eliminated)
}

func TestGraceExpiryWithoutAutoSurrenderKeepsSeat(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	opts := Options{
		HeartbeatInterval:    10 * time.Millisecond,
		HeartbeatTimeoutMult: 1000,
		DisconnectGrace:      20 * time.Millisecond,
		AutoSurrender:        false,
	}
	rm := buildRoom(t, []*game.Player{p1, p2}, nil, opts, nil)
	runRoom(t, rm)

	c1 := newClient(p1.ID)
	require.NoError(t, rm.Join(c1))
	rm.Leave(p1.ID)

	time.Sleep(100 * time.Millisecond)
	snap := rm.Snapshot()
	require.Nil(t, snap.Winner)
	require.False(t, snap.Players[0].Eliminated)
}

func TestAutoSurrenderLeavesNoLivenessTrace(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	opts := Options{
		HeartbeatInterval:    25 * time.Millisecond,
		HeartbeatTimeoutMult: 4,
		DisconnectGrace:      30 * time.Millisecond,
		AutoSurrender:        true,
	}
	rm := buildRoom(t, []*game.Player{p1, p2}, nil, opts, nil)
	runRoom(t, rm)

	c1, c2 := newClient(p1.ID), newClient(p2.ID)
	require.NoError(t, rm.Join(c1))
	require.NoError(t, rm.Join(c2))

	// Keep the observer alive through every sweep.
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rm.Heartbeat(p2.ID)
			}
		}
	}()

	rm.Leave(p1.ID)

	// The surrendered seat must not re-enter liveness tracking; only the
	// real disconnect may announce a departure.
	var leftCount int
	sawEnd := false
	deadline := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case msg := <-c2.OutChan:
			if msg.Type == protocol.MsgPlayerLeft && msg.PlayerID == p1.ID.String() {
				leftCount++
			}
			if msg.Type == protocol.MsgGameEnded {
				sawEnd = true
			}
		case <-deadline:
			done = true
		}
	}
	require.True(t, sawEnd, "auto surrender never ended the game")
	require.Equal(t, 1, leftCount, "departure announced more than once")
}

func TestIdleTeardownSavesLiveState(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	opts := Options{
		HeartbeatInterval:    10 * time.Millisecond,
		HeartbeatTimeoutMult: 1000,
		DisconnectGrace:      time.Hour,
		IdleTimeout:          20 * time.Millisecond,
	}
	store := newRecordingStore()
	rm := buildRoom(t, []*game.Player{p1, p2}, nil, opts, store)

	emptied := make(chan uuid.UUID, 1)
	rm.OnEmpty = func(id uuid.UUID) { emptied <- id }
	runRoom(t, rm)

	// Nobody ever connects; the room persists itself and goes away.
	select {
	case id := <-store.saved:
		require.Equal(t, rm.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("idle room never saved its state")
	}
	select {
	case id := <-emptied:
		require.Equal(t, rm.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("OnEmpty never fired")
	}
}

func TestIdleTeardownDeletesFinishedState(t *testing.T) {
	p1 := game.NewPlayer(uuid.New(), "Wei")
	p2 := game.NewPlayer(uuid.New(), "Shan")
	p1.DaoXing = 99
	opts := Options{
		HeartbeatInterval:    25 * time.Millisecond,
		HeartbeatTimeoutMult: 1000,
		DisconnectGrace:      time.Hour,
		IdleTimeout:          50 * time.Millisecond,
	}
	store := newRecordingStore()
	rm := buildRoom(t, []*game.Player{p1, p2}, nil, opts, store)
	runRoom(t, rm)

	// Finish the game before the idle clock runs out. The end-of-game
	// save happens first, then teardown clears the snapshot.
	require.NoError(t, rm.SubmitWait(p1.ID, game.Action{Kind: game.ActionStudy}))

	select {
	case id := <-store.deleted:
		require.Equal(t, rm.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("finished room never deleted its state")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := NewRegistry(ctx, catalog.Default(), mechanics.ConservativePolicy{}, testOptions(), 4, nil, nil, testLogger())

	_, err := reg.Create([]*game.Player{game.NewPlayer(uuid.New(), "Solo")})
	require.ErrorIs(t, err, ErrRosterSize)

	crowd := make([]*game.Player, 5)
	for i := range crowd {
		crowd[i] = game.NewPlayer(uuid.New(), "P")
	}
	_, err = reg.Create(crowd)
	require.ErrorIs(t, err, ErrRoomFull)

	roster := []*game.Player{
		game.NewPlayer(uuid.New(), "Wei"),
		game.NewPlayer(uuid.New(), "Shan"),
	}
	rm, err := reg.Create(roster)
	require.NoError(t, err)

	got, err := reg.Get(rm.ID)
	require.NoError(t, err)
	require.Equal(t, rm, got)
	require.Contains(t, reg.List(), rm.ID)

	_, err = reg.Get(uuid.New())
	require.ErrorIs(t, err, ErrRoomNotFound)
}
