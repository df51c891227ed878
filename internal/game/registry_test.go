package game

import (
	"context"
	"regexp"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/proto"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.Defaults()
	cfg.Game = testGame()
	cfg.AI.SearchDepth = 4
	cfg.Network.ChatMinInterval = 200 * time.Millisecond
	mazes, err := data.EmbeddedMazeTable()
	if err != nil {
		t.Fatalf("load embedded maze: %v", err)
	}
	reg := NewRegistry(cfg, mazes, nil, nil, nil, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})
	return reg
}

func TestCreateRoomAllocatesUniqueCodes(t *testing.T) {
	reg := newTestRegistry(t)
	codePattern := regexp.MustCompile(`^[A-Z0-9]{4}$`)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		created, err := reg.CreateRoom(proto.CreateRoomRequest{})
		if err != nil {
			t.Fatalf("create room: %v", err)
		}
		if !codePattern.MatchString(created.RoomCode) {
			t.Fatalf("room code %q does not match [A-Z0-9]{4}", created.RoomCode)
		}
		if seen[created.RoomCode] {
			t.Fatalf("room code %q allocated twice", created.RoomCode)
		}
		seen[created.RoomCode] = true
	}
	if reg.RoomCount() != 20 {
		t.Fatalf("room count = %d, want 20", reg.RoomCount())
	}
}

func TestCreateRoomResolvesBrainSettings(t *testing.T) {
	reg := newTestRegistry(t)

	created, err := reg.CreateRoom(proto.CreateRoomRequest{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if created.SearchDepth != 4 {
		t.Fatalf("default depth = %d, want the configured 4", created.SearchDepth)
	}
	// No model is loaded, so every selector resolves to the heuristic.
	if created.Policy != proto.PolicyHeuristic {
		t.Fatalf("policy = %q, want heuristic", created.Policy)
	}

	created, err = reg.CreateRoom(proto.CreateRoomRequest{SearchDepth: 99, Policy: proto.PolicyAuto})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if created.SearchDepth != 20 {
		t.Fatalf("depth = %d, want clamped to 20", created.SearchDepth)
	}

	created, err = reg.CreateRoom(proto.CreateRoomRequest{SearchDepth: -3, Policy: proto.PolicyTabular})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if created.SearchDepth != 1 {
		t.Fatalf("depth = %d, want clamped to 1", created.SearchDepth)
	}
	if created.Policy != proto.PolicyHeuristic {
		t.Fatalf("policy = %q, want heuristic fallback without a model", created.Policy)
	}

	if _, err := reg.CreateRoom(proto.CreateRoomRequest{Policy: "quantum"}); err != ErrUnknownPolicy {
		t.Fatalf("unknown policy = %v, want ErrUnknownPolicy", err)
	}
}

func TestJoinSeatingErrors(t *testing.T) {
	reg := newTestRegistry(t)
	created, err := reg.CreateRoom(proto.CreateRoomRequest{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	code := created.RoomCode

	if _, err := reg.Join(&fakeConn{id: 1}, proto.JoinRoomRequest{
		RoomCode: "ZZZZ", Username: "ada", Ghost: proto.GhostBlinky,
	}); err != ErrRoomNotFound {
		t.Fatalf("join unknown room = %v, want ErrRoomNotFound", err)
	}

	joined, err := reg.Join(&fakeConn{id: 1}, proto.JoinRoomRequest{
		RoomCode: code, Username: "ada", Ghost: proto.GhostBlinky,
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.RoomCode != code || joined.ConnectionID != 1 || joined.Ghost != proto.GhostBlinky {
		t.Fatalf("joined = %+v", joined)
	}

	if _, err := reg.Join(&fakeConn{id: 2}, proto.JoinRoomRequest{
		RoomCode: code, Username: "bob", Ghost: proto.GhostBlinky,
	}); err != ErrGhostTaken {
		t.Fatalf("duplicate ghost = %v, want ErrGhostTaken", err)
	}
	if _, err := reg.Join(&fakeConn{id: 1}, proto.JoinRoomRequest{
		RoomCode: code, Username: "ada", Ghost: proto.GhostPinky,
	}); err != ErrAlreadyInRoom {
		t.Fatalf("double join = %v, want ErrAlreadyInRoom", err)
	}

	for id, ghost := range map[uint64]proto.GhostID{
		2: proto.GhostPinky, 3: proto.GhostInky, 4: proto.GhostClyde,
	} {
		if _, err := reg.Join(&fakeConn{id: id}, proto.JoinRoomRequest{
			RoomCode: code, Username: "p", Ghost: ghost,
		}); err != nil {
			t.Fatalf("join seat %s: %v", ghost, err)
		}
	}
	if reg.PlayerCount() != 4 {
		t.Fatalf("player count = %d, want 4", reg.PlayerCount())
	}
	if _, err := reg.Join(&fakeConn{id: 5}, proto.JoinRoomRequest{
		RoomCode: code, Username: "eve", Ghost: proto.GhostBlinky,
	}); err != ErrRoomFull {
		t.Fatalf("fifth join = %v, want ErrRoomFull", err)
	}

	for id := uint64(1); id <= 4; id++ {
		if err := reg.ToggleReady(id); err != nil {
			t.Fatalf("ready %d: %v", id, err)
		}
	}
	if err := reg.StartMatch(1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := reg.Join(&fakeConn{id: 6}, proto.JoinRoomRequest{
		RoomCode: code, Username: "late", Ghost: proto.GhostBlinky,
	}); err != ErrRoomStarted {
		t.Fatalf("join after start = %v, want ErrRoomStarted", err)
	}
}

func TestRoomOpsRequireMembership(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.ToggleReady(99); err != ErrNotInRoom {
		t.Fatalf("toggleReady = %v, want ErrNotInRoom", err)
	}
	if err := reg.StartMatch(99); err != ErrNotInRoom {
		t.Fatalf("startMatch = %v, want ErrNotInRoom", err)
	}
	if err := reg.SubmitInput(99, grid.Up); err != ErrNotInRoom {
		t.Fatalf("submitInput = %v, want ErrNotInRoom", err)
	}
	if err := reg.Chat(99, "hi"); err != ErrNotInRoom {
		t.Fatalf("chat = %v, want ErrNotInRoom", err)
	}
	if err := reg.RequestState(99); err != ErrNotInRoom {
		t.Fatalf("requestState = %v, want ErrNotInRoom", err)
	}
	if err := reg.Leave(99); err != ErrNotInRoom {
		t.Fatalf("leave = %v, want ErrNotInRoom", err)
	}
}

func TestLeaveAndDisconnectCleanup(t *testing.T) {
	reg := newTestRegistry(t)
	created, err := reg.CreateRoom(proto.CreateRoomRequest{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	conn := &fakeConn{id: 1}
	if _, err := reg.Join(conn, proto.JoinRoomRequest{
		RoomCode: created.RoomCode, Username: "ada", Ghost: proto.GhostBlinky,
	}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if reg.PlayerCount() != 1 {
		t.Fatalf("player count = %d, want 1", reg.PlayerCount())
	}

	if err := reg.Leave(1); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if reg.PlayerCount() != 0 {
		t.Fatalf("player count = %d, want 0", reg.PlayerCount())
	}
	// The sole player left, so the room tears itself down and releases.
	waitFor(t, time.Second, func() bool { return reg.RoomCount() == 0 })

	if err := reg.Leave(1); err != ErrNotInRoom {
		t.Fatalf("second leave = %v, want ErrNotInRoom", err)
	}
	reg.HandleDisconnect(42) // unknown session is a no-op
}

func TestRequestStateTargetsOneConnection(t *testing.T) {
	reg := newTestRegistry(t)
	created, err := reg.CreateRoom(proto.CreateRoomRequest{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	a := &fakeConn{id: 1}
	b := &fakeConn{id: 2}
	for _, j := range []struct {
		conn  *fakeConn
		ghost proto.GhostID
	}{{a, proto.GhostBlinky}, {b, proto.GhostPinky}} {
		if _, err := reg.Join(j.conn, proto.JoinRoomRequest{
			RoomCode: created.RoomCode, Username: "p", Ghost: j.ghost,
		}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	beforeA := len(framesOf[proto.GameStatePayload](t, a, proto.MsgGameState))
	beforeB := len(framesOf[proto.GameStatePayload](t, b, proto.MsgGameState))
	if err := reg.RequestState(1); err != nil {
		t.Fatalf("request state: %v", err)
	}
	if got := len(framesOf[proto.GameStatePayload](t, a, proto.MsgGameState)); got != beforeA+1 {
		t.Fatalf("requester gameState frames = %d, want %d", got, beforeA+1)
	}
	if got := len(framesOf[proto.GameStatePayload](t, b, proto.MsgGameState)); got != beforeB {
		t.Fatalf("bystander gameState frames = %d, want %d", got, beforeB)
	}
}

func TestSweepReapsExpiredRooms(t *testing.T) {
	reg := newTestRegistry(t)
	reg.cfg.Game.RoomTTL = 50 * time.Millisecond
	if _, err := reg.CreateRoom(proto.CreateRoomRequest{}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	if reaped := reg.Sweep(time.Now()); reaped != 0 {
		t.Fatalf("fresh sweep reaped %d rooms, want 0", reaped)
	}
	time.Sleep(80 * time.Millisecond)
	if reaped := reg.Sweep(time.Now()); reaped != 1 {
		t.Fatalf("expired sweep reaped %d rooms, want 1", reaped)
	}
	waitFor(t, time.Second, func() bool { return reg.RoomCount() == 0 })
}

func TestSnapshotListsRoomsSorted(t *testing.T) {
	reg := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		if _, err := reg.CreateRoom(proto.CreateRoomRequest{}); err != nil {
			t.Fatalf("create room: %v", err)
		}
	}
	snap := reg.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot rooms = %d, want 3", len(snap))
	}
	if !sort.SliceIsSorted(snap, func(i, j int) bool { return snap[i].Code < snap[j].Code }) {
		t.Fatalf("snapshot not code-ordered: %+v", snap)
	}
	for _, info := range snap {
		if info.Players != 0 || info.Started || info.Finished {
			t.Fatalf("fresh room info = %+v", info)
		}
		if info.CreatedAt.IsZero() {
			t.Fatal("room info missing creation time")
		}
	}
}

func TestShutdownReleasesEveryRoom(t *testing.T) {
	reg := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		if _, err := reg.CreateRoom(proto.CreateRoomRequest{}); err != nil {
			t.Fatalf("create room: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := reg.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if reg.RoomCount() != 0 {
		t.Fatalf("room count = %d after shutdown, want 0", reg.RoomCount())
	}
}
