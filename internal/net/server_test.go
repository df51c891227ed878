package net_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/game"
	"github.com/ghostrush/server/internal/handler"
	gnet "github.com/ghostrush/server/internal/net"
	"github.com/ghostrush/server/internal/net/message"
	"github.com/ghostrush/server/internal/proto"
)

func newTestServer(t *testing.T) (*httptest.Server, *game.Registry) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Game.TickPeriod = 5 * time.Millisecond
	cfg.Game.MatchDuration = time.Second
	cfg.Network.ChatMinInterval = 0

	log := zap.NewNop()
	mazes, err := data.EmbeddedMazeTable()
	if err != nil {
		t.Fatalf("embedded maze table: %v", err)
	}
	reg := game.NewRegistry(cfg, mazes, nil, nil, nil, log)
	dispatch := message.NewRegistry(log)
	handler.RegisterAll(dispatch, &handler.Deps{Registry: reg, Config: cfg, Log: log})
	srv := gnet.NewServer(cfg, reg, dispatch, nil, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := reg.Shutdown(ctx); err != nil {
			t.Errorf("registry shutdown: %v", err)
		}
	})
	return ts, reg
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	frame, err := proto.Encode(msgType, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// recv reads frames until one of the wanted type arrives, skipping
// interleaved broadcasts.
func recv[T any](t *testing.T, conn *websocket.Conn, msgType string) T {
	t.Helper()
	var out T
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", msgType, err)
		}
		env, err := proto.Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Type != msgType {
			continue
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &out); err != nil {
				t.Fatalf("unmarshal %s: %v", msgType, err)
			}
		}
		return out
	}
}

func createAndJoin(t *testing.T, ts *httptest.Server, conn *websocket.Conn, username string, ghost proto.GhostID) string {
	t.Helper()
	send(t, conn, proto.MsgCreateRoom, nil)
	created := recv[proto.RoomCreatedPayload](t, conn, proto.MsgRoomCreated)
	joinRoom(t, conn, created.RoomCode, username, ghost)
	return created.RoomCode
}

func joinRoom(t *testing.T, conn *websocket.Conn, code, username string, ghost proto.GhostID) {
	t.Helper()
	send(t, conn, proto.MsgJoinRoom, proto.JoinRoomRequest{RoomCode: code, Username: username, Ghost: ghost})
	joined := recv[proto.RoomJoinedPayload](t, conn, proto.MsgRoomJoined)
	if joined.Ghost != ghost {
		t.Fatalf("joined ghost = %s, want %s", joined.Ghost, ghost)
	}
}

func TestCreateJoinStartFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	c1 := dial(t, ts)
	c2 := dial(t, ts)

	send(t, c1, proto.MsgCreateRoom, proto.CreateRoomRequest{SearchDepth: 6})
	created := recv[proto.RoomCreatedPayload](t, c1, proto.MsgRoomCreated)
	if !regexp.MustCompile(`^[A-Z0-9]{4}$`).MatchString(created.RoomCode) {
		t.Fatalf("room code %q not 4 chars of [A-Z0-9]", created.RoomCode)
	}
	if created.SearchDepth != 6 {
		t.Fatalf("search depth = %d, want 6", created.SearchDepth)
	}
	if created.Policy != proto.PolicyHeuristic {
		t.Fatalf("policy = %s, want heuristic with no model loaded", created.Policy)
	}

	joinRoom(t, c1, created.RoomCode, "Alice", proto.GhostBlinky)
	state := recv[proto.GameStatePayload](t, c1, proto.MsgGameState)
	if state.Started {
		t.Fatal("room started before anyone pressed start")
	}
	if len(state.Dots) == 0 || len(state.PowerPellets) == 0 {
		t.Fatalf("snapshot food empty: %d dots %d pellets", len(state.Dots), len(state.PowerPellets))
	}

	joinRoom(t, c2, created.RoomCode, "Bob", proto.GhostPinky)

	send(t, c1, proto.MsgToggleReady, nil)
	ready := recv[proto.ReadyStatePayload](t, c1, proto.MsgReadyState)
	if !ready.Ready || ready.AllReady {
		t.Fatalf("after first ready: ready=%v allReady=%v", ready.Ready, ready.AllReady)
	}
	send(t, c2, proto.MsgToggleReady, nil)
	ready = recv[proto.ReadyStatePayload](t, c1, proto.MsgReadyState)
	if !ready.AllReady {
		t.Fatal("room not allReady after both toggles")
	}

	send(t, c2, proto.MsgStartGame, nil)
	recv[json.RawMessage](t, c1, proto.MsgGameStarted)
	recv[json.RawMessage](t, c2, proto.MsgGameStarted)
	state = recv[proto.GameStatePayload](t, c2, proto.MsgGameState)
	if !state.Started || state.Mode != proto.ModeChase {
		t.Fatalf("opening snapshot: started=%v mode=%s", state.Started, state.Mode)
	}

	// Ticking match produces deltas and, at the 1s deadline, a terminal.
	update := recv[proto.GameUpdatePayload](t, c1, proto.MsgGameUpdate)
	if update.Tick == 0 {
		t.Fatal("first delta carries tick 0")
	}
	send(t, c1, proto.MsgPlayerInput, proto.PlayerInputRequest{RoomCode: created.RoomCode, Direction: "left"})

	over := recv[proto.GameOverPayload](t, c1, proto.MsgGameOver)
	if over.Winner != proto.WinnerPacman && over.Winner != proto.WinnerGhosts {
		t.Fatalf("game over winner = %q", over.Winner)
	}
}

func TestJoinErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	c1 := dial(t, ts)
	c2 := dial(t, ts)

	send(t, c1, proto.MsgJoinRoom, proto.JoinRoomRequest{RoomCode: "ZZZZ", Username: "Alice", Ghost: proto.GhostBlinky})
	errPayload := recv[proto.ErrorPayload](t, c1, proto.MsgError)
	if errPayload.Code != proto.ErrRoomNotFound {
		t.Fatalf("bad code error = %s, want RoomNotFound", errPayload.Code)
	}

	code := createAndJoin(t, ts, c1, "Alice", proto.GhostBlinky)

	send(t, c2, proto.MsgJoinRoom, proto.JoinRoomRequest{RoomCode: code, Username: "Bob", Ghost: proto.GhostBlinky})
	errPayload = recv[proto.ErrorPayload](t, c2, proto.MsgError)
	if errPayload.Code != proto.ErrGhostTaken {
		t.Fatalf("taken ghost error = %s, want GhostTaken", errPayload.Code)
	}

	send(t, c2, proto.MsgJoinRoom, proto.JoinRoomRequest{RoomCode: code, Username: "Bob", Ghost: "casper"})
	errPayload = recv[proto.ErrorPayload](t, c2, proto.MsgError)
	if errPayload.Code != proto.ErrBadRequest {
		t.Fatalf("unknown ghost error = %s, want BadRequest", errPayload.Code)
	}

	// Joining twice is fenced by the session state gate.
	send(t, c1, proto.MsgJoinRoom, proto.JoinRoomRequest{RoomCode: code, Username: "Alice", Ghost: proto.GhostPinky})
	errPayload = recv[proto.ErrorPayload](t, c1, proto.MsgError)
	if errPayload.Code != proto.ErrBadRequest {
		t.Fatalf("double join error = %s, want BadRequest", errPayload.Code)
	}
}

func TestMalformedFramesGetBadRequest(t *testing.T) {
	ts, _ := newTestServer(t)
	c1 := dial(t, ts)

	if err := c1.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	errPayload := recv[proto.ErrorPayload](t, c1, proto.MsgError)
	if errPayload.Code != proto.ErrBadRequest {
		t.Fatalf("garbage frame error = %s, want BadRequest", errPayload.Code)
	}

	send(t, c1, proto.MsgPlayerInput, proto.PlayerInputRequest{Direction: "up"})
	errPayload = recv[proto.ErrorPayload](t, c1, proto.MsgError)
	if errPayload.Code != proto.ErrBadRequest {
		t.Fatalf("roomless input error = %s, want BadRequest", errPayload.Code)
	}
}

func TestInvalidDirectionRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	c1 := dial(t, ts)
	code := createAndJoin(t, ts, c1, "Alice", proto.GhostBlinky)

	send(t, c1, proto.MsgPlayerInput, proto.PlayerInputRequest{RoomCode: code, Direction: "sideways"})
	errPayload := recv[proto.ErrorPayload](t, c1, proto.MsgError)
	if errPayload.Code != proto.ErrInvalidDirection {
		t.Fatalf("error = %s, want InvalidDirection", errPayload.Code)
	}
}

func TestChatRelay(t *testing.T) {
	ts, _ := newTestServer(t)
	c1 := dial(t, ts)
	c2 := dial(t, ts)
	code := createAndJoin(t, ts, c1, "Alice", proto.GhostBlinky)
	joinRoom(t, c2, code, "Bob", proto.GhostPinky)

	send(t, c1, proto.MsgChat, proto.ChatRequest{RoomCode: code, Text: "  behind you\x00!  "})
	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := recv[proto.ChatMessagePayload](t, conn, proto.MsgChatMessage)
		if msg.Username != "Alice" {
			t.Fatalf("chat username = %q", msg.Username)
		}
		if msg.Text != "behind you!" {
			t.Fatalf("chat text = %q, want control runes and padding stripped", msg.Text)
		}
	}
}

func TestLeaveRoomBroadcastsPlayerLeft(t *testing.T) {
	ts, reg := newTestServer(t)
	c1 := dial(t, ts)
	c2 := dial(t, ts)
	code := createAndJoin(t, ts, c1, "Alice", proto.GhostBlinky)
	joinRoom(t, c2, code, "Bob", proto.GhostPinky)

	send(t, c2, proto.MsgLeaveRoom, proto.RoomRequest{RoomCode: code})
	left := recv[proto.PlayerLeftPayload](t, c1, proto.MsgPlayerLeft)
	if left.Ghost != proto.GhostPinky {
		t.Fatalf("playerLeft ghost = %s, want pinky", left.Ghost)
	}
	if got := reg.PlayerCount(); got != 1 {
		t.Fatalf("player count after leave = %d, want 1", got)
	}

	// A leaver is roomless again and may rejoin on a different seat.
	joinRoom(t, c2, code, "Bob", proto.GhostClyde)
}

func TestDisconnectFreesSeat(t *testing.T) {
	ts, reg := newTestServer(t)
	c1 := dial(t, ts)
	c2 := dial(t, ts)
	code := createAndJoin(t, ts, c1, "Alice", proto.GhostBlinky)
	joinRoom(t, c2, code, "Bob", proto.GhostPinky)

	c2.Close()

	deadline := time.Now().Add(2 * time.Second)
	for reg.PlayerCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("player count still %d after disconnect", reg.PlayerCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	c3 := dial(t, ts)
	joinRoom(t, c3, code, "Carol", proto.GhostPinky)
}

func TestAdminSurface(t *testing.T) {
	ts, _ := newTestServer(t)
	c1 := dial(t, ts)
	createAndJoin(t, ts, c1, "Alice", proto.GhostBlinky)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	var health struct {
		Status  string `json:"status"`
		Rooms   int    `json:"rooms"`
		Players int    `json:"players"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("healthz decode: %v", err)
	}
	if health.Status != "ok" || health.Rooms != 1 || health.Players != 1 {
		t.Fatalf("healthz = %+v", health)
	}

	resp, err = http.Get(ts.URL + "/rooms")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	defer resp.Body.Close()
	var rooms struct {
		Count int             `json:"count"`
		Rooms []game.RoomInfo `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("rooms decode: %v", err)
	}
	if rooms.Count != 1 || len(rooms.Rooms) != 1 || rooms.Rooms[0].Players != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}

	resp, err = http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var stats struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("stats decode: %v", err)
	}
	if stats.Enabled == nil || *stats.Enabled {
		t.Fatal("stats route should report enabled=false with no store")
	}
}
