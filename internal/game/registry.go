package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/brain"
	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/core/event"
	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/proto"
)

// Registry owns the room set and the player→room index. Room state is
// never touched under the registry lock: rooms are resolved first, the
// lock released, then called. Rooms call back into release on their
// own goroutine when they die.
type Registry struct {
	cfg    *config.Config
	log    *zap.Logger
	mazes  *data.MazeTable
	policy *brain.TabularPolicy
	emotes EmotePicker
	bus    *event.Bus

	mu         sync.Mutex
	rooms      map[string]*Room
	playerRoom map[uint64]string
}

// NewRegistry wires the shared read-only resources every room uses.
// policy may be nil when no model file was loaded.
func NewRegistry(cfg *config.Config, mazes *data.MazeTable, policy *brain.TabularPolicy, emotes EmotePicker, bus *event.Bus, log *zap.Logger) *Registry {
	return &Registry{
		cfg:        cfg,
		log:        log,
		mazes:      mazes,
		policy:     policy,
		emotes:     emotes,
		bus:        bus,
		rooms:      make(map[string]*Room),
		playerRoom: make(map[uint64]string),
	}
}

// CreateRoom allocates a unique code and spins up a room with the
// requested brain settings. The reply echoes what the room actually
// runs with, after policy resolution.
func (reg *Registry) CreateRoom(req proto.CreateRoomRequest) (proto.RoomCreatedPayload, error) {
	if !proto.ValidPolicy(req.Policy) {
		return proto.RoomCreatedPayload{}, ErrUnknownPolicy
	}
	depth := reg.cfg.AI.SearchDepth
	if req.SearchDepth != 0 {
		depth = req.SearchDepth
	}
	depth = brain.ClampSearchDepth(depth)

	var tab *brain.TabularPolicy
	policyName := req.Policy
	switch policyName {
	case proto.PolicyHeuristic:
	case proto.PolicyTabular:
		tab = reg.policy
		if tab == nil {
			reg.log.Warn("未載入模型，改用啟發式大腦")
			policyName = proto.PolicyHeuristic
		}
	default: // empty or auto
		tab = reg.policy
		if tab != nil {
			policyName = proto.PolicyTabular
		} else {
			policyName = proto.PolicyHeuristic
		}
	}

	reg.mu.Lock()
	var code string
	for {
		code = randomCode()
		if _, exists := reg.rooms[code]; !exists {
			break
		}
	}
	room := New(RoomOptions{
		Code:            code,
		Maze:            reg.mazes.Default(),
		Game:            reg.cfg.Game,
		ChatMinInterval: reg.cfg.Network.ChatMinInterval,
		Controller:      brain.NewController(tab, depth),
		Emotes:          reg.emotes,
		Bus:             reg.bus,
		Log:             reg.log,
		OnClose:         reg.release,
	})
	reg.rooms[code] = room
	reg.mu.Unlock()

	if reg.bus != nil {
		event.Emit(reg.bus, event.RoomCreated{
			RoomCode:    code,
			SearchDepth: depth,
			Policy:      policyName,
			CreatedAt:   time.Now(),
		})
	}
	reg.log.Info("房間已建立",
		zap.String("room", code),
		zap.Int("search_depth", depth),
		zap.String("policy", policyName),
	)
	return proto.RoomCreatedPayload{RoomCode: code, SearchDepth: depth, Policy: policyName}, nil
}

// Join seats a connection. The player index is written only after the
// room accepted the seat, and rolled back if the room died meanwhile.
func (reg *Registry) Join(conn Conn, req proto.JoinRoomRequest) (proto.RoomJoinedPayload, error) {
	connID := conn.ID()
	reg.mu.Lock()
	_, joined := reg.playerRoom[connID]
	room, ok := reg.rooms[req.RoomCode]
	reg.mu.Unlock()
	if joined {
		return proto.RoomJoinedPayload{}, ErrAlreadyInRoom
	}
	if !ok {
		return proto.RoomJoinedPayload{}, ErrRoomNotFound
	}

	if err := room.AddPlayer(conn, req.Username, req.Ghost); err != nil {
		if err == ErrRoomClosed {
			err = ErrRoomNotFound
		}
		return proto.RoomJoinedPayload{}, err
	}

	reg.mu.Lock()
	indexed := reg.rooms[req.RoomCode] == room
	if indexed {
		reg.playerRoom[connID] = req.RoomCode
	}
	reg.mu.Unlock()
	if !indexed {
		_ = room.RemovePlayer(connID)
		return proto.RoomJoinedPayload{}, ErrRoomNotFound
	}
	return proto.RoomJoinedPayload{
		RoomCode:     req.RoomCode,
		ConnectionID: connID,
		Ghost:        req.Ghost,
	}, nil
}

// roomFor resolves a connection's room through the index.
func (reg *Registry) roomFor(connID uint64) (*Room, error) {
	reg.mu.Lock()
	code, ok := reg.playerRoom[connID]
	room := reg.rooms[code]
	reg.mu.Unlock()
	if !ok || room == nil {
		return nil, ErrNotInRoom
	}
	return room, nil
}

// ToggleReady flips the caller's lobby ready flag.
func (reg *Registry) ToggleReady(connID uint64) error {
	room, err := reg.roomFor(connID)
	if err != nil {
		return err
	}
	return room.ToggleReady(connID)
}

// StartMatch begins the caller's match.
func (reg *Registry) StartMatch(connID uint64) error {
	room, err := reg.roomFor(connID)
	if err != nil {
		return err
	}
	return room.Start()
}

// RestartMatch re-seeds the caller's finished match.
func (reg *Registry) RestartMatch(connID uint64) error {
	room, err := reg.roomFor(connID)
	if err != nil {
		return err
	}
	return room.Restart()
}

// SubmitInput buffers a steering direction on the caller's player.
func (reg *Registry) SubmitInput(connID uint64, dir grid.Direction) error {
	room, err := reg.roomFor(connID)
	if err != nil {
		return err
	}
	return room.BufferInput(connID, dir)
}

// RequestState pushes a full snapshot to the caller only.
func (reg *Registry) RequestState(connID uint64) error {
	room, err := reg.roomFor(connID)
	if err != nil {
		return err
	}
	return room.SendState(connID)
}

// Chat relays one line to the caller's room.
func (reg *Registry) Chat(connID uint64, text string) error {
	room, err := reg.roomFor(connID)
	if err != nil {
		return err
	}
	return room.Chat(connID, text)
}

// Leave removes the player from their room and clears the index.
func (reg *Registry) Leave(connID uint64) error {
	reg.mu.Lock()
	code, ok := reg.playerRoom[connID]
	if ok {
		delete(reg.playerRoom, connID)
	}
	room := reg.rooms[code]
	reg.mu.Unlock()
	if !ok || room == nil {
		return ErrNotInRoom
	}
	err := room.RemovePlayer(connID)
	if err == ErrRoomClosed {
		// Room died first; the player is gone either way.
		return nil
	}
	return err
}

// HandleDisconnect is Leave for a dropped transport.
func (reg *Registry) HandleDisconnect(connID uint64) {
	if err := reg.Leave(connID); err != nil && err != ErrNotInRoom {
		reg.log.Debug("斷線清理失敗", zap.Uint64("session", connID), zap.Error(err))
	}
}

// release drops a dead room and any index entries pointing at it.
// Runs on the room goroutine after its loop exits.
func (reg *Registry) release(code string) {
	reg.mu.Lock()
	delete(reg.rooms, code)
	for id, c := range reg.playerRoom {
		if c == code {
			delete(reg.playerRoom, id)
		}
	}
	reg.mu.Unlock()
}

// Sweep tears down rooms past their TTL or restart grace. Called from
// the maintenance cycle.
func (reg *Registry) Sweep(now time.Time) int {
	rooms := reg.roomList()
	reaped := 0
	for _, room := range rooms {
		reap, err := room.ShouldReap(now, reg.cfg.Game.RoomTTL)
		if err != nil || !reap {
			continue
		}
		reg.log.Info("房間已逾時，回收", zap.String("room", room.Code()))
		room.Stop()
		reaped++
	}
	return reaped
}

// RoomCount reports live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// PlayerCount reports seated connections.
func (reg *Registry) PlayerCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.playerRoom)
}

// Snapshot lists room occupancy for the admin surface, code-ordered.
func (reg *Registry) Snapshot() []RoomInfo {
	rooms := reg.roomList()
	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		info, err := room.Info()
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Shutdown stops every room and waits for their goroutines, bounded
// by the context.
func (reg *Registry) Shutdown(ctx context.Context) error {
	rooms := reg.roomList()
	for _, room := range rooms {
		room.Stop()
	}
	for _, room := range rooms {
		select {
		case <-room.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (reg *Registry) roomList() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
