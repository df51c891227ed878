package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/brain"
	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/core/event"
	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/proto"
	"github.com/ghostrush/server/internal/scripting"
)

// finishedGrace is how long a finished room lingers for a restart
// before the sweep reclaims it. The absolute room TTL still applies.
const finishedGrace = time.Minute

// cmdQueueSize bounds the per-room command queue.
const cmdQueueSize = 256

// EmotePicker selects Pac-Man's taunt. Implemented by *scripting.Engine.
type EmotePicker interface {
	ChooseEmote(scripting.EmoteContext) scripting.EmoteChoice
}

// RoomOptions carries everything a room needs at construction.
type RoomOptions struct {
	Code            string
	Maze            *data.Maze
	Game            config.GameConfig
	ChatMinInterval time.Duration
	Controller      *brain.Controller
	Emotes          EmotePicker
	Bus             *event.Bus
	Log             *zap.Logger
	OnClose         func(code string)
}

// Room is one match: lobby, tick loop and teardown. Public methods
// post closures onto cmds; the run goroutine owns every other field.
type Room struct {
	code       string
	cfg        config.GameConfig
	chatMin    time.Duration
	maze       *data.Maze
	controller *brain.Controller
	emotes     EmotePicker
	bus        *event.Bus
	log        *zap.Logger
	onClose    func(code string)

	cmds chan func()
	done chan struct{}

	players map[uint64]*Player
	seats   map[proto.GhostID]uint64

	started bool
	closed  bool
	mode    proto.GameMode

	dots        map[int32]grid.Position
	pellets     map[int32]grid.Position
	initialFood int

	pacman    grid.Position
	pacPrev   grid.Position
	pacFacing grid.Direction
	pacSpawn  grid.Position

	emote      string
	emoteUntil time.Time

	score     int
	captures  int
	stepCount int64

	createdAt    time.Time
	startedAt    time.Time
	frightenedAt time.Time
	finishedAt   time.Time

	ticker     *time.Ticker
	tickC      <-chan time.Time
	timerEvery int64

	changed changeFlags
}

// RoomInfo is a point-in-time occupancy snapshot for listings.
type RoomInfo struct {
	Code      string    `json:"code"`
	Players   int       `json:"players"`
	Started   bool      `json:"started"`
	Finished  bool      `json:"finished"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds a room and starts its goroutine.
func New(opts RoomOptions) *Room {
	r := newRoom(opts)
	go r.run()
	return r
}

// newRoom builds room state without the goroutine. Tick-level tests
// drive the result synchronously.
func newRoom(opts RoomOptions) *Room {
	pacSpawn, _ := opts.Maze.Spawn(data.SpawnPacman)
	r := &Room{
		code:       opts.Code,
		cfg:        opts.Game,
		chatMin:    opts.ChatMinInterval,
		maze:       opts.Maze,
		controller: opts.Controller,
		emotes:     opts.Emotes,
		bus:        opts.Bus,
		log:        opts.Log.With(zap.String("room", opts.Code)),
		onClose:    opts.OnClose,
		cmds:       make(chan func(), cmdQueueSize),
		done:       make(chan struct{}),
		players:    make(map[uint64]*Player),
		seats:      make(map[proto.GhostID]uint64),
		mode:       proto.ModeChase,
		pacman:     pacSpawn,
		pacPrev:    pacSpawn,
		pacFacing:  grid.Left,
		pacSpawn:   pacSpawn,
		createdAt:  time.Now(),
	}
	r.seedFood()
	return r
}

// Code returns the immutable room code.
func (r *Room) Code() string { return r.code }

// Done closes when the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) run() {
	for !r.closed {
		select {
		case fn := <-r.cmds:
			fn()
		case now := <-r.tickC:
			r.tick(now)
		}
	}
	r.teardown()
}

// teardown releases room resources. Runs exactly once, on the room
// goroutine, after the loop has observed closed. The registry callback
// fires before done closes so waiting on Done sees the room released.
func (r *Room) teardown() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.tickC = nil
	}
	if r.onClose != nil {
		r.onClose(r.code)
	}
	if r.bus != nil {
		event.Emit(r.bus, event.RoomClosed{RoomCode: r.code})
	}
	close(r.done)
	r.log.Info("房間已關閉", zap.Int("players", len(r.players)))
}

// post queues fn for the room goroutine without waiting for it.
func (r *Room) post(fn func()) error {
	select {
	case r.cmds <- fn:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// call queues fn and waits for it to run. If the room tears down
// before (or while) fn executes, the caller gets ErrRoomClosed.
func (r *Room) call(fn func()) error {
	ran := make(chan struct{})
	if err := r.post(func() { fn(); close(ran) }); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// AddPlayer seats a connection on a ghost. Fails once the match has
// started, when the room is full, or when the seat is taken.
func (r *Room) AddPlayer(conn Conn, username string, ghost proto.GhostID) error {
	var err error
	if cerr := r.call(func() {
		if r.started {
			err = ErrRoomStarted
			return
		}
		if len(r.players) >= r.cfg.MaxPlayers {
			err = ErrRoomFull
			return
		}
		if _, taken := r.seats[ghost]; taken {
			err = ErrGhostTaken
			return
		}
		p := &Player{
			conn:     conn,
			username: username,
			ghost:    ghost,
			state:    proto.PlayerActive,
			facing:   grid.Up,
			spawn:    spawnFor(r.maze, ghost),
		}
		p.pos, p.prevPos = p.spawn, p.spawn
		r.players[conn.ID()] = p
		r.seats[ghost] = conn.ID()
		r.log.Info("玩家加入房間",
			zap.Uint64("session", conn.ID()),
			zap.String("ghost", string(ghost)),
			zap.Int("players", len(r.players)),
		)
		if r.bus != nil {
			event.Emit(r.bus, event.RoomOccupancyChanged{RoomCode: r.code, PlayerCount: len(r.players)})
		}
		r.broadcastState()
	}); cerr != nil {
		return cerr
	}
	return err
}

// RemovePlayer frees a seat. Dropping to zero players closes the room
// immediately, mid-match included.
func (r *Room) RemovePlayer(connID uint64) error {
	var err error
	if cerr := r.call(func() {
		p, ok := r.players[connID]
		if !ok {
			err = ErrNotInRoom
			return
		}
		delete(r.players, connID)
		delete(r.seats, p.ghost)
		r.log.Info("玩家離開房間",
			zap.Uint64("session", connID),
			zap.String("ghost", string(p.ghost)),
			zap.Int("players", len(r.players)),
		)
		r.broadcast(proto.MustEncode(proto.MsgPlayerLeft, proto.PlayerLeftPayload{
			ConnectionID: connID,
			Ghost:        p.ghost,
		}))
		if r.bus != nil {
			event.Emit(r.bus, event.RoomOccupancyChanged{RoomCode: r.code, PlayerCount: len(r.players)})
		}
		if len(r.players) == 0 {
			r.log.Info("房間已無玩家，立即拆除")
			r.closed = true
			return
		}
		if !r.started {
			r.broadcastState()
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

// ToggleReady flips a lobby ready flag and broadcasts the new state.
func (r *Room) ToggleReady(connID uint64) error {
	var err error
	if cerr := r.call(func() {
		if r.started {
			err = ErrRoomStarted
			return
		}
		p, ok := r.players[connID]
		if !ok {
			err = ErrNotInRoom
			return
		}
		p.ready = !p.ready
		r.broadcast(proto.MustEncode(proto.MsgReadyState, proto.ReadyStatePayload{
			ConnectionID: connID,
			Ready:        p.ready,
			AllReady:     r.allReady(),
		}))
	}); cerr != nil {
		return cerr
	}
	return err
}

// Start begins the match once every seated player is ready.
func (r *Room) Start() error {
	var err error
	if cerr := r.call(func() {
		if r.started {
			err = ErrRoomStarted
			return
		}
		if !r.allReady() {
			err = ErrNotAllReady
			return
		}
		r.startMatch(time.Now(), false)
	}); cerr != nil {
		return cerr
	}
	return err
}

// Restart re-seeds a finished match in place, preserving seats,
// usernames and ready flags.
func (r *Room) Restart() error {
	var err error
	if cerr := r.call(func() {
		if !r.started {
			err = ErrNotStarted
			return
		}
		if r.mode != proto.ModeGameOver {
			err = ErrMatchRunning
			return
		}
		r.startMatch(time.Now(), true)
	}); cerr != nil {
		return cerr
	}
	return err
}

// BufferInput stores a steering request on the player. It is adopted
// on a later tick, once the direction is walkable from the player's
// cell. Unknown connections are dropped silently: the player may have
// left between the registry lookup and delivery.
func (r *Room) BufferInput(connID uint64, dir grid.Direction) error {
	return r.post(func() {
		p, ok := r.players[connID]
		if !ok {
			return
		}
		d := dir
		p.buffered = &d
	})
}

// SendState pushes a full snapshot to one connection only.
func (r *Room) SendState(connID uint64) error {
	var err error
	if cerr := r.call(func() {
		p, ok := r.players[connID]
		if !ok {
			err = ErrNotInRoom
			return
		}
		p.conn.Send(proto.MustEncode(proto.MsgGameState, r.fullState(time.Now())))
	}); cerr != nil {
		return cerr
	}
	return err
}

// Chat relays one line to the room, rate-limited per player. Lines
// inside the minimum interval are dropped, not errored.
func (r *Room) Chat(connID uint64, text string) error {
	var err error
	if cerr := r.call(func() {
		p, ok := r.players[connID]
		if !ok {
			err = ErrNotInRoom
			return
		}
		now := time.Now()
		if r.chatMin > 0 && now.Sub(p.lastChat) < r.chatMin {
			r.log.Debug("聊天訊息過於頻繁", zap.Uint64("session", connID))
			return
		}
		p.lastChat = now
		r.broadcast(proto.MustEncode(proto.MsgChatMessage, proto.ChatMessagePayload{
			ConnectionID: connID,
			Username:     p.username,
			Text:         text,
		}))
	}); cerr != nil {
		return cerr
	}
	return err
}

// Stop requests teardown. Safe to call any number of times.
func (r *Room) Stop() {
	_ = r.post(func() {
		r.closed = true
	})
}

// ShouldReap reports whether the sweep may tear this room down: the
// absolute TTL elapsed, or a finished match outlived its restart grace.
func (r *Room) ShouldReap(now time.Time, ttl time.Duration) (bool, error) {
	var reap bool
	if cerr := r.call(func() {
		switch {
		case ttl > 0 && now.Sub(r.createdAt) >= ttl:
			reap = true
		case !r.finishedAt.IsZero() && now.Sub(r.finishedAt) >= finishedGrace:
			reap = true
		}
	}); cerr != nil {
		return false, cerr
	}
	return reap, nil
}

// Info snapshots occupancy for listings.
func (r *Room) Info() (RoomInfo, error) {
	var info RoomInfo
	if cerr := r.call(func() {
		info = RoomInfo{
			Code:      r.code,
			Players:   len(r.players),
			Started:   r.started,
			Finished:  r.mode == proto.ModeGameOver,
			CreatedAt: r.createdAt,
		}
	}); cerr != nil {
		return RoomInfo{}, cerr
	}
	return info, nil
}

// startMatch seeds the board and arms the tick. Also the restart path.
func (r *Room) startMatch(now time.Time, restarted bool) {
	r.seedMatch(now)
	r.started = true
	if r.ticker != nil {
		r.ticker.Stop()
	}
	r.ticker = time.NewTicker(r.cfg.TickPeriod)
	r.tickC = r.ticker.C
	msg := proto.MsgGameStarted
	if restarted {
		msg = proto.MsgGameRestarted
	}
	r.broadcast(proto.MustEncode(msg, nil))
	r.broadcastState()
	if r.bus != nil {
		event.Emit(r.bus, event.MatchStarted{
			RoomCode:  r.code,
			Players:   len(r.players),
			Restarted: restarted,
		})
	}
	r.log.Info("對局開始",
		zap.Int("players", len(r.players)),
		zap.Bool("restart", restarted),
		zap.Int("search_depth", r.searchDepth()),
	)
}

// seedMatch resets all match state. Seats, usernames and ready flags
// survive; everything else returns to its starting value.
func (r *Room) seedMatch(now time.Time) {
	r.seedFood()
	r.mode = proto.ModeChase
	r.score = 0
	r.captures = 0
	r.stepCount = 0
	r.emote = ""
	r.emoteUntil = time.Time{}
	r.startedAt = now
	r.frightenedAt = time.Time{}
	r.finishedAt = time.Time{}
	r.pacman = r.pacSpawn
	r.pacPrev = r.pacSpawn
	r.pacFacing = grid.Left
	for _, p := range r.players {
		p.state = proto.PlayerActive
		p.pos = p.spawn
		p.prevPos = p.spawn
		p.facing = grid.Up
		p.buffered = nil
		p.respawnAt = time.Time{}
	}
	r.timerEvery = int64(time.Second / r.cfg.TickPeriod)
	if r.timerEvery < 1 {
		r.timerEvery = 1
	}
	r.changed = allChanged()
}

func (r *Room) seedFood() {
	dotCells := r.maze.DotCells()
	pelletCells := r.maze.PelletCells()
	r.dots = make(map[int32]grid.Position, len(dotCells))
	for _, p := range dotCells {
		r.dots[p.Key()] = p
	}
	r.pellets = make(map[int32]grid.Position, len(pelletCells))
	for _, p := range pelletCells {
		r.pellets[p.Key()] = p
	}
	r.initialFood = len(r.dots) + len(r.pellets)
}

func (r *Room) allReady() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.ready {
			return false
		}
	}
	return true
}

// seatOrdered returns players in fixed seat order so collision
// resolution and outbound frames are deterministic.
func (r *Room) seatOrdered() []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, g := range proto.GhostIDs {
		if id, ok := r.seats[g]; ok {
			out = append(out, r.players[id])
		}
	}
	return out
}

func (r *Room) searchDepth() int {
	if r.controller == nil {
		return 0
	}
	return r.controller.SearchDepth()
}

func (r *Room) broadcast(frame []byte) {
	for _, p := range r.players {
		p.conn.Send(frame)
	}
}

func (r *Room) broadcastState() {
	r.broadcast(proto.MustEncode(proto.MsgGameState, r.fullState(time.Now())))
}
