// Package game hosts the room simulation. Each room is owned by a
// single goroutine fed through a command queue; every piece of match
// state is mutated only from that goroutine.
package game

import (
	"time"

	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/proto"
)

// Conn is the transport side of a player as the room sees it. Send is
// fire-and-forget; the session layer disconnects slow clients instead
// of ever blocking a tick.
type Conn interface {
	ID() uint64
	Send(frame []byte)
}

// Player is one occupied ghost seat. Fields belong to the room
// goroutine; nothing outside the room touches them.
type Player struct {
	conn     Conn
	username string
	ghost    proto.GhostID
	ready    bool

	state     proto.PlayerState
	pos       grid.Position
	prevPos   grid.Position
	facing    grid.Direction
	buffered  *grid.Direction
	spawn     grid.Position
	respawnAt time.Time
	lastChat  time.Time
}

var ghostSpawnNames = map[proto.GhostID]string{
	proto.GhostBlinky: data.SpawnBlinky,
	proto.GhostPinky:  data.SpawnPinky,
	proto.GhostInky:   data.SpawnInky,
	proto.GhostClyde:  data.SpawnClyde,
}

// spawnFor resolves a seat's starting cell. Loaded mazes always carry
// all four ghost spawns, so the lookup cannot miss.
func spawnFor(m *data.Maze, ghost proto.GhostID) grid.Position {
	p, _ := m.Spawn(ghostSpawnNames[ghost])
	return p
}
