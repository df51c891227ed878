// Package data loads the static game tables from YAML files and owns
// the immutable maze model shared by every room.
package data

import (
	"fmt"

	"github.com/ghostrush/server/internal/grid"
)

// Cell is one maze grid cell code.
type Cell uint8

const (
	CellWall Cell = iota
	CellDot
	CellPowerPellet
	// CellGhostHouse marks walkable cells that start without food: the
	// ghost house interior, its door and the tunnel mouths.
	CellGhostHouse
)

// Spawn point names every maze must define.
const (
	SpawnPacman     = "pacman"
	SpawnGhostHouse = "ghostHouse"
	SpawnBlinky     = "blinky"
	SpawnPinky      = "pinky"
	SpawnInky       = "inky"
	SpawnClyde      = "clyde"
)

var requiredSpawns = []string{
	SpawnPacman, SpawnGhostHouse,
	SpawnBlinky, SpawnPinky, SpawnInky, SpawnClyde,
}

// TeleportPair is a directed warp edge. A move that lands on Entry is
// relocated to Exit within the same tick.
type TeleportPair struct {
	Entry grid.Position
	Exit  grid.Position
}

// Maze is the immutable grid for one layout. It is shared read-only
// across all rooms after load.
type Maze struct {
	id     int32
	name   string
	width  int
	height int
	cells  []Cell

	teleports  []TeleportPair
	exitByKey  map[int32]grid.Position
	spawns     map[string]grid.Position
	dotCells   []grid.Position
	pelletList []grid.Position
}

// ID returns the table id of the maze.
func (m *Maze) ID() int32 { return m.id }

// Name returns the display name of the maze.
func (m *Maze) Name() string { return m.name }

// Width returns the grid width in cells.
func (m *Maze) Width() int { return m.width }

// Height returns the grid height in cells.
func (m *Maze) Height() int { return m.height }

// InBounds reports whether p lies on the grid.
func (m *Maze) InBounds(p grid.Position) bool {
	return p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height
}

// At returns the cell code at p. Out-of-bounds positions read as wall.
func (m *Maze) At(p grid.Position) Cell {
	if !m.InBounds(p) {
		return CellWall
	}
	return m.cells[p.Y*m.width+p.X]
}

// IsWalkable reports whether p is an in-bounds non-wall cell.
func (m *Maze) IsWalkable(p grid.Position) bool {
	return m.At(p) != CellWall
}

// ApplyTeleport relocates p to the paired exit when p is a teleport
// entry. Applied at most once per step.
func (m *Maze) ApplyTeleport(p grid.Position) grid.Position {
	if exit, ok := m.exitByKey[p.Key()]; ok {
		return exit
	}
	return p
}

// Neighbors appends the walkable cells reachable from p in one step to
// dst and returns it: up to four cardinal cells, plus the teleport exit
// when p is an entry. Callers on the tick path pass a reused slice.
func (m *Maze) Neighbors(dst []grid.Position, p grid.Position) []grid.Position {
	for _, d := range grid.Directions {
		n := p.Step(d)
		if m.IsWalkable(n) {
			dst = append(dst, n)
		}
	}
	if exit, ok := m.exitByKey[p.Key()]; ok {
		dst = append(dst, exit)
	}
	return dst
}

// Teleports returns the warp pair table.
func (m *Maze) Teleports() []TeleportPair { return m.teleports }

// Spawn returns the named starting position.
func (m *Maze) Spawn(name string) (grid.Position, bool) {
	p, ok := m.spawns[name]
	return p, ok
}

// DotCells returns every cell that starts with a dot. The returned
// slice is shared; callers must not mutate it.
func (m *Maze) DotCells() []grid.Position { return m.dotCells }

// PelletCells returns every cell that starts with a power pellet.
func (m *Maze) PelletCells() []grid.Position { return m.pelletList }

var cellByRune = map[rune]Cell{
	'#': CellWall,
	'.': CellDot,
	'o': CellPowerPellet,
	'H': CellGhostHouse,
}

// NewMaze parses row strings into a Maze and checks the layout
// invariants the simulation relies on.
func NewMaze(id int32, name string, rows []string, teleports []TeleportPair, spawns map[string]grid.Position) (*Maze, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("maze %q: no rows", name)
	}
	m := &Maze{
		id:        id,
		name:      name,
		width:     len(rows[0]),
		height:    len(rows),
		teleports: teleports,
		exitByKey: make(map[int32]grid.Position, len(teleports)),
		spawns:    make(map[string]grid.Position, len(spawns)),
	}
	m.cells = make([]Cell, m.width*m.height)
	for y, row := range rows {
		if len(row) != m.width {
			return nil, fmt.Errorf("maze %q: row %d is %d cells wide, want %d", name, y, len(row), m.width)
		}
		for x, r := range row {
			c, ok := cellByRune[r]
			if !ok {
				return nil, fmt.Errorf("maze %q: unknown cell %q at (%d,%d)", name, r, x, y)
			}
			m.cells[y*m.width+x] = c
			p := grid.Position{X: x, Y: y}
			switch c {
			case CellDot:
				m.dotCells = append(m.dotCells, p)
			case CellPowerPellet:
				m.pelletList = append(m.pelletList, p)
			}
		}
	}
	for _, tp := range teleports {
		if !m.IsWalkable(tp.Entry) || !m.IsWalkable(tp.Exit) {
			return nil, fmt.Errorf("maze %q: teleport (%d,%d)->(%d,%d) touches a wall",
				name, tp.Entry.X, tp.Entry.Y, tp.Exit.X, tp.Exit.Y)
		}
		if at := m.At(tp.Entry); at == CellDot || at == CellPowerPellet {
			return nil, fmt.Errorf("maze %q: teleport entry (%d,%d) holds unreachable food",
				name, tp.Entry.X, tp.Entry.Y)
		}
		m.exitByKey[tp.Entry.Key()] = tp.Exit
	}
	for name := range spawns {
		m.spawns[name] = spawns[name]
	}
	for _, want := range requiredSpawns {
		p, ok := m.spawns[want]
		if !ok {
			return nil, fmt.Errorf("maze %q: missing spawn %q", name, want)
		}
		if !m.IsWalkable(p) {
			return nil, fmt.Errorf("maze %q: spawn %q at (%d,%d) is not walkable", name, want, p.X, p.Y)
		}
	}
	if err := m.checkConnected(); err != nil {
		return nil, err
	}
	return m, nil
}

// checkConnected verifies every walkable cell is reachable from the
// Pac-Man spawn, counting teleports as edges. Unreachable dots would
// make the dot-clear win impossible.
func (m *Maze) checkConnected() error {
	start := m.spawns[SpawnPacman]
	seen := make(map[int32]bool, m.width*m.height)
	queue := []grid.Position{start}
	seen[start.Key()] = true
	var buf []grid.Position
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		buf = m.Neighbors(buf[:0], cur)
		for _, n := range buf {
			if !seen[n.Key()] {
				seen[n.Key()] = true
				queue = append(queue, n)
			}
		}
	}
	total := 0
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			p := grid.Position{X: x, Y: y}
			if m.IsWalkable(p) {
				total++
				if !seen[p.Key()] {
					return fmt.Errorf("maze %q: walkable cell (%d,%d) unreachable from pacman spawn", m.name, x, y)
				}
			}
		}
	}
	if total == 0 {
		return fmt.Errorf("maze %q: no walkable cells", m.name)
	}
	return nil
}
