package brain

import (
	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/pathfind"
)

// searchGhost is the mutable in-search copy of one ghost.
type searchGhost struct {
	pos        grid.Position
	facing     grid.Direction
	frightened bool
}

const (
	ateNothing uint8 = iota
	ateDot
	atePellet
)

// searchState is the scratch world the lookahead mutates and unwinds.
// One is built per decision; nothing escapes the call.
type searchState struct {
	maze       *data.Maze
	pacman     grid.Position
	prevPacman grid.Position

	ghostArr [maxGhosts]searchGhost
	ghosts   []searchGhost

	dots        map[int32]grid.Position
	pellets     map[int32]grid.Position
	rootPellets map[int32]bool

	// rootHostiles holds the non-frightened ghost positions as of the
	// decision root. Simulated pellet grabs flip every ghost
	// frightened, so urgency must be judged against this snapshot.
	rootHostiles []grid.Position

	initialFood int
	currentFood int
}

func newSearchState(st *State) *searchState {
	ss := &searchState{
		maze:        st.Maze,
		pacman:      st.Pacman,
		prevPacman:  st.Pacman,
		initialFood: st.InitialFood,
		currentFood: st.FoodCount(),
	}
	ss.ghosts = ss.ghostArr[:0]
	for _, g := range st.Ghosts {
		if len(ss.ghosts) == maxGhosts {
			break
		}
		ss.ghosts = append(ss.ghosts, searchGhost{
			pos:        g.Position,
			facing:     g.Direction,
			frightened: g.Frightened,
		})
		if !g.Frightened {
			ss.rootHostiles = append(ss.rootHostiles, g.Position)
		}
	}
	ss.dots = make(map[int32]grid.Position, len(st.Dots))
	for k, v := range st.Dots {
		ss.dots[k] = v
	}
	ss.pellets = make(map[int32]grid.Position, len(st.Pellets))
	ss.rootPellets = make(map[int32]bool, len(st.Pellets))
	for k, v := range st.Pellets {
		ss.pellets[k] = v
		ss.rootPellets[k] = true
	}
	return ss
}

type plyUndo struct {
	pacman     grid.Position
	prevPacman grid.Position
	atePos     grid.Position
	ateKey     int32
	ate        uint8
	ghosts     [maxGhosts]searchGhost
	ghostCount int
}

// applyPly advances one full turn: Pac-Man moves along dir (teleport
// applied, food consumed, pellet arming frightened), then every ghost
// takes its projected reply. Reports whether a hostile ghost captured
// Pac-Man this turn, by sharing his cell or swapping with him.
func (ss *searchState) applyPly(dir grid.Direction) (plyUndo, bool) {
	var u plyUndo
	u.pacman = ss.pacman
	u.prevPacman = ss.prevPacman
	u.ghostCount = len(ss.ghosts)
	copy(u.ghosts[:], ss.ghosts)

	ss.prevPacman = ss.pacman
	ss.pacman = ss.maze.ApplyTeleport(ss.pacman.Step(dir))

	key := ss.pacman.Key()
	if p, ok := ss.dots[key]; ok {
		delete(ss.dots, key)
		ss.currentFood--
		u.atePos, u.ateKey, u.ate = p, key, ateDot
	} else if p, ok := ss.pellets[key]; ok {
		delete(ss.pellets, key)
		ss.currentFood--
		u.atePos, u.ateKey, u.ate = p, key, atePellet
		for i := range ss.ghosts {
			ss.ghosts[i].frightened = true
		}
	}

	// Stepping into a hostile ghost is a capture even before its
	// reply; the pellet case above is resolved first so a ghost on
	// the pellet cell is already frightened here.
	died := ss.hostileShares(ss.pacman)

	for i := range ss.ghosts {
		g := &ss.ghosts[i]
		prev := g.pos
		ss.projectGhost(g)
		if g.frightened {
			continue
		}
		if g.pos == ss.pacman || (g.pos == ss.prevPacman && prev == ss.pacman) {
			died = true
		}
	}
	return u, died
}

func (ss *searchState) undoPly(u plyUndo) {
	switch u.ate {
	case ateDot:
		ss.dots[u.ateKey] = u.atePos
		ss.currentFood++
	case atePellet:
		ss.pellets[u.ateKey] = u.atePos
		ss.currentFood++
	}
	ss.pacman = u.pacman
	ss.prevPacman = u.prevPacman
	ss.ghosts = ss.ghosts[:u.ghostCount]
	copy(ss.ghosts, u.ghosts[:u.ghostCount])
}

// projectGhost advances one ghost by the deterministic projection: it
// keeps its facing while that cell is walkable and drifts no more than
// the allowance farther from Pac-Man, otherwise it takes the adjacent
// cell that most reduces the distance.
func (ss *searchState) projectGhost(g *searchGhost) {
	cur := pathfind.Distance(ss.maze, g.pos, ss.pacman)
	raw := g.pos.Step(g.facing)
	if ss.maze.IsWalkable(raw) {
		next := ss.maze.ApplyTeleport(raw)
		if pathfind.Distance(ss.maze, next, ss.pacman) <= cur+ghostDriftAllowance {
			g.pos = next
			return
		}
	}
	bestD := 0
	bestPos := g.pos
	bestDir := g.facing
	found := false
	for _, d := range grid.Directions {
		n := g.pos.Step(d)
		if !ss.maze.IsWalkable(n) {
			continue
		}
		np := ss.maze.ApplyTeleport(n)
		nd := pathfind.Distance(ss.maze, np, ss.pacman)
		if !found || nd < bestD {
			bestD, bestPos, bestDir, found = nd, np, d, true
		}
	}
	if found {
		g.pos = bestPos
		g.facing = bestDir
	}
}

func (ss *searchState) hostileShares(p grid.Position) bool {
	for i := range ss.ghosts {
		if !ss.ghosts[i].frightened && ss.ghosts[i].pos == p {
			return true
		}
	}
	return false
}

func (ss *searchState) nearestHostile() (int, bool) {
	best := 0
	found := false
	for i := range ss.ghosts {
		if ss.ghosts[i].frightened {
			continue
		}
		d := pathfind.Distance(ss.maze, ss.pacman, ss.ghosts[i].pos)
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

func (ss *searchState) nearestFrightened() (int, bool) {
	best := 0
	found := false
	for i := range ss.ghosts {
		if !ss.ghosts[i].frightened {
			continue
		}
		d := pathfind.Distance(ss.maze, ss.pacman, ss.ghosts[i].pos)
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

func (ss *searchState) nearestRootHostile() (int, bool) {
	best := 0
	found := false
	for _, p := range ss.rootHostiles {
		d := pathfind.Distance(ss.maze, ss.pacman, p)
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

// nearestFoodDistance is the scalar cousin of State.nearestFood over
// the mutated in-search food sets.
func (ss *searchState) nearestFoodDistance() (int, bool) {
	best := 0
	found := false
	for _, p := range ss.dots {
		d := pathfind.Distance(ss.maze, ss.pacman, p)
		if !found || d < best {
			best, found = d, true
		}
	}
	for _, p := range ss.pellets {
		d := pathfind.Distance(ss.maze, ss.pacman, p)
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}
