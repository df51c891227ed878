// Package brain implements the Pac-Man decision stack: a defensive
// bounded-depth lookahead, a frightened-phase hunter and an optional
// pre-trained tabular policy. Brains are pure functions of the state
// view they receive; rooms own all mutation.
package brain

import (
	"time"

	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/pathfind"
)

// GhostObservation is the immutable per-ghost view a brain receives.
// Respawning ghosts are absent; they are off the board.
type GhostObservation struct {
	Position   grid.Position
	Direction  grid.Direction
	Frightened bool
}

// State is the room snapshot handed to a brain for one decision. All
// referenced collections are read-only for the duration of the call.
type State struct {
	Maze   *data.Maze
	Pacman grid.Position
	Facing grid.Direction
	Ghosts []GhostObservation

	// Dots and Pellets are the remaining food, keyed by Position.Key.
	Dots    map[int32]grid.Position
	Pellets map[int32]grid.Position

	// InitialFood is the dot+pellet count at match start.
	InitialFood int

	// FrightenedRemaining is zero outside frightened mode.
	FrightenedRemaining time.Duration

	StepCount int
}

// FoodCount returns the remaining dots plus pellets.
func (s *State) FoodCount() int {
	return len(s.Dots) + len(s.Pellets)
}

// nearestFood returns the closest remaining dot or pellet by
// teleport-aware distance. Distance ties settle on the smallest
// position key so the choice never depends on map iteration order.
func (s *State) nearestFood() (grid.Position, int, bool) {
	found := false
	var best grid.Position
	bestD := 0
	scan := func(set map[int32]grid.Position) {
		for _, p := range set {
			d := pathfind.Distance(s.Maze, s.Pacman, p)
			if !found || d < bestD || (d == bestD && p.Key() < best.Key()) {
				best, bestD, found = p, d, true
			}
		}
	}
	scan(s.Dots)
	scan(s.Pellets)
	return best, bestD, found
}

// nearestHostileDistance returns the teleport-aware distance to the
// closest non-frightened ghost, or ok=false when none is on the board.
func (s *State) nearestHostileDistance() (int, bool) {
	found := false
	best := 0
	for _, g := range s.Ghosts {
		if g.Frightened {
			continue
		}
		d := pathfind.Distance(s.Maze, s.Pacman, g.Position)
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

// walkableDirections appends the directions whose one-step target is
// walkable, in fixed table order.
func walkableDirections(m *data.Maze, from grid.Position, dst []grid.Direction) []grid.Direction {
	for _, d := range grid.Directions {
		if m.IsWalkable(from.Step(d)) {
			dst = append(dst, d)
		}
	}
	return dst
}
