package brain

import (
	"errors"

	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/pathfind"
)

// hunterKeepFacingDistance is the target distance beyond which the
// hunter holds its facing while that stays within one step of optimal,
// instead of re-pathing into corner flip-flops.
const hunterKeepFacingDistance = 5

// HunterBrain chases frightened ghosts during the power-pellet phase
// and camps the ghost house once every target is respawning.
type HunterBrain struct{}

// NewHunterBrain returns the stateless hunter.
func NewHunterBrain() *HunterBrain { return &HunterBrain{} }

// Decide returns the chase direction for the current tick.
func (b *HunterBrain) Decide(st *State) (grid.Direction, error) {
	var targetArr [maxGhosts]grid.Position
	targets := targetArr[:0]
	for _, g := range st.Ghosts {
		if g.Frightened {
			targets = append(targets, g.Position)
		}
	}

	if len(targets) > 0 {
		tgt, d, _ := pathfind.NearestTarget(st.Maze, st.Pacman, targets)
		if d > hunterKeepFacingDistance {
			if dir, ok := b.nearOptimalFacing(st, tgt); ok {
				return dir, nil
			}
		}
		if path := pathfind.AStar(st.Maze, st.Pacman, tgt); len(path) >= 2 {
			if dir, ok := pathfind.FirstStep(path); ok {
				return dir, nil
			}
		}
		return grid.Up, errors.New("no path to frightened ghost")
	}

	// Every ghost is respawning: camp their house.
	center, ok := st.Maze.Spawn(data.SpawnGhostHouse)
	if !ok {
		return grid.Up, errors.New("maze lacks a ghost house spawn")
	}
	if st.Pacman == center {
		if st.Maze.IsWalkable(st.Pacman.Step(st.Facing)) {
			return st.Facing, nil
		}
		for _, dir := range grid.Directions {
			if st.Maze.IsWalkable(st.Pacman.Step(dir)) {
				return dir, nil
			}
		}
		return grid.Up, errors.New("no walkable direction")
	}
	if path := pathfind.AStar(st.Maze, st.Pacman, center); len(path) >= 2 {
		if dir, ok := pathfind.FirstStep(path); ok {
			return dir, nil
		}
	}
	return grid.Up, errors.New("no path to ghost house")
}

// nearOptimalFacing keeps the current facing when its next cell stays
// within one step of the best achievable distance to the target.
func (b *HunterBrain) nearOptimalFacing(st *State, tgt grid.Position) (grid.Direction, bool) {
	next := st.Pacman.Step(st.Facing)
	if !st.Maze.IsWalkable(next) {
		return grid.Up, false
	}
	facingD := pathfind.Distance(st.Maze, st.Maze.ApplyTeleport(next), tgt)
	bestD := facingD
	for _, dir := range grid.Directions {
		n := st.Pacman.Step(dir)
		if !st.Maze.IsWalkable(n) {
			continue
		}
		if d := pathfind.Distance(st.Maze, st.Maze.ApplyTeleport(n), tgt); d < bestD {
			bestD = d
		}
	}
	if facingD <= bestD+1 {
		return st.Facing, true
	}
	return grid.Up, false
}
