// Package grid provides the integer-cell geometry shared by the maze,
// the pathfinder and the Pac-Man brains. Positions are whole cells;
// sub-cell interpolation is a client rendering concern.
package grid

import (
	"encoding/json"
	"fmt"
)

// Direction is one of the four cardinal movement directions. The zero
// value is Up. Wire encoding is the lowercase direction name.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right

	// DirectionCount is the number of valid directions, used to size
	// per-direction value tables.
	DirectionCount = 4
)

var dirDX = [DirectionCount]int{0, 0, -1, 1}
var dirDY = [DirectionCount]int{-1, 1, 0, 0}

var dirNames = [DirectionCount]string{"up", "down", "left", "right"}

// Directions lists all four directions in table order (Up, Down, Left,
// Right). Callers iterate this instead of hand-rolling loops so the
// order matches the tabular value layout.
var Directions = [DirectionCount]Direction{Up, Down, Left, Right}

// Valid reports whether d is one of the four cardinal directions.
func (d Direction) Valid() bool {
	return d < DirectionCount
}

// Delta returns the unit cell offset for d.
func (d Direction) Delta() (dx, dy int) {
	return dirDX[d], dirDY[d]
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
	return dirNames[d]
}

// ParseDirection maps a lowercase wire name to a Direction.
func ParseDirection(s string) (Direction, error) {
	for i, name := range dirNames {
		if s == name {
			return Direction(i), nil
		}
	}
	return Up, fmt.Errorf("unknown direction %q", s)
}

// MarshalJSON encodes the direction as its lowercase name.
func (d Direction) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", uint8(d))
	}
	return json.Marshal(dirNames[d])
}

// UnmarshalJSON decodes a lowercase direction name.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Position is a cell coordinate. X grows rightward, Y grows downward,
// matching the maze row layout.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Step returns the cell one move from p along d, without walkability
// or teleport handling.
func (p Position) Step(d Direction) Position {
	return Position{X: p.X + dirDX[d], Y: p.Y + dirDY[d]}
}

// Key packs the position into a single int32 for O(1) map lookups on
// the tick path. Safe for any grid narrower than 2^15 cells.
func (p Position) Key() int32 {
	return int32(p.Y)<<15 | int32(p.X)
}

// Manhattan returns the L1 distance between two cells, ignoring walls
// and teleports.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// DirectionToward returns the cardinal direction from a toward b. The
// axis with the larger absolute delta wins; ties prefer horizontal.
func DirectionToward(a, b Position) Direction {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if abs(dx) >= abs(dy) && dx != 0 {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy > 0 {
		return Down
	}
	if dy < 0 {
		return Up
	}
	if dx > 0 {
		return Right
	}
	if dx < 0 {
		return Left
	}
	return Up
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
