package brain

import (
	"testing"

	"github.com/ghostrush/server/internal/grid"
)

func TestApplyPlyArmsPelletBeforeCaptureCheck(t *testing.T) {
	m := testMaze(t, []string{
		"#####",
		"#..o#",
		"#####",
	}, nil)
	st := &State{
		Maze:   m,
		Pacman: grid.Position{X: 2, Y: 1},
		Facing: grid.Right,
		Ghosts: []GhostObservation{
			{Position: grid.Position{X: 3, Y: 1}, Direction: grid.Left},
		},
		Dots:        foodMap(grid.Position{X: 1, Y: 1}),
		Pellets:     foodMap(grid.Position{X: 3, Y: 1}),
		InitialFood: 2,
	}
	ss := newSearchState(st)

	undo, died := ss.applyPly(grid.Right)
	if died {
		t.Fatal("pellet cell capture: ghost should turn frightened first")
	}
	if !ss.ghosts[0].frightened {
		t.Fatal("ghost not frightened after pellet")
	}
	if ss.currentFood != 1 {
		t.Fatalf("food = %d, want 1", ss.currentFood)
	}

	ss.undoPly(undo)
	if ss.pacman != (grid.Position{X: 2, Y: 1}) {
		t.Fatalf("pacman not restored: %v", ss.pacman)
	}
	if ss.currentFood != 2 {
		t.Fatalf("food = %d, want 2 after undo", ss.currentFood)
	}
	if ss.ghosts[0].frightened {
		t.Fatal("ghost frightened flag not restored")
	}
	if _, ok := ss.pellets[(grid.Position{X: 3, Y: 1}).Key()]; !ok {
		t.Fatal("pellet not restored")
	}
}

func TestApplyPlyDetectsCaptureOnGhostCell(t *testing.T) {
	m := testMaze(t, []string{
		"#####",
		"#...#",
		"#####",
	}, nil)
	st := &State{
		Maze:   m,
		Pacman: grid.Position{X: 2, Y: 1},
		Facing: grid.Right,
		Ghosts: []GhostObservation{
			{Position: grid.Position{X: 3, Y: 1}, Direction: grid.Up},
		},
		Dots:    foodMap(),
		Pellets: foodMap(),
	}
	ss := newSearchState(st)
	if _, died := ss.applyPly(grid.Right); !died {
		t.Fatal("stepping onto a hostile ghost must be a capture")
	}
}

func TestApplyPlyDetectsSwapCapture(t *testing.T) {
	m := testMaze(t, []string{
		"#######",
		"#.....#",
		"#######",
	}, nil)
	// Head-on in a corridor: Pac-Man right, ghost left. They trade
	// cells in one ply.
	st := &State{
		Maze:   m,
		Pacman: grid.Position{X: 2, Y: 1},
		Facing: grid.Right,
		Ghosts: []GhostObservation{
			{Position: grid.Position{X: 3, Y: 1}, Direction: grid.Left},
		},
		Dots:    foodMap(),
		Pellets: foodMap(),
	}
	ss := newSearchState(st)
	if _, died := ss.applyPly(grid.Right); !died {
		t.Fatal("swap must be a capture")
	}
}

func TestProjectGhostKeepsFacingThenTurnsAtWalls(t *testing.T) {
	m := testMaze(t, []string{
		"###########",
		"#.........#",
		"#.#######.#",
		"#.........#",
		"###########",
	}, nil)
	st := &State{
		Maze:   m,
		Pacman: grid.Position{X: 9, Y: 3},
		Facing: grid.Left,
		Ghosts: []GhostObservation{
			{Position: grid.Position{X: 1, Y: 1}, Direction: grid.Right},
		},
		Dots:    foodMap(),
		Pellets: foodMap(),
	}
	ss := newSearchState(st)

	g := ss.ghosts[0]
	ss.projectGhost(&g)
	if g.pos != (grid.Position{X: 2, Y: 1}) || g.facing != grid.Right {
		t.Fatalf("facing walkable: got %v facing %v", g.pos, g.facing)
	}

	// Facing a wall: fall back to the adjacent cell nearest Pac-Man,
	// first direction in table order on ties.
	g = searchGhost{pos: grid.Position{X: 1, Y: 1}, facing: grid.Left}
	ss.projectGhost(&g)
	if g.pos != (grid.Position{X: 1, Y: 2}) || g.facing != grid.Down {
		t.Fatalf("wall fallback: got %v facing %v", g.pos, g.facing)
	}
}
