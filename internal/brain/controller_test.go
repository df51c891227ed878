package brain

import (
	"testing"
	"time"

	"github.com/ghostrush/server/internal/grid"
)

func TestControllerPrefersModelWhenLoaded(t *testing.T) {
	m := testMaze(t, []string{
		"#####",
		"#...#",
		"#####",
	}, nil)
	pac := grid.Position{X: 2, Y: 1}
	left := grid.Position{X: 1, Y: 1}
	right := grid.Position{X: 3, Y: 1}
	build := func() *State {
		return &State{
			Maze:        m,
			Pacman:      pac,
			Facing:      grid.Up,
			Dots:        foodMap(left, right),
			Pellets:     foodMap(),
			InitialFood: 2,
		}
	}

	// The model points right; the heuristic tie-break goes left.
	policy, err := parseTabularPolicy(policyJSON(right.Key(), stateKey(pac, grid.Up), [4]float64{0, 0, 0, 5}))
	if err != nil {
		t.Fatal(err)
	}
	dir, err := NewController(policy, DefaultSearchDepth).Decide(build())
	if err != nil {
		t.Fatal(err)
	}
	if dir != grid.Right {
		t.Fatalf("with model: dir = %v, want right", dir)
	}

	dir, err = NewController(nil, DefaultSearchDepth).Decide(build())
	if err != nil {
		t.Fatal(err)
	}
	if dir != grid.Left {
		t.Fatalf("without model: dir = %v, want left", dir)
	}
}

func TestControllerHandsFrightenedPhaseToHunter(t *testing.T) {
	m := testMaze(t, []string{
		"#########",
		"#.......#",
		"#########",
	}, nil)
	build := func(remaining time.Duration) *State {
		return &State{
			Maze:   m,
			Pacman: grid.Position{X: 4, Y: 1},
			Facing: grid.Up,
			Ghosts: []GhostObservation{
				{Position: grid.Position{X: 7, Y: 1}, Direction: grid.Left, Frightened: true},
			},
			Dots:                foodMap(grid.Position{X: 1, Y: 1}),
			Pellets:             foodMap(),
			InitialFood:         1,
			FrightenedRemaining: remaining,
		}
	}
	c := NewController(nil, DefaultSearchDepth)

	dir, err := c.Decide(build(3 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if dir != grid.Right {
		t.Fatalf("hunter phase: dir = %v, want right toward the ghost", dir)
	}

	dir, err = c.Decide(build(500 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if dir != grid.Left {
		t.Fatalf("expiring phase: dir = %v, want left toward food", dir)
	}
}

func TestControllerClampsDepth(t *testing.T) {
	if d := NewController(nil, 99).SearchDepth(); d != MaxSearchDepth {
		t.Fatalf("depth %d, want %d", d, MaxSearchDepth)
	}
	if d := NewController(nil, 0).SearchDepth(); d != MinSearchDepth {
		t.Fatalf("depth %d, want %d", d, MinSearchDepth)
	}
	if NewController(nil, 12).UsesModel() {
		t.Fatal("nil policy reported as loaded")
	}
}
