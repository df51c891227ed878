package data

import (
	"testing"

	"github.com/ghostrush/server/internal/grid"
)

func loadDefault(t *testing.T) *Maze {
	t.Helper()
	table, err := EmbeddedMazeTable()
	if err != nil {
		t.Fatal(err)
	}
	m := table.Default()
	if m == nil {
		t.Fatal("no default maze")
	}
	return m
}

func TestEmbeddedMazeShape(t *testing.T) {
	m := loadDefault(t)
	if m.Width() != 28 || m.Height() != 35 {
		t.Fatalf("maze is %dx%d, want 28x35", m.Width(), m.Height())
	}
	if len(m.PelletCells()) != 4 {
		t.Fatalf("pellet count %d, want 4", len(m.PelletCells()))
	}
	if len(m.DotCells()) == 0 {
		t.Fatal("maze holds no dots")
	}
}

func TestSpawnsAreWalkable(t *testing.T) {
	m := loadDefault(t)
	for _, name := range requiredSpawns {
		p, ok := m.Spawn(name)
		if !ok {
			t.Fatalf("missing spawn %q", name)
		}
		if !m.IsWalkable(p) {
			t.Fatalf("spawn %q at (%d,%d) not walkable", name, p.X, p.Y)
		}
	}
}

func TestTeleportMapsBetweenTunnelMouths(t *testing.T) {
	m := loadDefault(t)
	left := grid.Position{X: 0, Y: 17}
	right := grid.Position{X: 27, Y: 17}
	if got := m.ApplyTeleport(left); got != right {
		t.Fatalf("left mouth teleports to %v", got)
	}
	if got := m.ApplyTeleport(right); got != left {
		t.Fatalf("right mouth teleports to %v", got)
	}
	mid := grid.Position{X: 5, Y: 17}
	if got := m.ApplyTeleport(mid); got != mid {
		t.Fatalf("ordinary cell teleported to %v", got)
	}
}

func TestNeighborsExposeTeleportExit(t *testing.T) {
	m := loadDefault(t)
	entry := grid.Position{X: 0, Y: 17}
	nbrs := m.Neighbors(nil, entry)
	var sawExit, sawAdjacent bool
	for _, n := range nbrs {
		if n == (grid.Position{X: 27, Y: 17}) {
			sawExit = true
		}
		if n == (grid.Position{X: 1, Y: 17}) {
			sawAdjacent = true
		}
	}
	if !sawExit || !sawAdjacent {
		t.Fatalf("entry neighbors %v miss exit or corridor", nbrs)
	}
}

func TestFoodSetsAreDisjoint(t *testing.T) {
	m := loadDefault(t)
	dots := make(map[int32]bool, len(m.DotCells()))
	for _, p := range m.DotCells() {
		dots[p.Key()] = true
	}
	for _, p := range m.PelletCells() {
		if dots[p.Key()] {
			t.Fatalf("cell (%d,%d) is both dot and pellet", p.X, p.Y)
		}
	}
	for _, tp := range m.Teleports() {
		if dots[tp.Entry.Key()] {
			t.Fatalf("teleport entry (%d,%d) holds a dot", tp.Entry.X, tp.Entry.Y)
		}
	}
}

func TestBuildMazeRejectsBrokenLayouts(t *testing.T) {
	spawns := map[string]grid.Position{
		SpawnPacman: {X: 1, Y: 1}, SpawnGhostHouse: {X: 1, Y: 1},
		SpawnBlinky: {X: 1, Y: 1}, SpawnPinky: {X: 1, Y: 1},
		SpawnInky: {X: 1, Y: 1}, SpawnClyde: {X: 1, Y: 1},
	}
	if _, err := NewMaze(1, "jagged", []string{"###", "#.##", "###"}, nil, spawns); err == nil {
		t.Fatal("jagged rows accepted")
	}
	if _, err := NewMaze(1, "nospawn", []string{"###", "#.#", "###"}, nil, nil); err == nil {
		t.Fatal("missing spawns accepted")
	}
	if _, err := NewMaze(1, "island", []string{
		"#####",
		"#.#.#",
		"#####",
	}, nil, spawns); err == nil {
		t.Fatal("disconnected layout accepted")
	}
}
