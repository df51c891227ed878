// mazeconv converts ASCII maze sketches into data/yaml/maze_list.yaml.
//
// A sketch is the maze drawn one row per line with the cell characters
// the server loads ('#' wall, '.' dot, 'o' power pellet, 'H' bare
// corridor) plus spawn markers that mazeconv strips back out:
//
//	P  pacman  (stands on a dot)
//	B  blinky  (stands on a dot)
//	G  ghost house anchor
//	N  pinky   I  inky   C  clyde  (inside the house)
//
// Tunnel teleports are derived from walkable cells on opposite edges of
// the same row or column. Every sketch runs through the server's own
// layout checks before anything is written.
//
// Usage:
//
//	go run ./cmd/mazeconv classic.txt twisty.txt
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
)

// ---------------------------------------------------------------------------
// YAML structures, matching the maze_list.yaml shape internal/data loads
// ---------------------------------------------------------------------------

type MazeEntry struct {
	MazeID    int32                    `yaml:"maze_id"`
	Name      string                   `yaml:"name"`
	Rows      []string                 `yaml:"rows"`
	Teleports []TeleportEntry          `yaml:"teleports,omitempty"`
	Spawns    map[string]grid.Position `yaml:"spawns"`
}

type TeleportEntry struct {
	Entry grid.Position `yaml:"entry"`
	Exit  grid.Position `yaml:"exit"`
}

type MazeFile struct {
	Mazes []MazeEntry `yaml:"mazes"`
}

// Spawn markers and the cell each one stands on in the final layout.
var (
	markerSpawn = map[byte]string{
		'P': data.SpawnPacman,
		'B': data.SpawnBlinky,
		'G': data.SpawnGhostHouse,
		'N': data.SpawnPinky,
		'I': data.SpawnInky,
		'C': data.SpawnClyde,
	}
	markerCell = map[byte]byte{
		'P': '.',
		'B': '.',
		'G': 'H',
		'N': 'H',
		'I': 'H',
		'C': 'H',
	}
)

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mazeconv <sketch.txt> [sketch.txt ...]")
		os.Exit(1)
	}
	outputPath := filepath.Join("data", "yaml", "maze_list.yaml")

	var out MazeFile
	for i, inputPath := range os.Args[1:] {
		raw, err := os.ReadFile(inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading %s: %v\n", inputPath, err)
			os.Exit(1)
		}
		name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		entry, err := convert(int32(i+1), name, string(raw))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error converting %s: %v\n", inputPath, err)
			os.Exit(1)
		}
		out.Mazes = append(out.Mazes, entry)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output directory: %v\n", err)
		os.Exit(1)
	}
	yamlData, err := yaml.Marshal(&out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshalling YAML: %v\n", err)
		os.Exit(1)
	}
	header := "# Maze layouts - generated by mazeconv\n\n"
	if err := os.WriteFile(outputPath, append([]byte(header), yamlData...), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", outputPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d maze(s) to %s\n", len(out.Mazes), outputPath)
}

// convert strips spawn markers out of a sketch, derives tunnel pairs
// and validates the result with the loader's own checks.
func convert(id int32, name, raw string) (MazeEntry, error) {
	var rows []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 {
		return MazeEntry{}, fmt.Errorf("sketch is empty")
	}

	spawns := make(map[string]grid.Position)
	for y, row := range rows {
		cells := []byte(row)
		for x := range cells {
			spawn, ok := markerSpawn[cells[x]]
			if !ok {
				continue
			}
			if prev, dup := spawns[spawn]; dup {
				return MazeEntry{}, fmt.Errorf("spawn %q marked at both (%d,%d) and (%d,%d)",
					spawn, prev.X, prev.Y, x, y)
			}
			spawns[spawn] = grid.Position{X: x, Y: y}
			cells[x] = markerCell[row[x]]
		}
		rows[y] = string(cells)
	}

	tunnels := deriveTunnels(name, rows)

	pairs := make([]data.TeleportPair, len(tunnels))
	for i, t := range tunnels {
		pairs[i] = data.TeleportPair{Entry: t.Entry, Exit: t.Exit}
	}
	if _, err := data.NewMaze(id, name, rows, pairs, spawns); err != nil {
		return MazeEntry{}, err
	}

	return MazeEntry{
		MazeID:    id,
		Name:      name,
		Rows:      rows,
		Teleports: tunnels,
		Spawns:    spawns,
	}, nil
}

// deriveTunnels pairs walkable cells that face each other across the
// maze border. One-sided openings are reported, not paired; the layout
// checks decide whether the maze still holds together.
func deriveTunnels(name string, rows []string) []TeleportEntry {
	height := len(rows)
	width := len(rows[0])
	walkable := func(x, y int) bool {
		if len(rows[y]) != width {
			return false
		}
		c := rows[y][x]
		return c == '.' || c == 'o' || c == 'H'
	}

	var out []TeleportEntry
	link := func(a, b grid.Position) {
		out = append(out,
			TeleportEntry{Entry: a, Exit: b},
			TeleportEntry{Entry: b, Exit: a},
		)
	}
	for y := 0; y < height; y++ {
		left, right := walkable(0, y), walkable(width-1, y)
		if left && right {
			link(grid.Position{X: 0, Y: y}, grid.Position{X: width - 1, Y: y})
		} else if left != right {
			fmt.Fprintf(os.Stderr, "warning: %s: row %d tunnel is open on one side only\n", name, y)
		}
	}
	for x := 0; x < width; x++ {
		top, bottom := walkable(x, 0), walkable(x, height-1)
		if top && bottom {
			link(grid.Position{X: x, Y: 0}, grid.Position{X: x, Y: height - 1})
		} else if top != bottom {
			fmt.Fprintf(os.Stderr, "warning: %s: column %d tunnel is open on one side only\n", name, x)
		}
	}
	return out
}
