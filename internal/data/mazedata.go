package data

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ghostrush/server/internal/grid"
)

// MazeInfo is one maze definition as written in maze_list.yaml.
type MazeInfo struct {
	MazeID    int32                    `yaml:"maze_id"`
	Name      string                   `yaml:"name"`
	Rows      []string                 `yaml:"rows"`
	Teleports []teleportSpec           `yaml:"teleports"`
	Spawns    map[string]grid.Position `yaml:"spawns"`
}

type teleportSpec struct {
	Entry grid.Position `yaml:"entry"`
	Exit  grid.Position `yaml:"exit"`
}

type mazeListFile struct {
	Mazes []MazeInfo `yaml:"mazes"`
}

// The reference layout ships inside the binary so the server starts
// with no data directory at all.
//
//go:embed default_maze.yaml
var defaultMazeYAML []byte

// MazeTable provides maze lookups by id.
type MazeTable struct {
	byID map[int32]*Maze
	def  *Maze
}

// LoadMazeTable reads maze definitions from a YAML file.
func LoadMazeTable(path string) (*MazeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read maze list %s: %w", path, err)
	}
	t, err := parseMazeTable(raw)
	if err != nil {
		return nil, fmt.Errorf("maze list %s: %w", path, err)
	}
	return t, nil
}

// EmbeddedMazeTable parses the layout compiled into the binary.
func EmbeddedMazeTable() (*MazeTable, error) {
	return parseMazeTable(defaultMazeYAML)
}

func parseMazeTable(raw []byte) (*MazeTable, error) {
	var file mazeListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse maze list: %w", err)
	}
	if len(file.Mazes) == 0 {
		return nil, fmt.Errorf("maze list holds no mazes")
	}
	table := &MazeTable{
		byID: make(map[int32]*Maze, len(file.Mazes)),
	}
	for _, info := range file.Mazes {
		pairs := make([]TeleportPair, 0, len(info.Teleports))
		for _, spec := range info.Teleports {
			pairs = append(pairs, TeleportPair{Entry: spec.Entry, Exit: spec.Exit})
		}
		m, err := NewMaze(info.MazeID, info.Name, info.Rows, pairs, info.Spawns)
		if err != nil {
			return nil, err
		}
		if _, dup := table.byID[m.id]; dup {
			return nil, fmt.Errorf("duplicate maze id %d", m.id)
		}
		table.byID[m.id] = m
		if table.def == nil {
			table.def = m
		}
	}
	return table, nil
}

// Get returns the maze with the given id, or nil.
func (t *MazeTable) Get(id int32) *Maze {
	return t.byID[id]
}

// Default returns the first maze in file order.
func (t *MazeTable) Default() *Maze {
	return t.def
}

// Count returns the number of loaded mazes.
func (t *MazeTable) Count() int {
	return len(t.byID)
}
