package brain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/pathfind"
)

// Target weights for aggregating per-target value vectors.
const (
	dotTargetWeight        = 10.0
	pelletTargetWeight     = 50.0
	hostileTargetWeight    = -1000.0
	frightenedTargetWeight = 1000.0
)

type policyFile struct {
	Alpha                  float64       `json:"alpha"`
	Gamma                  float64       `json:"gamma"`
	TotalActions           int64         `json:"totalActions"`
	ExplorationModeChanged int64         `json:"explorationModeChanged"`
	Entries                []policyEntry `json:"entries"`
}

type policyEntry struct {
	PositionKey int32            `json:"positionKey"`
	ValueTable  []policyStateRow `json:"valueTable"`
}

type policyStateRow struct {
	StateKey int32     `json:"stateKey"`
	Values   []float64 `json:"values"`
}

// TabularPolicy scores directions from a pre-trained value table. The
// table is loaded once and never written afterwards, so lookups need
// no locking.
type TabularPolicy struct {
	alpha        float64
	gamma        float64
	totalActions int64
	values       map[int32]map[int32][grid.DirectionCount]float64
}

// LoadTabularPolicy reads a trained model from path.
func LoadTabularPolicy(path string) (*TabularPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy model %s: %w", path, err)
	}
	p, err := parseTabularPolicy(raw)
	if err != nil {
		return nil, fmt.Errorf("parse policy model %s: %w", path, err)
	}
	return p, nil
}

func parseTabularPolicy(raw []byte) (*TabularPolicy, error) {
	var file policyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Entries) == 0 {
		return nil, errors.New("model contains no entries")
	}
	p := &TabularPolicy{
		alpha:        file.Alpha,
		gamma:        file.Gamma,
		totalActions: file.TotalActions,
		values:       make(map[int32]map[int32][grid.DirectionCount]float64, len(file.Entries)),
	}
	for _, entry := range file.Entries {
		if _, dup := p.values[entry.PositionKey]; dup {
			return nil, fmt.Errorf("duplicate position key %d", entry.PositionKey)
		}
		table := make(map[int32][grid.DirectionCount]float64, len(entry.ValueTable))
		for _, row := range entry.ValueTable {
			if len(row.Values) != grid.DirectionCount {
				return nil, fmt.Errorf("position %d state %d has %d values, want %d",
					entry.PositionKey, row.StateKey, len(row.Values), grid.DirectionCount)
			}
			if _, dup := table[row.StateKey]; dup {
				return nil, fmt.Errorf("position %d has duplicate state key %d",
					entry.PositionKey, row.StateKey)
			}
			var vec [grid.DirectionCount]float64
			copy(vec[:], row.Values)
			table[row.StateKey] = vec
		}
		p.values[entry.PositionKey] = table
	}
	return p, nil
}

// Positions reports how many target positions the model covers.
func (p *TabularPolicy) Positions() int { return len(p.values) }

// TotalActions reports the training volume recorded in the model.
func (p *TabularPolicy) TotalActions() int64 { return p.totalActions }

// stateKey packs the observer cell and facing into one lookup key.
func stateKey(pos grid.Position, facing grid.Direction) int32 {
	return pos.Key()<<2 | int32(facing)
}

// Decide aggregates the value vectors of every visible target, applies
// proximity shaping against hostile ghosts, and picks the best
// walkable direction.
func (p *TabularPolicy) Decide(st *State) (grid.Direction, error) {
	sk := stateKey(st.Pacman, st.Facing)
	var agg [grid.DirectionCount]float64
	p.accumulate(&agg, sk, st.Dots, dotTargetWeight)
	p.accumulate(&agg, sk, st.Pellets, pelletTargetWeight)
	for _, g := range st.Ghosts {
		w := hostileTargetWeight
		if g.Frightened {
			w = frightenedTargetWeight
		}
		p.addTarget(&agg, sk, g.Position.Key(), w)
	}

	best := grid.Up
	bestScore := 0.0
	found := false
	for _, dir := range grid.Directions {
		next := st.Pacman.Step(dir)
		if !st.Maze.IsWalkable(next) {
			continue
		}
		score := agg[dir] + hostileShaping(st, st.Maze.ApplyTeleport(next))
		if !found || score > bestScore {
			best, bestScore, found = dir, score, true
		}
	}
	if !found {
		return grid.Up, errors.New("no walkable direction")
	}
	return best, nil
}

// accumulate folds in one target class. Keys are visited in sorted
// order so the float sum never depends on map iteration.
func (p *TabularPolicy) accumulate(agg *[grid.DirectionCount]float64, sk int32, targets map[int32]grid.Position, weight float64) {
	keys := make([]int32, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		p.addTarget(agg, sk, k, weight)
	}
}

// addTarget adds weight*values for one target. Targets the model never
// visited contribute nothing.
func (p *TabularPolicy) addTarget(agg *[grid.DirectionCount]float64, sk, positionKey int32, weight float64) {
	table, ok := p.values[positionKey]
	if !ok {
		return
	}
	vec, ok := table[sk]
	if !ok {
		return
	}
	for i := range agg {
		agg[i] += weight * vec[i]
	}
}

// hostileShaping penalizes moves by the post-move distance to the
// nearest hostile ghost. The penalty decays with distance and vanishes
// beyond eight cells.
func hostileShaping(st *State, next grid.Position) float64 {
	d, ok := nearestHostileFrom(st, next)
	if !ok {
		return 0
	}
	switch {
	case d <= 1:
		return -500
	case d == 2:
		return -250
	case d <= 4:
		return -100 / float64(d)
	case d <= 8:
		return -50 / float64(d)
	default:
		return 0
	}
}

func nearestHostileFrom(st *State, from grid.Position) (int, bool) {
	best := 0
	found := false
	for _, g := range st.Ghosts {
		if g.Frightened {
			continue
		}
		d := pathfind.Distance(st.Maze, from, g.Position)
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}
