package brain

import (
	"errors"
	"math"

	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/pathfind"
)

// Weights tunes the defensive evaluation. Negative terms punish.
type Weights struct {
	Danger      float64
	Progress    float64
	FoodDist    float64
	FrightBonus float64
	Urgency     float64
	Explore     float64
	FloodTile   float64
	Choke       float64
}

// DefaultWeights returns the survival-biased reference tuning.
func DefaultWeights() Weights {
	return Weights{
		Danger:      -2500,
		Progress:    200,
		FoodDist:    -3,
		FrightBonus: 1200,
		Urgency:     6000,
		Explore:     150,
		FloodTile:   80,
		Choke:       -800,
	}
}

// Search depth bounds for the lookahead.
const (
	MinSearchDepth     = 1
	MaxSearchDepth     = 20
	DefaultSearchDepth = 12
)

const (
	maxGhosts = 4

	// deathScore is the in-search sentinel for walking into a capture.
	// Kept finite so it stays comparable against evaluation scores.
	deathScore = -100000.0

	safeExploreDistance = 12
	ghostDriftAllowance = 5
	urgencyGhostRange   = 8
	exploreFoodRange    = 6
	exploreGhostRange   = 8
	ditherDangerRange   = 10
	ditherFoodRange     = 8
	exploringBonusRate  = 0.15
	nearTieBonusRate    = 0.05
	floodDepth          = 6
	floodSafeDistance   = 4
	chokeWindow         = 7
	chokeMinExits       = 3
)

// ClampSearchDepth bounds a requested depth to the supported range.
func ClampSearchDepth(d int) int {
	if d < MinSearchDepth {
		return MinSearchDepth
	}
	if d > MaxSearchDepth {
		return MaxSearchDepth
	}
	return d
}

// DefensiveBrain picks Pac-Man's direction under threat with a
// bounded-depth lookahead. Pac-Man branches on every walkable move;
// each ghost is collapsed to one deterministic projected reply, so the
// tree is effectively a Max chain with alpha-beta bookkeeping.
type DefensiveBrain struct {
	depth   int
	weights Weights
}

// NewDefensiveBrain builds a brain with the given depth and weights.
func NewDefensiveBrain(depth int, w Weights) *DefensiveBrain {
	return &DefensiveBrain{depth: ClampSearchDepth(depth), weights: w}
}

// SearchDepth returns the configured lookahead depth.
func (b *DefensiveBrain) SearchDepth() int { return b.depth }

// SetSearchDepth changes the lookahead depth, clamped to the bounds.
func (b *DefensiveBrain) SetSearchDepth(d int) { b.depth = ClampSearchDepth(d) }

// Decide returns the next direction for Pac-Man.
func (b *DefensiveBrain) Decide(st *State) (grid.Direction, error) {
	food, foodD, hasFood := st.nearestFood()
	hostileD, hasHostile := st.nearestHostileDistance()

	// Safe exploration: with every hostile far away, shortest path to
	// the nearest food gives loop-free movement on empty boards.
	if hasFood && (!hasHostile || hostileD > safeExploreDistance) {
		if path := pathfind.AStar(st.Maze, st.Pacman, food); len(path) >= 2 {
			if dir, ok := pathfind.FirstStep(path); ok {
				return dir, nil
			}
		}
	}

	var validArr [grid.DirectionCount]grid.Direction
	valid := walkableDirections(st.Maze, st.Pacman, validArr[:0])
	if len(valid) == 0 {
		return grid.Up, errors.New("no walkable direction")
	}

	ss := newSearchState(st)
	rootGhosts := make([]searchGhost, len(ss.ghosts))
	copy(rootGhosts, ss.ghosts)

	var scores [grid.DirectionCount]float64
	alpha := math.Inf(-1)
	beta := math.Inf(1)
	for i, dir := range valid {
		undo, died := ss.applyPly(dir)
		v := deathScore
		if !died {
			v = b.lookahead(ss, b.depth-1, alpha, beta)
		}
		resulting := ss.pacman
		ss.undoPly(undo)

		v += b.positionalAdvantage(ss.maze, resulting, rootGhosts)
		v += b.chokeDanger(ss.maze, resulting, rootGhosts)
		scores[i] = v
		if v > alpha {
			alpha = v
		}
	}

	bestIdx := 0
	for i := 1; i < len(valid); i++ {
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}

	// Anti-dithering: favor the current facing so near-ties do not
	// flip-flop every tick. The magnitude basis is |best| because
	// scores routinely go negative under pressure.
	facingIdx := -1
	for i, d := range valid {
		if d == st.Facing {
			facingIdx = i
			break
		}
	}
	if facingIdx >= 0 && !math.IsInf(scores[bestIdx], 0) {
		basis := math.Abs(scores[bestIdx])
		exploring := (!hasHostile || hostileD >= ditherDangerRange) &&
			(!hasFood || foodD >= ditherFoodRange)
		if exploring {
			scores[facingIdx] += exploringBonusRate * basis
		} else if math.Abs(scores[bestIdx]-scores[facingIdx]) < nearTieBonusRate*basis {
			scores[facingIdx] += nearTieBonusRate * basis
		}
		for i := 1; i < len(valid); i++ {
			if scores[i] > scores[bestIdx] {
				bestIdx = i
			}
		}
		if scores[facingIdx] >= scores[bestIdx] {
			bestIdx = facingIdx
		}
	}
	return valid[bestIdx], nil
}

// lookahead runs the remaining plies below one root candidate.
func (b *DefensiveBrain) lookahead(ss *searchState, depth int, alpha, beta float64) float64 {
	if ss.currentFood == 0 {
		return math.Inf(1)
	}
	if ss.hostileShares(ss.pacman) {
		return math.Inf(-1)
	}
	if depth <= 0 {
		return b.evaluate(ss)
	}

	expanded := false
	best := math.Inf(-1)
	for _, dir := range grid.Directions {
		if !ss.maze.IsWalkable(ss.pacman.Step(dir)) {
			continue
		}
		expanded = true
		undo, died := ss.applyPly(dir)
		v := deathScore
		if !died {
			v = b.lookahead(ss, depth-1, alpha, beta)
		}
		ss.undoPly(undo)
		if v > best {
			best = v
		}
		if best > alpha {
			alpha = best
		}
		if beta <= alpha {
			break
		}
	}
	if !expanded {
		return b.evaluate(ss)
	}
	return best
}

// evaluate scores a leaf with the cheap tier-1 terms.
func (b *DefensiveBrain) evaluate(ss *searchState) float64 {
	if ss.currentFood == 0 {
		return math.Inf(1)
	}
	hostileD, hasHostile := ss.nearestHostile()
	if hasHostile && hostileD == 0 {
		return math.Inf(-1)
	}

	score := 0.0
	if hasHostile {
		score += b.weights.Danger / float64(hostileD+1)
	}
	score += float64(ss.initialFood-ss.currentFood) * b.weights.Progress
	foodD, hasFood := ss.nearestFoodDistance()
	if hasFood {
		score += float64(foodD) * b.weights.FoodDist
	}
	if frightD, ok := ss.nearestFrightened(); ok {
		score += b.weights.FrightBonus / float64(frightD+1)
	}
	// Urgency keys off the root snapshot on both sides: inside the
	// search the pellet under Pac-Man was consumed by the move that
	// brought him here, which also flipped every ghost frightened.
	if ss.rootPellets[ss.pacman.Key()] {
		if d, ok := ss.nearestRootHostile(); ok && d <= urgencyGhostRange {
			score += b.weights.Urgency / float64(d+1)
		}
	}
	if (!hasFood || foodD > exploreFoodRange) && (!hasHostile || hostileD > exploreGhostRange) {
		score += b.weights.Explore
	}
	return score
}

// positionalAdvantage floods outward from a candidate cell and counts
// tiles that stay clear of every hostile ghost. Root-only; too costly
// for interior nodes.
func (b *DefensiveBrain) positionalAdvantage(m *data.Maze, from grid.Position, ghosts []searchGhost) float64 {
	type item struct {
		pos   grid.Position
		depth int
	}
	seen := map[int32]bool{from.Key(): true}
	queue := []item{{pos: from}}
	count := 0
	var nbrs []grid.Position
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		safe := true
		for i := range ghosts {
			if ghosts[i].frightened {
				continue
			}
			if pathfind.Distance(m, cur.pos, ghosts[i].pos) < floodSafeDistance {
				safe = false
				break
			}
		}
		if safe {
			count++
		}
		if cur.depth >= floodDepth {
			continue
		}
		nbrs = m.Neighbors(nbrs[:0], cur.pos)
		for _, n := range nbrs {
			if !seen[n.Key()] {
				seen[n.Key()] = true
				queue = append(queue, item{pos: n, depth: cur.depth + 1})
			}
		}
	}
	return float64(count) * b.weights.FloodTile
}

// chokeDanger punishes candidate cells whose surrounding intersections
// are covered by hostile ghosts.
func (b *DefensiveBrain) chokeDanger(m *data.Maze, from grid.Position, ghosts []searchGhost) float64 {
	score := 0.0
	var nbrs []grid.Position
	for dy := -chokeWindow; dy <= chokeWindow; dy++ {
		for dx := -chokeWindow; dx <= chokeWindow; dx++ {
			if abs(dx)+abs(dy) > chokeWindow {
				continue
			}
			c := grid.Position{X: from.X + dx, Y: from.Y + dy}
			if !m.IsWalkable(c) {
				continue
			}
			nbrs = m.Neighbors(nbrs[:0], c)
			if len(nbrs) < chokeMinExits {
				continue
			}
			for i := range ghosts {
				if ghosts[i].frightened {
					continue
				}
				score += b.weights.Choke / float64(pathfind.Distance(m, c, ghosts[i].pos)+1)
			}
		}
	}
	return score
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
