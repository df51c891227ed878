// Package pathfind implements shortest-path search over a maze with
// teleport-aware distance estimates.
package pathfind

import (
	"container/heap"

	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
)

type pathNode struct {
	pos    grid.Position
	g      int
	f      int
	seq    int
	parent *pathNode
	index  int
}

// pathQueue is a min-heap over f. Equal-f entries pop in insertion
// order so repeated searches over the same state are stable.
type pathQueue []*pathNode

func (q pathQueue) Len() int { return len(q) }

func (q pathQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}

func (q pathQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *pathQueue) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *pathQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}

// Distance returns the Manhattan distance between a and b, taking the
// best teleport shortcut into account. It ignores walls and is the
// admissible heuristic for AStar as well as the "how far is that
// ghost" metric used by the brains.
func Distance(m *data.Maze, a, b grid.Position) int {
	best := grid.Manhattan(a, b)
	for _, tp := range m.Teleports() {
		d := grid.Manhattan(a, tp.Entry) + 1 + grid.Manhattan(tp.Exit, b)
		if d < best {
			best = d
		}
	}
	return best
}

// AStar returns a shortest path from src to dst inclusive of both
// endpoints. Teleport edges cost one step. Returns nil when no path
// exists and [src] when src == dst.
func AStar(m *data.Maze, src, dst grid.Position) []grid.Position {
	return search(m, src, dst, nil)
}

// AStarAvoiding behaves like AStar but inflates the cost of entering
// cells within radius of any listed ghost by (radius - d) * penalty.
// The result trades length for clearance; it is used by fallback
// pathing, never by the tick-critical searches.
func AStarAvoiding(m *data.Maze, src, dst grid.Position, ghosts []grid.Position, radius, penalty int) []grid.Position {
	if len(ghosts) == 0 || radius <= 0 || penalty <= 0 {
		return search(m, src, dst, nil)
	}
	extra := func(p grid.Position) int {
		cost := 0
		for _, g := range ghosts {
			if d := Distance(m, p, g); d < radius {
				cost += (radius - d) * penalty
			}
		}
		return cost
	}
	return search(m, src, dst, extra)
}

func search(m *data.Maze, src, dst grid.Position, extraCost func(grid.Position) int) []grid.Position {
	if !m.IsWalkable(src) || !m.IsWalkable(dst) {
		return nil
	}
	if src == dst {
		return []grid.Position{src}
	}

	open := make(pathQueue, 0, 64)
	heap.Init(&open)
	byKey := make(map[int32]*pathNode, 64)
	closed := make(map[int32]bool, 64)
	seq := 0

	start := &pathNode{pos: src, g: 0, f: Distance(m, src, dst), seq: seq}
	heap.Push(&open, start)
	byKey[src.Key()] = start

	var nbrs []grid.Position
	for open.Len() > 0 {
		cur := heap.Pop(&open).(*pathNode)
		if cur.pos == dst {
			return reconstruct(cur)
		}
		closed[cur.pos.Key()] = true

		nbrs = m.Neighbors(nbrs[:0], cur.pos)
		for _, n := range nbrs {
			key := n.Key()
			if closed[key] {
				continue
			}
			g := cur.g + 1
			if extraCost != nil {
				g += extraCost(n)
			}
			if existing, ok := byKey[key]; ok {
				if g < existing.g {
					existing.g = g
					existing.f = g + Distance(m, n, dst)
					existing.parent = cur
					heap.Fix(&open, existing.index)
				}
				continue
			}
			seq++
			node := &pathNode{
				pos:    n,
				g:      g,
				f:      g + Distance(m, n, dst),
				seq:    seq,
				parent: cur,
			}
			heap.Push(&open, node)
			byKey[key] = node
		}
	}
	return nil
}

func reconstruct(end *pathNode) []grid.Position {
	count := 0
	for n := end; n != nil; n = n.parent {
		count++
	}
	path := make([]grid.Position, count)
	for n := end; n != nil; n = n.parent {
		count--
		path[count] = n.pos
	}
	return path
}

// FirstStep returns the direction from the head of a path to its
// second cell. ok is false for paths shorter than two cells.
func FirstStep(path []grid.Position) (grid.Direction, bool) {
	if len(path) < 2 {
		return grid.Up, false
	}
	return grid.DirectionToward(path[0], path[1]), true
}

// NearestTarget picks the target with the smallest teleport-aware
// distance from from. Ties keep the earliest entry, matching the
// iteration order the callers feed in.
func NearestTarget(m *data.Maze, from grid.Position, targets []grid.Position) (grid.Position, int, bool) {
	if len(targets) == 0 {
		return grid.Position{}, 0, false
	}
	best := targets[0]
	bestD := Distance(m, from, best)
	for _, tgt := range targets[1:] {
		if d := Distance(m, from, tgt); d < bestD {
			best, bestD = tgt, d
		}
	}
	return best, bestD, true
}
