package game

import (
	"sort"
	"time"

	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/proto"
)

// changeFlags marks fields mutated since the last delta frame.
type changeFlags struct {
	score    bool
	captures bool
	mode     bool
	dots     bool
	pellets  bool
	emote    bool
}

func allChanged() changeFlags {
	return changeFlags{score: true, captures: true, mode: true, dots: true, pellets: true, emote: true}
}

func (r *Room) resetChanged() { r.changed = changeFlags{} }

// sortedFood flattens a food set ordered by packed key so frames are
// deterministic.
func sortedFood(m map[int32]grid.Position) []grid.Position {
	out := make([]grid.Position, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// fullState builds the complete snapshot for gameState frames.
func (r *Room) fullState(now time.Time) *proto.GameStatePayload {
	players := make([]proto.PlayerSnapshot, 0, len(r.players))
	for _, p := range r.seatOrdered() {
		players = append(players, proto.PlayerSnapshot{
			ConnectionID: p.conn.ID(),
			Username:     p.username,
			Ghost:        p.ghost,
			Ready:        p.ready,
			Position:     p.pos,
			Direction:    p.facing,
			State:        p.state,
		})
	}
	return &proto.GameStatePayload{
		RoomCode:     r.code,
		MazeID:       r.maze.ID(),
		Started:      r.started,
		Mode:         r.mode,
		Score:        r.score,
		CaptureCount: r.captures,
		Dots:         sortedFood(r.dots),
		PowerPellets: sortedFood(r.pellets),
		Pacman: proto.PacmanSnapshot{
			Position:  r.pacman,
			Direction: r.pacFacing,
			Emote:     r.emote,
		},
		Players:         players,
		TimeRemainingMs: r.remainingMs(now),
	}
}

// deltaFrame builds the per-tick update: positions always, everything
// else only when flagged since the previous frame.
func (r *Room) deltaFrame() *proto.GameUpdatePayload {
	players := make([]proto.PlayerDelta, 0, len(r.players))
	for _, p := range r.seatOrdered() {
		players = append(players, proto.PlayerDelta{
			ConnectionID: p.conn.ID(),
			Position:     p.pos,
			Direction:    p.facing,
			State:        p.state,
		})
	}
	frame := &proto.GameUpdatePayload{
		Tick:    r.stepCount,
		Pacman:  proto.PacmanDelta{Position: r.pacman, Direction: r.pacFacing},
		Players: players,
	}
	if r.changed.emote {
		e := r.emote
		frame.Pacman.Emote = &e
	}
	if r.changed.score {
		s := r.score
		frame.Score = &s
	}
	if r.changed.captures {
		c := r.captures
		frame.CaptureCount = &c
	}
	if r.changed.mode {
		m := r.mode
		frame.Mode = &m
	}
	if r.changed.dots {
		d := sortedFood(r.dots)
		frame.Dots = &d
	}
	if r.changed.pellets {
		pp := sortedFood(r.pellets)
		frame.PowerPellets = &pp
	}
	return frame
}
