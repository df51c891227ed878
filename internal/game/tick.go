package game

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/brain"
	"github.com/ghostrush/server/internal/core/event"
	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/proto"
	"github.com/ghostrush/server/internal/scripting"
)

// tick advances the match one step. Order is fixed: expiries, position
// snapshot, early collision, Pac-Man, players, late collision,
// terminals, emote band, delta frame.
func (r *Room) tick(now time.Time) {
	if !r.started || r.mode == proto.ModeGameOver {
		return
	}
	r.stepCount++

	if !r.checkPositions(now) {
		return
	}
	r.expireTimers(now)

	r.pacPrev = r.pacman
	for _, p := range r.players {
		p.prevPos = p.pos
	}

	// Early pass catches co-location left over from teleports and
	// respawns before anyone moves this tick.
	r.resolveCollisions(now)

	r.movePacman(now)
	r.movePlayers()
	r.resolveCollisions(now)

	if r.checkTerminals(now) {
		return
	}

	r.refreshEmote(now)

	r.broadcast(proto.MustEncode(proto.MsgGameUpdate, r.deltaFrame()))
	r.resetChanged()

	if r.stepCount%r.timerEvery == 0 {
		r.broadcast(proto.MustEncode(proto.MsgTimerUpdate, proto.TimerUpdatePayload{
			TimeRemainingMs: r.remainingMs(now),
		}))
	}
}

// checkPositions guards the walkability invariant. A violation means
// room state is corrupt; the match aborts instead of playing on.
func (r *Room) checkPositions(now time.Time) bool {
	bad := !r.maze.IsWalkable(r.pacman)
	if !bad {
		for _, p := range r.players {
			if !r.maze.IsWalkable(p.pos) {
				bad = true
				break
			}
		}
	}
	if !bad {
		return true
	}
	r.log.Error("內部狀態異常，強制結束對局", zap.Int64("tick", r.stepCount))
	r.gameOver(now, "", proto.ReasonInternal)
	r.closed = true
	return false
}

// expireTimers runs the frightened and respawn clocks at tick start,
// before anything observes mode or player state.
func (r *Room) expireTimers(now time.Time) {
	if r.mode == proto.ModeFrightened && now.Sub(r.frightenedAt) >= r.cfg.FrightenedDuration {
		r.mode = proto.ModeChase
		r.changed.mode = true
		for _, p := range r.players {
			if p.state == proto.PlayerFrightened {
				p.state = proto.PlayerActive
			}
		}
	}
	for _, p := range r.players {
		if p.state != proto.PlayerRespawning || now.Before(p.respawnAt) {
			continue
		}
		if r.mode == proto.ModeFrightened {
			p.state = proto.PlayerFrightened
		} else {
			p.state = proto.PlayerActive
		}
		p.pos = p.spawn
		p.prevPos = p.spawn
		p.respawnAt = time.Time{}
	}
}

// movePacman asks the controller for a step. A decision failure keeps
// the current facing for this tick; a blocked step moves nothing.
func (r *Room) movePacman(now time.Time) {
	dir := r.pacFacing
	if r.controller != nil {
		if d, err := r.controller.Decide(r.brainState(now)); err == nil {
			dir = d
		} else {
			r.log.Debug("決策失敗，沿用目前方向", zap.Error(err))
		}
	}
	next := r.pacman.Step(dir)
	if !r.maze.IsWalkable(next) {
		return
	}
	r.pacman = r.maze.ApplyTeleport(next)
	r.pacFacing = dir
	r.consumeFood(now)
}

// consumeFood removes any dot or pellet under Pac-Man. Removal is
// idempotent: an already-deleted key scores nothing.
func (r *Room) consumeFood(now time.Time) {
	key := r.pacman.Key()
	if _, ok := r.dots[key]; ok {
		delete(r.dots, key)
		r.score += r.cfg.DotValue
		r.changed.dots = true
		r.changed.score = true
	}
	if _, ok := r.pellets[key]; ok {
		delete(r.pellets, key)
		r.score += r.cfg.PowerPelletValue
		r.changed.pellets = true
		r.changed.score = true
		r.frighten(now)
	}
}

// frighten arms frightened mode. Re-arming while armed only resets the
// timer. Respawning players are untouched.
func (r *Room) frighten(now time.Time) {
	if r.mode != proto.ModeFrightened {
		r.mode = proto.ModeFrightened
		r.changed.mode = true
	}
	r.frightenedAt = now
	for _, p := range r.players {
		if p.state == proto.PlayerActive {
			p.state = proto.PlayerFrightened
		}
	}
}

// movePlayers adopts newly-walkable buffered directions, then moves
// each player one cell along their facing. A blocked player keeps the
// facing and stays put.
func (r *Room) movePlayers() {
	for _, p := range r.seatOrdered() {
		if p.state == proto.PlayerRespawning {
			continue
		}
		if b := p.buffered; b != nil && r.maze.IsWalkable(p.pos.Step(*b)) {
			p.facing = *b
			p.buffered = nil
		}
		next := p.pos.Step(p.facing)
		if !r.maze.IsWalkable(next) {
			continue
		}
		p.pos = r.maze.ApplyTeleport(next)
	}
}

// resolveCollisions applies the same-cell and swap rules in seat
// order. Processing stops at the capture limit so the count never
// exceeds it.
func (r *Room) resolveCollisions(now time.Time) {
	for _, p := range r.seatOrdered() {
		if r.captures >= r.cfg.CapturesToWin {
			return
		}
		if p.state == proto.PlayerRespawning {
			continue
		}
		same := p.pos == r.pacman
		swap := p.prevPos == r.pacman && p.pos == r.pacPrev
		if !same && !swap {
			continue
		}
		if p.state == proto.PlayerFrightened {
			r.eatGhost(p, now)
			continue
		}
		r.capturePacman(p)
	}
}

// eatGhost sends a frightened ghost home and scores the hunt.
func (r *Room) eatGhost(p *Player, now time.Time) {
	house, _ := r.maze.Spawn(data.SpawnGhostHouse)
	p.state = proto.PlayerRespawning
	p.pos = house
	p.prevPos = house
	p.respawnAt = now.Add(r.cfg.RespawnDelay)
	r.score += r.cfg.BaseCaptureScore
	r.changed.score = true
	r.log.Debug("鬼魂被吃掉", zap.String("ghost", string(p.ghost)))
}

// capturePacman books one capture for the ghosts. The award scales
// with how many players stood within 3 tiles of the capture site.
func (r *Room) capturePacman(p *Player) {
	site := r.pacman
	nearby := 0
	for _, q := range r.players {
		if q.state == proto.PlayerRespawning {
			continue
		}
		if grid.Manhattan(q.pos, site) < 3 {
			nearby++
		}
	}
	if nearby < 1 {
		nearby = 1
	}
	award := float64(r.cfg.BaseCaptureScore) * math.Pow(r.cfg.CaptureMultiplier, float64(nearby-1))
	r.score += int(award)
	r.captures++
	r.changed.score = true
	r.changed.captures = true
	r.pacman = r.pacSpawn
	r.pacPrev = r.pacSpawn
	r.log.Debug("小精靈被捕獲",
		zap.String("ghost", string(p.ghost)),
		zap.Int("captures", r.captures),
		zap.Int("nearby", nearby),
	)
}

// checkTerminals ends the match on capture limit, dot exhaustion or
// the match deadline.
func (r *Room) checkTerminals(now time.Time) bool {
	switch {
	case r.captures >= r.cfg.CapturesToWin:
		r.gameOver(now, proto.WinnerGhosts, "")
	case len(r.dots) == 0:
		r.gameOver(now, proto.WinnerPacman, "")
	case now.Sub(r.startedAt) >= r.cfg.MatchDuration:
		r.gameOver(now, proto.WinnerPacman, proto.ReasonTimeout)
	default:
		return false
	}
	return true
}

// gameOver freezes the match: one final delta, one gameOver frame, no
// more ticks. The room itself stays up for a restart until the sweep
// reclaims it.
func (r *Room) gameOver(now time.Time, winner, reason string) {
	r.mode = proto.ModeGameOver
	r.changed.mode = true
	r.finishedAt = now
	if r.ticker != nil {
		r.ticker.Stop()
		r.tickC = nil
	}
	r.broadcast(proto.MustEncode(proto.MsgGameUpdate, r.deltaFrame()))
	r.resetChanged()
	r.broadcast(proto.MustEncode(proto.MsgGameOver, proto.GameOverPayload{
		Winner: winner,
		Reason: reason,
		Score:  r.score,
	}))
	if r.bus != nil {
		event.Emit(r.bus, event.MatchFinished{
			RoomCode:     r.code,
			Winner:       winner,
			Reason:       reason,
			Score:        r.score,
			CaptureCount: r.captures,
			DotsLeft:     len(r.dots),
			Players:      len(r.players),
			Duration:     now.Sub(r.startedAt),
		})
	}
	r.log.Info("對局結束",
		zap.String("winner", winner),
		zap.String("reason", reason),
		zap.Int("score", r.score),
		zap.Int("captures", r.captures),
		zap.Duration("duration", now.Sub(r.startedAt)),
	)
}

// refreshEmote re-evaluates the emote band every few ticks. A live
// emote holds its slot until it expires.
func (r *Room) refreshEmote(now time.Time) {
	if r.emotes == nil || r.cfg.EmoteRefreshTicks <= 0 {
		return
	}
	if r.stepCount%int64(r.cfg.EmoteRefreshTicks) != 0 {
		return
	}
	if r.emote != "" && now.Before(r.emoteUntil) {
		return
	}
	choice := r.emotes.ChooseEmote(r.emoteContext(now))
	if choice.Emote != r.emote {
		r.changed.emote = true
	}
	r.emote = choice.Emote
	r.emoteUntil = now.Add(choice.TTL)
}

func (r *Room) emoteContext(now time.Time) scripting.EmoteContext {
	nearest := -1
	for _, p := range r.players {
		if p.state == proto.PlayerRespawning {
			continue
		}
		d := grid.Manhattan(p.pos, r.pacman)
		if nearest < 0 || d < nearest {
			nearest = d
		}
	}
	return scripting.EmoteContext{
		Mode:             string(r.mode),
		Score:            r.score,
		CaptureCount:     r.captures,
		CapturesToWin:    r.cfg.CapturesToWin,
		DotsLeft:         len(r.dots),
		PelletsLeft:      len(r.pellets),
		NearestGhostDist: nearest,
		FrightenedMs:     r.frightenedRemaining(now).Milliseconds(),
		StepCount:        int(r.stepCount),
	}
}

// brainState packs the controller's observation. Respawning ghosts
// are invisible to the brain.
func (r *Room) brainState(now time.Time) *brain.State {
	ghosts := make([]brain.GhostObservation, 0, len(r.players))
	for _, p := range r.seatOrdered() {
		if p.state == proto.PlayerRespawning {
			continue
		}
		ghosts = append(ghosts, brain.GhostObservation{
			Position:   p.pos,
			Direction:  p.facing,
			Frightened: p.state == proto.PlayerFrightened,
		})
	}
	return &brain.State{
		Maze:                r.maze,
		Pacman:              r.pacman,
		Facing:              r.pacFacing,
		Ghosts:              ghosts,
		Dots:                r.dots,
		Pellets:             r.pellets,
		InitialFood:         r.initialFood,
		FrightenedRemaining: r.frightenedRemaining(now),
		StepCount:           int(r.stepCount),
	}
}

func (r *Room) frightenedRemaining(now time.Time) time.Duration {
	if r.mode != proto.ModeFrightened {
		return 0
	}
	rem := r.cfg.FrightenedDuration - now.Sub(r.frightenedAt)
	if rem < 0 {
		return 0
	}
	return rem
}

func (r *Room) remainingMs(now time.Time) int64 {
	if !r.started {
		return r.cfg.MatchDuration.Milliseconds()
	}
	rem := r.cfg.MatchDuration - now.Sub(r.startedAt)
	if rem < 0 {
		rem = 0
	}
	return rem.Milliseconds()
}
