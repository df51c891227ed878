package proto

// GhostID names one of the four playable ghosts. Wire values are the
// lowercase classic names.
type GhostID string

const (
	GhostBlinky GhostID = "blinky"
	GhostPinky  GhostID = "pinky"
	GhostInky   GhostID = "inky"
	GhostClyde  GhostID = "clyde"
)

// GhostIDs lists every playable ghost in seat order.
var GhostIDs = [4]GhostID{GhostBlinky, GhostPinky, GhostInky, GhostClyde}

// Valid reports whether g names a playable ghost.
func (g GhostID) Valid() bool {
	switch g {
	case GhostBlinky, GhostPinky, GhostInky, GhostClyde:
		return true
	}
	return false
}

// PlayerState is a player's lifecycle state within a match.
type PlayerState string

const (
	PlayerActive     PlayerState = "active"
	PlayerFrightened PlayerState = "frightened"
	PlayerRespawning PlayerState = "respawning"
)

// GameMode is the room's match mode.
type GameMode string

const (
	ModeChase      GameMode = "chase"
	ModeFrightened GameMode = "frightened"
	ModeGameOver   GameMode = "gameOver"
)

// Winner values for the gameOver frame.
const (
	WinnerGhosts = "ghosts"
	WinnerPacman = "pacman"
)

// Game-over reasons. Capture-limit and dot-clear wins carry no reason.
const (
	ReasonTimeout  = "timeout"
	ReasonInternal = "internal"
)

// Pac-Man brain policy requested at room creation.
const (
	PolicyAuto      = "auto"
	PolicyTabular   = "tabular"
	PolicyHeuristic = "heuristic"
)

// ValidPolicy reports whether s names a known policy selector. The
// empty string means auto.
func ValidPolicy(s string) bool {
	switch s {
	case "", PolicyAuto, PolicyTabular, PolicyHeuristic:
		return true
	}
	return false
}
