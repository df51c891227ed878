package proto

import (
	"github.com/ghostrush/server/internal/grid"
)

// CreateRoomRequest carries the optional per-room brain settings.
// Zero values mean server defaults.
type CreateRoomRequest struct {
	SearchDepth int    `json:"searchDepth,omitempty"`
	Policy      string `json:"policy,omitempty"`
}

// JoinRoomRequest asks to occupy one ghost seat in a room.
type JoinRoomRequest struct {
	RoomCode string  `json:"roomCode"`
	Username string  `json:"username"`
	Ghost    GhostID `json:"ghost"`
}

// RoomRequest is the client shape for room-scoped requests with no
// further arguments (toggleReady, startGame, restartGame,
// requestGameState, leaveRoom). The server resolves the room from the
// connection's seat, so the code is advisory and handlers skip the
// decode.
type RoomRequest struct {
	RoomCode string `json:"roomCode"`
}

// PlayerInputRequest buffers a steering direction. The direction stays
// a raw string so an unknown value maps to InvalidDirection instead of
// a decode failure.
type PlayerInputRequest struct {
	RoomCode  string `json:"roomCode"`
	Direction string `json:"direction"`
}

// ChatRequest is a lobby or in-game chat line.
type ChatRequest struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

// RoomCreatedPayload answers createRoom with the allocated code and
// the settings the room will actually run with.
type RoomCreatedPayload struct {
	RoomCode    string `json:"roomCode"`
	SearchDepth int    `json:"searchDepth"`
	Policy      string `json:"policy"`
}

// RoomJoinedPayload confirms a seat to the joining connection.
type RoomJoinedPayload struct {
	RoomCode     string  `json:"roomCode"`
	ConnectionID uint64  `json:"connectionId"`
	Ghost        GhostID `json:"ghost"`
}

// ReadyStatePayload broadcasts a ready toggle to the whole room.
// AllReady tells the lobby whether the match can start.
type ReadyStatePayload struct {
	ConnectionID uint64 `json:"connectionId"`
	Ready        bool   `json:"ready"`
	AllReady     bool   `json:"allReady"`
}

// PlayerSnapshot is one player in a full state frame.
type PlayerSnapshot struct {
	ConnectionID uint64         `json:"connectionId"`
	Username     string         `json:"username"`
	Ghost        GhostID        `json:"ghost"`
	Ready        bool           `json:"ready"`
	Position     grid.Position  `json:"position"`
	Direction    grid.Direction `json:"direction"`
	State        PlayerState    `json:"state"`
}

// PacmanSnapshot is Pac-Man in a full state frame.
type PacmanSnapshot struct {
	Position  grid.Position  `json:"position"`
	Direction grid.Direction `json:"direction"`
	Emote     string         `json:"emote,omitempty"`
}

// GameStatePayload is the full room snapshot, sent on join, on match
// start and on explicit request.
type GameStatePayload struct {
	RoomCode        string           `json:"roomCode"`
	MazeID          int32            `json:"mazeId"`
	Started         bool             `json:"started"`
	Mode            GameMode         `json:"mode"`
	Score           int              `json:"score"`
	CaptureCount    int              `json:"captureCount"`
	Dots            []grid.Position  `json:"dots"`
	PowerPellets    []grid.Position  `json:"powerPellets"`
	Pacman          PacmanSnapshot   `json:"pacman"`
	Players         []PlayerSnapshot `json:"players"`
	TimeRemainingMs int64            `json:"timeRemainingMs"`
}

// PlayerDelta is one player in a tick delta frame.
type PlayerDelta struct {
	ConnectionID uint64         `json:"connectionId"`
	Position     grid.Position  `json:"position"`
	Direction    grid.Direction `json:"direction"`
	State        PlayerState    `json:"state"`
}

// PacmanDelta is Pac-Man in a tick delta frame. Emote is present only
// when it changed; an empty string clears it.
type PacmanDelta struct {
	Position  grid.Position  `json:"position"`
	Direction grid.Direction `json:"direction"`
	Emote     *string        `json:"emote,omitempty"`
}

// GameUpdatePayload is the per-tick delta frame. Pacman and Players
// are always present; the remaining fields appear only when their
// value changed since the previous frame. Dots and PowerPellets carry
// the full remaining sets so a dropped frame cannot resurrect food.
type GameUpdatePayload struct {
	Tick         int64            `json:"tick"`
	Pacman       PacmanDelta      `json:"pacman"`
	Players      []PlayerDelta    `json:"players"`
	Score        *int             `json:"score,omitempty"`
	CaptureCount *int             `json:"captureCount,omitempty"`
	Mode         *GameMode        `json:"mode,omitempty"`
	Dots         *[]grid.Position `json:"dots,omitempty"`
	PowerPellets *[]grid.Position `json:"powerPellets,omitempty"`
}

// TimerUpdatePayload reports the match clock once per second.
type TimerUpdatePayload struct {
	TimeRemainingMs int64 `json:"timeRemainingMs"`
}

// GameOverPayload is the single terminal frame of a match.
type GameOverPayload struct {
	Winner string `json:"winner"`
	Reason string `json:"reason,omitempty"`
	Score  int    `json:"score"`
}

// PlayerLeftPayload announces a departed player and the freed seat.
type PlayerLeftPayload struct {
	ConnectionID uint64  `json:"connectionId"`
	Ghost        GhostID `json:"ghost"`
}

// ChatMessagePayload relays one chat line to the room.
type ChatMessagePayload struct {
	ConnectionID uint64 `json:"connectionId"`
	Username     string `json:"username"`
	Text         string `json:"text"`
}
