package game

import "errors"

// Room operation errors. The handler layer maps these onto the wire
// error codes; none of them ever aborts a room.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomClosed    = errors.New("room closed")
	ErrRoomFull      = errors.New("room full")
	ErrRoomStarted   = errors.New("match already started")
	ErrGhostTaken    = errors.New("ghost already taken")
	ErrNotInRoom     = errors.New("not in a room")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotAllReady   = errors.New("not all players ready")
	ErrMatchRunning  = errors.New("match still running")
	ErrNotStarted    = errors.New("match not started")
	ErrUnknownPolicy = errors.New("unknown policy")
)
