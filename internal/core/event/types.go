package event

import "time"

// Room lifecycle events. Payloads are plain data so subscribers never
// reach back into live room state.

// RoomCreated fires when the registry allocates a room code.
type RoomCreated struct {
	RoomCode    string
	SearchDepth int
	Policy      string
	CreatedAt   time.Time
}

// RoomOccupancyChanged fires after every join and leave.
type RoomOccupancyChanged struct {
	RoomCode    string
	PlayerCount int
}

// MatchStarted fires when a room begins ticking, on start and restart.
type MatchStarted struct {
	RoomCode  string
	Players   int
	Restarted bool
}

// MatchFinished fires once per match with the terminal result.
type MatchFinished struct {
	RoomCode     string
	Winner       string
	Reason       string
	Score        int
	CaptureCount int
	DotsLeft     int
	Players      int
	Duration     time.Duration
}

// RoomClosed fires when a room is torn down and its code freed.
type RoomClosed struct {
	RoomCode string
}
