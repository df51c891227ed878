package proto

// ErrorCode is the machine-readable class of a client protocol error.
// These never abort the room; they are replies to the offending
// connection only.
type ErrorCode string

const (
	ErrRoomNotFound     ErrorCode = "RoomNotFound"
	ErrRoomFull         ErrorCode = "RoomFull"
	ErrRoomStarted      ErrorCode = "RoomStarted"
	ErrGhostTaken       ErrorCode = "GhostTaken"
	ErrInvalidDirection ErrorCode = "InvalidDirection"
	ErrNotInRoom        ErrorCode = "NotInRoom"
	ErrBadRequest       ErrorCode = "BadRequest"
)

// ErrorPayload is the body of an error message.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorFrame encodes a structured error reply.
func ErrorFrame(code ErrorCode, message string) []byte {
	return MustEncode(MsgError, ErrorPayload{Code: code, Message: message})
}
