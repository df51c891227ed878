package handler

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/game"
	"github.com/ghostrush/server/internal/net"
	"github.com/ghostrush/server/internal/net/message"
	"github.com/ghostrush/server/internal/proto"
)

// HandleCreateRoom processes createRoom, allocating a room code with
// the requested brain settings. The creator is not seated yet; the
// reply carries the code to join with.
func HandleCreateRoom(sess *net.Session, data json.RawMessage, deps *Deps) {
	var req proto.CreateRoomRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			sess.SendError(proto.ErrBadRequest, "malformed createRoom payload")
			return
		}
	}

	created, err := deps.Registry.CreateRoom(req)
	if err != nil {
		sendGameError(sess, err)
		return
	}
	sess.Send(proto.MustEncode(proto.MsgRoomCreated, created))
}

// HandleJoinRoom processes joinRoom, seating the connection on a
// ghost. The room broadcasts the refreshed full snapshot itself; the
// direct reply only confirms the seat.
func HandleJoinRoom(sess *net.Session, data json.RawMessage, deps *Deps) {
	var req proto.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sess.SendError(proto.ErrBadRequest, "malformed joinRoom payload")
		return
	}
	if !req.Ghost.Valid() {
		sess.SendError(proto.ErrBadRequest, "unknown ghost")
		return
	}
	req.Username = proto.SanitizeUsername(req.Username)
	if req.Username == "" {
		req.Username = string(req.Ghost)
	}

	joined, err := deps.Registry.Join(sess, req)
	if err != nil {
		sendGameError(sess, err)
		return
	}

	sess.SetState(message.StateInRoom)
	sess.Send(proto.MustEncode(proto.MsgRoomJoined, joined))
	deps.Log.Debug("加入房間",
		zap.Uint64("session", sess.ID()),
		zap.String("room", joined.RoomCode),
		zap.String("ghost", string(joined.Ghost)),
	)
}

// HandleLeaveRoom processes leaveRoom. The vacated room broadcasts
// playerLeft; the leaver just drops back to the roomless state.
func HandleLeaveRoom(sess *net.Session, _ json.RawMessage, deps *Deps) {
	if err := deps.Registry.Leave(sess.ID()); err != nil {
		sendGameError(sess, err)
		return
	}
	sess.SetState(message.StateConnected)
}

// sendGameError maps registry and room sentinels onto the wire error
// taxonomy. Anything unclassified is a BadRequest.
func sendGameError(sess *net.Session, err error) {
	switch {
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, game.ErrRoomClosed):
		sess.SendError(proto.ErrRoomNotFound, err.Error())
	case errors.Is(err, game.ErrRoomFull):
		sess.SendError(proto.ErrRoomFull, err.Error())
	case errors.Is(err, game.ErrRoomStarted):
		sess.SendError(proto.ErrRoomStarted, err.Error())
	case errors.Is(err, game.ErrGhostTaken):
		sess.SendError(proto.ErrGhostTaken, err.Error())
	case errors.Is(err, game.ErrNotInRoom):
		sess.SendError(proto.ErrNotInRoom, err.Error())
	default:
		sess.SendError(proto.ErrBadRequest, err.Error())
	}
}
