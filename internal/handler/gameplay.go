package handler

import (
	"encoding/json"

	"github.com/ghostrush/server/internal/grid"
	"github.com/ghostrush/server/internal/net"
	"github.com/ghostrush/server/internal/proto"
)

// HandlePlayerInput processes playerInput, buffering a steering
// direction on the caller's ghost. The room adopts it on the next tick
// the turn is walkable.
func HandlePlayerInput(sess *net.Session, data json.RawMessage, deps *Deps) {
	var req proto.PlayerInputRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sess.SendError(proto.ErrBadRequest, "malformed playerInput payload")
		return
	}

	dir, err := grid.ParseDirection(req.Direction)
	if err != nil {
		sess.SendError(proto.ErrInvalidDirection, "unknown direction "+req.Direction)
		return
	}

	if err := deps.Registry.SubmitInput(sess.ID(), dir); err != nil {
		sendGameError(sess, err)
	}
}

// HandleRequestGameState processes requestGameState, pushing a full
// snapshot to the caller only, for resync after client-side hiccups.
func HandleRequestGameState(sess *net.Session, _ json.RawMessage, deps *Deps) {
	if err := deps.Registry.RequestState(sess.ID()); err != nil {
		sendGameError(sess, err)
	}
}
