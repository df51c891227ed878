// Package handler binds websocket message types to registry and room
// operations. Handlers run inline on each session's reader goroutine;
// anything room-scoped crosses into the room through its command queue.
package handler

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/game"
	"github.com/ghostrush/server/internal/net"
	"github.com/ghostrush/server/internal/net/message"
	"github.com/ghostrush/server/internal/proto"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Registry *game.Registry
	Config   *config.Config
	Log      *zap.Logger
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *message.Registry, deps *Deps) {
	// Roomless phase
	roomless := []message.SessionState{message.StateConnected}

	reg.Register(proto.MsgCreateRoom, roomless,
		func(sess any, data json.RawMessage) {
			HandleCreateRoom(sess.(*net.Session), data, deps)
		},
	)
	reg.Register(proto.MsgJoinRoom, roomless,
		func(sess any, data json.RawMessage) {
			HandleJoinRoom(sess.(*net.Session), data, deps)
		},
	)

	// Seated phase. The room arbitrates lobby-versus-match legality
	// itself; the session state only fences off roomless connections.
	seated := []message.SessionState{message.StateInRoom, message.StateInGame}

	reg.Register(proto.MsgToggleReady, seated,
		func(sess any, data json.RawMessage) {
			HandleToggleReady(sess.(*net.Session), data, deps)
		},
	)
	reg.Register(proto.MsgStartGame, seated,
		func(sess any, data json.RawMessage) {
			HandleStartGame(sess.(*net.Session), data, deps)
		},
	)
	reg.Register(proto.MsgRestartGame, seated,
		func(sess any, data json.RawMessage) {
			HandleRestartGame(sess.(*net.Session), data, deps)
		},
	)
	reg.Register(proto.MsgPlayerInput, seated,
		func(sess any, data json.RawMessage) {
			HandlePlayerInput(sess.(*net.Session), data, deps)
		},
	)
	reg.Register(proto.MsgRequestGameState, seated,
		func(sess any, data json.RawMessage) {
			HandleRequestGameState(sess.(*net.Session), data, deps)
		},
	)
	reg.Register(proto.MsgChat, seated,
		func(sess any, data json.RawMessage) {
			HandleChat(sess.(*net.Session), data, deps)
		},
	)
	reg.Register(proto.MsgLeaveRoom, seated,
		func(sess any, data json.RawMessage) {
			HandleLeaveRoom(sess.(*net.Session), data, deps)
		},
	)
}
