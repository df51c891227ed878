package handler

import (
	"encoding/json"

	"github.com/ghostrush/server/internal/net"
	"github.com/ghostrush/server/internal/net/message"
)

// HandleToggleReady processes toggleReady. The room broadcasts the
// resulting readyState to every seat.
func HandleToggleReady(sess *net.Session, _ json.RawMessage, deps *Deps) {
	if err := deps.Registry.ToggleReady(sess.ID()); err != nil {
		sendGameError(sess, err)
	}
}

// HandleStartGame processes startGame. Any seated player may start once
// every seat is ready; the room broadcasts gameStarted plus the opening
// snapshot.
func HandleStartGame(sess *net.Session, _ json.RawMessage, deps *Deps) {
	if err := deps.Registry.StartMatch(sess.ID()); err != nil {
		sendGameError(sess, err)
		return
	}
	sess.SetState(message.StateInGame)
}

// HandleRestartGame processes restartGame after a finished match. Seats
// and ready flags survive; the board reseeds.
func HandleRestartGame(sess *net.Session, _ json.RawMessage, deps *Deps) {
	if err := deps.Registry.RestartMatch(sess.ID()); err != nil {
		sendGameError(sess, err)
		return
	}
	sess.SetState(message.StateInGame)
}
