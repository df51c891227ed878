package handler

import (
	"encoding/json"

	"github.com/ghostrush/server/internal/net"
	"github.com/ghostrush/server/internal/proto"
)

// HandleChat processes chat, relaying one line to the caller's room.
// The room stamps the sender and enforces the per-player rate limit;
// dropped lines are silent, matching the limiter's contract.
func HandleChat(sess *net.Session, data json.RawMessage, deps *Deps) {
	var req proto.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sess.SendError(proto.ErrBadRequest, "malformed chat payload")
		return
	}

	text := proto.SanitizeChat(req.Text)
	if text == "" {
		return
	}

	if err := deps.Registry.Chat(sess.ID(), text); err != nil {
		sendGameError(sess, err)
	}
}
