// Package proto defines the websocket wire protocol: message type
// names, the envelope framing, payload shapes and the client error
// taxonomy. Everything on the wire is UTF-8 JSON.
package proto

import (
	"encoding/json"
	"fmt"
)

// Client-to-server message types.
const (
	MsgCreateRoom       = "createRoom"
	MsgJoinRoom         = "joinRoom"
	MsgToggleReady      = "toggleReady"
	MsgStartGame        = "startGame"
	MsgRestartGame      = "restartGame"
	MsgPlayerInput      = "playerInput"
	MsgRequestGameState = "requestGameState"
	MsgChat             = "chat"
	MsgLeaveRoom        = "leaveRoom"
)

// Server-to-client message types.
const (
	MsgRoomCreated   = "roomCreated"
	MsgRoomJoined    = "roomJoined"
	MsgReadyState    = "readyState"
	MsgGameState     = "gameState"
	MsgGameStarted   = "gameStarted"
	MsgGameRestarted = "gameRestarted"
	MsgGameUpdate    = "gameUpdate"
	MsgTimerUpdate   = "timerUpdate"
	MsgGameOver      = "gameOver"
	MsgPlayerLeft    = "playerLeft"
	MsgChatMessage   = "chatMessage"
	MsgError         = "error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps a payload into an envelope and marshals it.
func Encode(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Data = data
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return raw, nil
}

// MustEncode is Encode for payloads built from internal state, where a
// marshal failure is a programming error.
func MustEncode(msgType string, payload any) []byte {
	raw, err := Encode(msgType, payload)
	if err != nil {
		panic(err)
	}
	return raw
}

// Decode parses an inbound envelope. The payload stays raw for the
// handler to unmarshal against its own shape.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}
