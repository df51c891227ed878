// Package message routes decoded websocket envelopes to their
// handlers with session-state access control.
package message

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateConnected     SessionState = iota // online, not seated in a room
	StateInRoom                            // seated, match not running
	StateInGame                            // seated, match running
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateInRoom:
		return "InRoom"
	case StateInGame:
		return "InGame"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for message handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, data json.RawMessage)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given
// session states.
func (reg *Registry) Register(msgType string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[msgType] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for msgType, validates the session state,
// and calls the handler. Returns an error if the state is not allowed;
// unknown message types are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, msgType string, data json.RawMessage) error {
	reg.log.Debug("收到訊息",
		zap.String("type", msgType),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[msgType]
	if !ok {
		reg.log.Debug("未知訊息類型", zap.String("type", msgType), zap.String("state", state.String()))
		return nil // silently ignore unknown message types
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("訊息在此狀態下不允許",
			zap.String("type", msgType),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("message %s not allowed in state %s", msgType, state)
	}

	return reg.safeCall(entry.fn, sess, data, msgType)
}

// safeCall executes a handler with panic recovery to prevent a single
// bad message from crashing the server.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, data json.RawMessage, msgType string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.String("type", msgType),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for message %s: %v", msgType, rec)
		}
	}()
	fn(sess, data)
	return nil
}
