package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/net/message"
	"github.com/ghostrush/server/internal/proto"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; room state is touched only through the room's
// command queue, never from here.
type Session struct {
	id   uint64
	conn *websocket.Conn

	state atomic.Int32 // message.SessionState stored as int32

	OutQueue chan []byte // writer goroutine drains this

	IP string

	dispatch *message.Registry
	onClose  func(*Session)
	cfg      config.NetworkConfig

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, cfg config.NetworkConfig, dispatch *message.Registry, onClose func(*Session), log *zap.Logger) *Session {
	s := &Session{
		id:       id,
		conn:     conn,
		OutQueue: make(chan []byte, cfg.OutQueueSize),
		IP:       conn.RemoteAddr().String(),
		dispatch: dispatch,
		onClose:  onClose,
		cfg:      cfg,
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(message.StateConnected))
	return s
}

// ID satisfies game.Conn.
func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) State() message.SessionState {
	return message.SessionState(s.state.Load())
}

func (s *Session) SetState(st message.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues a frame for the writer goroutine. Non-blocking: rooms
// broadcast from their own goroutines, and a client too slow to drain
// its queue is disconnected rather than allowed to stall a room.
func (s *Session) Send(frame []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- frame:
	default:
		s.log.Warn("輸出佇列已滿，斷開慢速連線")
		s.Close()
	}
}

// SendError replies with a structured error frame to this connection only.
func (s *Session) SendError(code proto.ErrorCode, msg string) {
	s.Send(proto.ErrorFrame(code, msg))
}

// Close shuts the socket down. Seat cleanup does NOT happen here: Send
// may invoke Close from a room goroutine, and cleanup re-enters that
// room's command queue. The reader goroutine runs onClose instead.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(message.StateDisconnecting)
		close(s.closeCh)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It decodes inbound envelopes and
// dispatches them inline; the handlers hand work to room goroutines, so
// a slow room never blocks other clients. The loop's exit is the single
// place onClose fires.
func (s *Session) readLoop() {
	defer func() {
		s.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	}()

	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}

		env, err := proto.Decode(raw)
		if err != nil {
			s.log.Debug("訊息解碼失敗", zap.Error(err))
			s.SendError(proto.ErrBadRequest, "malformed message")
			continue
		}

		if err := s.dispatch.Dispatch(s, s.State(), env.Type, env.Data); err != nil {
			s.SendError(proto.ErrBadRequest, err.Error())
		}
	}
}

// writeLoop runs in its own goroutine and owns all data writes to the
// socket, interleaving queued frames with the ping keepalive.
func (s *Session) writeLoop() {
	defer s.Close()

	pings := channerics.NewTicker(s.closeCh, s.cfg.PingPeriod)
	for {
		select {
		case frame := <-s.OutQueue:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !s.closed.Load() {
					s.log.Debug("寫入錯誤", zap.Error(err))
				}
				return
			}
		case <-pings:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
