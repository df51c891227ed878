package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/game"
	"github.com/ghostrush/server/internal/net/message"
	"github.com/ghostrush/server/internal/stats"
)

// upgrader is shared by every /ws request. Origin checks belong to the
// deployment's proxy; rooms are only reachable by knowing their code.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server owns the HTTP listener: the websocket upgrade endpoint plus a
// small JSON admin surface. Sessions are created here and cleaned up
// from their own reader goroutines.
type Server struct {
	cfg      *config.Config
	registry *game.Registry
	dispatch *message.Registry
	store    *stats.Store // nil when stats are disabled

	httpSrv *http.Server
	nextID  atomic.Uint64

	mu       sync.Mutex
	sessions map[uint64]*Session

	log *zap.Logger
}

func NewServer(cfg *config.Config, registry *game.Registry, dispatch *message.Registry, store *stats.Store, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		dispatch: dispatch,
		store:    store,
		sessions: make(map[uint64]*Session),
		log:      log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.handleRooms).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}

// Handler exposes the route tree for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, then closes every live session. Each
// session's reader goroutine releases its own seat on the way out.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)

	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}
	return err
}

// SessionCount reports live connections.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// handleWS upgrades the request and starts a session. The session is
// indexed before its goroutines launch so a connection that dies
// immediately still gets cleaned up.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("連線升級失敗", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.cfg.Network, s.dispatch, s.dropSession, s.log)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info(fmt.Sprintf("玩家連線  session=%d  ip=%s", id, sess.IP))
	sess.Start()
}

// dropSession runs on the session's reader goroutine after the socket
// dies. The registry frees whatever seat the connection held.
func (s *Server) dropSession(sess *Session) {
	s.mu.Lock()
	_, live := s.sessions[sess.ID()]
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
	if !live {
		return
	}

	s.registry.HandleDisconnect(sess.ID())
	s.log.Info(fmt.Sprintf("玩家斷線  session=%d  ip=%s", sess.ID(), sess.IP))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"rooms":    s.registry.RoomCount(),
		"players":  s.registry.PlayerCount(),
		"sessions": s.SessionCount(),
	})
}

// handleStats serves the aggregate match summary from the local store.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		writeJSON(w, map[string]any{"enabled": false})
		return
	}
	sum, err := s.store.Summary()
	if err != nil {
		s.log.Error("統計讀取失敗", zap.Error(err))
		http.Error(w, "summary unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, sum)
}

// handleRooms lists active rooms with their occupancy.
func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"count": s.registry.RoomCount(),
		"rooms": s.registry.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
