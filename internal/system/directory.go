package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/core/event"
	coresys "github.com/ghostrush/server/internal/core/system"
	"github.com/ghostrush/server/internal/persist"
)

type dirOpKind int

const (
	opPublish dirOpKind = iota
	opOccupancy
	opDelete
)

type dirOp struct {
	kind    dirOpKind
	code    string
	players int
	created time.Time
}

// DirectorySystem mirrors room lifecycle into the shared directory.
// Phase 1 (Directory). Subscriptions only queue work; the writes run
// in Update with their own timeout, so a slow database delays this
// phase and nothing else.
type DirectorySystem struct {
	repo    *persist.DirectoryRepo
	ttl     time.Duration
	timeout time.Duration
	log     *zap.Logger

	pending []dirOp
}

func NewDirectorySystem(bus *event.Bus, repo *persist.DirectoryRepo, roomTTL, timeout time.Duration, log *zap.Logger) *DirectorySystem {
	s := &DirectorySystem{
		repo:    repo,
		ttl:     roomTTL,
		timeout: timeout,
		log:     log,
	}
	event.Subscribe(bus, func(ev event.RoomCreated) {
		s.pending = append(s.pending, dirOp{kind: opPublish, code: ev.RoomCode, created: ev.CreatedAt})
	})
	event.Subscribe(bus, func(ev event.RoomOccupancyChanged) {
		s.pending = append(s.pending, dirOp{kind: opOccupancy, code: ev.RoomCode, players: ev.PlayerCount})
	})
	event.Subscribe(bus, func(ev event.RoomClosed) {
		s.pending = append(s.pending, dirOp{kind: opDelete, code: ev.RoomCode})
	})
	return s
}

func (s *DirectorySystem) Phase() coresys.Phase { return coresys.PhaseDirectory }

func (s *DirectorySystem) Update(_ time.Duration) {
	for _, op := range s.pending {
		s.apply(op)
	}
	s.pending = s.pending[:0]
}

// apply performs one directory write. Failures are logged and dropped:
// the directory is advisory and rows self-expire.
func (s *DirectorySystem) apply(op dirOp) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch op.kind {
	case opPublish:
		err = s.repo.Publish(ctx, op.code, op.created, s.ttl)
	case opOccupancy:
		err = s.repo.UpdatePlayerCount(ctx, op.code, op.players)
	case opDelete:
		err = s.repo.Delete(ctx, op.code)
	}
	if err != nil {
		s.log.Warn("房間目錄寫入失敗",
			zap.String("room", op.code),
			zap.Error(err),
		)
	}
}
