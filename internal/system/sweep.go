package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/ghostrush/server/internal/core/system"
	"github.com/ghostrush/server/internal/game"
	"github.com/ghostrush/server/internal/persist"
)

// SweepSystem reaps rooms past their TTL and, on a slower cadence,
// expired directory rows left by any instance. Phase 3 (Sweep).
type SweepSystem struct {
	registry *game.Registry
	repo     *persist.DirectoryRepo // nil when the directory is disabled
	timeout  time.Duration
	period   time.Duration
	log      *zap.Logger

	sincePurge time.Duration
}

func NewSweepSystem(registry *game.Registry, repo *persist.DirectoryRepo, purgePeriod, timeout time.Duration, log *zap.Logger) *SweepSystem {
	return &SweepSystem{
		registry: registry,
		repo:     repo,
		timeout:  timeout,
		period:   purgePeriod,
		log:      log,
	}
}

func (s *SweepSystem) Phase() coresys.Phase { return coresys.PhaseSweep }

func (s *SweepSystem) Update(dt time.Duration) {
	s.registry.Sweep(time.Now())

	if s.repo == nil {
		return
	}
	s.sincePurge += dt
	if s.sincePurge < s.period {
		return
	}
	s.sincePurge = 0

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	purged, err := s.repo.PurgeExpired(ctx)
	if err != nil {
		s.log.Warn("目錄清理失敗", zap.Error(err))
		return
	}
	if purged > 0 {
		s.log.Debug("目錄已清除過期房間", zap.Int64("rows", purged))
	}
}
