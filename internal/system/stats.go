package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/ghostrush/server/internal/core/event"
	coresys "github.com/ghostrush/server/internal/core/system"
	"github.com/ghostrush/server/internal/stats"
)

// StatsSystem folds finished matches into the local badger store.
// Phase 2 (Stats).
type StatsSystem struct {
	store *stats.Store
	log   *zap.Logger

	pending []stats.MatchRecord
}

func NewStatsSystem(bus *event.Bus, store *stats.Store, log *zap.Logger) *StatsSystem {
	s := &StatsSystem{store: store, log: log}
	event.Subscribe(bus, func(ev event.MatchFinished) {
		s.pending = append(s.pending, stats.MatchRecord{
			RoomCode:   ev.RoomCode,
			Winner:     ev.Winner,
			Reason:     ev.Reason,
			Score:      ev.Score,
			Captures:   ev.CaptureCount,
			DotsLeft:   ev.DotsLeft,
			Players:    ev.Players,
			Duration:   ev.Duration,
			FinishedAt: time.Now(),
		})
	})
	return s
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseStats }

func (s *StatsSystem) Update(_ time.Duration) {
	for _, rec := range s.pending {
		if err := s.store.RecordMatch(rec); err != nil {
			s.log.Warn("統計寫入失敗",
				zap.String("room", rec.RoomCode),
				zap.Error(err),
			)
		}
	}
	s.pending = s.pending[:0]
}
