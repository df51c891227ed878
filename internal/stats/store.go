// Package stats keeps local match statistics in an embedded badger
// store. Writes happen on the maintenance goroutine, never on a room
// tick path.
package stats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ghostrush/server/internal/proto"
)

// Storage keys
const (
	keySummary     = "summary"
	keyMatchPrefix = "match:"
)

// MatchRecord is one finished match.
type MatchRecord struct {
	RoomCode   string        `json:"room_code"`
	Winner     string        `json:"winner"`
	Reason     string        `json:"reason,omitempty"`
	Score      int           `json:"score"`
	Captures   int           `json:"captures"`
	DotsLeft   int           `json:"dots_left"`
	Players    int           `json:"players"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Summary is the running aggregate served on /stats.
type Summary struct {
	MatchesPlayed int           `json:"matches_played"`
	GhostWins     int           `json:"ghost_wins"`
	PacmanWins    int           `json:"pacman_wins"`
	Timeouts      int           `json:"timeouts"`
	Aborts        int           `json:"aborts"`
	BestScore     int           `json:"best_score"`
	TotalCaptures int           `json:"total_captures"`
	TotalPlayTime time.Duration `json:"total_play_time"`
}

// GhostWinRate returns the ghost side's win rate as a percentage.
func (s *Summary) GhostWinRate() float64 {
	if s.MatchesPlayed == 0 {
		return 0
	}
	return float64(s.GhostWins) / float64(s.MatchesPlayed) * 100
}

// Store wraps BadgerDB for persistent match statistics.
type Store struct {
	db *badger.DB
}

// Open opens or creates the store under path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logging is too chatty alongside zap

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open stats store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordMatch appends one match row and folds it into the summary.
func (s *Store) RecordMatch(rec MatchRecord) error {
	sum, err := s.Summary()
	if err != nil {
		return err
	}

	sum.MatchesPlayed++
	switch rec.Winner {
	case proto.WinnerGhosts:
		sum.GhostWins++
	case proto.WinnerPacman:
		sum.PacmanWins++
	default:
		sum.Aborts++
	}
	if rec.Reason == proto.ReasonTimeout {
		sum.Timeouts++
	}
	if rec.Score > sum.BestScore {
		sum.BestScore = rec.Score
	}
	sum.TotalCaptures += rec.Captures
	sum.TotalPlayTime += rec.Duration

	matchData, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	sumData, err := json.Marshal(sum)
	if err != nil {
		return err
	}

	// Zero-padded nanosecond key so lexical order is time order.
	matchKey := []byte(fmt.Sprintf("%s%020d:%s", keyMatchPrefix, rec.FinishedAt.UnixNano(), rec.RoomCode))

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(matchKey, matchData); err != nil {
			return err
		}
		return txn.Set([]byte(keySummary), sumData)
	})
}

// Summary loads the running aggregate, zero-valued when nothing has
// been recorded yet.
func (s *Store) Summary() (Summary, error) {
	var sum Summary

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySummary))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sum)
		})
	})

	return sum, err
}

// RecentMatches returns up to n match rows, newest first.
func (s *Store) RecentMatches(n int) ([]MatchRecord, error) {
	out := make([]MatchRecord, 0, n)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyMatchPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the highest key in the prefix range.
		seek := append([]byte(keyMatchPrefix), 0xFF)
		for it.Seek(seek); it.Valid() && len(out) < n; it.Next() {
			var rec MatchRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})

	return out, err
}
