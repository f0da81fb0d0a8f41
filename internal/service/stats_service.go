package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/ledger"
)

// StatsService computes per-user betting records and the leaderboard. All
// numbers are pure projections over ledger state, recomputed per call.
type StatsService struct {
	ledger *ledger.Manager
	logger *slog.Logger
}

// NewStatsService creates a StatsService over the given ledger manager.
func NewStatsService(mgr *ledger.Manager, logger *slog.Logger) *StatsService {
	return &StatsService{
		ledger: mgr,
		logger: logger.With(slog.String("component", "stats_service")),
	}
}

// UserStats returns one user's aggregate record.
func (s *StatsService) UserStats(ctx context.Context, userKey string) (domain.UserStats, error) {
	var stats domain.UserStats
	err := s.ledger.View(ctx, userKey, func(l *ledger.Ledger) error {
		var err error
		stats, err = l.Stats()
		return err
	})
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("stats: user %q: %w", userKey, err)
	}
	return stats, nil
}

// Leaderboard returns every known user's record ordered by resolved-bet
// performance: wins first, then win rate, then volume of bets.
func (s *StatsService) Leaderboard(ctx context.Context) ([]domain.UserStats, error) {
	keys, err := s.ledger.UserKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: leaderboard: %w", err)
	}

	out := make([]domain.UserStats, 0, len(keys))
	for _, key := range keys {
		stats, err := s.UserStats(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping user in leaderboard",
				slog.String("user_key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, stats)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].WinRate != out[j].WinRate {
			return out[i].WinRate > out[j].WinRate
		}
		return out[i].TotalBets > out[j].TotalBets
	})
	return out, nil
}
