package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/ledger"
)

// SessionService exposes read-only views over per-user ledger sessions for
// the HTTP layer.
type SessionService struct {
	ledger *ledger.Manager
	logger *slog.Logger
}

// NewSessionService creates a SessionService over the given ledger manager.
func NewSessionService(mgr *ledger.Manager, logger *slog.Logger) *SessionService {
	return &SessionService{
		ledger: mgr,
		logger: logger.With(slog.String("component", "session_service")),
	}
}

// Snapshot returns a deep copy of the user's entire session.
func (s *SessionService) Snapshot(ctx context.Context, userKey string) (*domain.LedgerSession, error) {
	return s.ledger.Snapshot(ctx, userKey)
}

// Bets returns the user's bets, newest first.
func (s *SessionService) Bets(ctx context.Context, userKey string) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.ledger.View(ctx, userKey, func(l *ledger.Ledger) error {
		bets = l.Bets()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: bets for %q: %w", userKey, err)
	}
	return bets, nil
}

// BetsByMarket returns the user's bets on one market, newest first.
func (s *SessionService) BetsByMarket(ctx context.Context, userKey string, localMarketID int64) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.ledger.View(ctx, userKey, func(l *ledger.Ledger) error {
		bets = l.BetsByMarket(localMarketID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: market bets for %q: %w", userKey, err)
	}
	return bets, nil
}

// MarketView returns the tracked pool state and display percents for one
// market. A market with no recorded bets reports zero pools and an even
// 50/50 split.
func (s *SessionService) MarketView(ctx context.Context, userKey string, localMarketID int64) (*domain.MarketState, domain.PoolPercents, error) {
	var (
		state    *domain.MarketState
		percents domain.PoolPercents
	)
	err := s.ledger.View(ctx, userKey, func(l *ledger.Ledger) error {
		state = l.MarketState(localMarketID)
		var err error
		percents, err = l.PoolPercents(localMarketID)
		return err
	})
	if err != nil {
		return nil, domain.PoolPercents{}, fmt.Errorf("session: market view for %q: %w", userKey, err)
	}
	if state == nil {
		state = &domain.MarketState{
			LocalMarketID: localMarketID,
			TotalYesBets:  "0.0000",
			TotalNoBets:   "0.0000",
		}
	}
	return state, percents, nil
}
