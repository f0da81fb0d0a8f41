// Package reconcile drives active bets to their terminal status by polling
// on-chain market state. The ledger records bets optimistically at placement
// time; this job is the only component that moves them to won or lost.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/ledger"
)

const (
	defaultInterval  = 30 * time.Second
	defaultIntentTTL = 10 * time.Minute
)

// Config tunes the reconciliation loop.
type Config struct {
	// Interval between full reconciliation sweeps.
	Interval time.Duration
	// IntentTTL is how long an unresolved bet intent may linger before it is
	// treated as abandoned and discarded.
	IntentTTL time.Duration
}

// Reconciler periodically compares every user's active bets against the
// resolved state of their markets and settles them.
type Reconciler struct {
	ledger   *ledger.Manager
	chain    domain.ChainClient
	bus      domain.SignalBus
	audit    domain.AuditStore
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
}

// New creates a Reconciler. bus and audit may be nil.
func New(cfg Config, mgr *ledger.Manager, chain domain.ChainClient, bus domain.SignalBus, audit domain.AuditStore, logger *slog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = defaultIntentTTL
	}
	return &Reconciler{
		ledger:   mgr,
		chain:    chain,
		bus:      bus,
		audit:    audit,
		interval: cfg.Interval,
		ttl:      cfg.IntentTTL,
		logger:   logger.With(slog.String("component", "reconciler")),
	}
}

// Run sweeps until ctx is cancelled. The first sweep happens immediately.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Sweep(ctx); err != nil {
			r.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep reconciles every known user once.
func (r *Reconciler) Sweep(ctx context.Context) error {
	keys, err := r.ledger.UserKeys(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list users: %w", err)
	}
	for _, key := range keys {
		if err := r.reconcileUser(ctx, key); err != nil {
			r.logger.WarnContext(ctx, "user reconcile failed",
				slog.String("user_key", key),
				slog.String("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// pendingMarket groups the active bets that ride on one on-chain market.
type pendingMarket struct {
	localID int64
	chainID int64
}

func (r *Reconciler) reconcileUser(ctx context.Context, userKey string) error {
	var (
		markets      []pendingMarket
		staleIntents []string
	)
	err := r.ledger.View(ctx, userKey, func(l *ledger.Ledger) error {
		seen := make(map[int64]bool)
		for _, bet := range l.Bets() {
			if bet.Status != domain.BetStatusActive && bet.Status != domain.BetStatusPending {
				continue
			}
			state := l.MarketState(bet.MarketID)
			if state == nil || state.BlockchainMarketID == nil {
				continue
			}
			if seen[bet.MarketID] {
				continue
			}
			seen[bet.MarketID] = true
			markets = append(markets, pendingMarket{localID: bet.MarketID, chainID: *state.BlockchainMarketID})
		}
		cutoff := time.Now().Add(-r.ttl)
		for _, intent := range l.OpenIntents() {
			if intent.CreatedAt.Before(cutoff) {
				staleIntents = append(staleIntents, intent.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, pm := range markets {
		market, err := r.chain.GetMarket(ctx, pm.chainID)
		if err != nil {
			r.logger.WarnContext(ctx, "market lookup failed",
				slog.Int64("market_id", pm.chainID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !market.Exists || !market.Resolved {
			continue
		}
		if err := r.settleMarket(ctx, userKey, pm.localID, market.Outcome); err != nil {
			return err
		}
	}

	if len(staleIntents) > 0 {
		if err := r.discardIntents(ctx, userKey, staleIntents); err != nil {
			return err
		}
	}
	return nil
}

// settleMarket moves every unresolved bet on the market to won or lost based
// on the chain outcome and emits one event per settled bet.
func (r *Reconciler) settleMarket(ctx context.Context, userKey string, localMarketID int64, outcome domain.Side) error {
	type settled struct {
		betID  string
		status domain.BetStatus
	}
	var changes []settled

	err := r.ledger.Mutate(ctx, userKey, func(l *ledger.Ledger) error {
		for _, bet := range l.BetsByMarket(localMarketID) {
			if bet.Status != domain.BetStatusActive && bet.Status != domain.BetStatusPending {
				continue
			}
			status := domain.BetStatusLost
			if bet.Side == outcome {
				status = domain.BetStatusWon
			}
			if l.UpdateBetStatus(bet.ID, status) {
				changes = append(changes, settled{betID: bet.ID, status: status})
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile: settle market %d for %q: %w", localMarketID, userKey, err)
	}

	for _, c := range changes {
		r.emit(ctx, "bet_settled", map[string]any{
			"user_key":  userKey,
			"bet_id":    c.betID,
			"market_id": localMarketID,
			"status":    string(c.status),
			"outcome":   string(outcome),
		})
	}
	return nil
}

func (r *Reconciler) discardIntents(ctx context.Context, userKey string, ids []string) error {
	err := r.ledger.Mutate(ctx, userKey, func(l *ledger.Ledger) error {
		for _, id := range ids {
			l.ResolveIntent(id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile: discard intents for %q: %w", userKey, err)
	}
	for _, id := range ids {
		r.logger.InfoContext(ctx, "discarded stale bet intent",
			slog.String("user_key", userKey),
			slog.String("intent_id", id),
		)
		r.emit(ctx, "intent_discarded", map[string]any{
			"user_key":  userKey,
			"intent_id": id,
		})
	}
	return nil
}

func (r *Reconciler) emit(ctx context.Context, event string, detail map[string]any) {
	if r.bus != nil {
		payload, _ := json.Marshal(map[string]any{"event": event, "detail": detail})
		if err := r.bus.Publish(ctx, "ledger", payload); err != nil {
			r.logger.WarnContext(ctx, "publish event failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.audit != nil {
		if err := r.audit.Log(ctx, event, detail); err != nil {
			r.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
