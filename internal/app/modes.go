package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/attnroulette/betledger/internal/reconcile"
	"github.com/attnroulette/betledger/internal/server"
	"github.com/attnroulette/betledger/internal/server/handler"
	"github.com/attnroulette/betledger/internal/server/ws"
	"github.com/attnroulette/betledger/internal/service"
)

// ServeMode runs the HTTP + WebSocket API without the settlement loop. Useful
// when a dedicated reconcile instance is running elsewhere.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return waitGroup(g)
}

// ReconcileMode runs the settlement loop and, when enabled, the audit
// archiver, without the HTTP server.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting reconcile mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startReconciler(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	return waitGroup(g)
}

// FullMode runs the API server and the settlement loop in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startReconciler(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	return waitGroup(g)
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled by config")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	betting := service.NewBettingService(
		deps.Ledger, deps.ChainClient, deps.Registry,
		deps.BalanceCache, deps.SignalBus, deps.AuditStore,
		deps.Notifier, a.logger,
	)
	sessions := service.NewSessionService(deps.Ledger, a.logger)
	stats := service.NewStatsService(deps.Ledger, a.logger)

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Sessions: handler.NewSessionHandler(sessions, a.logger),
			Bets:     handler.NewBetHandler(betting, a.logger),
			Stats:    handler.NewStatsHandler(stats, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startReconciler adds the bet-settlement loop to the given errgroup.
func (a *App) startReconciler(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	rec := reconcile.New(
		reconcile.Config{
			Interval:  a.cfg.Reconcile.Interval.Duration,
			IntentTTL: a.cfg.Reconcile.IntentTTL.Duration,
		},
		deps.Ledger, deps.ChainClient, deps.SignalBus, deps.AuditStore,
		a.logger,
	)
	g.Go(func() error {
		return rec.Run(ctx)
	})
}

// startArchiver adds the periodic audit-log archiver when archiving is wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				archived, err := deps.Archiver.Run(ctx)
				if err != nil {
					a.logger.ErrorContext(ctx, "audit archive failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if archived > 0 {
					a.logger.InfoContext(ctx, "audit rows archived",
						slog.Int("rows", archived),
					)
				}
			}
		}
	})
}

// waitGroup blocks on the errgroup and filters out context cancellation,
// which is the normal shutdown path.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
