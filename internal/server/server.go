package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/server/handler"
	"github.com/attnroulette/betledger/internal/server/middleware"
	"github.com/attnroulette/betledger/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateLimitWindow. Zero
	// disables rate limiting.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Sessions *handler.SessionHandler
	Bets     *handler.BetHandler
	Stats    *handler.StatsHandler
}

// Server is the headless HTTP + WebSocket API server for the bet ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Session endpoints.
	mux.HandleFunc("GET /api/sessions/{user}", handlers.Sessions.GetSession)
	mux.HandleFunc("GET /api/sessions/{user}/bets", handlers.Sessions.ListBets)
	mux.HandleFunc("GET /api/sessions/{user}/markets/{id}", handlers.Sessions.GetMarket)

	// Bet endpoints.
	mux.HandleFunc("POST /api/sessions/{user}/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("POST /api/sessions/{user}/bets/{id}/claim", handlers.Bets.ClaimWinnings)
	mux.HandleFunc("POST /api/sessions/{user}/balance/refresh", handlers.Bets.RefreshBalance)
	mux.HandleFunc("POST /api/sessions/{user}/chain", handlers.Bets.SelectChain)
	mux.HandleFunc("POST /api/sessions/{user}/markets/{id}/resolve", handlers.Bets.ResolveMarket)
	mux.HandleFunc("GET /api/markets/{id}/odds", handlers.Bets.MarketOdds)

	// Stats endpoints.
	mux.HandleFunc("GET /api/sessions/{user}/stats", handlers.Stats.GetUserStats)
	mux.HandleFunc("GET /api/leaderboard", handlers.Stats.GetLeaderboard)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply rate limiting when configured.
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
