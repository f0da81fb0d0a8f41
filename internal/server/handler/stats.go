package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/attnroulette/betledger/internal/domain"
)

// StatsAPI defines the methods the stats handler requires from the stats
// service.
type StatsAPI interface {
	UserStats(ctx context.Context, userKey string) (domain.UserStats, error)
	Leaderboard(ctx context.Context) ([]domain.UserStats, error)
}

// StatsHandler serves aggregate betting-record endpoints.
type StatsHandler struct {
	stats  StatsAPI
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler with the given service and logger.
func NewStatsHandler(stats StatsAPI, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logHandler(logger, "stats"),
	}
}

// GetUserStats returns one user's aggregate betting record.
// GET /api/sessions/{user}/stats
func (h *StatsHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "missing user key")
		return
	}

	stats, err := h.stats.UserStats(r.Context(), userKey)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "user stats failed",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// leaderboardResponse wraps the leaderboard with a count.
type leaderboardResponse struct {
	Leaders []domain.UserStats `json:"leaders"`
	Total   int                `json:"total"`
}

// GetLeaderboard returns every user's record ordered by performance.
// GET /api/leaderboard
func (h *StatsHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	leaders, err := h.stats.Leaderboard(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, leaderboardResponse{Leaders: leaders, Total: len(leaders)})
}
