package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/attnroulette/betledger/internal/domain"
)

// SessionReader defines the ledger access the session handler needs. It is
// declared locally so the handler package does not depend on the concrete
// ledger implementation.
type SessionReader interface {
	Snapshot(ctx context.Context, userKey string) (*domain.LedgerSession, error)
	Bets(ctx context.Context, userKey string) ([]domain.Bet, error)
	BetsByMarket(ctx context.Context, userKey string, localMarketID int64) ([]domain.Bet, error)
	MarketView(ctx context.Context, userKey string, localMarketID int64) (*domain.MarketState, domain.PoolPercents, error)
}

// SessionHandler serves session snapshot and bet listing endpoints.
type SessionHandler struct {
	sessions SessionReader
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler with the given reader and logger.
func NewSessionHandler(sessions SessionReader, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logHandler(logger, "session"),
	}
}

// GetSession returns the complete ledger session for one user.
// GET /api/sessions/{user}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "missing user key")
		return
	}

	session, err := h.sessions.Snapshot(r.Context(), userKey)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "session snapshot failed",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// listBetsResponse wraps the bet list output with a count.
type listBetsResponse struct {
	Bets  []domain.Bet `json:"bets"`
	Total int          `json:"total"`
}

// ListBets returns the user's bets, newest first. An optional market query
// parameter restricts the list to one market.
// GET /api/sessions/{user}/bets?market=3
func (h *SessionHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "missing user key")
		return
	}

	var (
		bets []domain.Bet
		err  error
	)
	if raw := r.URL.Query().Get("market"); raw != "" {
		marketID, parseErr := parseInt64(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid market id")
			return
		}
		bets, err = h.sessions.BetsByMarket(r.Context(), userKey, marketID)
	} else {
		bets, err = h.sessions.Bets(r.Context(), userKey)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list bets failed",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets, Total: len(bets)})
}

// marketViewResponse joins a market's pool state with its display percents.
type marketViewResponse struct {
	Market   *domain.MarketState `json:"market"`
	Percents domain.PoolPercents `json:"percents"`
}

// GetMarket returns the tracked pool state and pool percents for one market.
// Unknown markets report an even 50/50 split with zero pools.
// GET /api/sessions/{user}/markets/{id}
func (h *SessionHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "missing user key")
		return
	}
	marketID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	state, percents, err := h.sessions.MarketView(r.Context(), userKey, marketID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "market view failed",
			slog.String("user_key", userKey),
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load market")
		return
	}

	writeJSON(w, http.StatusOK, marketViewResponse{Market: state, Percents: percents})
}
