package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/attnroulette/betledger/internal/chain"
	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/service"
)

// BettingAPI defines the methods the bet handler requires from the betting
// service.
type BettingAPI interface {
	PlaceBet(ctx context.Context, req service.PlaceBetRequest) (domain.Bet, error)
	ClaimWinnings(ctx context.Context, userKey, betID string) (string, error)
	RefreshBalance(ctx context.Context, userKey, address string) (string, error)
	SelectChain(ctx context.Context, userKey string, chainID int64) error
	ResolveMarket(ctx context.Context, userKey string, localMarketID int64, outcome domain.Side) (string, error)
	MarketOdds(ctx context.Context, chainMarketID int64) (domain.PoolPercents, error)
}

// BetHandler serves bet placement, claim, balance, and chain endpoints.
type BetHandler struct {
	betting BettingAPI
	logger  *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(betting BettingAPI, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		betting: betting,
		logger:  logHandler(logger, "bet"),
	}
}

// placeBetRequest is the JSON body for POST /api/sessions/{user}/bets.
type placeBetRequest struct {
	Address        string                 `json:"address"`
	MarketID       int64                  `json:"market_id"`
	MarketQuestion string                 `json:"market_question"`
	Side           string                 `json:"side"`
	Amount         string                 `json:"amount"`
	Social         *domain.SocialSnapshot `json:"social,omitempty"`
}

// PlaceBet places a bet for the user and returns the recorded bet.
// POST /api/sessions/{user}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "missing user key")
		return
	}

	var body placeBetRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, err := h.betting.PlaceBet(r.Context(), service.PlaceBetRequest{
		UserKey:        userKey,
		Address:        body.Address,
		LocalMarketID:  body.MarketID,
		MarketQuestion: body.MarketQuestion,
		Side:           domain.Side(body.Side),
		Amount:         body.Amount,
		Social:         body.Social,
	})
	if err != nil {
		h.writeBetError(w, r, userKey, err)
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// claimResponse carries the claim transaction hash and payout.
type claimResponse struct {
	TxHash string `json:"tx_hash"`
}

// ClaimWinnings claims the payout for a won bet.
// POST /api/sessions/{user}/bets/{id}/claim
func (h *BetHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	betID := pathParam(r, "id")
	if userKey == "" || betID == "" {
		writeError(w, http.StatusBadRequest, "missing user key or bet id")
		return
	}

	txHash, err := h.betting.ClaimWinnings(r.Context(), userKey, betID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bet not found")
			return
		}
		if errors.Is(err, domain.ErrNotClaimable) {
			writeError(w, http.StatusConflict, "bet is not claimable")
			return
		}
		h.writeBetError(w, r, userKey, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{TxHash: txHash})
}

// balanceResponse carries a refreshed on-chain balance.
type balanceResponse struct {
	Balance string `json:"balance"`
}

// refreshBalanceRequest is the JSON body for the balance refresh endpoint.
type refreshBalanceRequest struct {
	Address string `json:"address"`
}

// RefreshBalance re-reads the user's on-chain balance and stores it as the
// session's optimistic balance.
// POST /api/sessions/{user}/balance/refresh
func (h *BetHandler) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "missing user key")
		return
	}

	var body refreshBalanceRequest
	if err := decodeJSON(r, &body); err != nil || body.Address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	balance, err := h.betting.RefreshBalance(r.Context(), userKey, body.Address)
	if err != nil {
		h.writeBetError(w, r, userKey, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

// selectChainRequest is the JSON body for the chain selection endpoint.
type selectChainRequest struct {
	ChainID int64 `json:"chain_id"`
}

// SelectChain switches the user's session to another supported chain.
// POST /api/sessions/{user}/chain
func (h *BetHandler) SelectChain(w http.ResponseWriter, r *http.Request) {
	userKey := pathParam(r, "user")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "missing user key")
		return
	}

	var body selectChainRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.betting.SelectChain(r.Context(), userKey, body.ChainID); err != nil {
		if errors.Is(err, domain.ErrWrongNetwork) {
			writeError(w, http.StatusBadRequest, "unsupported chain")
			return
		}
		h.writeBetError(w, r, userKey, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chain_id": body.ChainID})
}

// resolveMarketRequest is the JSON body for the market resolution endpoint.
type resolveMarketRequest struct {
	Outcome string `json:"outcome"`
}

// ResolveMarket resolves a market with the given outcome.
// POST /api/sessions/{user}/markets/{id}/resolve
func (h *BetHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
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

	var body resolveMarketRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome := domain.Side(body.Outcome)
	if !outcome.Valid() {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}

	txHash, err := h.betting.ResolveMarket(r.Context(), userKey, marketID, outcome)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.writeBetError(w, r, userKey, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{TxHash: txHash})
}

// MarketOdds returns the live on-chain pool split for a market, addressed by
// its blockchain market id.
// GET /api/markets/{id}/odds
func (h *BetHandler) MarketOdds(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	odds, err := h.betting.MarketOdds(r.Context(), marketID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "market odds failed",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, chain.UserMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, odds)
}

// writeBetError maps service errors onto HTTP statuses and the short
// user-facing message taxonomy.
func (h *BetHandler) writeBetError(w http.ResponseWriter, r *http.Request, userKey string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSide), errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, chain.UserMessage(err))
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, chain.UserMessage(err))
	case errors.Is(err, domain.ErrUserRejected):
		writeError(w, http.StatusConflict, chain.UserMessage(err))
	case errors.Is(err, domain.ErrWrongNetwork):
		writeError(w, http.StatusBadRequest, chain.UserMessage(err))
	case errors.Is(err, domain.ErrReverted):
		writeError(w, http.StatusUnprocessableEntity, chain.UserMessage(err))
	default:
		h.logger.ErrorContext(r.Context(), "bet operation failed",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, chain.UserMessage(err))
	}
}
