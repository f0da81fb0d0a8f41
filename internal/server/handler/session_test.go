package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attnroulette/betledger/internal/domain"
)

type stubSessions struct {
	session  *domain.LedgerSession
	bets     []domain.Bet
	byMarket []domain.Bet
	market   *domain.MarketState
	percents domain.PoolPercents
	err      error
}

func (s *stubSessions) Snapshot(context.Context, string) (*domain.LedgerSession, error) {
	return s.session, s.err
}

func (s *stubSessions) Bets(context.Context, string) ([]domain.Bet, error) {
	return s.bets, s.err
}

func (s *stubSessions) BetsByMarket(context.Context, string, int64) ([]domain.Bet, error) {
	return s.byMarket, s.err
}

func (s *stubSessions) MarketView(context.Context, string, int64) (*domain.MarketState, domain.PoolPercents, error) {
	return s.market, s.percents, s.err
}

func sessionMux(sessions SessionReader) *http.ServeMux {
	h := NewSessionHandler(sessions, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions/{user}", h.GetSession)
	mux.HandleFunc("GET /api/sessions/{user}/bets", h.ListBets)
	mux.HandleFunc("GET /api/sessions/{user}/markets/{id}", h.GetMarket)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetSessionEndpoint(t *testing.T) {
	stub := &stubSessions{session: domain.NewLedgerSession("0xuser")}
	rec := get(t, sessionMux(stub), "/api/sessions/0xuser")
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.LedgerSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "0xuser", got.UserKey)
	assert.Equal(t, domain.DefaultChainID, got.SelectedChain)
}

func TestListBetsEndpoint(t *testing.T) {
	all := []domain.Bet{
		{ID: "b2", MarketID: 2}, {ID: "b1", MarketID: 1},
	}
	stub := &stubSessions{bets: all, byMarket: all[:1]}
	mux := sessionMux(stub)

	t.Run("all bets", func(t *testing.T) {
		rec := get(t, mux, "/api/sessions/0xuser/bets")
		require.Equal(t, http.StatusOK, rec.Code)

		var body listBetsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Total)
		assert.Equal(t, "b2", body.Bets[0].ID)
	})

	t.Run("filtered by market", func(t *testing.T) {
		rec := get(t, mux, "/api/sessions/0xuser/bets?market=2")
		require.Equal(t, http.StatusOK, rec.Code)

		var body listBetsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Total)
	})

	t.Run("bad market id", func(t *testing.T) {
		rec := get(t, mux, "/api/sessions/0xuser/bets?market=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetMarketEndpoint(t *testing.T) {
	stub := &stubSessions{
		market: &domain.MarketState{
			LocalMarketID: 3,
			TotalYesBets:  "3.0000",
			TotalNoBets:   "1.0000",
		},
		percents: domain.PoolPercents{Yes: 75, No: 25},
	}
	rec := get(t, sessionMux(stub), "/api/sessions/0xuser/markets/3")
	require.Equal(t, http.StatusOK, rec.Code)

	var body marketViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Market)
	assert.Equal(t, "3.0000", body.Market.TotalYesBets)
	assert.Equal(t, 75, body.Percents.Yes)
}

func TestSessionEndpointFailures(t *testing.T) {
	stub := &stubSessions{err: errors.New("store down")}
	mux := sessionMux(stub)

	assert.Equal(t, http.StatusInternalServerError, get(t, mux, "/api/sessions/0xuser").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, mux, "/api/sessions/0xuser/bets").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, mux, "/api/sessions/0xuser/markets/3").Code)
}
