package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attnroulette/betledger/internal/chain"
	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/ledger"
	"github.com/attnroulette/betledger/internal/money"
	"github.com/attnroulette/betledger/internal/notify"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.LedgerSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*domain.LedgerSession)}
}

func (m *memSessionStore) Load(_ context.Context, userKey string) (*domain.LedgerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *memSessionStore) Save(_ context.Context, session *domain.LedgerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UserKey] = session
	return nil
}

func (m *memSessionStore) ListUserKeys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// fakeChain is a scriptable domain.ChainClient.
type fakeChain struct {
	mu      sync.Mutex
	chainID int64

	balance string

	markets map[int64]domain.ChainMarket

	createErr      error
	createdMarkets int
	nextMarketID   int64

	placeErr    error
	placedBets  int
	nextBetID   int64
	switchErr   error
	resolveErr  error
	claimErr    error
	winnings    string
	claimedBets []int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:      domain.DefaultChainID,
		balance:      "10.0000",
		markets:      make(map[int64]domain.ChainMarket),
		nextMarketID: 100,
		nextBetID:    500,
		winnings:     "1.8000",
	}
}

func (f *fakeChain) GetBalance(_ context.Context, _ string) (string, error) {
	return f.balance, nil
}

func (f *fakeChain) SwitchNetwork(_ context.Context, chainID int64) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.mu.Lock()
	f.chainID = chainID
	f.mu.Unlock()
	return nil
}

func (f *fakeChain) ChainID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID
}

func (f *fakeChain) CreateMarket(_ context.Context, question string, _ int64) (domain.CreateMarketResult, error) {
	if f.createErr != nil {
		return domain.CreateMarketResult{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextMarketID
	f.nextMarketID++
	f.createdMarkets++
	f.markets[id] = domain.ChainMarket{ID: id, Question: question, Exists: true}
	return domain.CreateMarketResult{TxHash: "0xcreate", MarketID: id}, nil
}

func (f *fakeChain) PlaceBet(_ context.Context, marketID int64, side domain.Side, amount string) (domain.PlaceBetResult, error) {
	if f.placeErr != nil {
		return domain.PlaceBetResult{}, f.placeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextBetID
	f.nextBetID++
	f.placedBets++
	return domain.PlaceBetResult{TxHash: "0xbet", BetID: id}, nil
}

func (f *fakeChain) ResolveMarket(_ context.Context, marketID int64, outcome domain.Side) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.markets[marketID]
	m.Resolved = true
	m.Outcome = outcome
	f.markets[marketID] = m
	return "0xresolve", nil
}

func (f *fakeChain) ClaimWinnings(_ context.Context, betID int64) (string, error) {
	if f.claimErr != nil {
		return "", f.claimErr
	}
	f.mu.Lock()
	f.claimedBets = append(f.claimedBets, betID)
	f.mu.Unlock()
	return "0xclaim", nil
}

func (f *fakeChain) GetMarket(_ context.Context, marketID int64) (domain.ChainMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markets[marketID], nil
}

func (f *fakeChain) GetMarketOdds(_ context.Context, marketID int64) (domain.PoolPercents, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.markets[marketID]
	return money.PoolPercents(orZero(m.TotalYesStake), orZero(m.TotalNoStake))
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func (f *fakeChain) GetBet(_ context.Context, betID int64) (domain.ChainBet, error) {
	return domain.ChainBet{ID: betID}, nil
}

func (f *fakeChain) CalculateWinnings(_ context.Context, _ int64) (string, error) {
	return f.winnings, nil
}

func (f *fakeChain) GetUserBets(_ context.Context, _ string) ([]int64, error) {
	return nil, nil
}

// fakeBus records published events.
type fakeBus struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	var envelope struct {
		Event string `json:"event"`
	}
	_ = json.Unmarshal(payload, &envelope)
	f.mu.Lock()
	f.events = append(f.events, envelope.Event)
	f.mu.Unlock()
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

// fakeAudit records logged events.
type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAudit) Log(_ context.Context, event string, detail map[string]any) error {
	f.mu.Lock()
	f.entries = append(f.entries, domain.AuditEntry{Event: event, Detail: detail, CreatedAt: time.Now()})
	f.mu.Unlock()
	return nil
}

func (f *fakeAudit) ListBefore(_ context.Context, _ time.Time, _ int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeAudit) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// fakeBalances is a map-backed domain.BalanceCache.
type fakeBalances struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{data: make(map[string]string)}
}

func (f *fakeBalances) Set(_ context.Context, address, balance string) error {
	f.mu.Lock()
	f.data[address] = balance
	f.mu.Unlock()
	return nil
}

func (f *fakeBalances) Get(_ context.Context, address string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[address]
	if !ok {
		return "", domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBalances) Invalidate(_ context.Context, address string) error {
	f.mu.Lock()
	delete(f.data, address)
	f.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc      *BettingService
	mgr      *ledger.Manager
	chain    *fakeChain
	bus      *fakeBus
	audit    *fakeAudit
	balances *fakeBalances
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	mgr := ledger.NewManager(newMemSessionStore(), logger)
	fc := newFakeChain()
	bus := &fakeBus{}
	audit := &fakeAudit{}
	balances := newFakeBalances()
	registry := chain.DefaultRegistry("0xmonad", "0xeth")
	notifier := notify.NewNotifier(nil, nil, logger)

	svc := NewBettingService(mgr, fc, registry, balances, bus, audit, notifier, logger)
	return &fixture{svc: svc, mgr: mgr, chain: fc, bus: bus, audit: audit, balances: balances}
}

const testUser = "0xuser"

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPlaceBetHappyPath(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	bet, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
		UserKey:        testUser,
		Address:        "0xaddr",
		LocalMarketID:  3,
		MarketQuestion: "Will it rain tomorrow?",
		Side:           domain.SideYes,
		Amount:         "0.5",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BetStatusActive, bet.Status)
	assert.Equal(t, "0.5000", bet.Amount)
	assert.Equal(t, "0.9000", bet.PotentialWinnings)
	assert.Equal(t, "Monad Testnet", bet.ChainName)
	assert.Equal(t, "0xbet", bet.TxHash)
	require.NotNil(t, bet.BlockchainMarketID)
	assert.Equal(t, int64(100), *bet.BlockchainMarketID)

	// The market was created lazily, exactly once.
	assert.Equal(t, 1, fx.chain.createdMarkets)

	err = fx.mgr.View(ctx, testUser, func(l *ledger.Ledger) error {
		require.Equal(t, 1, l.TotalBetsCount())

		ms := l.MarketState(3)
		require.NotNil(t, ms)
		assert.Equal(t, "0.5000", ms.TotalYesBets)
		assert.Equal(t, "0.0000", ms.TotalNoBets)
		assert.True(t, ms.Created)
		assert.Equal(t, []string{bet.ID}, ms.BetIDs)

		// No intent left open after a resolved outcome.
		assert.Empty(t, l.OpenIntents())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"market_created", "bet_placed"}, fx.bus.published())
}

func TestPlaceBetSecondBetReusesMarket(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req := PlaceBetRequest{
		UserKey: testUser, LocalMarketID: 3,
		Side: domain.SideYes, Amount: "0.5",
	}
	_, err := fx.svc.PlaceBet(ctx, req)
	require.NoError(t, err)

	req.Side = domain.SideNo
	req.Amount = "1.0"
	_, err = fx.svc.PlaceBet(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.chain.createdMarkets)
	assert.Equal(t, 2, fx.chain.placedBets)

	err = fx.mgr.View(ctx, testUser, func(l *ledger.Ledger) error {
		ms := l.MarketState(3)
		assert.Equal(t, "0.5000", ms.TotalYesBets)
		assert.Equal(t, "1.0000", ms.TotalNoBets)

		p, perr := l.PoolPercents(3)
		require.NoError(t, perr)
		assert.Equal(t, 100, p.Yes+p.No)
		return nil
	})
	require.NoError(t, err)
}

func TestPlaceBetValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	t.Run("zero amount", func(t *testing.T) {
		_, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
			UserKey: testUser, LocalMarketID: 1, Side: domain.SideYes, Amount: "0",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
			UserKey: testUser, LocalMarketID: 1, Side: domain.SideYes, Amount: "-1",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("invalid side", func(t *testing.T) {
		_, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
			UserKey: testUser, LocalMarketID: 1, Side: "MAYBE", Amount: "1",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSide)
	})

	// Nothing reached the chain.
	assert.Equal(t, 0, fx.chain.placedBets)
	assert.Equal(t, 0, fx.chain.createdMarkets)
}

func TestPlaceBetInsufficientBalance(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	bal := "1.0000"
	require.NoError(t, fx.mgr.Mutate(ctx, testUser, func(l *ledger.Ledger) error {
		return l.SetOptimisticBalance(&bal)
	}))

	_, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
		UserKey: testUser, LocalMarketID: 1, Side: domain.SideYes, Amount: "5",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 0, fx.chain.placedBets)
}

func TestPlaceBetDebitsOptimisticBalance(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	bal := "2.0000"
	require.NoError(t, fx.mgr.Mutate(ctx, testUser, func(l *ledger.Ledger) error {
		return l.SetOptimisticBalance(&bal)
	}))

	_, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
		UserKey: testUser, LocalMarketID: 1, Side: domain.SideYes, Amount: "0.75",
	})
	require.NoError(t, err)

	err = fx.mgr.View(ctx, testUser, func(l *ledger.Ledger) error {
		require.NotNil(t, l.OptimisticBalance())
		assert.Equal(t, "1.2500", *l.OptimisticBalance())
		return nil
	})
	require.NoError(t, err)
}

func TestPlaceBetChainFailureLeavesLedgerClean(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.chain.placeErr = errFake("MetaMask: user rejected the request")

	_, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
		UserKey: testUser, LocalMarketID: 1, Side: domain.SideYes, Amount: "1",
	})
	assert.ErrorIs(t, err, domain.ErrUserRejected)

	perr := fx.mgr.View(ctx, testUser, func(l *ledger.Ledger) error {
		assert.Equal(t, 0, l.TotalBetsCount())
		assert.Empty(t, l.OpenIntents(), "intent discarded once the outcome is known")

		// Market creation succeeded before the bet failed; pools stay zero.
		ms := l.MarketState(1)
		require.NotNil(t, ms)
		assert.Equal(t, "0.0000", ms.TotalYesBets)
		return nil
	})
	require.NoError(t, perr)
}

func TestClaimWinnings(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	bal := "1.0000"
	require.NoError(t, fx.mgr.Mutate(ctx, testUser, func(l *ledger.Ledger) error {
		l.RecordBet(domain.Bet{
			ID: "bet_1", MarketID: 1, ChainBetID: "500",
			Side: domain.SideYes, Amount: "1.0000",
			Status: domain.BetStatusWon, Timestamp: time.Now(),
		})
		return l.SetOptimisticBalance(&bal)
	}))

	txHash, err := fx.svc.ClaimWinnings(ctx, testUser, "bet_1")
	require.NoError(t, err)
	assert.Equal(t, "0xclaim", txHash)
	assert.Equal(t, []int64{500}, fx.chain.claimedBets)

	err = fx.mgr.View(ctx, testUser, func(l *ledger.Ledger) error {
		bet, ok := l.Bet("bet_1")
		require.True(t, ok)
		assert.Equal(t, domain.BetStatusClaimed, bet.Status)
		assert.Equal(t, "2.8000", *l.OptimisticBalance())
		return nil
	})
	require.NoError(t, err)

	assert.Contains(t, fx.bus.published(), "winnings_claimed")
}

func TestClaimWinningsGuards(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.mgr.Mutate(ctx, testUser, func(l *ledger.Ledger) error {
		l.RecordBet(domain.Bet{
			ID: "bet_active", MarketID: 1, ChainBetID: "501",
			Side: domain.SideYes, Amount: "1.0000",
			Status: domain.BetStatusActive, Timestamp: time.Now(),
		})
		return nil
	}))

	t.Run("unknown bet", func(t *testing.T) {
		_, err := fx.svc.ClaimWinnings(ctx, testUser, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("not yet won", func(t *testing.T) {
		_, err := fx.svc.ClaimWinnings(ctx, testUser, "bet_active")
		assert.ErrorIs(t, err, domain.ErrNotClaimable)
	})

	assert.Empty(t, fx.chain.claimedBets)
}

func TestRefreshBalance(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	t.Run("cache miss falls back to chain", func(t *testing.T) {
		balance, err := fx.svc.RefreshBalance(ctx, testUser, "0xaddr")
		require.NoError(t, err)
		assert.Equal(t, "10.0000", balance)

		// The read was cached.
		cached, err := fx.balances.Get(ctx, "0xaddr")
		require.NoError(t, err)
		assert.Equal(t, "10.0000", cached)
	})

	t.Run("session balance is updated", func(t *testing.T) {
		err := fx.mgr.View(ctx, testUser, func(l *ledger.Ledger) error {
			require.NotNil(t, l.OptimisticBalance())
			assert.Equal(t, "10.0000", *l.OptimisticBalance())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("cache hit skips the chain", func(t *testing.T) {
		require.NoError(t, fx.balances.Set(ctx, "0xaddr", "7.5000"))
		fx.chain.balance = "999.0000"

		balance, err := fx.svc.RefreshBalance(ctx, testUser, "0xaddr")
		require.NoError(t, err)
		assert.Equal(t, "7.5000", balance)
	})
}

func TestSelectChain(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	t.Run("unsupported chain", func(t *testing.T) {
		err := fx.svc.SelectChain(ctx, testUser, 137)
		assert.ErrorIs(t, err, domain.ErrWrongNetwork)
	})

	t.Run("supported chain clears the balance", func(t *testing.T) {
		bal := "3.0000"
		require.NoError(t, fx.mgr.Mutate(ctx, testUser, func(l *ledger.Ledger) error {
			return l.SetOptimisticBalance(&bal)
		}))

		require.NoError(t, fx.svc.SelectChain(ctx, testUser, chain.EthereumMainnetID))
		assert.Equal(t, chain.EthereumMainnetID, fx.chain.ChainID())

		err := fx.mgr.View(ctx, testUser, func(l *ledger.Ledger) error {
			assert.Equal(t, chain.EthereumMainnetID, l.Session().SelectedChain)
			assert.Nil(t, l.OptimisticBalance())
			return nil
		})
		require.NoError(t, err)
	})
}

func TestMarketOdds(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.chain.markets[42] = domain.ChainMarket{
		ID: 42, Exists: true,
		TotalYesStake: "3.0000", TotalNoStake: "7.0000",
	}

	odds, err := fx.svc.MarketOdds(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.PoolPercents{Yes: 30, No: 70}, odds)

	// Unknown markets read as empty pools, an even split.
	odds, err = fx.svc.MarketOdds(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, domain.PoolPercents{Yes: 50, No: 50}, odds)
}

func TestResolveMarket(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	t.Run("unknown market", func(t *testing.T) {
		_, err := fx.svc.ResolveMarket(ctx, testUser, 9, domain.SideYes)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("resolves a created market", func(t *testing.T) {
		_, err := fx.svc.PlaceBet(ctx, PlaceBetRequest{
			UserKey: testUser, LocalMarketID: 9, Side: domain.SideYes, Amount: "1",
		})
		require.NoError(t, err)

		txHash, err := fx.svc.ResolveMarket(ctx, testUser, 9, domain.SideYes)
		require.NoError(t, err)
		assert.Equal(t, "0xresolve", txHash)

		m := fx.chain.markets[100]
		assert.True(t, m.Resolved)
		assert.Equal(t, domain.SideYes, m.Outcome)
	})
}

// errFake builds an error whose text drives substring classification.
type errFake string

func (e errFake) Error() string { return string(e) }
