package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attnroulette/betledger/internal/domain"
)

// memStore is an in-memory SessionStore that serializes sessions the same way
// the real store does, so tests catch anything that does not survive a JSON
// round trip.
type memStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	saves    int
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string][]byte)}
}

func (m *memStore) Load(_ context.Context, userKey string) (*domain.LedgerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.sessions[userKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var s domain.LedgerSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.Markets == nil {
		s.Markets = make(map[int64]*domain.MarketState)
	}
	return &s, nil
}

func (m *memStore) Save(_ context.Context, session *domain.LedgerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	m.sessions[session.UserKey] = raw
	m.saves++
	return nil
}

func (m *memStore) ListUserKeys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestManagerCreatesFreshSession(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	err := mgr.View(ctx, "0xnew", func(l *Ledger) error {
		assert.Equal(t, 0, l.TotalBetsCount())
		assert.Equal(t, domain.DefaultChainID, l.Session().SelectedChain)
		return nil
	})
	require.NoError(t, err)
}

func TestManagerMutatePersists(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	err := mgr.Mutate(ctx, "0xabc", func(l *Ledger) error {
		l.RecordBet(testBet("a", 1, domain.SideYes, "1.0000", domain.BetStatusActive))
		return l.AddStake(1, domain.SideYes, "1.0000")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)

	// A second manager over the same store sees the persisted state.
	mgr2 := NewManager(store, testLogger())
	err = mgr2.View(ctx, "0xabc", func(l *Ledger) error {
		require.Equal(t, 1, l.TotalBetsCount())
		ms := l.MarketState(1)
		require.NotNil(t, ms)
		assert.Equal(t, "1.0000", ms.TotalYesBets)
		return nil
	})
	require.NoError(t, err)
}

func TestManagerViewDoesNotPersist(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	err := mgr.View(ctx, "0xabc", func(l *Ledger) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, store.saves)
}

func TestManagerMutateErrorDiscardsPartialChanges(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	require.NoError(t, mgr.Mutate(ctx, "0xabc", func(l *Ledger) error {
		l.RecordBet(testBet("a", 1, domain.SideYes, "1.0000", domain.BetStatusActive))
		return nil
	}))

	// The callback mutates before failing; nothing of it may survive, in
	// memory or in the store.
	boom := errors.New("boom")
	err := mgr.Mutate(ctx, "0xabc", func(l *Ledger) error {
		l.RecordBet(testBet("partial", 1, domain.SideNo, "2.0000", domain.BetStatusActive))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.saves)

	err = mgr.View(ctx, "0xabc", func(l *Ledger) error {
		assert.Equal(t, 1, l.TotalBetsCount())
		_, ok := l.Bet("partial")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestManagerMutateSaveFailureDiscardsChanges(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	store.saveErr = errors.New("connection reset")
	err := mgr.Mutate(ctx, "0xabc", func(l *Ledger) error {
		l.RecordBet(testBet("a", 1, domain.SideYes, "1.0000", domain.BetStatusActive))
		return nil
	})
	require.Error(t, err)

	// A later successful mutation must not smuggle the failed one through.
	store.saveErr = nil
	require.NoError(t, mgr.Mutate(ctx, "0xabc", func(l *Ledger) error {
		l.RecordBet(testBet("b", 1, domain.SideNo, "2.0000", domain.BetStatusActive))
		return nil
	}))

	err = mgr.View(ctx, "0xabc", func(l *Ledger) error {
		assert.Equal(t, 1, l.TotalBetsCount())
		_, ok := l.Bet("a")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestManagerSnapshotIsDeepCopy(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	require.NoError(t, mgr.Mutate(ctx, "0xabc", func(l *Ledger) error {
		l.RecordBet(testBet("a", 1, domain.SideYes, "1.0000", domain.BetStatusActive))
		return nil
	}))

	snap, err := mgr.Snapshot(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, snap.Bets, 1)

	// Mutating the snapshot must not leak into the live session.
	snap.Bets[0].Status = domain.BetStatusLost
	err = mgr.View(ctx, "0xabc", func(l *Ledger) error {
		bet, ok := l.Bet("a")
		require.True(t, ok)
		assert.Equal(t, domain.BetStatusActive, bet.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestManagerUserKeys(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	require.NoError(t, mgr.Mutate(ctx, "0xaaa", func(l *Ledger) error { return nil }))
	require.NoError(t, mgr.Mutate(ctx, "0xbbb", func(l *Ledger) error { return nil }))

	keys, err := mgr.UserKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, keys)
}

func TestManagerConcurrentMutations(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, testLogger())
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = mgr.Mutate(ctx, "0xabc", func(l *Ledger) error {
				l.RecordBet(testBet(string(rune('a'+i)), 1, domain.SideYes, "1.0000", domain.BetStatusActive))
				return nil
			})
		}(i)
	}
	wg.Wait()

	err := mgr.View(ctx, "0xabc", func(l *Ledger) error {
		assert.Equal(t, n, l.TotalBetsCount())
		return nil
	})
	require.NoError(t, err)
}
