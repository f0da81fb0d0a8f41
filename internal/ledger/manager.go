package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/attnroulette/betledger/internal/domain"
)

// Manager partitions ledger state per user and serializes mutations. Exactly
// one goroutine mutates a given session at a time (the per-user mutation
// queue); the whole record is persisted after every mutation, matching the
// load-whole/rewrite-whole persistence contract.
type Manager struct {
	store  domain.SessionStore
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *domain.LedgerSession
}

// NewManager creates a Manager backed by the given session store.
func NewManager(store domain.SessionStore, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger.With(slog.String("component", "ledger")),
		sessions: make(map[string]*entry),
	}
}

// entryFor returns the cached entry for userKey, loading the persisted
// session (or initializing an empty one) on first access.
func (m *Manager) entryFor(ctx context.Context, userKey string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.sessions[userKey]
	if !ok {
		e = &entry{}
		m.sessions[userKey] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		s, err := m.store.Load(ctx, userKey)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s = domain.NewLedgerSession(userKey)
		case err != nil:
			return nil, fmt.Errorf("ledger: load session %q: %w", userKey, err)
		}
		e.session = s
	}
	return e, nil
}

// Mutate runs fn against a working copy of the user's ledger under the
// per-user lock, persists the copy in full, and only then swaps it in as the
// cached session. If fn or the save fails, the cached session and the store
// both keep the pre-mutation state.
func (m *Manager) Mutate(ctx context.Context, userKey string, fn func(*Ledger) error) error {
	e, err := m.entryFor(ctx, userKey)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working, err := cloneSession(e.session)
	if err != nil {
		return fmt.Errorf("ledger: clone session %q: %w", userKey, err)
	}
	if err := fn(New(working)); err != nil {
		return err
	}
	if err := m.store.Save(ctx, working); err != nil {
		return fmt.Errorf("ledger: save session %q: %w", userKey, err)
	}
	e.session = working
	return nil
}

// View runs fn against a read-only view of the user's ledger under the
// per-user lock. fn must not mutate the session.
func (m *Manager) View(ctx context.Context, userKey string, fn func(*Ledger) error) error {
	e, err := m.entryFor(ctx, userKey)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(New(e.session))
}

// Snapshot returns a deep copy of the user's session, safe to hand to
// serialization or presentation code without holding the session lock.
func (m *Manager) Snapshot(ctx context.Context, userKey string) (*domain.LedgerSession, error) {
	var snap *domain.LedgerSession
	err := m.View(ctx, userKey, func(l *Ledger) error {
		copied, err := cloneSession(l.Session())
		if err != nil {
			return fmt.Errorf("ledger: snapshot %q: %w", userKey, err)
		}
		snap = copied
		return nil
	})
	return snap, err
}

// cloneSession deep-copies a session through the same JSON encoding the store
// uses, so the copy carries exactly what would survive persistence.
func cloneSession(s *domain.LedgerSession) (*domain.LedgerSession, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var copied domain.LedgerSession
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, err
	}
	if copied.Markets == nil {
		copied.Markets = make(map[int64]*domain.MarketState)
	}
	return &copied, nil
}

// UserKeys lists every user with a persisted session plus any session loaded
// in memory this process lifetime.
func (m *Manager) UserKeys(ctx context.Context) ([]string, error) {
	keys, err := m.store.ListUserKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list user keys: %w", err)
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}

	m.mu.Lock()
	for k := range m.sessions {
		if !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	m.mu.Unlock()

	return keys, nil
}
