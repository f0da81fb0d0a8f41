package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attnroulette/betledger/internal/domain"
)

// SessionStore implements domain.SessionStore with one JSONB row per user.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a SessionStore backed by the given pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Load reads the whole session record for userKey. A missing row maps to
// domain.ErrNotFound.
func (s *SessionStore) Load(ctx context.Context, userKey string) (*domain.LedgerSession, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		"SELECT data FROM ledger_sessions WHERE user_key = $1",
		userKey,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: load session %q: %w", userKey, err)
	}

	var session domain.LedgerSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal session %q: %w", userKey, err)
	}
	if session.Markets == nil {
		session.Markets = make(map[int64]*domain.MarketState)
	}
	return &session, nil
}

// Save rewrites the whole session record.
func (s *SessionStore) Save(ctx context.Context, session *domain.LedgerSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("postgres: marshal session %q: %w", session.UserKey, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_sessions (user_key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		session.UserKey, data,
	)
	if err != nil {
		return fmt.Errorf("postgres: save session %q: %w", session.UserKey, err)
	}
	return nil
}

// ListUserKeys returns every user with a persisted session.
func (s *SessionStore) ListUserKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT user_key FROM ledger_sessions ORDER BY user_key")
	if err != nil {
		return nil, fmt.Errorf("postgres: list user keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: scan user key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate user keys: %w", err)
	}
	return keys, nil
}
