package domain

import (
	"context"
	"time"
)

// SessionStore persists whole LedgerSession records keyed by user. Load of a
// missing key returns ErrNotFound; Save rewrites the record in full.
type SessionStore interface {
	Load(ctx context.Context, userKey string) (*LedgerSession, error)
	Save(ctx context.Context, session *LedgerSession) error
	ListUserKeys(ctx context.Context) ([]string, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BalanceCache caches confirmed on-chain balance reads so repeated UI
// refreshes do not hammer the RPC node. Get of a missing key returns
// ErrNotFound.
type BalanceCache interface {
	Set(ctx context.Context, address string, balance string) error
	Get(ctx context.Context, address string) (string, error)
	Invalidate(ctx context.Context, address string) error
}

// SignalBus publishes ledger events to interested subscribers (the websocket
// hub, notification senders).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter writes cold-archive objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}
