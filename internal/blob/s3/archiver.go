package s3blob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/attnroulette/betledger/internal/domain"
)

// archiveBatchSize caps how many audit rows one archive object holds.
const archiveBatchSize = 5000

// Archiver moves audit rows older than a retention window into cold storage
// and deletes them from the hot table. Ledger sessions themselves are never
// archived away; the ledger is append-only and persisted indefinitely.
type Archiver struct {
	writer    domain.BlobWriter
	audit     domain.AuditStore
	retention time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver that keeps retention worth of audit rows
// hot.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore, retention time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		audit:     audit,
		retention: retention,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run archives one batch of expired audit rows. It returns the number of
// rows archived; callers invoke it on a schedule until it reports zero.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-a.retention)

	entries, err := a.audit.ListBefore(ctx, cutoff, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("archiver: list expired audit rows: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return 0, fmt.Errorf("archiver: marshal batch: %w", err)
	}

	// Key by the batch's newest row so reruns land on distinct objects.
	newest := entries[len(entries)-1].CreatedAt.UTC()
	key := fmt.Sprintf("audit/%s/%d.json", newest.Format("2006/01/02"), newest.UnixNano())

	if err := a.writer.Put(ctx, key, data, "application/json"); err != nil {
		return 0, fmt.Errorf("archiver: write batch: %w", err)
	}

	// Only delete rows that are covered by the object just written.
	deleted, err := a.audit.DeleteBefore(ctx, newest.Add(time.Nanosecond))
	if err != nil {
		return 0, fmt.Errorf("archiver: delete archived rows: %w", err)
	}

	a.logger.InfoContext(ctx, "audit batch archived",
		slog.String("key", key),
		slog.Int("rows", len(entries)),
		slog.Int64("deleted", deleted),
	)
	return len(entries), nil
}
