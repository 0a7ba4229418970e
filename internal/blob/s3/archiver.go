package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Archiver rotates expired opportunities from the primary store into cold
// storage: rows older than the cutoff are serialized to JSONL, uploaded to
// S3, and only then pruned from PostgreSQL. A failed upload leaves the rows
// in place for the next rotation.
type Archiver struct {
	writer domain.BlobWriter
	store  domain.OpportunityStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, store domain.OpportunityStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer: writer,
		store:  store,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveBefore archives and prunes all opportunities that expired strictly
// before the cutoff. Returns the number of records archived.
func (a *Archiver) ArchiveBefore(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		// The upload succeeded; the rows will be re-archived next run, which
		// overwrites the same object.
		return int64(len(opps)), fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.Info("archived expired opportunities",
		slog.String("path", path),
		slog.Int("count", len(opps)),
		slog.Int64("pruned", deleted),
	)
	return int64(len(opps)), nil
}

// Run rotates on the given interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context, interval time.Duration, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			if _, err := a.ArchiveBefore(ctx, cutoff); err != nil {
				a.logger.Error("archive rotation failed", slog.Any("error", err))
			}
		}
	}
}

// archivePath builds the object key for a cutoff month, e.g.
// "archive/opportunities/2025-06.jsonl".
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/opportunities/%s.jsonl", before.UTC().Format("2006-01"))
}

// marshalJSONL serializes a slice to newline-delimited JSON.
func marshalJSONL(opps []domain.Opportunity) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, opp := range opps {
		if err := enc.Encode(opp); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
