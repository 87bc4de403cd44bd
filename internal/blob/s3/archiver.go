package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// JournalArchiveStore provides read access to journal entries for archival.
type JournalArchiveStore interface {
	// ListBefore returns all envelopes emitted strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Envelope, error)
}

// MarketArchiveStore provides read access to terminal markets for archival.
type MarketArchiveStore interface {
	// ListTerminalBefore returns resolved and cancelled markets whose
	// deadline passed strictly before the cutoff.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Market, error)
}

// Archiver implements domain.Archiver: it queries old journal entries and
// terminal market snapshots, serializes them to JSONL, and uploads the
// result to the archive bucket.
//
// Deletion of archived rows from postgres is intentionally not performed
// here; pruning runs as a separate step once the upload has been verified.
type Archiver struct {
	writer  domain.BlobWriter
	journal JournalArchiveStore
	markets MarketArchiveStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, journal JournalArchiveStore, markets MarketArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		journal: journal,
		markets: markets,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveJournal exports all journal envelopes before the cutoff to
// archive/journal/YYYY-MM.jsonl and returns the number of records written.
func (a *Archiver) ArchiveJournal(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.journal.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal marshal: %w", err)
	}

	path := archivePath("journal", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive journal upload: %w", err)
	}

	count := int64(len(entries))
	a.logger.InfoContext(ctx, "journal archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before),
	)
	return count, nil
}

// ArchiveTerminalMarkets exports settled and cancelled market snapshots
// before the cutoff to archive/markets/YYYY-MM.jsonl and returns the number
// of records written.
func (a *Archiver) ArchiveTerminalMarkets(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(markets)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	count := int64(len(markets))
	a.logger.InfoContext(ctx, "terminal markets archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before),
	)
	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/journal/2025-01.jsonl
//	archive/markets/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
