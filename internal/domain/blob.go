package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to long-term storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver exports the journal of settled and cancelled markets to cold
// storage. Archived rows are not deleted here; pruning is a separate step
// run after the export has been verified.
type Archiver interface {
	ArchiveJournal(ctx context.Context, before time.Time) (int64, error)
	ArchiveTerminalMarkets(ctx context.Context, before time.Time) (int64, error)
}
