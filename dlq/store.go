package dlq

import (
	"context"
	"time"

	"github.com/courierhq/courier/id"
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// Store defines the archive persistence contract. The broker's own
// dead-letter stream remains the delivery-level terminal; the archive
// exists for inspection and manual replay.
type Store interface {
	// Push adds a rejected envelope entry to the archive.
	Push(ctx context.Context, entry *Entry) error

	// List returns entries matching the given options, oldest first.
	List(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// Get retrieves an entry by ID.
	Get(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// MarkReplayed records that an entry was re-dispatched. The actual
	// re-enqueue happens at the service layer.
	MarkReplayed(ctx context.Context, entryID id.DLQID) error

	// Purge removes entries with FailedAt before the given time and
	// returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// Count returns the total number of archived entries.
	Count(ctx context.Context) (int64, error)
}
