package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCredentialNotFound is returned by credential stores when no credential
// exists for the requested client id.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialRepository persists client credentials keyed by client id.
// Put replaces the whole record, which keeps the token pair atomic.
type CredentialRepository interface {
	Put(ctx context.Context, cred *Credential) error
	Get(ctx context.Context, clientID string) (*Credential, error)
	Delete(ctx context.Context, clientID string) error
	// ListClientIDs returns every registered client id.
	ListClientIDs(ctx context.Context) ([]string, error)
	// ForEach calls fn for every stored credential. A non-nil error from fn
	// stops the iteration and is returned.
	ForEach(ctx context.Context, fn func(cred *Credential) error) error
}

// CheckpointRepository persists sync progress per (client, stream).
type CheckpointRepository interface {
	// Get returns the checkpoint, or (nil, nil) when none exists yet.
	Get(ctx context.Context, clientID string, stream MetricStream) (*Checkpoint, error)
	// Advance upserts the checkpoint. Callers must only advance after the
	// corresponding record batch has been durably persisted.
	Advance(ctx context.Context, cp *Checkpoint) error
}

// MetricRecordRepository owns the persisted metric record collection. The
// sync engine only ever appends to it.
type MetricRecordRepository interface {
	// InsertMany appends a batch. A duplicate record id fails the batch;
	// callers treat that as retryable since window recomputation is
	// idempotent.
	InsertMany(ctx context.Context, records []MetricRecord) error
	// FindSince returns records for the client and stream with a timestamp at
	// or after since, in ascending timestamp order.
	FindSince(ctx context.Context, clientID string, stream MetricStream, since time.Time) ([]MetricRecord, error)
	// Latest returns the most recently ingested record, or (nil, nil) when
	// the client has no records for the stream.
	Latest(ctx context.Context, clientID string, stream MetricStream) (*MetricRecord, error)
}
