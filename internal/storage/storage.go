package storage

import (
	"context"

	"tipLedger/internal/model"
)

// Storage defines a sink for event log records.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}

// ErrorSink records operations that were reverted during replay.
type ErrorSink interface {
	PutOperationErrors(ctx context.Context, errs []model.OperationError) error
}

// SnapshotStore persists the ledger checkpoint.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (model.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snapshot model.Snapshot) error
}
