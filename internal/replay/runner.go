// Package replay applies an operation script to the ledger engine in batches,
// persisting emitted events, reverted operations and a resumable checkpoint.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"tipLedger/internal/ledger"
	"tipLedger/internal/model"
	"tipLedger/internal/storage"
)

// Config holds runtime settings for a replay.
type Config struct {
	OpsPath   string
	BatchSize int
}

// BatchRecorder is notified after every flushed batch.
type BatchRecorder interface {
	RecordBatch(err error)
}

// Summary counts what a replay did.
type Summary struct {
	Total     int
	Applied   int
	Reverted  int
	Skipped   int
	Malformed int
	Logs      int
	LastSeq   uint64
}

// Runner streams operations from a JSONL script into the engine.
type Runner struct {
	cfg       Config
	engine    *ledger.Engine
	events    storage.Storage
	errors    storage.ErrorSink
	snapshots storage.SnapshotStore
	recorder  BatchRecorder
	logger    *zap.Logger
	position  uint64
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg Config, engine *ledger.Engine, events storage.Storage, errs storage.ErrorSink, snapshots storage.SnapshotStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		engine:    engine,
		events:    events,
		errors:    errs,
		snapshots: snapshots,
		logger:    logger,
	}
}

// SetBatchRecorder registers a recorder for flushed batches.
func (r *Runner) SetBatchRecorder(recorder BatchRecorder) {
	r.recorder = recorder
}

type batch struct {
	ops    int
	logs   []model.LogRecord
	errors []model.OperationError
}

// Run restores the last checkpoint, or mints genesis when there is none, then
// applies every operation after the checkpoint. Reverted operations are
// recorded and do not stop the replay.
func (r *Runner) Run(ctx context.Context, genesis *model.Genesis) (Summary, error) {
	var summary Summary
	if r.engine == nil {
		return summary, fmt.Errorf("engine is nil")
	}
	if r.events == nil {
		return summary, fmt.Errorf("event storage is nil")
	}
	if r.errors == nil {
		return summary, fmt.Errorf("error sink is nil")
	}
	if r.snapshots == nil {
		return summary, fmt.Errorf("snapshot store is nil")
	}
	if r.cfg.OpsPath == "" {
		return summary, fmt.Errorf("ops path is required")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 500
	}

	if err := r.restore(ctx, genesis); err != nil {
		return summary, err
	}

	file, err := os.Open(r.cfg.OpsPath)
	if err != nil {
		return summary, fmt.Errorf("open ops: %w", err)
	}
	defer file.Close()

	pending := &batch{}
	scanErr := storage.ScanLines(file, func(line []byte, position uint64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Total++
		if position <= r.position {
			summary.Skipped++
			return nil
		}
		r.position = position

		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			if position <= r.engine.LastSeq() {
				summary.Skipped++
				return nil
			}
			summary.Malformed++
			pending.errors = append(pending.errors, model.OperationError{
				Seq:       position,
				ErrorCode: model.ErrorCode(model.ErrInvalidOperation),
				Error:     fmt.Sprintf("%v: %v", model.ErrInvalidOperation, err),
			})
			r.logger.Warn("malformed operation", zap.Uint64("position", position), zap.Error(err))
			return nil
		}
		if op.Seq == 0 {
			op.Seq = position
		}
		if op.Seq <= r.engine.LastSeq() {
			summary.Skipped++
			return nil
		}

		receipt, err := r.engine.Execute(op)
		pending.ops++
		pending.logs = append(pending.logs, receipt.Logs...)
		summary.Logs += len(receipt.Logs)
		if err != nil {
			summary.Reverted++
			pending.errors = append(pending.errors, model.OperationError{
				Seq:       op.Seq,
				OpHash:    receipt.OpHash,
				Kind:      op.Kind,
				Caller:    op.Caller,
				ErrorCode: model.ErrorCode(err),
				Error:     err.Error(),
			})
		} else {
			summary.Applied++
		}

		if pending.ops >= r.cfg.BatchSize {
			if err := r.flush(ctx, pending); err != nil {
				return err
			}
			pending = &batch{}
		}
		return nil
	})

	// Work already applied is persisted even when the context ends the scan.
	if err := r.flush(context.WithoutCancel(ctx), pending); err != nil {
		return summary, err
	}
	summary.LastSeq = r.engine.LastSeq()
	if scanErr != nil {
		return summary, scanErr
	}

	r.logger.Info("replay complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("reverted", summary.Reverted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("malformed", summary.Malformed),
		zap.Int("logs", summary.Logs),
		zap.Uint64("last_seq", summary.LastSeq),
	)
	return summary, nil
}

func (r *Runner) restore(ctx context.Context, genesis *model.Genesis) error {
	r.position = 0
	snapshot, ok, err := r.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		if err := r.engine.Restore(snapshot); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		r.position = snapshot.Position
		r.logger.Info("resume from checkpoint", zap.Uint64("last_seq", snapshot.LastSeq), zap.Uint64("position", snapshot.Position))
		return nil
	}
	if genesis == nil {
		return nil
	}

	logs, err := r.engine.MintGenesis(*genesis)
	if err != nil {
		return err
	}
	r.logger.Info("genesis minted", zap.Int("holders", len(genesis.Balances)), zap.Uint64("block", genesis.BlockNumber))
	return r.flush(ctx, &batch{logs: logs})
}

func (r *Runner) flush(ctx context.Context, pending *batch) error {
	err := r.persist(ctx, pending)
	if r.recorder != nil {
		r.recorder.RecordBatch(err)
	}
	if err != nil {
		return err
	}
	r.logger.Info("batch complete",
		zap.Int("ops", pending.ops),
		zap.Int("logs", len(pending.logs)),
		zap.Int("errors", len(pending.errors)),
		zap.Uint64("last_seq", r.engine.LastSeq()),
	)
	return nil
}

func (r *Runner) persist(ctx context.Context, pending *batch) error {
	if err := r.events.PutLogBatch(ctx, pending.logs); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}
	if err := r.errors.PutOperationErrors(ctx, pending.errors); err != nil {
		return fmt.Errorf("store operation errors: %w", err)
	}
	snapshot := r.engine.Snapshot()
	snapshot.Position = r.position
	if err := r.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
