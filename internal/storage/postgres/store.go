package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tipLedger/internal/model"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_events (
	op_hash     TEXT        NOT NULL,
	log_index   BIGINT      NOT NULL,
	seq         BIGINT      NOT NULL,
	address     TEXT        NOT NULL,
	topics      TEXT[]      NOT NULL,
	data        TEXT        NOT NULL,
	ingested_at TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (op_hash, log_index)
);
CREATE INDEX IF NOT EXISTS ledger_events_seq_idx ON ledger_events (seq);

CREATE TABLE IF NOT EXISTS ledger_operation_errors (
	seq        BIGINT      PRIMARY KEY,
	op_hash    TEXT,
	kind       TEXT        NOT NULL,
	caller     TEXT        NOT NULL,
	error_code TEXT        NOT NULL,
	error      TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_state (
	name       TEXT        PRIMARY KEY,
	last_seq   BIGINT      NOT NULL,
	snapshot   JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DefaultStateName keys the snapshot row when none is configured.
const DefaultStateName = "ledger"

// Store provides Postgres persistence for ledger events and checkpoints.
type Store struct {
	pool      *pgxpool.Pool
	stateName string
}

func NewStore(ctx context.Context, dsn, stateName string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if stateName == "" {
		stateName = DefaultStateName
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, stateName: stateName}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutLogBatch inserts event records, ignoring ones already stored.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, log := range logs {
		batch.Queue(`
			INSERT INTO ledger_events (
				op_hash, log_index, seq, address, topics, data, ingested_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (op_hash, log_index) DO NOTHING
		`,
			log.OpHash,
			int64(log.LogIndex),
			int64(log.Seq),
			log.Address,
			log.Topics,
			log.Data,
			log.IngestedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutOperationErrors upserts reverted operations keyed by seq.
func (s *Store) PutOperationErrors(ctx context.Context, errs []model.OperationError) error {
	if len(errs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range errs {
		batch.Queue(`
			INSERT INTO ledger_operation_errors (
				seq, op_hash, kind, caller, error_code, error, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (seq)
			DO UPDATE SET
				op_hash = EXCLUDED.op_hash,
				kind = EXCLUDED.kind,
				caller = EXCLUDED.caller,
				error_code = EXCLUDED.error_code,
				error = EXCLUDED.error
		`,
			int64(e.Seq),
			e.OpHash,
			e.Kind,
			e.Caller,
			e.ErrorCode,
			e.Error,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range errs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot returns the stored checkpoint for the store's state name.
func (s *Store) LoadSnapshot(ctx context.Context) (model.Snapshot, bool, error) {
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM ledger_state WHERE name=$1`, s.stateName)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, err
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snapshot, true, nil
}

// SaveSnapshot upserts the checkpoint for the store's state name.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot model.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_state (name, last_seq, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, snapshot = EXCLUDED.snapshot, updated_at = now()
	`, s.stateName, int64(snapshot.LastSeq), raw)
	return err
}
