package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"statpool/internal/model"
)

// Store provides Postgres persistence for the reconcile audit trail.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutReconcileBatch inserts or updates audit records keyed by pool and check
// time.
func (s *Store) PutReconcileBatch(records []model.ReconcileRecord) error {
	return s.putBatch(context.Background(), records)
}

func (s *Store) putBatch(ctx context.Context, records []model.ReconcileRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO reconcile_audit (
				pool_id, outcome, fields, tx_hash, checked_at, created_at
			) VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (pool_id, checked_at)
			DO UPDATE SET
				outcome = EXCLUDED.outcome,
				fields = EXCLUDED.fields,
				tx_hash = EXCLUDED.tx_hash
		`,
			int64(record.PoolID),
			record.Outcome,
			record.Fields,
			record.TxHash,
			record.CheckedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
