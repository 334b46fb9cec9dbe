package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"derivpool/internal/model"
)

// Store provides Postgres persistence for registration and creation records.
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

// PutPoolRecords inserts or updates pool registration records.
func (s *Store) PutPoolRecords(records []model.PoolRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO pool_registrations (
				pool_id, kind, currency0, currency1, fee, tick_spacing, hooks,
				parent_pool_id, sqrt_price_x96, total_fee_bps, child_share_bps,
				registered_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				total_fee_bps = EXCLUDED.total_fee_bps,
				child_share_bps = EXCLUDED.child_share_bps,
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				updated_at = now()
		`,
			r.PoolID,
			r.Kind,
			r.Currency0,
			r.Currency1,
			r.Fee,
			r.TickSpacing,
			r.Hooks,
			r.ParentPoolID,
			r.SqrtPriceX96,
			int64(r.TotalFeeBps),
			int64(r.ChildShareBps),
			r.RegisteredAt,
		)
	}

	br := s.pool.SendBatch(context.Background(), batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutDerivativeRecords inserts or updates derivative creation records.
func (s *Store) PutDerivativeRecords(records []model.DerivativeRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO derivatives (
				token, collection, parent_token, pool_id, sqrt_price_x96,
				liquidity, refund0, refund1, created_ts, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
			ON CONFLICT (token)
			DO UPDATE SET
				pool_id = EXCLUDED.pool_id,
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				liquidity = EXCLUDED.liquidity,
				updated_at = now()
		`,
			r.Token,
			r.Collection,
			r.ParentToken,
			r.PoolID,
			r.SqrtPriceX96,
			r.Liquidity,
			r.Refund0,
			r.Refund1,
			r.CreatedAt,
		)
	}

	br := s.pool.SendBatch(context.Background(), batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
