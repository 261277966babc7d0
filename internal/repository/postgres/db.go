package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	db   DB
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// With returns a store whose repositories run on db.
func (s *Store) With(db DB) *Store {
	cp := *s
	cp.db = db
	return &cp
}

func (s *Store) handle() DB {
	if s.db != nil {
		return s.db
	}
	return s.pool
}

func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Transact runs fn in a serializable transaction. Serialization failures and
// deadlocks surface as repository.ErrSerialization.
func (s *Store) Transact(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	const op = "postgres.Store.Transact"

	err := s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		return fn(ctx, s.With(tx))
	})
	if err != nil {
		if IsRetryable(err) {
			return fmt.Errorf("%s:%w: %v", op, repository.ErrSerialization, err)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Store) Facilities() repository.FacilityRepository {
	return &FacilityRepo{db: s.handle()}
}

func (s *Store) Courts() repository.CourtRepository {
	return &CourtRepo{db: s.handle()}
}

func (s *Store) Orders() repository.OrderRepository {
	return &OrderRepo{db: s.handle()}
}
