package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"registrar/clearance/internal/clearance"
	"registrar/clearance/internal/model"
)

// Store is the pgx adapter for clearance.Store. A Store built from a pool
// runs each call on the pool; WithTx hands the closure a Store bound to one
// transaction so the core's issuance sequence commits atomically.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(clearance.Store) error) error {
	if s.pool == nil {
		// Already inside a transaction; run on the same one.
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return clearance.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return clearance.ErrConflict
	}
	return err
}

func reqTable(ledger model.Ledger) string {
	if ledger == model.LedgerInstitutional {
		return "student_requirements_institutional"
	}
	return "student_requirements"
}
