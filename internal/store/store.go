// Package store is the bun persistence layer shared by the event, registration
// and feedback services. A Store either wraps the connection pool or, inside
// RunInTx, a single transaction; queries are identical in both cases.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"campus-events/internal/apperr"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type Store struct {
	db bun.IDB
}

func New(db bun.IDB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() bun.IDB {
	return s.db
}

// RunInTx runs fn inside one transaction. Nested calls reuse the outer
// transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	if _, ok := s.db.(bun.Tx); ok {
		return fn(ctx, s)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

// LockEvent serializes writers on one event for the rest of the enclosing
// transaction. The no-op update takes a row lock in Postgres and the database
// write lock in SQLite. Returns sql.ErrNoRows when the event does not exist.
func (s *Store) LockEvent(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE events SET id = id WHERE id = ?", eventID)
	if err != nil {
		return fmt.Errorf("lock event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock event %s: %w", eventID, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation recognizes duplicate-key errors from both drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func affected(res sql.Result) (int64, error) {
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}

// Classify maps a missing row to a NotFound error named after entity and any
// other unclassified failure to a Persistence error.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return apperr.NotFound("%s not found", entity)
	}
	return apperr.Persistence(entity+" storage failure", err)
}
