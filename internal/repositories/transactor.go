package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Transactor runs a unit of work inside a single database transaction.
// Every read and write performed by fn must go through the given executor.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx SQLExecutor) error) error
	// Executor returns the non-transactional executor for standalone reads.
	Executor() SQLExecutor
}

type sqlTransactor struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTransactor creates a Transactor over the connection pool. A positive
// timeout bounds every transaction; the database rolls back on expiry.
func NewTransactor(db *sql.DB, timeout time.Duration) Transactor {
	return &sqlTransactor{db: db, timeout: timeout}
}

func (t *sqlTransactor) Executor() SQLExecutor {
	return t.db
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(tx SQLExecutor) error) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: failed to start database transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapDBError(err, "committing transaction")
	}
	return nil
}
