package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/redact"
)

// Beginner starts database transactions. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TxFn is the work done inside a transaction. Stores take part in it through
// their WithTx method, e.g. cards.WithTx(tx).CreateMultiple(ctx, batch).
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction runs fn in a single transaction. It commits when fn returns
// nil and rolls back otherwise, so a card batch is either stored whole or not
// at all.
//
// Errors from fn are returned as they are, joined with the rollback error if
// rolling back also failed. Begin and commit failures wrap ErrTransactionFailed.
// A panic in fn rolls back and then panics again.
func RunInTransaction(ctx context.Context, db Beginner, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", redact.Error(err)))
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		p := recover()
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("failed to roll back transaction",
				slog.String("error", redact.Error(rbErr)),
				slog.Any("panic", p))
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		if p != nil {
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		log.Debug("rolling back transaction", slog.String("error", redact.Error(err)))
		return err
	}

	// The transaction is finished whether or not the commit succeeds
	done = true
	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", redact.Error(err)))
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}
	return nil
}
