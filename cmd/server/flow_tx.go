package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "garita/pkg/domain-errors"
	txcontext "garita/pkg/platform/tx"
)

const defaultFlowTxTimeout = 5 * time.Second

// flowPostgresTx runs one flow step inside a database transaction. The
// transaction rides in the context so the postgres stores join it without
// signature changes; the key parameter exists for lock-based implementations
// and is unused here.
type flowPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newFlowPostgresTx(db *sql.DB) *flowPostgresTx {
	return &flowPostgresTx{db: db}
}

func (t *flowPostgresTx) RunInTx(ctx context.Context, _ string, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultFlowTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
