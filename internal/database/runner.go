// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/greenbone/gvmd/core/database"
	"github.com/greenbone/gvmd/internal/database/txn"
)

// NewTxnRunner returns a TxnRunner over the given database handle.
func NewTxnRunner(db *sql.DB, opts ...txn.Option) coredatabase.TxnRunner {
	return &txnRunner{
		db:     sqlair.NewDB(db),
		runner: txn.NewRetryingTxnRunner(opts...),
	}
}

type txnRunner struct {
	db     *sqlair.DB
	runner *txn.RetryingTxnRunner
}

// Txn executes the input function inside a SQLair transaction, with the
// runner's retry semantics applied on transient failures.
func (r *txnRunner) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return errors.Trace(r.runner.Txn(ctx, r.db, fn))
}

// StdTxn executes the input function inside a standard library
// transaction, with the runner's retry semantics applied on transient
// failures.
func (r *txnRunner) StdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return errors.Trace(r.runner.StdTxn(ctx, r.db.PlainDB(), fn))
}

// TxnRunnerFactory returns a TxnRunnerFactory that always yields the
// given runner.
func TxnRunnerFactory(runner coredatabase.TxnRunner) coredatabase.TxnRunnerFactory {
	return func() (coredatabase.TxnRunner, error) {
		if runner == nil {
			return nil, errors.New("nil txn runner")
		}
		return runner, nil
	}
}
