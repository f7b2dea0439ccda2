// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
)

// TxnRunner defines an interface for running transactions against the
// manage database. It is the only surface the domain layers see; how the
// database is opened, retried and serialised stays behind it.
type TxnRunner interface {
	// Txn manages the application of a SQLair transaction within which the
	// input function is executed. Retry semantics are applied
	// automatically based on transient failures. This is the function
	// that almost all downstream database consumers should use.
	Txn(context.Context, func(context.Context, *sqlair.TX) error) error

	// StdTxn manages the application of a standard library transaction
	// within which the input function is executed. Retry semantics are
	// applied automatically based on transient failures.
	StdTxn(context.Context, func(context.Context, *sql.Tx) error) error
}

// TxnRunnerFactory aliases a function that returns a TxnRunner, allowing
// consumers to be constructed before the database they use is opened.
type TxnRunnerFactory = func() (TxnRunner, error)
