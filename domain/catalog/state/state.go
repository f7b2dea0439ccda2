// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	coredatabase "github.com/greenbone/gvmd/core/database"
	"github.com/greenbone/gvmd/domain"
)

// Logger is the interface used by the state layer for logging.
type Logger interface {
	Tracef(string, ...interface{})
	Debugf(string, ...interface{})
}

// State drives the generic resource engine. Most operations build
// their SQL per kind from the attribute registry and run through plain
// database transactions; the bulk list path goes through sqlair so the
// compiled access predicate can bind its arguments.
type State struct {
	*domain.StateBase
	logger Logger
}

// NewState returns a new state reference.
func NewState(factory coredatabase.TxnRunnerFactory, logger Logger) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
		logger:    logger,
	}
}

// rowID resolves a UUID to its row id in the given table. A missing
// row surfaces as sql.ErrNoRows for the caller to translate.
func rowID(ctx context.Context, tx *sql.Tx, table, uuid string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`
SELECT id FROM %s WHERE uuid = ?`, table), uuid).Scan(&id)
	return id, err
}

// now returns the time persisted in creation_time and modification_time
// columns.
func now() int64 {
	return time.Now().Unix()
}
