// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package domain holds the base types shared by every domain's state
// layer.
package domain

import (
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/greenbone/gvmd/core/database"
)

// StateBase defines a base struct for requesting a database. The
// database is cached for the lifetime of the struct, as are the prepared
// statements built through it.
type StateBase struct {
	dbMutex sync.RWMutex
	getDB   coredatabase.TxnRunnerFactory
	db      coredatabase.TxnRunner

	stmtMutex sync.RWMutex
	stmts     map[string]*sqlair.Statement
}

// NewStateBase returns a new StateBase.
func NewStateBase(getDB coredatabase.TxnRunnerFactory) *StateBase {
	return &StateBase{
		getDB: getDB,
		stmts: make(map[string]*sqlair.Statement),
	}
}

// DB returns the database for this state. The first call resolves it
// through the factory; later calls return the cached runner.
func (st *StateBase) DB() (coredatabase.TxnRunner, error) {
	st.dbMutex.RLock()
	if st.db != nil {
		defer st.dbMutex.RUnlock()
		return st.db, nil
	}
	st.dbMutex.RUnlock()

	st.dbMutex.Lock()
	defer st.dbMutex.Unlock()
	if st.db != nil {
		return st.db, nil
	}

	if st.getDB == nil {
		return nil, errors.New("nil getDB")
	}
	db, err := st.getDB()
	if err != nil {
		return nil, errors.Annotate(err, "invoking getDB")
	}
	st.db = db
	return st.db, nil
}

// Prepare prepares a SQLair query, returning the cached statement when
// the same query text has been prepared before. The type samples
// determine the types the statement binds; as in sqlair itself, passing
// different samples for identical query text is a programming error.
func (st *StateBase) Prepare(query string, typeSamples ...any) (*sqlair.Statement, error) {
	st.stmtMutex.RLock()
	if stmt, ok := st.stmts[query]; ok {
		st.stmtMutex.RUnlock()
		return stmt, nil
	}
	st.stmtMutex.RUnlock()

	stmt, err := sqlair.Prepare(query, typeSamples...)
	if err != nil {
		return nil, errors.Annotate(err, "preparing")
	}

	st.stmtMutex.Lock()
	st.stmts[query] = stmt
	st.stmtMutex.Unlock()
	return stmt, nil
}
