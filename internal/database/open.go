// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package database opens the manage database and wraps it in the
// transaction runner the domain layers consume.
package database

import (
	"database/sql"
	"fmt"

	"github.com/juju/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/greenbone/gvmd/internal/uuid"
)

// Open returns a handle on the manage database at the given path,
// creating the file if it does not exist.
//
// Transactions start in immediate mode, so a write transaction holds the
// write lock from BEGIN onwards; together with the runner's admission
// gate this gives schema migrations their exclusive-transaction
// guarantee. The pool is restricted to a single connection because the
// engine admits a single writer anyway.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.NotValidf("empty database path")
	}

	dsn := fmt.Sprintf(
		"file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate",
		path,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "opening database at %q", path)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "connecting to database at %q", path)
	}
	return db, nil
}

// OpenInMemory returns a handle on a fresh private in-memory database.
// Used by tests and by nothing else.
func OpenInMemory() (*sql.DB, error) {
	name, err := uuid.NewUUID()
	if err != nil {
		return nil, errors.Trace(err)
	}

	// A named shared-cache database lives for as long as one connection
	// stays open; the single-connection pool keeps exactly one.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate",
		name,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "opening in-memory database")
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "connecting to in-memory database")
	}
	return db, nil
}
