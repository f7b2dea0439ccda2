// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testing provides an in-memory database suite for state tests.
package testing

import (
	"context"
	"database/sql"

	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/greenbone/gvmd/core/database"
	coreschema "github.com/greenbone/gvmd/core/database/schema"
	"github.com/greenbone/gvmd/internal/database"
)

// DBSuite is used to provide a sql.DB reference to tests. The database is
// a fresh private in-memory instance per test.
type DBSuite struct {
	jujutesting.IsolationSuite

	db     *sql.DB
	runner coredatabase.TxnRunner
}

// SetUpTest opens the database.
func (s *DBSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	db, err := database.OpenInMemory()
	c.Assert(err, jc.ErrorIsNil)
	s.db = db
	s.runner = database.NewTxnRunner(db)
}

// TearDownTest closes the database.
func (s *DBSuite) TearDownTest(c *gc.C) {
	if s.db != nil {
		c.Assert(s.db.Close(), jc.ErrorIsNil)
		s.db = nil
		s.runner = nil
	}
	s.IsolationSuite.TearDownTest(c)
}

// DB returns the raw database handle.
func (s *DBSuite) DB() *sql.DB {
	return s.db
}

// TxnRunner returns the transaction runner over the suite's database.
func (s *DBSuite) TxnRunner() coredatabase.TxnRunner {
	return s.runner
}

// TxnRunnerFactory returns a factory yielding the suite's runner.
func (s *DBSuite) TxnRunnerFactory() coredatabase.TxnRunnerFactory {
	return database.TxnRunnerFactory(s.runner)
}

// ApplyDDL brings the suite's database up to the given schema.
func (s *DBSuite) ApplyDDL(c *gc.C, schema *coreschema.Schema) {
	changes, err := schema.Ensure(context.Background(), s.runner)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(changes.Post, gc.Equals, schema.Len())
}
