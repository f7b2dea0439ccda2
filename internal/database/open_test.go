// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package database_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/internal/database"
)

type openSuite struct {
	jujutesting.IsolationSuite
}

var _ = gc.Suite(&openSuite{})

func (s *openSuite) TestOpenEmptyPath(c *gc.C) {
	_, err := database.Open("")
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *openSuite) TestOpenCreatesFile(c *gc.C) {
	path := filepath.Join(c.MkDir(), "gvmd.db")
	db, err := database.Open(path)
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = db.Close() }()

	_, err = db.Exec("CREATE TABLE things (id INTEGER PRIMARY KEY)")
	c.Assert(err, jc.ErrorIsNil)

	_, err = os.Stat(path)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *openSuite) TestOpenEnforcesForeignKeys(c *gc.C) {
	db, err := database.Open(filepath.Join(c.MkDir(), "gvmd.db"))
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = db.Close() }()

	var on int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&on)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(on, gc.Equals, 1)
}

func (s *openSuite) TestOpenInMemoryIsolated(c *gc.C) {
	first, err := database.OpenInMemory()
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = first.Close() }()

	second, err := database.OpenInMemory()
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = second.Close() }()

	_, err = first.Exec("CREATE TABLE things (id INTEGER PRIMARY KEY)")
	c.Assert(err, jc.ErrorIsNil)

	// The second handle is a distinct database.
	var count int
	err = second.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'things'").Scan(&count)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(count, gc.Equals, 0)
}
