// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/juju/cmd/v3/cmdtesting"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/core/version"
	"github.com/greenbone/gvmd/domain/schema"
	"github.com/greenbone/gvmd/internal/database"
)

type commandSuite struct {
	jujutesting.IsolationSuite
}

var _ = gc.Suite(&commandSuite{})

func (s *commandSuite) TestUnexpectedArgs(c *gc.C) {
	_, err := cmdtesting.RunCommand(c, newGvmdCommand(), "bogus")
	c.Assert(err, gc.ErrorMatches, `unrecognized args: \["bogus"\]`)
}

func (s *commandSuite) TestVersion(c *gc.C) {
	ctx, err := cmdtesting.RunCommand(c, newGvmdCommand(), "--version")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cmdtesting.Stdout(ctx), gc.Equals, version.Current.String()+"\n")
}

func (s *commandSuite) TestMissingConfigFile(c *gc.C) {
	path := filepath.Join(c.MkDir(), "absent.conf")
	_, err := cmdtesting.RunCommand(c, newGvmdCommand(), "--config", path)
	c.Assert(err, gc.ErrorMatches, "reading configuration: .*")
}

func (s *commandSuite) TestMigrate(c *gc.C) {
	dbPath := filepath.Join(c.MkDir(), "gvmd.db")
	cfgPath := writeConfig(c, fmt.Sprintf(`
database-path: %s
sync-tool: ""
admin-user: admin
admin-password: secret
`, dbPath))

	target := schema.ManagerDDL().Len()

	ctx, err := cmdtesting.RunCommand(c, newGvmdCommand(), "--config", cfgPath, "--migrate")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cmdtesting.Stdout(ctx), gc.Equals, fmt.Sprintf(
		"database migrated from schema version 0 to %d\nensured admin user \"admin\"\n", target))

	// The migrated database carries the schema version and the
	// administrator account.
	db, err := database.Open(dbPath)
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = db.Close() }()

	var got string
	err = db.QueryRow("SELECT value FROM meta WHERE name = 'database_version'").Scan(&got)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got, gc.Equals, strconv.Itoa(target))

	var users int
	err = db.QueryRow("SELECT COUNT(*) FROM users WHERE name = 'admin'").Scan(&users)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(users, gc.Equals, 1)
}

func (s *commandSuite) TestMigrateTwice(c *gc.C) {
	dbPath := filepath.Join(c.MkDir(), "gvmd.db")
	cfgPath := writeConfig(c, fmt.Sprintf("database-path: %s\nsync-tool: \"\"\n", dbPath))

	_, err := cmdtesting.RunCommand(c, newGvmdCommand(), "--config", cfgPath, "--migrate")
	c.Assert(err, jc.ErrorIsNil)

	ctx, err := cmdtesting.RunCommand(c, newGvmdCommand(), "--config", cfgPath, "--migrate")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cmdtesting.Stdout(ctx), gc.Equals, fmt.Sprintf(
		"database already at schema version %d\n", schema.ManagerDDL().Len()))
}

func (s *commandSuite) TestServeRefusesUnmigratedDatabase(c *gc.C) {
	dbPath := filepath.Join(c.MkDir(), "gvmd.db")
	cfgPath := writeConfig(c, fmt.Sprintf("database-path: %s\nsync-tool: \"\"\n", dbPath))

	_, err := cmdtesting.RunCommand(c, newGvmdCommand(), "--config", cfgPath)
	c.Assert(err, gc.ErrorMatches, `database at schema version 0, this daemon needs \d+: run gvmd --migrate`)
}
