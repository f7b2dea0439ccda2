// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testing provides a database suite pre-populated with the manage
// schema.
package testing

import (
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/domain/schema"
	"github.com/greenbone/gvmd/internal/database/testing"
)

// ManagerSuite is used to provide a sql.DB reference to tests.
// It is pre-populated with the manage schema.
type ManagerSuite struct {
	testing.DBSuite
}

// SetUpTest is responsible for setting up a testing database suite
// initialised with the manage schema.
func (s *ManagerSuite) SetUpTest(c *gc.C) {
	s.DBSuite.SetUpTest(c)
	s.DBSuite.ApplyDDL(c, schema.ManagerDDL())
}
