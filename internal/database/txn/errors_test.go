// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package txn_test

import (
	"github.com/juju/errors"
	jujutesting "github.com/juju/testing"
	"github.com/mattn/go-sqlite3"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/internal/database/driver"
	"github.com/greenbone/gvmd/internal/database/txn"
)

type isErrRetryableSuite struct {
	jujutesting.IsolationSuite
}

var _ = gc.Suite(&isErrRetryableSuite{})

func (s *isErrRetryableSuite) TestIsErrRetryable(c *gc.C) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "driver busy error",
			err:      &driver.Error{Code: driver.ErrBusy},
			expected: true,
		},
		{
			name:     "driver locked error",
			err:      &driver.Error{Code: driver.ErrLocked},
			expected: true,
		},
		{
			name:     "annotated driver busy error",
			err:      errors.Annotate(&driver.Error{Code: driver.ErrBusy}, "beginning transaction"),
			expected: true,
		},
		{
			name:     "driver constraint error",
			err:      &driver.Error{Code: 19, Message: "UNIQUE constraint failed"},
			expected: false,
		},
		{
			name:     "sqlite3 busy error",
			err:      sqlite3.Error{Code: sqlite3.ErrBusy},
			expected: true,
		},
		{
			name:     "sqlite3 locked error",
			err:      sqlite3.Error{Code: sqlite3.ErrLocked},
			expected: true,
		},
		{
			name:     "bare sqlite3 busy code",
			err:      sqlite3.ErrBusy,
			expected: true,
		},
		{
			name:     "bare sqlite3 locked code",
			err:      sqlite3.ErrLocked,
			expected: true,
		},
		{
			name:     "database is locked",
			err:      errors.Errorf("database is locked"),
			expected: true,
		},
		{
			name:     "cannot start a transaction within a transaction",
			err:      errors.Errorf("cannot start a transaction within a transaction"),
			expected: true,
		},
		{
			name:     "bad connection",
			err:      errors.Errorf("bad connection"),
			expected: true,
		},
		{
			name:     "checkpoint in progress",
			err:      errors.Errorf("checkpoint in progress"),
			expected: true,
		},
		{
			name:     "unrelated error",
			err:      errors.Errorf("disk I/O error"),
			expected: false,
		},
	}

	for i, test := range tests {
		c.Logf("test %d: %s", i, test.name)
		c.Check(txn.IsErrRetryable(test.err), gc.Equals, test.expected)
	}
}
