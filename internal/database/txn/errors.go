// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package txn

import (
	"strings"

	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"

	"github.com/greenbone/gvmd/internal/database/driver"
)

// IsErrRetryable returns true if the given error might be transient and
// the interaction can be safely retried.
func IsErrRetryable(err error) bool {
	if err == nil {
		return false
	}

	var dErr *driver.Error
	if errors.As(err, &dErr) && (dErr.Code == driver.ErrBusy || dErr.Code == driver.ErrLocked) {
		return true
	}

	var sErr sqlite3.Error
	if errors.As(err, &sErr) && (sErr.Code == sqlite3.ErrBusy || sErr.Code == sqlite3.ErrLocked) {
		return true
	}
	if errors.Is(err, sqlite3.ErrBusy) || errors.Is(err, sqlite3.ErrLocked) {
		return true
	}

	// Unwrap errors that were written before the transition to wrapped
	// driver errors; the message is all we have to go on.
	msg := err.Error()
	if strings.Contains(msg, "database is locked") {
		return true
	}
	if strings.Contains(msg, "cannot start a transaction within a transaction") {
		return true
	}
	if strings.Contains(msg, "bad connection") {
		return true
	}
	if strings.Contains(msg, "checkpoint in progress") {
		return true
	}
	return false
}
