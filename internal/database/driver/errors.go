// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package driver holds the error surface shared with the database driver.
package driver

import "fmt"

// Error codes the transaction layer acts on. The values are the SQLite
// primary result codes.
const (
	// ErrBusy indicates the database file was locked by another
	// connection when the operation needed it.
	ErrBusy = 5

	// ErrLocked indicates a conflict with another statement on the same
	// connection.
	ErrLocked = 6
)

// Error is a database error carrying the driver's result code.
type Error struct {
	Code    int
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("database error (%d)", e.Code)
	}
	return e.Message
}
