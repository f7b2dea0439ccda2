// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"
)

// IsErrConstraintUnique returns true if the input error was returned
// because a unique or primary key constraint was violated.
func IsErrConstraintUnique(err error) bool {
	var sErr sqlite3.Error
	if !errors.As(err, &sErr) {
		return false
	}
	return sErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// IsErrConstraintForeignKey returns true if the input error was returned
// because a foreign key constraint was violated.
func IsErrConstraintForeignKey(err error) bool {
	var sErr sqlite3.Error
	if !errors.As(err, &sErr) {
		return false
	}
	return sErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// IsErrConstraintNotNull returns true if the input error was returned
// because a not-null constraint was violated.
func IsErrConstraintNotNull(err error) bool {
	var sErr sqlite3.Error
	if !errors.As(err, &sErr) {
		return false
	}
	return sErr.ExtendedCode == sqlite3.ErrConstraintNotNull
}
