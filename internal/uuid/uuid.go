// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package uuid provides the identifiers handed to every managed resource.
package uuid

import (
	gouuid "github.com/google/uuid"
	"github.com/juju/errors"
)

// UUID is a random (version 4) universally unique identifier in its
// canonical string form.
type UUID string

// NewUUID returns a new random UUID.
func NewUUID() (UUID, error) {
	u, err := gouuid.NewRandom()
	if err != nil {
		return "", errors.Trace(err)
	}
	return UUID(u.String()), nil
}

// MustNewUUID returns a new random UUID or panics. Only for use where
// randomness failure is unrecoverable anyway, such as tests.
func MustNewUUID() UUID {
	u, err := NewUUID()
	if err != nil {
		panic(err)
	}
	return u
}

// String implements Stringer.
func (u UUID) String() string {
	return string(u)
}

// Validate returns an error satisfying errors.NotValid if the UUID is
// empty or not in canonical form.
func (u UUID) Validate() error {
	if u == "" {
		return errors.NotValidf("empty UUID")
	}
	if !IsValidUUIDString(string(u)) {
		return errors.NotValidf("UUID %q", string(u))
	}
	return nil
}

// IsValidUUIDString reports whether the given string parses as a UUID.
func IsValidUUIDString(s string) bool {
	_, err := gouuid.Parse(s)
	return err == nil
}
