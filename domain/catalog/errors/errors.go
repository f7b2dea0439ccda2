// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"github.com/juju/errors"
)

const (
	// NotFound describes an error that occurs when the resource being
	// operated on does not exist, or the caller is not allowed to know
	// whether it does.
	NotFound = errors.ConstError("resource not found")

	// InUse describes an error that occurs when a resource cannot be
	// deleted or trashed because live rows still refer to it.
	InUse = errors.ConstError("resource is in use")
)
