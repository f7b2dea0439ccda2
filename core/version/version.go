// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package version holds the daemon version.
package version

import (
	"github.com/juju/version/v2"
)

// Current is the version of the running daemon.
var Current = version.MustParse("26.0.0")
