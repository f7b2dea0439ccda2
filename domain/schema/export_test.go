// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

import (
	dbschema "github.com/greenbone/gvmd/core/database/schema"
)

// PartialDDL returns a schema holding only the first n changes, standing
// in for the DDL an older daemon release shipped.
func PartialDDL(n int) *dbschema.Schema {
	s := dbschema.New()
	for _, fn := range patches[:n] {
		s.Add(fn())
	}
	return s
}
