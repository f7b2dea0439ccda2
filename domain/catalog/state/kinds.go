// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"fmt"

	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/catalog"
)

// The envelope is not quite uniform: results carry no name, comment or
// modification time of their own, reports no name or comment, and
// SecInfo rows no comment. The query builders consult these.

func hasName(kind resource.Kind) bool {
	return kind != resource.Report && kind != resource.Result
}

func hasComment(kind resource.Kind) bool {
	return hasName(kind) && !kind.IsFeed()
}

func hasModTime(kind resource.Kind) bool {
	return kind != resource.Result
}

// tableFor returns the table holding rows of the kind at the location.
func tableFor(kind resource.Kind, location resource.Location) string {
	if location == resource.LocationTrash {
		return kind.TrashTable()
	}
	return kind.Table()
}

// attributeMap indexes the kind's attribute registry by name.
func attributeMap(kind resource.Kind) map[string]catalog.Attribute {
	attrs := catalog.Attributes(kind)
	m := make(map[string]catalog.Attribute, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a
	}
	return m
}

// copyColumns lists the columns carried when a row moves between a
// table and its trashcan twin: the envelope and the kind's attributes.
// The move itself sets modification_time.
func copyColumns(kind resource.Kind) []string {
	cols := []string{"uuid", "owner", "name", "comment"}
	for _, a := range catalog.Attributes(kind) {
		cols = append(cols, a.Name)
	}
	return append(cols, "creation_time")
}

// restoreSelects returns the select list matching copyColumns when
// copying a row out of the trashcan. Reference columns are re-resolved
// against the live table, so a reference whose target has gone in the
// meantime restores as unset instead of breaking a constraint.
func restoreSelects(kind resource.Kind, trash string) []string {
	sel := []string{"uuid", "owner", "name", "comment"}
	for _, a := range catalog.Attributes(kind) {
		if a.Ref != "" {
			sel = append(sel, fmt.Sprintf(
				"(SELECT id FROM %[1]s WHERE %[1]s.id = %[2]s.%[3]s)",
				a.Ref.Table(), trash, a.Name))
			continue
		}
		sel = append(sel, a.Name)
	}
	return append(sel, "creation_time")
}

// refColumn is a live table column referring to rows of another kind.
type refColumn struct {
	table  string
	column string
}

// referencedBy lists the live columns that point at rows of a kind and
// block deleting or trashing them while set. A trashed task still
// holds its references, so those count too. Notes and overrides do not
// pin the task or result they annotate; they lose the link instead.
var referencedBy = map[resource.Kind][]refColumn{
	resource.Target:   {{"tasks", "target"}},
	resource.Config:   {{"tasks", "config"}},
	resource.Scanner:  {{"tasks", "scanner"}, {"agents", "scanner"}},
	resource.Schedule: {{"tasks", "schedule"}},
}

// trashTwinKinds are the catalog kinds whose trashed rows sit in a
// twin table, in purge order. Tasks are trashed in place and handled
// separately.
var trashTwinKinds = []resource.Kind{
	resource.Target, resource.Config, resource.Scanner, resource.Schedule,
	resource.Alert, resource.Filter, resource.Tag, resource.Note,
	resource.Override, resource.Agent,
}
