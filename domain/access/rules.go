// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package access

import (
	"fmt"
	"strings"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
)

// The access rules live here and nowhere else. Every decision, whether a
// single-row check or the visibility predicate spliced into a bulk list
// query, is compiled from the same rule set, so the two can never drift
// apart.

// rule is one way a caller can be allowed to act on a row. The rules of
// a decision form a disjunction: any satisfied rule grants access.
type rule int

const (
	// ruleAlways admits every caller. SecInfo rows belong to everyone.
	ruleAlways rule = iota

	// ruleOwner admits the row's owner. Rows without an owner are
	// global and belong to everyone. Results resolve their owner
	// through the report they are part of.
	ruleOwner

	// ruleEverything admits callers holding the Everything permission.
	ruleEverything

	// ruleGrant admits callers that a permission row grants the
	// required command on this very resource.
	ruleGrant

	// ruleTaskGrant admits callers granted the required command on the
	// task a report or result belongs to.
	ruleTaskGrant

	// ruleAffectsCaller admits callers that are the subject of the
	// permission row being read: a grant concerns those it applies to.
	ruleAffectsCaller
)

// rulesFor returns the rules deciding access to rows of the given kind.
// getClass selects the read rules, where any grant on a resource lets
// the caller see it.
func rulesFor(kind resource.Kind, getClass, trash, ownershipOnly bool) []rule {
	switch {
	case kind.IsFeed():
		return []rule{ruleAlways}
	case ownershipOnly:
		return []rule{ruleOwner}
	case trash:
		// The trashcan is private to the owner. Grants on a resource
		// stop applying the moment it is trashed.
		return []rule{ruleOwner}
	case kind == resource.Permission:
		if getClass {
			return []rule{ruleOwner, ruleEverything, ruleAffectsCaller}
		}
		// Nobody modifies another user's grants on the strength of a
		// grant; only Everything reaches that far.
		return []rule{ruleOwner, ruleEverything}
	case kind == resource.Report, kind == resource.Result:
		return []rule{ruleOwner, ruleEverything, ruleGrant, ruleTaskGrant}
	default:
		return []rule{ruleOwner, ruleEverything, ruleGrant}
	}
}

// Request describes one predicate to compile.
type Request struct {
	// Kind is the resource type the predicate ranges over.
	Kind resource.Kind

	// Location selects the live table or its trashcan twin.
	Location resource.Location

	// Commands are the grant names that satisfy the decision. Empty
	// means the read class: any grant on the resource counts.
	Commands []permission.Command

	// OwnerName restricts rows to those owned by the named user. Empty
	// or "any" applies no restriction.
	OwnerName string

	// OwnershipOnly ignores grants and Everything: only the owner
	// passes. Used for ownership checks and the trashcan.
	OwnershipOnly bool

	// Unfiltered skips access filtering entirely. Only for listings a
	// caller is separately known to be entitled to.
	Unfiltered bool
}

// Clause is a compiled SQL predicate along with its named bind
// arguments. The SQL references rows of the request's table by the
// table's own name and binds parameters through a sqlair.M map.
type Clause struct {
	SQL  string
	Args map[string]any
}

// trueClause admits everything.
func trueClause() Clause {
	return Clause{SQL: "1 = 1", Args: map[string]any{}}
}

// callerID is the scalar subquery resolving the bound caller UUID to a
// user id. An unknown UUID resolves to NULL and matches nothing.
const callerID = "(SELECT id FROM users WHERE uuid = $M.acl_caller_uuid)"

// Table returns the table the request's predicate ranges over.
func (r Request) Table() string {
	if r.Location == resource.LocationTrash && !r.Kind.TrashInPlace() {
		return r.Kind.TrashTable()
	}
	return r.Kind.Table()
}

// WhereClause compiles the access predicate for the request. The
// internal caller, and unfiltered requests, compile to an always-true
// predicate.
func WhereClause(caller credential.Caller, req Request) Clause {
	if caller.Internal() || req.Unfiltered {
		return trueClause()
	}

	table := req.Table()
	trash := req.Location == resource.LocationTrash
	getClass := len(req.Commands) == 0

	args := map[string]any{"acl_caller_uuid": caller.UUID}

	var parts []string
	for _, rl := range rulesFor(req.Kind, getClass, trash, req.OwnershipOnly) {
		switch rl {
		case ruleAlways:
			return trueClause()
		case ruleOwner:
			parts = append(parts, ownerSQL(req.Kind, table))
		case ruleEverything:
			parts = append(parts, everythingSQL())
		case ruleGrant:
			parts = append(parts, grantSQL(req.Kind, table, req.Commands, args))
		case ruleTaskGrant:
			parts = append(parts, taskGrantSQL(table, req.Commands, args))
		case ruleAffectsCaller:
			parts = append(parts, subjectSQL(table))
		}
	}

	sql := "(" + strings.Join(parts, "\n    OR ") + ")"

	// Tasks are trashed in place, so the location guard is part of the
	// predicate rather than of the table choice.
	if req.Kind.TrashInPlace() {
		if trash {
			sql = fmt.Sprintf("(%s.hidden = 2 AND %s)", table, sql)
		} else {
			sql = fmt.Sprintf("(%s.hidden < 2 AND %s)", table, sql)
		}
	}

	if req.OwnerName != "" && req.OwnerName != "any" && req.Kind.HasOwner() {
		sql = fmt.Sprintf(
			"(%s AND %s.owner = (SELECT id FROM users WHERE name = $M.acl_owner_name))",
			sql, table)
		args["acl_owner_name"] = req.OwnerName
	}

	return Clause{SQL: sql, Args: args}
}

// ownerSQL admits the row's owner, or everyone when the row is global.
func ownerSQL(kind resource.Kind, table string) string {
	switch kind {
	case resource.Result:
		// Results have no owner column; the report they are part of
		// decides.
		return fmt.Sprintf(`EXISTS (
    SELECT 1 FROM report_results, reports
    WHERE report_results.result = %s.id
      AND reports.id = report_results.report
      AND (reports.owner IS NULL OR reports.owner = %s))`, table, callerID)
	case resource.User:
		// Every user owns themselves, whoever created the account.
		return fmt.Sprintf("(%s.uuid = $M.acl_caller_uuid OR %s.owner IS NULL OR %s.owner = %s)",
			table, table, table, callerID)
	}
	return fmt.Sprintf("(%s.owner IS NULL OR %s.owner = %s)", table, table, callerID)
}

// subjectSQL matches permission rows of the given alias whose subject is
// the caller, directly or through a group or role. A subject sitting in
// the trashcan grants nothing.
func subjectSQL(alias string) string {
	return fmt.Sprintf(`(%[1]s.subject_location = %[3]d
     AND ((%[1]s.subject_type = 'user' AND %[1]s.subject = %[2]s)
      OR (%[1]s.subject_type = 'group' AND %[1]s.subject IN (
          SELECT group_id FROM group_users WHERE user_id = %[2]s))
      OR (%[1]s.subject_type = 'role' AND %[1]s.subject IN (
          SELECT role_id FROM role_users WHERE user_id = %[2]s))))`,
		alias, callerID, resource.LocationTable)
}

// everythingSQL admits callers holding the global Everything permission.
func everythingSQL() string {
	return fmt.Sprintf(`EXISTS (
    SELECT 1 FROM permissions
    WHERE permissions.name = 'Everything'
      AND permissions.resource = 0
      AND %s)`, subjectSQL("permissions"))
}

// nameSQL matches permission names against the required commands. With
// no commands the decision is read-class and any grant name counts.
func nameSQL(commands []permission.Command, args map[string]any) string {
	var parts []string
	for i, cmd := range commands {
		if cmd == permission.Any {
			return ""
		}
		key := fmt.Sprintf("acl_command_%d", i)
		args[key] = string(cmd)
		parts = append(parts, fmt.Sprintf("permissions.name = $M.%s", key))
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n      AND (" + strings.Join(parts, " OR ") + ")"
}

// grantSQL admits callers that a live permission row grants one of the
// commands on the row's resource.
func grantSQL(kind resource.Kind, table string, commands []permission.Command, args map[string]any) string {
	return fmt.Sprintf(`EXISTS (
    SELECT 1 FROM permissions
    WHERE permissions.resource_uuid = %s.uuid
      AND permissions.resource_type = '%s'
      AND permissions.resource_location = %d%s
      AND %s)`,
		table, kind, resource.LocationTable,
		nameSQL(commands, args), subjectSQL("permissions"))
}

// taskGrantSQL admits callers granted one of the commands on the task
// the row belongs to. Reports and results both carry a task reference.
func taskGrantSQL(table string, commands []permission.Command, args map[string]any) string {
	return fmt.Sprintf(`EXISTS (
    SELECT 1 FROM permissions, tasks
    WHERE tasks.id = %s.task
      AND permissions.resource_uuid = tasks.uuid
      AND permissions.resource_type = 'task'
      AND permissions.resource_location = %d%s
      AND %s)`,
		table, resource.LocationTable,
		nameSQL(commands, args), subjectSQL("permissions"))
}

// UserMayClause compiles the command-level predicate: whether a global
// permission row grants the caller the command by name. Read commands
// alias each other, so any global read grant admits any read command;
// the Everything permission passes every command.
func UserMayClause(caller credential.Caller, cmd permission.Command) Clause {
	if caller.Internal() {
		return trueClause()
	}
	args := map[string]any{
		"acl_caller_uuid": caller.UUID,
		"acl_command":     string(cmd),
	}
	name := "permissions.name = $M.acl_command"
	if cmd.IsGetClass() {
		name = "(permissions.name = $M.acl_command OR substr(permissions.name, 1, 4) = 'get_')"
	}
	sql := fmt.Sprintf(`permissions.resource = 0
  AND (%s OR permissions.name = 'Everything')
  AND %s`, name, subjectSQL("permissions"))
	return Clause{SQL: sql, Args: args}
}

// EverythingClause compiles the predicate matching the caller's global
// Everything grants.
func EverythingClause(callerUUID string) Clause {
	return Clause{
		SQL: fmt.Sprintf(`permissions.name = 'Everything'
  AND permissions.resource = 0
  AND %s`, subjectSQL("permissions")),
		Args: map[string]any{"acl_caller_uuid": callerUUID},
	}
}
