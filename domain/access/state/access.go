// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"fmt"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/access"
)

// UserMay reports whether the caller may run the given command at all:
// some permission row grants it by name, on any resource, or the caller
// holds Everything. The internal caller may do anything.
func (st *State) UserMay(ctx context.Context, caller credential.Caller, cmd permission.Command) (bool, error) {
	if caller.Internal() {
		return true, nil
	}

	db, err := st.DB()
	if err != nil {
		return false, errors.Trace(err)
	}

	clause := access.UserMayClause(caller, cmd)
	query := fmt.Sprintf(`
SELECT COUNT(*) AS &dbCount.count
FROM permissions
WHERE %s`, clause.SQL)

	stmt, err := st.Prepare(query, dbCount{}, sqlair.M{})
	if err != nil {
		return false, errors.Trace(err)
	}

	var count dbCount
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, sqlair.M(clause.Args)).Get(&count))
	})
	if err != nil {
		return false, errors.Annotatef(err, "checking command %q for user %q", cmd, caller.UUID)
	}
	return count.Count > 0, nil
}

// CanEverything reports whether the user holds the global Everything
// permission, directly or through a group or role.
func (st *State) CanEverything(ctx context.Context, userUUID string) (bool, error) {
	db, err := st.DB()
	if err != nil {
		return false, errors.Trace(err)
	}

	clause := access.EverythingClause(userUUID)
	query := fmt.Sprintf(`
SELECT COUNT(*) AS &dbCount.count
FROM permissions
WHERE %s`, clause.SQL)

	stmt, err := st.Prepare(query, dbCount{}, sqlair.M{})
	if err != nil {
		return false, errors.Trace(err)
	}

	var count dbCount
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, sqlair.M(clause.Args)).Get(&count))
	})
	if err != nil {
		return false, errors.Annotatef(err, "checking Everything for user %q", userUUID)
	}
	return count.Count > 0, nil
}

// OwnsResource reports whether the caller owns the resource with the
// given UUID. Global rows are owned by everyone, SecInfo rows always,
// and results through the report they are part of.
func (st *State) OwnsResource(ctx context.Context, caller credential.Caller, kind resource.Kind, uuid string, location resource.Location) (bool, error) {
	return st.decide(ctx, caller, uuid, access.Request{
		Kind:          kind,
		Location:      location,
		OwnershipOnly: true,
	})
}

// HasAccess reports whether the caller may apply the command to the
// resource with the given UUID. Read commands are satisfied by
// ownership or any grant on the resource; other commands need a grant
// naming them. A missing row yields false, indistinguishable from
// denial.
func (st *State) HasAccess(ctx context.Context, caller credential.Caller, kind resource.Kind, uuid string, cmd permission.Command, location resource.Location) (bool, error) {
	var commands []permission.Command
	if !cmd.IsGetClass() {
		commands = []permission.Command{cmd}
	}
	return st.decide(ctx, caller, uuid, access.Request{
		Kind:     kind,
		Location: location,
		Commands: commands,
	})
}

// VisibleUUIDs returns the UUIDs of the rows of the given kind the
// caller may see, in insertion order. This is the bulk counterpart of
// HasAccess, compiled from the same rules.
func (st *State) VisibleUUIDs(ctx context.Context, caller credential.Caller, kind resource.Kind, filter access.ListFilter) ([]string, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	req := access.Request{
		Kind:       kind,
		Location:   filter.Location,
		Commands:   filter.Commands,
		OwnerName:  filter.OwnerName,
		Unfiltered: filter.Unfiltered,
	}
	clause := access.WhereClause(caller, req)
	table := req.Table()

	query := fmt.Sprintf(`
SELECT %s.uuid AS &dbUUID.uuid
FROM %s
WHERE %s
ORDER BY %s.id`, table, table, clause.SQL, table)

	// An always-true predicate binds nothing, and sqlair rejects
	// arguments the query does not reference.
	types := []any{dbUUID{}}
	var binds []any
	if len(clause.Args) > 0 {
		types = append(types, sqlair.M{})
		binds = append(binds, sqlair.M(clause.Args))
	}

	stmt, err := st.Prepare(query, types...)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var rows []dbUUID
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, binds...).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Annotatef(err, "listing visible %s", kind.Plural())
	}

	uuids := make([]string, len(rows))
	for i, row := range rows {
		uuids[i] = row.UUID
	}
	return uuids, nil
}

// decide runs the single-row form of a compiled predicate.
func (st *State) decide(ctx context.Context, caller credential.Caller, uuid string, req access.Request) (bool, error) {
	if caller.Internal() {
		return true, nil
	}
	if req.Kind.IsFeed() {
		return true, nil
	}

	db, err := st.DB()
	if err != nil {
		return false, errors.Trace(err)
	}

	clause := access.WhereClause(caller, req)
	table := req.Table()

	query := fmt.Sprintf(`
SELECT COUNT(*) AS &dbCount.count
FROM %s
WHERE %s.uuid = $M.acl_uuid
  AND %s`, table, table, clause.SQL)

	stmt, err := st.Prepare(query, dbCount{}, sqlair.M{})
	if err != nil {
		return false, errors.Trace(err)
	}

	args := sqlair.M(clause.Args)
	args["acl_uuid"] = uuid

	var count dbCount
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, args).Get(&count))
	})
	if err != nil {
		return false, errors.Annotatef(err, "checking access to %s %q", req.Kind, uuid)
	}
	return count.Count > 0, nil
}
