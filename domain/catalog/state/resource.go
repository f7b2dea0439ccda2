// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/collections/transform"
	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/access"
	accesserrors "github.com/greenbone/gvmd/domain/access/errors"
	"github.com/greenbone/gvmd/domain/catalog"
	catalogerrors "github.com/greenbone/gvmd/domain/catalog/errors"
	"github.com/greenbone/gvmd/internal/uuid"
)

// Create inserts a new live row of the kind. An empty owner UUID makes
// the row global. Reference attributes are resolved to row ids up
// front, so a dangling reference fails instead of silently unsetting.
func (st *State) Create(ctx context.Context, resourceUUID uuid.UUID, ownerUUID string, kind resource.Kind, spec catalog.CreateSpec) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	attrs := attributeMap(kind)
	keys := make([]string, 0, len(spec.Attributes))
	for k := range spec.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var owner sql.NullInt64
		if ownerUUID != "" {
			id, err := rowID(ctx, tx, "users", ownerUUID)
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Annotatef(accesserrors.UserNotFound, "user %q", ownerUUID)
			}
			if err != nil {
				return errors.Trace(err)
			}
			owner = sql.NullInt64{Int64: id, Valid: true}
		}

		t := now()
		cols := []string{"uuid", "owner", "name", "comment", "creation_time", "modification_time"}
		args := []any{resourceUUID.String(), owner, spec.Name, spec.Comment, t, t}
		for _, k := range keys {
			v := spec.Attributes[k]
			if ref := attrs[k].Ref; ref != "" {
				if v == "" {
					continue
				}
				id, err := rowID(ctx, tx, ref.Table(), v)
				if errors.Is(err, sql.ErrNoRows) {
					return errors.Annotatef(catalogerrors.NotFound, "%s %q", ref, v)
				}
				if err != nil {
					return errors.Trace(err)
				}
				cols = append(cols, k)
				args = append(args, id)
				continue
			}
			cols = append(cols, k)
			args = append(args, v)
		}

		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES (%s)`, kind.Table(), strings.Join(cols, ", "), marks), args...)
		return errors.Trace(err)
	})
	return errors.Annotatef(err, "creating %s %q", kind, spec.Name)
}

// envelopeQuery builds the shared-column read for the kind. Columns
// the kind's table lacks read as empty, and rows without their own
// modification time fall back to the creation time.
func envelopeQuery(kind resource.Kind, table string) string {
	owner := "''"
	if kind.HasOwner() {
		owner = fmt.Sprintf(
			"COALESCE((SELECT uuid FROM users WHERE users.id = %s.owner), '')", table)
	}
	name := "''"
	if hasName(kind) {
		name = table + ".name"
	}
	comment := "''"
	if hasComment(kind) {
		comment = table + ".comment"
	}
	modified := table + ".creation_time"
	if hasModTime(kind) {
		modified = table + ".modification_time"
	}
	return fmt.Sprintf(`
SELECT %[1]s.uuid, %[2]s, %[3]s, %[4]s, %[1]s.creation_time, %[5]s
FROM %[1]s`, table, owner, name, comment, modified)
}

// attributeQuery builds the kind specific column read, in registry
// order. Reference columns resolve back to the referenced row's UUID.
// Kinds without attributes yield an empty query.
func attributeQuery(kind resource.Kind, table string) (string, []string) {
	attrs := catalog.Attributes(kind)
	if len(attrs) == 0 {
		return "", nil
	}
	cols := make([]string, len(attrs))
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
		if a.Ref != "" {
			cols[i] = fmt.Sprintf("(SELECT uuid FROM %[1]s WHERE %[1]s.id = %[2]s.%[3]s)",
				a.Ref.Table(), table, a.Name)
			continue
		}
		cols[i] = fmt.Sprintf("%s.%s", table, a.Name)
	}
	return fmt.Sprintf(`
SELECT %s
FROM %s`, strings.Join(cols, ", "), table), names
}

// taskGuard restricts task reads to the requested side of the hidden
// marker. Other kinds sit in separate tables and need no guard.
func taskGuard(kind resource.Kind, table string, location resource.Location) string {
	if !kind.TrashInPlace() {
		return ""
	}
	if location == resource.LocationTrash {
		return fmt.Sprintf(" AND %s.hidden = 2", table)
	}
	return fmt.Sprintf(" AND %s.hidden < 2", table)
}

// Get returns the resource with the given UUID, envelope and
// attributes. If no such row exists at the location an error
// satisfying [catalogerrors.NotFound] is returned.
func (st *State) Get(ctx context.Context, kind resource.Kind, resourceUUID string, location resource.Location) (catalog.Resource, error) {
	db, err := st.DB()
	if err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}

	table := tableFor(kind, location)
	guard := taskGuard(kind, table, location)
	envelope := fmt.Sprintf("%s\nWHERE %s.uuid = ?%s", envelopeQuery(kind, table), table, guard)
	attrQuery, attrNames := attributeQuery(kind, table)

	var res catalog.Resource
	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var rowUUID, owner, name, comment string
		var created, modified int64
		err := tx.QueryRowContext(ctx, envelope, resourceUUID).Scan(
			&rowUUID, &owner, &name, &comment, &created, &modified)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
		}
		if err != nil {
			return errors.Trace(err)
		}

		var attributes map[string]string
		if attrQuery != "" {
			vals := make([]sql.NullString, len(attrNames))
			ptrs := make([]any, len(vals))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			query := fmt.Sprintf("%s\nWHERE %s.uuid = ?%s", attrQuery, table, guard)
			if err := tx.QueryRowContext(ctx, query, resourceUUID).Scan(ptrs...); err != nil {
				return errors.Trace(err)
			}
			for i, name := range attrNames {
				if !vals[i].Valid || vals[i].String == "" {
					continue
				}
				if attributes == nil {
					attributes = make(map[string]string)
				}
				attributes[name] = vals[i].String
			}
		}

		createdAt := time.Unix(created, 0).UTC()
		modifiedAt := createdAt
		if modified != 0 {
			modifiedAt = time.Unix(modified, 0).UTC()
		}
		res = catalog.Resource{
			UUID:       rowUUID,
			Kind:       kind,
			Owner:      owner,
			Name:       name,
			Comment:    comment,
			Attributes: attributes,
			CreatedAt:  createdAt,
			ModifiedAt: modifiedAt,
		}
		return nil
	})
	if err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	return res, nil
}

// Modify updates the named envelope fields and attributes of the live
// row and bumps its modification time. If no such row exists an error
// satisfying [catalogerrors.NotFound] is returned.
func (st *State) Modify(ctx context.Context, kind resource.Kind, resourceUUID string, spec catalog.ModifySpec) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	attrs := attributeMap(kind)
	keys := make([]string, 0, len(spec.Attributes))
	for k := range spec.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := kind.Table()
	guard := taskGuard(kind, table, resource.LocationTable)

	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		sets := []string{"modification_time = ?"}
		args := []any{now()}
		if spec.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *spec.Name)
		}
		if spec.Comment != nil {
			sets = append(sets, "comment = ?")
			args = append(args, *spec.Comment)
		}
		for _, k := range keys {
			v := spec.Attributes[k]
			if ref := attrs[k].Ref; ref != "" {
				if v == "" {
					sets = append(sets, k+" = NULL")
					continue
				}
				id, err := rowID(ctx, tx, ref.Table(), v)
				if errors.Is(err, sql.ErrNoRows) {
					return errors.Annotatef(catalogerrors.NotFound, "%s %q", ref, v)
				}
				if err != nil {
					return errors.Trace(err)
				}
				sets = append(sets, k+" = ?")
				args = append(args, id)
				continue
			}
			sets = append(sets, k+" = ?")
			args = append(args, v)
		}

		result, err := tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s
SET %s
WHERE uuid = ?%s`, table, strings.Join(sets, ", "), guard), append(args, resourceUUID)...)
		if err != nil {
			return errors.Trace(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if n == 0 {
			return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
		}
		return nil
	})
	return errors.Annotatef(err, "modifying %s %q", kind, resourceUUID)
}

// dbResourceRow maps the envelope columns of a listing. Columns a kind
// lacks are simply not selected and stay zero.
type dbResourceRow struct {
	UUID             string `db:"uuid"`
	OwnerUUID        string `db:"owner_uuid"`
	Name             string `db:"name"`
	Comment          string `db:"comment"`
	CreationTime     int64  `db:"creation_time"`
	ModificationTime int64  `db:"modification_time"`
}

func (row dbResourceRow) toResource(kind resource.Kind) catalog.Resource {
	created := time.Unix(row.CreationTime, 0).UTC()
	modified := created
	if row.ModificationTime != 0 {
		modified = time.Unix(row.ModificationTime, 0).UTC()
	}
	return catalog.Resource{
		UUID:       row.UUID,
		Kind:       kind,
		Owner:      row.OwnerUUID,
		Name:       row.Name,
		Comment:    row.Comment,
		CreatedAt:  created,
		ModifiedAt: modified,
	}
}

// listSelect builds the sqlair envelope read for the kind, skipping
// columns its table lacks.
func listSelect(kind resource.Kind, table string) string {
	cols := []string{fmt.Sprintf("%s.uuid AS &dbResourceRow.uuid", table)}
	if kind.HasOwner() {
		cols = append(cols, "COALESCE(owners.uuid, '') AS &dbResourceRow.owner_uuid")
	}
	if hasName(kind) {
		cols = append(cols, fmt.Sprintf("%s.name AS &dbResourceRow.name", table))
	}
	if hasComment(kind) {
		cols = append(cols, fmt.Sprintf("%s.comment AS &dbResourceRow.comment", table))
	}
	cols = append(cols, fmt.Sprintf("%s.creation_time AS &dbResourceRow.creation_time", table))
	if hasModTime(kind) {
		cols = append(cols, fmt.Sprintf("%s.modification_time AS &dbResourceRow.modification_time", table))
	}

	query := "SELECT " + strings.Join(cols, ",\n       ") + "\nFROM " + table
	if kind.HasOwner() {
		query += fmt.Sprintf("\nLEFT JOIN users AS owners ON owners.id = %s.owner", table)
	}
	return query
}

// List returns the envelopes of the rows of the kind the caller may
// see, in insertion order. The access predicate is compiled from the
// same rules as the single-row checks and spliced into the query, so
// the listing returns exactly the rows those checks would allow.
func (st *State) List(ctx context.Context, caller credential.Caller, kind resource.Kind, filter catalog.ListFilter) ([]catalog.Resource, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	req := access.Request{
		Kind:       kind,
		Location:   filter.Location,
		OwnerName:  filter.OwnerName,
		Unfiltered: filter.Unfiltered,
	}
	clause := access.WhereClause(caller, req)
	table := req.Table()

	where := clause.SQL
	if kind.TrashInPlace() {
		// The compiled predicate guards hidden for external callers,
		// but the internal caller compiles to an always-true clause.
		if filter.Location == resource.LocationTrash {
			where = fmt.Sprintf("%s.hidden = 2 AND %s", table, where)
		} else {
			where = fmt.Sprintf("%s.hidden < 2 AND %s", table, where)
		}
	}

	query := fmt.Sprintf(`%s
WHERE %s
ORDER BY %s.id`, listSelect(kind, table), where, table)

	// An always-true predicate binds nothing, and sqlair rejects
	// arguments the query does not reference.
	types := []any{dbResourceRow{}}
	var binds []any
	if len(clause.Args) > 0 {
		types = append(types, sqlair.M{})
		binds = append(binds, sqlair.M(clause.Args))
	}

	stmt, err := st.Prepare(query, types...)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var rows []dbResourceRow
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, binds...).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Annotatef(err, "listing %s", kind.Plural())
	}

	return transform.Slice(rows, func(row dbResourceRow) catalog.Resource {
		return row.toResource(kind)
	}), nil
}
