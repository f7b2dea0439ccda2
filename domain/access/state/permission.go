// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/access"
	accesserrors "github.com/greenbone/gvmd/domain/access/errors"
	internaldatabase "github.com/greenbone/gvmd/internal/database"
	"github.com/greenbone/gvmd/internal/uuid"
)

// dbPermissionRow maps a permissions row with its owner and subject
// resolved to UUIDs. The subject joins cover both locations, so rows
// whose subject sits in the trashcan still read back whole.
type dbPermissionRow struct {
	UUID         string `db:"uuid"`
	OwnerUUID    string `db:"owner_uuid"`
	Name         string `db:"name"`
	Comment      string `db:"comment"`
	ResourceType string `db:"resource_type"`
	ResourceUUID string `db:"resource_uuid"`
	SubjectType  string `db:"subject_type"`
	SubjectUUID  string `db:"subject_uuid"`
	CreationTime int64  `db:"creation_time"`
}

func (p dbPermissionRow) toAccessPermission() access.Permission {
	return access.Permission{
		UUID:         p.UUID,
		Owner:        p.OwnerUUID,
		Name:         permission.Command(p.Name),
		Comment:      p.Comment,
		ResourceKind: resource.Kind(p.ResourceType),
		ResourceUUID: p.ResourceUUID,
		SubjectType:  access.SubjectType(p.SubjectType),
		SubjectUUID:  p.SubjectUUID,
		CreatedAt:    time.Unix(p.CreationTime, 0).UTC(),
	}
}

// dbAddPermission is the insert shape for a new permission.
type dbAddPermission struct {
	UUID             string        `db:"uuid"`
	Owner            sql.NullInt64 `db:"owner"`
	Name             string        `db:"name"`
	Comment          string        `db:"comment"`
	ResourceType     string        `db:"resource_type"`
	Resource         int64         `db:"resource"`
	ResourceUUID     string        `db:"resource_uuid"`
	ResourceLocation int           `db:"resource_location"`
	SubjectType      string        `db:"subject_type"`
	Subject          int64         `db:"subject"`
	SubjectLocation  int           `db:"subject_location"`
	CreationTime     int64         `db:"creation_time"`
	ModificationTime int64         `db:"modification_time"`
}

// permissionSelect is the column list shared by the permission reads.
// The read ranges over %[1]s, either permissions or its trashcan twin.
func permissionSelect(table string) string {
	return fmt.Sprintf(`
SELECT %[1]s.uuid AS &dbPermissionRow.uuid,
       COALESCE(owners.uuid, '') AS &dbPermissionRow.owner_uuid,
       %[1]s.name AS &dbPermissionRow.name,
       %[1]s.comment AS &dbPermissionRow.comment,
       %[1]s.resource_type AS &dbPermissionRow.resource_type,
       %[1]s.resource_uuid AS &dbPermissionRow.resource_uuid,
       %[1]s.subject_type AS &dbPermissionRow.subject_type,
       COALESCE(su.uuid, sg.uuid, sgt.uuid, sr.uuid, srt.uuid, '') AS &dbPermissionRow.subject_uuid,
       %[1]s.creation_time AS &dbPermissionRow.creation_time
FROM %[1]s
LEFT JOIN users AS owners ON owners.id = %[1]s.owner
LEFT JOIN users AS su
       ON %[1]s.subject_type = 'user' AND su.id = %[1]s.subject
LEFT JOIN groups AS sg
       ON %[1]s.subject_type = 'group' AND %[1]s.subject_location = %[2]d AND sg.id = %[1]s.subject
LEFT JOIN groups_trash AS sgt
       ON %[1]s.subject_type = 'group' AND %[1]s.subject_location = %[3]d AND sgt.id = %[1]s.subject
LEFT JOIN roles AS sr
       ON %[1]s.subject_type = 'role' AND %[1]s.subject_location = %[2]d AND sr.id = %[1]s.subject
LEFT JOIN roles_trash AS srt
       ON %[1]s.subject_type = 'role' AND %[1]s.subject_location = %[3]d AND srt.id = %[1]s.subject`,
		table, resource.LocationTable, resource.LocationTrash)
}

// permissionSubjectID resolves the subject of a permission to a row id
// in the table its type names. A missing subject yields an error
// satisfying [accesserrors.SubjectNotFound].
func (st *State) permissionSubjectID(ctx context.Context, tx *sqlair.TX, subjectType access.SubjectType, subjectUUID string) (int64, error) {
	var table string
	switch subjectType {
	case access.SubjectUser:
		table = "users"
	case access.SubjectGroup:
		table = "groups"
	case access.SubjectRole:
		table = "roles"
	default:
		return 0, errors.Annotatef(accesserrors.SubjectTypeNotValid, "%q", subjectType)
	}

	stmt, err := st.Prepare(fmt.Sprintf(`
SELECT id AS &dbID.id
FROM %s
WHERE uuid = $M.uuid
`, table), dbID{}, sqlair.M{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	var row dbID
	err = tx.Query(ctx, stmt, sqlair.M{"uuid": subjectUUID}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return 0, errors.Annotatef(accesserrors.SubjectNotFound, "%s %q", subjectType, subjectUUID)
	}
	if err != nil {
		return 0, errors.Trace(err)
	}
	return row.ID, nil
}

// resourceID resolves a live resource UUID to its row id.
func (st *State) resourceID(ctx context.Context, tx *sqlair.TX, kind resource.Kind, resourceUUID string) (int64, error) {
	stmt, err := st.Prepare(fmt.Sprintf(`
SELECT id AS &dbID.id
FROM %s
WHERE uuid = $M.uuid
`, kind.Table()), dbID{}, sqlair.M{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	var row dbID
	err = tx.Query(ctx, stmt, sqlair.M{"uuid": resourceUUID}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return 0, errors.NotFoundf("%s %q", kind, resourceUUID)
	}
	if err != nil {
		return 0, errors.Trace(err)
	}
	return row.ID, nil
}

// CreatePermission records a new grant. The subject must exist, and so
// must the resource when the grant is tied to one; an empty resource
// kind makes a global command grant. An empty owner UUID makes the
// grant global, which is how the predefined role grants are stored.
func (st *State) CreatePermission(ctx context.Context, permissionUUID uuid.UUID, ownerUUID string, spec access.PermissionSpec) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	insertStmt, err := st.Prepare(`
INSERT INTO permissions (uuid, owner, name, comment,
                         resource_type, resource, resource_uuid, resource_location,
                         subject_type, subject, subject_location,
                         creation_time, modification_time)
VALUES ($dbAddPermission.uuid, $dbAddPermission.owner, $dbAddPermission.name, $dbAddPermission.comment,
        $dbAddPermission.resource_type, $dbAddPermission.resource, $dbAddPermission.resource_uuid,
        $dbAddPermission.resource_location,
        $dbAddPermission.subject_type, $dbAddPermission.subject, $dbAddPermission.subject_location,
        $dbAddPermission.creation_time, $dbAddPermission.modification_time)
`, dbAddPermission{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row := dbAddPermission{
			UUID:    permissionUUID.String(),
			Name:    string(spec.Name),
			Comment: spec.Comment,
		}

		if ownerUUID != "" {
			ownerID, err := st.userID(ctx, tx, ownerUUID)
			if err != nil {
				return errors.Trace(err)
			}
			row.Owner = sql.NullInt64{Int64: ownerID, Valid: true}
		}

		subjectID, err := st.permissionSubjectID(ctx, tx, spec.SubjectType, spec.SubjectUUID)
		if err != nil {
			return errors.Trace(err)
		}
		row.SubjectType = string(spec.SubjectType)
		row.Subject = subjectID
		row.SubjectLocation = int(resource.LocationTable)

		if spec.ResourceKind != "" {
			resourceID, err := st.resourceID(ctx, tx, spec.ResourceKind, spec.ResourceUUID)
			if err != nil {
				return errors.Trace(err)
			}
			row.ResourceType = string(spec.ResourceKind)
			row.Resource = resourceID
			row.ResourceUUID = spec.ResourceUUID
			row.ResourceLocation = int(resource.LocationTable)
		}

		t := now()
		row.CreationTime = t
		row.ModificationTime = t

		if err := tx.Query(ctx, insertStmt, row).Run(); err != nil {
			if internaldatabase.IsErrConstraintUnique(err) {
				return errors.Annotatef(accesserrors.PermissionAlreadyExists, "permission %q", permissionUUID)
			}
			return errors.Trace(err)
		}
		return nil
	})
	return errors.Annotatef(err, "creating permission %q", spec.Name)
}

// GetPermission returns the permission with the given UUID, from the
// live table or the trashcan. If no such permission exists an error
// satisfying [accesserrors.PermissionNotFound] is returned.
func (st *State) GetPermission(ctx context.Context, permissionUUID string, location resource.Location) (access.Permission, error) {
	db, err := st.DB()
	if err != nil {
		return access.Permission{}, errors.Trace(err)
	}

	table := "permissions"
	if location == resource.LocationTrash {
		table = "permissions_trash"
	}

	stmt, err := st.Prepare(fmt.Sprintf(`%s
WHERE %s.uuid = $M.uuid
`, permissionSelect(table), table), dbPermissionRow{}, sqlair.M{})
	if err != nil {
		return access.Permission{}, errors.Trace(err)
	}

	var row dbPermissionRow
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, sqlair.M{"uuid": permissionUUID}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(accesserrors.PermissionNotFound, "permission %q", permissionUUID)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return access.Permission{}, errors.Trace(err)
	}
	return row.toAccessPermission(), nil
}

// ListPermissions returns the permissions visible to the caller under
// the filter, in creation order. Visibility is the compiled predicate,
// so a caller sees its own grants, those it is the subject of, and,
// with Everything, all of them.
func (st *State) ListPermissions(ctx context.Context, caller credential.Caller, filter access.ListFilter) ([]access.Permission, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	req := access.Request{
		Kind:       resource.Permission,
		Location:   filter.Location,
		Commands:   filter.Commands,
		OwnerName:  filter.OwnerName,
		Unfiltered: filter.Unfiltered,
	}
	clause := access.WhereClause(caller, req)
	table := req.Table()

	// An always-true predicate binds nothing, and sqlair rejects
	// arguments the query does not reference.
	types := []any{dbPermissionRow{}}
	var binds []any
	if len(clause.Args) > 0 {
		types = append(types, sqlair.M{})
		binds = append(binds, sqlair.M(clause.Args))
	}

	stmt, err := st.Prepare(fmt.Sprintf(`%s
WHERE %s
ORDER BY %s.id
`, permissionSelect(table), clause.SQL, table), types...)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var rows []dbPermissionRow
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, binds...).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Annotate(err, "listing permissions")
	}

	permissions := make([]access.Permission, len(rows))
	for i, row := range rows {
		permissions[i] = row.toAccessPermission()
	}
	return permissions, nil
}

// TrashPermission moves the permission into the trashcan, where it
// grants nothing until restored.
func (st *State) TrashPermission(ctx context.Context, permissionUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	copyStmt, err := st.Prepare(`
INSERT INTO permissions_trash (uuid, owner, name, comment,
                               resource_type, resource, resource_uuid, resource_location,
                               subject_type, subject, subject_location,
                               creation_time, modification_time)
SELECT uuid, owner, name, comment,
       resource_type, resource, resource_uuid, resource_location,
       subject_type, subject, subject_location,
       creation_time, $M.now
FROM permissions
WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	dropStmt, err := st.Prepare(`
DELETE FROM permissions WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		args := sqlair.M{"uuid": permissionUUID, "now": now()}
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, copyStmt, args).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(accesserrors.PermissionNotFound, "permission %q", permissionUUID)
		}
		return errors.Trace(tx.Query(ctx, dropStmt, args).Run())
	})
	return errors.Annotatef(err, "trashing permission %q", permissionUUID)
}

// RestorePermission moves the permission back out of the trashcan.
func (st *State) RestorePermission(ctx context.Context, permissionUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	copyStmt, err := st.Prepare(`
INSERT INTO permissions (uuid, owner, name, comment,
                         resource_type, resource, resource_uuid, resource_location,
                         subject_type, subject, subject_location,
                         creation_time, modification_time)
SELECT uuid, owner, name, comment,
       resource_type, resource, resource_uuid, resource_location,
       subject_type, subject, subject_location,
       creation_time, $M.now
FROM permissions_trash
WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	dropStmt, err := st.Prepare(`
DELETE FROM permissions_trash WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		args := sqlair.M{"uuid": permissionUUID, "now": now()}
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, copyStmt, args).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(accesserrors.PermissionNotFound, "permission %q", permissionUUID)
		}
		return errors.Trace(tx.Query(ctx, dropStmt, args).Run())
	})
	return errors.Annotatef(err, "restoring permission %q", permissionUUID)
}

// DeletePermission removes the permission for good, live or trashed.
func (st *State) DeletePermission(ctx context.Context, permissionUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	liveStmt, err := st.Prepare(`
DELETE FROM permissions WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}
	trashStmt, err := st.Prepare(`
DELETE FROM permissions_trash WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		args := sqlair.M{"uuid": permissionUUID}
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, liveStmt, args).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected > 0 {
			return nil
		}
		if err := tx.Query(ctx, trashStmt, args).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		if affected, err = outcome.Result().RowsAffected(); err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(accesserrors.PermissionNotFound, "permission %q", permissionUUID)
		}
		return nil
	})
	return errors.Annotatef(err, "deleting permission %q", permissionUUID)
}
