// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/access"
	accesserrors "github.com/greenbone/gvmd/domain/access/errors"
	"github.com/greenbone/gvmd/internal/uuid"
)

// subjectTables names the tables behind one subject kind. Groups and
// roles are the same shape, down to the trashcan twins, so the state
// operations are written once against this.
type subjectTables struct {
	kind     resource.Kind
	live     string
	trash    string
	members  string
	membersT string
	memberFK string
	notFound errors.ConstError
}

var (
	groupTables = subjectTables{
		kind:     resource.Group,
		live:     "groups",
		trash:    "groups_trash",
		members:  "group_users",
		membersT: "group_users_trash",
		memberFK: "group_id",
		notFound: accesserrors.GroupNotFound,
	}
	roleTables = subjectTables{
		kind:     resource.Role,
		live:     "roles",
		trash:    "roles_trash",
		members:  "role_users",
		membersT: "role_users_trash",
		memberFK: "role_id",
		notFound: accesserrors.RoleNotFound,
	}
)

// dbID fetches a bare id column.
type dbID struct {
	ID int64 `db:"id"`
}

// dbSubjectRow maps a groups or roles row with its owner resolved to a
// UUID. Global rows resolve to the empty string.
type dbSubjectRow struct {
	UUID         string `db:"uuid"`
	OwnerUUID    string `db:"owner_uuid"`
	Name         string `db:"name"`
	Comment      string `db:"comment"`
	CreationTime int64  `db:"creation_time"`
}

// dbAddSubject is the insert shape for a new group or role.
type dbAddSubject struct {
	UUID             string `db:"uuid"`
	OwnerUUID        string `db:"owner_uuid"`
	Name             string `db:"name"`
	Comment          string `db:"comment"`
	CreationTime     int64  `db:"creation_time"`
	ModificationTime int64  `db:"modification_time"`
}

// userID resolves a user UUID to its row id.
func (st *State) userID(ctx context.Context, tx *sqlair.TX, userUUID string) (int64, error) {
	stmt, err := st.Prepare(`
SELECT id AS &dbID.id
FROM users
WHERE uuid = $M.uuid
`, dbID{}, sqlair.M{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	var row dbID
	err = tx.Query(ctx, stmt, sqlair.M{"uuid": userUUID}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return 0, errors.Annotatef(accesserrors.UserNotFound, "user %q", userUUID)
	}
	if err != nil {
		return 0, errors.Trace(err)
	}
	return row.ID, nil
}

// subjectID resolves a group or role UUID to its live row id.
func (st *State) subjectID(ctx context.Context, tx *sqlair.TX, tables subjectTables, subjectUUID string) (int64, error) {
	stmt, err := st.Prepare(fmt.Sprintf(`
SELECT id AS &dbID.id
FROM %s
WHERE uuid = $M.uuid
`, tables.live), dbID{}, sqlair.M{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	var row dbID
	err = tx.Query(ctx, stmt, sqlair.M{"uuid": subjectUUID}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return 0, errors.Annotatef(tables.notFound, "%s %q", tables.kind, subjectUUID)
	}
	if err != nil {
		return 0, errors.Trace(err)
	}
	return row.ID, nil
}

func (st *State) addSubject(ctx context.Context, tables subjectTables, subjectUUID uuid.UUID, ownerUUID, name, comment string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	stmt, err := st.Prepare(fmt.Sprintf(`
INSERT INTO %s (uuid, owner, name, comment, creation_time, modification_time)
VALUES ($dbAddSubject.uuid,
        CASE WHEN $dbAddSubject.owner_uuid = '' THEN NULL
             ELSE (SELECT id FROM users WHERE uuid = $dbAddSubject.owner_uuid) END,
        $dbAddSubject.name, $dbAddSubject.comment,
        $dbAddSubject.creation_time, $dbAddSubject.modification_time)
`, tables.live), dbAddSubject{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if ownerUUID != "" {
			// Resolve the owner up front so an unknown owner fails
			// rather than becoming a global row.
			if _, err := st.userID(ctx, tx, ownerUUID); err != nil {
				return errors.Trace(err)
			}
		}
		t := now()
		return errors.Trace(tx.Query(ctx, stmt, dbAddSubject{
			UUID:             subjectUUID.String(),
			OwnerUUID:        ownerUUID,
			Name:             name,
			Comment:          comment,
			CreationTime:     t,
			ModificationTime: t,
		}).Run())
	})
	return errors.Annotatef(err, "adding %s %q", tables.kind, name)
}

func (st *State) getSubject(ctx context.Context, tables subjectTables, subjectUUID string) (dbSubjectRow, error) {
	db, err := st.DB()
	if err != nil {
		return dbSubjectRow{}, errors.Trace(err)
	}

	stmt, err := st.Prepare(fmt.Sprintf(`
SELECT %[1]s.uuid AS &dbSubjectRow.uuid,
       COALESCE(owners.uuid, '') AS &dbSubjectRow.owner_uuid,
       %[1]s.name AS &dbSubjectRow.name,
       %[1]s.comment AS &dbSubjectRow.comment,
       %[1]s.creation_time AS &dbSubjectRow.creation_time
FROM %[1]s
LEFT JOIN users AS owners ON owners.id = %[1]s.owner
WHERE %[1]s.uuid = $M.uuid
`, tables.live), dbSubjectRow{}, sqlair.M{})
	if err != nil {
		return dbSubjectRow{}, errors.Trace(err)
	}

	var row dbSubjectRow
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, sqlair.M{"uuid": subjectUUID}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(tables.notFound, "%s %q", tables.kind, subjectUUID)
		}
		return errors.Trace(err)
	})
	return row, errors.Trace(err)
}

func (st *State) listSubjects(ctx context.Context, tables subjectTables) ([]dbSubjectRow, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	stmt, err := st.Prepare(fmt.Sprintf(`
SELECT %[1]s.uuid AS &dbSubjectRow.uuid,
       COALESCE(owners.uuid, '') AS &dbSubjectRow.owner_uuid,
       %[1]s.name AS &dbSubjectRow.name,
       %[1]s.comment AS &dbSubjectRow.comment,
       %[1]s.creation_time AS &dbSubjectRow.creation_time
FROM %[1]s
LEFT JOIN users AS owners ON owners.id = %[1]s.owner
ORDER BY %[1]s.id
`, tables.live), dbSubjectRow{})
	if err != nil {
		return nil, errors.Trace(err)
	}

	var rows []dbSubjectRow
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	return rows, errors.Trace(err)
}

// addMember puts the user into the group or role. Adding a member twice
// is not an error.
func (st *State) addMember(ctx context.Context, tx *sqlair.TX, tables subjectTables, subjectUUID, userUUID string) error {
	subjectID, err := st.subjectID(ctx, tx, tables, subjectUUID)
	if err != nil {
		return errors.Trace(err)
	}
	userID, err := st.userID(ctx, tx, userUUID)
	if err != nil {
		return errors.Trace(err)
	}

	stmt, err := st.Prepare(fmt.Sprintf(`
INSERT INTO %s (%s, user_id)
VALUES ($M.subject_id, $M.user_id)
ON CONFLICT DO NOTHING
`, tables.members, tables.memberFK), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(tx.Query(ctx, stmt, sqlair.M{
		"subject_id": subjectID,
		"user_id":    userID,
	}).Run())
}

func (st *State) removeMember(ctx context.Context, tx *sqlair.TX, tables subjectTables, subjectUUID, userUUID string) error {
	subjectID, err := st.subjectID(ctx, tx, tables, subjectUUID)
	if err != nil {
		return errors.Trace(err)
	}
	userID, err := st.userID(ctx, tx, userUUID)
	if err != nil {
		return errors.Trace(err)
	}

	stmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM %s
WHERE %s = $M.subject_id AND user_id = $M.user_id
`, tables.members, tables.memberFK), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(tx.Query(ctx, stmt, sqlair.M{
		"subject_id": subjectID,
		"user_id":    userID,
	}).Run())
}

// addRoleMember is the transaction-scoped role membership insert used
// when creating users.
func (st *State) addRoleMember(ctx context.Context, tx *sqlair.TX, roleUUID, userUUID string) error {
	return st.addMember(ctx, tx, roleTables, roleUUID, userUUID)
}

// trashSubject moves the group or role into its trashcan twin, along
// with its memberships, and repoints permission rows that name it as
// subject or resource at the trash row.
func (st *State) trashSubject(ctx context.Context, tables subjectTables, subjectUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	copyStmt, err := st.Prepare(fmt.Sprintf(`
INSERT INTO %s (uuid, owner, name, comment, creation_time, modification_time)
SELECT uuid, owner, name, comment, creation_time, $M.now
FROM %s
WHERE id = $M.id
`, tables.trash, tables.live), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	moveMembersStmt, err := st.Prepare(fmt.Sprintf(`
INSERT INTO %s (%s, user_id)
SELECT $M.trash_id, user_id
FROM %s
WHERE %s = $M.id
`, tables.membersT, tables.memberFK, tables.members, tables.memberFK), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	dropMembersStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM %s WHERE %s = $M.id
`, tables.members, tables.memberFK), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	subjectPermsStmt, err := st.Prepare(fmt.Sprintf(`
UPDATE permissions
SET subject = $M.trash_id, subject_location = %d, modification_time = $M.now
WHERE subject_type = '%s' AND subject = $M.id AND subject_location = %d
`, resource.LocationTrash, tables.kind, resource.LocationTable), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	resourcePermsStmt, err := st.Prepare(fmt.Sprintf(`
UPDATE permissions
SET resource = $M.trash_id, resource_location = %d, modification_time = $M.now
WHERE resource_type = '%s' AND resource = $M.id AND resource_location = %d
`, resource.LocationTrash, tables.kind, resource.LocationTable), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	dropStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM %s WHERE id = $M.id
`, tables.live), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		id, err := st.subjectID(ctx, tx, tables, subjectUUID)
		if err != nil {
			return errors.Trace(err)
		}
		t := now()

		var outcome sqlair.Outcome
		if err := tx.Query(ctx, copyStmt, sqlair.M{"id": id, "now": t}).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		trashID, err := outcome.Result().LastInsertId()
		if err != nil {
			return errors.Trace(err)
		}

		args := sqlair.M{"id": id, "trash_id": trashID, "now": t}
		if err := tx.Query(ctx, moveMembersStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, dropMembersStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, subjectPermsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, resourcePermsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Query(ctx, dropStmt, args).Run())
	})
	return errors.Annotatef(err, "trashing %s %q", tables.kind, subjectUUID)
}

// restoreSubject moves the group or role back out of the trashcan,
// reversing trashSubject.
func (st *State) restoreSubject(ctx context.Context, tables subjectTables, subjectUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	findStmt, err := st.Prepare(fmt.Sprintf(`
SELECT id AS &dbID.id
FROM %s
WHERE uuid = $M.uuid
`, tables.trash), dbID{}, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	copyStmt, err := st.Prepare(fmt.Sprintf(`
INSERT INTO %s (uuid, owner, name, comment, creation_time, modification_time)
SELECT uuid, owner, name, comment, creation_time, $M.now
FROM %s
WHERE id = $M.trash_id
`, tables.live, tables.trash), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	moveMembersStmt, err := st.Prepare(fmt.Sprintf(`
INSERT INTO %s (%s, user_id)
SELECT $M.live_id, user_id
FROM %s
WHERE %s = $M.trash_id
`, tables.members, tables.memberFK, tables.membersT, tables.memberFK), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	dropMembersStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM %s WHERE %s = $M.trash_id
`, tables.membersT, tables.memberFK), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	subjectPermsStmt, err := st.Prepare(fmt.Sprintf(`
UPDATE permissions
SET subject = $M.live_id, subject_location = %d, modification_time = $M.now
WHERE subject_type = '%s' AND subject = $M.trash_id AND subject_location = %d
`, resource.LocationTable, tables.kind, resource.LocationTrash), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	resourcePermsStmt, err := st.Prepare(fmt.Sprintf(`
UPDATE permissions
SET resource = $M.live_id, resource_location = %d, modification_time = $M.now
WHERE resource_type = '%s' AND resource = $M.trash_id AND resource_location = %d
`, resource.LocationTable, tables.kind, resource.LocationTrash), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	dropStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM %s WHERE id = $M.trash_id
`, tables.trash), sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var row dbID
		err := tx.Query(ctx, findStmt, sqlair.M{"uuid": subjectUUID}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(tables.notFound, "%s %q", tables.kind, subjectUUID)
		}
		if err != nil {
			return errors.Trace(err)
		}
		t := now()

		var outcome sqlair.Outcome
		if err := tx.Query(ctx, copyStmt, sqlair.M{"trash_id": row.ID, "now": t}).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		liveID, err := outcome.Result().LastInsertId()
		if err != nil {
			return errors.Trace(err)
		}

		args := sqlair.M{"trash_id": row.ID, "live_id": liveID, "now": t}
		if err := tx.Query(ctx, moveMembersStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, dropMembersStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, subjectPermsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, resourcePermsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Query(ctx, dropStmt, args).Run())
	})
	return errors.Annotatef(err, "restoring %s %q", tables.kind, subjectUUID)
}

// deleteSubject removes the group or role for good, from the live table
// or the trashcan, together with its memberships and every permission
// row that names it.
func (st *State) deleteSubject(ctx context.Context, tables subjectTables, subjectUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	findLive, err := st.Prepare(fmt.Sprintf(`
SELECT id AS &dbID.id FROM %s WHERE uuid = $M.uuid
`, tables.live), dbID{}, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}
	findTrash, err := st.Prepare(fmt.Sprintf(`
SELECT id AS &dbID.id FROM %s WHERE uuid = $M.uuid
`, tables.trash), dbID{}, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		location := resource.LocationTable
		table, members := tables.live, tables.members

		var row dbID
		err := tx.Query(ctx, findLive, sqlair.M{"uuid": subjectUUID}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			err = tx.Query(ctx, findTrash, sqlair.M{"uuid": subjectUUID}).Get(&row)
			if errors.Is(err, sqlair.ErrNoRows) {
				return errors.Annotatef(tables.notFound, "%s %q", tables.kind, subjectUUID)
			}
			location = resource.LocationTrash
			table, members = tables.trash, tables.membersT
		}
		if err != nil {
			return errors.Trace(err)
		}

		membersStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM %s WHERE %s = $M.id
`, members, tables.memberFK), sqlair.M{})
		if err != nil {
			return errors.Trace(err)
		}
		subjectPermsStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM permissions
WHERE subject_type = '%s' AND subject = $M.id AND subject_location = %d
`, tables.kind, location), sqlair.M{})
		if err != nil {
			return errors.Trace(err)
		}
		resourcePermsStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM permissions
WHERE resource_type = '%s' AND resource_uuid = $M.uuid
`, tables.kind), sqlair.M{})
		if err != nil {
			return errors.Trace(err)
		}
		dropStmt, err := st.Prepare(fmt.Sprintf(`
DELETE FROM %s WHERE id = $M.id
`, table), sqlair.M{})
		if err != nil {
			return errors.Trace(err)
		}

		args := sqlair.M{"id": row.ID, "uuid": subjectUUID}
		if err := tx.Query(ctx, membersStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, subjectPermsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, resourcePermsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Query(ctx, dropStmt, args).Run())
	})
	return errors.Annotatef(err, "deleting %s %q", tables.kind, subjectUUID)
}

// AddGroup adds a new group. An empty owner UUID makes the group global.
func (st *State) AddGroup(ctx context.Context, groupUUID uuid.UUID, ownerUUID, name, comment string) error {
	return st.addSubject(ctx, groupTables, groupUUID, ownerUUID, name, comment)
}

// GetGroup returns the group with the given UUID. If no such group
// exists an error satisfying [accesserrors.GroupNotFound] is returned.
func (st *State) GetGroup(ctx context.Context, groupUUID string) (access.Group, error) {
	row, err := st.getSubject(ctx, groupTables, groupUUID)
	if err != nil {
		return access.Group{}, errors.Trace(err)
	}
	return access.Group{
		UUID:      row.UUID,
		Owner:     row.OwnerUUID,
		Name:      row.Name,
		Comment:   row.Comment,
		CreatedAt: time.Unix(row.CreationTime, 0).UTC(),
	}, nil
}

// ListGroups returns every live group, in creation order.
func (st *State) ListGroups(ctx context.Context) ([]access.Group, error) {
	rows, err := st.listSubjects(ctx, groupTables)
	if err != nil {
		return nil, errors.Annotate(err, "listing groups")
	}
	groups := make([]access.Group, len(rows))
	for i, row := range rows {
		groups[i] = access.Group{
			UUID:      row.UUID,
			Owner:     row.OwnerUUID,
			Name:      row.Name,
			Comment:   row.Comment,
			CreatedAt: time.Unix(row.CreationTime, 0).UTC(),
		}
	}
	return groups, nil
}

// AddUserToGroup puts the user into the group. Adding a member twice is
// not an error.
func (st *State) AddUserToGroup(ctx context.Context, groupUUID, userUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(st.addMember(ctx, tx, groupTables, groupUUID, userUUID))
	})
	return errors.Annotatef(err, "adding user %q to group %q", userUUID, groupUUID)
}

// RemoveUserFromGroup takes the user out of the group.
func (st *State) RemoveUserFromGroup(ctx context.Context, groupUUID, userUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(st.removeMember(ctx, tx, groupTables, groupUUID, userUUID))
	})
	return errors.Annotatef(err, "removing user %q from group %q", userUUID, groupUUID)
}

// TrashGroup moves the group into the trashcan. Grants held through the
// group stop applying until it is restored.
func (st *State) TrashGroup(ctx context.Context, groupUUID string) error {
	return st.trashSubject(ctx, groupTables, groupUUID)
}

// RestoreGroup moves the group back out of the trashcan.
func (st *State) RestoreGroup(ctx context.Context, groupUUID string) error {
	return st.restoreSubject(ctx, groupTables, groupUUID)
}

// DeleteGroup removes the group for good, live or trashed, with its
// memberships and every permission row that names it.
func (st *State) DeleteGroup(ctx context.Context, groupUUID string) error {
	return st.deleteSubject(ctx, groupTables, groupUUID)
}

// AddRole adds a new role. An empty owner UUID makes the role global.
func (st *State) AddRole(ctx context.Context, roleUUID uuid.UUID, ownerUUID, name, comment string) error {
	return st.addSubject(ctx, roleTables, roleUUID, ownerUUID, name, comment)
}

// GetRole returns the role with the given UUID. If no such role exists
// an error satisfying [accesserrors.RoleNotFound] is returned.
func (st *State) GetRole(ctx context.Context, roleUUID string) (access.Role, error) {
	row, err := st.getSubject(ctx, roleTables, roleUUID)
	if err != nil {
		return access.Role{}, errors.Trace(err)
	}
	return access.Role{
		UUID:      row.UUID,
		Owner:     row.OwnerUUID,
		Name:      row.Name,
		Comment:   row.Comment,
		CreatedAt: time.Unix(row.CreationTime, 0).UTC(),
	}, nil
}

// ListRoles returns every live role, in creation order.
func (st *State) ListRoles(ctx context.Context) ([]access.Role, error) {
	rows, err := st.listSubjects(ctx, roleTables)
	if err != nil {
		return nil, errors.Annotate(err, "listing roles")
	}
	roles := make([]access.Role, len(rows))
	for i, row := range rows {
		roles[i] = access.Role{
			UUID:      row.UUID,
			Owner:     row.OwnerUUID,
			Name:      row.Name,
			Comment:   row.Comment,
			CreatedAt: time.Unix(row.CreationTime, 0).UTC(),
		}
	}
	return roles, nil
}

// AddUserToRole puts the user into the role. Adding a member twice is
// not an error.
func (st *State) AddUserToRole(ctx context.Context, roleUUID, userUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(st.addRoleMember(ctx, tx, roleUUID, userUUID))
	})
	return errors.Annotatef(err, "adding user %q to role %q", userUUID, roleUUID)
}

// RemoveUserFromRole takes the user out of the role.
func (st *State) RemoveUserFromRole(ctx context.Context, roleUUID, userUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(st.removeMember(ctx, tx, roleTables, roleUUID, userUUID))
	})
	return errors.Annotatef(err, "removing user %q from role %q", userUUID, roleUUID)
}

// UserHasRole reports whether the user is a member of the role.
func (st *State) UserHasRole(ctx context.Context, userUUID, roleUUID string) (bool, error) {
	db, err := st.DB()
	if err != nil {
		return false, errors.Trace(err)
	}

	stmt, err := st.Prepare(`
SELECT COUNT(*) AS &dbCount.count
FROM role_users
WHERE role_id = (SELECT id FROM roles WHERE uuid = $M.role_uuid)
  AND user_id = (SELECT id FROM users WHERE uuid = $M.user_uuid)
`, dbCount{}, sqlair.M{})
	if err != nil {
		return false, errors.Trace(err)
	}

	var count dbCount
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, sqlair.M{
			"role_uuid": roleUUID,
			"user_uuid": userUUID,
		}).Get(&count))
	})
	if err != nil {
		return false, errors.Annotatef(err, "checking role %q for user %q", roleUUID, userUUID)
	}
	return count.Count > 0, nil
}

// TrashRole moves the role into the trashcan. Grants held through the
// role stop applying until it is restored.
func (st *State) TrashRole(ctx context.Context, roleUUID string) error {
	return st.trashSubject(ctx, roleTables, roleUUID)
}

// RestoreRole moves the role back out of the trashcan.
func (st *State) RestoreRole(ctx context.Context, roleUUID string) error {
	return st.restoreSubject(ctx, roleTables, roleUUID)
}

// DeleteRole removes the role for good, live or trashed, with its
// memberships and every permission row that names it.
func (st *State) DeleteRole(ctx context.Context, roleUUID string) error {
	return st.deleteSubject(ctx, roleTables, roleUUID)
}
