// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/resource"
	catalogerrors "github.com/greenbone/gvmd/domain/catalog/errors"
)

// checkNotInUse refuses to remove a row that live rows still refer to.
// The live tables enforce the same with foreign keys; this turns the
// constraint violation into a clean error first.
func checkNotInUse(ctx context.Context, tx *sql.Tx, kind resource.Kind, id int64, resourceUUID string) error {
	for _, ref := range referencedBy[kind] {
		var n int
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`
SELECT COUNT(*) FROM %s WHERE %s = ?`, ref.table, ref.column), id).Scan(&n)
		if err != nil {
			return errors.Trace(err)
		}
		if n > 0 {
			return errors.Annotatef(catalogerrors.InUse, "%s %q", kind, resourceUUID)
		}
	}
	return nil
}

// repointPermissions moves the permission rows granting on the
// resource to its new id and location, so grants survive the row's
// move into the trashcan and back.
func repointPermissions(ctx context.Context, tx *sql.Tx, kind resource.Kind, fromID, toID int64, from, to resource.Location, t int64) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE permissions
SET resource = ?, resource_location = %d, modification_time = ?
WHERE resource_type = '%s' AND resource = ? AND resource_location = %d`,
		to, kind, from), toID, t, fromID)
	return errors.Trace(err)
}

// Trash moves the live row into the kind's trashcan twin and repoints
// permission rows granting on it. Tasks are trashed in place: the
// hidden marker moves to 2 and the row stays where reports and results
// can keep referring to it. If no such live row exists an error
// satisfying [catalogerrors.NotFound] is returned; a row still
// referenced by live rows yields [catalogerrors.InUse].
func (st *State) Trash(ctx context.Context, kind resource.Kind, resourceUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if kind.TrashInPlace() {
			return errors.Trace(trashTaskInPlace(ctx, tx, resourceUUID))
		}

		live, trash := kind.Table(), kind.TrashTable()
		id, err := rowID(ctx, tx, live, resourceUUID)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
		}
		if err != nil {
			return errors.Trace(err)
		}
		if err := checkNotInUse(ctx, tx, kind, id, resourceUUID); err != nil {
			return errors.Trace(err)
		}

		t := now()
		cols := copyColumns(kind)
		result, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (%s, modification_time)
SELECT %s, ?
FROM %s
WHERE id = ?`, trash, strings.Join(cols, ", "), strings.Join(cols, ", "), live), t, id)
		if err != nil {
			return errors.Trace(err)
		}
		trashID, err := result.LastInsertId()
		if err != nil {
			return errors.Trace(err)
		}

		if err := repointPermissions(ctx, tx, kind, id, trashID,
			resource.LocationTable, resource.LocationTrash, t); err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE id = ?`, live), id)
		return errors.Trace(err)
	})
	return errors.Annotatef(err, "trashing %s %q", kind, resourceUUID)
}

func trashTaskInPlace(ctx context.Context, tx *sql.Tx, resourceUUID string) error {
	var id int64
	err := tx.QueryRowContext(ctx, `
SELECT id FROM tasks WHERE uuid = ? AND hidden < 2`, resourceUUID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Annotatef(catalogerrors.NotFound, "task %q", resourceUUID)
	}
	if err != nil {
		return errors.Trace(err)
	}

	t := now()
	_, err = tx.ExecContext(ctx, `
UPDATE tasks SET hidden = 2, modification_time = ? WHERE id = ?`, t, id)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(repointPermissions(ctx, tx, resource.Task, id, id,
		resource.LocationTable, resource.LocationTrash, t))
}

// Restore moves the trashed row back to the live table, reversing
// Trash. References whose target has gone in the meantime come back
// unset. If no such trashed row exists an error satisfying
// [catalogerrors.NotFound] is returned.
func (st *State) Restore(ctx context.Context, kind resource.Kind, resourceUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if kind.TrashInPlace() {
			return errors.Trace(restoreTaskInPlace(ctx, tx, resourceUUID))
		}

		live, trash := kind.Table(), kind.TrashTable()
		trashID, err := rowID(ctx, tx, trash, resourceUUID)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
		}
		if err != nil {
			return errors.Trace(err)
		}

		t := now()
		result, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (%s, modification_time)
SELECT %s, ?
FROM %s
WHERE id = ?`, live, strings.Join(copyColumns(kind), ", "),
			strings.Join(restoreSelects(kind, trash), ", "), trash), t, trashID)
		if err != nil {
			return errors.Trace(err)
		}
		liveID, err := result.LastInsertId()
		if err != nil {
			return errors.Trace(err)
		}

		if err := repointPermissions(ctx, tx, kind, trashID, liveID,
			resource.LocationTrash, resource.LocationTable, t); err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE id = ?`, trash), trashID)
		return errors.Trace(err)
	})
	return errors.Annotatef(err, "restoring %s %q", kind, resourceUUID)
}

func restoreTaskInPlace(ctx context.Context, tx *sql.Tx, resourceUUID string) error {
	var id int64
	err := tx.QueryRowContext(ctx, `
SELECT id FROM tasks WHERE uuid = ? AND hidden = 2`, resourceUUID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Annotatef(catalogerrors.NotFound, "task %q", resourceUUID)
	}
	if err != nil {
		return errors.Trace(err)
	}

	t := now()
	_, err = tx.ExecContext(ctx, `
UPDATE tasks SET hidden = 0, modification_time = ? WHERE id = ?`, t, id)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(repointPermissions(ctx, tx, resource.Task, id, id,
		resource.LocationTrash, resource.LocationTable, t))
}

// Delete removes the row for good, from the live table or the
// trashcan, along with every permission row granting on it. Deleting a
// task takes its reports and results with it; notes and overrides lose
// their link instead of dying with the task. If no such row exists an
// error satisfying [catalogerrors.NotFound] is returned; a live row
// still referenced by other rows yields [catalogerrors.InUse].
func (st *State) Delete(ctx context.Context, kind resource.Kind, resourceUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		switch {
		case kind == resource.Task:
			return errors.Trace(deleteTask(ctx, tx, resourceUUID))
		case kind == resource.Report:
			return errors.Trace(deleteReport(ctx, tx, resourceUUID))
		}

		table := kind.Table()
		live := true
		id, err := rowID(ctx, tx, table, resourceUUID)
		if errors.Is(err, sql.ErrNoRows) && kind.HasTrash() {
			table, live = kind.TrashTable(), false
			id, err = rowID(ctx, tx, table, resourceUUID)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
		}
		if err != nil {
			return errors.Trace(err)
		}
		if live {
			if err := checkNotInUse(ctx, tx, kind, id, resourceUUID); err != nil {
				return errors.Trace(err)
			}
		}

		if err := deleteGrantsOn(ctx, tx, kind, resourceUUID); err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE id = ?`, table), id)
		return errors.Trace(err)
	})
	return errors.Annotatef(err, "deleting %s %q", kind, resourceUUID)
}

// deleteGrantsOn removes every permission row granting on the
// resource, in either location. The UUID survives a move to the
// trashcan, so it identifies the grants wherever the row sits.
func deleteGrantsOn(ctx context.Context, tx *sql.Tx, kind resource.Kind, resourceUUID string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions WHERE resource_type = '%s' AND resource_uuid = ?`, kind), resourceUUID)
	return errors.Trace(err)
}

func deleteTask(ctx context.Context, tx *sql.Tx, resourceUUID string) error {
	id, err := rowID(ctx, tx, "tasks", resourceUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Annotatef(catalogerrors.NotFound, "task %q", resourceUUID)
	}
	if err != nil {
		return errors.Trace(err)
	}

	// Notes and overrides outlive the task; unhook them before the
	// cascade takes the task's results away.
	for _, table := range []string{"notes", "overrides"} {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s SET result = NULL
WHERE result IN (SELECT id FROM results WHERE task = ?)`, table), id)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s SET task = NULL WHERE task = ?`, table), id)
		if err != nil {
			return errors.Trace(err)
		}
	}

	// The reports and results die with the task, and the grants on
	// them go too.
	_, err = tx.ExecContext(ctx, `
DELETE FROM permissions
WHERE resource_type = 'report'
  AND resource_uuid IN (SELECT uuid FROM reports WHERE task = ?)`, id)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = tx.ExecContext(ctx, `
DELETE FROM permissions
WHERE resource_type = 'result'
  AND resource_uuid IN (SELECT uuid FROM results WHERE task = ?)`, id)
	if err != nil {
		return errors.Trace(err)
	}

	if err := deleteGrantsOn(ctx, tx, resource.Task, resourceUUID); err != nil {
		return errors.Trace(err)
	}
	_, err = tx.ExecContext(ctx, `
DELETE FROM tasks WHERE id = ?`, id)
	return errors.Trace(err)
}

func deleteReport(ctx context.Context, tx *sql.Tx, resourceUUID string) error {
	id, err := rowID(ctx, tx, "reports", resourceUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Annotatef(catalogerrors.NotFound, "report %q", resourceUUID)
	}
	if err != nil {
		return errors.Trace(err)
	}

	for _, table := range []string{"notes", "overrides"} {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s SET result = NULL
WHERE result IN (SELECT result FROM report_results WHERE report = ?)`, table), id)
		if err != nil {
			return errors.Trace(err)
		}
	}
	_, err = tx.ExecContext(ctx, `
DELETE FROM permissions
WHERE resource_type = 'result'
  AND resource_uuid IN (
      SELECT results.uuid FROM results
      JOIN report_results ON report_results.result = results.id
      WHERE report_results.report = ?)`, id)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = tx.ExecContext(ctx, `
DELETE FROM results
WHERE id IN (SELECT result FROM report_results WHERE report = ?)`, id)
	if err != nil {
		return errors.Trace(err)
	}

	if err := deleteGrantsOn(ctx, tx, resource.Report, resourceUUID); err != nil {
		return errors.Trace(err)
	}
	_, err = tx.ExecContext(ctx, `
DELETE FROM reports WHERE id = ?`, id)
	return errors.Trace(err)
}

// EmptyTrash purges the trashcan: every trashed row the given user
// owns, with the permission rows granting on those rows and the
// trashed grants and memberships that came along. An empty owner UUID
// purges everyone's trash.
func (st *State) EmptyTrash(ctx context.Context, ownerUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	cond := "1 = 1"
	var args []any
	if ownerUUID != "" {
		cond = "owner = (SELECT id FROM users WHERE uuid = ?)"
		args = []any{ownerUUID}
	}

	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, kind := range trashTwinKinds {
			twin := kind.TrashTable()
			sel := fmt.Sprintf("SELECT id FROM %s WHERE %s", twin, cond)
			_, err := tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions
WHERE resource_type = '%s' AND resource_location = %d AND resource IN (%s)`,
				kind, resource.LocationTrash, sel), args...)
			if err != nil {
				return errors.Trace(err)
			}
			_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE %s`, twin, cond), args...)
			if err != nil {
				return errors.Trace(err)
			}
		}

		if err := purgeHiddenTasks(ctx, tx, cond, args); err != nil {
			return errors.Trace(err)
		}
		if err := purgeTrashedSubjects(ctx, tx, cond, args); err != nil {
			return errors.Trace(err)
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions_trash WHERE %s`, cond), args...)
		return errors.Trace(err)
	})
	return errors.Annotate(err, "emptying trashcan")
}

func purgeHiddenTasks(ctx context.Context, tx *sql.Tx, cond string, args []any) error {
	sel := fmt.Sprintf("SELECT id FROM tasks WHERE hidden = 2 AND %s", cond)

	for _, table := range []string{"notes", "overrides"} {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s SET result = NULL
WHERE result IN (SELECT id FROM results WHERE task IN (%s))`, table, sel), args...)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s SET task = NULL WHERE task IN (%s)`, table, sel), args...)
		if err != nil {
			return errors.Trace(err)
		}
	}

	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions
WHERE resource_type = 'report'
  AND resource_uuid IN (SELECT uuid FROM reports WHERE task IN (%s))`, sel), args...)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions
WHERE resource_type = 'result'
  AND resource_uuid IN (SELECT uuid FROM results WHERE task IN (%s))`, sel), args...)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions
WHERE resource_type = 'task' AND resource_location = %d AND resource IN (%s)`,
		resource.LocationTrash, sel), args...)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM tasks WHERE hidden = 2 AND %s`, cond), args...)
	return errors.Trace(err)
}

func purgeTrashedSubjects(ctx context.Context, tx *sql.Tx, cond string, args []any) error {
	subjects := []struct {
		kind     resource.Kind
		twin     string
		members  string
		memberFK string
	}{
		{resource.Group, "groups_trash", "group_users_trash", "group_id"},
		{resource.Role, "roles_trash", "role_users_trash", "role_id"},
	}

	for _, sub := range subjects {
		sel := fmt.Sprintf("SELECT id FROM %s WHERE %s", sub.twin, cond)
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE %s IN (%s)`, sub.members, sub.memberFK, sel), args...)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions
WHERE subject_type = '%s' AND subject_location = %d AND subject IN (%s)`,
			sub.kind, resource.LocationTrash, sel), args...)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM permissions
WHERE resource_type = '%s' AND resource_location = %d AND resource IN (%s)`,
			sub.kind, resource.LocationTrash, sel), args...)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE %s`, sub.twin, cond), args...)
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
