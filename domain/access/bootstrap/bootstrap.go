// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package bootstrap seeds the access control data a fresh installation
// needs before the first login: the command grants of the predefined
// roles, and the initial admin user. Every step is idempotent, so the
// daemon can run them on each start.
package bootstrap

import (
	"context"
	"database/sql"
	"time"

	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/database"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/schema"
	"github.com/greenbone/gvmd/internal/auth"
	"github.com/greenbone/gvmd/internal/uuid"
)

// userManagedKinds are the resource kinds a standard user fully manages:
// create, read, modify, delete.
var userManagedKinds = []resource.Kind{
	resource.Task,
	resource.Target,
	resource.Config,
	resource.Schedule,
	resource.Alert,
	resource.Filter,
	resource.Tag,
	resource.Note,
	resource.Override,
	resource.Permission,
}

// userReadKinds are the resource kinds a standard user only reads.
// Scanners, users, groups and roles are administered elsewhere.
var userReadKinds = []resource.Kind{
	resource.Scanner,
	resource.Group,
	resource.Role,
	resource.Report,
	resource.Result,
	resource.Agent,
	resource.NVT,
	resource.CVE,
	resource.CPE,
	resource.OvalDef,
	resource.DFNCertAdv,
}

// userRoleCommands returns the grants of the predefined User role.
func userRoleCommands() []permission.Command {
	var cmds []permission.Command
	for _, k := range userManagedKinds {
		cmds = append(cmds,
			permission.Get(k),
			permission.Create(k),
			permission.Modify(k),
			permission.Delete(k),
		)
	}
	for _, k := range userReadKinds {
		cmds = append(cmds, permission.Get(k))
	}
	return append(cmds,
		permission.Delete(resource.Report),
		permission.Restore,
		permission.EmptyTrashcan,
	)
}

// observerRoleCommands returns the grants of the predefined Observer
// role: reading, and nothing else.
func observerRoleCommands() []permission.Command {
	var cmds []permission.Command
	for _, k := range userManagedKinds {
		cmds = append(cmds, permission.Get(k))
	}
	for _, k := range userReadKinds {
		cmds = append(cmds, permission.Get(k))
	}
	return cmds
}

// EnsurePredefinedRoleGrants returns a bootstrap step seeding the
// command grants of the predefined roles: Everything for Admin, and the
// curated command lists for User and Observer. Grants already present
// are left alone, so the lists can grow in later releases.
func EnsurePredefinedRoleGrants() func(context.Context, database.TxnRunner) error {
	return func(ctx context.Context, db database.TxnRunner) error {
		grants := []struct {
			roleUUID string
			commands []permission.Command
		}{
			{schema.AdminRoleUUID, []permission.Command{permission.Everything}},
			{schema.UserRoleUUID, userRoleCommands()},
			{schema.ObserverRoleUUID, observerRoleCommands()},
		}

		err := db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
			q := `
INSERT INTO permissions (uuid, owner, name, comment,
                         resource_type, resource, resource_uuid, resource_location,
                         subject_type, subject, subject_location,
                         creation_time, modification_time)
SELECT ?, NULL, ?, '', '', 0, '', 0, 'role', roles.id, 0, ?, ?
FROM roles
WHERE roles.uuid = ?
  AND NOT EXISTS (
      SELECT 1 FROM permissions
      WHERE permissions.name = ?
        AND permissions.resource = 0
        AND permissions.subject_type = 'role'
        AND permissions.subject = roles.id)
`
			now := time.Now().Unix()
			for _, grant := range grants {
				for _, cmd := range grant.commands {
					permissionUUID, err := uuid.NewUUID()
					if err != nil {
						return errors.Trace(err)
					}
					if _, err := tx.ExecContext(ctx, q,
						permissionUUID.String(), string(cmd), now, now,
						grant.roleUUID, string(cmd),
					); err != nil {
						return errors.Annotatef(err, "granting %q to role %q", cmd, grant.roleUUID)
					}
				}
			}
			return nil
		})
		return errors.Annotate(err, "seeding predefined role grants")
	}
}

// AddAdminUser returns a bootstrap step creating the named user with
// the Admin role. An existing user of that name is left untouched.
func AddAdminUser(name, password string) func(context.Context, database.TxnRunner) error {
	return func(ctx context.Context, db database.TxnRunner) error {
		if name == "" {
			return errors.NotValidf("empty admin user name")
		}
		if password == "" {
			return errors.NotValidf("empty admin password")
		}

		salt, err := auth.NewSalt()
		if err != nil {
			return errors.Trace(err)
		}
		hash, err := auth.HashPassword(password, salt)
		if err != nil {
			return errors.Trace(err)
		}
		userUUID, err := uuid.NewUUID()
		if err != nil {
			return errors.Trace(err)
		}

		err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM users WHERE name = ?", name)
			var count int
			if err := row.Scan(&count); err != nil {
				return errors.Trace(err)
			}
			if count > 0 {
				return nil
			}

			now := time.Now().Unix()
			if _, err := tx.ExecContext(ctx, `
INSERT INTO users (uuid, name, comment, password_hash, password_salt, enabled, creation_time, modification_time)
VALUES (?, ?, 'Created by installation.', ?, ?, 1, ?, ?)
`, userUUID.String(), name, hash, salt, now, now); err != nil {
				return errors.Trace(err)
			}

			_, err := tx.ExecContext(ctx, `
INSERT INTO role_users (role_id, user_id)
SELECT roles.id, users.id
FROM roles, users
WHERE roles.uuid = ? AND users.uuid = ?
`, schema.AdminRoleUUID, userUUID.String())
			return errors.Trace(err)
		})
		return errors.Annotatef(err, "creating admin user %q", name)
	}
}
