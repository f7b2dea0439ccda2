// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/greenbone/gvmd/domain/access"
	accesserrors "github.com/greenbone/gvmd/domain/access/errors"
	"github.com/greenbone/gvmd/internal/auth"
	internaldatabase "github.com/greenbone/gvmd/internal/database"
	"github.com/greenbone/gvmd/internal/uuid"
)

// dbUser maps a row of the users table.
type dbUser struct {
	ID           int64  `db:"id"`
	UUID         string `db:"uuid"`
	Name         string `db:"name"`
	Comment      string `db:"comment"`
	Enabled      bool   `db:"enabled"`
	CreationTime int64  `db:"creation_time"`
}

func (u dbUser) toAccessUser() access.User {
	return access.User{
		UUID:      u.UUID,
		Name:      u.Name,
		Comment:   u.Comment,
		Enabled:   u.Enabled,
		CreatedAt: time.Unix(u.CreationTime, 0).UTC(),
	}
}

// dbAddUser is the insert shape for a new user.
type dbAddUser struct {
	UUID             string        `db:"uuid"`
	Owner            sql.NullInt64 `db:"owner"`
	Name             string        `db:"name"`
	Comment          string        `db:"comment"`
	PasswordHash     string        `db:"password_hash"`
	PasswordSalt     string        `db:"password_salt"`
	Enabled          bool          `db:"enabled"`
	CreationTime     int64         `db:"creation_time"`
	ModificationTime int64         `db:"modification_time"`
}

// AddUser adds a new enabled user with the given password hash and salt,
// and puts it into the named roles. The owner records who created the
// account; an empty owner UUID leaves the account global, as accounts
// created at installation are. If the name is taken an error satisfying
// [accesserrors.UserAlreadyExists] is returned; if a role is unknown,
// [accesserrors.RoleNotFound].
func (st *State) AddUser(
	ctx context.Context,
	userUUID uuid.UUID,
	ownerUUID string,
	name, comment string,
	passwordHash, passwordSalt string,
	roleUUIDs []string,
) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	insertStmt, err := st.Prepare(`
INSERT INTO users (uuid, owner, name, comment, password_hash, password_salt, enabled, creation_time, modification_time)
VALUES ($dbAddUser.uuid, $dbAddUser.owner, $dbAddUser.name, $dbAddUser.comment, $dbAddUser.password_hash,
        $dbAddUser.password_salt, $dbAddUser.enabled, $dbAddUser.creation_time, $dbAddUser.modification_time)
`, dbAddUser{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		t := now()
		row := dbAddUser{
			UUID:             userUUID.String(),
			Name:             name,
			Comment:          comment,
			PasswordHash:     passwordHash,
			PasswordSalt:     passwordSalt,
			Enabled:          true,
			CreationTime:     t,
			ModificationTime: t,
		}
		if ownerUUID != "" {
			ownerID, err := st.userID(ctx, tx, ownerUUID)
			if err != nil {
				return errors.Trace(err)
			}
			row.Owner = sql.NullInt64{Int64: ownerID, Valid: true}
		}
		if err := tx.Query(ctx, insertStmt, row).Run(); err != nil {
			if internaldatabase.IsErrConstraintUnique(err) {
				return errors.Annotatef(accesserrors.UserAlreadyExists, "user %q", name)
			}
			return errors.Trace(err)
		}

		for _, roleUUID := range roleUUIDs {
			if err := st.addRoleMember(ctx, tx, roleUUID, userUUID.String()); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
	return errors.Annotatef(err, "adding user %q", name)
}

// GetUser returns the user with the given UUID. If no such user exists
// an error satisfying [accesserrors.UserNotFound] is returned.
func (st *State) GetUser(ctx context.Context, userUUID string) (access.User, error) {
	db, err := st.DB()
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	stmt, err := st.Prepare(`
SELECT &dbUser.*
FROM users
WHERE uuid = $M.uuid
`, dbUser{}, sqlair.M{})
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	var row dbUser
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, sqlair.M{"uuid": userUUID}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(accesserrors.UserNotFound, "user %q", userUUID)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return access.User{}, errors.Trace(err)
	}
	return row.toAccessUser(), nil
}

// GetUserByName returns the user with the given login name. If no such
// user exists an error satisfying [accesserrors.UserNotFound] is
// returned.
func (st *State) GetUserByName(ctx context.Context, name string) (access.User, error) {
	db, err := st.DB()
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	stmt, err := st.Prepare(`
SELECT &dbUser.*
FROM users
WHERE name = $M.name
`, dbUser{}, sqlair.M{})
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	var row dbUser
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, sqlair.M{"name": name}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(accesserrors.UserNotFound, "user %q", name)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return access.User{}, errors.Trace(err)
	}
	return row.toAccessUser(), nil
}

// dbUserAuth carries the password material alongside the user row.
type dbUserAuth struct {
	ID           int64  `db:"id"`
	UUID         string `db:"uuid"`
	Name         string `db:"name"`
	Comment      string `db:"comment"`
	Enabled      bool   `db:"enabled"`
	CreationTime int64  `db:"creation_time"`
	PasswordHash string `db:"password_hash"`
	PasswordSalt string `db:"password_salt"`
}

// GetUserByAuth returns the user with the given name if the password
// matches. A missing user and a wrong password both return an error
// satisfying [accesserrors.UserNotFound], so a failed login does not
// reveal which part was wrong. A disabled user yields
// [accesserrors.UserDisabled].
func (st *State) GetUserByAuth(ctx context.Context, name, password string) (access.User, error) {
	db, err := st.DB()
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	stmt, err := st.Prepare(`
SELECT &dbUserAuth.*
FROM users
WHERE name = $M.name
`, dbUserAuth{}, sqlair.M{})
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	var row dbUserAuth
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, sqlair.M{"name": name}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(accesserrors.UserNotFound, "user %q", name)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	if !auth.PasswordMatches(password, row.PasswordSalt, row.PasswordHash) {
		return access.User{}, errors.Annotatef(accesserrors.UserNotFound, "user %q", name)
	}
	if !row.Enabled {
		return access.User{}, errors.Annotatef(accesserrors.UserDisabled, "user %q", name)
	}
	return dbUser{
		ID:           row.ID,
		UUID:         row.UUID,
		Name:         row.Name,
		Comment:      row.Comment,
		Enabled:      row.Enabled,
		CreationTime: row.CreationTime,
	}.toAccessUser(), nil
}

// SetPasswordHash replaces the user's password hash and salt.
func (st *State) SetPasswordHash(ctx context.Context, userUUID, passwordHash, passwordSalt string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	stmt, err := st.Prepare(`
UPDATE users
SET password_hash = $M.hash, password_salt = $M.salt, modification_time = $M.now
WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		err := tx.Query(ctx, stmt, sqlair.M{
			"hash": passwordHash,
			"salt": passwordSalt,
			"now":  now(),
			"uuid": userUUID,
		}).Get(&outcome)
		if err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(accesserrors.UserNotFound, "user %q", userUUID)
		}
		return nil
	})
	return errors.Annotate(err, "setting password")
}

// SetEnabled flips the user's enabled flag.
func (st *State) SetEnabled(ctx context.Context, userUUID string, enabled bool) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	stmt, err := st.Prepare(`
UPDATE users
SET enabled = $M.enabled, modification_time = $M.now
WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		err := tx.Query(ctx, stmt, sqlair.M{
			"enabled": enabled,
			"now":     now(),
			"uuid":    userUUID,
		}).Get(&outcome)
		if err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(accesserrors.UserNotFound, "user %q", userUUID)
		}
		return nil
	})
	return errors.Trace(err)
}

// RemoveUser deletes the user along with its group and role memberships
// and every permission the user owns or is the direct subject of.
// Accounts the user created stay behind as global accounts. If no such
// user exists an error satisfying [accesserrors.UserNotFound] is
// returned; if the user still owns resources, one satisfying
// [accesserrors.UserHasResources].
func (st *State) RemoveUser(ctx context.Context, userUUID string) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	disownAccountsStmt, err := st.Prepare(`
UPDATE users
SET owner = NULL
WHERE owner = (SELECT id FROM users WHERE uuid = $M.uuid)
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	removePermissionsStmt, err := st.Prepare(`
DELETE FROM permissions
WHERE owner = (SELECT id FROM users WHERE uuid = $M.uuid)
   OR (subject_type = 'user' AND subject = (SELECT id FROM users WHERE uuid = $M.uuid))
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	removeTrashPermissionsStmt, err := st.Prepare(`
DELETE FROM permissions_trash
WHERE owner = (SELECT id FROM users WHERE uuid = $M.uuid)
   OR (subject_type = 'user' AND subject = (SELECT id FROM users WHERE uuid = $M.uuid))
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	removeUserStmt, err := st.Prepare(`
DELETE FROM users
WHERE uuid = $M.uuid
`, sqlair.M{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		args := sqlair.M{"uuid": userUUID}
		if err := tx.Query(ctx, disownAccountsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, removePermissionsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		if err := tx.Query(ctx, removeTrashPermissionsStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}

		var outcome sqlair.Outcome
		if err := tx.Query(ctx, removeUserStmt, args).Get(&outcome); err != nil {
			if internaldatabase.IsErrConstraintForeignKey(err) {
				return errors.Annotatef(accesserrors.UserHasResources, "user %q", userUUID)
			}
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(accesserrors.UserNotFound, "user %q", userUUID)
		}
		return nil
	})
	return errors.Annotate(err, "removing user")
}

// ListUsers returns every user, in creation order.
func (st *State) ListUsers(ctx context.Context) ([]access.User, error) {
	db, err := st.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	stmt, err := st.Prepare(`
SELECT &dbUser.*
FROM users
ORDER BY id
`, dbUser{})
	if err != nil {
		return nil, errors.Trace(err)
	}

	var rows []dbUser
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Annotate(err, "listing users")
	}

	users := make([]access.User, len(rows))
	for i, row := range rows {
		users[i] = row.toAccessUser()
	}
	return users, nil
}
