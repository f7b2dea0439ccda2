// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// UserNotFound describes an error that occurs when the user being
	// requested does not exist. Deliberately also returned where the
	// caller is not allowed to see the user, so that absence and denial
	// are indistinguishable.
	UserNotFound = errors.ConstError("user not found")

	// UserAlreadyExists describes an error that occurs when the user
	// being created already exists.
	UserAlreadyExists = errors.ConstError("user already exists")

	// UserNameNotValid describes an error that occurs when a supplied
	// user name is not valid, for example empty.
	UserNameNotValid = errors.ConstError("user name not valid")

	// UserDisabled describes an error that occurs when an operation is
	// attempted on behalf of a disabled user.
	UserDisabled = errors.ConstError("user is disabled")

	// UserHasResources describes an error that occurs when deleting a
	// user that still owns resources such as tasks or targets.
	UserHasResources = errors.ConstError("user still owns resources")

	// GroupNotFound describes an error that occurs when the group being
	// requested does not exist.
	GroupNotFound = errors.ConstError("group not found")

	// RoleNotFound describes an error that occurs when the role being
	// requested does not exist.
	RoleNotFound = errors.ConstError("role not found")

	// PermissionNotFound describes an error that occurs when the
	// permission being requested does not exist.
	PermissionNotFound = errors.ConstError("permission not found")

	// PermissionAlreadyExists describes an error that occurs when the
	// permission being created already exists.
	PermissionAlreadyExists = errors.ConstError("permission already exists")

	// SubjectNotFound describes an error that occurs when a permission
	// names a user, group or role that does not exist.
	SubjectNotFound = errors.ConstError("subject not found")

	// SubjectTypeNotValid describes an error that occurs when a
	// permission's subject type is not user, group or role.
	SubjectTypeNotValid = errors.ConstError("subject type not valid")
)
