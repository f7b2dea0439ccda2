// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package access

import (
	"time"

	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
)

// SubjectType says what a permission's subject column refers to.
type SubjectType string

const (
	SubjectUser  SubjectType = "user"
	SubjectGroup SubjectType = "group"
	SubjectRole  SubjectType = "role"
)

// User describes a login user.
type User struct {
	UUID      string
	Name      string
	Comment   string
	Enabled   bool
	CreatedAt time.Time
}

// UserSpec describes a user to create.
type UserSpec struct {
	Name     string
	Comment  string
	Password string
	// RoleUUIDs are the roles the user is put into at creation.
	RoleUUIDs []string
}

// Group describes a named collection of users.
type Group struct {
	UUID      string
	Owner     string
	Name      string
	Comment   string
	CreatedAt time.Time
}

// Role describes a named collection of users that permissions are
// typically granted to.
type Role struct {
	UUID      string
	Owner     string
	Name      string
	Comment   string
	CreatedAt time.Time
}

// Permission describes one grant: the subject may run the named command,
// either globally or on one resource.
type Permission struct {
	UUID    string
	Owner   string
	Name    permission.Command
	Comment string

	// ResourceKind and ResourceUUID identify the resource the grant is
	// tied to. Both empty for a global grant.
	ResourceKind resource.Kind
	ResourceUUID string

	SubjectType SubjectType
	// SubjectUUID identifies the user, group or role being granted.
	SubjectUUID string

	CreatedAt time.Time
}

// PermissionSpec describes a permission to create.
type PermissionSpec struct {
	Name    permission.Command
	Comment string

	// ResourceKind and ResourceUUID tie the grant to one resource.
	// Leave both empty for a global command grant.
	ResourceKind resource.Kind
	ResourceUUID string

	SubjectType SubjectType
	SubjectUUID string
}

// ListFilter qualifies a bulk visibility predicate.
type ListFilter struct {
	// Location selects the live table or the trashcan.
	Location resource.Location

	// Commands are the grant names that make a row visible. Empty means
	// the read class: any grant on a row counts.
	Commands []permission.Command

	// OwnerName restricts rows to those owned by the named user. Empty
	// or "any" applies no restriction; any other name must exist.
	OwnerName string

	// Unfiltered skips access filtering entirely.
	Unfiltered bool
}
