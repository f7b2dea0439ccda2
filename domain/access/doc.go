// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package access provides the services for managing users and permissions.
// The users side is mainly concerned with authentication and the
// permissions side with authorization.
//
// A permission grants one named command, either globally or on one
// resource, to a subject: a user, a group or a role. Groups and roles
// collect users, so a grant to either reaches every member. The predefined
// roles seeded at installation (Admin, User, Observer) are plain roles;
// nothing in the engine special-cases them beyond their well-known UUIDs.
//
// Authorization questions come in two shapes, answered by the same rule
// set. The single-resource shape asks whether one caller may apply one
// command to one row, and is used on every mutation path. The bulk shape
// compiles the rules into a SQL predicate filtering listing queries, so a
// listing never materialises rows the caller may not see.
//
// Rows with no owner are global: every user sees them. The trashcan is
// narrower than the live tables, as only the owner reaches a trashed row,
// whatever grants exist.
package access
