// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package service_test

import (
	"context"

	jtesting "github.com/juju/testing"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/access"
	"github.com/greenbone/gvmd/internal/uuid"
)

// fakeState answers access queries from canned fields and records every
// call. newFakeState returns one that allows every command and sees every
// resource; tests narrow it from there.
type fakeState struct {
	jtesting.Stub

	denied     map[permission.Command]bool
	everything bool
	owns       bool
	access     bool
	visible    []string

	user    access.User
	users   []access.User
	group   access.Group
	groups  []access.Group
	role    access.Role
	roles   []access.Role
	hasRole bool
	perm    access.Permission
	perms   []access.Permission

	// gotHash and gotSalt capture the last stored password material.
	gotHash string
	gotSalt string
}

func newFakeState() *fakeState {
	return &fakeState{owns: true, access: true}
}

func (m *fakeState) deny(cmds ...permission.Command) {
	if m.denied == nil {
		m.denied = make(map[permission.Command]bool)
	}
	for _, cmd := range cmds {
		m.denied[cmd] = true
	}
}

func (m *fakeState) UserMay(ctx context.Context, caller credential.Caller, cmd permission.Command) (bool, error) {
	m.MethodCall(m, "UserMay", caller.UUID, cmd)
	return !m.denied[cmd], m.NextErr()
}

func (m *fakeState) CanEverything(ctx context.Context, userUUID string) (bool, error) {
	m.MethodCall(m, "CanEverything", userUUID)
	return m.everything, m.NextErr()
}

func (m *fakeState) OwnsResource(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, location resource.Location) (bool, error) {
	m.MethodCall(m, "OwnsResource", caller.UUID, kind, resourceUUID, location)
	return m.owns, m.NextErr()
}

func (m *fakeState) HasAccess(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, cmd permission.Command, location resource.Location) (bool, error) {
	m.MethodCall(m, "HasAccess", caller.UUID, kind, resourceUUID, cmd, location)
	return m.access, m.NextErr()
}

func (m *fakeState) VisibleUUIDs(ctx context.Context, caller credential.Caller, kind resource.Kind, filter access.ListFilter) ([]string, error) {
	m.MethodCall(m, "VisibleUUIDs", caller.UUID, kind, filter)
	return m.visible, m.NextErr()
}

func (m *fakeState) AddUser(ctx context.Context, userUUID uuid.UUID, ownerUUID, name, comment, passwordHash, passwordSalt string, roleUUIDs []string) error {
	m.MethodCall(m, "AddUser", ownerUUID, name, roleUUIDs)
	m.gotHash, m.gotSalt = passwordHash, passwordSalt
	return m.NextErr()
}

func (m *fakeState) GetUser(ctx context.Context, userUUID string) (access.User, error) {
	m.MethodCall(m, "GetUser", userUUID)
	return m.user, m.NextErr()
}

func (m *fakeState) GetUserByName(ctx context.Context, name string) (access.User, error) {
	m.MethodCall(m, "GetUserByName", name)
	return m.user, m.NextErr()
}

func (m *fakeState) GetUserByAuth(ctx context.Context, name, password string) (access.User, error) {
	m.MethodCall(m, "GetUserByAuth", name, password)
	return m.user, m.NextErr()
}

func (m *fakeState) SetPasswordHash(ctx context.Context, userUUID, passwordHash, passwordSalt string) error {
	m.MethodCall(m, "SetPasswordHash", userUUID)
	m.gotHash, m.gotSalt = passwordHash, passwordSalt
	return m.NextErr()
}

func (m *fakeState) SetEnabled(ctx context.Context, userUUID string, enabled bool) error {
	m.MethodCall(m, "SetEnabled", userUUID, enabled)
	return m.NextErr()
}

func (m *fakeState) RemoveUser(ctx context.Context, userUUID string) error {
	m.MethodCall(m, "RemoveUser", userUUID)
	return m.NextErr()
}

func (m *fakeState) ListUsers(ctx context.Context) ([]access.User, error) {
	m.MethodCall(m, "ListUsers")
	return m.users, m.NextErr()
}

func (m *fakeState) AddGroup(ctx context.Context, groupUUID uuid.UUID, ownerUUID, name, comment string) error {
	m.MethodCall(m, "AddGroup", ownerUUID, name, comment)
	return m.NextErr()
}

func (m *fakeState) GetGroup(ctx context.Context, groupUUID string) (access.Group, error) {
	m.MethodCall(m, "GetGroup", groupUUID)
	return m.group, m.NextErr()
}

func (m *fakeState) ListGroups(ctx context.Context) ([]access.Group, error) {
	m.MethodCall(m, "ListGroups")
	return m.groups, m.NextErr()
}

func (m *fakeState) AddUserToGroup(ctx context.Context, groupUUID, userUUID string) error {
	m.MethodCall(m, "AddUserToGroup", groupUUID, userUUID)
	return m.NextErr()
}

func (m *fakeState) RemoveUserFromGroup(ctx context.Context, groupUUID, userUUID string) error {
	m.MethodCall(m, "RemoveUserFromGroup", groupUUID, userUUID)
	return m.NextErr()
}

func (m *fakeState) TrashGroup(ctx context.Context, groupUUID string) error {
	m.MethodCall(m, "TrashGroup", groupUUID)
	return m.NextErr()
}

func (m *fakeState) RestoreGroup(ctx context.Context, groupUUID string) error {
	m.MethodCall(m, "RestoreGroup", groupUUID)
	return m.NextErr()
}

func (m *fakeState) DeleteGroup(ctx context.Context, groupUUID string) error {
	m.MethodCall(m, "DeleteGroup", groupUUID)
	return m.NextErr()
}

func (m *fakeState) AddRole(ctx context.Context, roleUUID uuid.UUID, ownerUUID, name, comment string) error {
	m.MethodCall(m, "AddRole", ownerUUID, name, comment)
	return m.NextErr()
}

func (m *fakeState) GetRole(ctx context.Context, roleUUID string) (access.Role, error) {
	m.MethodCall(m, "GetRole", roleUUID)
	return m.role, m.NextErr()
}

func (m *fakeState) ListRoles(ctx context.Context) ([]access.Role, error) {
	m.MethodCall(m, "ListRoles")
	return m.roles, m.NextErr()
}

func (m *fakeState) AddUserToRole(ctx context.Context, roleUUID, userUUID string) error {
	m.MethodCall(m, "AddUserToRole", roleUUID, userUUID)
	return m.NextErr()
}

func (m *fakeState) RemoveUserFromRole(ctx context.Context, roleUUID, userUUID string) error {
	m.MethodCall(m, "RemoveUserFromRole", roleUUID, userUUID)
	return m.NextErr()
}

func (m *fakeState) UserHasRole(ctx context.Context, userUUID, roleUUID string) (bool, error) {
	m.MethodCall(m, "UserHasRole", userUUID, roleUUID)
	return m.hasRole, m.NextErr()
}

func (m *fakeState) TrashRole(ctx context.Context, roleUUID string) error {
	m.MethodCall(m, "TrashRole", roleUUID)
	return m.NextErr()
}

func (m *fakeState) RestoreRole(ctx context.Context, roleUUID string) error {
	m.MethodCall(m, "RestoreRole", roleUUID)
	return m.NextErr()
}

func (m *fakeState) DeleteRole(ctx context.Context, roleUUID string) error {
	m.MethodCall(m, "DeleteRole", roleUUID)
	return m.NextErr()
}

func (m *fakeState) CreatePermission(ctx context.Context, permissionUUID uuid.UUID, ownerUUID string, spec access.PermissionSpec) error {
	m.MethodCall(m, "CreatePermission", ownerUUID, spec)
	return m.NextErr()
}

func (m *fakeState) GetPermission(ctx context.Context, permissionUUID string, location resource.Location) (access.Permission, error) {
	m.MethodCall(m, "GetPermission", permissionUUID, location)
	return m.perm, m.NextErr()
}

func (m *fakeState) ListPermissions(ctx context.Context, caller credential.Caller, filter access.ListFilter) ([]access.Permission, error) {
	m.MethodCall(m, "ListPermissions", caller.UUID, filter)
	return m.perms, m.NextErr()
}

func (m *fakeState) TrashPermission(ctx context.Context, permissionUUID string) error {
	m.MethodCall(m, "TrashPermission", permissionUUID)
	return m.NextErr()
}

func (m *fakeState) RestorePermission(ctx context.Context, permissionUUID string) error {
	m.MethodCall(m, "RestorePermission", permissionUUID)
	return m.NextErr()
}

func (m *fakeState) DeletePermission(ctx context.Context, permissionUUID string) error {
	m.MethodCall(m, "DeletePermission", permissionUUID)
	return m.NextErr()
}
