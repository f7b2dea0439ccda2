// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package service wires the access rules to the protocol front end. The
// caller's identity rides on the context; every operation here checks the
// caller's command grant and the visibility of the rows it touches before
// delegating to state. Denied single-resource operations report not found,
// so a caller cannot probe for the existence of other users' resources.
package service

import (
	"context"

	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/access"
	accesserrors "github.com/greenbone/gvmd/domain/access/errors"
	"github.com/greenbone/gvmd/internal/auth"
	"github.com/greenbone/gvmd/internal/uuid"
)

// State describes retrieval and persistence methods for access control.
type State interface {
	// UserMay reports whether the caller may run the given command.
	UserMay(ctx context.Context, caller credential.Caller, cmd permission.Command) (bool, error)

	// CanEverything reports whether the user holds the Everything
	// permission.
	CanEverything(ctx context.Context, userUUID string) (bool, error)

	// OwnsResource reports whether the caller owns the resource.
	OwnsResource(ctx context.Context, caller credential.Caller, kind resource.Kind, uuid string, location resource.Location) (bool, error)

	// HasAccess reports whether the caller may apply the command to the
	// resource.
	HasAccess(ctx context.Context, caller credential.Caller, kind resource.Kind, uuid string, cmd permission.Command, location resource.Location) (bool, error)

	// VisibleUUIDs returns the UUIDs of the rows the caller may see.
	VisibleUUIDs(ctx context.Context, caller credential.Caller, kind resource.Kind, filter access.ListFilter) ([]string, error)

	AddUser(ctx context.Context, userUUID uuid.UUID, ownerUUID, name, comment, passwordHash, passwordSalt string, roleUUIDs []string) error
	GetUser(ctx context.Context, userUUID string) (access.User, error)
	GetUserByName(ctx context.Context, name string) (access.User, error)
	GetUserByAuth(ctx context.Context, name, password string) (access.User, error)
	SetPasswordHash(ctx context.Context, userUUID, passwordHash, passwordSalt string) error
	SetEnabled(ctx context.Context, userUUID string, enabled bool) error
	RemoveUser(ctx context.Context, userUUID string) error
	ListUsers(ctx context.Context) ([]access.User, error)

	AddGroup(ctx context.Context, groupUUID uuid.UUID, ownerUUID, name, comment string) error
	GetGroup(ctx context.Context, groupUUID string) (access.Group, error)
	ListGroups(ctx context.Context) ([]access.Group, error)
	AddUserToGroup(ctx context.Context, groupUUID, userUUID string) error
	RemoveUserFromGroup(ctx context.Context, groupUUID, userUUID string) error
	TrashGroup(ctx context.Context, groupUUID string) error
	RestoreGroup(ctx context.Context, groupUUID string) error
	DeleteGroup(ctx context.Context, groupUUID string) error

	AddRole(ctx context.Context, roleUUID uuid.UUID, ownerUUID, name, comment string) error
	GetRole(ctx context.Context, roleUUID string) (access.Role, error)
	ListRoles(ctx context.Context) ([]access.Role, error)
	AddUserToRole(ctx context.Context, roleUUID, userUUID string) error
	RemoveUserFromRole(ctx context.Context, roleUUID, userUUID string) error
	UserHasRole(ctx context.Context, userUUID, roleUUID string) (bool, error)
	TrashRole(ctx context.Context, roleUUID string) error
	RestoreRole(ctx context.Context, roleUUID string) error
	DeleteRole(ctx context.Context, roleUUID string) error

	CreatePermission(ctx context.Context, permissionUUID uuid.UUID, ownerUUID string, spec access.PermissionSpec) error
	GetPermission(ctx context.Context, permissionUUID string, location resource.Location) (access.Permission, error)
	ListPermissions(ctx context.Context, caller credential.Caller, filter access.ListFilter) ([]access.Permission, error)
	TrashPermission(ctx context.Context, permissionUUID string) error
	RestorePermission(ctx context.Context, permissionUUID string) error
	DeletePermission(ctx context.Context, permissionUUID string) error
}

// Logger is the interface used by the service for logging.
type Logger interface {
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Service provides access control decisions and the lifecycle of users,
// groups, roles and permissions.
type Service struct {
	st     State
	logger Logger
}

// NewService returns a new Service for interacting with the underlying
// state.
func NewService(st State, logger Logger) *Service {
	return &Service{
		st:     st,
		logger: logger,
	}
}

// authorize checks that the caller may run the command at all.
func (s *Service) authorize(ctx context.Context, caller credential.Caller, cmd permission.Command) error {
	may, err := s.st.UserMay(ctx, caller, cmd)
	if err != nil {
		return errors.Trace(err)
	}
	if !may {
		return errors.Unauthorizedf("command %q denied", cmd)
	}
	return nil
}

// visible checks single-resource access, folding denial into the given
// not-found error so the caller cannot tell denial from absence.
func (s *Service) visible(
	ctx context.Context, caller credential.Caller,
	kind resource.Kind, resourceUUID string,
	cmd permission.Command, location resource.Location,
	notFound error,
) error {
	ok, err := s.st.HasAccess(ctx, caller, kind, resourceUUID, cmd, location)
	if err != nil {
		return errors.Trace(err)
	}
	if !ok {
		return errors.Annotatef(notFound, "%s %q", kind, resourceUUID)
	}
	return nil
}

// owned checks ownership of a single resource, folding denial into the
// given not-found error. Used for the trashcan, which grants do not
// reach into.
func (s *Service) owned(
	ctx context.Context, caller credential.Caller,
	kind resource.Kind, resourceUUID string, location resource.Location,
	notFound error,
) error {
	ok, err := s.st.OwnsResource(ctx, caller, kind, resourceUUID, location)
	if err != nil {
		return errors.Trace(err)
	}
	if !ok {
		return errors.Annotatef(notFound, "%s %q", kind, resourceUUID)
	}
	return nil
}

// UserMay reports whether the caller may run the given command at all.
// The answer does not consider any particular resource; a caller that
// may run get_tasks in general can still be unable to see a given task.
func (s *Service) UserMay(ctx context.Context, cmd permission.Command) (bool, error) {
	if err := cmd.Validate(); err != nil {
		return false, errors.Trace(err)
	}
	caller := credential.CallerFromContext(ctx)
	return s.st.UserMay(ctx, caller, cmd)
}

// CanEverything reports whether the user holds the global Everything
// permission, directly or through a group or role.
func (s *Service) CanEverything(ctx context.Context, userUUID string) (bool, error) {
	if userUUID == "" {
		return false, errors.NotValidf("empty user UUID")
	}
	return s.st.CanEverything(ctx, userUUID)
}

// OwnsResource reports whether the caller owns the resource with the
// given UUID. Global rows are owned by everyone.
func (s *Service) OwnsResource(ctx context.Context, kind resource.Kind, resourceUUID string, location resource.Location) (bool, error) {
	if err := kind.Validate(); err != nil {
		return false, errors.Trace(err)
	}
	caller := credential.CallerFromContext(ctx)
	return s.st.OwnsResource(ctx, caller, kind, resourceUUID, location)
}

// HasAccess reports whether the caller may apply the command to the
// resource with the given UUID.
func (s *Service) HasAccess(ctx context.Context, kind resource.Kind, resourceUUID string, cmd permission.Command, location resource.Location) (bool, error) {
	if err := kind.Validate(); err != nil {
		return false, errors.Trace(err)
	}
	if err := cmd.Validate(); err != nil {
		return false, errors.Trace(err)
	}
	caller := credential.CallerFromContext(ctx)
	return s.st.HasAccess(ctx, caller, kind, resourceUUID, cmd, location)
}

// VisibleResources returns the UUIDs of the rows of the given kind the
// caller may see under the filter. A filter owner that is not a known
// user is an error satisfying [accesserrors.UserNotFound].
func (s *Service) VisibleResources(ctx context.Context, kind resource.Kind, filter access.ListFilter) ([]string, error) {
	if err := kind.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if filter.OwnerName != "" && filter.OwnerName != "any" {
		if _, err := s.st.GetUserByName(ctx, filter.OwnerName); err != nil {
			return nil, errors.Trace(err)
		}
	}
	caller := credential.CallerFromContext(ctx)
	return s.st.VisibleUUIDs(ctx, caller, kind, filter)
}

// validUserName reports whether the name is acceptable as a login name.
// The charset matches what the rest of the stack, down to the scanner
// configuration files, tolerates without quoting.
func validUserName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// CreateUser creates a new enabled user and puts it into the requested
// roles. The password is hashed with a fresh salt; the clear text is
// never stored.
func (s *Service) CreateUser(ctx context.Context, spec access.UserSpec) (access.User, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Create(resource.User)); err != nil {
			return access.User{}, errors.Trace(err)
		}
	}
	if !validUserName(spec.Name) {
		return access.User{}, errors.Annotatef(accesserrors.UserNameNotValid, "%q", spec.Name)
	}
	if spec.Password == "" {
		return access.User{}, errors.NotValidf("empty password")
	}

	salt, err := auth.NewSalt()
	if err != nil {
		return access.User{}, errors.Trace(err)
	}
	hash, err := auth.HashPassword(spec.Password, salt)
	if err != nil {
		return access.User{}, errors.Trace(err)
	}

	userUUID, err := uuid.NewUUID()
	if err != nil {
		return access.User{}, errors.Trace(err)
	}
	if err := s.st.AddUser(ctx, userUUID, caller.UUID, spec.Name, spec.Comment, hash, salt, spec.RoleUUIDs); err != nil {
		return access.User{}, errors.Trace(err)
	}
	s.logger.Debugf("created user %q (%s)", spec.Name, userUUID)
	return s.st.GetUser(ctx, userUUID.String())
}

// GetUser returns the user with the given UUID. A user the caller may
// not see reads as not found.
func (s *Service) GetUser(ctx context.Context, userUUID string) (access.User, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(resource.User)); err != nil {
			return access.User{}, errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.User, userUUID,
			permission.Get(resource.User), resource.LocationTable,
			accesserrors.UserNotFound); err != nil {
			return access.User{}, errors.Trace(err)
		}
	}
	return s.st.GetUser(ctx, userUUID)
}

// GetUserByName returns the user with the given login name.
func (s *Service) GetUserByName(ctx context.Context, name string) (access.User, error) {
	caller := credential.CallerFromContext(ctx)
	user, err := s.st.GetUserByName(ctx, name)
	if err != nil {
		return access.User{}, errors.Trace(err)
	}
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(resource.User)); err != nil {
			return access.User{}, errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.User, user.UUID,
			permission.Get(resource.User), resource.LocationTable,
			accesserrors.UserNotFound); err != nil {
			return access.User{}, errors.Trace(err)
		}
	}
	return user, nil
}

// Authenticate returns the user with the given name if the password
// matches. Absence and a wrong password are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, name, password string) (access.User, error) {
	if name == "" || password == "" {
		return access.User{}, errors.Annotate(accesserrors.UserNotFound, "empty credentials")
	}
	return s.st.GetUserByAuth(ctx, name, password)
}

// SetPassword replaces the user's password. Changing your own password
// needs no grant; changing anybody else's needs modify_user and
// visibility of the target.
func (s *Service) SetPassword(ctx context.Context, userUUID, password string) error {
	if password == "" {
		return errors.NotValidf("empty password")
	}
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() && caller.UUID != userUUID {
		if err := s.authorize(ctx, caller, permission.Modify(resource.User)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.User, userUUID,
			permission.Modify(resource.User), resource.LocationTable,
			accesserrors.UserNotFound); err != nil {
			return errors.Trace(err)
		}
	}

	salt, err := auth.NewSalt()
	if err != nil {
		return errors.Trace(err)
	}
	hash, err := auth.HashPassword(password, salt)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.st.SetPasswordHash(ctx, userUUID, hash, salt))
}

// SetUserEnabled enables or disables the user's logins.
func (s *Service) SetUserEnabled(ctx context.Context, userUUID string, enabled bool) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Modify(resource.User)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.User, userUUID,
			permission.Modify(resource.User), resource.LocationTable,
			accesserrors.UserNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.SetEnabled(ctx, userUUID, enabled))
}

// DeleteUser removes the user for good, with its memberships and every
// permission it owns or is the subject of. The caller cannot delete
// themselves.
func (s *Service) DeleteUser(ctx context.Context, userUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if caller.UUID == userUUID {
		return errors.Forbiddenf("deleting the current user")
	}
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Delete(resource.User)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.User, userUUID,
			permission.Delete(resource.User), resource.LocationTable,
			accesserrors.UserNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.RemoveUser(ctx, userUUID))
}

// ListUsers returns the users the caller may see, in creation order.
func (s *Service) ListUsers(ctx context.Context) ([]access.User, error) {
	caller := credential.CallerFromContext(ctx)
	users, err := s.st.ListUsers(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if caller.Internal() {
		return users, nil
	}
	if err := s.authorize(ctx, caller, permission.Get(resource.User)); err != nil {
		return nil, errors.Trace(err)
	}

	visible, err := s.st.VisibleUUIDs(ctx, caller, resource.User, access.ListFilter{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	keep := make(map[string]bool, len(visible))
	for _, id := range visible {
		keep[id] = true
	}
	filtered := users[:0]
	for _, u := range users {
		if keep[u.UUID] {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// CreateGroup creates a new group owned by the caller. The internal
// caller creates global groups.
func (s *Service) CreateGroup(ctx context.Context, name, comment string) (access.Group, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Create(resource.Group)); err != nil {
			return access.Group{}, errors.Trace(err)
		}
	}
	if name == "" {
		return access.Group{}, errors.NotValidf("empty group name")
	}

	groupUUID, err := uuid.NewUUID()
	if err != nil {
		return access.Group{}, errors.Trace(err)
	}
	if err := s.st.AddGroup(ctx, groupUUID, caller.UUID, name, comment); err != nil {
		return access.Group{}, errors.Trace(err)
	}
	return s.st.GetGroup(ctx, groupUUID.String())
}

// GetGroup returns the group with the given UUID. A group the caller
// may not see reads as not found.
func (s *Service) GetGroup(ctx context.Context, groupUUID string) (access.Group, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(resource.Group)); err != nil {
			return access.Group{}, errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Group, groupUUID,
			permission.Get(resource.Group), resource.LocationTable,
			accesserrors.GroupNotFound); err != nil {
			return access.Group{}, errors.Trace(err)
		}
	}
	return s.st.GetGroup(ctx, groupUUID)
}

// ListGroups returns the groups the caller may see, in creation order.
func (s *Service) ListGroups(ctx context.Context) ([]access.Group, error) {
	caller := credential.CallerFromContext(ctx)
	groups, err := s.st.ListGroups(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if caller.Internal() {
		return groups, nil
	}
	if err := s.authorize(ctx, caller, permission.Get(resource.Group)); err != nil {
		return nil, errors.Trace(err)
	}

	visible, err := s.st.VisibleUUIDs(ctx, caller, resource.Group, access.ListFilter{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	keep := make(map[string]bool, len(visible))
	for _, id := range visible {
		keep[id] = true
	}
	filtered := groups[:0]
	for _, g := range groups {
		if keep[g.UUID] {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// AddUserToGroup puts the user into the group.
func (s *Service) AddUserToGroup(ctx context.Context, groupUUID, userUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Modify(resource.Group)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Group, groupUUID,
			permission.Modify(resource.Group), resource.LocationTable,
			accesserrors.GroupNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.AddUserToGroup(ctx, groupUUID, userUUID))
}

// RemoveUserFromGroup takes the user out of the group.
func (s *Service) RemoveUserFromGroup(ctx context.Context, groupUUID, userUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Modify(resource.Group)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Group, groupUUID,
			permission.Modify(resource.Group), resource.LocationTable,
			accesserrors.GroupNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.RemoveUserFromGroup(ctx, groupUUID, userUUID))
}

// TrashGroup moves the group into the trashcan. Grants held through the
// group stop applying until it is restored.
func (s *Service) TrashGroup(ctx context.Context, groupUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Delete(resource.Group)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Group, groupUUID,
			permission.Delete(resource.Group), resource.LocationTable,
			accesserrors.GroupNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.TrashGroup(ctx, groupUUID))
}

// RestoreGroup moves the group back out of the trashcan. Only the owner
// reaches into the trashcan.
func (s *Service) RestoreGroup(ctx context.Context, groupUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Restore); err != nil {
			return errors.Trace(err)
		}
		if err := s.owned(ctx, caller, resource.Group, groupUUID,
			resource.LocationTrash, accesserrors.GroupNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.RestoreGroup(ctx, groupUUID))
}

// DeleteGroup removes the group for good, live or trashed.
func (s *Service) DeleteGroup(ctx context.Context, groupUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Delete(resource.Group)); err != nil {
			return errors.Trace(err)
		}
		ok, err := s.st.HasAccess(ctx, caller, resource.Group, groupUUID,
			permission.Delete(resource.Group), resource.LocationTable)
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			// Not visible live; the trashcan is owner-only.
			if err := s.owned(ctx, caller, resource.Group, groupUUID,
				resource.LocationTrash, accesserrors.GroupNotFound); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(s.st.DeleteGroup(ctx, groupUUID))
}

// CreateRole creates a new role owned by the caller. The internal
// caller creates global roles.
func (s *Service) CreateRole(ctx context.Context, name, comment string) (access.Role, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Create(resource.Role)); err != nil {
			return access.Role{}, errors.Trace(err)
		}
	}
	if name == "" {
		return access.Role{}, errors.NotValidf("empty role name")
	}

	roleUUID, err := uuid.NewUUID()
	if err != nil {
		return access.Role{}, errors.Trace(err)
	}
	if err := s.st.AddRole(ctx, roleUUID, caller.UUID, name, comment); err != nil {
		return access.Role{}, errors.Trace(err)
	}
	return s.st.GetRole(ctx, roleUUID.String())
}

// GetRole returns the role with the given UUID. A role the caller may
// not see reads as not found.
func (s *Service) GetRole(ctx context.Context, roleUUID string) (access.Role, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(resource.Role)); err != nil {
			return access.Role{}, errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Role, roleUUID,
			permission.Get(resource.Role), resource.LocationTable,
			accesserrors.RoleNotFound); err != nil {
			return access.Role{}, errors.Trace(err)
		}
	}
	return s.st.GetRole(ctx, roleUUID)
}

// ListRoles returns the roles the caller may see, in creation order.
// The predefined roles are global, so everybody sees them.
func (s *Service) ListRoles(ctx context.Context) ([]access.Role, error) {
	caller := credential.CallerFromContext(ctx)
	roles, err := s.st.ListRoles(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if caller.Internal() {
		return roles, nil
	}
	if err := s.authorize(ctx, caller, permission.Get(resource.Role)); err != nil {
		return nil, errors.Trace(err)
	}

	visible, err := s.st.VisibleUUIDs(ctx, caller, resource.Role, access.ListFilter{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	keep := make(map[string]bool, len(visible))
	for _, id := range visible {
		keep[id] = true
	}
	filtered := roles[:0]
	for _, r := range roles {
		if keep[r.UUID] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// AddUserToRole puts the user into the role.
func (s *Service) AddUserToRole(ctx context.Context, roleUUID, userUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Modify(resource.Role)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Role, roleUUID,
			permission.Modify(resource.Role), resource.LocationTable,
			accesserrors.RoleNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.AddUserToRole(ctx, roleUUID, userUUID))
}

// RemoveUserFromRole takes the user out of the role.
func (s *Service) RemoveUserFromRole(ctx context.Context, roleUUID, userUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Modify(resource.Role)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Role, roleUUID,
			permission.Modify(resource.Role), resource.LocationTable,
			accesserrors.RoleNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.RemoveUserFromRole(ctx, roleUUID, userUUID))
}

// UserHasRole reports whether the user is a member of the role.
func (s *Service) UserHasRole(ctx context.Context, userUUID, roleUUID string) (bool, error) {
	if userUUID == "" || roleUUID == "" {
		return false, errors.NotValidf("empty UUID")
	}
	return s.st.UserHasRole(ctx, userUUID, roleUUID)
}

// TrashRole moves the role into the trashcan. Grants held through the
// role stop applying until it is restored.
func (s *Service) TrashRole(ctx context.Context, roleUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Delete(resource.Role)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Role, roleUUID,
			permission.Delete(resource.Role), resource.LocationTable,
			accesserrors.RoleNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.TrashRole(ctx, roleUUID))
}

// RestoreRole moves the role back out of the trashcan.
func (s *Service) RestoreRole(ctx context.Context, roleUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Restore); err != nil {
			return errors.Trace(err)
		}
		if err := s.owned(ctx, caller, resource.Role, roleUUID,
			resource.LocationTrash, accesserrors.RoleNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.RestoreRole(ctx, roleUUID))
}

// DeleteRole removes the role for good, live or trashed.
func (s *Service) DeleteRole(ctx context.Context, roleUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Delete(resource.Role)); err != nil {
			return errors.Trace(err)
		}
		ok, err := s.st.HasAccess(ctx, caller, resource.Role, roleUUID,
			permission.Delete(resource.Role), resource.LocationTable)
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			if err := s.owned(ctx, caller, resource.Role, roleUUID,
				resource.LocationTrash, accesserrors.RoleNotFound); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(s.st.DeleteRole(ctx, roleUUID))
}

// CreatePermission records a new grant owned by the caller. Granting a
// command requires holding it yourself; a grant tied to a resource
// additionally requires the resource to be visible.
func (s *Service) CreatePermission(ctx context.Context, spec access.PermissionSpec) (access.Permission, error) {
	caller := credential.CallerFromContext(ctx)
	if err := spec.Name.Validate(); err != nil {
		return access.Permission{}, errors.Trace(err)
	}
	switch spec.SubjectType {
	case access.SubjectUser, access.SubjectGroup, access.SubjectRole:
	default:
		return access.Permission{}, errors.Annotatef(accesserrors.SubjectTypeNotValid, "%q", spec.SubjectType)
	}
	if spec.SubjectUUID == "" {
		return access.Permission{}, errors.NotValidf("empty subject UUID")
	}
	if spec.ResourceKind != "" {
		if err := spec.ResourceKind.Validate(); err != nil {
			return access.Permission{}, errors.Trace(err)
		}
		if spec.ResourceKind.IsFeed() {
			return access.Permission{}, errors.NotValidf("permission on SecInfo %q", spec.ResourceKind)
		}
		if spec.ResourceUUID == "" {
			return access.Permission{}, errors.NotValidf("empty resource UUID")
		}
		if spec.Name == permission.Everything {
			return access.Permission{}, errors.NotValidf("Everything tied to a resource")
		}
	}

	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Create(resource.Permission)); err != nil {
			return access.Permission{}, errors.Trace(err)
		}
		// Nobody hands out a command they cannot run themselves.
		if err := s.authorize(ctx, caller, spec.Name); err != nil {
			return access.Permission{}, errors.Trace(err)
		}
		if spec.ResourceKind != "" {
			if err := s.visible(ctx, caller, spec.ResourceKind, spec.ResourceUUID,
				permission.Get(spec.ResourceKind), resource.LocationTable,
				errors.NotFound); err != nil {
				return access.Permission{}, errors.Trace(err)
			}
		}
	}

	permissionUUID, err := uuid.NewUUID()
	if err != nil {
		return access.Permission{}, errors.Trace(err)
	}
	if err := s.st.CreatePermission(ctx, permissionUUID, caller.UUID, spec); err != nil {
		return access.Permission{}, errors.Trace(err)
	}
	return s.st.GetPermission(ctx, permissionUUID.String(), resource.LocationTable)
}

// GetPermission returns the permission with the given UUID. A
// permission the caller may not see reads as not found.
func (s *Service) GetPermission(ctx context.Context, permissionUUID string) (access.Permission, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(resource.Permission)); err != nil {
			return access.Permission{}, errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Permission, permissionUUID,
			permission.Get(resource.Permission), resource.LocationTable,
			accesserrors.PermissionNotFound); err != nil {
			return access.Permission{}, errors.Trace(err)
		}
	}
	return s.st.GetPermission(ctx, permissionUUID, resource.LocationTable)
}

// ListPermissions returns the permissions visible to the caller under
// the filter, in creation order.
func (s *Service) ListPermissions(ctx context.Context, filter access.ListFilter) ([]access.Permission, error) {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(resource.Permission)); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return s.st.ListPermissions(ctx, caller, filter)
}

// TrashPermission moves the permission into the trashcan, where it
// grants nothing until restored.
func (s *Service) TrashPermission(ctx context.Context, permissionUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Delete(resource.Permission)); err != nil {
			return errors.Trace(err)
		}
		if err := s.visible(ctx, caller, resource.Permission, permissionUUID,
			permission.Delete(resource.Permission), resource.LocationTable,
			accesserrors.PermissionNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.TrashPermission(ctx, permissionUUID))
}

// RestorePermission moves the permission back out of the trashcan.
func (s *Service) RestorePermission(ctx context.Context, permissionUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Restore); err != nil {
			return errors.Trace(err)
		}
		if err := s.owned(ctx, caller, resource.Permission, permissionUUID,
			resource.LocationTrash, accesserrors.PermissionNotFound); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.RestorePermission(ctx, permissionUUID))
}

// DeletePermission removes the permission for good, live or trashed.
func (s *Service) DeletePermission(ctx context.Context, permissionUUID string) error {
	caller := credential.CallerFromContext(ctx)
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Delete(resource.Permission)); err != nil {
			return errors.Trace(err)
		}
		ok, err := s.st.HasAccess(ctx, caller, resource.Permission, permissionUUID,
			permission.Delete(resource.Permission), resource.LocationTable)
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			if err := s.owned(ctx, caller, resource.Permission, permissionUUID,
				resource.LocationTrash, accesserrors.PermissionNotFound); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(s.st.DeletePermission(ctx, permissionUUID))
}
