// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/access"
	accesserrors "github.com/greenbone/gvmd/domain/access/errors"
	"github.com/greenbone/gvmd/internal/uuid"
)

type permissionSuite struct {
	baseSuite
}

var _ = gc.Suite(&permissionSuite{})

func (s *permissionSuite) TestCreatePermissionRoundtrip(c *gc.C) {
	alice := s.addUser(c, "alice")
	bob := s.addUser(c, "bob")
	target := s.ensureResource(c, resource.Target, "alice")

	permissionUUID, err := uuid.NewUUID()
	c.Assert(err, jc.ErrorIsNil)
	err = s.state.CreatePermission(context.Background(), permissionUUID, alice.UUID, access.PermissionSpec{
		Name:         "get_targets",
		Comment:      "shared for review",
		ResourceKind: resource.Target,
		ResourceUUID: target,
		SubjectType:  access.SubjectUser,
		SubjectUUID:  bob.UUID,
	})
	c.Assert(err, jc.ErrorIsNil)

	got, err := s.state.GetPermission(context.Background(), permissionUUID.String(), resource.LocationTable)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.UUID, gc.Equals, permissionUUID.String())
	c.Check(got.Owner, gc.Equals, alice.UUID)
	c.Check(got.Name, gc.Equals, permission.Command("get_targets"))
	c.Check(got.Comment, gc.Equals, "shared for review")
	c.Check(got.ResourceKind, gc.Equals, resource.Target)
	c.Check(got.ResourceUUID, gc.Equals, target)
	c.Check(got.SubjectType, gc.Equals, access.SubjectUser)
	c.Check(got.SubjectUUID, gc.Equals, bob.UUID)
	c.Check(got.CreatedAt.IsZero(), jc.IsFalse)
}

func (s *permissionSuite) TestCreatePermissionGlobal(c *gc.C) {
	alice := s.addUser(c, "alice")
	granted := s.grant(c, credential.Caller{}, "get_tasks", "", "", access.SubjectUser, alice.UUID)

	got, err := s.state.GetPermission(context.Background(), granted, resource.LocationTable)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.Owner, gc.Equals, "")
	c.Check(got.ResourceKind, gc.Equals, resource.Kind(""))
	c.Check(got.ResourceUUID, gc.Equals, "")
	c.Check(got.SubjectUUID, gc.Equals, alice.UUID)
}

func (s *permissionSuite) TestCreatePermissionGroupAndRoleSubjects(c *gc.C) {
	group := s.addGroup(c, "ops")
	role := s.addRole(c, "auditor")

	forGroup := s.grant(c, credential.Caller{}, "get_tasks", "", "", access.SubjectGroup, group)
	forRole := s.grant(c, credential.Caller{}, "get_tasks", "", "", access.SubjectRole, role)

	got, err := s.state.GetPermission(context.Background(), forGroup, resource.LocationTable)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.SubjectType, gc.Equals, access.SubjectGroup)
	c.Check(got.SubjectUUID, gc.Equals, group)

	got, err = s.state.GetPermission(context.Background(), forRole, resource.LocationTable)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.SubjectType, gc.Equals, access.SubjectRole)
	c.Check(got.SubjectUUID, gc.Equals, role)
}

func (s *permissionSuite) TestCreatePermissionDuplicateUUID(c *gc.C) {
	alice := s.addUser(c, "alice")

	permissionUUID, err := uuid.NewUUID()
	c.Assert(err, jc.ErrorIsNil)
	spec := access.PermissionSpec{
		Name:        "get_tasks",
		SubjectType: access.SubjectUser,
		SubjectUUID: alice.UUID,
	}
	err = s.state.CreatePermission(context.Background(), permissionUUID, "", spec)
	c.Assert(err, jc.ErrorIsNil)
	err = s.state.CreatePermission(context.Background(), permissionUUID, "", spec)
	c.Check(err, jc.ErrorIs, accesserrors.PermissionAlreadyExists)
}

func (s *permissionSuite) TestCreatePermissionSubjectNotFound(c *gc.C) {
	for _, subjectType := range []access.SubjectType{
		access.SubjectUser, access.SubjectGroup, access.SubjectRole,
	} {
		permissionUUID, err := uuid.NewUUID()
		c.Assert(err, jc.ErrorIsNil)
		err = s.state.CreatePermission(context.Background(), permissionUUID, "", access.PermissionSpec{
			Name:        "get_tasks",
			SubjectType: subjectType,
			SubjectUUID: "97e5834d-4a7c-4712-90f7-5b9fcbb02b01",
		})
		c.Check(err, jc.ErrorIs, accesserrors.SubjectNotFound,
			gc.Commentf("subject type %q", subjectType))
	}
}

func (s *permissionSuite) TestCreatePermissionSubjectTypeNotValid(c *gc.C) {
	alice := s.addUser(c, "alice")

	permissionUUID, err := uuid.NewUUID()
	c.Assert(err, jc.ErrorIsNil)
	err = s.state.CreatePermission(context.Background(), permissionUUID, "", access.PermissionSpec{
		Name:        "get_tasks",
		SubjectType: "host",
		SubjectUUID: alice.UUID,
	})
	c.Check(err, jc.ErrorIs, accesserrors.SubjectTypeNotValid)
}

func (s *permissionSuite) TestCreatePermissionResourceNotFound(c *gc.C) {
	alice := s.addUser(c, "alice")

	permissionUUID, err := uuid.NewUUID()
	c.Assert(err, jc.ErrorIsNil)
	err = s.state.CreatePermission(context.Background(), permissionUUID, "", access.PermissionSpec{
		Name:         "get_targets",
		ResourceKind: resource.Target,
		ResourceUUID: "97e5834d-4a7c-4712-90f7-5b9fcbb02b01",
		SubjectType:  access.SubjectUser,
		SubjectUUID:  alice.UUID,
	})
	c.Check(err, jc.ErrorIs, errors.NotFound)
}

func (s *permissionSuite) TestGetPermissionNotFound(c *gc.C) {
	_, err := s.state.GetPermission(context.Background(),
		"97e5834d-4a7c-4712-90f7-5b9fcbb02b01", resource.LocationTable)
	c.Check(err, jc.ErrorIs, accesserrors.PermissionNotFound)
}

func (s *permissionSuite) TestListPermissionsVisibility(c *gc.C) {
	alice := s.addUser(c, "alice")
	bob := s.addUser(c, "bob")
	charlie := s.addUser(c, "charlie")
	root := s.addUser(c, "root")
	everything := s.grant(c, credential.Caller{}, permission.Everything, "", "", access.SubjectUser, root.UUID)

	target := s.ensureResource(c, resource.Target, "alice")
	granted := s.grant(c, alice, "get_targets", resource.Target, target, access.SubjectUser, bob.UUID)

	list := func(caller credential.Caller) []string {
		permissions, err := s.state.ListPermissions(context.Background(), caller, access.ListFilter{})
		c.Assert(err, jc.ErrorIsNil)
		var uuids []string
		for _, p := range permissions {
			uuids = append(uuids, p.UUID)
		}
		return uuids
	}

	// The owner and the subject both see the grant; a bystander does
	// not. The global Everything row reads as owned by everyone, like
	// any global resource.
	c.Check(list(alice), jc.DeepEquals, []string{everything, granted})
	c.Check(list(bob), jc.DeepEquals, []string{everything, granted})
	c.Check(list(charlie), jc.DeepEquals, []string{everything})
	c.Check(list(root), jc.DeepEquals, []string{everything, granted})
}

func (s *permissionSuite) TestListPermissionsResolvesSubjectUUIDs(c *gc.C) {
	alice := s.addUser(c, "alice")
	group := s.addGroup(c, "ops", alice.UUID)
	granted := s.grant(c, alice, "get_tasks", "", "", access.SubjectGroup, group)

	permissions, err := s.state.ListPermissions(context.Background(), alice, access.ListFilter{})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(permissions, gc.HasLen, 1)
	c.Check(permissions[0].UUID, gc.Equals, granted)
	c.Check(permissions[0].SubjectType, gc.Equals, access.SubjectGroup)
	c.Check(permissions[0].SubjectUUID, gc.Equals, group)
	c.Check(permissions[0].Owner, gc.Equals, alice.UUID)
}

// TestTrashPermissionMakesItInert checks that a trashed grant no longer
// opens anything, and that restoring it brings the access back.
func (s *permissionSuite) TestTrashPermissionMakesItInert(c *gc.C) {
	alice := s.addUser(c, "alice")
	bob := s.addUser(c, "bob")
	target := s.ensureResource(c, resource.Target, "alice")
	granted := s.grant(c, alice, "get_targets", resource.Target, target, access.SubjectUser, bob.UUID)

	c.Check(s.hasAccess(c, bob, resource.Target, target, "get_targets"), jc.IsTrue)

	err := s.state.TrashPermission(context.Background(), granted)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.hasAccess(c, bob, resource.Target, target, "get_targets"), jc.IsFalse)
	_, err = s.state.GetPermission(context.Background(), granted, resource.LocationTable)
	c.Check(err, jc.ErrorIs, accesserrors.PermissionNotFound)
	got, err := s.state.GetPermission(context.Background(), granted, resource.LocationTrash)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.Name, gc.Equals, permission.Command("get_targets"))

	err = s.state.RestorePermission(context.Background(), granted)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.hasAccess(c, bob, resource.Target, target, "get_targets"), jc.IsTrue)
}

func (s *permissionSuite) TestTrashPermissionNotFound(c *gc.C) {
	err := s.state.TrashPermission(context.Background(), "97e5834d-4a7c-4712-90f7-5b9fcbb02b01")
	c.Check(err, jc.ErrorIs, accesserrors.PermissionNotFound)
}

func (s *permissionSuite) TestRestorePermissionNotFound(c *gc.C) {
	err := s.state.RestorePermission(context.Background(), "97e5834d-4a7c-4712-90f7-5b9fcbb02b01")
	c.Check(err, jc.ErrorIs, accesserrors.PermissionNotFound)
}

func (s *permissionSuite) TestDeletePermission(c *gc.C) {
	alice := s.addUser(c, "alice")
	granted := s.grant(c, credential.Caller{}, "get_tasks", "", "", access.SubjectUser, alice.UUID)

	err := s.state.DeletePermission(context.Background(), granted)
	c.Assert(err, jc.ErrorIsNil)
	_, err = s.state.GetPermission(context.Background(), granted, resource.LocationTable)
	c.Check(err, jc.ErrorIs, accesserrors.PermissionNotFound)

	err = s.state.DeletePermission(context.Background(), granted)
	c.Check(err, jc.ErrorIs, accesserrors.PermissionNotFound)
}

func (s *permissionSuite) TestDeletePermissionFromTrash(c *gc.C) {
	alice := s.addUser(c, "alice")
	granted := s.grant(c, credential.Caller{}, "get_tasks", "", "", access.SubjectUser, alice.UUID)

	err := s.state.TrashPermission(context.Background(), granted)
	c.Assert(err, jc.ErrorIsNil)
	err = s.state.DeletePermission(context.Background(), granted)
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.state.GetPermission(context.Background(), granted, resource.LocationTrash)
	c.Check(err, jc.ErrorIs, accesserrors.PermissionNotFound)
}
