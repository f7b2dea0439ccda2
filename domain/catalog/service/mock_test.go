// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package service_test

import (
	"context"

	jtesting "github.com/juju/testing"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/catalog"
	"github.com/greenbone/gvmd/internal/uuid"
)

// fakeBackend answers both the persistence and the access questions
// from canned fields and records every call on one stub, so a test can
// assert the exact order checks and writes happen in. newFakeBackend
// returns one that allows every command and sees every resource; tests
// narrow it from there.
type fakeBackend struct {
	jtesting.Stub

	denied map[permission.Command]bool
	access bool
	owns   bool

	resource  catalog.Resource
	resources []catalog.Resource

	// gotUUID captures the UUID minted for a created resource.
	gotUUID string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{access: true, owns: true}
}

func (m *fakeBackend) deny(cmds ...permission.Command) {
	if m.denied == nil {
		m.denied = make(map[permission.Command]bool)
	}
	for _, cmd := range cmds {
		m.denied[cmd] = true
	}
}

func (m *fakeBackend) UserMay(ctx context.Context, caller credential.Caller, cmd permission.Command) (bool, error) {
	m.MethodCall(m, "UserMay", caller.UUID, cmd)
	return !m.denied[cmd], m.NextErr()
}

func (m *fakeBackend) HasAccess(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, cmd permission.Command, location resource.Location) (bool, error) {
	m.MethodCall(m, "HasAccess", caller.UUID, kind, resourceUUID, cmd, location)
	return m.access, m.NextErr()
}

func (m *fakeBackend) OwnsResource(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, location resource.Location) (bool, error) {
	m.MethodCall(m, "OwnsResource", caller.UUID, kind, resourceUUID, location)
	return m.owns, m.NextErr()
}

func (m *fakeBackend) Create(ctx context.Context, resourceUUID uuid.UUID, ownerUUID string, kind resource.Kind, spec catalog.CreateSpec) error {
	m.MethodCall(m, "Create", ownerUUID, kind, spec)
	m.gotUUID = resourceUUID.String()
	return m.NextErr()
}

func (m *fakeBackend) Get(ctx context.Context, kind resource.Kind, resourceUUID string, location resource.Location) (catalog.Resource, error) {
	m.MethodCall(m, "Get", kind, resourceUUID, location)
	return m.resource, m.NextErr()
}

func (m *fakeBackend) List(ctx context.Context, caller credential.Caller, kind resource.Kind, filter catalog.ListFilter) ([]catalog.Resource, error) {
	m.MethodCall(m, "List", caller.UUID, kind, filter)
	return m.resources, m.NextErr()
}

func (m *fakeBackend) Modify(ctx context.Context, kind resource.Kind, resourceUUID string, spec catalog.ModifySpec) error {
	m.MethodCall(m, "Modify", kind, resourceUUID, spec)
	return m.NextErr()
}

func (m *fakeBackend) Trash(ctx context.Context, kind resource.Kind, resourceUUID string) error {
	m.MethodCall(m, "Trash", kind, resourceUUID)
	return m.NextErr()
}

func (m *fakeBackend) Restore(ctx context.Context, kind resource.Kind, resourceUUID string) error {
	m.MethodCall(m, "Restore", kind, resourceUUID)
	return m.NextErr()
}

func (m *fakeBackend) Delete(ctx context.Context, kind resource.Kind, resourceUUID string) error {
	m.MethodCall(m, "Delete", kind, resourceUUID)
	return m.NextErr()
}

func (m *fakeBackend) EmptyTrash(ctx context.Context, ownerUUID string) error {
	m.MethodCall(m, "EmptyTrash", ownerUUID)
	return m.NextErr()
}
