// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package service wires the resource engine to the protocol front end:
// every operation resolves the caller from the context, asks the
// access rules, and only then touches the resource tables.
package service

import (
	"context"
	"strconv"

	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/credential"
	"github.com/greenbone/gvmd/core/permission"
	"github.com/greenbone/gvmd/core/resource"
	"github.com/greenbone/gvmd/domain/catalog"
	catalogerrors "github.com/greenbone/gvmd/domain/catalog/errors"
	"github.com/greenbone/gvmd/internal/uuid"
)

// State describes the persistence layer driving the resource engine.
type State interface {
	// Create inserts a new live row of the kind. An empty owner UUID
	// makes the row global.
	Create(ctx context.Context, resourceUUID uuid.UUID, ownerUUID string, kind resource.Kind, spec catalog.CreateSpec) error

	// Get returns the resource at the location, envelope and
	// attributes.
	Get(ctx context.Context, kind resource.Kind, resourceUUID string, location resource.Location) (catalog.Resource, error)

	// List returns the envelopes of the rows the caller may see, in
	// insertion order.
	List(ctx context.Context, caller credential.Caller, kind resource.Kind, filter catalog.ListFilter) ([]catalog.Resource, error)

	// Modify updates the named fields of the live row.
	Modify(ctx context.Context, kind resource.Kind, resourceUUID string, spec catalog.ModifySpec) error

	// Trash moves the live row into the kind's trashcan.
	Trash(ctx context.Context, kind resource.Kind, resourceUUID string) error

	// Restore moves the trashed row back to the live table.
	Restore(ctx context.Context, kind resource.Kind, resourceUUID string) error

	// Delete removes the row for good, wherever it sits.
	Delete(ctx context.Context, kind resource.Kind, resourceUUID string) error

	// EmptyTrash purges every trashed row the user owns. An empty
	// owner UUID purges everyone's trash.
	EmptyTrash(ctx context.Context, ownerUUID string) error
}

// AccessState answers the access questions for the catalog. The
// answers are compiled from the same rule set as the predicate the
// bulk listing splices into its query.
type AccessState interface {
	// UserMay reports whether the caller may run the command at all.
	UserMay(ctx context.Context, caller credential.Caller, cmd permission.Command) (bool, error)

	// HasAccess reports whether the caller may apply the command to
	// the resource. A missing row yields false, indistinguishable from
	// denial.
	HasAccess(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, cmd permission.Command, location resource.Location) (bool, error)

	// OwnsResource reports whether the caller owns the resource.
	OwnsResource(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, location resource.Location) (bool, error)
}

// Logger is the interface used by the service for logging.
type Logger interface {
	Tracef(string, ...interface{})
	Debugf(string, ...interface{})
}

// Service exposes the resource lifecycle.
type Service struct {
	st     State
	access AccessState
	logger Logger
}

// NewService returns a new Service over the given state layers.
func NewService(st State, access AccessState, logger Logger) *Service {
	return &Service{
		st:     st,
		access: access,
		logger: logger,
	}
}

// authorize rejects callers lacking the command.
func (s *Service) authorize(ctx context.Context, caller credential.Caller, cmd permission.Command) error {
	ok, err := s.access.UserMay(ctx, caller, cmd)
	if err != nil {
		return errors.Trace(err)
	}
	if !ok {
		return errors.Unauthorizedf("command %q denied", cmd)
	}
	return nil
}

// visible folds denial and absence into not-found: a caller must not
// learn whether a resource it cannot see exists.
func (s *Service) visible(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, cmd permission.Command, location resource.Location) error {
	ok, err := s.access.HasAccess(ctx, caller, kind, resourceUUID, cmd, location)
	if err != nil {
		return errors.Trace(err)
	}
	if !ok {
		return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
	}
	return nil
}

// owned is the ownership form of visible, for the trashcan.
func (s *Service) owned(ctx context.Context, caller credential.Caller, kind resource.Kind, resourceUUID string, location resource.Location) error {
	ok, err := s.access.OwnsResource(ctx, caller, kind, resourceUUID, location)
	if err != nil {
		return errors.Trace(err)
	}
	if !ok {
		return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
	}
	return nil
}

// checkManaged rejects kinds whose lifecycle the catalog does not own.
func checkManaged(kind resource.Kind, doing string) error {
	if err := kind.Validate(); err != nil {
		return errors.Trace(err)
	}
	if !catalog.Managed(kind) {
		return errors.NotSupportedf("%s %s resources", doing, kind)
	}
	return nil
}

// Create makes a new resource of the kind, owned by the caller. The
// internal caller creates global resources. The created resource is
// returned as Get would report it.
func (s *Service) Create(ctx context.Context, kind resource.Kind, spec catalog.CreateSpec) (catalog.Resource, error) {
	caller := credential.CallerFromContext(ctx)

	if err := checkManaged(kind, "creating"); err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	if spec.Name == "" {
		return catalog.Resource{}, errors.NotValidf("empty name")
	}
	if err := catalog.ValidateAttributes(kind, spec.Attributes); err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Create(kind)); err != nil {
			return catalog.Resource{}, errors.Trace(err)
		}
	}

	resourceUUID, err := uuid.NewUUID()
	if err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	if err := s.st.Create(ctx, resourceUUID, caller.UUID, kind, spec); err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	s.logger.Debugf("created %s %q for %q", kind, resourceUUID, caller.Name)
	return s.st.Get(ctx, kind, resourceUUID.String(), resource.LocationTable)
}

// Get returns the resource with the given UUID. A resource the caller
// may not see is reported not found, whether or not it exists.
func (s *Service) Get(ctx context.Context, kind resource.Kind, resourceUUID string) (catalog.Resource, error) {
	caller := credential.CallerFromContext(ctx)

	if err := kind.Validate(); err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	if !catalog.InCatalog(kind) {
		return catalog.Resource{}, errors.NotSupportedf("reading %s resources through the catalog", kind)
	}
	if resourceUUID == "" {
		return catalog.Resource{}, errors.NotValidf("empty resource UUID")
	}
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(kind)); err != nil {
			return catalog.Resource{}, errors.Trace(err)
		}
		if err := s.visible(ctx, caller, kind, resourceUUID,
			permission.Get(kind), resource.LocationTable); err != nil {
			return catalog.Resource{}, errors.Trace(err)
		}
	}
	return s.st.Get(ctx, kind, resourceUUID, resource.LocationTable)
}

// List returns the resources of the kind the caller may see. The
// access predicate is part of the listing query itself, so the result
// matches what the single-resource checks would admit row by row.
func (s *Service) List(ctx context.Context, kind resource.Kind, filter catalog.ListFilter) ([]catalog.Resource, error) {
	caller := credential.CallerFromContext(ctx)

	if err := kind.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if !catalog.InCatalog(kind) {
		return nil, errors.NotSupportedf("reading %s resources through the catalog", kind)
	}
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Get(kind)); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return s.st.List(ctx, caller, kind, filter)
}

// Modify updates the resource and returns it as Get would report it
// afterwards. Nil fields keep their stored value.
func (s *Service) Modify(ctx context.Context, kind resource.Kind, resourceUUID string, spec catalog.ModifySpec) (catalog.Resource, error) {
	caller := credential.CallerFromContext(ctx)

	if err := checkManaged(kind, "modifying"); err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	if resourceUUID == "" {
		return catalog.Resource{}, errors.NotValidf("empty resource UUID")
	}
	if spec.Name != nil && *spec.Name == "" {
		return catalog.Resource{}, errors.NotValidf("empty name")
	}
	if err := catalog.ValidateAttributes(kind, spec.Attributes); err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Modify(kind)); err != nil {
			return catalog.Resource{}, errors.Trace(err)
		}
		if err := s.visible(ctx, caller, kind, resourceUUID,
			permission.Modify(kind), resource.LocationTable); err != nil {
			return catalog.Resource{}, errors.Trace(err)
		}
	}

	if err := s.st.Modify(ctx, kind, resourceUUID, spec); err != nil {
		return catalog.Resource{}, errors.Trace(err)
	}
	return s.st.Get(ctx, kind, resourceUUID, resource.LocationTable)
}

// Delete moves the resource to the trashcan, or removes it for good
// when ultimate is set. Reports have no trashcan; deleting one is
// always permanent. Deleting a resource that already sits in the
// caller's trashcan does nothing unless ultimate purges it.
func (s *Service) Delete(ctx context.Context, kind resource.Kind, resourceUUID string, ultimate bool) error {
	caller := credential.CallerFromContext(ctx)

	if err := kind.Validate(); err != nil {
		return errors.Trace(err)
	}
	if !catalog.Deletable(kind) {
		return errors.NotSupportedf("deleting %s resources", kind)
	}
	if resourceUUID == "" {
		return errors.NotValidf("empty resource UUID")
	}
	if caller.Internal() {
		if ultimate || !kind.HasTrash() {
			return errors.Trace(s.st.Delete(ctx, kind, resourceUUID))
		}
		return errors.Trace(s.st.Trash(ctx, kind, resourceUUID))
	}
	if err := s.authorize(ctx, caller, permission.Delete(kind)); err != nil {
		return errors.Trace(err)
	}

	ok, err := s.access.HasAccess(ctx, caller, kind, resourceUUID, permission.Delete(kind), resource.LocationTable)
	if err != nil {
		return errors.Trace(err)
	}
	if ok {
		if ultimate || !kind.HasTrash() {
			return errors.Trace(s.st.Delete(ctx, kind, resourceUUID))
		}
		return errors.Trace(s.st.Trash(ctx, kind, resourceUUID))
	}

	// Not visible live. The row may sit in the caller's trashcan,
	// which is owner territory.
	if !kind.HasTrash() {
		return errors.Annotatef(catalogerrors.NotFound, "%s %q", kind, resourceUUID)
	}
	if err := s.owned(ctx, caller, kind, resourceUUID, resource.LocationTrash); err != nil {
		return errors.Trace(err)
	}
	if !ultimate {
		return nil
	}
	return errors.Trace(s.st.Delete(ctx, kind, resourceUUID))
}

// Restore moves the resource out of the trashcan. The trashcan is
// private: only the owner restores, whatever grants exist.
func (s *Service) Restore(ctx context.Context, kind resource.Kind, resourceUUID string) error {
	caller := credential.CallerFromContext(ctx)

	if err := checkManaged(kind, "restoring"); err != nil {
		return errors.Trace(err)
	}
	if resourceUUID == "" {
		return errors.NotValidf("empty resource UUID")
	}
	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.Restore); err != nil {
			return errors.Trace(err)
		}
		if err := s.owned(ctx, caller, kind, resourceUUID, resource.LocationTrash); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.Restore(ctx, kind, resourceUUID))
}

// EmptyTrash purges the caller's trashcan: every trashed resource the
// caller owns, of every kind, goes for good. The internal caller
// purges everyone's trash.
func (s *Service) EmptyTrash(ctx context.Context) error {
	caller := credential.CallerFromContext(ctx)

	if !caller.Internal() {
		if err := s.authorize(ctx, caller, permission.EmptyTrashcan); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.EmptyTrash(ctx, caller.UUID))
}

// ScannerConnection returns what a client needs to reach the scanner's
// agent control endpoint. A scanner without a configured endpoint is
// reported not valid.
func (s *Service) ScannerConnection(ctx context.Context, scannerUUID string) (catalog.ScannerConnection, error) {
	r, err := s.Get(ctx, resource.Scanner, scannerUUID)
	if err != nil {
		return catalog.ScannerConnection{}, errors.Trace(err)
	}
	host := r.Attributes["host"]
	if host == "" {
		return catalog.ScannerConnection{}, errors.NotValidf("scanner %q without an agent endpoint", scannerUUID)
	}
	port, err := strconv.Atoi(r.Attributes["port"])
	if err != nil || port <= 0 {
		return catalog.ScannerConnection{}, errors.NotValidf("scanner %q port %q", scannerUUID, r.Attributes["port"])
	}
	return catalog.ScannerConnection{
		Host:    host,
		Port:    port,
		CAPub:   r.Attributes["ca_pub"],
		KeyPub:  r.Attributes["key_pub"],
		KeyPriv: r.Attributes["key_priv"],
	}, nil
}
