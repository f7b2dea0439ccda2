// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

import (
	"time"

	"github.com/greenbone/gvmd/core/resource"
)

// Resource is the envelope shared by every catalog row. Kinds lacking
// one of the envelope columns report the zero value: results carry no
// owner or name of their own, and SecInfo rows no comment.
type Resource struct {
	// UUID identifies the resource across tables: a row keeps its UUID
	// when it moves to the trashcan and back.
	UUID string

	// Kind is the resource type.
	Kind resource.Kind

	// Owner is the UUID of the owning user. Empty means the row is
	// global and belongs to everyone.
	Owner string

	Name    string
	Comment string

	// Attributes holds the kind specific columns, keyed by attribute
	// name. Reference attributes hold the UUID of the referenced
	// resource. List results leave Attributes nil; Get fills them.
	Attributes map[string]string

	CreatedAt  time.Time
	ModifiedAt time.Time
}

// CreateSpec describes a resource to be created.
type CreateSpec struct {
	Name    string
	Comment string

	// Attributes sets kind specific columns. Every key must appear in
	// the kind's attribute registry. Omitted attributes take their
	// schema defaults.
	Attributes map[string]string
}

// ModifySpec describes changes to an existing resource. Nil fields are
// left alone; an empty string clears. Setting a reference attribute to
// the empty string detaches it.
type ModifySpec struct {
	Name    *string
	Comment *string

	// Attributes updates the named kind specific columns. Absent keys
	// are left alone.
	Attributes map[string]string
}

// ListFilter narrows a bulk listing.
type ListFilter struct {
	// Location selects the live table or the trashcan.
	Location resource.Location

	// OwnerName restricts rows to those owned by the named user. Empty
	// or "any" applies no restriction.
	OwnerName string

	// Unfiltered skips access filtering entirely. Only for listings a
	// caller is separately known to be entitled to.
	Unfiltered bool
}

// ScannerConnection is what a client needs to reach a scanner's agent
// control endpoint.
type ScannerConnection struct {
	Host    string
	Port    int
	CAPub   string
	KeyPub  string
	KeyPriv string
}

// managedKinds are the kinds created, modified and trashed through the
// catalog.
var managedKinds = map[resource.Kind]struct{}{
	resource.Task:     {},
	resource.Target:   {},
	resource.Config:   {},
	resource.Scanner:  {},
	resource.Schedule: {},
	resource.Alert:    {},
	resource.Filter:   {},
	resource.Tag:      {},
	resource.Note:     {},
	resource.Override: {},
	resource.Agent:    {},
}

// Managed reports whether the kind's full lifecycle runs through the
// catalog. Reports and results are produced by scans, SecInfo comes
// from the feed, and the access domain manages accounts, groups, roles
// and permissions.
func Managed(kind resource.Kind) bool {
	_, ok := managedKinds[kind]
	return ok
}

// InCatalog reports whether rows of the kind can be read through the
// catalog. This includes the read-only kinds: reports, results and
// SecInfo.
func InCatalog(kind resource.Kind) bool {
	if Managed(kind) || kind.IsFeed() {
		return true
	}
	return kind == resource.Report || kind == resource.Result
}

// Deletable reports whether rows of the kind can be deleted through
// the catalog. Reports can, though they have no trashcan: deleting a
// report is always permanent. Results only die with their report or
// task.
func Deletable(kind resource.Kind) bool {
	return Managed(kind) || kind == resource.Report
}
