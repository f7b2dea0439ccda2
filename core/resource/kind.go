// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"github.com/juju/errors"
)

// Kind identifies a type of managed resource. The value is the singular
// type name persisted in permission rows (resource_type) and used to derive
// command names such as "get_tasks".
type Kind string

const (
	Task       Kind = "task"
	Target     Kind = "target"
	Config     Kind = "config"
	Scanner    Kind = "scanner"
	Schedule   Kind = "schedule"
	Alert      Kind = "alert"
	Filter     Kind = "filter"
	Tag        Kind = "tag"
	Note       Kind = "note"
	Override   Kind = "override"
	Report     Kind = "report"
	Result     Kind = "result"
	Permission Kind = "permission"
	User       Kind = "user"
	Group      Kind = "group"
	Role       Kind = "role"
	Agent      Kind = "agent"

	// SecInfo kinds are populated from the feed and are never owned by a
	// single user.
	NVT        Kind = "nvt"
	CVE        Kind = "cve"
	CPE        Kind = "cpe"
	OvalDef    Kind = "ovaldef"
	DFNCertAdv Kind = "dfn_cert_adv"
)

// Kinds holds every valid resource kind.
var Kinds = []Kind{
	Task, Target, Config, Scanner, Schedule, Alert, Filter, Tag, Note,
	Override, Report, Result, Permission, User, Group, Role, Agent,
	NVT, CVE, CPE, OvalDef, DFNCertAdv,
}

var validKinds = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(Kinds))
	for _, k := range Kinds {
		m[k] = struct{}{}
	}
	return m
}()

// Validate returns an error satisfying errors.NotValid if the kind is not
// a known resource type.
func (k Kind) Validate() error {
	if _, ok := validKinds[k]; !ok {
		return errors.NotValidf("resource kind %q", string(k))
	}
	return nil
}

// String implements Stringer.
func (k Kind) String() string {
	return string(k)
}

// Plural returns the plural type name, as used in read command names and
// table names.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// Table returns the name of the live table holding rows of this kind.
func (k Kind) Table() string {
	return k.Plural()
}

// TrashTable returns the name of the table holding trashcan rows of this
// kind. Tasks are trashed in place, so their trash table is the live table.
func (k Kind) TrashTable() string {
	if k == Task {
		return k.Table()
	}
	return k.Plural() + "_trash"
}

// TrashInPlace reports whether trashed rows of this kind stay in the live
// table, marked by the hidden column, rather than moving to a twin table.
func (k Kind) TrashInPlace() bool {
	return k == Task
}

// HasTrash reports whether rows of this kind can be moved to the trashcan.
func (k Kind) HasTrash() bool {
	switch k {
	case Task, Target, Config, Scanner, Schedule, Alert, Filter, Tag,
		Note, Override, Permission, Group, Role, Agent:
		return true
	}
	return false
}

// IsFeed reports whether the kind is SecInfo data synchronised from the
// feed. Feed rows carry no owner and are readable by every user.
func (k Kind) IsFeed() bool {
	switch k {
	case NVT, CVE, CPE, OvalDef, DFNCertAdv:
		return true
	}
	return false
}

// HasOwner reports whether the kind's table carries an owner column.
// Results are owned transitively through the report they belong to.
func (k Kind) HasOwner() bool {
	return !k.IsFeed() && k != Result
}
