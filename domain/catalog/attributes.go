// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

import (
	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/resource"
)

// Attribute describes one kind specific column of a resource table.
type Attribute struct {
	// Name is both the attribute key and the column name.
	Name string

	// Ref names the kind the column references by row id. A reference
	// attribute is set and read as the referenced resource's UUID.
	Ref resource.Kind
}

// kindAttributes declares the kind specific columns, mirroring the
// schema. The generic engine builds its SQL from this registry, so a
// column added to the schema is picked up by declaring it here.
var kindAttributes = map[resource.Kind][]Attribute{
	resource.Task: {
		{Name: "run_status"},
		{Name: "target", Ref: resource.Target},
		{Name: "config", Ref: resource.Config},
		{Name: "scanner", Ref: resource.Scanner},
		{Name: "schedule", Ref: resource.Schedule},
	},
	resource.Target: {
		{Name: "hosts"},
		{Name: "exclude_hosts"},
		{Name: "port_list"},
	},
	resource.Config: {
		{Name: "nvt_selector"},
	},
	resource.Scanner: {
		{Name: "host"},
		{Name: "port"},
		{Name: "type"},
		{Name: "ca_pub"},
		{Name: "key_pub"},
		{Name: "key_priv"},
	},
	resource.Schedule: {
		{Name: "first_time"},
		{Name: "period"},
		{Name: "duration"},
		{Name: "timezone"},
	},
	resource.Alert: {
		{Name: "event"},
		{Name: "condition"},
		{Name: "method"},
	},
	resource.Filter: {
		{Name: "type"},
		{Name: "term"},
	},
	resource.Tag: {
		{Name: "resource_type"},
		{Name: "resource_uuid"},
		{Name: "active"},
		{Name: "value"},
	},
	resource.Note: {
		{Name: "nvt"},
		{Name: "text"},
		{Name: "hosts"},
		{Name: "port"},
		{Name: "severity"},
		{Name: "end_time"},
		{Name: "task", Ref: resource.Task},
		{Name: "result", Ref: resource.Result},
	},
	resource.Override: {
		{Name: "nvt"},
		{Name: "text"},
		{Name: "hosts"},
		{Name: "port"},
		{Name: "severity"},
		{Name: "new_severity"},
		{Name: "end_time"},
		{Name: "task", Ref: resource.Task},
		{Name: "result", Ref: resource.Result},
	},
	resource.Agent: {
		{Name: "hostname"},
		{Name: "authorized"},
		{Name: "min_interval"},
		{Name: "heartbeat"},
		{Name: "scanner", Ref: resource.Scanner},
	},
	resource.Report: {
		{Name: "start_time"},
		{Name: "end_time"},
		{Name: "scan_run_status"},
		{Name: "task", Ref: resource.Task},
	},
	resource.Result: {
		{Name: "host"},
		{Name: "port"},
		{Name: "nvt"},
		{Name: "type"},
		{Name: "description"},
		{Name: "severity"},
		{Name: "task", Ref: resource.Task},
	},
	resource.NVT: {
		{Name: "family"},
		{Name: "cvss_base"},
		{Name: "tag"},
	},
	resource.CVE: {
		{Name: "description"},
		{Name: "severity"},
	},
	resource.CPE: {
		{Name: "title"},
	},
	resource.OvalDef: {
		{Name: "def_class"},
		{Name: "title"},
	},
	resource.DFNCertAdv: {
		{Name: "title"},
		{Name: "summary"},
	},
}

// Attributes returns the kind specific attributes of the kind, in
// registry order.
func Attributes(kind resource.Kind) []Attribute {
	return kindAttributes[kind]
}

// ValidateAttributes checks that every key names an attribute the kind
// carries.
func ValidateAttributes(kind resource.Kind, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(kindAttributes[kind]))
	for _, a := range kindAttributes[kind] {
		known[a.Name] = struct{}{}
	}
	for name := range attrs {
		if _, ok := known[name]; !ok {
			return errors.NotValidf("%s attribute %q", kind, name)
		}
	}
	return nil
}
