// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

// Well-known identifiers of rows seeded by the baseline schema. These are
// persisted in every installation and must never change.
const (
	// AdminRoleUUID identifies the predefined Admin role. Bootstrap
	// grants it the Everything permission.
	AdminRoleUUID = "9c5a6ec6-6fe2-11e4-8cb6-406186ea4fc5"

	// UserRoleUUID identifies the predefined User role, which grants the
	// everyday scanning commands.
	UserRoleUUID = "8d453140-b74d-11e2-b0be-406186ea4fc5"

	// ObserverRoleUUID identifies the predefined Observer role, which
	// grants read commands only.
	ObserverRoleUUID = "87a7c0e6-6fe2-11e4-8cb6-406186ea4fc5"

	// FullAndFastConfigUUID identifies the predefined "Full and fast"
	// scan configuration.
	FullAndFastConfigUUID = "daba56c8-73ec-11df-a475-002264764cea"

	// DefaultScannerUUID identifies the predefined OpenVAS scanner
	// record.
	DefaultScannerUUID = "08b69003-5fc2-4037-a479-93b440211c73"
)
