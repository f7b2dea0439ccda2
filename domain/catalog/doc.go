// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package catalog manages the scan resources: tasks, targets, configs,
// scanners, schedules, alerts, filters, tags, notes, overrides and
// agents, together with the read-only reports, results and SecInfo
// rows. One engine drives the whole lifecycle. Every kind shares the
// same envelope of uuid, owner, name, comment and timestamps, and the
// columns particular to a kind are declared once, in the attribute
// registry, from which the SQL is built.
//
// Accounts, groups, roles and permission grants are not catalog
// resources; the access domain manages those.
//
// Deleting a resource normally moves it to its trashcan twin, from
// where the owner can restore it or purge it for good. Tasks are the
// exception: reports and results keep referring to their task, so a
// trashed task stays in place, marked hidden.
package catalog
