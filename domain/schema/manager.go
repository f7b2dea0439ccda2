// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package schema holds the DDL of the manage database. The schema is
// expressed as an ordered list of patches; a fresh installation applies
// all of them, an existing database only the ones past its recorded
// version. New changes are appended to the list, never edited in place.
package schema

import (
	"fmt"

	"github.com/greenbone/gvmd/core/database/schema"
)

// patches lists every schema change in application order. New changes go
// at the end.
var patches = []func() schema.Patch{
	usersSchema,
	groupsSchema,
	rolesSchema,
	permissionsSchema,
	targetsSchema,
	configsSchema,
	scannersSchema,
	schedulesSchema,
	alertsSchema,
	filtersSchema,
	tagsSchema,
	tasksSchema,
	reportsSchema,
	notesSchema,
	overridesSchema,
	agentsSchema,
	secInfoSchema,
}

// ManagerDDL returns the schema of the manage database.
func ManagerDDL() *schema.Schema {
	s := schema.New()
	for _, fn := range patches {
		s.Add(fn())
	}
	return s
}

func usersSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE users (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL UNIQUE,
    comment           TEXT NOT NULL DEFAULT '',
    password_hash     TEXT,
    password_salt     TEXT,
    enabled           INTEGER NOT NULL DEFAULT 1,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_users_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func groupsSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE groups (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_groups_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE groups_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_groups_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE group_users (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id  INTEGER NOT NULL,
    user_id   INTEGER NOT NULL,
    CONSTRAINT fk_group_users_group
            FOREIGN KEY (group_id)
            REFERENCES  groups(id)
            ON DELETE CASCADE,
    CONSTRAINT fk_group_users_user
            FOREIGN KEY (user_id)
            REFERENCES  users(id)
            ON DELETE CASCADE,
    UNIQUE (group_id, user_id)
);

CREATE INDEX idx_group_users_user
ON group_users (user_id);

CREATE TABLE group_users_trash (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id  INTEGER NOT NULL,
    user_id   INTEGER NOT NULL,
    CONSTRAINT fk_group_users_trash_group
            FOREIGN KEY (group_id)
            REFERENCES  groups_trash(id)
            ON DELETE CASCADE,
    CONSTRAINT fk_group_users_trash_user
            FOREIGN KEY (user_id)
            REFERENCES  users(id)
            ON DELETE CASCADE
);
`)
}

func rolesSchema() schema.Patch {
	return schema.MakePatch(fmt.Sprintf(`
CREATE TABLE roles (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_roles_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE roles_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_roles_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE role_users (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    role_id   INTEGER NOT NULL,
    user_id   INTEGER NOT NULL,
    CONSTRAINT fk_role_users_role
            FOREIGN KEY (role_id)
            REFERENCES  roles(id)
            ON DELETE CASCADE,
    CONSTRAINT fk_role_users_user
            FOREIGN KEY (user_id)
            REFERENCES  users(id)
            ON DELETE CASCADE,
    UNIQUE (role_id, user_id)
);

CREATE INDEX idx_role_users_user
ON role_users (user_id);

CREATE TABLE role_users_trash (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    role_id   INTEGER NOT NULL,
    user_id   INTEGER NOT NULL,
    CONSTRAINT fk_role_users_trash_role
            FOREIGN KEY (role_id)
            REFERENCES  roles_trash(id)
            ON DELETE CASCADE,
    CONSTRAINT fk_role_users_trash_user
            FOREIGN KEY (user_id)
            REFERENCES  users(id)
            ON DELETE CASCADE
);

-- The predefined roles. Their permissions are granted by bootstrap, so
-- that the grant list can evolve without schema changes.
INSERT INTO roles (uuid, owner, name, comment) VALUES
    ('%s', NULL, 'Admin', 'Administrator. Full privileges.'),
    ('%s', NULL, 'User', 'Standard user.'),
    ('%s', NULL, 'Observer', 'Read access only.');
`, AdminRoleUUID, UserRoleUUID, ObserverRoleUUID))
}

func permissionsSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE permissions (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    resource_type     TEXT NOT NULL DEFAULT '',
    resource          INTEGER NOT NULL DEFAULT 0,
    resource_uuid     TEXT NOT NULL DEFAULT '',
    resource_location INTEGER NOT NULL DEFAULT 0,
    subject_type      TEXT NOT NULL,
    subject           INTEGER NOT NULL,
    subject_location  INTEGER NOT NULL DEFAULT 0,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_permissions_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id),
    CONSTRAINT        chk_permissions_subject_type
            CHECK (subject_type IN ('user', 'group', 'role'))
);

CREATE INDEX idx_permissions_name
ON permissions (name);

CREATE INDEX idx_permissions_resource_uuid
ON permissions (resource_uuid);

CREATE INDEX idx_permissions_subject
ON permissions (subject_type, subject);

CREATE TABLE permissions_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    resource_type     TEXT NOT NULL DEFAULT '',
    resource          INTEGER NOT NULL DEFAULT 0,
    resource_uuid     TEXT NOT NULL DEFAULT '',
    resource_location INTEGER NOT NULL DEFAULT 0,
    subject_type      TEXT NOT NULL,
    subject           INTEGER NOT NULL,
    subject_location  INTEGER NOT NULL DEFAULT 0,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_permissions_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func targetsSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE targets (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    hosts             TEXT NOT NULL DEFAULT '',
    exclude_hosts     TEXT NOT NULL DEFAULT '',
    port_list         TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_targets_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE targets_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    hosts             TEXT NOT NULL DEFAULT '',
    exclude_hosts     TEXT NOT NULL DEFAULT '',
    port_list         TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_targets_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func configsSchema() schema.Patch {
	return schema.MakePatch(fmt.Sprintf(`
CREATE TABLE configs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    nvt_selector      TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_configs_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE configs_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    nvt_selector      TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_configs_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE nvt_selectors (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL,
    exclude       INTEGER NOT NULL DEFAULT 0,
    type          INTEGER NOT NULL DEFAULT 0,
    family_or_nvt TEXT NOT NULL DEFAULT '',
    family        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX idx_nvt_selectors_name
ON nvt_selectors (name);

-- Selector type 0 selects everything; the predefined configuration
-- narrows by family at scan time.
INSERT INTO nvt_selectors (name, exclude, type, family_or_nvt, family) VALUES
    ('%s', 0, 0, '', '');

INSERT INTO configs (uuid, owner, name, comment, nvt_selector) VALUES
    ('%s', NULL, 'Full and fast',
     'Most NVTs; optimized by using previously collected information.',
     '%s');
`, FullAndFastConfigUUID, FullAndFastConfigUUID, FullAndFastConfigUUID))
}

func scannersSchema() schema.Patch {
	return schema.MakePatch(fmt.Sprintf(`
CREATE TABLE scanners (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    host              TEXT NOT NULL DEFAULT '',
    port              INTEGER NOT NULL DEFAULT 0,
    type              INTEGER NOT NULL DEFAULT 0,
    ca_pub            TEXT NOT NULL DEFAULT '',
    key_pub           TEXT NOT NULL DEFAULT '',
    key_priv          TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_scanners_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE scanners_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    host              TEXT NOT NULL DEFAULT '',
    port              INTEGER NOT NULL DEFAULT 0,
    type              INTEGER NOT NULL DEFAULT 0,
    ca_pub            TEXT NOT NULL DEFAULT '',
    key_pub           TEXT NOT NULL DEFAULT '',
    key_priv          TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_scanners_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

INSERT INTO scanners (uuid, owner, name, comment, host, port, type) VALUES
    ('%s', NULL, 'OpenVAS Default', '', '/run/ospd/ospd-openvas.sock', 0, 2);
`, DefaultScannerUUID))
}

func schedulesSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE schedules (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    first_time        INTEGER NOT NULL DEFAULT 0,
    period            INTEGER NOT NULL DEFAULT 0,
    duration          INTEGER NOT NULL DEFAULT 0,
    timezone          TEXT NOT NULL DEFAULT 'UTC',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_schedules_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE schedules_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    first_time        INTEGER NOT NULL DEFAULT 0,
    period            INTEGER NOT NULL DEFAULT 0,
    duration          INTEGER NOT NULL DEFAULT 0,
    timezone          TEXT NOT NULL DEFAULT 'UTC',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_schedules_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func alertsSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE alerts (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    event             TEXT NOT NULL DEFAULT '',
    condition         TEXT NOT NULL DEFAULT '',
    method            TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_alerts_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE alerts_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    event             TEXT NOT NULL DEFAULT '',
    condition         TEXT NOT NULL DEFAULT '',
    method            TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_alerts_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func filtersSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE filters (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    type              TEXT NOT NULL DEFAULT '',
    term              TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_filters_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE filters_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    type              TEXT NOT NULL DEFAULT '',
    term              TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_filters_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func tagsSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE tags (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    resource_type     TEXT NOT NULL DEFAULT '',
    resource_uuid     TEXT NOT NULL DEFAULT '',
    active            INTEGER NOT NULL DEFAULT 1,
    value             TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_tags_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);

CREATE TABLE tags_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    resource_type     TEXT NOT NULL DEFAULT '',
    resource_uuid     TEXT NOT NULL DEFAULT '',
    active            INTEGER NOT NULL DEFAULT 1,
    value             TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_tags_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func tasksSchema() schema.Patch {
	return schema.MakePatch(`
-- Tasks are trashed in place: hidden moves to 2 instead of the row
-- moving to a twin table, because reports and results keep referring to
-- their task.
CREATE TABLE tasks (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    hidden            INTEGER NOT NULL DEFAULT 0,
    run_status        INTEGER NOT NULL DEFAULT 0,
    target            INTEGER,
    config            INTEGER,
    scanner           INTEGER,
    schedule          INTEGER,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_tasks_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id),
    CONSTRAINT        fk_tasks_target
            FOREIGN KEY (target)
            REFERENCES  targets(id),
    CONSTRAINT        fk_tasks_config
            FOREIGN KEY (config)
            REFERENCES  configs(id),
    CONSTRAINT        fk_tasks_scanner
            FOREIGN KEY (scanner)
            REFERENCES  scanners(id),
    CONSTRAINT        fk_tasks_schedule
            FOREIGN KEY (schedule)
            REFERENCES  schedules(id)
);

CREATE INDEX idx_tasks_owner
ON tasks (owner);
`)
}

func reportsSchema() schema.Patch {
	return schema.MakePatch(`
-- A report with a NULL owner is global: every user may read it.
CREATE TABLE reports (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    task              INTEGER NOT NULL,
    start_time        INTEGER NOT NULL DEFAULT 0,
    end_time          INTEGER NOT NULL DEFAULT 0,
    scan_run_status   INTEGER NOT NULL DEFAULT 0,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_reports_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id),
    CONSTRAINT        fk_reports_task
            FOREIGN KEY (task)
            REFERENCES  tasks(id)
            ON DELETE CASCADE
);

CREATE INDEX idx_reports_task
ON reports (task);

-- Results carry no owner of their own. Ownership is resolved through
-- the report they are part of.
CREATE TABLE results (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid          TEXT NOT NULL UNIQUE,
    task          INTEGER NOT NULL,
    host          TEXT NOT NULL DEFAULT '',
    port          TEXT NOT NULL DEFAULT '',
    nvt           TEXT NOT NULL DEFAULT '',
    type          TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    severity      REAL NOT NULL DEFAULT 0,
    creation_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT    fk_results_task
            FOREIGN KEY (task)
            REFERENCES  tasks(id)
            ON DELETE CASCADE
);

CREATE INDEX idx_results_task
ON results (task);

CREATE TABLE report_results (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    report INTEGER NOT NULL,
    result INTEGER NOT NULL,
    CONSTRAINT fk_report_results_report
            FOREIGN KEY (report)
            REFERENCES  reports(id)
            ON DELETE CASCADE,
    CONSTRAINT fk_report_results_result
            FOREIGN KEY (result)
            REFERENCES  results(id)
            ON DELETE CASCADE,
    UNIQUE (report, result)
);

CREATE INDEX idx_report_results_result
ON report_results (result);
`)
}

func notesSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE notes (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL DEFAULT '',
    comment           TEXT NOT NULL DEFAULT '',
    nvt               TEXT NOT NULL DEFAULT '',
    text              TEXT NOT NULL DEFAULT '',
    hosts             TEXT NOT NULL DEFAULT '',
    port              TEXT NOT NULL DEFAULT '',
    severity          REAL,
    task              INTEGER,
    result            INTEGER,
    end_time          INTEGER NOT NULL DEFAULT 0,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_notes_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id),
    CONSTRAINT        fk_notes_task
            FOREIGN KEY (task)
            REFERENCES  tasks(id),
    CONSTRAINT        fk_notes_result
            FOREIGN KEY (result)
            REFERENCES  results(id)
);

CREATE TABLE notes_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL DEFAULT '',
    comment           TEXT NOT NULL DEFAULT '',
    nvt               TEXT NOT NULL DEFAULT '',
    text              TEXT NOT NULL DEFAULT '',
    hosts             TEXT NOT NULL DEFAULT '',
    port              TEXT NOT NULL DEFAULT '',
    severity          REAL,
    task              INTEGER,
    result            INTEGER,
    end_time          INTEGER NOT NULL DEFAULT 0,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_notes_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func overridesSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE overrides (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL DEFAULT '',
    comment           TEXT NOT NULL DEFAULT '',
    nvt               TEXT NOT NULL DEFAULT '',
    text              TEXT NOT NULL DEFAULT '',
    hosts             TEXT NOT NULL DEFAULT '',
    port              TEXT NOT NULL DEFAULT '',
    severity          REAL,
    new_severity      REAL,
    task              INTEGER,
    result            INTEGER,
    end_time          INTEGER NOT NULL DEFAULT 0,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_overrides_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id),
    CONSTRAINT        fk_overrides_task
            FOREIGN KEY (task)
            REFERENCES  tasks(id),
    CONSTRAINT        fk_overrides_result
            FOREIGN KEY (result)
            REFERENCES  results(id)
);

CREATE TABLE overrides_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL DEFAULT '',
    comment           TEXT NOT NULL DEFAULT '',
    nvt               TEXT NOT NULL DEFAULT '',
    text              TEXT NOT NULL DEFAULT '',
    hosts             TEXT NOT NULL DEFAULT '',
    port              TEXT NOT NULL DEFAULT '',
    severity          REAL,
    new_severity      REAL,
    task              INTEGER,
    result            INTEGER,
    end_time          INTEGER NOT NULL DEFAULT 0,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_overrides_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func agentsSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE agents (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    hostname          TEXT NOT NULL DEFAULT '',
    authorized        INTEGER NOT NULL DEFAULT 0,
    min_interval      INTEGER NOT NULL DEFAULT 0,
    heartbeat         INTEGER NOT NULL DEFAULT 0,
    scanner           INTEGER,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_agents_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id),
    CONSTRAINT        fk_agents_scanner
            FOREIGN KEY (scanner)
            REFERENCES  scanners(id)
);

CREATE TABLE agents_trash (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    owner             INTEGER,
    name              TEXT NOT NULL,
    comment           TEXT NOT NULL DEFAULT '',
    hostname          TEXT NOT NULL DEFAULT '',
    authorized        INTEGER NOT NULL DEFAULT 0,
    min_interval      INTEGER NOT NULL DEFAULT 0,
    heartbeat         INTEGER NOT NULL DEFAULT 0,
    scanner           INTEGER,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT        fk_agents_trash_owner
            FOREIGN KEY (owner)
            REFERENCES  users(id)
);
`)
}

func secInfoSchema() schema.Patch {
	return schema.MakePatch(`
-- SecInfo tables are populated from the feed. They carry no owner; the
-- access layer treats every row as readable by every user.
CREATE TABLE nvts (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    family            TEXT NOT NULL DEFAULT '',
    cvss_base         REAL,
    tag               TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_nvts_family
ON nvts (family);

CREATE TABLE cves (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    severity          REAL,
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE cpes (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE ovaldefs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    def_class         TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE dfn_cert_advs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid              TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL DEFAULT '',
    summary           TEXT NOT NULL DEFAULT '',
    creation_time     INTEGER NOT NULL DEFAULT 0,
    modification_time INTEGER NOT NULL DEFAULT 0
);
`)
}
