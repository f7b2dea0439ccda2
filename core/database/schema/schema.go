// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package schema applies ordered, versioned schema changes to the manage
// database. The current version is the meta table's database_version
// entry; every change bumps it by exactly one and records a checksum of
// the applied statements, so a database can always be matched against the
// change list of the daemon inspecting it.
package schema

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"strconv"

	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/database"
)

const (
	// ErrVersionAhead is returned by Ensure when the database reports a
	// schema version this daemon does not know about. Upgrading the
	// daemon is the only way forward; no change is made.
	ErrVersionAhead = errors.ConstError("database schema is ahead of this daemon")

	// ErrChecksumMismatch is returned by Ensure when a previously applied
	// schema change does not match the change with the same version in
	// this daemon. The database was migrated by a divergent lineage and
	// must not be touched.
	ErrChecksumMismatch = errors.ConstError("applied schema change differs from this daemon's change list")
)

// versionKey is the meta table entry holding the schema version.
const versionKey = "database_version"

// Patch is a single schema change: one or more SQL statements applied
// together in one transaction.
type Patch struct {
	statements string
	args       []any
	hash       string
}

// MakePatch returns a patch for the given statements. The statements are
// hashed so a database carrying the patch can later be verified against it.
func MakePatch(statements string, args ...any) Patch {
	sum := sha256.Sum256([]byte(statements))
	return Patch{
		statements: statements,
		args:       args,
		hash:       hex.EncodeToString(sum[:]),
	}
}

func (p Patch) run(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, p.statements, p.args...)
	return errors.Trace(err)
}

// Hook is called after each patch has been applied, inside the patch's
// transaction. Returning an error rolls the patch back and aborts the run.
type Hook func(version int) error

// Schema is an ordered list of schema patches. Patch i brings the
// database from version i to version i+1.
type Schema struct {
	patches []Patch
	hook    Hook
}

// New returns a schema for the given patches.
func New(patches ...Patch) *Schema {
	return &Schema{patches: patches}
}

// Add appends patches to the schema.
func (s *Schema) Add(patches ...Patch) {
	s.patches = append(s.patches, patches...)
}

// Len returns the number of patches, which is also the schema version a
// fully migrated database reports.
func (s *Schema) Len() int {
	return len(s.patches)
}

// Hook registers a hook to run after each applied patch.
func (s *Schema) Hook(hook Hook) {
	s.hook = hook
}

// ChangeSet describes the migration performed by Ensure. Current is the
// version found, Post the version left behind. Equal values mean the
// database was already up to date.
type ChangeSet struct {
	Current, Post int
}

// Ensure brings the database up to the schema's version.
//
// Each pending patch runs in its own write transaction that re-reads the
// version first, so two daemons racing to migrate the same database apply
// every change exactly once. The first failing patch aborts the run with
// the database left at the last committed version; the returned ChangeSet
// reports how far it got.
func (s *Schema) Ensure(ctx context.Context, runner database.TxnRunner) (ChangeSet, error) {
	if len(s.patches) == 0 {
		return ChangeSet{}, errors.New("schema contains no patches")
	}
	target := len(s.patches)

	var current int
	err := runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureBookkeeping(ctx, tx); err != nil {
			return errors.Annotate(err, "creating schema bookkeeping")
		}

		var err error
		if current, err = readVersion(ctx, tx); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(s.verifyChangeLog(ctx, tx))
	})
	if err != nil {
		return ChangeSet{}, errors.Trace(err)
	}

	if current > target {
		return ChangeSet{Current: current, Post: current},
			errors.Annotatef(ErrVersionAhead, "database at version %d, daemon knows %d", current, target)
	}

	for v := current; v < target; v++ {
		patch := s.patches[v]
		version := v + 1

		err := runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
			got, err := readVersion(ctx, tx)
			if err != nil {
				return errors.Trace(err)
			}
			if got != v {
				if got >= version {
					// Another daemon applied this change while we were
					// waiting for the write lock.
					return nil
				}
				return errors.Errorf("schema version moved from %d to %d mid-migration", v, got)
			}

			if err := patch.run(ctx, tx); err != nil {
				return errors.Trace(err)
			}
			if s.hook != nil {
				if err := s.hook(version); err != nil {
					return errors.Annotatef(err, "schema hook at version %d", version)
				}
			}
			if err := writeVersion(ctx, tx, version); err != nil {
				return errors.Trace(err)
			}
			return errors.Trace(logChange(ctx, tx, version, patch.hash))
		})
		if err != nil {
			return ChangeSet{Current: current, Post: v},
				errors.Annotatef(err, "applying schema change %d", version)
		}
	}

	return ChangeSet{Current: current, Post: target}, nil
}

// Version returns the schema version the database reports. A database
// Ensure has never touched reports zero.
func Version(ctx context.Context, runner database.TxnRunner) (int, error) {
	var version int
	err := runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureBookkeeping(ctx, tx); err != nil {
			return errors.Annotate(err, "creating schema bookkeeping")
		}
		var err error
		version, err = readVersion(ctx, tx)
		return errors.Trace(err)
	})
	return version, errors.Trace(err)
}

func ensureBookkeeping(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS meta (
    name  TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_change_log (
    version     INTEGER PRIMARY KEY,
    checksum    TEXT NOT NULL,
    applied_at  DATETIME NOT NULL DEFAULT (STRFTIME('%Y-%m-%d %H:%M:%f', 'NOW', 'utc'))
);
`)
	return errors.Trace(err)
}

func readVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	row := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE name = ?", versionKey)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Annotate(err, "reading schema version")
	}

	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Annotatef(err, "parsing schema version %q", value)
	}
	return version, nil
}

func writeVersion(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO meta (name, value) VALUES (?, ?)
    ON CONFLICT(name) DO UPDATE SET value = excluded.value
`, versionKey, strconv.Itoa(version))
	return errors.Annotate(err, "writing schema version")
}

func logChange(ctx context.Context, tx *sql.Tx, version int, checksum string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO schema_change_log (version, checksum) VALUES (?, ?)",
		version, checksum)
	return errors.Annotate(err, "recording schema change")
}

// verifyChangeLog compares the recorded checksums of applied changes with
// the schema's own patches.
func (s *Schema) verifyChangeLog(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT version, checksum FROM schema_change_log ORDER BY version")
	if err != nil {
		return errors.Annotate(err, "reading schema change log")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			version  int
			checksum string
		)
		if err := rows.Scan(&version, &checksum); err != nil {
			return errors.Trace(err)
		}
		if version < 1 || version > len(s.patches) {
			// The version comparison in Ensure reports this case.
			continue
		}
		if s.patches[version-1].hash != checksum {
			return errors.Annotatef(ErrChecksumMismatch, "version %d", version)
		}
	}
	return errors.Trace(rows.Err())
}
