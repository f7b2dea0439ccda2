// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/greenbone/gvmd/core/database"
	"github.com/greenbone/gvmd/domain"
	"github.com/greenbone/gvmd/internal/feed"
)

// Logger is the interface used by the state layer for logging.
type Logger interface {
	Tracef(string, ...interface{})
	Debugf(string, ...interface{})
}

// State persists feed dataset versions in the meta table, alongside the
// schema bookkeeping.
type State struct {
	*domain.StateBase
	logger Logger
}

// NewState returns a new state reference.
func NewState(factory coredatabase.TxnRunnerFactory, logger Logger) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
		logger:    logger,
	}
}

// dbMeta maps a row of the meta table.
type dbMeta struct {
	Name  string `db:"name"`
	Value string `db:"value"`
}

// versionKey returns the meta key holding the dataset's version.
func versionKey(dataset feed.Dataset) string {
	return string(dataset) + "_version"
}

// FeedVersion returns the recorded version of the dataset, or the empty
// string when the dataset has never been synchronized.
func (st *State) FeedVersion(ctx context.Context, dataset feed.Dataset) (string, error) {
	db, err := st.DB()
	if err != nil {
		return "", errors.Trace(err)
	}

	stmt, err := st.Prepare(`
SELECT &dbMeta.*
FROM meta
WHERE name = $M.name
`, dbMeta{}, sqlair.M{})
	if err != nil {
		return "", errors.Trace(err)
	}

	var row dbMeta
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, sqlair.M{"name": versionKey(dataset)}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return "", errors.Annotatef(err, "reading %s feed version", dataset)
	}
	return row.Value, nil
}

// RecordFeedVersion records the dataset's version, replacing any
// previously recorded one.
func (st *State) RecordFeedVersion(ctx context.Context, dataset feed.Dataset, version string) error {
	if version == "" {
		return errors.NotValidf("empty %s feed version", dataset)
	}

	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}

	stmt, err := st.Prepare(`
INSERT INTO meta (name, value)
VALUES ($dbMeta.name, $dbMeta.value)
ON CONFLICT (name) DO UPDATE SET value = excluded.value
`, dbMeta{})
	if err != nil {
		return errors.Trace(err)
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, dbMeta{
			Name:  versionKey(dataset),
			Value: version,
		}).Run())
	})
	if err != nil {
		return errors.Annotatef(err, "recording %s feed version", dataset)
	}

	st.logger.Tracef("recorded %s feed version %s", dataset, version)
	return nil
}
