// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"time"

	coredatabase "github.com/greenbone/gvmd/core/database"
	"github.com/greenbone/gvmd/domain"
)

// Logger is the interface used by the state layer for logging.
type Logger interface {
	Tracef(string, ...interface{})
	Debugf(string, ...interface{})
}

// State provides persistence for users, groups, roles and permissions,
// and answers the access questions compiled from the rule set.
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

// dbCount fetches a bare count.
type dbCount struct {
	Count int `db:"count"`
}

// dbUUID fetches a bare uuid column.
type dbUUID struct {
	UUID string `db:"uuid"`
}

// now returns the time persisted in creation_time and modification_time
// columns.
func now() int64 {
	return time.Now().Unix()
}
