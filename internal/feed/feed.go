// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package feed drives the external sync tool that keeps the SCAP and
// CERT datasets current, and records the version each run leaves
// behind.
package feed

import (
	"github.com/juju/errors"
)

const (
	// ErrSCAPSyncFailed tags errors from a failed SCAP dataset sync so
	// callers can tell the stages apart.
	ErrSCAPSyncFailed = errors.ConstError("SCAP feed sync failed")

	// ErrCERTSyncFailed tags errors from a failed CERT dataset sync.
	ErrCERTSyncFailed = errors.ConstError("CERT feed sync failed")
)

// Dataset identifies one externally synchronized feed dataset.
type Dataset string

const (
	// SCAP is the dataset holding CPEs, CVEs and OVAL definitions.
	SCAP Dataset = "scap"

	// CERT is the dataset holding CERT-Bund and DFN-CERT advisories.
	CERT Dataset = "cert"
)

// Datasets returns every dataset the syncer manages.
func Datasets() []Dataset {
	return []Dataset{SCAP, CERT}
}

// Validate returns an error unless this is a known dataset.
func (d Dataset) Validate() error {
	switch d {
	case SCAP, CERT:
		return nil
	}
	return errors.NotValidf("feed dataset %q", d)
}

// lockName returns the machine wide mutex name serializing sync tool
// runs for this dataset across processes.
func (d Dataset) lockName() string {
	return "gvmd-feed-" + string(d)
}

// syncFailure returns the sentinel identifying this dataset's sync
// stage in errors.
func syncFailure(dataset Dataset) errors.ConstError {
	if dataset == CERT {
		return ErrCERTSyncFailed
	}
	return ErrSCAPSyncFailed
}
