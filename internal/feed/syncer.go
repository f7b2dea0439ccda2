// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package feed

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/mutex/v2"
	"golang.org/x/sync/errgroup"
)

const (
	// timestampFile is the file the sync tool maintains at the root of
	// each dataset directory, holding the feed's version stamp.
	timestampFile = "timestamp"

	// lockRetryDelay is how long to wait between attempts to take a
	// dataset's sync lock.
	lockRetryDelay = 250 * time.Millisecond
)

// Logger describes the logging methods used by this package.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
}

// State persists the version bookkeeping for synchronized datasets.
type State interface {
	// FeedVersion returns the recorded version of the dataset, or the
	// empty string when the dataset has never been synchronized.
	FeedVersion(ctx context.Context, dataset Dataset) (string, error)

	// RecordFeedVersion records the dataset's version, replacing any
	// previously recorded one.
	RecordFeedVersion(ctx context.Context, dataset Dataset, version string) error
}

// SyncerConfig holds the dependencies and settings of a Syncer.
type SyncerConfig struct {
	// Tool is the sync executable invoked to update a dataset.
	Tool string

	// FeedDir is the directory tree the sync tool maintains, with one
	// <dataset>-data subdirectory per dataset.
	FeedDir string

	State  State
	Clock  clock.Clock
	Logger Logger
}

// Validate ensures that the config values are valid.
func (c *SyncerConfig) Validate() error {
	if c.Tool == "" {
		return errors.NotValidf("missing Tool")
	}
	if c.FeedDir == "" {
		return errors.NotValidf("missing FeedDir")
	}
	if c.State == nil {
		return errors.NotValidf("missing State")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing logger")
	}
	return nil
}

// Syncer updates feed datasets by running the external sync tool and
// recording the version each run leaves behind.
type Syncer struct {
	cfg SyncerConfig
}

// NewSyncer returns a Syncer using the supplied configuration.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Syncer{cfg: cfg}, nil
}

// Migrate brings every dataset up to date. The datasets are updated in
// parallel, and a failure carries the failing dataset's sentinel so the
// caller can report which stage broke.
func (s *Syncer) Migrate(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, dataset := range Datasets() {
		group.Go(func() error {
			if err := s.Sync(ctx, dataset); err != nil {
				return errors.WithType(err, syncFailure(dataset))
			}
			return nil
		})
	}
	return group.Wait()
}

// Sync runs the sync tool for one dataset and records the version the
// tool left in the dataset's timestamp file. Concurrent syncs of the
// same dataset, whether in this process or another, are serialized by a
// machine wide lock.
func (s *Syncer) Sync(ctx context.Context, dataset Dataset) error {
	if err := dataset.Validate(); err != nil {
		return errors.Trace(err)
	}

	releaser, err := mutex.Acquire(mutex.Spec{
		Name:   dataset.lockName(),
		Clock:  s.cfg.Clock,
		Delay:  lockRetryDelay,
		Cancel: ctx.Done(),
	})
	if err != nil {
		return errors.Annotatef(err, "acquiring %s feed lock", dataset)
	}
	defer releaser.Release()

	previous, err := s.cfg.State.FeedVersion(ctx, dataset)
	if err != nil {
		return errors.Trace(err)
	}

	if err := s.runTool(ctx, dataset); err != nil {
		return errors.Trace(err)
	}

	version, err := s.readVersion(dataset)
	if err != nil {
		return errors.Trace(err)
	}
	if err := s.cfg.State.RecordFeedVersion(ctx, dataset, version); err != nil {
		return errors.Trace(err)
	}

	switch {
	case previous == "":
		s.cfg.Logger.Infof("%s feed synchronized at version %s", dataset, version)
	case previous != version:
		s.cfg.Logger.Infof("%s feed updated from version %s to %s", dataset, previous, version)
	default:
		s.cfg.Logger.Debugf("%s feed already at version %s", dataset, version)
	}
	return nil
}

func (s *Syncer) runTool(ctx context.Context, dataset Dataset) error {
	cmd := exec.CommandContext(ctx, s.cfg.Tool, "--type", string(dataset))
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		s.cfg.Logger.Debugf("%s sync tool output: %s", dataset, out)
	}
	if err != nil {
		return errors.Annotatef(err, "exec %q failed", s.cfg.Tool)
	}
	return nil
}

func (s *Syncer) readVersion(dataset Dataset) (string, error) {
	path := filepath.Join(s.cfg.FeedDir, string(dataset)+"-data", timestampFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Annotatef(err, "reading %s feed timestamp", dataset)
	}
	version := strings.TrimSpace(string(raw))
	if version == "" {
		return "", errors.Errorf("empty %s feed timestamp at %q", dataset, path)
	}
	return version, nil
}
