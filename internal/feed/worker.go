// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package feed

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"
)

// Synchronizer is the slice of the feed syncer the worker drives.
type Synchronizer interface {
	Migrate(ctx context.Context) error
}

// WorkerConfig encapsulates the configuration options for the feed
// sync worker.
type WorkerConfig struct {
	Syncer   Synchronizer
	Interval time.Duration
	Clock    clock.Clock
	Logger   Logger
}

// Validate ensures that the config values are valid.
func (c *WorkerConfig) Validate() error {
	if c.Syncer == nil {
		return errors.NotValidf("missing Syncer")
	}
	if c.Interval <= 0 {
		return errors.NotValidf("non-positive Interval")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing logger")
	}
	return nil
}

// Worker periodically re-syncs the feed datasets so the daemon keeps
// tracking the published feeds without operator involvement.
type Worker struct {
	tomb tomb.Tomb

	cfg WorkerConfig
}

// NewWorker starts and returns a feed sync worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	w := &Worker{cfg: cfg}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

func (w *Worker) loop() error {
	timer := w.cfg.Clock.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying

		case <-timer.Chan():
			// A failed sync is retried on the next tick.
			if err := w.sync(); err != nil {
				w.cfg.Logger.Warningf("feed synchronization failed: %v", err)
			}
			timer.Reset(w.cfg.Interval)
		}
	}
}

func (w *Worker) sync() error {
	ctx := w.tomb.Context(context.Background())
	return errors.Trace(w.cfg.Syncer.Migrate(ctx))
}
