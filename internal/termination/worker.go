// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package termination provides a worker that finishes when the process
// is asked to shut down, so the daemon's worker runner can treat the
// request like any other fatal error.
package termination

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

// ErrTerminated is the error the worker finishes with when the process
// has received one of Signals.
const ErrTerminated = errors.ConstError("terminated by signal")

// Signals are the signals that ask the daemon to shut down.
var Signals = []os.Signal{syscall.SIGTERM, os.Interrupt}

// NewWorker returns a worker that finishes with ErrTerminated when the
// process receives one of Signals. The handler is registered before
// NewWorker returns.
func NewWorker() worker.Worker {
	var w terminationWorker
	c := make(chan os.Signal, 1)
	signal.Notify(c, Signals...)
	w.tomb.Go(func() error {
		defer signal.Stop(c)
		return w.loop(c)
	})
	return &w
}

type terminationWorker struct {
	tomb tomb.Tomb
}

// Kill is part of the worker.Worker interface.
func (w *terminationWorker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *terminationWorker) Wait() error {
	return w.tomb.Wait()
}

func (w *terminationWorker) loop(c <-chan os.Signal) error {
	select {
	case <-c:
		return ErrTerminated
	case <-w.tomb.Dying():
		return tomb.ErrDying
	}
}
