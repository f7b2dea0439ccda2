// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package termination_test

import (
	"os"
	"syscall"

	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/internal/termination"
)

type workerSuite struct {
	jujutesting.IsolationSuite
}

var _ = gc.Suite(&workerSuite{})

func (s *workerSuite) TestStartStop(c *gc.C) {
	w := termination.NewWorker()
	workertest.CleanKill(c, w)
}

func (s *workerSuite) TestSignal(c *gc.C) {
	w := termination.NewWorker()
	defer workertest.DirtyKill(c, w)

	proc, err := os.FindProcess(os.Getpid())
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = proc.Release() }()

	err = proc.Signal(syscall.SIGTERM)
	c.Assert(err, jc.ErrorIsNil)

	err = workertest.CheckKilled(c, w)
	c.Assert(err, jc.ErrorIs, termination.ErrTerminated)
}
