// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package feed_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/internal/feed"
)

type workerSuite struct {
	jujutesting.IsolationSuite
}

var _ = gc.Suite(&workerSuite{})

func (s *workerSuite) TestValidateConfig(c *gc.C) {
	s.testValidateConfig(c, func(cfg *feed.WorkerConfig) {
		cfg.Syncer = nil
	}, "missing Syncer not valid")

	s.testValidateConfig(c, func(cfg *feed.WorkerConfig) {
		cfg.Interval = 0
	}, "non-positive Interval not valid")

	s.testValidateConfig(c, func(cfg *feed.WorkerConfig) {
		cfg.Clock = nil
	}, "missing clock not valid")

	s.testValidateConfig(c, func(cfg *feed.WorkerConfig) {
		cfg.Logger = nil
	}, "missing logger not valid")
}

func (s *workerSuite) testValidateConfig(c *gc.C, f func(*feed.WorkerConfig), expect string) {
	cfg := feed.WorkerConfig{
		Syncer:   newFakeSynchronizer(),
		Interval: time.Hour,
		Clock:    testclock.NewClock(time.Time{}),
		Logger:   &recordingLogger{},
	}
	f(&cfg)
	_, err := feed.NewWorker(cfg)
	c.Check(err, jc.ErrorIs, errors.NotValid)
	c.Check(err, gc.ErrorMatches, expect)
}

func (s *workerSuite) TestWorkerSyncsEachInterval(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	fake := newFakeSynchronizer()

	w, err := feed.NewWorker(feed.WorkerConfig{
		Syncer:   fake,
		Interval: time.Hour,
		Clock:    clk,
		Logger:   &recordingLogger{},
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.DirtyKill(c, w)

	c.Assert(clk.WaitAdvance(time.Hour, jujutesting.LongWait, 1), jc.ErrorIsNil)
	s.waitSync(c, fake)
	c.Assert(clk.WaitAdvance(time.Hour, jujutesting.LongWait, 1), jc.ErrorIsNil)
	s.waitSync(c, fake)

	workertest.CleanKill(c, w)
	c.Check(fake.count(), gc.Equals, 2)
}

func (s *workerSuite) TestWorkerStopsBeforeFirstTick(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	fake := newFakeSynchronizer()

	w, err := feed.NewWorker(feed.WorkerConfig{
		Syncer:   fake,
		Interval: time.Hour,
		Clock:    clk,
		Logger:   &recordingLogger{},
	})
	c.Assert(err, jc.ErrorIsNil)

	workertest.CheckAlive(c, w)
	workertest.CleanKill(c, w)
	c.Check(fake.count(), gc.Equals, 0)
}

func (s *workerSuite) TestWorkerRetriesAfterFailure(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	fake := newFakeSynchronizer()
	fake.errs = []error{errors.New("mirror offline")}
	log := &recordingLogger{}

	w, err := feed.NewWorker(feed.WorkerConfig{
		Syncer:   fake,
		Interval: time.Hour,
		Clock:    clk,
		Logger:   log,
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.DirtyKill(c, w)

	c.Assert(clk.WaitAdvance(time.Hour, jujutesting.LongWait, 1), jc.ErrorIsNil)
	s.waitSync(c, fake)

	// The failed sync must not kill the worker.
	workertest.CheckAlive(c, w)

	c.Assert(clk.WaitAdvance(time.Hour, jujutesting.LongWait, 1), jc.ErrorIsNil)
	s.waitSync(c, fake)

	workertest.CleanKill(c, w)
	c.Check(fake.count(), gc.Equals, 2)
	c.Check(log.warnings(), jc.DeepEquals, []string{"feed synchronization failed: mirror offline"})
}

func (s *workerSuite) TestKillCancelsSyncContext(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	fake := &blockingSynchronizer{started: make(chan struct{})}
	log := &recordingLogger{}

	w, err := feed.NewWorker(feed.WorkerConfig{
		Syncer:   fake,
		Interval: time.Hour,
		Clock:    clk,
		Logger:   log,
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(clk.WaitAdvance(time.Hour, jujutesting.LongWait, 1), jc.ErrorIsNil)
	select {
	case <-fake.started:
	case <-time.After(jujutesting.LongWait):
		c.Fatal("timed out waiting for the sync to start")
	}

	workertest.CleanKill(c, w)
	c.Check(log.warnings(), jc.DeepEquals, []string{"feed synchronization failed: context canceled"})
}

func (s *workerSuite) waitSync(c *gc.C, f *fakeSynchronizer) {
	select {
	case <-f.done:
	case <-time.After(jujutesting.LongWait):
		c.Fatal("timed out waiting for a sync")
	}
}

// fakeSynchronizer counts sync runs, failing those with seeded errors.
type fakeSynchronizer struct {
	mu    sync.Mutex
	calls int
	errs  []error
	done  chan struct{}
}

func newFakeSynchronizer() *fakeSynchronizer {
	return &fakeSynchronizer{done: make(chan struct{}, 16)}
}

func (f *fakeSynchronizer) Migrate(context.Context) error {
	f.mu.Lock()
	n := f.calls
	f.calls++
	f.mu.Unlock()

	f.done <- struct{}{}
	if n < len(f.errs) {
		return f.errs[n]
	}
	return nil
}

func (f *fakeSynchronizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// blockingSynchronizer holds a sync open until its context is
// cancelled.
type blockingSynchronizer struct {
	started chan struct{}
}

func (b *blockingSynchronizer) Migrate(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

// recordingLogger captures warnings written by the worker.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debugf(string, ...interface{}) {}

func (l *recordingLogger) Infof(string, ...interface{}) {}

func (l *recordingLogger) Warningf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}
