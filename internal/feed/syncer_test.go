// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package feed_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/mutex/v2"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/internal/feed"
)

type syncerSuite struct {
	jujutesting.IsolationSuite
}

var _ = gc.Suite(&syncerSuite{})

func (s *syncerSuite) TestValidateConfig(c *gc.C) {
	s.testValidateConfig(c, func(cfg *feed.SyncerConfig) {
		cfg.Tool = ""
	}, "missing Tool not valid")

	s.testValidateConfig(c, func(cfg *feed.SyncerConfig) {
		cfg.FeedDir = ""
	}, "missing FeedDir not valid")

	s.testValidateConfig(c, func(cfg *feed.SyncerConfig) {
		cfg.State = nil
	}, "missing State not valid")

	s.testValidateConfig(c, func(cfg *feed.SyncerConfig) {
		cfg.Clock = nil
	}, "missing clock not valid")

	s.testValidateConfig(c, func(cfg *feed.SyncerConfig) {
		cfg.Logger = nil
	}, "missing logger not valid")
}

func (s *syncerSuite) testValidateConfig(c *gc.C, f func(*feed.SyncerConfig), expect string) {
	cfg := s.config(c, "feed-sync", "/var/lib/gvm", newFakeState())
	f(&cfg)
	_, err := feed.NewSyncer(cfg)
	c.Check(err, jc.ErrorIs, errors.NotValid)
	c.Check(err, gc.ErrorMatches, expect)
}

func (s *syncerSuite) TestSyncRunsToolAndRecordsVersion(c *gc.C) {
	feedDir := c.MkDir()
	argsFile := filepath.Join(c.MkDir(), "args")
	tool := s.writeTool(c, fmt.Sprintf(
		"echo \"$@\" > %s\nmkdir -p %s/scap-data\necho 202308210630 > %s/scap-data/timestamp",
		argsFile, feedDir, feedDir))

	st := newFakeState()
	syncer := s.newSyncer(c, s.config(c, tool, feedDir, st))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, jc.ErrorIsNil)

	args, err := os.ReadFile(argsFile)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(strings.TrimSpace(string(args)), gc.Equals, "--type scap")
	c.Check(st.version(feed.SCAP), gc.Equals, "202308210630")
}

func (s *syncerSuite) TestSyncReplacesPreviousVersion(c *gc.C) {
	feedDir := c.MkDir()
	tool := s.stampTool(c, feedDir, "202308210630")

	st := newFakeState()
	st.seed(feed.SCAP, "202301010000")
	syncer := s.newSyncer(c, s.config(c, tool, feedDir, st))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st.version(feed.SCAP), gc.Equals, "202308210630")
}

func (s *syncerSuite) TestSyncUnknownDataset(c *gc.C) {
	syncer := s.newSyncer(c, s.config(c, "feed-sync", c.MkDir(), newFakeState()))

	err := syncer.Sync(context.Background(), "nvt")
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Assert(err, gc.ErrorMatches, `feed dataset "nvt" not valid`)
}

func (s *syncerSuite) TestSyncToolFailure(c *gc.C) {
	tool := s.writeTool(c, "echo 'rsync: connection refused' >&2\nexit 2")

	st := newFakeState()
	syncer := s.newSyncer(c, s.config(c, tool, c.MkDir(), st))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, gc.ErrorMatches, `exec ".*feed-sync" failed: exit status 2`)
	c.Check(st.recorded(), gc.Equals, 0)
}

func (s *syncerSuite) TestSyncToolMissing(c *gc.C) {
	tool := filepath.Join(c.MkDir(), "no-such-tool")

	syncer := s.newSyncer(c, s.config(c, tool, c.MkDir(), newFakeState()))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, gc.ErrorMatches, `exec ".*no-such-tool" failed: .*no such file or directory`)
}

func (s *syncerSuite) TestSyncMissingTimestamp(c *gc.C) {
	tool := s.writeTool(c, "exit 0")

	st := newFakeState()
	syncer := s.newSyncer(c, s.config(c, tool, c.MkDir(), st))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, gc.ErrorMatches, "reading scap feed timestamp: open .*: no such file or directory")
	c.Check(st.recorded(), gc.Equals, 0)
}

func (s *syncerSuite) TestSyncEmptyTimestamp(c *gc.C) {
	feedDir := c.MkDir()
	tool := s.writeTool(c, fmt.Sprintf(
		"mkdir -p %s/scap-data\nprintf '\\n' > %s/scap-data/timestamp", feedDir, feedDir))

	syncer := s.newSyncer(c, s.config(c, tool, feedDir, newFakeState()))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, gc.ErrorMatches, `empty scap feed timestamp at ".*"`)
}

func (s *syncerSuite) TestSyncStateReadError(c *gc.C) {
	argsFile := filepath.Join(c.MkDir(), "args")
	tool := s.writeTool(c, fmt.Sprintf("echo ran > %s", argsFile))

	st := newFakeState()
	st.readErr = errors.New("meta unavailable")
	syncer := s.newSyncer(c, s.config(c, tool, c.MkDir(), st))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, gc.ErrorMatches, "meta unavailable")

	// The tool must not run when the version lookup fails.
	_, statErr := os.Stat(argsFile)
	c.Check(os.IsNotExist(statErr), jc.IsTrue)
}

func (s *syncerSuite) TestSyncStateWriteError(c *gc.C) {
	feedDir := c.MkDir()
	tool := s.stampTool(c, feedDir, "202308210630")

	st := newFakeState()
	st.writeErr = errors.New("meta readonly")
	syncer := s.newSyncer(c, s.config(c, tool, feedDir, st))

	err := syncer.Sync(context.Background(), feed.SCAP)
	c.Assert(err, gc.ErrorMatches, "meta readonly")
}

func (s *syncerSuite) TestSyncCancelledWhileLocked(c *gc.C) {
	releaser, err := mutex.Acquire(mutex.Spec{
		Name:  "gvmd-feed-scap",
		Clock: clock.WallClock,
		Delay: 10 * time.Millisecond,
	})
	c.Assert(err, jc.ErrorIsNil)
	defer releaser.Release()

	ctx, cancel := context.WithTimeout(context.Background(), jujutesting.ShortWait)
	defer cancel()

	syncer := s.newSyncer(c, s.config(c, "feed-sync", c.MkDir(), newFakeState()))

	err = syncer.Sync(ctx, feed.SCAP)
	c.Assert(err, gc.ErrorMatches, "acquiring scap feed lock: cancelled acquiring mutex")
}

func (s *syncerSuite) TestMigrateUpdatesAllDatasets(c *gc.C) {
	feedDir := c.MkDir()
	tool := s.stampTool(c, feedDir, "202308210630")

	st := newFakeState()
	syncer := s.newSyncer(c, s.config(c, tool, feedDir, st))

	err := syncer.Migrate(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st.version(feed.SCAP), gc.Equals, "202308210630")
	c.Check(st.version(feed.CERT), gc.Equals, "202308210630")
}

func (s *syncerSuite) TestMigrateTagsFailingStage(c *gc.C) {
	feedDir := c.MkDir()
	tool := s.writeTool(c, fmt.Sprintf(`if [ "$2" = "scap" ]; then
  echo "scap mirror unreachable" >&2
  exit 1
fi
mkdir -p %[1]s/$2-data
echo 202308210630 > %[1]s/$2-data/timestamp`, feedDir))

	st := newFakeState()
	syncer := s.newSyncer(c, s.config(c, tool, feedDir, st))

	err := syncer.Migrate(context.Background())
	c.Assert(err, jc.ErrorIs, feed.ErrSCAPSyncFailed)
	c.Assert(err, gc.Not(jc.ErrorIs), feed.ErrCERTSyncFailed)
	c.Assert(err, gc.ErrorMatches, `exec ".*feed-sync" failed: exit status 1`)
}

func (s *syncerSuite) config(c *gc.C, tool, feedDir string, st feed.State) feed.SyncerConfig {
	return feed.SyncerConfig{
		Tool:    tool,
		FeedDir: feedDir,
		State:   st,
		Clock:   clock.WallClock,
		Logger:  testLogger{c},
	}
}

func (s *syncerSuite) newSyncer(c *gc.C, cfg feed.SyncerConfig) *feed.Syncer {
	syncer, err := feed.NewSyncer(cfg)
	c.Assert(err, jc.ErrorIsNil)
	return syncer
}

// writeTool writes an executable stand-in for the sync tool.
func (s *syncerSuite) writeTool(c *gc.C, script string) string {
	path := filepath.Join(c.MkDir(), "feed-sync")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755)
	c.Assert(err, jc.ErrorIsNil)
	return path
}

// stampTool returns a tool that writes the dataset's timestamp file the
// way the real sync tool does, keyed on its --type argument.
func (s *syncerSuite) stampTool(c *gc.C, feedDir, stamp string) string {
	return s.writeTool(c, fmt.Sprintf(
		"mkdir -p %[1]s/$2-data\necho %[2]s > %[1]s/$2-data/timestamp", feedDir, stamp))
}

type testLogger struct {
	c *gc.C
}

func (l testLogger) Debugf(format string, args ...interface{}) {
	l.c.Logf("DEBUG: "+format, args...)
}

func (l testLogger) Infof(format string, args ...interface{}) {
	l.c.Logf("INFO: "+format, args...)
}

func (l testLogger) Warningf(format string, args ...interface{}) {
	l.c.Logf("WARNING: "+format, args...)
}

// fakeState is an in-memory feed.State.
type fakeState struct {
	mu       sync.Mutex
	versions map[feed.Dataset]string
	readErr  error
	writeErr error
}

func newFakeState() *fakeState {
	return &fakeState{versions: make(map[feed.Dataset]string)}
}

func (f *fakeState) FeedVersion(_ context.Context, dataset feed.Dataset) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.versions[dataset], nil
}

func (f *fakeState) RecordFeedVersion(_ context.Context, dataset feed.Dataset, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.versions[dataset] = version
	return nil
}

func (f *fakeState) seed(dataset feed.Dataset, version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[dataset] = version
}

func (f *fakeState) version(dataset feed.Dataset) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versions[dataset]
}

func (f *fakeState) recorded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.versions)
}
