// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package txn_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/mattn/go-sqlite3"
	gc "gopkg.in/check.v1"

	databasetesting "github.com/greenbone/gvmd/internal/database/testing"
	"github.com/greenbone/gvmd/internal/database/txn"
)

type transactionRunnerSuite struct {
	databasetesting.DBSuite
}

var _ = gc.Suite(&transactionRunnerSuite{})

func (s *transactionRunnerSuite) TestTxn(c *gc.C) {
	s.createTable(c)

	runner := txn.NewRetryingTxnRunner()

	db := sqlair.NewDB(s.DB())
	stmt, err := sqlair.Prepare("INSERT INTO foo (id, name) VALUES (1, 'alpha')")
	c.Assert(err, jc.ErrorIsNil)

	err = runner.Txn(context.Background(), db, func(ctx context.Context, tx *sqlair.TX) error {
		return tx.Query(ctx, stmt).Run()
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.countFoo(c), gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestTxnRollback(c *gc.C) {
	s.createTable(c)

	runner := txn.NewRetryingTxnRunner()

	db := sqlair.NewDB(s.DB())
	stmt, err := sqlair.Prepare("INSERT INTO foo (id, name) VALUES (1, 'alpha')")
	c.Assert(err, jc.ErrorIsNil)

	err = runner.Txn(context.Background(), db, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, stmt).Run(); err != nil {
			return errors.Trace(err)
		}
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")

	c.Assert(s.countFoo(c), gc.Equals, 0)
}

func (s *transactionRunnerSuite) TestStdTxn(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT 1")
		if err != nil {
			return errors.Trace(err)
		}
		defer rows.Close()
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *transactionRunnerSuite) TestStdTxnInserts(c *gc.C) {
	s.createTable(c)

	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO foo (id, name) VALUES (1, 'test')")
		return errors.Trace(err)
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.countFoo(c), gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestStdTxnRollback(c *gc.C) {
	s.createTable(c)

	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO foo (id, name) VALUES (1, 'test')")
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")

	c.Assert(s.countFoo(c), gc.Equals, 0)
}

func (s *transactionRunnerSuite) TestStdTxnRetriesTransientFailure(c *gc.C) {
	runner := txn.NewRetryingTxnRunner(txn.WithRetryStrategy(
		txn.DefaultRetryStrategy(testclock.NewDilatedWallClock(time.Millisecond), testLogger{c})))

	var attempts int
	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		attempts++
		if attempts == 1 {
			return sqlite3.ErrBusy
		}
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(attempts, gc.Equals, 2)
}

type recordingLogger struct {
	builder *strings.Builder

	c *gc.C
}

func (l recordingLogger) Tracef(format string, args ...interface{}) {
	l.c.Logf(format, args...)
	l.builder.WriteString(fmt.Sprintf(format, args...))
	l.builder.WriteString("\n")
}

func (l recordingLogger) Warningf(format string, args ...interface{}) {
	l.c.Logf(format, args...)
}

func (l recordingLogger) IsTraceEnabled() bool { return true }

func (s *transactionRunnerSuite) TestStdTxnTracing(c *gc.C) {
	buffer := new(strings.Builder)
	runner := txn.NewRetryingTxnRunner(txn.WithLogger(recordingLogger{
		builder: buffer,
		c:       c,
	}))

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(buffer.String(), gc.Equals, `
running txn (id: 1)
finished txn (id: 1)
`[1:])
}

func (s *transactionRunnerSuite) TestStdTxnWithCancelledContext(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(ctx, s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		c.Error("should not be called")
		return nil
	})
	c.Assert(err, gc.ErrorMatches, "context canceled")
}

func (s *transactionRunnerSuite) TestStdTxnCancelledMidTxn(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())

	runner := txn.NewRetryingTxnRunner()

	// The cancellation wins over the function's own error.
	err := runner.StdTxn(ctx, s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		cancel()
		return errors.Errorf("boom")
	})
	c.Assert(err, gc.ErrorMatches, "context canceled")
}

func (s *transactionRunnerSuite) TestStdTxnParallelCancelledContext(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	var wg sync.WaitGroup
	wg.Add(2)

	// Two transactions race for the single writer slot. The first holds
	// it until stepped; the second arrives with a cancelled context and
	// must fail without its function ever running.
	started := make(chan struct{})
	step := make(chan struct{})
	go func() {
		defer wg.Done()

		err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
			close(started)

			select {
			case <-time.After(jujutesting.ShortWait):
			case <-step:
			}
			return nil
		})
		c.Check(err, jc.ErrorIsNil)
	}()

	go func() {
		defer wg.Done()

		select {
		case <-started:
		case <-time.After(jujutesting.LongWait):
			c.Error("first transaction never started")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := runner.StdTxn(ctx, s.DB(), func(ctx context.Context, tx *sql.Tx) error {
			c.Error("should not be called")
			return nil
		})
		c.Check(err, gc.ErrorMatches, "context canceled")

		close(step)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(jujutesting.LongWait):
		c.Fatal("timed out waiting for transactions to complete")
	}
}

func (s *transactionRunnerSuite) TestStdTxnHeldAtGate(c *gc.C) {
	gate := &stubGate{err: errors.Errorf("no admission")}
	runner := txn.NewRetryingTxnRunner(txn.WithSemaphore(gate))

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		c.Error("should not be called")
		return nil
	})
	c.Assert(err, gc.ErrorMatches, "no admission")
	c.Assert(gate.acquired, gc.Equals, 1)
	c.Assert(gate.released, gc.Equals, 0)
}

func (s *transactionRunnerSuite) TestStdTxnReleasesGate(c *gc.C) {
	gate := &stubGate{}
	runner := txn.NewRetryingTxnRunner(txn.WithSemaphore(gate))

	err := runner.StdTxn(context.Background(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(gate.acquired, gc.Equals, 1)
	c.Assert(gate.released, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestRetryForNonRetryableError(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")
	c.Assert(count, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestRetryStopsWhenCancelled(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())

	// A clock that never fires leaves the stop channel as the only way
	// out of the backoff wait.
	runner := txn.NewRetryingTxnRunner(txn.WithRetryStrategy(
		txn.DefaultRetryStrategy(testclock.NewClock(time.Now()), quietLogger{})))

	var count int
	err := runner.Retry(ctx, func() error {
		defer cancel()

		count++
		return sqlite3.ErrBusy
	})
	c.Assert(err, gc.ErrorMatches, "retry stopped")
	c.Assert(count, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestRetryForRetryableError(c *gc.C) {
	runner := txn.NewRetryingTxnRunner(txn.WithRetryStrategy(
		txn.DefaultRetryStrategy(testclock.NewDilatedWallClock(time.Millisecond), testLogger{c})))

	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		if count < 3 {
			return sqlite3.ErrBusy
		}
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(count, gc.Equals, 3)
}

func (s *transactionRunnerSuite) TestRetryAttemptsExhausted(c *gc.C) {
	runner := txn.NewRetryingTxnRunner(txn.WithRetryStrategy(
		txn.DefaultRetryStrategy(testclock.NewDilatedWallClock(time.Millisecond), quietLogger{})))

	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		return sqlite3.ErrBusy
	})
	c.Assert(err, gc.ErrorMatches, "attempt count exceeded: .*")
	c.Assert(count, gc.Equals, 250)
}

func (s *transactionRunnerSuite) TestRetryUnbounded(c *gc.C) {
	runner := txn.NewRetryingTxnRunner(txn.WithRetryStrategy(
		txn.UnboundedRetryStrategy(testclock.NewDilatedWallClock(time.Millisecond), quietLogger{})))

	// More failures than the bounded strategy tolerates.
	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		if count <= 300 {
			return sqlite3.ErrBusy
		}
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(count, gc.Equals, 301)
}

func (s *transactionRunnerSuite) createTable(c *gc.C) {
	_, err := s.DB().Exec("CREATE TABLE foo (id INT PRIMARY KEY, name VARCHAR(255))")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *transactionRunnerSuite) countFoo(c *gc.C) int {
	var n int
	err := s.DB().QueryRow("SELECT COUNT(*) FROM foo").Scan(&n)
	c.Assert(err, jc.ErrorIsNil)
	return n
}

// testLogger routes transaction tracing into the test log.
type testLogger struct {
	c *gc.C
}

func (l testLogger) Tracef(format string, args ...interface{}) {
	l.c.Logf("TRACE: "+format, args...)
}

func (l testLogger) Warningf(format string, args ...interface{}) {
	l.c.Logf("WARNING: "+format, args...)
}

func (l testLogger) IsTraceEnabled() bool { return true }

// quietLogger swallows the hundreds of trace lines the exhaustion tests
// would otherwise write.
type quietLogger struct{}

func (quietLogger) Tracef(string, ...interface{})   {}
func (quietLogger) Warningf(string, ...interface{}) {}
func (quietLogger) IsTraceEnabled() bool            { return false }

// stubGate stands in for the admission semaphore.
type stubGate struct {
	err      error
	acquired int
	released int
}

func (g *stubGate) Acquire(context.Context, int64) error {
	g.acquired++
	return g.err
}

func (g *stubGate) Release(int64) {
	g.released++
}
