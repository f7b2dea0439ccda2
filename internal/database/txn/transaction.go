// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package txn runs functions inside database transactions, absorbing the
// embedded engine's transient failures. Busy and locked errors are
// retried with backoff; a deliberate context cancellation is reported as
// such and never retried or logged as a failure.
package txn

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"golang.org/x/sync/semaphore"
)

// Logger describes the trace output emitted while running transactions.
type Logger interface {
	Tracef(string, ...interface{})
	Warningf(string, ...interface{})
	IsTraceEnabled() bool
}

// RetryStrategy defines a function for retrying a transaction.
type RetryStrategy func(context.Context, func() error) error

// Semaphore defines a striped entry gate for transactions. The embedded
// engine allows a single writer, so admission is controlled here rather
// than by colliding inside the driver.
type Semaphore interface {
	Acquire(context.Context, int64) error
	Release(int64)
}

// Option updates the option set of a RetryingTxnRunner.
type Option func(*option)

// WithLogger sets the logger used for transaction tracing.
func WithLogger(logger Logger) Option {
	return func(o *option) {
		o.logger = logger
	}
}

// WithRetryStrategy sets the strategy applied around each transaction.
func WithRetryStrategy(strategy RetryStrategy) Option {
	return func(o *option) {
		o.retryStrategy = strategy
	}
}

// WithSemaphore sets the gate transactions must pass before starting.
func WithSemaphore(sem Semaphore) Option {
	return func(o *option) {
		o.semaphore = sem
	}
}

// WithMetrics sets the collector observing transaction outcomes.
func WithMetrics(metrics *Metrics) Option {
	return func(o *option) {
		o.metrics = metrics
	}
}

type option struct {
	logger        Logger
	retryStrategy RetryStrategy
	semaphore     Semaphore
	metrics       *Metrics
}

func newOptions() *option {
	logger := noopLogger{}
	return &option{
		logger:        logger,
		retryStrategy: DefaultRetryStrategy(clock.WallClock, logger),
		semaphore:     semaphore.NewWeighted(1),
	}
}

// RetryingTxnRunner runs transaction functions against a database handle,
// serialised through a semaphore and retried on transient failure.
type RetryingTxnRunner struct {
	logger        Logger
	retryStrategy RetryStrategy
	semaphore     Semaphore
	metrics       *Metrics

	txnID atomic.Int64
}

// NewRetryingTxnRunner returns a runner with the given options applied
// over the defaults.
func NewRetryingTxnRunner(opts ...Option) *RetryingTxnRunner {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &RetryingTxnRunner{
		logger:        o.logger,
		retryStrategy: o.retryStrategy,
		semaphore:     o.semaphore,
		metrics:       o.metrics,
	}
}

// Txn executes the input function against the given database inside a
// SQLair transaction. The function's error rolls the transaction back and
// is returned verbatim; transient failures restart the whole transaction.
func (t *RetryingTxnRunner) Txn(ctx context.Context, db *sqlair.DB, fn func(context.Context, *sqlair.TX) error) error {
	return t.retry(ctx, func() error {
		return t.run(ctx, func(ctx context.Context) error {
			tx, err := db.Begin(ctx, nil)
			if err != nil {
				return errors.Trace(err)
			}

			if err := fn(ctx, tx); err != nil {
				t.rollback(tx.Rollback())
				return errors.Trace(err)
			}
			return errors.Trace(tx.Commit())
		})
	})
}

// StdTxn executes the input function against the given database inside a
// standard library transaction, with the same semantics as Txn.
func (t *RetryingTxnRunner) StdTxn(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.Tx) error) error {
	return t.retry(ctx, func() error {
		return t.run(ctx, func(ctx context.Context) error {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return errors.Trace(err)
			}

			if err := fn(ctx, tx); err != nil {
				t.rollback(tx.Rollback())
				return errors.Trace(err)
			}
			return errors.Trace(tx.Commit())
		})
	})
}

// Retry runs the input function under the runner's retry strategy, outside
// of any transaction management.
func (t *RetryingTxnRunner) Retry(ctx context.Context, fn func() error) error {
	return t.retryStrategy(ctx, fn)
}

func (t *RetryingTxnRunner) retry(ctx context.Context, fn func() error) error {
	return t.retryStrategy(ctx, func() error {
		err := fn()
		if err != nil && IsErrRetryable(err) {
			t.metrics.retried()
		}
		return err
	})
}

// run gates, traces and times one transaction attempt. A context that is
// already done never reaches the database.
func (t *RetryingTxnRunner) run(ctx context.Context, fn func(context.Context) error) error {
	if err := t.semaphore.Acquire(ctx, 1); err != nil {
		return errors.Trace(err)
	}
	defer t.semaphore.Release(1)

	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	default:
	}

	if t.logger.IsTraceEnabled() {
		id := t.txnID.Add(1)
		t.logger.Tracef("running txn (id: %d)", id)
		defer t.logger.Tracef("finished txn (id: %d)", id)
	}

	begin := time.Now()
	err := fn(ctx)
	t.metrics.observe(time.Since(begin), err)

	if err != nil && ctx.Err() != nil {
		// The transaction died because the caller walked away, not
		// because of anything the database did. Report the cancellation
		// and nothing else.
		return errors.Trace(ctx.Err())
	}
	return errors.Trace(err)
}

// rollback absorbs the errors a rollback after a failed or cancelled
// transaction produces on its own.
func (t *RetryingTxnRunner) rollback(err error) {
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return
	}
	t.logger.Warningf("failed to rollback transaction: %v", err)
}

// DefaultRetryStrategy returns a function that retries its input on
// transient failure up to 250 times with exponential backoff. A context
// cancellation is fatal and stops the retries immediately.
func DefaultRetryStrategy(clk clock.Clock, logger Logger) RetryStrategy {
	return strategy(clk, logger, 250)
}

// UnboundedRetryStrategy retries for as long as the context allows. For
// callers that must not give up, such as the schema migration run.
func UnboundedRetryStrategy(clk clock.Clock, logger Logger) RetryStrategy {
	return strategy(clk, logger, retry.UnlimitedAttempts)
}

func strategy(clk clock.Clock, logger Logger, attempts int) RetryStrategy {
	return func(ctx context.Context, fn func() error) error {
		return retry.Call(retry.CallArgs{
			Func: fn,
			IsFatalError: func(err error) bool {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return true
				}
				if IsErrRetryable(err) {
					logger.Tracef("retrying transaction: %v", err)
					return false
				}
				return true
			},
			Attempts:    attempts,
			Delay:       time.Millisecond,
			MaxDelay:    time.Millisecond * 100,
			BackoffFunc: retry.ExpBackoff(time.Millisecond, time.Millisecond*100, 1.6, true),
			Clock:       clk,
			Stop:        ctx.Done(),
		})
	}
}

type noopLogger struct{}

func (noopLogger) Tracef(string, ...interface{})   {}
func (noopLogger) Warningf(string, ...interface{}) {}
func (noopLogger) IsTraceEnabled() bool            { return false }
