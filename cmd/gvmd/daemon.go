// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	"github.com/juju/worker/v4"
	"github.com/prometheus/client_golang/prometheus"

	dbschema "github.com/greenbone/gvmd/core/database/schema"
	"github.com/greenbone/gvmd/domain/access/bootstrap"
	accessservice "github.com/greenbone/gvmd/domain/access/service"
	accessstate "github.com/greenbone/gvmd/domain/access/state"
	catalogservice "github.com/greenbone/gvmd/domain/catalog/service"
	catalogstate "github.com/greenbone/gvmd/domain/catalog/state"
	feedstate "github.com/greenbone/gvmd/domain/feed/state"
	"github.com/greenbone/gvmd/domain/schema"
	"github.com/greenbone/gvmd/internal/agentcontroller"
	"github.com/greenbone/gvmd/internal/database"
	"github.com/greenbone/gvmd/internal/database/txn"
	"github.com/greenbone/gvmd/internal/feed"
	"github.com/greenbone/gvmd/internal/termination"
)

// restartDelay is how long the runner waits before restarting a worker
// that failed.
const restartDelay = 3 * time.Second

// Daemon assembles the running gvmd: the manage database, the domain
// services on top of it and the background workers.
type Daemon struct {
	config   Config
	db       *sql.DB
	runner   *worker.Runner
	registry *prometheus.Registry

	access  *accessservice.Service
	catalog *catalogservice.Service

	closeOnce sync.Once
}

// NewDaemon opens the database, refuses to run against a schema other
// than the one this daemon was built for, and starts the background
// workers.
func NewDaemon(cfg Config) (*Daemon, error) {
	db, err := openDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, errors.Trace(err)
	}

	d := &Daemon{config: cfg, db: db}
	if err := d.init(); err != nil {
		if d.runner != nil {
			d.runner.Kill()
			_ = d.runner.Wait()
		}
		_ = db.Close()
		return nil, errors.Trace(err)
	}
	return d, nil
}

func (d *Daemon) init() error {
	ctx := context.Background()

	registry, err := newPrometheusRegistry()
	if err != nil {
		return errors.Trace(err)
	}
	metrics := txn.NewMetrics()
	if err := registry.Register(metrics); err != nil {
		return errors.Annotate(err, "registering database metrics")
	}
	d.registry = registry

	runner := database.NewTxnRunner(d.db,
		txn.WithLogger(loggo.GetLogger("gvmd.database.txn")),
		txn.WithMetrics(metrics),
	)

	target := schema.ManagerDDL().Len()
	current, err := dbschema.Version(ctx, runner)
	if err != nil {
		return errors.Trace(err)
	}
	if current != target {
		return errors.Errorf("database at schema version %d, this daemon needs %d: run gvmd --migrate", current, target)
	}

	// Predefined roles may have gained commands in this release.
	if err := bootstrap.EnsurePredefinedRoleGrants()(ctx, runner); err != nil {
		return errors.Trace(err)
	}

	factory := database.TxnRunnerFactory(runner)
	accessSt := accessstate.NewState(factory, loggo.GetLogger("gvmd.access.state"))
	d.access = accessservice.NewService(accessSt, loggo.GetLogger("gvmd.access"))
	d.catalog = catalogservice.NewService(
		catalogstate.NewState(factory, loggo.GetLogger("gvmd.catalog.state")),
		accessSt,
		loggo.GetLogger("gvmd.catalog"),
	)

	var syncer *feed.Syncer
	if d.config.SyncTool != "" {
		syncer, err = feed.NewSyncer(feed.SyncerConfig{
			Tool:    d.config.SyncTool,
			FeedDir: d.config.FeedDir,
			State:   feedstate.NewState(factory, loggo.GetLogger("gvmd.feed.state")),
			Clock:   clock.WallClock,
			Logger:  loggo.GetLogger("gvmd.feed"),
		})
		if err != nil {
			return errors.Trace(err)
		}
	} else {
		logger.Infof("feed synchronization disabled, no sync-tool configured")
	}

	d.runner = worker.NewRunner(worker.RunnerParams{
		IsFatal: func(err error) bool {
			return errors.Is(err, termination.ErrTerminated)
		},
		MoreImportant: func(err0, err1 error) bool {
			return errors.Is(err0, termination.ErrTerminated)
		},
		RestartDelay: restartDelay,
		Logger:       loggo.GetLogger("gvmd.runner"),
	})

	if err := d.runner.StartWorker("termination", func() (worker.Worker, error) {
		return termination.NewWorker(), nil
	}); err != nil {
		return errors.Trace(err)
	}
	if syncer != nil {
		if err := d.runner.StartWorker("feed", func() (worker.Worker, error) {
			return feed.NewWorker(feed.WorkerConfig{
				Syncer:   syncer,
				Interval: time.Duration(d.config.FeedInterval),
				Clock:    clock.WallClock,
				Logger:   loggo.GetLogger("gvmd.feed"),
			})
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Kill is part of the worker.Worker interface.
func (d *Daemon) Kill() {
	d.runner.Kill()
}

// Wait is part of the worker.Worker interface. The database is closed
// once the workers are done with it.
func (d *Daemon) Wait() error {
	err := d.runner.Wait()
	d.closeOnce.Do(func() {
		if cerr := d.db.Close(); cerr != nil {
			logger.Warningf("closing database: %v", cerr)
		}
	})
	return errors.Trace(err)
}

// Access returns the access control service.
func (d *Daemon) Access() *accessservice.Service {
	return d.access
}

// Catalog returns the resource catalog service.
func (d *Daemon) Catalog() *catalogservice.Service {
	return d.catalog
}

// PrometheusRegistry returns the registry holding the daemon's metric
// collectors.
func (d *Daemon) PrometheusRegistry() *prometheus.Registry {
	return d.registry
}

// AgentController returns a client for the agent control endpoint of
// the given scanner.
func (d *Daemon) AgentController(ctx context.Context, scannerUUID string) (*agentcontroller.Client, error) {
	conn, err := d.catalog.ScannerConnection(ctx, scannerUUID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return agentcontroller.NewClient(agentcontroller.ClientConfig{
		Connection: agentcontroller.Connection{
			Host:    conn.Host,
			Port:    conn.Port,
			CAPub:   conn.CAPub,
			KeyPub:  conn.KeyPub,
			KeyPriv: conn.KeyPriv,
		},
		Logger: loggo.GetLogger("gvmd.agentcontroller"),
	})
}

// openDatabase opens the manage database, retrying briefly so a restart
// does not lose to a dying predecessor still holding the file lock.
func openDatabase(path string) (*sql.DB, error) {
	var db *sql.DB
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			db, err = database.Open(path)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("attempt %d to open database %q: %v", attempt, path, err)
		},
		Attempts: 5,
		Delay:    500 * time.Millisecond,
		Clock:    clock.WallClock,
	})
	return db, errors.Trace(err)
}

func newPrometheusRegistry() (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(prometheus.NewGoCollector()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := registry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return nil, errors.Trace(err)
	}
	return registry, nil
}
