// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"

	"github.com/greenbone/gvmd/core/version"
	"github.com/greenbone/gvmd/domain/access/bootstrap"
	"github.com/greenbone/gvmd/domain/schema"
	"github.com/greenbone/gvmd/internal/database"
	"github.com/greenbone/gvmd/internal/database/txn"
	"github.com/greenbone/gvmd/internal/termination"
)

var logger = loggo.GetLogger("gvmd.cmd")

type gvmdCommand struct {
	cmd.CommandBase

	// The following are set via command-line flags.
	configPath  string
	migrate     bool
	showVersion bool
	logToStdErr bool

	config Config
}

func newGvmdCommand() cmd.Command {
	return &gvmdCommand{}
}

// Info implements Command.
func (c *gvmdCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "gvmd",
		Purpose: "run the Greenbone Vulnerability Manager daemon",
	}
}

// SetFlags implements Command.
func (c *gvmdCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "/etc/gvm/gvmd.conf", "path to the daemon configuration file")
	f.BoolVar(&c.migrate, "migrate", false, "migrate the database to this daemon's schema and exit")
	f.BoolVar(&c.showVersion, "version", false, "print the daemon version and exit")
	f.BoolVar(&c.logToStdErr, "log-to-stderr", false, "log to stderr even when a log file is configured")
}

// Init implements Command.
func (c *gvmdCommand) Init(args []string) error {
	if err := cmd.CheckEmpty(args); err != nil {
		return errors.Trace(err)
	}
	if c.showVersion {
		return nil
	}

	cfg, err := ReadConfig(c.configPath)
	if err != nil {
		return errors.Trace(err)
	}
	c.config = cfg
	return errors.Trace(c.setupLogging())
}

func (c *gvmdCommand) setupLogging() error {
	writer := io.Writer(os.Stderr)
	if c.config.LogFile != "" && !c.logToStdErr {
		ljLogger := &lumberjack.Logger{
			Filename:   c.config.LogFile,
			MaxSize:    c.config.LogMaxSizeMB,
			MaxBackups: c.config.LogMaxBackups,
			Compress:   true,
		}
		logger.Debugf("created rotating log file %q with max size %d MB and max backups %d",
			ljLogger.Filename, ljLogger.MaxSize, ljLogger.MaxBackups)
		writer = ljLogger
	}
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(writer, loggo.DefaultFormatter)); err != nil {
		return errors.Trace(err)
	}

	loggo.DefaultContext().ResetLoggerLevels()
	spec := "<root>=INFO"
	if c.config.LoggingConfig != "" {
		spec = c.config.LoggingConfig
	}
	return errors.Annotatef(loggo.ConfigureLoggers(spec), "setting logging config %q", spec)
}

// Run implements Command.
func (c *gvmdCommand) Run(ctx *cmd.Context) error {
	if c.showVersion {
		fmt.Fprintln(ctx.Stdout, version.Current)
		return nil
	}
	if c.migrate {
		return errors.Trace(c.runMigrate(ctx))
	}
	return errors.Trace(c.runServe(ctx))
}

// runMigrate brings the database up to this daemon's schema version and
// ensures the predefined roles and, when configured, the administrator
// account. Runs against a live database are safe: every step is a no-op
// once applied.
func (c *gvmdCommand) runMigrate(ctx *cmd.Context) error {
	db, err := openDatabase(c.config.DatabasePath)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = db.Close() }()

	stdCtx := context.Background()
	runner := database.NewTxnRunner(db, txn.WithLogger(loggo.GetLogger("gvmd.database.txn")))

	changes, err := schema.ManagerDDL().Ensure(stdCtx, runner)
	if err != nil {
		return errors.Trace(err)
	}
	if changes.Current == changes.Post {
		fmt.Fprintf(ctx.Stdout, "database already at schema version %d\n", changes.Post)
	} else {
		fmt.Fprintf(ctx.Stdout, "database migrated from schema version %d to %d\n", changes.Current, changes.Post)
	}

	if err := bootstrap.EnsurePredefinedRoleGrants()(stdCtx, runner); err != nil {
		return errors.Trace(err)
	}
	if c.config.AdminUser != "" {
		if err := bootstrap.AddAdminUser(c.config.AdminUser, c.config.AdminPassword)(stdCtx, runner); err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintf(ctx.Stdout, "ensured admin user %q\n", c.config.AdminUser)
	}
	return nil
}

func (c *gvmdCommand) runServe(ctx *cmd.Context) error {
	logger.Infof("gvmd %s starting", version.Current)

	daemon, err := NewDaemon(c.config)
	if err != nil {
		return errors.Trace(err)
	}

	err = daemon.Wait()
	if errors.Is(err, termination.ErrTerminated) {
		logger.Infof("terminated by signal, shutting down")
		return nil
	}
	return errors.Trace(err)
}
