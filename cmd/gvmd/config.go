// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings such
// as "30m" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return errors.Trace(err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Annotate(err, "parsing duration")
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the daemon configuration, read from a YAML file.
type Config struct {
	// DatabasePath locates the manage database.
	DatabasePath string `yaml:"database-path"`

	// FeedDir is the directory tree the feed sync tool maintains, with
	// one <dataset>-data subdirectory per dataset.
	FeedDir string `yaml:"feed-dir"`

	// SyncTool is the executable invoked to update a feed dataset.
	// Empty disables feed synchronization.
	SyncTool string `yaml:"sync-tool"`

	// FeedInterval is how often the feeds are checked for updates.
	FeedInterval Duration `yaml:"feed-interval"`

	// AdminUser and AdminPassword name an administrator account
	// ensured during migration. An existing account of that name is
	// left untouched.
	AdminUser     string `yaml:"admin-user"`
	AdminPassword string `yaml:"admin-password"`

	// LogFile, when set, sends the daemon log to a rotated file
	// instead of stderr.
	LogFile       string `yaml:"log-file"`
	LogMaxSizeMB  int    `yaml:"log-max-size-mb"`
	LogMaxBackups int    `yaml:"log-max-backups"`

	// LoggingConfig sets log levels per module, in the form
	// "<root>=INFO;gvmd.feed=DEBUG".
	LoggingConfig string `yaml:"logging-config"`
}

// DefaultConfig returns the configuration used where the file does not
// say otherwise.
func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/var/lib/gvm/gvmd.db",
		FeedDir:       "/var/lib/gvm",
		SyncTool:      "greenbone-feed-sync",
		FeedInterval:  Duration(time.Hour),
		LogMaxSizeMB:  100,
		LogMaxBackups: 2,
	}
}

// ReadConfig loads and validates the configuration file at path.
func ReadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotate(err, "reading configuration")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Annotatef(err, "parsing configuration %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.NotValidf("missing database-path")
	}
	if c.SyncTool != "" {
		if c.FeedDir == "" {
			return errors.NotValidf("sync-tool without feed-dir")
		}
		if c.FeedInterval <= 0 {
			return errors.NotValidf("feed-interval %s", time.Duration(c.FeedInterval))
		}
	}
	if c.AdminUser == "" && c.AdminPassword != "" {
		return errors.NotValidf("admin-password without admin-user")
	}
	if c.AdminUser != "" && c.AdminPassword == "" {
		return errors.NotValidf("admin-user without admin-password")
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 {
		return errors.NotValidf("negative log rotation settings")
	}
	return nil
}
