// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package config holds the yaml-tagged configuration structs this module
// loads at startup, following the same Defaults/Verify convention the
// rest of the JetStream config in this package already uses.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Path is a filesystem path read from configuration. It is its own type,
// rather than a bare string, so struct tags and doc comments can make
// clear which config fields name a file on disk.
type Path string

// DefaultOpts controls how Defaults methods behave when generating a
// brand new configuration file versus filling gaps in one loaded from
// disk.
type DefaultOpts struct {
	Generate       bool
	SingleDatabase bool
}

// ConfigErrors accumulates configuration problems found while verifying
// a loaded config document, so that Verify can report every problem at
// once instead of failing on the first one.
type ConfigErrors []string

func (e *ConfigErrors) Add(message string) {
	*e = append(*e, message)
}

func (e ConfigErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msg := "configuration errors:\n"
	for _, err := range e {
		msg += "  " + err + "\n"
	}
	return msg
}

// DataSource is a database connection string, either a postgres URI
// (postgres://...) or a sqlite3 file reference (file:...).
type DataSource string

// IsPostgres reports whether the connection string names a postgres
// database.
func (d DataSource) IsPostgres() bool {
	return len(d) >= len("postgres://") && d[:len("postgres://")] == "postgres://" ||
		len(d) >= len("postgresql://") && d[:len("postgresql://")] == "postgresql://"
}

// IsSQLite reports whether the connection string names a sqlite3
// database file.
func (d DataSource) IsSQLite() bool {
	return len(d) >= len("file:") && d[:len("file:")] == "file:"
}

// DatabaseOptions configures one logical database: its connection string
// and pool sizing. Only the connection string is used when opening the
// database; sqlutil.Connections does not apply the pool sizing fields.
type DatabaseOptions struct {
	ConnectionString       DataSource `yaml:"connection_string"`
	MaxOpenConnections     int        `yaml:"max_open_conns"`
	MaxIdleConnections     int        `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int        `yaml:"conn_max_lifetime"`
}

func (c *DatabaseOptions) Defaults(conns int) {
	c.MaxOpenConnections = conns
	c.MaxIdleConnections = 2
	c.ConnMaxLifetimeSeconds = -1
}

func (c *DatabaseOptions) Verify(configErrs *ConfigErrors) {
	if c.ConnectionString == "" {
		configErrs.Add("database connection_string must not be empty")
	}
}

// Global holds configuration shared across every component.
type Global struct {
	ServerName string    `yaml:"server_name"`
	JetStream  JetStream `yaml:"jetstream"`
}

func (c *Global) Defaults(opts DefaultOpts) {
	c.ServerName = "localhost"
	c.JetStream.Defaults(opts)
}

func (c *Global) Verify(configErrs *ConfigErrors) {
	if c.ServerName == "" {
		configErrs.Add("global server_name must not be empty")
	}
	c.JetStream.Verify(configErrs)
}

// RoomServerOptions configures the state snapshot store behind the
// authorization engine.
type RoomServerOptions struct {
	Database DatabaseOptions `yaml:"database"`
}

func (c *RoomServerOptions) Defaults(opts DefaultOpts) {
	c.Database.Defaults(10)
	if opts.Generate {
		c.Database.ConnectionString = "file:roomserver.db"
	}
}

func (c *RoomServerOptions) Verify(configErrs *ConfigErrors) {
	c.Database.Verify(configErrs)
}

// RoomAuth is the root configuration document.
type RoomAuth struct {
	Version int `yaml:"version"`

	Global     Global            `yaml:"global"`
	RoomServer RoomServerOptions `yaml:"room_server"`
}

// Defaults fills every section with sensible defaults, optionally
// generating a complete minimal config suitable for writing straight to
// disk.
func (c *RoomAuth) Defaults(opts DefaultOpts) {
	c.Version = 2
	c.Global.Defaults(opts)
	c.RoomServer.Defaults(opts)
}

// Verify validates the whole document, returning all problems found
// rather than stopping at the first one.
func (c *RoomAuth) Verify() error {
	var configErrs ConfigErrors
	c.Global.Verify(&configErrs)
	c.RoomServer.Verify(&configErrs)
	if len(configErrs) > 0 {
		return configErrs
	}
	return nil
}

// Load reads and parses a RoomAuth config document from path, applying
// defaults for anything the file doesn't set before verifying it.
func Load(path string) (*RoomAuth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c RoomAuth
	c.Defaults(DefaultOpts{})
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return &c, nil
}
