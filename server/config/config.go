// Copyright 2016 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinycursor/pkg/partition"
	"github.com/pingcap-incubator/tinycursor/pkg/typeutil"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the cursor server configuration.
type Config struct {
	*flag.FlagSet `json:"-"`

	Version bool `json:"-"`

	ConfigCheck bool `json:"-"`

	Name string `toml:"name" json:"name"`
	// StatusAddr is the address of the HTTP API.
	StatusAddr string `toml:"status-addr" json:"status-addr"`

	// Log related config.
	Log log.Config `toml:"log" json:"log"`

	Cursor CursorConfig `toml:"cursor" json:"cursor"`

	Session SessionConfig `toml:"session" json:"session"`

	Security SecurityConfig `toml:"security" json:"security"`

	Audit AuditConfig `toml:"audit" json:"audit"`

	configFile string

	// For all warnings during parsing.
	WarningMsgs []string

	logger   *zap.Logger
	logProps *log.ZapProperties
}

// NewConfig creates a new config.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.FlagSet = flag.NewFlagSet("cursor-server", flag.ContinueOnError)
	fs := cfg.FlagSet

	fs.BoolVar(&cfg.Version, "V", false, "print version information and exit")
	fs.BoolVar(&cfg.Version, "version", false, "print version information and exit")
	fs.StringVar(&cfg.configFile, "config", "", "Config file")
	fs.BoolVar(&cfg.ConfigCheck, "config-check", false, "check config file validity and exit")

	fs.StringVar(&cfg.Name, "name", "", "human-readable name for this server")
	fs.StringVar(&cfg.StatusAddr, "status-addr", "", fmt.Sprintf("address of the HTTP API (default '%s')", defaultStatusAddr))

	fs.StringVar(&cfg.Log.Level, "L", "", "log level: debug, info, warn, error, fatal (default 'info')")
	fs.StringVar(&cfg.Log.File.Filename, "log-file", "", "log file path")

	fs.BoolVar(&cfg.Security.AuthEnabled, "auth", false, "check privileges on cursor kills")

	return cfg
}

const (
	defaultName       = "cursor-server"
	defaultStatusAddr = "127.0.0.1:27020"

	defaultCursorTimeout   = 10 * time.Minute
	defaultMonitorInterval = 4 * time.Second
	defaultIDAllocAttempts = 10000

	defaultSessionTTL        = 30 * time.Minute
	defaultSessionGCInterval = time.Minute

	defaultAuditRecentEvents = 1024
)

func adjustString(v *string, defValue string) {
	if len(*v) == 0 {
		*v = defValue
	}
}

func adjustInt(v *int, defValue int) {
	if *v == 0 {
		*v = defValue
	}
}

func adjustDuration(v *typeutil.Duration, defValue time.Duration) {
	if v.Duration == 0 {
		v.Duration = defValue
	}
}

// Parse parses flag definitions from the argument list.
func (c *Config) Parse(arguments []string) error {
	// Parse first to get config file.
	err := c.FlagSet.Parse(arguments)
	if err != nil {
		return errors.WithStack(err)
	}

	// Load config file if specified.
	var meta *toml.MetaData
	if c.configFile != "" {
		meta, err = c.configFromFile(c.configFile)
		if err != nil {
			return err
		}
	}

	// Parse again to replace with command line options.
	err = c.FlagSet.Parse(arguments)
	if err != nil {
		return errors.WithStack(err)
	}

	if len(c.FlagSet.Args()) != 0 {
		return errors.Errorf("'%s' is an invalid flag", c.FlagSet.Arg(0))
	}

	return c.Adjust(meta)
}

// Validate is used to validate if some configurations are right.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.StatusAddr); err != nil {
		return errors.Wrapf(err, "invalid status-addr %q", c.StatusAddr)
	}
	if err := c.Cursor.Validate(); err != nil {
		return err
	}
	return c.Session.Validate()
}

// Utility to test if a configuration is defined.
type configMetaData struct {
	meta *toml.MetaData
	path []string
}

func newConfigMetadata(meta *toml.MetaData) *configMetaData {
	return &configMetaData{meta: meta}
}

func (m *configMetaData) IsDefined(key string) bool {
	if m.meta == nil {
		return false
	}
	keys := append([]string(nil), m.path...)
	keys = append(keys, key)
	return m.meta.IsDefined(keys...)
}

func (m *configMetaData) Child(path ...string) *configMetaData {
	newPath := append([]string(nil), m.path...)
	newPath = append(newPath, path...)
	return &configMetaData{
		meta: m.meta,
		path: newPath,
	}
}

func (m *configMetaData) CheckUndecoded() error {
	if m.meta == nil {
		return nil
	}
	undecoded := m.meta.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	errInfo := "Config contains undefined item: "
	for _, key := range undecoded {
		errInfo += key.String() + ", "
	}
	return errors.New(errInfo[:len(errInfo)-2])
}

// Adjust fills in defaults and validates the result.
func (c *Config) Adjust(meta *toml.MetaData) error {
	configMetaData := newConfigMetadata(meta)
	if err := configMetaData.CheckUndecoded(); err != nil {
		c.WarningMsgs = append(c.WarningMsgs, err.Error())
	}

	if c.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return errors.WithStack(err)
		}
		adjustString(&c.Name, fmt.Sprintf("%s-%s", defaultName, hostname))
	}
	adjustString(&c.StatusAddr, defaultStatusAddr)

	c.Cursor.adjust()
	c.Session.adjust()
	c.Audit.adjust(configMetaData.Child("audit"))

	return c.Validate()
}

// Clone returns a cloned configuration.
func (c *Config) Clone() *Config {
	cfg := &Config{}
	*cfg = *c
	return cfg
}

func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "<nil>"
	}
	return string(data)
}

// configFromFile loads config from file.
func (c *Config) configFromFile(path string) (*toml.MetaData, error) {
	meta, err := toml.DecodeFile(path, c)
	return &meta, errors.WithStack(err)
}

// CursorConfig configures the cursor registry.
type CursorConfig struct {
	// Timeout is how long an idle cursor survives.
	Timeout typeutil.Duration `toml:"timeout" json:"timeout"`
	// Partitions is the lock partition count of each cursor registry.
	Partitions int `toml:"partitions" json:"partitions"`
	// IDAllocMaxAttempts bounds the random draws of one id allocation.
	IDAllocMaxAttempts int `toml:"id-alloc-max-attempts" json:"id-alloc-max-attempts"`
	// MonitorInterval is the interval of the idle cursor sweep.
	MonitorInterval typeutil.Duration `toml:"monitor-interval" json:"monitor-interval"`
}

func (c *CursorConfig) adjust() {
	adjustDuration(&c.Timeout, defaultCursorTimeout)
	adjustInt(&c.Partitions, partition.DefaultPartitions)
	adjustInt(&c.IDAllocMaxAttempts, defaultIDAllocAttempts)
	adjustDuration(&c.MonitorInterval, defaultMonitorInterval)
}

// Validate checks the cursor configuration.
func (c *CursorConfig) Validate() error {
	if c.Partitions < 1 {
		return errors.Errorf("cursor.partitions must be positive, got %d", c.Partitions)
	}
	if c.IDAllocMaxAttempts < 1 {
		return errors.Errorf("cursor.id-alloc-max-attempts must be positive, got %d", c.IDAllocMaxAttempts)
	}
	if c.Timeout.Duration < 0 || c.MonitorInterval.Duration < 0 {
		return errors.New("cursor durations must not be negative")
	}
	return nil
}

// SessionConfig configures session liveness tracking.
type SessionConfig struct {
	// TTL is how long a session stays alive without activity.
	TTL        typeutil.Duration `toml:"ttl" json:"ttl"`
	GCInterval typeutil.Duration `toml:"gc-interval" json:"gc-interval"`
}

func (c *SessionConfig) adjust() {
	adjustDuration(&c.TTL, defaultSessionTTL)
	adjustDuration(&c.GCInterval, defaultSessionGCInterval)
}

// Validate checks the session configuration.
func (c *SessionConfig) Validate() error {
	if c.TTL.Duration < 0 || c.GCInterval.Duration < 0 {
		return errors.New("session durations must not be negative")
	}
	return nil
}

// SecurityConfig is the authorization configuration.
type SecurityConfig struct {
	AuthEnabled bool `toml:"auth-enabled" json:"auth-enabled"`
}

// AuditConfig is the kill audit configuration.
type AuditConfig struct {
	// Log writes every audited kill to the "audit" logger.
	Log bool `toml:"log" json:"log"`
	// RecentEvents is how many events the admin API can show.
	RecentEvents int `toml:"recent-events" json:"recent-events"`
}

func (c *AuditConfig) adjust(meta *configMetaData) {
	if !meta.IsDefined("log") {
		c.Log = true
	}
	adjustInt(&c.RecentEvents, defaultAuditRecentEvents)
}

// SetupLogger setup the logger.
func (c *Config) SetupLogger() error {
	lg, p, err := log.InitLogger(&c.Log, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return err
	}
	c.logger = lg
	c.logProps = p
	return nil
}

// GetZapLogger gets the created zap logger.
func (c *Config) GetZapLogger() *zap.Logger {
	return c.logger
}

// GetZapLogProperties gets properties of the zap logger.
func (c *Config) GetZapLogProperties() *log.ZapProperties {
	return c.logProps
}
