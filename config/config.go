// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides the miband command's configuration.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/kortschak/miband/auth"
	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/instant"
)

// Environment variables overriding the configuration file.
const (
	EnvAddress = "MIBAND_ADDRESS"
	EnvKey     = "MIBAND_KEY"
	EnvDataDir = "MIBAND_DATA_DIR"
	EnvOWMKey  = "MIBAND_OWM_KEY"
)

// Config holds application configuration.
type Config struct {
	// Address is the band's Bluetooth address. An empty address
	// connects to the first band found.
	Address string `yaml:"address"`
	// Key is the band's hex encoded authentication key.
	Key string `yaml:"key"`
	// DataDir is the activity store directory.
	DataDir  string `yaml:"data_dir" default:"miband"`
	LogLevel string `yaml:"log_level" default:"info"`

	// Offset is the local UTC offset in 15 minute units. Nil uses the
	// system time zone.
	Offset *int `yaml:"offset"`

	Weather Weather `yaml:"weather"`
	Timeout Timeout `yaml:"timeout"`
	Serve   Serve   `yaml:"serve"`
}

// Weather configures weather reports.
type Weather struct {
	Place     string  `yaml:"place" default:"Home"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	// APIKey is the OpenWeatherMap API key.
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language" default:"en"`
	Units    string `yaml:"units" default:"metric"`
}

// Timeout holds connection and protocol time limits.
type Timeout struct {
	Scan     time.Duration `yaml:"scan" default:"10s"`
	Connect  time.Duration `yaml:"connect" default:"30s"`
	Auth     time.Duration `yaml:"auth" default:"2s"`
	Chunk    time.Duration `yaml:"chunk" default:"5s"`
	Response time.Duration `yaml:"response" default:"10s"`
	Pulse    time.Duration `yaml:"pulse" default:"20s"`
	Data     time.Duration `yaml:"data" default:"30s"`
}

// Serve configures the long running service.
type Serve struct {
	// Listen is the address of the metrics and event endpoints.
	Listen string `yaml:"listen" default:"localhost:9110"`
	// Sync is the interval between activity synchronisations.
	Sync time.Duration `yaml:"sync" default:"1h"`
	// Weather is the interval between weather pushes. Weather is
	// only pushed when an API key is configured.
	Weather time.Duration `yaml:"weather" default:"3h"`
}

// Default returns the default configuration.
func Default() *Config {
	var c Config
	defaults.SetDefaults(&c)
	return &c
}

// Load returns the configuration read from the YAML file at path with
// environment overrides applied. An empty path loads only defaults and
// the environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		err = yaml.Unmarshal(b, c)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	c.Address = getEnv(EnvAddress, c.Address)
	c.Key = getEnv(EnvKey, c.Key)
	c.DataDir = getEnv(EnvDataDir, c.DataDir)
	c.Weather.APIKey = getEnv(EnvOWMKey, c.Weather.APIKey)
	return c, c.Validate()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// Validate checks the configuration for values the band cannot use.
func (c *Config) Validate() error {
	var errs []error
	if c.Key != "" {
		if _, err := c.KeyBytes(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Offset != nil && (*c.Offset <= -instant.MaxOffset || *c.Offset >= instant.MaxOffset) {
		errs = append(errs, fmt.Errorf("offset out of range: %d", *c.Offset))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// KeyBytes returns the decoded authentication key.
func (c *Config) KeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	if len(key) != auth.KeySize {
		return nil, auth.ErrKeySize
	}
	return key, nil
}

// LocalOffset returns the configured UTC offset in 15 minute units,
// falling back to the system time zone's offset at t.
func (c *Config) LocalOffset(t time.Time) int {
	if c.Offset != nil {
		return *c.Offset
	}
	_, off := t.Zone()
	return int(time.Duration(off) * time.Second / instant.Resolution)
}

// Band returns the band configuration.
func (c *Config) Band() (band.Config, error) {
	cfg := band.Config{
		Offset:          c.LocalOffset(time.Now()),
		Place:           c.Weather.Place,
		AuthIdle:        c.Timeout.Auth,
		ChunkTimeout:    c.Timeout.Chunk,
		ResponseTimeout: c.Timeout.Response,
		PulseTimeout:    c.Timeout.Pulse,
		DataIdle:        c.Timeout.Data,
	}
	if c.Key == "" {
		return cfg, fmt.Errorf("no authentication key: set key in the config file or %s", EnvKey)
	}
	var err error
	cfg.Key, err = c.KeyBytes()
	return cfg, err
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
