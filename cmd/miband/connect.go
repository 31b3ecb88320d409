// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/config"
	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/internal/forkbeard"
)

// setup loads the configuration, applies the global flags and returns
// the logger.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if _, err := logrus.ParseLevel(level); err != nil {
			return nil, nil, fmt.Errorf("invalid log level: %s", level)
		}
		cfg.LogLevel = level
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Address = addr
	}
	// All arguments validated; don't show usage on runtime errors.
	cmd.SilenceUsage = true
	return cfg, cfg.NewLogger(), nil
}

// connection is an authenticated band connection.
type connection struct {
	*band.Band
	transport *forkbeard.Transport
}

// connect finds the configured band, opens a link to it and
// authenticates.
func connect(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*connection, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("no band address: set address in the config file, %s or --addr", config.EnvAddress)
	}
	bandCfg, err := cfg.Band()
	if err != nil {
		return nil, err
	}
	addr, err := forkbeard.ParseAddress(cfg.Address)
	if err != nil {
		return nil, err
	}
	adapter := bluetooth.DefaultAdapter
	err = adapter.Enable()
	if err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	dev, err := forkbeard.Discover(ctx, adapter, addr, cfg.Timeout.Scan, log)
	if err != nil {
		return nil, err
	}
	t := forkbeard.NewTransport(dev, log)

	openCtx, cancel := context.WithTimeout(ctx, cfg.Timeout.Connect)
	defer cancel()
	link, err := gatt.Open(openCtx, t, gatt.WithLogger(log))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open link: %w", err), t.Close())
	}
	b := band.New(link, bandCfg, log)
	err = b.Authenticate(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to authenticate: %w", err), t.Close())
	}
	log.WithField("address", cfg.Address).Info("connected")
	return &connection{Band: b, transport: t}, nil
}

// Close disconnects from the band.
func (c *connection) Close() error {
	return c.transport.Close()
}

// session is the state passed to commands that talk to the band.
type session struct {
	cfg  *config.Config
	log  *logrus.Logger
	band *band.Band
}

// withBand returns a cobra run function that connects to the band
// before calling run and disconnects afterwards.
func withBand(run func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		conn, err := connect(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := conn.Close(); err != nil {
				log.WithError(err).Warn("failed to disconnect")
			}
		}()
		return run(ctx, &session{cfg: cfg, log: log, band: conn.Band}, args)
	}
}

// parseWhen parses an ISO-8601 date-time or a date. Times without a zone
// use the configured offset.
func parseWhen(s string, offset int) (instant.Instant, error) {
	zone := time.FixedZone("", offset*int(instant.Resolution/time.Second))
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04", "2006-01-02 15:04"} {
		t, err := time.ParseInLocation(layout, s, zone)
		if err == nil {
			return instant.New(t, offset), nil
		}
	}
	return instant.Parse(s)
}
