// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/config"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/internal/hub"
	"github.com/kortschak/miband/store"
	"github.com/kortschak/miband/weather"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Synchronise periodically and export metrics and events",
	Long: `Stays connected to the band, synchronising activity into the store and
pushing the weather at the configured intervals. Prometheus metrics are
served at /metrics and a websocket stream of sync, weather and silent
mode events at /events.

Examples:
  miband serve
  miband serve --listen :9110 --watch-silent`,
	Args: cobra.NoArgs,
}

var (
	serveListen      string
	serveWatchSilent bool
)

func init() {
	serveCmd.RunE = withBand(runServe)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "address for the metrics and event endpoints; overrides the config file")
	serveCmd.Flags().BoolVar(&serveWatchSilent, "watch-silent", false, "report silent mode toggles on the band as events")
}

func runServe(ctx context.Context, s *session, _ []string) error {
	st, err := store.Open(s.cfg.DataDir, store.WithLogger(s.log))
	if err != nil {
		return err
	}
	addr := s.cfg.Serve.Listen
	if serveListen != "" {
		addr = serveListen
	}
	events := hub.New(s.log)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/events", events)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.WithField("addr", ln.Addr()).Info("serving metrics and events")

	svc := &service{
		band:   s.band,
		store:  st,
		events: events,
		log:    s.log,
	}
	if s.cfg.Weather.APIKey != "" {
		svc.weather = newWeatherProvider(s.cfg.Weather, s.log)
		svc.weatherCfg = s.cfg.Weather
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		events.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return every(ctx, s.cfg.Serve.Sync, svc.sync)
	})
	if svc.weather != nil {
		g.Go(func() error {
			return every(ctx, s.cfg.Serve.Weather, svc.pushWeather)
		})
	}
	if serveWatchSilent {
		g.Go(func() error {
			return s.band.WatchSilentMode(ctx, &svc.mu, func(on bool) bool {
				events.Broadcast(hub.Event{Type: "silent", Payload: map[string]bool{"on": on}})
				return true
			})
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// service holds the state of the periodic tasks of serve.
type service struct {
	// mu serialises band transfers between tasks.
	mu    sync.Mutex
	band  *band.Band
	store *store.Store

	weather    weather.Provider
	weatherCfg config.Weather

	events *hub.Hub
	log    logrus.FieldLogger
}

// sync runs an activity synchronisation and broadcasts its result.
// Failures are logged and reported as events without stopping the
// service.
func (s *service) sync(ctx context.Context) {
	s.mu.Lock()
	res, err := syncActivity(ctx, s.band, s.store, instant.Instant{}, s.log)
	s.mu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Error("failed to synchronise activity")
		s.events.Broadcast(hub.Event{Type: "error", Payload: map[string]string{"op": "sync", "error": err.Error()}})
		if res.Stored == 0 {
			return
		}
	}
	s.events.Broadcast(hub.Event{Type: "sync", Payload: res})
}

// pushWeather sends the weather to the band and broadcasts the report.
func (s *service) pushWeather(ctx context.Context) {
	s.mu.Lock()
	r, err := pushWeather(ctx, s.band, s.weather, s.weatherCfg)
	s.mu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Error("failed to push weather")
		s.events.Broadcast(hub.Event{Type: "error", Payload: map[string]string{"op": "weather", "error": err.Error()}})
		return
	}
	s.events.Broadcast(hub.Event{Type: "weather", Payload: r})
}

// every calls fn immediately and then at each interval until ctx is
// done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	if interval <= 0 {
		return errors.New("non-positive interval")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
