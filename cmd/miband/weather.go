// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/config"
	"github.com/kortschak/miband/weather"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Send the local weather to the band",
	Long: `Fetches the weather for the configured location from OpenWeatherMap
and sends it to the band. The API key is read from the config file or
` + config.EnvOWMKey + `.

Examples:
  miband weather
  miband weather --lat 51.5 --lon -0.12 --place London`,
	Args: cobra.NoArgs,
}

var (
	weatherLat   float64
	weatherLon   float64
	weatherPlace string
)

func init() {
	weatherCmd.RunE = withBand(runWeather)
	weatherCmd.Flags().Float64Var(&weatherLat, "lat", 0, "latitude; overrides the config file")
	weatherCmd.Flags().Float64Var(&weatherLon, "lon", 0, "longitude; overrides the config file")
	weatherCmd.Flags().StringVar(&weatherPlace, "place", "", "place name shown on the band; overrides the config file")
}

func runWeather(ctx context.Context, s *session, _ []string) error {
	cfg := s.cfg.Weather
	if weatherCmd.Flags().Changed("lat") {
		cfg.Latitude = weatherLat
	}
	if weatherCmd.Flags().Changed("lon") {
		cfg.Longitude = weatherLon
	}
	if weatherPlace != "" {
		cfg.Place = weatherPlace
	}
	r, err := pushWeather(ctx, s.band, newWeatherProvider(cfg, s.log), cfg)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d° %s\n", r.Place, r.Temperature, r.Summary)
	return nil
}

func newWeatherProvider(cfg config.Weather, log logrus.FieldLogger) *weather.OpenWeatherMap {
	return &weather.OpenWeatherMap{
		APIKey: cfg.APIKey,
		Lang:   cfg.Language,
		Units:  cfg.Units,
		Place:  cfg.Place,
		Log:    log,
	}
}

// pushWeather fetches the weather at the configured location from p and
// sends it to the band.
func pushWeather(ctx context.Context, b *band.Band, p weather.Provider, cfg config.Weather) (weather.Report, error) {
	if owm, ok := p.(*weather.OpenWeatherMap); ok && owm.APIKey == "" {
		return weather.Report{}, fmt.Errorf("no weather API key: set weather.api_key in the config file or %s", config.EnvOWMKey)
	}
	r, err := p.Weather(ctx, cfg.Latitude, cfg.Longitude)
	if err != nil {
		return r, fmt.Errorf("failed to get weather: %w", err)
	}
	if r.Place == "" {
		r.Place = cfg.Place
	}
	err = b.SendWeather(ctx, r)
	if err != nil {
		return r, fmt.Errorf("failed to send weather: %w", err)
	}
	return r, nil
}
