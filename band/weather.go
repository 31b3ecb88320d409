// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package band

import (
	"context"
	"fmt"

	"github.com/kortschak/miband/chunked"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/weather"
)

// Weather payload kinds.
const (
	weatherForecast = 0x01
	weatherCurrent  = 0x02
	weatherTime     = 0x04
	weatherPlace    = 0x08
	weatherSunTimes = 0x10
)

// forecastDays is the forecast length field the band expects.
const forecastDays = 0x05

// SendPlace sets the weather place name.
func (b *Band) SendPlace(ctx context.Context, place string) error {
	return b.send(ctx, chunked.Weather, []byte{weatherPlace}, []byte(place), nul)
}

// SendTime sets the time of the weather report.
func (b *Band) SendTime(ctx context.Context, t instant.Instant) error {
	return b.send(ctx, chunked.Weather, []byte{weatherTime}, t.Epoch(true), []byte{0xff, 0xff, 0x00})
}

// SendForecast sends the daily forecasts for the report at t.
func (b *Band) SendForecast(ctx context.Context, t instant.Instant, days []weather.Day) error {
	parts := [][]byte{{weatherForecast}, t.Epoch(true), {forecastDays}}
	for _, d := range days {
		night := d.IconNight
		if night == 0 {
			night = d.Icon
		}
		parts = append(parts, []byte{byte(d.Icon), byte(night), byte(int8(d.Min)), byte(int8(d.Max))}, []byte(d.Summary), nul)
	}
	return b.send(ctx, chunked.Weather, parts...)
}

// SendCurrent sends the current conditions at t.
func (b *Band) SendCurrent(ctx context.Context, t instant.Instant, icon, temperature int, summary string) error {
	return b.send(ctx, chunked.Weather, []byte{weatherCurrent}, t.Epoch(true), []byte{byte(icon), byte(int8(temperature))}, []byte(summary), nul)
}

// SendSunTimes sends the sunrise and sunset times for the report at t.
func (b *Band) SendSunTimes(ctx context.Context, t, sunrise, sunset instant.Instant) error {
	return b.send(ctx, chunked.Weather, []byte{weatherSunTimes}, t.Epoch(true), sunrise.MustEncode("Hi"), sunset.MustEncode("Hi"))
}

// SendWeather sends a complete weather report: place, time, forecast,
// current conditions and sun times. A report without a place or offset
// uses the configured ones.
func (b *Band) SendWeather(ctx context.Context, r weather.Report) error {
	units := int(r.Offset / instant.Resolution)
	if units == 0 {
		units = b.cfg.Offset
	}
	t := instant.New(r.Time, units)
	place := r.Place
	if place == "" {
		place = b.cfg.Place
	}
	for _, step := range []struct {
		name string
		send func() error
	}{
		{"place", func() error { return b.SendPlace(ctx, place) }},
		{"time", func() error { return b.SendTime(ctx, t) }},
		{"forecast", func() error { return b.SendForecast(ctx, t, r.Forecast) }},
		{"current", func() error { return b.SendCurrent(ctx, t, r.Icon, r.Temperature, r.Summary) }},
		{"sun times", func() error {
			return b.SendSunTimes(ctx, t, instant.New(r.Sunrise, units), instant.New(r.Sunset, units))
		}},
	} {
		err := step.send()
		if err != nil {
			return fmt.Errorf("failed to send weather %s: %w", step.name, err)
		}
	}
	return nil
}
