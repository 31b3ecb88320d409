// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package band_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/internal/gatttest"
)

func TestSettings(t *testing.T) {
	day := &band.Period{Start: band.Clock{Hour: 8}, End: band.Clock{Hour: 22, Minute: 30}}
	work := &band.Period{Start: band.Clock{Hour: 8}, End: band.Clock{Hour: 20}}
	lunch := &band.Period{Start: band.Clock{Hour: 12}, End: band.Clock{Hour: 13}}
	night := &band.Period{Start: band.Clock{Hour: 22}, End: band.Clock{Hour: 7}}

	tests := []struct {
		name string
		set  func(context.Context, *band.Band) error
		ch   gatt.Channel
		want []byte
	}{
		{
			name: "24h",
			set:  func(ctx context.Context, b *band.Band) error { return b.Set24h(ctx, true) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x02, 0x00, 0x01},
		},
		{
			name: "metric",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetImperialUnits(ctx, false) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x03, 0x00, 0x00},
		},
		{
			name: "date_format",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetDateFormat(ctx, "dd.MM.yyyy") },
			ch:   gatt.Configuration,
			want: join([]byte{0x06, 0x1e, 0x00}, []byte("dd.MM.yyyy"), []byte{0x00}),
		},
		{
			name: "locale",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetLocale(ctx, "de_DE") },
			ch:   gatt.Configuration,
			want: join([]byte{0x06, 0x17, 0x00}, []byte("de_DE")),
		},
		{
			name: "screen_lock",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetScreenLock(ctx, true) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x16, 0x00, 0x01},
		},
		{
			name: "hidden",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetVisibility(ctx, false) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x01, 0x00, 0x00},
		},
		{
			name: "nearby_pulse",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetNearbyPulseRead(ctx, true) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x1f, 0x00, 0x01},
		},
		{
			name: "no_new_pairing",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetDisableNewPairing(ctx, true) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x20, 0x00, 0x01},
		},
		{
			name: "goal_vibrate",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetGoalVibrate(ctx, true) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x06, 0x00, 0x01},
		},
		{
			name: "silent",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetSilentMode(ctx, true) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x19, 0x00, 0x01},
		},
		{
			name: "lift_always",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetDisplayOnLift(ctx, true, nil) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x05, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name: "lift_period",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetDisplayOnLift(ctx, false, day) },
			ch:   gatt.Configuration,
			want: []byte{0x06, 0x05, 0x00, 0x01, 0x08, 0x00, 0x16, 0x1e},
		},
		{
			name: "daily_goal",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetDailyGoal(ctx, 8000) },
			ch:   gatt.UserSettings,
			want: []byte{0x10, 0x00, 0x00, 0x40, 0x1f, 0x00, 0x00},
		},
		{
			name: "user",
			set: func(ctx context.Context, b *band.Band) error {
				return b.SetUserInfo(ctx, band.User{
					Birthday: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC),
					Female:   true,
					Height:   170,
					Weight:   65.5,
					ID:       42,
				})
			},
			ch:   gatt.UserSettings,
			want: []byte{0x4f, 0x00, 0x00, 0xc6, 0x07, 0x06, 0x0f, 0x01, 0xaa, 0x00, 0x2c, 0x33, 0x2a, 0x00, 0x00, 0x00},
		},
		{
			name: "right_wrist",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetWearingSide(ctx, true) },
			ch:   gatt.UserSettings,
			want: []byte{0x20, 0x00, 0x00, 0x82},
		},
		{
			name: "left_wrist",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetWearingSide(ctx, false) },
			ch:   gatt.UserSettings,
			want: []byte{0x20, 0x00, 0x00, 0x02},
		},
		{
			name: "alarm_weekdays",
			set: func(ctx context.Context, b *band.Band) error {
				return b.SetAlarm(ctx, band.Alarm{Slot: 1, Time: band.Clock{Hour: 7, Minute: 30}, Days: band.Weekdays})
			},
			ch:   gatt.Configuration,
			want: []byte{0x02, 0xc1, 0x07, 0x1e, 0x1f},
		},
		{
			name: "alarm_once_snooze",
			set: func(ctx context.Context, b *band.Band) error {
				return b.SetAlarm(ctx, band.Alarm{Time: band.Clock{Hour: 6}, Snooze: true})
			},
			ch:   gatt.Configuration,
			want: []byte{0x02, 0x80, 0x06, 0x00, 0x80},
		},
		{
			name: "delete_alarm",
			set:  func(ctx context.Context, b *band.Band) error { return b.DeleteAlarm(ctx, 2) },
			ch:   gatt.Configuration,
			want: []byte{0x02, 0x02, 0x00, 0x00, 0x80},
		},
		{
			name: "inactivity_pause",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetInactivityWarning(ctx, work, lunch) },
			ch:   gatt.Configuration,
			want: []byte{0x08, 0x01, 0x3c, 0x00, 0x08, 0x00, 0x0c, 0x00, 0x0d, 0x00, 0x14, 0x00},
		},
		{
			name: "inactivity_no_pause",
			set: func(ctx context.Context, b *band.Band) error {
				return b.SetInactivityWarning(ctx, &band.Period{Start: band.Clock{Hour: 9}, End: band.Clock{Hour: 17}}, nil)
			},
			ch:   gatt.Configuration,
			want: []byte{0x08, 0x01, 0x3c, 0x00, 0x09, 0x00, 0x11, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name: "inactivity_off",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetInactivityWarning(ctx, nil, nil) },
			ch:   gatt.Configuration,
			want: []byte{0x08, 0x00, 0x3c, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name: "night_off",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetNightMode(ctx, band.NightMode{}) },
			ch:   gatt.Configuration,
			want: []byte{0x1a, 0x00},
		},
		{
			name: "night_sunset",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetNightMode(ctx, band.NightMode{Sunset: true}) },
			ch:   gatt.Configuration,
			want: []byte{0x1a, 0x02},
		},
		{
			name: "night_period",
			set: func(ctx context.Context, b *band.Band) error {
				return b.SetNightMode(ctx, band.NightMode{Sunset: true, Period: night})
			},
			ch:   gatt.Configuration,
			want: []byte{0x1a, 0x01, 0x16, 0x00, 0x07, 0x00},
		},
		{
			name: "menu",
			set:  func(ctx context.Context, b *band.Band) error { return b.SetMenu(ctx, "CM") },
			ch:   gatt.Configuration,
			want: []byte{0x0a, 0x11, 0x30, 0x00, 0x02, 0x03, 0x04, 0x01, 0x05, 0x06, 0x07},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dev := gatttest.New()
			err := test.set(context.Background(), newBand(dev))
			require.NoError(t, err)
			writes := dev.Writes()
			require.Len(t, writes, 1)
			assert.Equal(t, test.ch, writes[0].Channel)
			assert.Equal(t, test.want, writes[0].Data)
		})
	}
}

func TestSettingsRange(t *testing.T) {
	ctx := context.Background()
	dev := gatttest.New()
	b := newBand(dev)

	assert.Error(t, b.SetAlarm(ctx, band.Alarm{Slot: 10}))
	assert.Error(t, b.DeleteAlarm(ctx, -1))
	assert.Error(t, b.SetDailyGoal(ctx, 1<<16))
	assert.Error(t, b.SetUserInfo(ctx, band.User{Height: 170, Weight: 400}))
	assert.Empty(t, dev.Writes())
}

func TestMenuOrder(t *testing.T) {
	tests := []struct {
		order     string
		mask      byte
		positions []byte
	}{
		{order: "CM", mask: 0x11, positions: []byte{0, 2, 3, 4, 1, 5, 6, 7}},
		{order: "NWH", mask: 0x47, positions: []byte{0, 1, 2, 4, 5, 6, 3, 7}},
		{order: "MCN", mask: 0x13, positions: []byte{0, 1, 3, 4, 2, 5, 6, 7}},
		{order: "Cn", mask: 0x01, positions: []byte{0, 1, 2, 3, 4, 5, 6, 7}},
	}
	for _, test := range tests {
		t.Run(test.order, func(t *testing.T) {
			mask, positions := band.MenuOrder(test.order)
			assert.Equal(t, test.mask, mask, "mask %08b", mask)
			assert.Equal(t, test.positions, positions)
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := band.ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, band.Clock{Hour: 7, Minute: 5}, c)
	assert.Equal(t, "07:05", c.String())

	_, err = band.ParseClock("7 o'clock")
	assert.Error(t, err)
}

func TestDayOf(t *testing.T) {
	assert.Equal(t, band.Monday, band.DayOf(time.Monday))
	assert.Equal(t, band.Friday, band.DayOf(time.Friday))
	assert.Equal(t, band.Sunday, band.DayOf(time.Sunday))
}
