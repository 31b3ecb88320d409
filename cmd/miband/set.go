// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kortschak/miband/band"
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change band settings",
	Long: `Changes the band settings given as flags. Settings not given are left
unchanged.

Periods are given as HH:MM-HH:MM. Days are a comma separated list of
mon, tue, wed, thu, fri, sat, sun, weekdays, weekend or daily.

Examples:
  miband set --24h --goal 8000 --wear right
  miband set --menu CHWSN --lift 07:00-22:00
  miband set --alarm 0=06:45 --alarm-days weekdays --alarm-snooze
  miband set --inactivity 09:00-18:00 --inactivity-pause 12:00-13:00
  miband set --birthday 1990-05-04 --height 172 --weight 68.5`,
	Args: cobra.NoArgs,
}

var opts struct {
	clock24h     bool
	imperial     bool
	dateFormat   string
	locale       string
	screenLock   bool
	visible      bool
	nearbyPulse  bool
	noNewPairing bool
	goalVibrate  bool
	silent       bool
	lift         string
	goal         int
	wear         string
	menu         string

	alarm       string
	alarmDays   string
	alarmSnooze bool
	deleteAlarm int

	inactivity      string
	inactivityPause string
	night           string

	birthday string
	female   bool
	height   int
	weight   float64
	userID   uint32
}

// setting applies the band setting named by a flag.
type setting struct {
	flag  string
	apply func(ctx context.Context, b *band.Band) error
}

var settings = []setting{
	{"24h", func(ctx context.Context, b *band.Band) error { return b.Set24h(ctx, opts.clock24h) }},
	{"imperial", func(ctx context.Context, b *band.Band) error { return b.SetImperialUnits(ctx, opts.imperial) }},
	{"date-format", func(ctx context.Context, b *band.Band) error { return b.SetDateFormat(ctx, opts.dateFormat) }},
	{"locale", func(ctx context.Context, b *band.Band) error { return b.SetLocale(ctx, opts.locale) }},
	{"screen-lock", func(ctx context.Context, b *band.Band) error { return b.SetScreenLock(ctx, opts.screenLock) }},
	{"visible", func(ctx context.Context, b *band.Band) error { return b.SetVisibility(ctx, opts.visible) }},
	{"nearby-pulse", func(ctx context.Context, b *band.Band) error { return b.SetNearbyPulseRead(ctx, opts.nearbyPulse) }},
	{"no-new-pairing", func(ctx context.Context, b *band.Band) error { return b.SetDisableNewPairing(ctx, opts.noNewPairing) }},
	{"goal-vibrate", func(ctx context.Context, b *band.Band) error { return b.SetGoalVibrate(ctx, opts.goalVibrate) }},
	{"silent", func(ctx context.Context, b *band.Band) error { return b.SetSilentMode(ctx, opts.silent) }},
	{"lift", func(ctx context.Context, b *band.Band) error {
		on, p, err := parseSwitch(opts.lift)
		if err != nil {
			return err
		}
		return b.SetDisplayOnLift(ctx, on, p)
	}},
	{"goal", func(ctx context.Context, b *band.Band) error { return b.SetDailyGoal(ctx, opts.goal) }},
	{"wear", func(ctx context.Context, b *band.Band) error {
		switch opts.wear {
		case "left":
			return b.SetWearingSide(ctx, false)
		case "right":
			return b.SetWearingSide(ctx, true)
		default:
			return fmt.Errorf("invalid wearing side: %q", opts.wear)
		}
	}},
	{"menu", func(ctx context.Context, b *band.Band) error { return b.SetMenu(ctx, opts.menu) }},
	{"alarm", func(ctx context.Context, b *band.Band) error {
		a, err := parseAlarm(opts.alarm, opts.alarmDays, opts.alarmSnooze)
		if err != nil {
			return err
		}
		return b.SetAlarm(ctx, a)
	}},
	{"delete-alarm", func(ctx context.Context, b *band.Band) error { return b.DeleteAlarm(ctx, opts.deleteAlarm) }},
	{"inactivity", func(ctx context.Context, b *band.Band) error {
		on, active, err := parseSwitch(opts.inactivity)
		if err != nil {
			return err
		}
		if !on {
			return b.SetInactivityWarning(ctx, nil, nil)
		}
		if active == nil {
			active = &band.Period{End: band.Clock{Hour: 23, Minute: 59}}
		}
		var pause *band.Period
		if opts.inactivityPause != "" {
			pause, err = parsePeriod(opts.inactivityPause)
			if err != nil {
				return err
			}
		}
		return b.SetInactivityWarning(ctx, active, pause)
	}},
	{"night", func(ctx context.Context, b *band.Band) error {
		if opts.night == "sunset" {
			return b.SetNightMode(ctx, band.NightMode{Sunset: true})
		}
		_, p, err := parseSwitch(opts.night)
		if err != nil {
			return err
		}
		return b.SetNightMode(ctx, band.NightMode{Period: p})
	}},
	{"birthday", setUser},
}

func init() {
	setCmd.RunE = withBand(runSet)
	f := setCmd.Flags()
	f.BoolVar(&opts.clock24h, "24h", false, "use a 24 hour clock")
	f.BoolVar(&opts.imperial, "imperial", false, "use imperial units")
	f.StringVar(&opts.dateFormat, "date-format", "", "date format, for example dd.MM.yyyy")
	f.StringVar(&opts.locale, "locale", "", "language, for example en_US")
	f.BoolVar(&opts.screenLock, "screen-lock", false, "require unlocking after the screen turns off")
	f.BoolVar(&opts.visible, "visible", false, "make the band discoverable")
	f.BoolVar(&opts.nearbyPulse, "nearby-pulse", false, "allow nearby devices to read the heart rate")
	f.BoolVar(&opts.noNewPairing, "no-new-pairing", false, "refuse new pairing requests")
	f.BoolVar(&opts.goalVibrate, "goal-vibrate", false, "vibrate when the daily goal is reached")
	f.BoolVar(&opts.silent, "silent", false, "silent mode")
	f.StringVar(&opts.lift, "lift", "", "turn the display on when the wrist is lifted: on, off or a period")
	f.IntVar(&opts.goal, "goal", 0, "daily step goal")
	f.StringVar(&opts.wear, "wear", "", "wrist the band is worn on: left or right")
	f.StringVar(&opts.menu, "menu", "", "menu order as item letters from CNWEMSHT; lower case positions an item without showing it")
	f.StringVar(&opts.alarm, "alarm", "", "set an alarm as SLOT=HH:MM")
	f.StringVar(&opts.alarmDays, "alarm-days", "", "days the alarm repeats on; a single alarm if empty")
	f.BoolVar(&opts.alarmSnooze, "alarm-snooze", false, "allow the alarm to be snoozed")
	f.IntVar(&opts.deleteAlarm, "delete-alarm", 0, "delete the alarm in the slot")
	f.StringVar(&opts.inactivity, "inactivity", "", "inactivity warning: on, off or an active period")
	f.StringVar(&opts.inactivityPause, "inactivity-pause", "", "period within the active period without warnings")
	f.StringVar(&opts.night, "night", "", "night mode: sunset, off or a period")
	f.StringVar(&opts.birthday, "birthday", "", "wearer's birthday (YYYY-MM-DD)")
	f.BoolVar(&opts.female, "female", false, "wearer is female")
	f.IntVar(&opts.height, "height", 0, "wearer's height in cm")
	f.Float64Var(&opts.weight, "weight", 0, "wearer's weight in kg")
	f.Uint32Var(&opts.userID, "user-id", 0, "wearer's user ID")
	setCmd.MarkFlagsRequiredTogether("birthday", "height", "weight")
}

func runSet(ctx context.Context, s *session, _ []string) error {
	var n int
	for _, st := range settings {
		if !setCmd.Flags().Changed(st.flag) {
			continue
		}
		err := st.apply(ctx, s.band)
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", st.flag, err)
		}
		s.log.WithField("setting", st.flag).Debug("applied setting")
		n++
	}
	if n == 0 {
		return fmt.Errorf("no settings given")
	}
	return nil
}

func setUser(ctx context.Context, b *band.Band) error {
	birthday, err := time.Parse(time.DateOnly, opts.birthday)
	if err != nil {
		return fmt.Errorf("invalid birthday: %w", err)
	}
	return b.SetUserInfo(ctx, band.User{
		Birthday: birthday,
		Female:   opts.female,
		Height:   opts.height,
		Weight:   opts.weight,
		ID:       opts.userID,
	})
}

// parsePeriod parses a period in HH:MM-HH:MM form.
func parsePeriod(s string) (*band.Period, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("invalid period %q: want HH:MM-HH:MM", s)
	}
	var (
		p   band.Period
		err error
	)
	p.Start, err = band.ParseClock(strings.TrimSpace(start))
	if err != nil {
		return nil, err
	}
	p.End, err = band.ParseClock(strings.TrimSpace(end))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// parseSwitch parses on, off or a period. A period implies on.
func parseSwitch(s string) (on bool, p *band.Period, err error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil, nil
	case "off":
		return false, nil, nil
	}
	p, err = parsePeriod(s)
	return err == nil, p, err
}

// parseAlarm parses an alarm in SLOT=HH:MM form.
func parseAlarm(s, days string, snooze bool) (band.Alarm, error) {
	slot, clock, ok := strings.Cut(s, "=")
	if !ok {
		return band.Alarm{}, fmt.Errorf("invalid alarm %q: want SLOT=HH:MM", s)
	}
	n, err := strconv.Atoi(slot)
	if err != nil {
		return band.Alarm{}, fmt.Errorf("invalid alarm slot %q: %w", slot, err)
	}
	t, err := band.ParseClock(clock)
	if err != nil {
		return band.Alarm{}, err
	}
	d, err := parseDays(days)
	if err != nil {
		return band.Alarm{}, err
	}
	return band.Alarm{Slot: n, Time: t, Days: d, Snooze: snooze}, nil
}
