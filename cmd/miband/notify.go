// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kortschak/miband/band"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Show alerts on the band",
	Long: `Shows messages, calls, alarms and calendar reminders on the band.

Examples:
  miband notify message "Dinner is ready" --app Chat --from Sam
  miband notify call "Sam"
  miband notify missed "Sam"
  miband notify alarm
  miband notify vibrate
  miband notify event --slot 1 --at "2024-03-01 09:30" --repeat weekly "Stand-up"`,
}

var (
	notifyApp  string
	notifyFrom string

	eventSlot   int
	eventAt     string
	eventRepeat string
	eventDelete bool
)

func init() {
	messageCmd := &cobra.Command{
		Use:   "message TEXT",
		Short: "Show a message",
		Args:  cobra.ExactArgs(1),
		RunE: withBand(func(ctx context.Context, s *session, args []string) error {
			return s.band.SendMessage(ctx, args[0], notifyApp, notifyFrom)
		}),
	}
	messageCmd.Flags().StringVar(&notifyApp, "app", "", "name of the sending app")
	messageCmd.Flags().StringVar(&notifyFrom, "from", "", "sender; only shown with --app")

	callCmd := &cobra.Command{
		Use:   "call [NAME]",
		Short: "Announce a call and report whether it was accepted",
		Args:  cobra.MaximumNArgs(1),
		RunE: withBand(func(ctx context.Context, s *session, args []string) error {
			accepted, err := s.band.SendCall(ctx, strings.Join(args, ""))
			if err != nil {
				return err
			}
			if accepted {
				fmt.Println("accepted")
			} else {
				fmt.Println("declined")
			}
			return nil
		}),
	}

	missedCmd := &cobra.Command{
		Use:   "missed NAME",
		Short: "Show a missed call",
		Args:  cobra.ExactArgs(1),
		RunE: withBand(func(ctx context.Context, s *session, args []string) error {
			return s.band.SendMissedCall(ctx, args[0])
		}),
	}

	alarmCmd := &cobra.Command{
		Use:   "alarm",
		Short: "Trigger the alarm alert",
		Args:  cobra.NoArgs,
		RunE: withBand(func(ctx context.Context, s *session, _ []string) error {
			return s.band.SendAlarm(ctx)
		}),
	}

	alertCmd := &cobra.Command{
		Use:   "weather-alert HEADING TEXT",
		Short: "Show a weather warning",
		Args:  cobra.ExactArgs(2),
		RunE: withBand(func(ctx context.Context, s *session, args []string) error {
			return s.band.SendWeatherAlert(ctx, args[0], args[1])
		}),
	}

	vibrateCmd := &cobra.Command{
		Use:   "vibrate",
		Short: "Make the band vibrate",
		Args:  cobra.NoArgs,
		RunE: withBand(func(ctx context.Context, s *session, _ []string) error {
			return s.band.Vibrate(ctx)
		}),
	}

	eventCmd := &cobra.Command{
		Use:   "event [TITLE]",
		Short: "Set or delete a calendar reminder",
		Args:  cobra.MaximumNArgs(1),
		RunE:  withBand(runEvent),
	}
	eventCmd.Flags().IntVar(&eventSlot, "slot", 0, "reminder slot")
	eventCmd.Flags().StringVar(&eventAt, "at", "", "reminder time (date or ISO-8601 time)")
	eventCmd.Flags().StringVar(&eventRepeat, "repeat", "once", "repetition: once, weekly, monthly, yearly or a list of days such as mon,wed,fri")
	eventCmd.Flags().BoolVar(&eventDelete, "delete", false, "delete the reminder in the slot")

	notifyCmd.AddCommand(messageCmd, callCmd, missedCmd, alarmCmd, alertCmd, vibrateCmd, eventCmd)
}

func runEvent(ctx context.Context, s *session, args []string) error {
	if eventDelete {
		return s.band.DeleteEvent(ctx, eventSlot)
	}
	if len(args) == 0 || eventAt == "" {
		return fmt.Errorf("an event needs a title and --at")
	}
	at, err := parseWhen(eventAt, s.band.Config().Offset)
	if err != nil {
		return err
	}
	repeat, err := parseRepeat(eventRepeat)
	if err != nil {
		return err
	}
	return s.band.SetEvent(ctx, band.Event{Slot: eventSlot, Time: at, Title: args[0], Repeat: repeat})
}

func parseRepeat(s string) (band.Repeat, error) {
	switch strings.ToLower(s) {
	case "", "once":
		return band.Once, nil
	case "weekly":
		return band.Weekly, nil
	case "monthly":
		return band.Monthly, nil
	case "yearly":
		return band.Yearly, nil
	}
	days, err := parseDays(s)
	if err != nil {
		return 0, err
	}
	return band.RepeatOn(days), nil
}

var dayNames = map[string]band.Days{
	"mon":      band.Monday,
	"tue":      band.Tuesday,
	"wed":      band.Wednesday,
	"thu":      band.Thursday,
	"fri":      band.Friday,
	"sat":      band.Saturday,
	"sun":      band.Sunday,
	"weekdays": band.Weekdays,
	"weekend":  band.Weekend,
	"daily":    band.Daily,
}

// parseDays parses a comma separated list of day names.
func parseDays(s string) (band.Days, error) {
	var days band.Days
	if s == "" {
		return 0, nil
	}
	for _, name := range strings.Split(strings.ToLower(s), ",") {
		d, ok := dayNames[strings.TrimSpace(name)]
		if !ok {
			return 0, fmt.Errorf("unknown day: %q", name)
		}
		days |= d
	}
	return days, nil
}
