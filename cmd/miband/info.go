// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/battery"
	"github.com/kortschak/miband/instant"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the band's identity, battery and step totals",
	Long: `Shows the band's identity, clock, battery status and the day's
step, distance and energy totals.

Examples:
  miband info
  miband info --json`,
	Args: cobra.NoArgs,
	RunE: withBand(runInfo),
}

var infoJSON bool

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Output as JSON")
}

func runInfo(ctx context.Context, s *session, _ []string) error {
	info, err := s.band.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read device information: %w", err)
	}
	now, err := s.band.LocalTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to read band time: %w", err)
	}
	bat, err := s.band.Battery(ctx)
	if err != nil {
		return fmt.Errorf("failed to read battery: %w", err)
	}
	totals, err := s.band.Steps(ctx)
	if err != nil {
		return fmt.Errorf("failed to read steps: %w", err)
	}
	om := infoFields(info, now, bat, totals)
	if infoJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(om)
	}
	writeFields(os.Stdout, om)
	return nil
}

// infoFields returns the band's state in display order.
func infoFields(info band.DeviceInfo, now instant.Instant, bat battery.Status, totals band.Totals) *orderedmap.OrderedMap[string, any] {
	om := orderedmap.New[string, any]()
	om.Set("software_revision", info.SoftwareRevision)
	om.Set("hardware_revision", info.HardwareRevision)
	om.Set("serial_number", info.SerialNumber)
	om.Set("system_id", info.SystemID)
	om.Set("pnp_id", info.PnPID)
	om.Set("time", now.String())
	om.Set("battery", bat.Level)
	om.Set("charging", bat.Charging)
	om.Set("last_charge", chargeString(bat.LastCharge))
	om.Set("last_full_charge", chargeString(bat.LastFullCharge))
	om.Set("steps", totals.Steps)
	om.Set("meters", totals.Meters)
	om.Set("kcal", totals.Calories)
	return om
}

func chargeString(c battery.Charge) string {
	if c.Time.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%d%%)", c.Time, c.Level)
}

// writeFields writes one key value pair per line. Keys are coloured
// unless colour output is disabled.
func writeFields(w io.Writer, om *orderedmap.OrderedMap[string, any]) {
	key := color.New(color.FgCyan)
	width := 0
	for p := om.Oldest(); p != nil; p = p.Next() {
		width = max(width, len(p.Key)+1)
	}
	for p := om.Oldest(); p != nil; p = p.Next() {
		key.Fprintf(w, "%-*s", width+1, p.Key+":")
		fmt.Fprintln(w, p.Value)
	}
}
