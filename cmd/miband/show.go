// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kortschak/miband/activity"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/store"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored activity records",
	Long: `Lists the activity records held in the store for a time range. Output
is a coloured table on a terminal and CSV otherwise.

Examples:
  # Today's activity
  miband show

  # A day, with every minute including those without a record
  miband show --from 2024-03-01 --to 2024-03-02 --all

  # Selected columns as CSV
  miband show --fields time,steps,heart --csv`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

var (
	showFrom   string
	showTo     string
	showFields string
	showAll    bool
	showCSV    bool
)

func init() {
	showCmd.Flags().StringVar(&showFrom, "from", "", "start of the range (date or ISO-8601 time); defaults to the start of today")
	showCmd.Flags().StringVar(&showTo, "to", "", "end of the range (date or ISO-8601 time); defaults to now")
	showCmd.Flags().StringVar(&showFields, "fields", "", "comma separated columns: time, class, code, shake, steps, heart or all")
	showCmd.Flags().BoolVar(&showAll, "all", false, "include minutes without a record")
	showCmd.Flags().BoolVar(&showCSV, "csv", false, "output CSV even on a terminal")
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	now := time.Now()
	offset := cfg.LocalOffset(now)
	from := dayStart(now, offset)
	if showFrom != "" {
		from, err = parseWhen(showFrom, offset)
		if err != nil {
			return err
		}
	}
	to := instant.New(now, offset)
	if showTo != "" {
		to, err = parseWhen(showTo, offset)
		if err != nil {
			return err
		}
	}
	fields, err := activity.ParseFields(showFields)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DataDir, store.WithLogger(log))
	if err != nil {
		return err
	}
	from = from.Truncate(time.Minute)
	minutes := to.Sub(from)
	if minutes <= 0 {
		return fmt.Errorf("empty range: %s to %s", from, to)
	}
	raw, err := st.ReadRange(from, minutes)
	if err != nil {
		return err
	}
	rows := makeRows(activity.Decode(raw, &from, fields), from, showAll)
	if !showCSV && term.IsTerminal(int(os.Stdout.Fd())) {
		writeTable(os.Stdout, rows, fields)
		return nil
	}
	return writeCSV(os.Stdout, rows, fields)
}

// dayStart returns the start of the day holding t in the given offset.
func dayStart(t time.Time, offset int) instant.Instant {
	zone := time.FixedZone("", offset*int(instant.Resolution/time.Second))
	t = t.In(zone)
	return instant.New(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, zone), offset)
}

// row is a listed minute. The sample is nil for minutes without a record.
type row struct {
	time   instant.Instant
	sample *activity.Sample
}

func makeRows(samples []*activity.Sample, from instant.Instant, all bool) []row {
	rows := make([]row, 0, len(samples))
	for i, s := range samples {
		if s == nil && !all {
			continue
		}
		rows = append(rows, row{time: from.AddMinutes(i), sample: s})
	}
	return rows
}

var columns = []struct {
	field activity.Field
	name  string
	value func(*activity.Sample) string
}{
	{activity.FieldClass, "class", func(s *activity.Sample) string { return strings.ToLower(s.Class.String()) }},
	{activity.FieldCode, "code", func(s *activity.Sample) string { return fmt.Sprintf("%#02x", s.Code) }},
	{activity.FieldShake, "shake", func(s *activity.Sample) string { return strconv.Itoa(int(s.Shake)) }},
	{activity.FieldSteps, "steps", func(s *activity.Sample) string { return strconv.Itoa(int(s.Steps)) }},
	{activity.FieldHeart, "heart", func(s *activity.Sample) string {
		if !s.HasHeartRate {
			return ""
		}
		return strconv.Itoa(int(s.HeartRate))
	}},
}

func header(fields activity.Field) []string {
	var h []string
	if fields&activity.FieldTime != 0 {
		h = append(h, "time")
	}
	for _, c := range columns {
		if fields&c.field != 0 {
			h = append(h, c.name)
		}
	}
	return h
}

func record(r row, fields activity.Field) []string {
	var rec []string
	if fields&activity.FieldTime != 0 {
		rec = append(rec, r.time.String())
	}
	for _, c := range columns {
		if fields&c.field == 0 {
			continue
		}
		if r.sample == nil {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, c.value(r.sample))
	}
	return rec
}

func writeCSV(w io.Writer, rows []row, fields activity.Field) error {
	cw := csv.NewWriter(w)
	err := cw.Write(header(fields))
	if err != nil {
		return err
	}
	for _, r := range rows {
		err = cw.Write(record(r, fields))
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var classColors = map[activity.Class]*color.Color{
	activity.Walk:  color.New(color.FgGreen),
	activity.Rest:  color.New(color.FgYellow),
	activity.Sleep: color.New(color.FgBlue),
}

func writeTable(w io.Writer, rows []row, fields activity.Field) {
	h := header(fields)
	width := make([]int, len(h))
	for i, name := range h {
		width[i] = len(name)
	}
	recs := make([][]string, len(rows))
	for i, r := range rows {
		recs[i] = record(r, fields)
		for j, v := range recs[i] {
			width[j] = max(width[j], len(v))
		}
	}
	bold := color.New(color.Bold)
	for i, name := range h {
		bold.Fprintf(w, "%-*s  ", width[i], name)
	}
	fmt.Fprintln(w)
	plain := color.New(color.Reset)
	for i, rec := range recs {
		c := plain
		if s := rows[i].sample; s != nil {
			if cc, ok := classColors[s.Class]; ok {
				c = cc
			}
		}
		for j, v := range rec {
			c.Fprintf(w, "%-*s  ", width[j], v)
		}
		fmt.Fprintln(w)
	}
}
