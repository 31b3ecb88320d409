// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/kortschak/miband/activity"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/store"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Draw a day of stored activity as a PNG",
	Long: `Draws a day of stored activity: steps as bars, heart rate as a line
and sleep as shading.

Examples:
  miband chart
  miband chart --day 2024-03-01 --out march1.png`,
	Args: cobra.NoArgs,
	RunE: runChart,
}

var (
	chartDay string
	chartOut string
)

func init() {
	chartCmd.Flags().StringVar(&chartDay, "day", "", "day to draw (YYYY-MM-DD); defaults to today")
	chartCmd.Flags().StringVar(&chartOut, "out", "", "output file; defaults to miband-<day>.png")
}

func runChart(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	now := time.Now()
	offset := cfg.LocalOffset(now)
	day := dayStart(now, offset)
	if chartDay != "" {
		t, err := parseWhen(chartDay, offset)
		if err != nil {
			return err
		}
		day = dayStart(t.Time(), offset)
	}
	st, err := store.Open(cfg.DataDir, store.WithLogger(log))
	if err != nil {
		return err
	}
	samples, err := st.ReadRecords(day, minutesPerDay, false)
	if err != nil {
		return err
	}
	out := chartOut
	if out == "" {
		out = fmt.Sprintf("miband-%s.png", day.Time().Format(time.DateOnly))
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	err = png.Encode(f, newDayChart(chartWidth).plot(day, samples))
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	log.WithField("file", out).Info("wrote chart")
	return f.Close()
}

const (
	minutesPerDay = 24 * 60

	chartWidth  = minutesPerDay / 2
	titleHeight = 24
	plotHeight  = 200
	axisHeight  = 24
)

var (
	stepColor  = color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff}
	heartColor = color.RGBA{R: 0xd0, G: 0x20, B: 0x20, A: 0xff}
	sleepColor = color.RGBA{R: 0xd8, G: 0xe4, B: 0xf8, A: 0xff}
	textColor  = color.RGBA{A: 0xff}
)

// dayChart draws a day of activity.
type dayChart struct {
	img   *image.RGBA
	title draw.Image
	area  draw.Image
	axis  draw.Image
}

func newDayChart(width int) *dayChart {
	img := image.NewRGBA(image.Rect(0, 0, width, titleHeight+plotHeight+axisHeight))
	return &dayChart{
		img:   img,
		title: subDrawImage(img, image.Rect(0, 0, width, titleHeight)),
		area:  subDrawImage(img, image.Rect(0, titleHeight, width, titleHeight+plotHeight)),
		axis:  subDrawImage(img, image.Rect(0, titleHeight+plotHeight, width, titleHeight+plotHeight+axisHeight)),
	}
}

// column is the summary of the minutes drawn in one pixel column.
type column struct {
	steps  int
	heart  int
	nHeart int
	sleep  bool
}

func (c column) meanHeart() (int, bool) {
	if c.nHeart == 0 {
		return 0, false
	}
	return c.heart / c.nHeart, true
}

// summarise collects samples, one per minute of a day, into n columns.
func summarise(samples []*activity.Sample, n int) []column {
	cols := make([]column, n)
	per := max(1, (minutesPerDay+n-1)/n)
	for i, s := range samples {
		if s == nil || i/per >= n {
			continue
		}
		c := &cols[i/per]
		c.steps += int(s.Steps)
		if s.HasHeartRate {
			c.heart += int(s.HeartRate)
			c.nHeart++
		}
		c.sleep = c.sleep || s.Class == activity.Sleep
	}
	return cols
}

// plot draws the samples of the day starting at day and returns the image.
func (c *dayChart) plot(day instant.Instant, samples []*activity.Sample) *image.RGBA {
	fill(c.img, color.White)
	width := c.img.Bounds().Dx()
	cols := summarise(samples, width)

	var total, maxSteps int
	minHeart, maxHeart := 0xff, 0
	for _, col := range cols {
		total += col.steps
		maxSteps = max(maxSteps, col.steps)
		if hr, ok := col.meanHeart(); ok {
			minHeart = min(minHeart, hr)
			maxHeart = max(maxHeart, hr)
		}
	}

	c.writeTitle(fmt.Sprintf("%s  %d steps", day.Time().Format("Mon 2 Jan 2006"), total))

	height := c.area.Bounds().Dy()
	for x, col := range cols {
		if col.sleep {
			line(c.area, x, 0, x, height-1, sleepColor)
		}
		if col.steps != 0 {
			line(c.area, x, scale(col.steps, 0, maxSteps, 1, height), x, height-1, stepColor)
		}
	}
	const minHeartRange = 20
	prevX, prevY := -1, 0
	for x, col := range cols {
		hr, ok := col.meanHeart()
		if !ok {
			prevX = -1
			continue
		}
		y := scale(hr, minHeart, maxHeart, minHeartRange, height)
		if prevX >= 0 {
			line(c.area, prevX, prevY, x, y, heartColor)
		} else {
			c.area.Set(x, y, heartColor)
		}
		prevX, prevY = x, y
	}

	c.drawAxis(width)
	return c.img
}

func (c *dayChart) writeTitle(text string) {
	font := &freesans.Regular9pt7b
	tinyfont.WriteLine(displayShim{c.title}, font, 4, int16(font.YAdvance)-4, text, textColor)
}

// drawAxis draws hour ticks and labels every three hours.
func (c *dayChart) drawAxis(width int) {
	font := &freesans.Regular9pt7b
	line(c.axis, 0, 0, width-1, 0, textColor)
	for h := 0; h <= 24; h += 3 {
		x := min(h*width/24, width-1)
		line(c.axis, x, 0, x, 4, textColor)
		label := fmt.Sprintf("%02d", h%24)
		_, w := tinyfont.LineWidth(font, label)
		lx := min(max(x-int(w)/2, 0), width-int(w))
		tinyfont.WriteLine(displayShim{c.axis}, font, int16(lx), int16(font.YAdvance)-2, label, textColor)
	}
}
