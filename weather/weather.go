// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package weather provides weather reports in the form the band displays.
package weather

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Report is a weather report for a place.
type Report struct {
	Place string
	// Time is the observation time.
	Time time.Time
	// Offset is the place's UTC offset.
	Offset time.Duration

	Icon        int
	Temperature int
	Summary     string

	Sunrise, Sunset time.Time

	// Forecast holds daily forecasts starting today.
	Forecast []Day
}

// Day is a daily forecast.
type Day struct {
	Icon      int
	IconNight int
	Min, Max  int
	Summary   string
}

// Provider returns the weather at a location.
type Provider interface {
	Weather(ctx context.Context, lat, lon float64) (Report, error)
}

// Band weather icons.
const (
	IconSunny        = 0
	IconPartlyCloudy = 1
	IconCloudy       = 2
	IconRain         = 3
	IconThunderstorm = 4
	IconShowers      = 7
	IconSnow         = 14
	IconFog          = 17
)

// icons maps OpenWeatherMap condition groups, the leading number
// of an icon code, to band icons.
var icons = map[int]int{
	1:  IconSunny,        // clear sky
	2:  IconPartlyCloudy, // few clouds
	3:  IconCloudy,       // scattered clouds
	4:  IconCloudy,       // broken clouds
	9:  IconShowers,      // shower rain
	10: IconShowers,      // rain
	11: IconThunderstorm, // thunderstorm
	13: IconSnow,         // snow
	50: IconFog,          // mist
}

// Icon returns the band icon for an OpenWeatherMap icon code such as
// "10d". Unknown codes map to IconSunny.
func Icon(code string) int {
	if len(code) < 2 {
		return IconSunny
	}
	n, err := strconv.Atoi(code[:2])
	if err != nil {
		return IconSunny
	}
	icon, ok := icons[n]
	if !ok {
		return IconSunny
	}
	return icon
}

type replacement struct {
	re   *regexp.Regexp
	with string
}

var abbreviations = map[string][]replacement{
	"en": {
		{regexp.MustCompile(` with `), " & "},
		{regexp.MustCompile(`light `), "l. "},
		{regexp.MustCompile(`heavy `), "h. "},
		{regexp.MustCompile(`intensity `), "int. "},
		{regexp.MustCompile(`thunderstorm `), "thund. "},
	},
	"de": {
		{regexp.MustCompile(`(?i)leicht[ers]* `), "l. "},
		{regexp.MustCompile(`(?i)schwer[ers]* `), "s. "},
		{regexp.MustCompile(`(?i)mäßig[ers]* `), "m. "},
		{regexp.MustCompile(`(?i)ein paar `), "etw. "},
		{regexp.MustCompile(`(?i)überwiegend `), ""},
		{regexp.MustCompile(`(?i)klar[er]* `), "kl. "},
		{regexp.MustCompile(`(?i) (mit|und) `), " u. "},
	},
}

// Shorten abbreviates a condition description to fit the band's display
// and appends the rainfall in mm if it is positive. Descriptions in
// languages other than English and German are only stripped of a
// trailing full stop.
func Shorten(desc, lang string, rain float64) string {
	desc = strings.TrimSuffix(desc, ".")
	for _, r := range abbreviations[lang] {
		desc = r.re.ReplaceAllString(desc, r.with)
	}
	if lang == "en" {
		desc, _, _ = strings.Cut(desc, ":")
	}
	switch {
	case rain <= 0:
	case rain < 1:
		desc += " <1mm"
	default:
		desc += " " + strconv.FormatFloat(rain, 'f', 1, 64) + "mm"
	}
	return desc
}
