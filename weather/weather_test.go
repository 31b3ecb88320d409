// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIcon(t *testing.T) {
	for code, want := range map[string]int{
		"01d": IconSunny,
		"02n": IconPartlyCloudy,
		"04d": IconCloudy,
		"09d": IconShowers,
		"10n": IconShowers,
		"11d": IconThunderstorm,
		"13d": IconSnow,
		"50d": IconFog,
		"99d": IconSunny,
		"49n": IconSunny,
		"05d": IconSunny,
		"95d": IconSunny,
		"00d": IconSunny,
		"x":   IconSunny,
		"":    IconSunny,
	} {
		assert.Equal(t, want, Icon(code), "code %q", code)
	}
}

var shortenTests = []struct {
	desc string
	lang string
	rain float64
	want string
}{
	{desc: "light rain", lang: "en", want: "l. rain"},
	{desc: "thunderstorm with heavy rain", lang: "en", rain: 3.26, want: "thund. & h. rain 3.3mm"},
	{desc: "heavy intensity rain", lang: "en", rain: 0.4, want: "h. int. rain <1mm"},
	{desc: "overcast clouds: 85-100%", lang: "en", want: "overcast clouds"},
	{desc: "Leichter Regen.", lang: "de", want: "l. Regen"},
	{desc: "überwiegend bewölkt", lang: "de", want: "bewölkt"},
	{desc: "Klarer Himmel", lang: "de", want: "kl. Himmel"},
	{desc: "Regen und Schnee", lang: "de", want: "Regen u. Schnee"},
	{desc: "pluie modérée.", lang: "fr", want: "pluie modérée"},
}

func TestShorten(t *testing.T) {
	for _, test := range shortenTests {
		assert.Equal(t, test.want, Shorten(test.desc, test.lang, test.rain), "%q", test.desc)
	}
}

const oneCallResponse = `{
	"timezone_offset": 3600,
	"current": {
		"dt": 1709283600,
		"sunrise": 1709273400,
		"sunset": 1709313300,
		"temp": 7.6,
		"rain": {"1h": 0.2},
		"weather": [{"description": "light rain", "icon": "10d"}]
	},
	"daily": [
		{"temp": {"min": -1.4, "max": 8.5}, "rain": 2.04, "weather": [{"description": "moderate rain", "icon": "10d"}]},
		{"temp": {"min": 0, "max": 9}, "weather": [{"description": "clear sky", "icon": "01d"}]},
		{"temp": {"min": 1, "max": 10}, "weather": [{"description": "snow", "icon": "13d"}]},
		{"temp": {"min": 2, "max": 11}, "weather": [{"description": "mist", "icon": "50d"}]},
		{"temp": {"min": 3, "max": 12}, "weather": [{"description": "few clouds", "icon": "02d"}]},
		{"temp": {"min": 4, "max": 13}, "weather": [{"description": "broken clouds", "icon": "04d"}]}
	]
}`

func TestOpenWeatherMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/onecall" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("appid") != "secret" || q.Get("units") != "metric" || q.Get("lat") != "52.5" || q.Get("lon") != "13.4" || q.Get("lang") != "en" {
			http.Error(w, "bad query: "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		w.Write([]byte(oneCallResponse))
	}))
	defer srv.Close()

	p := &OpenWeatherMap{APIKey: "secret", Place: "Berlin", BaseURL: srv.URL}
	got, err := p.Weather(context.Background(), 52.5, 13.4)
	require.NoError(t, err)

	assert.Equal(t, "Berlin", got.Place)
	assert.Equal(t, time.Unix(1709283600, 0).UTC(), got.Time)
	assert.Equal(t, time.Hour, got.Offset)
	assert.Equal(t, IconShowers, got.Icon)
	assert.Equal(t, 8, got.Temperature)
	assert.Equal(t, "l. rain <1mm", got.Summary)
	assert.Equal(t, time.Unix(1709273400, 0).UTC(), got.Sunrise)
	assert.Equal(t, time.Unix(1709313300, 0).UTC(), got.Sunset)
	require.Len(t, got.Forecast, 5)
	assert.Equal(t, Day{Icon: IconShowers, IconNight: IconShowers, Min: -1, Max: 9, Summary: "moderate rain 2.0mm"}, got.Forecast[0])
	assert.Equal(t, IconFog, got.Forecast[3].Icon)
}

func TestOpenWeatherMapError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":401}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := &OpenWeatherMap{BaseURL: srv.URL}
	_, err := p.Weather(context.Background(), 0, 0)
	assert.ErrorContains(t, err, "401")
}
