// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/internal/logutil"
)

// DefaultBaseURL is the OpenWeatherMap API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/"

// forecastDays is the number of daily forecasts the band shows.
const forecastDays = 5

// OpenWeatherMap is a Provider using the OpenWeatherMap one call API.
type OpenWeatherMap struct {
	APIKey string
	// Lang is the description language, "en" if empty.
	Lang string
	// Units is "metric" if empty.
	Units string
	// Place is the place name given to reports.
	Place string
	// BaseURL is DefaultBaseURL if empty.
	BaseURL string
	// Client is http.DefaultClient if nil.
	Client *http.Client
	Log    logrus.FieldLogger
}

var _ Provider = (*OpenWeatherMap)(nil)

type condition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// rainfall is a rain volume in mm, given either as a number or as an
// object holding the volume for the last hour.
type rainfall float64

func (r *rainfall) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*r = rainfall(v)
		return nil
	}
	var h struct {
		LastHour float64 `json:"1h"`
	}
	err := json.Unmarshal(b, &h)
	if err != nil {
		return err
	}
	*r = rainfall(h.LastHour)
	return nil
}

type oneCall struct {
	TimezoneOffset int `json:"timezone_offset"`
	Current        struct {
		DT      int64       `json:"dt"`
		Sunrise int64       `json:"sunrise"`
		Sunset  int64       `json:"sunset"`
		Temp    float64     `json:"temp"`
		Rain    rainfall    `json:"rain"`
		Weather []condition `json:"weather"`
	} `json:"current"`
	Daily []struct {
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Rain    rainfall    `json:"rain"`
		Weather []condition `json:"weather"`
	} `json:"daily"`
}

// Weather implements Provider.
func (p *OpenWeatherMap) Weather(ctx context.Context, lat, lon float64) (Report, error) {
	lang := p.Lang
	if lang == "" {
		lang = "en"
	}
	var resp oneCall
	err := p.request(ctx, "onecall", url.Values{
		"lat":     {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":     {strconv.FormatFloat(lon, 'f', -1, 64)},
		"exclude": {"minutely,hourly"},
		"lang":    {lang},
	}, &resp)
	if err != nil {
		return Report{}, err
	}

	cur := first(resp.Current.Weather)
	r := Report{
		Place:       p.Place,
		Time:        time.Unix(resp.Current.DT, 0).UTC(),
		Offset:      time.Duration(resp.TimezoneOffset) * time.Second,
		Icon:        Icon(cur.Icon),
		Temperature: round(resp.Current.Temp),
		Summary:     Shorten(cur.Description, lang, float64(resp.Current.Rain)),
		Sunrise:     time.Unix(resp.Current.Sunrise, 0).UTC(),
		Sunset:      time.Unix(resp.Current.Sunset, 0).UTC(),
	}
	for _, d := range resp.Daily[:min(len(resp.Daily), forecastDays)] {
		c := first(d.Weather)
		icon := Icon(c.Icon)
		r.Forecast = append(r.Forecast, Day{
			Icon:      icon,
			IconNight: icon,
			Min:       round(d.Temp.Min),
			Max:       round(d.Temp.Max),
			Summary:   Shorten(c.Description, lang, float64(d.Rain)),
		})
	}
	logutil.OrDiscard(p.Log).WithFields(logrus.Fields{
		"lat":      lat,
		"lon":      lon,
		"summary":  r.Summary,
		"forecast": len(r.Forecast),
	}).Debug("weather report")
	return r, nil
}

func (p *OpenWeatherMap) request(ctx context.Context, endpoint string, params url.Values, dst any) error {
	base := p.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.JoinPath(base, endpoint)
	if err != nil {
		return fmt.Errorf("invalid weather url: %w", err)
	}
	units := p.Units
	if units == "" {
		units = "metric"
	}
	params.Set("appid", p.APIKey)
	params.Set("units", units)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create weather request: %w", err)
	}
	cli := p.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("weather request failed: %s: %s", resp.Status, body)
	}
	err = json.NewDecoder(resp.Body).Decode(dst)
	if err != nil {
		return fmt.Errorf("failed to decode weather: %w", err)
	}
	return nil
}

func first(c []condition) condition {
	if len(c) == 0 {
		return condition{}
	}
	return c[0]
}

func round(v float64) int { return int(math.Round(v)) }
