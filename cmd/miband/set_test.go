// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/miband/band"
)

func TestParsePeriod(t *testing.T) {
	p, err := parsePeriod("07:00 - 22:30")
	require.NoError(t, err)
	assert.Equal(t, band.Period{Start: band.Clock{Hour: 7}, End: band.Clock{Hour: 22, Minute: 30}}, *p)

	for _, bad := range []string{"07:00", "7-22", "07:00-25:00"} {
		_, err := parsePeriod(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseSwitch(t *testing.T) {
	on, p, err := parseSwitch("ON")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Nil(t, p)

	on, p, err = parseSwitch("off")
	require.NoError(t, err)
	assert.False(t, on)
	assert.Nil(t, p)

	on, p, err = parseSwitch("08:15-17:45")
	require.NoError(t, err)
	assert.True(t, on)
	require.NotNil(t, p)
	assert.Equal(t, band.Clock{Hour: 8, Minute: 15}, p.Start)

	on, _, err = parseSwitch("sometimes")
	assert.Error(t, err)
	assert.False(t, on)
}

func TestParseAlarm(t *testing.T) {
	a, err := parseAlarm("3=06:45", "weekdays,sat", true)
	require.NoError(t, err)
	assert.Equal(t, band.Alarm{
		Slot:   3,
		Time:   band.Clock{Hour: 6, Minute: 45},
		Days:   band.Weekdays | band.Saturday,
		Snooze: true,
	}, a)

	a, err = parseAlarm("0=12:00", "", false)
	require.NoError(t, err)
	assert.Zero(t, a.Days)

	for _, bad := range []string{"06:45", "x=06:45", "1=6am"} {
		_, err := parseAlarm(bad, "", false)
		assert.Error(t, err, bad)
	}
	_, err = parseAlarm("1=06:45", "someday", false)
	assert.Error(t, err)
}

func TestParseRepeat(t *testing.T) {
	for _, test := range []struct {
		in   string
		want band.Repeat
	}{
		{in: "", want: band.Once},
		{in: "once", want: band.Once},
		{in: "Weekly", want: band.Weekly},
		{in: "monthly", want: band.Monthly},
		{in: "yearly", want: band.Yearly},
		{in: "mon,wed", want: band.RepeatOn(band.Monday | band.Wednesday)},
		{in: "weekend", want: band.RepeatOn(band.Weekend)},
	} {
		got, err := parseRepeat(test.in)
		require.NoError(t, err, test.in)
		assert.Equal(t, test.want, got, test.in)
	}
	_, err := parseRepeat("fortnightly")
	assert.Error(t, err)
}

func TestRollingRate(t *testing.T) {
	r := newRollingRate(3)
	assert.Equal(t, 60.0, r.add(60))
	assert.Equal(t, 65.0, r.add(70))
	assert.Equal(t, 70.0, r.add(80))
	assert.Equal(t, 80.0, r.add(90), "oldest rate dropped")
}
