// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package band_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/miband/activity"
	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/chunked"
	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/internal/gatttest"
)

func newBand(dev *gatttest.Device) *band.Band {
	return band.New(dev.Link(), band.Config{
		Offset:          4,
		ChunkTimeout:    time.Second,
		ResponseTimeout: time.Second,
		DataIdle:        time.Second,
	}, nil)
}

// transfer is a reassembled chunked payload.
type transfer struct {
	stream chunked.Stream
	data   []byte
}

// transfers acknowledges chunked transfers written to a device and
// records their payloads.
type transfers struct {
	got    []transfer
	cur    []byte
	status byte

	// done, if not nil, is called after each completion notification.
	done func(d *gatttest.Device)
}

func acknowledge(dev *gatttest.Device) *transfers {
	r := &transfers{status: 0x01}
	dev.OnWrite = r.onWrite
	return r
}

func (r *transfers) onWrite(d *gatttest.Device, w gatttest.Write) error {
	if w.Channel != gatt.ChunkedTransfer {
		return nil
	}
	m, s, _, ok := chunked.Header(w.Data)
	if !ok {
		return errors.New("invalid chunk header")
	}
	if m == chunked.First || m == chunked.Only {
		r.cur = nil
	}
	r.cur = append(r.cur, w.Data[chunked.HeaderSize:]...)
	if m == chunked.Only || m == chunked.Final {
		r.got = append(r.got, transfer{stream: s, data: r.cur})
		r.cur = nil
		d.Notify(gatt.ChunkedTransfer, []byte{0x10, 0x00, r.status})
		if r.done != nil {
			r.done(d)
		}
	}
	return nil
}

func join(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func TestInfo(t *testing.T) {
	dev := gatttest.New()
	dev.SetValue(gatt.SoftwareRevision, []byte("V1.0.9.66"))
	dev.SetValue(gatt.HardwareRevision, []byte("V0.18.3.2"))
	dev.SetValue(gatt.SerialNumber, []byte("abc123"))
	dev.SetValue(gatt.SystemID, []byte{0x01, 0x02})
	dev.SetValue(gatt.PnPID, []byte{0x01, 0x57, 0x01})

	info, err := newBand(dev).Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, band.DeviceInfo{
		SoftwareRevision: "V1.0.9.66",
		HardwareRevision: "V0.18.3.2",
		SerialNumber:     "abc123",
		SystemID:         "0102",
		PnPID:            "015701",
	}, info)
}

func TestLocalTime(t *testing.T) {
	dev := gatttest.New()
	b := newBand(dev)
	want := instant.New(time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), 4)

	err := b.SetLocalTime(context.Background(), want)
	require.NoError(t, err)
	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, gatt.CurrentTime, writes[0].Channel)
	assert.Equal(t, []byte{0xe8, 0x07, 0x03, 0x01, 0x0b, 0x14, 0x1e, 0x05, 0x00, 0x00, 0x04}, writes[0].Data)

	dev.SetValue(gatt.CurrentTime, writes[0].Data)
	got, err := b.LocalTime(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "got %v want %v", got, want)
}

func TestSteps(t *testing.T) {
	dev := gatttest.New()
	b := newBand(dev)

	dev.SetValue(gatt.Steps, []byte{
		0x0c,
		0xd2, 0x04, 0x00, 0x00,
		0xdb, 0x03, 0x00, 0x00,
		0x38, 0x00, 0x00, 0x00,
	})
	got, err := b.Steps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, band.Totals{Steps: 1234, Meters: 987, Calories: 56}, got)

	dev.SetValue(gatt.Steps, []byte{0x0d, 0x01})
	_, err = b.Steps(context.Background())
	assert.ErrorIs(t, err, gatt.ErrUnexpectedResponse)
}

func TestPulse(t *testing.T) {
	dev := gatttest.New()
	dev.Script(gatttest.Step{
		On:     gatt.HeartRateControl,
		Want:   []byte{0x15, 0x02, 0x01},
		Notify: []gatttest.Notification{{Channel: gatt.HeartRate, Data: []byte{0x00, 0x50}}},
	})
	r, err := newBand(dev).Pulse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(80), r.HR)
	assert.Equal(t, 0, dev.Remaining())
}

func TestVibrate(t *testing.T) {
	dev := gatttest.New()
	err := newBand(dev).Vibrate(context.Background())
	require.NoError(t, err)
	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, gatt.AlertLevel, writes[0].Channel)
	assert.Equal(t, []byte{0x03}, writes[0].Data)
}

func request(at instant.Instant) []byte {
	return append([]byte{0x01, 0x01}, at.MustEncode("YmdHi0e")...)
}

func window(start instant.Instant, minutes int) []byte {
	b := []byte{0x10, 0x01, 0x01, byte(minutes), byte(minutes >> 8), 0x00, 0x00}
	return append(b, start.MustEncode("YmdHise")...)
}

func on(ch gatt.Channel, data ...[]byte) []gatttest.Notification {
	n := make([]gatttest.Notification, len(data))
	for i, d := range data {
		n[i] = gatttest.Notification{Channel: ch, Data: d}
	}
	return n
}

func TestActivity(t *testing.T) {
	since := instant.New(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 4)
	next := since.AddMinutes(2)
	rec1 := []byte{0x01, 10, 12, 80}
	rec2 := []byte{0x71, 0, 0, 55}

	dev := gatttest.New()
	dev.Script(
		gatttest.Step{On: gatt.Fetch, Want: request(since), Notify: on(gatt.Fetch, window(since, 2))},
		gatttest.Step{On: gatt.Fetch, Want: []byte{0x02}, Notify: append(
			on(gatt.ActivityData, join([]byte{0x00}, rec1, rec2)),
			on(gatt.Fetch, []byte{0x10, 0x02, 0x01})...,
		)},
		gatttest.Step{On: gatt.Fetch, Want: request(next), Notify: on(gatt.Fetch, window(next, 0))},
		gatttest.Step{On: gatt.Fetch, Want: []byte{0x03}},
	)

	samples, err := newBand(dev).Activity(context.Background(), since, activity.AllFields)
	require.NoError(t, err)
	assert.Equal(t, 0, dev.Remaining())
	assert.Empty(t, dev.Unexpected())
	require.Len(t, samples, 2)
	require.NotNil(t, samples[0])
	require.NotNil(t, samples[1])
	assert.True(t, samples[0].Time.Equal(since))
	assert.Equal(t, uint8(12), samples[0].Steps)
	assert.Equal(t, uint8(80), samples[0].HeartRate)
	assert.True(t, samples[1].Time.Equal(since.AddMinutes(1)))
	assert.Equal(t, uint8(55), samples[1].HeartRate)
}
