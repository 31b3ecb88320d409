// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/internal/gatttest"
)

func TestFrameUnmarshal(t *testing.T) {
	var f Frame
	err := f.UnmarshalBinary([]byte{
		0x01, 0x07,
		0x00, 0x01, 0x00, 0xff, 0x80, 0x00,
		0x00, 0xfe, 0x40, 0x00, 0x00, 0x00,
		0x01, 0x02, // partial sample
	})
	require.NoError(t, err)
	assert.Equal(t, Frame{
		Counter: 7,
		Samples: []Acc{
			{X: 1, Y: -1, Z: 0.5},
			{X: -2, Y: 0.25, Z: 0},
		},
	}, f)

	err = f.UnmarshalBinary([]byte{0x02, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrFrameType)

	err = f.UnmarshalBinary([]byte{0x01})
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	drainDelay = 0
	defer func() { drainDelay = 500 * time.Millisecond }()

	dev := gatttest.New()
	dev.Script(
		gatttest.Step{On: gatt.SensorControl, Want: []byte{0x01, 0x01, 0x19}},
		gatttest.Step{On: gatt.SensorControl, Want: []byte{0x02}, Notify: []gatttest.Notification{
			{Channel: gatt.SensorData, Data: []byte{0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}},
			{Channel: gatt.SensorData, Data: []byte{0x03, 0x00, 0x00}},
			{Channel: gatt.SensorData, Data: []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00}},
		}},
		gatttest.Step{On: gatt.SensorControl, Want: []byte{0x03}},
	)
	link := dev.Link()

	var got []Acc
	err := Stream(context.Background(), link, 10*time.Millisecond, func(a Acc) {
		got = append(got, a)
	})
	require.NoError(t, err)
	assert.Equal(t, []Acc{{X: 1}, {Y: 2}}, got)
	assert.Equal(t, 0, dev.Remaining())
	assert.Empty(t, dev.Unexpected())
	assert.False(t, dev.Subscribed(gatt.SensorData))
}

func TestStreamCancel(t *testing.T) {
	drainDelay = 0
	defer func() { drainDelay = 500 * time.Millisecond }()

	dev := gatttest.New()
	link := dev.Link()
	ctx, cancel := context.WithCancel(context.Background())
	dev.OnWrite = func(d *gatttest.Device, w gatttest.Write) error {
		if w.Data[0] == byte(Start) {
			cancel()
		}
		return nil
	}
	err := Stream(ctx, link, time.Hour, func(Acc) {})
	require.NoError(t, err)

	var cmds []byte
	for _, w := range dev.Writes() {
		cmds = append(cmds, w.Data[0])
	}
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, cmds)
}

func TestStreamMissingChannel(t *testing.T) {
	dev := gatttest.New(gatt.SensorControl)
	err := Stream(context.Background(), dev.Link(), time.Second, func(Acc) {})
	assert.ErrorIs(t, err, gatt.ErrChannelNotFound)
}
