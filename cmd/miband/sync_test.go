// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/internal/gatttest"
	"github.com/kortschak/miband/store"
)

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

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSyncActivity(t *testing.T) {
	since := instant.New(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 4)
	next := since.AddMinutes(3)
	recs := [][]byte{{0x01, 10, 12, 80}, {0x71, 0, 0, 55}, {0x50, 2, 0, 0xff}}

	dev := gatttest.New()
	dev.Script(
		gatttest.Step{On: gatt.Fetch, Want: request(since), Notify: on(gatt.Fetch, window(since, 3))},
		gatttest.Step{On: gatt.Fetch, Want: []byte{0x02}, Notify: append(
			on(gatt.ActivityData, bytes.Join(append([][]byte{{0x00}}, recs...), nil)),
			on(gatt.Fetch, []byte{0x10, 0x02, 0x01})...,
		)},
		gatttest.Step{On: gatt.Fetch, Want: request(next), Notify: on(gatt.Fetch, window(next, 0))},
		gatttest.Step{On: gatt.Fetch, Want: []byte{0x03}},
	)
	b := band.New(dev.Link(), band.Config{Offset: 4, DataIdle: time.Second}, nil)

	st, err := store.Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	res, err := syncActivity(context.Background(), b, st, since, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, dev.Remaining())
	assert.Empty(t, dev.Unexpected())
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 3, res.Stored)
	assert.False(t, res.Partial)
	assert.Equal(t, next.UTC(), res.Next.UTC())

	raw, err := st.ReadRange(since, 3)
	require.NoError(t, err)
	assert.Equal(t, bytes.Join(recs, nil), raw)

	buf, err := json.Marshal(res)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf, &got))
	assert.Equal(t, since.String(), got["since"])
	assert.Equal(t, float64(3), got["stored"])
}

func TestSyncActivityNothingNew(t *testing.T) {
	since := instant.New(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 4)
	dev := gatttest.New()
	dev.Script(
		gatttest.Step{On: gatt.Fetch, Want: request(since), Notify: on(gatt.Fetch, window(since, 0))},
		gatttest.Step{On: gatt.Fetch, Want: []byte{0x03}},
	)
	b := band.New(dev.Link(), band.Config{Offset: 4, DataIdle: time.Second}, nil)
	st, err := store.Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	res, err := syncActivity(context.Background(), b, st, since, quietLogger())
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
	assert.Zero(t, res.Stored)
	assert.True(t, res.Next.IsZero())
}
