// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/miband/activity"
	"github.com/kortschak/miband/instant"
)

var t0 = instant.New(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 0)

// records returns n distinct records for the minutes from off.
func records(off, n int) []byte {
	b := make([]byte, 0, n*activity.RecordSize)
	for i := off; i < off+n; i++ {
		b = append(b, 0x01, byte(i), byte(i>>8), 0xff)
	}
	return b
}

func chunk(off, n int) activity.Chunk {
	return activity.NewChunk(t0.AddMinutes(off), records(off, n))
}

func open(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data"), opts...)
	require.NoError(t, err)
	return s
}

func layout(t *testing.T, s *Store) map[string]int {
	t.Helper()
	segs, err := s.Chunks()
	require.NoError(t, err)
	got := make(map[string]int)
	for _, g := range segs {
		got[g.Name] = g.Minutes
	}
	return got
}

func TestSaveName(t *testing.T) {
	s := open(t)
	start := instant.New(time.Date(2024, 3, 1, 10, 0, 42, 0, time.UTC), 4)
	n, err := s.Save(activity.NewChunk(start, records(0, 10)))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, map[string]int{"2024-03-01-10-00.bin": 10}, layout(t, s))

	segs, err := s.Chunks()
	require.NoError(t, err)
	assert.True(t, segs[0].Start.UTC().Equal(t0.UTC()))
	assert.True(t, segs[0].Next().UTC().Equal(t0.AddMinutes(10).UTC()))
}

func TestSaveIdempotent(t *testing.T) {
	s := open(t)
	c := chunk(0, 30)
	_, err := s.Save(c)
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(s.Dir(), "2024-03-01-10-00.bin"))
	require.NoError(t, err)

	n, err := s.Save(c)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	after, err := os.ReadFile(filepath.Join(s.Dir(), "2024-03-01-10-00.bin"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, map[string]int{"2024-03-01-10-00.bin": 30}, layout(t, s))
}

func TestReadRangeReconstruction(t *testing.T) {
	for _, limit := range []int{0, 10, DefaultMaxFileMinutes} {
		s := open(t, WithMaxFileMinutes(limit))
		_, err := s.Save(chunk(0, 10))
		require.NoError(t, err)
		_, err = s.Save(chunk(10, 15))
		require.NoError(t, err)

		got, err := s.ReadRange(t0, 25)
		require.NoError(t, err)
		assert.Equal(t, records(0, 25), got, "limit=%d", limit)
	}
}

func TestSaveOverlapAppends(t *testing.T) {
	s := open(t)
	_, err := s.Save(chunk(0, 10))
	require.NoError(t, err)

	c := chunk(5, 10)
	for i := 0; i < 5*activity.RecordSize; i += activity.RecordSize {
		c.Data[i+3] = 0x42
	}
	n, err := s.Save(c)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, map[string]int{"2024-03-01-10-00.bin": 15}, layout(t, s))

	got, err := s.ReadRange(t0, 15)
	require.NoError(t, err)
	assert.Equal(t, records(0, 15), got, "stored minutes must not be rewritten")
}

func TestSaveFillsGaps(t *testing.T) {
	s := open(t)
	_, err := s.Save(chunk(0, 5))
	require.NoError(t, err)
	_, err = s.Save(chunk(10, 5))
	require.NoError(t, err)

	n, err := s.Save(chunk(0, 20))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, map[string]int{
		"2024-03-01-10-00.bin": 10,
		"2024-03-01-10-10.bin": 10,
	}, layout(t, s))

	got, err := s.ReadRange(t0, 20)
	require.NoError(t, err)
	assert.Equal(t, records(0, 20), got)
}

func TestSaveSplitsAtCap(t *testing.T) {
	s := open(t, WithMaxFileMinutes(4))
	n, err := s.Save(chunk(0, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, map[string]int{
		"2024-03-01-10-00.bin": 4,
		"2024-03-01-10-04.bin": 4,
		"2024-03-01-10-08.bin": 2,
	}, layout(t, s))
}

func TestSaveCapPreventsAppend(t *testing.T) {
	s := open(t, WithMaxFileMinutes(10))
	_, err := s.Save(chunk(0, 8))
	require.NoError(t, err)
	_, err = s.Save(chunk(8, 4))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"2024-03-01-10-00.bin": 8,
		"2024-03-01-10-08.bin": 4,
	}, layout(t, s))

	_, err = s.Save(chunk(12, 2))
	require.NoError(t, err)
	assert.Equal(t, 6, layout(t, s)["2024-03-01-10-08.bin"])
}

func TestSaveRejectsPartialRecord(t *testing.T) {
	s := open(t)
	_, err := s.Save(activity.Chunk{Start: t0, Data: []byte{1, 2, 3}})
	assert.Error(t, err)
	assert.Empty(t, layout(t, s))
}

func TestReadRangePartial(t *testing.T) {
	s := open(t)
	_, err := s.Save(chunk(10, 10))
	require.NoError(t, err)

	got, err := s.ReadRange(t0.AddMinutes(5), 10)
	require.NoError(t, err)
	want := append(make([]byte, 5*activity.RecordSize), records(10, 5)...)
	assert.Equal(t, want, got)

	got, err = s.ReadRange(t0.AddMinutes(18), 5)
	require.NoError(t, err)
	want = append(records(18, 2), make([]byte, 3*activity.RecordSize)...)
	assert.Equal(t, want, got)

	got, err = s.ReadRange(t0.AddMinutes(30), 5)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 5*activity.RecordSize), got)
}

func TestReadRecords(t *testing.T) {
	s := open(t)
	_, err := s.Save(chunk(2, 3))
	require.NoError(t, err)

	all, err := s.ReadRecords(t0, 6, false)
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Nil(t, all[0])
	require.NotNil(t, all[2])
	assert.True(t, all[2].Time.Equal(t0.AddMinutes(2)))
	assert.Equal(t, activity.Walk, all[2].Class)
	assert.False(t, all[2].HasHeartRate)

	some, err := s.ReadRecords(t0, 6, true)
	require.NoError(t, err)
	assert.Len(t, some, 3)
}

func TestNext(t *testing.T) {
	s := open(t)
	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Save(chunk(0, 10))
	require.NoError(t, err)
	_, err = s.Save(chunk(60, 5))
	require.NoError(t, err)
	next, ok, err := s.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, next.UTC().Equal(t0.AddMinutes(65).UTC()))
}

func TestChunksIgnoresForeignFiles(t *testing.T) {
	s := open(t, WithSuffix(".act"))
	_, err := s.Save(chunk(0, 2))
	require.NoError(t, err)
	for name, data := range map[string][]byte{
		"notes.txt":            []byte("x"),
		"garbage.act":          {1, 2, 3, 4},
		"2024-03-01-09-00.bin": {1, 2, 3, 4},
	} {
		require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), name), data, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "2024-03-01-08-00.act"), 0o755))
	assert.Equal(t, map[string]int{"2024-03-01-10-00.act": 2}, layout(t, s))
}

func TestReduce(t *testing.T) {
	in := []activity.Chunk{
		chunk(0, 5),
		chunk(5, 5),  // abutting
		chunk(8, 4),  // overlapping
		chunk(9, 2),  // contained
		chunk(20, 3), // separate
		chunk(23, 1), // abutting
	}
	orig := make([][]byte, len(in))
	for i, c := range in {
		orig[i] = bytes.Clone(c.Data)
	}

	got := Reduce(in)
	require.Len(t, got, 2)
	assert.True(t, got[0].Start.Equal(t0))
	assert.Equal(t, 12, got[0].Minutes)
	assert.True(t, got[0].Next.Equal(t0.AddMinutes(12)))
	assert.Equal(t, records(0, 12), got[0].Data)
	assert.NoError(t, got[0].Validate())

	assert.True(t, got[1].Start.Equal(t0.AddMinutes(20)))
	assert.Equal(t, 4, got[1].Minutes)
	assert.Equal(t, records(20, 4), got[1].Data)

	for i, c := range in {
		assert.Equal(t, orig[i], c.Data, "input %d modified", i)
	}
	assert.Empty(t, Reduce(nil))
}

func TestSaveAll(t *testing.T) {
	s := open(t)
	n, err := s.SaveAll([]activity.Chunk{chunk(0, 5), chunk(3, 5), chunk(30, 2)})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, map[string]int{
		"2024-03-01-10-00.bin": 8,
		"2024-03-01-10-30.bin": 2,
	}, layout(t, s))
}
