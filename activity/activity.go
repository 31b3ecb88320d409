// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package activity extracts and decodes the band's per-minute activity
// log.
package activity

import (
	"fmt"
	"strings"

	"github.com/kortschak/miband/instant"
)

// RecordSize is the length of one minute's record.
const RecordSize = 4

// NoHeartRate is the heart rate byte value for minutes without a reading.
const NoHeartRate = 0xff

//go:generate go tool golang.org/x/tools/cmd/stringer -type Class

// Class is the kind of activity recorded for a minute.
type Class uint8

const (
	Unknown Class = iota
	Walk
	Rest
	Sleep
)

// ClassOf returns the class encoded in a record's flag byte.
func ClassOf(code byte) Class {
	switch {
	case code&0x70 == 0x70:
		return Sleep
	case code&0x50 == 0x50:
		return Rest
	case code&0x01 != 0:
		return Walk
	default:
		return Unknown
	}
}

// Field is a set of Sample attributes to populate.
type Field uint16

const (
	FieldTime Field = 1 << iota
	FieldClass
	FieldCode
	FieldShake
	FieldSteps
	FieldHeart

	// DefaultFields is used when no fields are requested.
	DefaultFields = FieldTime | FieldClass | FieldShake | FieldSteps | FieldHeart
	// AllFields populates every attribute.
	AllFields = DefaultFields | FieldCode
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldTime, "time"},
	{FieldClass, "class"},
	{FieldCode, "code"},
	{FieldShake, "shake"},
	{FieldSteps, "steps"},
	{FieldHeart, "heart"},
}

// ParseFields parses a comma separated list of field names. An empty
// list returns DefaultFields.
func ParseFields(s string) (Field, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultFields, nil
	}
	var f Field
outer:
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "all" {
			f |= AllFields
			continue
		}
		for _, n := range fieldNames {
			if n.name == name {
				f |= n.f
				continue outer
			}
		}
		return 0, fmt.Errorf("unknown activity field %q", name)
	}
	return f, nil
}

func (f Field) String() string {
	var names []string
	for _, n := range fieldNames {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// Sample is one decoded minute.
type Sample struct {
	Time         instant.Instant
	Class        Class
	Code         byte
	Shake        uint8
	Steps        uint8
	HeartRate    uint8
	HasHeartRate bool
}

// Decode decodes raw minute records. Minutes without a record are
// returned as nil. If start is not nil, samples are timed from it when
// FieldTime is requested. A zero fields value decodes DefaultFields.
func Decode(raw []byte, start *instant.Instant, fields Field) []*Sample {
	if fields == 0 {
		fields = DefaultFields
	}
	samples := make([]*Sample, 0, len(raw)/RecordSize)
	for i := 0; i+RecordSize <= len(raw); i += RecordSize {
		rec := raw[i : i+RecordSize]
		if rec[0] == 0 {
			samples = append(samples, nil)
			continue
		}
		var s Sample
		if start != nil && fields&FieldTime != 0 {
			s.Time = start.AddMinutes(i / RecordSize)
		}
		if fields&FieldClass != 0 {
			s.Class = ClassOf(rec[0])
		}
		if fields&FieldCode != 0 {
			s.Code = rec[0]
		}
		if fields&FieldShake != 0 {
			s.Shake = rec[1]
		}
		if fields&FieldSteps != 0 {
			s.Steps = rec[2]
		}
		if fields&FieldHeart != 0 && rec[3] != NoHeartRate {
			s.HeartRate = rec[3]
			s.HasHeartRate = true
		}
		samples = append(samples, &s)
	}
	return samples
}

// Chunk is a contiguous run of raw minute records.
type Chunk struct {
	Start   instant.Instant
	Minutes int
	Next    instant.Instant
	Data    []byte
}

// NewChunk returns the chunk holding data from start.
func NewChunk(start instant.Instant, data []byte) Chunk {
	n := len(data) / RecordSize
	return Chunk{
		Start:   start,
		Minutes: n,
		Next:    start.AddMinutes(n),
		Data:    data,
	}
}

// Validate checks the chunk's length and end invariants.
func (c Chunk) Validate() error {
	if len(c.Data) != c.Minutes*RecordSize {
		return fmt.Errorf("chunk at %s holds %d bytes for %d minutes", c.Start, len(c.Data), c.Minutes)
	}
	if got := c.Next.Sub(c.Start); got != c.Minutes {
		return fmt.Errorf("chunk at %s ends %d minutes later, not %d", c.Start, got, c.Minutes)
	}
	return nil
}

// Samples decodes the chunk.
func (c Chunk) Samples(fields Field) []*Sample {
	return Decode(c.Data, &c.Start, fields)
}
