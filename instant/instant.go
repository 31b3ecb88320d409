// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package instant implements the compact date-time representations used
// by the band's wire protocol.
//
// An Instant is an absolute point in time paired with a UTC offset held
// in 15 minute units. The offset is carried on the wire as a signed byte,
// so the representable range is -128..127 units; offsets of 24 hours or
// more are treated as unset and normalised to UTC when decoding.
package instant

import (
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Resolution is the granularity of an Instant's UTC offset.
const Resolution = 15 * time.Minute

// MaxOffset is the exclusive bound on the magnitude of a valid offset in
// 15 minute units.
const MaxOffset = int(24 * time.Hour / Resolution)

// Wire layout lengths.
const (
	ShortSize = 8
	LongSize  = 11
)

// Instant is an absolute time with a 15 minute resolution UTC offset.
// The zero value is the zero time in UTC.
type Instant struct {
	t     time.Time
	units int8
}

// New returns an Instant for t with the given offset in 15 minute units.
// Offsets of 24 hours or more in magnitude are replaced with zero.
func New(t time.Time, units int) Instant {
	if units <= -MaxOffset || units >= MaxOffset {
		units = 0
	}
	return Instant{t: t.UTC(), units: int8(units)}
}

// FromTime returns an Instant for t using the offset of t's location,
// truncated toward zero to the 15 minute resolution.
func FromTime(t time.Time) Instant {
	_, off := t.Zone()
	return New(t, off/int(Resolution/time.Second))
}

// Now returns the current time with the given offset units.
func Now(units int) Instant {
	return New(time.Now(), units)
}

// FromUnix returns the Instant for the Unix time sec with the given offset
// units.
func FromUnix(sec int64, units int) Instant {
	return New(time.Unix(sec, 0), units)
}

// Time returns the instant as a time.Time in a fixed zone matching its
// offset.
func (i Instant) Time() time.Time {
	return i.t.In(i.Location())
}

// UTC returns the absolute time in UTC.
func (i Instant) UTC() time.Time { return i.t }

// Offset returns the UTC offset in 15 minute units.
func (i Instant) Offset() int { return int(i.units) }

// Location returns a fixed zone for the instant's offset.
func (i Instant) Location() *time.Location {
	if i.units == 0 {
		return time.UTC
	}
	return time.FixedZone("", int(i.units)*int(Resolution/time.Second))
}

// IsZero reports whether the instant is the zero time.
func (i Instant) IsZero() bool { return i.t.IsZero() }

// AddMinutes returns the instant n minutes after i, keeping its offset.
func (i Instant) AddMinutes(n int) Instant {
	i.t = i.t.Add(time.Duration(n) * time.Minute)
	return i
}

// Sub returns the number of whole minutes between j and i.
func (i Instant) Sub(j Instant) int {
	return int(i.t.Sub(j.t) / time.Minute)
}

// Before reports whether i is strictly before j.
func (i Instant) Before(j Instant) bool { return i.t.Before(j.t) }

// After reports whether i is strictly after j.
func (i Instant) After(j Instant) bool { return i.t.After(j.t) }

// Equal reports whether i and j denote the same time with the same offset.
func (i Instant) Equal(j Instant) bool {
	return i.t.Equal(j.t) && i.units == j.units
}

// Truncate returns i rounded down to a multiple of d.
func (i Instant) Truncate(d time.Duration) Instant {
	i.t = i.t.Truncate(d)
	return i
}

// Weekday returns the day of the week in the instant's own offset.
func (i Instant) Weekday() time.Weekday {
	return i.Time().Weekday()
}

// Decode decodes a short (8 byte) or long (11 byte) wire date.
//
// Both layouts start with a little-endian year, a 1-based month, the day,
// hour, minute and second. The short form ends with a signed offset byte.
// The long form adds a weekday, a fraction and an adjust reason byte
// before the offset; the offset is only honoured if the latter two are
// zero. Buffers of any other length of at least four bytes are decoded as
// UTC with absent time fields taken as zero.
func Decode(b []byte) (Instant, error) {
	if len(b) < 4 {
		return Instant{}, fmt.Errorf("date too short: %#x", b)
	}
	var units int
	switch {
	case len(b) == LongSize && b[8] == 0 && b[9] == 0:
		units = int(int8(b[10]))
	case len(b) == ShortSize:
		units = int(int8(b[7]))
	}
	if units <= -MaxOffset || units >= MaxOffset {
		units = 0
	}
	field := func(n int) int {
		if n < len(b) {
			return int(b[n])
		}
		return 0
	}
	year := int(binary.LittleEndian.Uint16(b))
	wall := time.Date(year, time.Month(b[2]), int(b[3]), field(4), field(5), field(6), 0, time.UTC)
	return Instant{
		t:     wall.Add(-time.Duration(units) * Resolution),
		units: int8(units),
	}, nil
}

// MustDecode is like Decode but panics on error.
func MustDecode(b []byte) Instant {
	i, err := Decode(b)
	if err != nil {
		panic(err)
	}
	return i
}

// ErrFormat is returned when an encoding format contains an unknown verb.
var ErrFormat = errors.New("unknown date format verb")

// Encode serialises the instant's wall-clock fields in the order given by
// format. Recognised verbs are:
//
//	Y      year, low then high byte
//	m      month (1-based)
//	d      day of month
//	H      hour
//	i      minute
//	s      second
//	w      weekday, Sunday is 0
//	e p P  offset in 15 minute units
//	0      zero padding byte
func (i Instant) Encode(format string) ([]byte, error) {
	t := i.Time()
	dst := make([]byte, 0, len(format)+1)
	for _, verb := range format {
		switch verb {
		case 'Y':
			dst = binary.LittleEndian.AppendUint16(dst, uint16(t.Year()))
		case 'm':
			dst = append(dst, byte(t.Month()))
		case 'd':
			dst = append(dst, byte(t.Day()))
		case 'H':
			dst = append(dst, byte(t.Hour()))
		case 'i':
			dst = append(dst, byte(t.Minute()))
		case 's':
			dst = append(dst, byte(t.Second()))
		case 'w':
			dst = append(dst, byte(t.Weekday()))
		case 'e', 'p', 'P':
			dst = append(dst, byte(i.units))
		case '0':
			dst = append(dst, 0)
		default:
			return nil, fmt.Errorf("%w: %q", ErrFormat, verb)
		}
	}
	return dst, nil
}

// MustEncode is like Encode but panics on error. It is intended for
// formats that are compile-time constants.
func (i Instant) MustEncode(format string) []byte {
	b, err := i.Encode(format)
	if err != nil {
		panic(err)
	}
	return b
}

// Epoch returns the little-endian Unix seconds of the instant, followed
// by the offset byte if withOffset is true.
func (i Instant) Epoch(withOffset bool) []byte {
	b := binary.LittleEndian.AppendUint32(make([]byte, 0, 5), uint32(i.t.Unix()))
	if withOffset {
		b = append(b, byte(i.units))
	}
	return b
}

const isoLayout = "2006-01-02T15:04:05.000"

// String returns the ISO-8601 representation of the instant in its own
// offset, using Z for a zero offset.
func (i Instant) String() string {
	s := i.Time().Format(isoLayout)
	if i.units == 0 {
		return s + "Z"
	}
	off := int(i.units) * int(Resolution/time.Minute)
	sign := byte('+')
	if off < 0 {
		sign = '-'
		off = -off
	}
	return fmt.Sprintf("%s%c%02d:%02d", s, sign, off/60, off%60)
}

var isoPattern = regexp.MustCompile(`^(\d{4})-(\d\d)-(\d\d)[T ](\d\d):(\d\d)(?::(\d\d)(?:\.(\d{1,9}))?)?(Z|([+-])(\d\d):?(\d\d)?)?$`)

// Parse parses an ISO-8601 date-time as produced by String. A missing
// zone designator is taken as UTC. Offsets are truncated to the 15 minute
// resolution.
func Parse(s string) (Instant, error) {
	m := isoPattern.FindStringSubmatch(s)
	if m == nil {
		return Instant{}, fmt.Errorf("invalid date: %q", s)
	}
	n := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	var nsec int
	if m[7] != "" {
		frac := m[7] + "000000000"[len(m[7]):]
		nsec = n(frac)
	}
	var off int
	if m[9] != "" {
		off = n(m[10])*60 + n(m[11])
		if m[9] == "-" {
			off = -off
		}
	}
	units := off / int(Resolution/time.Minute)
	wall := time.Date(n(m[1]), time.Month(n(m[2])), n(m[3]), n(m[4]), n(m[5]), n(m[6]), nsec, time.UTC)
	return New(wall.Add(-time.Duration(off)*time.Minute), units), nil
}

// MarshalText implements encoding.TextMarshaler. The zero Instant is
// marshaled as an empty string.
func (i Instant) MarshalText() ([]byte, error) {
	if i.IsZero() {
		return []byte{}, nil
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Instant) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*i = Instant{}
		return nil
	}
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
