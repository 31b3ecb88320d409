// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package band

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/instant"
)

// Clock is a time of day.
type Clock struct {
	Hour, Minute int
}

// ClockOf returns the time of day of t.
func ClockOf(t time.Time) Clock { return Clock{Hour: t.Hour(), Minute: t.Minute()} }

// ParseClock parses a time of day in 15:04 form.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return ClockOf(t), nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) bytes() []byte { return []byte{byte(c.Hour), byte(c.Minute)} }

// Period is a daily time range.
type Period struct {
	Start, End Clock
}

func (p *Period) bytes() []byte {
	if p == nil {
		return []byte{0, 0, 0, 0}
	}
	return append(p.Start.bytes(), p.End.bytes()...)
}

func flag(on bool) byte {
	if on {
		return 1
	}
	return 0
}

// display writes a display setting to the configuration channel.
func (b *Band) display(ctx context.Context, code byte, args ...byte) error {
	return b.link.Write(ctx, gatt.Configuration, []byte{0x06, code, 0x00}, args)
}

// Display setting codes.
const (
	displayVisibility   = 0x01
	display24h          = 0x02
	displayImperial     = 0x03
	displayOnLift       = 0x05
	displayGoalVibrate  = 0x06
	displayScreenLock   = 0x16
	displayLocale       = 0x17
	displaySilentMode   = 0x19
	displayDateFormat   = 0x1e
	displayNearbyPulse  = 0x1f
	displayNoNewPairing = 0x20
)

// Set24h selects a 24 hour clock.
func (b *Band) Set24h(ctx context.Context, on bool) error {
	return b.display(ctx, display24h, flag(on))
}

// SetImperialUnits selects imperial distance units.
func (b *Band) SetImperialUnits(ctx context.Context, on bool) error {
	return b.display(ctx, displayImperial, flag(on))
}

// SetDateFormat sets the date format, for example "dd.MM.yyyy".
func (b *Band) SetDateFormat(ctx context.Context, format string) error {
	return b.display(ctx, displayDateFormat, append([]byte(format), 0x00)...)
}

// SetLocale sets the band's language, for example "en_US".
func (b *Band) SetLocale(ctx context.Context, locale string) error {
	return b.display(ctx, displayLocale, []byte(locale)...)
}

// SetScreenLock sets whether the screen must be unlocked after it turns
// off.
func (b *Band) SetScreenLock(ctx context.Context, on bool) error {
	return b.display(ctx, displayScreenLock, flag(on))
}

// SetVisibility sets whether the band is discoverable.
func (b *Band) SetVisibility(ctx context.Context, on bool) error {
	return b.display(ctx, displayVisibility, flag(on))
}

// SetNearbyPulseRead sets whether nearby devices may read the heart rate.
func (b *Band) SetNearbyPulseRead(ctx context.Context, on bool) error {
	return b.display(ctx, displayNearbyPulse, flag(on))
}

// SetDisableNewPairing sets whether new pairing requests are refused.
func (b *Band) SetDisableNewPairing(ctx context.Context, on bool) error {
	return b.display(ctx, displayNoNewPairing, flag(on))
}

// SetGoalVibrate sets whether the band vibrates when the daily goal is
// reached.
func (b *Band) SetGoalVibrate(ctx context.Context, on bool) error {
	return b.display(ctx, displayGoalVibrate, flag(on))
}

// SetSilentMode sets the band's silent mode.
func (b *Band) SetSilentMode(ctx context.Context, on bool) error {
	return b.display(ctx, displaySilentMode, flag(on))
}

// SetDisplayOnLift sets when lifting the wrist turns the display on. A
// nil period applies the on setting for the whole day.
func (b *Band) SetDisplayOnLift(ctx context.Context, on bool, p *Period) error {
	if p != nil {
		return b.display(ctx, displayOnLift, append([]byte{0x01}, p.bytes()...)...)
	}
	return b.display(ctx, displayOnLift, flag(on), 0x00, 0x00, 0x00, 0x00)
}

// SetDailyGoal sets the daily step goal.
func (b *Band) SetDailyGoal(ctx context.Context, steps int) error {
	if steps < 0 || steps > 0xffff {
		return fmt.Errorf("daily goal out of range: %d", steps)
	}
	return b.link.Write(ctx, gatt.UserSettings, []byte{0x10, 0x00, 0x00}, binary.LittleEndian.AppendUint16(nil, uint16(steps)), []byte{0x00, 0x00})
}

// User is the wearer's profile.
type User struct {
	Birthday time.Time
	Female   bool
	Height   int     // cm
	Weight   float64 // kg
	ID       uint32
}

// SetUserInfo sets the wearer's profile.
func (b *Band) SetUserInfo(ctx context.Context, u User) error {
	if u.Height < 0 || u.Height > 0xffff {
		return fmt.Errorf("height out of range: %d", u.Height)
	}
	weight := u.Weight * 200
	if weight < 0 || weight > 0xffff {
		return fmt.Errorf("weight out of range: %v", u.Weight)
	}
	buf := []byte{0x4f, 0x00, 0x00}
	buf = append(buf, instant.New(u.Birthday, b.cfg.Offset).MustEncode("Ymd")...)
	buf = append(buf, flag(u.Female))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(u.Height))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(weight))
	buf = binary.LittleEndian.AppendUint32(buf, u.ID)
	return b.link.Write(ctx, gatt.UserSettings, buf)
}

// SetWearingSide sets the wrist the band is worn on.
func (b *Band) SetWearingSide(ctx context.Context, right bool) error {
	side := byte(0x02)
	if right {
		side |= 0x80
	}
	return b.link.Write(ctx, gatt.UserSettings, []byte{0x20, 0x00, 0x00, side})
}

// Days is a set of weekdays.
type Days uint8

const (
	Monday Days = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday

	Weekdays = Monday | Tuesday | Wednesday | Thursday | Friday
	Weekend  = Saturday | Sunday
	Daily    = Weekdays | Weekend
)

// DayOf returns the Days value for a weekday.
func DayOf(d time.Weekday) Days { return 1 << ((int(d) + 6) % 7) }

// once is the alarm repetition flag for a single alarm.
const once = 0x80

// Alarm is an alarm clock setting.
type Alarm struct {
	// Slot is the alarm's position, 0 to 9.
	Slot int
	Time Clock
	// Days is the set of days the alarm repeats on. No days sets
	// a single alarm.
	Days Days
	// Snooze allows the alarm to be snoozed.
	Snooze bool
}

const maxAlarmSlot = 9

// SetAlarm sets an alarm.
func (b *Band) SetAlarm(ctx context.Context, a Alarm) error {
	if a.Slot < 0 || a.Slot > maxAlarmSlot {
		return fmt.Errorf("alarm slot out of range: %d", a.Slot)
	}
	mode := byte(0xc0 + a.Slot)
	if a.Snooze {
		mode -= 0x40
	}
	days := byte(a.Days &^ (1 << 7))
	if days == 0 {
		days = once
	}
	return b.link.Write(ctx, gatt.Configuration, []byte{0x02, mode}, a.Time.bytes(), []byte{days})
}

// DeleteAlarm deletes the alarm in slot.
func (b *Band) DeleteAlarm(ctx context.Context, slot int) error {
	if slot < 0 || slot > maxAlarmSlot {
		return fmt.Errorf("alarm slot out of range: %d", slot)
	}
	return b.link.Write(ctx, gatt.Configuration, []byte{0x02, byte(slot), 0x00, 0x00, once})
}

// SetInactivityWarning sets the period during which the band warns
// after an hour without movement, with an optional pause inside it. A
// nil active period disables the warning.
func (b *Band) SetInactivityWarning(ctx context.Context, active, pause *Period) error {
	parts := [][]byte{{0x08, flag(active != nil), 0x3c, 0x00}}
	if active == nil || pause == nil {
		parts = append(parts, active.bytes(), pause.bytes())
	} else {
		parts = append(parts, active.Start.bytes(), pause.bytes(), active.End.bytes())
	}
	return b.link.Write(ctx, gatt.Configuration, parts...)
}

// NightMode is the band's display dimming schedule. The zero value
// disables night mode.
type NightMode struct {
	// Sunset dims the display from sunset to sunrise.
	Sunset bool
	// Period dims the display for a fixed daily period, taking
	// precedence over Sunset.
	Period *Period
}

// SetNightMode sets the display dimming schedule.
func (b *Band) SetNightMode(ctx context.Context, m NightMode) error {
	if m.Period != nil {
		return b.link.Write(ctx, gatt.Configuration, []byte{0x1a, 0x01}, m.Period.bytes())
	}
	mode := byte(0x00)
	if m.Sunset {
		mode = 0x02
	}
	return b.link.Write(ctx, gatt.Configuration, []byte{0x1a, mode})
}

// Menu items in the band's order of codes.
const menuItems = "CNWEMSHT"

// MenuOrder returns the band's menu configuration for order, a sequence of
// menu item letters:
//
//	C clock
//	N notifications
//	W weather
//	E exercise
//	M more
//	S status
//	H heart rate
//	T timer
//
// Upper case letters are shown in the given order. Lower case letters
// position an item without showing it, and missing items are hidden
// after the listed ones. The clock is always shown first.
func MenuOrder(order string) (mask byte, positions []byte) {
	switch i := strings.IndexRune(order, 'C'); {
	case i < 0:
		order = "C" + order
	case i > 0:
		parts := strings.Split(order, "C")
		for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
			parts[l], parts[r] = parts[r], parts[l]
		}
		order = "C" + strings.Join(parts, "")
	}
	positions = make([]byte, 0, len(menuItems))
	for i, item := range menuItems {
		p := strings.IndexRune(strings.ToUpper(order), item)
		if p < 0 {
			p = len(order)
			order += strings.ToLower(string(item))
		}
		positions = append(positions, byte(p))
		if strings.ContainsRune(order, item) {
			mask |= 1 << i
		}
	}
	return mask, positions
}

// SetMenu sets the band's menu. See MenuOrder for the form of order.
func (b *Band) SetMenu(ctx context.Context, order string) error {
	mask, positions := MenuOrder(order)
	return b.link.Write(ctx, gatt.Configuration, []byte{0x0a, mask, 0x30}, positions)
}
