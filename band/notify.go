// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package band

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/chunked"
	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/instant"
)

// Event codes reported on the events channel.
const (
	eventCallDeclined = 0x07
	eventCallAccepted = 0x09
	eventSilentMode   = 0x10
)

// Alert payload kinds.
var (
	alertCall       = []byte{0x03}
	alertMissedCall = []byte{0x04, 0x01}
	alertApp        = []byte{0x01, 0x01, 0x00}
	alertMessage    = []byte{0x05, 0x01, 0x00}
	alertAppFrom    = []byte{0xfa, 0x01, 0x07}
	alertAlarm      = []byte{0xfa, 0x01, 0x0a, 0x00, 0x00, 0x00}
	alertWeather    = []byte{0xfa, 0x01, 0x23}
)

var (
	nul  = []byte{0x00}
	nul2 = []byte{0x00, 0x00}
	nul3 = []byte{0x00, 0x00, 0x00}
)

// ErrRejected is returned when the band rejects a chunked transfer.
var ErrRejected = errors.New("transfer rejected")

// send sends a chunked payload, returning ErrRejected if the band does
// not acknowledge it.
func (b *Band) send(ctx context.Context, stream chunked.Stream, parts ...[]byte) error {
	ok, err := b.sender.Send(ctx, stream, parts...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", stream, ErrRejected)
	}
	return nil
}

// SendCall announces an incoming call from name and waits for the wearer
// to accept or decline it. An empty name announces an anonymous call.
func (b *Band) SendCall(ctx context.Context, name string) (accepted bool, err error) {
	events, err := b.link.Subscribe(ctx, gatt.Events)
	if err != nil {
		return false, err
	}
	defer events.Close()
	if name == "" {
		err = b.link.Write(ctx, gatt.AlertLevel, []byte{0x02, 0x01})
	} else {
		err = b.send(ctx, chunked.Alert, alertCall, []byte{0x01}, []byte(name), nul3)
	}
	if err != nil {
		return false, err
	}
	for {
		resp, err := events.Next(ctx, b.cfg.ResponseTimeout)
		if err != nil {
			return false, fmt.Errorf("failed to get call response: %w", err)
		}
		if len(resp) == 0 {
			continue
		}
		switch resp[0] {
		case eventCallAccepted:
			return true, nil
		case eventCallDeclined:
			return false, nil
		case eventSilentMode:
			continue
		default:
			return false, &gatt.UnexpectedResponseError{Op: "call", Data: resp}
		}
	}
}

// SendMissedCall shows a missed call from name.
func (b *Band) SendMissedCall(ctx context.Context, name string) error {
	return b.send(ctx, chunked.Alert, alertMissedCall, []byte(name), nul3)
}

// SendMessage shows a message. The app and sender are optional; a sender
// is only shown with an app.
func (b *Band) SendMessage(ctx context.Context, msg, app, from string) error {
	switch {
	case app != "" && from != "":
		return b.send(ctx, chunked.Alert, alertAppFrom, []byte(from), nul, []byte(msg), nul, []byte(app), nul)
	case app != "":
		return b.send(ctx, chunked.Alert, alertApp, []byte(msg), nul, []byte(app), nul)
	default:
		return b.send(ctx, chunked.Alert, alertMessage, []byte(msg), nul2)
	}
}

// SendAlarm triggers the band's alarm alert.
func (b *Band) SendAlarm(ctx context.Context) error {
	return b.send(ctx, chunked.Alert, alertAlarm)
}

// SendWeatherAlert shows a weather warning.
func (b *Band) SendWeatherAlert(ctx context.Context, heading, msg string) error {
	return b.send(ctx, chunked.Alert, alertWeather, []byte(heading), nul, []byte(msg), nul2)
}

// Repeat is a calendar event repetition.
type Repeat int

const (
	Once Repeat = 0
	// Weekly repeats on the weekday of the event.
	Weekly  Repeat = -1
	Monthly Repeat = 0x80
	Yearly  Repeat = 0x100
)

// RepeatOn returns a repetition on the given days.
func RepeatOn(d Days) Repeat { return Repeat(d) }

// Event is a calendar reminder.
type Event struct {
	Slot   int
	Time   instant.Instant
	Title  string
	Repeat Repeat
}

// SetEvent stores a calendar reminder. An event without a time or title
// deletes the reminder in its slot.
func (b *Band) SetEvent(ctx context.Context, e Event) error {
	if e.Slot < 0 || e.Slot > 0xff {
		return fmt.Errorf("event slot out of range: %d", e.Slot)
	}
	if e.Time.IsZero() || e.Title == "" {
		return b.send(ctx, chunked.Calendar, []byte{0x0b, byte(e.Slot), 0x00, 0x00, 0x00, 0x00})
	}
	rhythm := e.Repeat
	if rhythm == Weekly {
		rhythm = Repeat(DayOf(e.Time.Weekday()))
	}
	if rhythm < 0 || rhythm > Yearly {
		return fmt.Errorf("invalid event repetition: %#x", int(e.Repeat))
	}
	flags := binary.LittleEndian.AppendUint16(nil, uint16(0x09+(rhythm<<5)))
	return b.send(ctx, chunked.Calendar,
		[]byte{0x0b, byte(e.Slot)}, flags, nul2, e.Time.MustEncode("YmdHis"), []byte(e.Title), nul,
	)
}

// DeleteEvent deletes the calendar reminder in slot.
func (b *Band) DeleteEvent(ctx context.Context, slot int) error {
	return b.SetEvent(ctx, Event{Slot: slot})
}

// WatchSilentMode calls h with the band's silent mode each time the
// wearer toggles it, confirming the change to the band after each call.
// If mu is not nil it is held for each confirmation write so that the
// write does not interleave with other transfers sharing mu.
// It returns when h returns false or ctx is done.
func (b *Band) WatchSilentMode(ctx context.Context, mu sync.Locker, h func(on bool) bool) error {
	events, err := b.link.Subscribe(ctx, gatt.Events)
	if err != nil {
		return err
	}
	defer events.Close()
	for {
		resp, err := events.Next(ctx, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(resp) < 2 || resp[0] != eventSilentMode {
			continue
		}
		on := resp[1] != 0
		b.log.WithFields(logrus.Fields{"silent": on}).Debug("silent mode toggled")
		keep := h(on)
		if mu != nil {
			mu.Lock()
		}
		err = b.display(context.WithoutCancel(ctx), displaySilentMode, resp[1])
		if mu != nil {
			mu.Unlock()
		}
		if err != nil {
			return err
		}
		if !keep {
			return nil
		}
	}
}
