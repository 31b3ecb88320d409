// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heart implements the band's heart rate measurements, reported
// through the standard 2a37 heart rate measurement characteristic.
package heart

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/kortschak/miband/gatt"
)

// Heart rate control commands.
var (
	manualStart = []byte{0x15, 0x02, 0x01}
	manualStop  = []byte{0x15, 0x02, 0x00}
	liveStart   = []byte{0x15, 0x01, 0x01}
	liveStop    = []byte{0x15, 0x01, 0x00}
	livePing    = []byte{0x16}
)

const (
	// DefaultMeasureTimeout is the default wait for a manual measurement.
	DefaultMeasureTimeout = 20 * time.Second
	// PingInterval is the interval at which continuous measurement must
	// be renewed.
	PingInterval = 15 * time.Second
)

// ErrNoContact is returned for measurements made without skin contact.
var ErrNoContact = errors.New("no sensor contact")

// Rate is a heart rate measurement.
type Rate struct {
	HR               uint16
	RR               []time.Duration
	Energy           int // kJ
	EnergyExpended   bool
	Contact          bool
	ContactSupported bool
}

func (m *Rate) UnmarshalBinary(data []byte) error {
	// https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/

	// 3.1.1.1. Flags Field
	// | 0x10 | 0x8 | 0x4  0x2 | 0x1 |
	// |  rr  | nrg | scs  cnt | fmt |
	if len(data) < 2 {
		return fmt.Errorf("heart rate measurement too short: %#x", data)
	}
	flags := data[0]
	hrFormat := int(flags & 0x01)
	contact := flags&0x6 == 0x6
	contactSupported := flags&0x4 != 0
	energyExpended := flags&0x8 != 0
	rrPresent := flags&0x10 != 0
	if contactSupported && !contact {
		*m = Rate{ContactSupported: true}
		return ErrNoContact
	}

	need := 2 + hrFormat
	if energyExpended {
		need += 2
	}
	if len(data) < need {
		return fmt.Errorf("heart rate measurement too short for flags %#x: %#x", flags, data)
	}
	offset := 1
	var hr uint16
	if hrFormat == 1 {
		hr = binary.LittleEndian.Uint16(data[offset:])
	} else {
		hr = uint16(data[offset])
	}
	offset += 1 + hrFormat

	energy := -1
	if energyExpended {
		energy = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	}

	var rr []time.Duration
	if rrPresent {
		rrData := data[offset:]
		rr = make([]time.Duration, 0, len(rrData)/2)
		for i := 0; i+1 < len(rrData); i += 2 {
			rr = append(rr, time.Duration(binary.LittleEndian.Uint16(rrData[i:]))*time.Second/1024)
		}
	}

	*m = Rate{
		HR:               hr,
		RR:               rr,
		Energy:           energy,
		EnergyExpended:   energyExpended,
		Contact:          contact,
		ContactSupported: contactSupported,
	}
	return nil
}

// Measure takes a single manual heart rate measurement, waiting at most
// timeout for the result.
func Measure(ctx context.Context, link *gatt.Link, timeout time.Duration) (Rate, error) {
	if timeout <= 0 {
		timeout = DefaultMeasureTimeout
	}
	sub, err := link.Subscribe(ctx, gatt.HeartRate)
	if err != nil {
		return Rate{}, err
	}
	defer sub.Close()
	err = link.Write(ctx, gatt.HeartRateControl, manualStart)
	if err != nil {
		return Rate{}, fmt.Errorf("failed to start measurement: %w", err)
	}
	buf, err := sub.Next(ctx, timeout)
	stopErr := link.Write(context.WithoutCancel(ctx), gatt.HeartRateControl, manualStop)
	if err != nil {
		return Rate{}, errors.Join(fmt.Errorf("failed to get measurement: %w", err), stopErr)
	}
	var r Rate
	err = r.UnmarshalBinary(buf)
	return r, errors.Join(err, stopErr)
}

// RateListener delivers heart rate notifications to a handler.
type RateListener struct {
	sub  *gatt.Subscription
	done chan struct{}
}

// NewRateListener returns a new RateListener on link. The h function is
// called with received heart rate notifications until the listener is
// closed or ctx is done.
func NewRateListener(ctx context.Context, link *gatt.Link, h func(Rate, error)) (*RateListener, error) {
	sub, err := link.Subscribe(ctx, gatt.HeartRate)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to heart rate: %w", err)
	}
	l := &RateListener{sub: sub, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for {
			buf, err := sub.Next(ctx, 0)
			if err != nil {
				return
			}
			var m Rate
			err = m.UnmarshalBinary(buf)
			h(m, err)
		}
	}()
	return l, nil
}

// Close disables heart rate notifications and waits for the handler to
// return.
func (l *RateListener) Close() error {
	err := l.sub.Close()
	<-l.done
	return err
}

// Live runs continuous heart rate measurement, calling h with each
// measurement until ctx is done.
func Live(ctx context.Context, link *gatt.Link, h func(Rate, error)) error {
	l, err := NewRateListener(ctx, link, h)
	if err != nil {
		return err
	}
	err = link.Write(ctx, gatt.HeartRateControl, liveStart)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to start continuous measurement: %w", err), l.Close())
	}
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		err = link.Write(ctx, gatt.HeartRateControl, livePing)
		if err != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
			continue
		}
		break
	}
	if ctx.Err() != nil {
		err = nil
	}
	stopErr := link.Write(context.WithoutCancel(ctx), gatt.HeartRateControl, liveStop)
	return errors.Join(err, stopErr, l.Close())
}
