// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package battery implements reading of the band's battery status.
package battery

import (
	"context"
	"fmt"

	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/instant"
)

// LevelChannel is the standard Bluetooth battery level characteristic.
const LevelChannel gatt.Channel = "2a19"

// Status layout offsets.
const (
	levelOffset          = 1
	chargingOffset       = 2
	lastFullChargeOffset = 3
	lastChargeOffset     = lastFullChargeOffset + instant.ShortSize
	lastLevelOffset      = lastChargeOffset + instant.ShortSize

	statusSize = lastLevelOffset + 1
)

// Charge is a charging event.
type Charge struct {
	Time  instant.Instant
	Level int
}

// Status is the band's battery status.
type Status struct {
	Level          int
	Charging       bool
	LastCharge     Charge
	LastFullCharge Charge
}

func (s *Status) UnmarshalBinary(data []byte) error {
	if len(data) < statusSize {
		return fmt.Errorf("battery status too short: %#x", data)
	}
	full, err := instant.Decode(data[lastFullChargeOffset:lastChargeOffset])
	if err != nil {
		return fmt.Errorf("invalid last full charge date: %w", err)
	}
	last, err := instant.Decode(data[lastChargeOffset:lastLevelOffset])
	if err != nil {
		return fmt.Errorf("invalid last charge date: %w", err)
	}
	*s = Status{
		Level:          int(data[levelOffset]),
		Charging:       data[chargingOffset] != 0,
		LastCharge:     Charge{Time: last, Level: int(data[lastLevelOffset])},
		LastFullCharge: Charge{Time: full, Level: 100},
	}
	return nil
}

// Read returns the battery status of the band on link.
func Read(ctx context.Context, link *gatt.Link) (Status, error) {
	resp, err := link.Read(ctx, gatt.Battery)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read battery status: %w", err)
	}
	var s Status
	err = s.UnmarshalBinary(resp)
	return s, err
}

// Level returns the battery level reported by the standard battery
// service for devices that expose it.
func Level(ctx context.Context, link *gatt.Link) (int, error) {
	// https://www.bluetooth.com/specifications/specs/battery-service/

	resp, err := link.Read(ctx, LevelChannel)
	if err != nil {
		return 0, fmt.Errorf("failed read battery characteristic: %w", err)
	}
	if len(resp) == 0 {
		return 0, fmt.Errorf("empty battery level")
	}
	return int(resp[0]), nil
}
