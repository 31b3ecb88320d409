// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gatt provides logical channel access to the band's GATT
// characteristics over an abstract transport, and the correlated
// write-and-wait exchanges that the band's protocols are built from.
package gatt

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Capability is the set of operations a characteristic supports.
type Capability uint8

const (
	CapRead Capability = 1 << iota
	CapWrite
	CapWriteWithoutResponse
	CapNotify
)

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var s strings.Builder
	for _, f := range []struct {
		c    Capability
		name string
	}{
		{CapRead, "read"},
		{CapWrite, "write"},
		{CapWriteWithoutResponse, "write-without-response"},
		{CapNotify, "notify"},
	} {
		if c&f.c == 0 {
			continue
		}
		if s.Len() != 0 {
			s.WriteByte('|')
		}
		s.WriteString(f.name)
	}
	return s.String()
}

// Info describes a characteristic reported by a transport. Capabilities
// is zero if the transport cannot report them.
type Info struct {
	ID           uuid.UUID
	Capabilities Capability
}

// Transport is the attribute access capability of a connected device.
// Implementations must not block in notification callbacks.
type Transport interface {
	// Channels returns the characteristics exposed by the device.
	Channels(ctx context.Context) ([]Info, error)
	// Read returns the value of a characteristic.
	Read(ctx context.Context, id uuid.UUID) ([]byte, error)
	// Write writes data to a characteristic, waiting for the
	// device's acknowledgement if withResponse is true.
	Write(ctx context.Context, id uuid.UUID, data []byte, withResponse bool) error
	// Subscribe enables notifications from a characteristic,
	// calling fn with each value until cancel is called.
	Subscribe(ctx context.Context, id uuid.UUID, fn func([]byte)) (cancel func() error, err error)
}

// Channel is a logical channel name, a short 16-bit identifier or a
// canonical UUID string.
type Channel string

// Logical channels of the band.
const (
	SensorControl    Channel = "sensor_control"
	SensorData       Channel = "sensor_data"
	Configuration    Channel = "configuration"
	Fetch            Channel = "fetch"
	ActivityData     Channel = "activity_data"
	Battery          Channel = "battery"
	Steps            Channel = "steps"
	UserSettings     Channel = "user_settings"
	Auth             Channel = "auth"
	Events           Channel = "events"
	ChunkedTransfer  Channel = "chunked_transfer"
	CurrentTime      Channel = "current_time"
	AlertLevel       Channel = "alert_level"
	HeartRate        Channel = "heart_rate_measurement"
	HeartRateControl Channel = "heart_rate_control"
	SoftwareRevision Channel = "software_revision"
	HardwareRevision Channel = "hardware_revision"
	SerialNumber     Channel = "serial_number"
	SystemID         Channel = "system_id"
	PnPID            Channel = "pnp_id"
)

// Spec is a channel table entry. Caps is the capability set assumed when
// the transport does not report one.
type Spec struct {
	Name  Channel
	Short string
	ID    uuid.UUID
	Caps  Capability
}

const (
	vendorBase = "0000%s-0000-3512-2118-0009af100700"
	sigBase    = "0000%s-0000-1000-8000-00805f9b34fb"
)

func vendor(short string) uuid.UUID { return uuid.MustParse(fmt.Sprintf(vendorBase, short)) }
func sig(short string) uuid.UUID    { return uuid.MustParse(fmt.Sprintf(sigBase, short)) }

// Channels is the band's channel table.
var Channels = []Spec{
	{SensorControl, "0001", vendor("0001"), CapWriteWithoutResponse | CapNotify},
	{SensorData, "0002", vendor("0002"), CapNotify},
	{Configuration, "0003", vendor("0003"), CapWrite | CapNotify},
	{Fetch, "0004", vendor("0004"), CapWrite | CapNotify},
	{ActivityData, "0005", vendor("0005"), CapNotify},
	{Battery, "0006", vendor("0006"), CapRead | CapNotify},
	{Steps, "0007", vendor("0007"), CapRead | CapNotify},
	{UserSettings, "0008", vendor("0008"), CapWrite | CapNotify},
	{Auth, "0009", vendor("0009"), CapWriteWithoutResponse | CapNotify},
	{Events, "0010", vendor("0010"), CapNotify},
	{ChunkedTransfer, "0020", vendor("0020"), CapWrite | CapNotify},
	{CurrentTime, "2a2b", sig("2a2b"), CapRead | CapWrite | CapNotify},
	{AlertLevel, "2a06", sig("2a06"), CapWriteWithoutResponse},
	{HeartRate, "2a37", sig("2a37"), CapNotify},
	{HeartRateControl, "2a39", sig("2a39"), CapRead | CapWrite},
	{SoftwareRevision, "2a28", sig("2a28"), CapRead},
	{HardwareRevision, "2a27", sig("2a27"), CapRead},
	{SerialNumber, "2a25", sig("2a25"), CapRead},
	{SystemID, "2a23", sig("2a23"), CapRead},
	{PnPID, "2a50", sig("2a50"), CapRead},
}

var shortPattern = regexp.MustCompile(`^(?:0[xX])?([0-9a-fA-F]{4})$`)

// Lookup resolves a channel name, short identifier or canonical UUID in
// table. Short identifiers and UUIDs that are not in the table resolve
// to an entry with no assumed capabilities, short identifiers being
// expanded with the Bluetooth SIG base UUID.
func Lookup(table []Spec, ch Channel) (Spec, error) {
	s := strings.ToLower(strings.TrimSpace(string(ch)))
	short := strings.TrimPrefix(s, "0x")
	for _, spec := range table {
		if string(spec.Name) == s || spec.Short == short {
			return spec, nil
		}
	}
	if id, err := uuid.Parse(s); err == nil {
		for _, spec := range table {
			if spec.ID == id {
				return spec, nil
			}
		}
		return Spec{Name: ch, ID: id}, nil
	}
	if m := shortPattern.FindStringSubmatch(s); m != nil {
		return Spec{Name: ch, Short: m[1], ID: sig(m[1])}, nil
	}
	return Spec{}, &NotFoundError{Channel: ch}
}
