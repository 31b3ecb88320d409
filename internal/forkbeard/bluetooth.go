// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package forkbeard provides a gatt.Transport over a tinygo Bluetooth
// connection, and discovery of the device to connect to.
package forkbeard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/miband/internal/logutil"
)

// ErrNotFound is returned when discovery does not see the device.
var ErrNotFound = errors.New("device not found")

// ParseAddress parses a MAC address or platform device identifier.
func ParseAddress(s string) (bluetooth.Address, error) {
	var addr bluetooth.Address
	err := addr.UnmarshalText([]byte(s))
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid device address %q: %w", s, err)
	}
	return addr, nil
}

// Discover scans for the device at addr and connects to it. The scan and
// the connection attempt are each bounded by timeout.
func Discover(ctx context.Context, adapter *bluetooth.Adapter, addr bluetooth.Address, timeout time.Duration, log logrus.FieldLogger) (bluetooth.Device, error) {
	log = logutil.OrDiscard(log)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make(chan bluetooth.ScanResult, 1)
	scanned := make(chan error, 1)
	go func() {
		scanned <- adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if r.Address != addr {
				return
			}
			select {
			case found <- r:
				a.StopScan()
			default:
			}
		})
	}()
	log.WithField("address", addr.String()).Info("scanning")
	select {
	case err := <-scanned:
		if err != nil {
			return bluetooth.Device{}, fmt.Errorf("failed to scan: %w", err)
		}
	case <-ctx.Done():
		adapter.StopScan()
		<-scanned
	}

	var r bluetooth.ScanResult
	select {
	case r = <-found:
	default:
		return bluetooth.Device{}, fmt.Errorf("%w: %s after %v", ErrNotFound, addr.String(), timeout)
	}
	log.WithFields(logrus.Fields{
		"address": r.Address.String(),
		"rssi":    r.RSSI,
		"name":    r.LocalName(),
	}).Info("found device")
	dev, err := adapter.Connect(r.Address, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(timeout),
	})
	if err != nil {
		return bluetooth.Device{}, fmt.Errorf("failed to connect to %s: %w", r.Address.String(), err)
	}
	return dev, nil
}

// ReadCharacteristic reads data from a Bluetooth characteristic.
func ReadCharacteristic(char bluetooth.DeviceCharacteristic) ([]byte, error) {
	mtu, err := char.GetMTU()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mtu of characteristic: %w", err)
	}
	buf := make([]byte, mtu)
	n, err := char.Read(buf)
	if err != nil && err != io.EOF {
		return buf[:n], fmt.Errorf("failed to read response from characteristic: %w", err)
	}
	return buf[:n], nil
}
