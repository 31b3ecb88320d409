// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package forkbeard

import "tinygo.org/x/bluetooth"

// writeWithResponse writes data to c and waits for the peer's
// write response.
func writeWithResponse(c *bluetooth.DeviceCharacteristic, data []byte) (int, error) {
	return c.Write(data)
}
