// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forkbeard

import "tinygo.org/x/bluetooth"

// writeWithResponse writes data to c. BlueZ characteristics in tinygo
// only expose command writes, so the write is sent without response
// and acknowledgement is left to the band's notification protocol.
func writeWithResponse(c *bluetooth.DeviceCharacteristic, data []byte) (int, error) {
	return c.WriteWithoutResponse(data)
}
