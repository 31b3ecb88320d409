// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package motion implements the band's raw accelerometer stream.
//
// The stream is controlled through the sensor control channel and
// delivered as frames on the sensor data channel.
package motion

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Command is a sensor control command.
type Command uint8

const (
	Configure Command = 0x01
	Start     Command = 0x02
	Stop      Command = 0x03
)

// MeasureType is a sensor stream data type.
type MeasureType uint8

const AccType MeasureType = 0x01

// AccSampleFreq is an accelerometer sample frequency in Hz.
type AccSampleFreq uint8

const AccSampleFreq25 AccSampleFreq = 25

// FrameType is the type of a sensor data frame.
type FrameType uint8

// AccFrameType is the frame type of accelerometer samples.
const AccFrameType FrameType = 0x01

const (
	frameTypeOffset = 0
	counterOffset   = 1
	dataOffset      = 2

	int16Size  = 2
	sampleSize = 3 * int16Size

	// scale is the number of raw units per g.
	scale = 256
)

// ErrFrameType is returned when decoding a frame that does not hold
// accelerometer samples.
var ErrFrameType = errors.New("not an accelerometer frame")

// command returns the wire form of a control command.
func command(c Command, args ...byte) []byte {
	return append([]byte{byte(c)}, args...)
}

// Acc is an acceleration measurement in units of g.
type Acc struct {
	X, Y, Z float64
}

func (m *Acc) UnmarshalBinary(data []byte) error {
	if len(data) < sampleSize {
		return fmt.Errorf("acceleration sample too short: %#x", data)
	}
	*m = Acc{
		X: float64(int16(binary.LittleEndian.Uint16(data))) / scale,
		Y: float64(int16(binary.LittleEndian.Uint16(data[int16Size:]))) / scale,
		Z: float64(int16(binary.LittleEndian.Uint16(data[2*int16Size:]))) / scale,
	}
	return nil
}

// Frame is a sensor data frame of accelerometer samples.
type Frame struct {
	Counter uint8
	Samples []Acc
}

// UnmarshalBinary decodes a sensor data frame. Trailing bytes that do not
// make up a whole sample are ignored.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < dataOffset {
		return fmt.Errorf("sensor frame too short: %#x", data)
	}
	if FrameType(data[frameTypeOffset]) != AccFrameType {
		return fmt.Errorf("%w: type %#x", ErrFrameType, data[frameTypeOffset])
	}
	body := data[dataOffset:]
	samples := make([]Acc, 0, len(body)/sampleSize)
	for i := 0; i+sampleSize <= len(body); i += sampleSize {
		var a Acc
		err := a.UnmarshalBinary(body[i:])
		if err != nil {
			return err
		}
		samples = append(samples, a)
	}
	*f = Frame{Counter: data[counterOffset], Samples: samples}
	return nil
}
