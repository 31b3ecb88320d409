// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gatt

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Protocol errors.
var (
	// ErrChannelNotFound is matched by errors for channels that are
	// unknown or absent from the connected device.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrTimeout indicates that no notification arrived within the
	// requested bound.
	ErrTimeout = errors.New("timeout")

	// ErrUnexpectedResponse is matched by errors for responses outside
	// the set an exchange understands.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrClosed is returned when waiting on a closed subscription.
	ErrClosed = errors.New("subscription closed")
)

// NotFoundError is returned when a channel cannot be resolved.
type NotFoundError struct {
	Channel Channel
	ID      uuid.UUID // uuid.Nil if the name was not recognised
}

func (e *NotFoundError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("unknown channel %q", string(e.Channel))
	}
	return fmt.Sprintf("channel %q (%s) not present on device", string(e.Channel), e.ID)
}

// Is allows errors.Is to match ErrChannelNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrChannelNotFound
}

// UnexpectedResponseError carries the raw bytes of a response that an
// exchange could not interpret.
type UnexpectedResponseError struct {
	Op   string
	Data []byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %#x", e.Op, e.Data)
}

// Is allows errors.Is to match ErrUnexpectedResponse.
func (e *UnexpectedResponseError) Is(target error) bool {
	return target == ErrUnexpectedResponse
}
