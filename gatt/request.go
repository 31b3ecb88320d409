// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gatt

import (
	"context"
	"errors"
	"time"
)

// Reply is a response handler's decision. The zero Reply continues
// waiting for the next notification.
type Reply struct {
	parts [][]byte
	end   bool
}

// Send returns a Reply that writes parts back to the channel.
func Send(parts ...[]byte) Reply { return Reply{parts: parts} }

// End returns a Reply that terminates the exchange.
func End() Reply { return Reply{end: true} }

// IsEnd reports whether r terminates the exchange.
func (r Reply) IsEnd() bool { return r.end }

// Parts returns the payload r writes.
func (r Reply) Parts() [][]byte { return r.parts }

func (r Reply) hasWrite() bool { return len(r.parts) != 0 }

// WaitNotify subscribes to ch, writes initial if present, and returns the
// first notification. A positive timeout bounds the wait, returning an
// error wrapping ErrTimeout on expiry.
func (l *Link) WaitNotify(ctx context.Context, ch Channel, timeout time.Duration, initial ...[]byte) ([]byte, error) {
	sub, err := l.Subscribe(ctx, ch)
	if err != nil {
		return nil, err
	}
	defer sub.Close()
	if len(initial) != 0 {
		err = l.Write(ctx, ch, initial...)
		if err != nil {
			return nil, err
		}
	}
	return sub.Next(ctx, timeout)
}

// Drive subscribes to ch, writes initial, and passes each notification to
// handler until the handler ends the exchange or returns an error. The
// exchange resolves without error when no notification has arrived for
// maxIdle since the last write or notification; ended reports whether the
// handler terminated it.
func (l *Link) Drive(ctx context.Context, ch Channel, initial Reply, handler func([]byte) (Reply, error), maxIdle time.Duration) (ended bool, err error) {
	sub, err := l.Subscribe(ctx, ch)
	if err != nil {
		return false, err
	}
	defer sub.Close()

	if initial.end {
		return true, nil
	}
	if initial.hasWrite() {
		err = l.Write(ctx, ch, initial.parts...)
		if err != nil {
			return false, err
		}
	}
	for {
		buf, err := sub.Next(ctx, maxIdle)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				l.log.WithField("channel", ch).Debug("exchange idle")
				return false, nil
			}
			return false, err
		}
		r, err := handler(buf)
		if err != nil {
			return false, err
		}
		if r.end {
			return true, nil
		}
		if r.hasWrite() {
			err = l.Write(ctx, ch, r.parts...)
			if err != nil {
				return false, err
			}
		}
	}
}
