// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kortschak/miband/gatt"
)

const (
	// RestartInterval is the interval after which the band stops
	// streaming unless the stream is restarted.
	RestartInterval = 30 * time.Second

	dataQueue = 256
)

// drainDelay is the time allowed for in-flight frames to arrive after
// the stream is stopped.
var drainDelay = 500 * time.Millisecond

// Listener implements sensor data notification listening.
type Listener struct {
	link *gatt.Link
	sub  *gatt.Subscription
	done chan struct{}
}

// NewListener returns a new Listener on link. The h function is called
// for each accelerometer frame, or with the decoding error for frames
// that are malformed, until the Listener is closed or ctx is done.
// Frames of other types are ignored.
func NewListener(ctx context.Context, link *gatt.Link, h func(Frame, error)) (*Listener, error) {
	sub, err := link.Subscribe(ctx, gatt.SensorData, gatt.WithQueue(dataQueue))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to sensor data: %w", err)
	}
	l := &Listener{link: link, sub: sub, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for {
			buf, err := sub.Next(ctx, 0)
			if err != nil {
				return
			}
			var f Frame
			err = f.UnmarshalBinary(buf)
			if errors.Is(err, ErrFrameType) {
				continue
			}
			h(f, err)
		}
	}()
	return l, nil
}

// Start configures and starts the accelerometer stream.
func (l *Listener) Start(ctx context.Context) error {
	err := l.link.Write(ctx, gatt.SensorControl, command(Configure, byte(AccType), byte(AccSampleFreq25)))
	if err != nil {
		return fmt.Errorf("failed to configure accelerometer: %w", err)
	}
	err = l.link.Write(ctx, gatt.SensorControl, command(Start))
	if err != nil {
		return fmt.Errorf("failed to start accelerometer: %w", err)
	}
	return nil
}

// Stop stops the accelerometer stream.
func (l *Listener) Stop(ctx context.Context) error {
	err := l.link.Write(ctx, gatt.SensorControl, command(Stop))
	if err != nil {
		return fmt.Errorf("failed to stop accelerometer: %w", err)
	}
	return nil
}

// Close disables sensor data notifications and waits for the handler to
// return. Frames already received are delivered before Close returns.
func (l *Listener) Close() error {
	err := l.sub.Close()
	<-l.done
	return err
}

// Stream streams acceleration samples to h for the duration d or until
// ctx is done, restarting the band's stream as needed.
func Stream(ctx context.Context, link *gatt.Link, d time.Duration, h func(Acc)) error {
	var frameErr error
	l, err := NewListener(ctx, link, func(f Frame, err error) {
		if err != nil {
			frameErr = err
			return
		}
		for _, a := range f.Samples {
			h(a)
		}
	})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(d)
	for {
		err = l.Start(ctx)
		if err != nil {
			break
		}
		wait := min(time.Until(deadline), RestartInterval)
		if wait <= 0 {
			break
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			break
		}
	}
	if ctx.Err() != nil {
		err = nil
	}

	stopCtx := context.WithoutCancel(ctx)
	stopErr := l.Stop(stopCtx)
	time.Sleep(drainDelay)
	closeErr := l.Close()
	return errors.Join(err, stopErr, closeErr, frameErr)
}
