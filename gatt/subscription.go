// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gatt

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/internal/ring"
)

// DefaultQueueSize is the number of undelivered notifications a
// subscription holds before dropping the oldest.
const DefaultQueueSize = 64

// Subscription is a cancellable handle on a channel's notifications.
// Notifications are queued until read with Next or TryNext.
type Subscription struct {
	ch  Channel
	log logrus.FieldLogger

	mu    sync.Mutex
	queue *ring.Buffer[[]byte]

	ready chan struct{}
	done  chan struct{}

	closeOnce sync.Once
	cancel    func() error
	err       error
}

func newSubscription(ch Channel, size int, log logrus.FieldLogger) *Subscription {
	return &Subscription{
		ch:    ch,
		log:   log,
		queue: ring.NewBuffer[[]byte](size),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push is the transport notification callback.
func (s *Subscription) push(buf []byte) {
	s.mu.Lock()
	dropped := s.queue.Push(bytes.Clone(buf))
	n := s.queue.Dropped()
	s.mu.Unlock()
	if dropped {
		s.log.WithFields(logrus.Fields{
			"channel": s.ch,
			"dropped": n,
		}).Warn("notification queue full, dropped oldest")
	}
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Channel returns the subscribed channel.
func (s *Subscription) Channel() Channel { return s.ch }

// Ready returns a channel that receives when notifications may be
// available to TryNext.
func (s *Subscription) Ready() <-chan struct{} { return s.ready }

// Done returns a channel that is closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// TryNext returns the oldest queued notification without blocking.
func (s *Subscription) TryNext() ([]byte, bool) {
	s.mu.Lock()
	buf, ok := s.queue.Pop()
	more := s.queue.Len() != 0
	s.mu.Unlock()
	if more {
		s.signal()
	}
	return buf, ok
}

// Dropped returns the number of notifications lost to queue overflow.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Dropped()
}

// Next waits for the next notification. If timeout is positive and
// elapses first, the returned error wraps ErrTimeout. A zero timeout
// waits until ctx is done or the subscription is closed.
func (s *Subscription) Next(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		if buf, ok := s.TryNext(); ok {
			return buf, nil
		}
		select {
		case <-s.ready:
		case <-s.done:
			if buf, ok := s.TryNext(); ok {
				return buf, nil
			}
			return nil, ErrClosed
		case <-expired:
			return nil, fmt.Errorf("%w after %v waiting for %s", ErrTimeout, timeout, s.ch)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close disables notifications. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.err = s.cancel()
		}
	})
	return s.err
}
