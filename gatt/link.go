// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gatt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/internal/logutil"
)

// Link is the logical channel view of a connected device. A Link
// carries one exchange at a time; callers must not issue overlapping
// requests on the same channel.
type Link struct {
	t     Transport
	log   logrus.FieldLogger
	table []Spec
	queue int

	present map[uuid.UUID]Capability
}

// Option configures a Link.
type Option func(*Link)

// WithLogger sets the Link's logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(k *Link) { k.log = l }
}

// WithTable replaces the default channel table.
func WithTable(t []Spec) Option {
	return func(k *Link) { k.table = t }
}

// WithQueueSize sets the default subscription queue size.
func WithQueueSize(n int) Option {
	return func(k *Link) { k.queue = n }
}

// Open returns a Link over t after checking the channel table against
// the channels the device exposes. Table channels missing from the
// device are not an error here; using them fails with ErrChannelNotFound.
func Open(ctx context.Context, t Transport, opts ...Option) (*Link, error) {
	l := &Link{
		t:     t,
		table: Channels,
		queue: DefaultQueueSize,
	}
	for _, o := range opts {
		o(l)
	}
	l.log = logutil.OrDiscard(l.log)

	infos, err := t.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list device channels: %w", err)
	}
	l.present = make(map[uuid.UUID]Capability, len(infos))
	for _, info := range infos {
		l.present[info.ID] = info.Capabilities
	}
	var missing []string
	for _, spec := range l.table {
		if _, ok := l.present[spec.ID]; !ok {
			missing = append(missing, string(spec.Name))
		}
	}
	l.log.WithFields(logrus.Fields{
		"channels": len(infos),
		"missing":  missing,
	}).Debug("channel table validated")
	return l, nil
}

// Transport returns the underlying transport.
func (l *Link) Transport() Transport { return l.t }

// Resolve returns the table entry for ch and the capabilities it is
// used with.
func (l *Link) Resolve(ch Channel) (Spec, Capability, error) {
	spec, err := Lookup(l.table, ch)
	if err != nil {
		return Spec{}, 0, err
	}
	caps, ok := l.present[spec.ID]
	if !ok {
		return Spec{}, 0, &NotFoundError{Channel: ch, ID: spec.ID}
	}
	if caps == 0 {
		caps = spec.Caps
	}
	return spec, caps, nil
}

// Has reports whether ch is present on the device.
func (l *Link) Has(ch Channel) bool {
	_, _, err := l.Resolve(ch)
	return err == nil
}

// Read reads the value of ch.
func (l *Link) Read(ctx context.Context, ch Channel) ([]byte, error) {
	spec, _, err := l.Resolve(ch)
	if err != nil {
		return nil, err
	}
	buf, err := l.t.Read(ctx, spec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ch, err)
	}
	l.log.WithFields(logrus.Fields{"channel": ch, "data": fmt.Sprintf("%x", buf)}).Debug("read")
	return buf, nil
}

// Write concatenates parts and writes them to ch. Channels that accept
// writes without response are written without waiting for an
// acknowledgement.
func (l *Link) Write(ctx context.Context, ch Channel, parts ...[]byte) error {
	spec, caps, err := l.Resolve(ch)
	if err != nil {
		return err
	}
	data := bytes.Join(parts, nil)
	withResponse := caps&CapWriteWithoutResponse == 0
	l.log.WithFields(logrus.Fields{
		"channel":  ch,
		"data":     fmt.Sprintf("%x", data),
		"response": withResponse,
	}).Debug("write")
	err = l.t.Write(ctx, spec.ID, data, withResponse)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", ch, err)
	}
	return nil
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	queue int
}

// WithQueue sets the number of notifications held before dropping.
func WithQueue(n int) SubscribeOption {
	return func(c *subscribeConfig) { c.queue = n }
}

// Subscribe enables notifications on ch. The returned Subscription must
// be closed by the caller.
func (l *Link) Subscribe(ctx context.Context, ch Channel, opts ...SubscribeOption) (*Subscription, error) {
	spec, _, err := l.Resolve(ch)
	if err != nil {
		return nil, err
	}
	cfg := subscribeConfig{queue: l.queue}
	for _, o := range opts {
		o(&cfg)
	}
	s := newSubscription(spec.Name, cfg.queue, l.log)
	cancel, err := l.t.Subscribe(ctx, spec.ID, func(buf []byte) {
		l.log.WithFields(logrus.Fields{"channel": spec.Name, "data": fmt.Sprintf("%x", buf)}).Trace("notify")
		s.push(buf)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ch, err)
	}
	s.cancel = cancel
	return s, nil
}
