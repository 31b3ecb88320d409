// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forkbeard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/internal/logutil"
)

// Transport is a gatt.Transport over a connected device.
//
// tinygo does not portably expose characteristic properties, so
// Channels reports no capabilities and links fall back to their table.
type Transport struct {
	dev bluetooth.Device
	log logrus.FieldLogger

	// chars holds discovered characteristics by address. tinygo keeps
	// notification state on the characteristic value, so every use
	// must go through the same pointer.
	mu    sync.Mutex
	chars map[uuid.UUID]*bluetooth.DeviceCharacteristic

	// notifiers holds the notification fan-out for each characteristic
	// keyed by its canonical UUID string. A characteristic has at most
	// one notification handler in tinygo.
	notifiers *hashmap.Map[string, *notifier]
}

var _ gatt.Transport = (*Transport)(nil)

// NewTransport returns a Transport for dev.
func NewTransport(dev bluetooth.Device, log logrus.FieldLogger) *Transport {
	return &Transport{
		dev:       dev,
		log:       logutil.OrDiscard(log),
		notifiers: hashmap.New[string, *notifier](),
	}
}

// Channels implements gatt.Transport.
func (t *Transport) Channels(ctx context.Context) ([]gatt.Info, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chars == nil {
		srvs, err := t.dev.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to discover services: %w", err)
		}
		chars := make(map[uuid.UUID]*bluetooth.DeviceCharacteristic)
		for _, s := range srvs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cs, err := s.DiscoverCharacteristics(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to discover characteristics of %s: %w", s.UUID().String(), err)
			}
			for i := range cs {
				id, err := uuid.Parse(cs[i].UUID().String())
				if err != nil {
					continue
				}
				chars[id] = &cs[i]
			}
		}
		t.chars = chars
	}
	infos := make([]gatt.Info, 0, len(t.chars))
	for id := range t.chars {
		infos = append(infos, gatt.Info{ID: id})
	}
	return infos, nil
}

func (t *Transport) char(id uuid.UUID) (*bluetooth.DeviceCharacteristic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chars[id]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not discovered", id)
	}
	return c, nil
}

// Read implements gatt.Transport.
func (t *Transport) Read(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := t.char(id)
	if err != nil {
		return nil, err
	}
	return ReadCharacteristic(*c)
}

// Write implements gatt.Transport.
func (t *Transport) Write(ctx context.Context, id uuid.UUID, data []byte, withResponse bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := t.char(id)
	if err != nil {
		return err
	}
	if withResponse {
		_, err = writeWithResponse(c, data)
	} else {
		_, err = c.WriteWithoutResponse(data)
	}
	return err
}

// Subscribe implements gatt.Transport.
func (t *Transport) Subscribe(ctx context.Context, id uuid.UUID, fn func([]byte)) (cancel func() error, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := t.char(id)
	if err != nil {
		return nil, err
	}
	n, _ := t.notifiers.GetOrInsert(id.String(), newNotifier())
	h, err := n.add(c, fn)
	if err != nil {
		return nil, fmt.Errorf("failed to enable notifications for %s: %w", id, err)
	}
	return func() error { return n.remove(h) }, nil
}

// Close disables notifications and disconnects from the device.
func (t *Transport) Close() error {
	var errs []error
	t.notifiers.Range(func(key string, n *notifier) bool {
		errs = append(errs, n.close())
		return true
	})
	errs = append(errs, t.dev.Disconnect())
	return errors.Join(errs...)
}

// notifiable is the notification switch of a characteristic.
// A nil callback disables notifications.
type notifiable interface {
	EnableNotifications(callback func(buf []byte)) error
}

// notifier fans a characteristic's notifications out to its subscribers.
type notifier struct {
	mu sync.Mutex
	// ch is the characteristic notifications were enabled
	// on, or nil when they are disabled.
	ch       notifiable
	next     int
	handlers map[int]func([]byte)
}

func newNotifier() *notifier {
	return &notifier{handlers: make(map[int]func([]byte))}
}

// add registers fn, enabling notifications on ch if no other
// subscriber holds them.
func (n *notifier) add(ch notifiable, fn func([]byte)) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch == nil {
		err := ch.EnableNotifications(n.dispatch)
		if err != nil {
			return 0, err
		}
		n.ch = ch
	}
	h := n.next
	n.next++
	n.handlers[h] = fn
	return h, nil
}

// remove unregisters the handler h, disabling notifications
// when it was the last.
func (n *notifier) remove(h int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.handlers[h]; !ok {
		return nil
	}
	delete(n.handlers, h)
	if len(n.handlers) != 0 {
		return nil
	}
	return n.disable()
}

// close drops all handlers and disables notifications.
func (n *notifier) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	clear(n.handlers)
	return n.disable()
}

// disable must be called with n.mu held.
func (n *notifier) disable() error {
	if n.ch == nil {
		return nil
	}
	ch := n.ch
	n.ch = nil
	return ch.EnableNotifications(nil)
}

func (n *notifier) dispatch(buf []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, h := range n.handlers {
		h(buf)
	}
}
