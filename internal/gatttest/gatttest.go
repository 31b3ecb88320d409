// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gatttest provides a scripted in-memory gatt.Transport.
package gatttest

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kortschak/miband/gatt"
)

// Write is a recorded write.
type Write struct {
	Channel      gatt.Channel
	Data         []byte
	WithResponse bool
}

func (w Write) String() string { return fmt.Sprintf("%s:%x", w.Channel, w.Data) }

// Notification is a value delivered to subscribers of Channel.
type Notification struct {
	Channel gatt.Channel
	Data    []byte
}

// Step is one scripted exchange. When the next write is to On and starts
// with Want, the Notify values are delivered before the write returns.
// A nil Want matches any payload.
type Step struct {
	On     gatt.Channel
	Want   []byte
	Notify []Notification
	Err    error
}

// Device is a fake device. Notifications are delivered synchronously
// to subscribers.
type Device struct {
	mu       sync.Mutex
	table    []gatt.Spec
	names    map[uuid.UUID]gatt.Channel
	caps     map[uuid.UUID]gatt.Capability
	values   map[uuid.UUID][]byte
	handlers map[uuid.UUID]map[int]func([]byte)
	nextSub  int
	writes   []Write
	script   []Step
	misses   []Write

	// OnWrite, if not nil, is called after each write is recorded
	// and after any scripted step has been applied.
	OnWrite func(d *Device, w Write) error
}

// New returns a Device exposing the named channels of gatt.Channels, or
// every channel in the table if none are named. Capabilities are
// reported as declared in the table.
func New(channels ...gatt.Channel) *Device {
	d := &Device{
		table:    gatt.Channels,
		names:    make(map[uuid.UUID]gatt.Channel),
		caps:     make(map[uuid.UUID]gatt.Capability),
		values:   make(map[uuid.UUID][]byte),
		handlers: make(map[uuid.UUID]map[int]func([]byte)),
	}
	if len(channels) == 0 {
		for _, s := range d.table {
			channels = append(channels, s.Name)
		}
	}
	for _, ch := range channels {
		s := d.spec(ch)
		d.names[s.ID] = s.Name
		d.caps[s.ID] = s.Caps
	}
	return d
}

func (d *Device) spec(ch gatt.Channel) gatt.Spec {
	s, err := gatt.Lookup(d.table, ch)
	if err != nil {
		panic(err)
	}
	return s
}

// SetValue sets the value returned by reads of ch.
func (d *Device) SetValue(ch gatt.Channel, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[d.spec(ch).ID] = data
}

// Script appends steps to the device's script.
func (d *Device) Script(steps ...Step) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, steps...)
}

// Remaining returns the number of unconsumed script steps.
func (d *Device) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.script)
}

// Writes returns the recorded writes.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Write(nil), d.writes...)
}

// Unexpected returns writes that did not match the next script step
// while the script was not empty.
func (d *Device) Unexpected() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Write(nil), d.misses...)
}

// Subscribed reports whether ch has an active subscriber.
func (d *Device) Subscribed(ch gatt.Channel) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[d.spec(ch).ID]) != 0
}

// Notify delivers each data value to the subscribers of ch.
func (d *Device) Notify(ch gatt.Channel, data ...[]byte) {
	id := d.spec(ch).ID
	for _, b := range data {
		d.mu.Lock()
		fns := make([]func([]byte), 0, len(d.handlers[id]))
		for _, fn := range d.handlers[id] {
			fns = append(fns, fn)
		}
		d.mu.Unlock()
		for _, fn := range fns {
			fn(b)
		}
	}
}

// Channels implements gatt.Transport.
func (d *Device) Channels(ctx context.Context) ([]gatt.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	infos := make([]gatt.Info, 0, len(d.names))
	for id := range d.names {
		infos = append(infos, gatt.Info{ID: id, Capabilities: d.caps[id]})
	}
	return infos, nil
}

// Read implements gatt.Transport.
func (d *Device) Read(ctx context.Context, id uuid.UUID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.names[id]; !ok {
		return nil, fmt.Errorf("no characteristic %s", id)
	}
	return bytes.Clone(d.values[id]), nil
}

// Write implements gatt.Transport.
func (d *Device) Write(ctx context.Context, id uuid.UUID, data []byte, withResponse bool) error {
	d.mu.Lock()
	name, ok := d.names[id]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("no characteristic %s", id)
	}
	w := Write{Channel: name, Data: bytes.Clone(data), WithResponse: withResponse}
	d.writes = append(d.writes, w)
	var step *Step
	if len(d.script) != 0 {
		next := d.script[0]
		if d.spec(next.On).ID == id && (next.Want == nil || bytes.HasPrefix(data, next.Want)) {
			step = &next
			d.script = d.script[1:]
		} else {
			d.misses = append(d.misses, w)
		}
	}
	onWrite := d.OnWrite
	d.mu.Unlock()

	if step != nil {
		if step.Err != nil {
			return step.Err
		}
		for _, n := range step.Notify {
			d.Notify(n.Channel, n.Data)
		}
	}
	if onWrite != nil {
		return onWrite(d, w)
	}
	return nil
}

// Subscribe implements gatt.Transport.
func (d *Device) Subscribe(ctx context.Context, id uuid.UUID, fn func([]byte)) (cancel func() error, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.names[id]; !ok {
		return nil, fmt.Errorf("no characteristic %s", id)
	}
	if d.handlers[id] == nil {
		d.handlers[id] = make(map[int]func([]byte))
	}
	key := d.nextSub
	d.nextSub++
	d.handlers[id][key] = fn
	return func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers[id], key)
		return nil
	}, nil
}

// Link opens a gatt.Link on d, panicking on failure.
func (d *Device) Link(opts ...gatt.Option) *gatt.Link {
	l, err := gatt.Open(context.Background(), d, opts...)
	if err != nil {
		panic(err)
	}
	return l
}
