// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activity

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/internal/logutil"
	"github.com/kortschak/miband/internal/observability"
)

//go:generate go tool golang.org/x/tools/cmd/stringer -type State

// State is the progress of an extraction.
type State int

const (
	Idle State = iota
	RequestWindow
	Empty
	Downloading
	Done
	Aborted
)

// DefaultHistory is how far back an extraction starts when no start is
// given.
const DefaultHistory = 30 * 24 * time.Hour

// Defaults for Fetcher timing.
const (
	DefaultWindowTimeout = time.Second
	DefaultDataIdle      = 30 * time.Second
	DefaultDataQueue     = 1024
)

var (
	cmdRequestWindow = []byte{0x01, 0x01}
	cmdDownload      = []byte{0x02}
	cmdEndSession    = []byte{0x03}

	respWindow   = []byte{0x10, 0x01, 0x01}
	respComplete = []byte{0x10, 0x02, 0x01}
)

// windowHeaderSize is the length of a window response before its start
// date.
const windowHeaderSize = 7

// ErrPartialExtraction is matched by errors from an extraction that
// stopped before the band reported no further data.
var ErrPartialExtraction = errors.New("partial activity extraction")

// PartialError reports an extraction that was aborted. The chunks
// collected before the failure are returned alongside it.
type PartialError struct {
	Chunks int
	Cursor instant.Instant
	Err    error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("activity extraction stopped at %s after %d chunks: %v", e.Cursor, e.Chunks, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Is allows errors.Is to match ErrPartialExtraction.
func (e *PartialError) Is(target error) bool {
	return target == ErrPartialExtraction
}

// Fetcher downloads activity windows from the band.
type Fetcher struct {
	link *gatt.Link
	log  logrus.FieldLogger

	// Offset is the UTC offset, in 15 minute units, used for the
	// default start.
	Offset int
	// WindowTimeout bounds the wait for a window response.
	WindowTimeout time.Duration
	// DataIdle bounds the gap between notifications while downloading.
	// Zero waits until the context is done.
	DataIdle time.Duration
	// DataQueue is the number of undelivered data frames held.
	DataQueue int

	state State
}

// NewFetcher returns a Fetcher using link with default timing.
func NewFetcher(link *gatt.Link, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		link:          link,
		log:           logutil.OrDiscard(log),
		WindowTimeout: DefaultWindowTimeout,
		DataIdle:      DefaultDataIdle,
		DataQueue:     DefaultDataQueue,
	}
}

// State returns the extraction state.
func (f *Fetcher) State() State { return f.state }

// Fetch downloads all activity recorded since the given instant. A zero
// since starts DefaultHistory before now. If the extraction is aborted,
// the chunks collected so far are returned with a *PartialError.
func (f *Fetcher) Fetch(ctx context.Context, since instant.Instant) (chunks []Chunk, err error) {
	if since.IsZero() {
		since = instant.New(time.Now().Add(-DefaultHistory).Truncate(time.Minute), f.Offset)
	}
	data, err := f.link.Subscribe(ctx, gatt.ActivityData, gatt.WithQueue(f.DataQueue))
	if err != nil {
		return nil, err
	}
	defer data.Close()
	ctrl, err := f.link.Subscribe(ctx, gatt.Fetch)
	if err != nil {
		return nil, err
	}
	defer ctrl.Close()

	cursor := since
	defer func() {
		if err != nil {
			f.state = Aborted
			err = &PartialError{Chunks: len(chunks), Cursor: cursor, Err: err}
			f.log.WithFields(logrus.Fields{
				"chunks": len(chunks),
				"cursor": cursor,
				"error":  err,
			}).Warn("activity extraction incomplete")
		}
		endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.WindowTimeout)
		defer cancel()
		if endErr := f.link.Write(endCtx, gatt.Fetch, cmdEndSession); endErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to end activity session: %w", endErr))
		}
	}()

	var (
		res   []byte
		start instant.Instant
		buf   []byte
		prev  struct {
			start   instant.Instant
			minutes int
		}
	)
	for {
		f.state = RequestWindow
		err = f.link.Write(ctx, gatt.Fetch, cmdRequestWindow, cursor.MustEncode("YmdHi0e"))
		if err != nil {
			return chunks, err
		}
		res, err = ctrl.Next(ctx, f.WindowTimeout)
		if err != nil {
			return chunks, fmt.Errorf("failed to open window at %s: %w", cursor, err)
		}
		if !bytes.HasPrefix(res, respWindow) || len(res) < windowHeaderSize+4 {
			return chunks, &gatt.UnexpectedResponseError{Op: "open activity window", Data: res}
		}
		minutes := int(binary.LittleEndian.Uint16(res[3:5]))
		start, err = instant.Decode(res[windowHeaderSize:])
		if err != nil {
			return chunks, &gatt.UnexpectedResponseError{Op: "open activity window", Data: res}
		}
		f.log.WithFields(logrus.Fields{
			"cursor":  cursor,
			"start":   start,
			"minutes": minutes,
		}).Debug("activity window")

		if minutes == 0 {
			f.state = Empty
			if start.UTC().Equal(cursor.UTC()) {
				break
			}
			cursor = start
			continue
		}
		if start.UTC().Equal(prev.start.UTC()) && minutes == prev.minutes {
			f.log.WithField("start", start).Debug("repeated activity window")
			break
		}
		prev.start, prev.minutes = start, minutes

		f.state = Downloading
		buf, err = f.download(ctx, data, ctrl, minutes)
		if err != nil {
			return chunks, err
		}
		// A short window ends the cursor at the last record received
		// so the missing minutes are requested again.
		got := len(buf) / RecordSize
		cursor = start.AddMinutes(got)
		if got == 0 {
			continue
		}
		chunks = append(chunks, Chunk{Start: start, Minutes: got, Next: cursor, Data: buf})
		observability.RecordWindow(got)
	}
	f.state = Done
	return chunks, nil
}

// download collects one window's records, returning when the band
// acknowledges the end of the window. The returned data holds at most
// minutes records and may hold fewer if the band sent fewer.
func (f *Fetcher) download(ctx context.Context, data, ctrl *gatt.Subscription, minutes int) ([]byte, error) {
	buf := make([]byte, minutes*RecordSize)
	var records int
	collect := func() {
		for {
			frame, ok := data.TryNext()
			if !ok {
				return
			}
			if len(frame) < 1 {
				continue
			}
			off := records * RecordSize
			if off < len(buf) {
				copy(buf[off:], frame[1:])
			}
			records += (len(frame) - 1) / RecordSize
		}
	}

	err := f.link.Write(ctx, gatt.Fetch, cmdDownload)
	if err != nil {
		return nil, err
	}
	var idle <-chan time.Time
	var timer *time.Timer
	if f.DataIdle > 0 {
		timer = time.NewTimer(f.DataIdle)
		defer timer.Stop()
		idle = timer.C
	}
	for {
		select {
		case <-data.Ready():
			collect()
		case <-ctrl.Ready():
			res, ok := ctrl.TryNext()
			if !ok {
				continue
			}
			collect()
			if !bytes.HasPrefix(res, respComplete) {
				return nil, &gatt.UnexpectedResponseError{Op: "close activity window", Data: res}
			}
			if records != minutes {
				f.log.WithFields(logrus.Fields{
					"want": minutes,
					"got":  records,
				}).Warn("activity window length mismatch")
			}
			return buf[:min(records, minutes)*RecordSize], nil
		case <-idle:
			return nil, fmt.Errorf("%w after %v waiting for activity data", gatt.ErrTimeout, f.DataIdle)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if timer != nil {
			timer.Reset(f.DataIdle)
		}
	}
}

// Samples decodes chunks into a single minute sequence.
func Samples(chunks []Chunk, fields Field) []*Sample {
	var samples []*Sample
	for _, c := range chunks {
		samples = append(samples, c.Samples(fields)...)
	}
	return samples
}
