// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chunked implements the band's framed transfer of payloads
// larger than a single write.
package chunked

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/internal/logutil"
	"github.com/kortschak/miband/internal/observability"
)

// FrameCapacity is the maximum payload carried by one frame. It is the
// 32 byte write limit less link and frame overhead.
const FrameCapacity = 17

// HeaderSize is the length of the frame header.
const HeaderSize = 3

// DefaultTimeout is the default wait for the completion notification.
const DefaultTimeout = 10 * time.Second

// Stream selects the band function a payload is for.
type Stream uint8

const (
	Alert    Stream = 0
	Weather  Stream = 1
	Calendar Stream = 2
)

func (s Stream) String() string {
	switch s {
	case Alert:
		return "alert"
	case Weather:
		return "weather"
	case Calendar:
		return "calendar"
	default:
		return "stream(" + strconv.Itoa(int(s)) + ")"
	}
}

// Mode is the position of a frame in its transfer, held in the top two
// bits of the mode byte.
type Mode byte

const (
	First        Mode = 0x00 // first frame of several
	Continuation Mode = 0x40 // neither first nor last
	Final        Mode = 0x80 // last frame of several
	Only         Mode = 0xc0 // single frame transfer

	modeMask   = 0xc0
	streamMask = 0x3f
)

func (m Mode) String() string {
	switch m {
	case First:
		return "first"
	case Continuation:
		return "continuation"
	case Final:
		return "final"
	case Only:
		return "only"
	default:
		return fmt.Sprintf("mode(%#x)", byte(m))
	}
}

var (
	// ErrTooLong is returned for payloads needing more frames than an
	// index byte can count.
	ErrTooLong = errors.New("chunked: payload too long")

	// ErrStream is returned for stream selectors that do not fit in the
	// mode byte.
	ErrStream = errors.New("chunked: invalid stream")
)

// Frames splits payload into frames for stream. An empty payload is sent
// as a single header-only frame.
func Frames(stream Stream, payload []byte) ([][]byte, error) {
	if stream > streamMask {
		return nil, fmt.Errorf("%w: %d", ErrStream, stream)
	}
	n := max(1, (len(payload)+FrameCapacity-1)/FrameCapacity)
	if n > 256 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(payload))
	}
	frames := make([][]byte, n)
	for i := range frames {
		var m Mode
		switch {
		case n == 1:
			m = Only
		case i == 0:
			m = First
		case i == n-1:
			m = Final
		default:
			m = Continuation
		}
		part := payload[min(i*FrameCapacity, len(payload)):min((i+1)*FrameCapacity, len(payload))]
		f := make([]byte, HeaderSize, HeaderSize+len(part))
		f[0] = 0x00
		f[1] = byte(m) | byte(stream)
		f[2] = byte(i)
		frames[i] = append(f, part...)
	}
	return frames, nil
}

// Header returns the mode, stream and index of a frame.
func Header(frame []byte) (m Mode, s Stream, index int, ok bool) {
	if len(frame) < HeaderSize || frame[0] != 0x00 {
		return 0, 0, 0, false
	}
	return Mode(frame[1] & modeMask), Stream(frame[1] & streamMask), int(frame[2]), true
}

// Sender sends chunked payloads over a link.
type Sender struct {
	link    *gatt.Link
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewSender returns a Sender waiting at most timeout for the band's
// completion notification. A zero timeout uses DefaultTimeout.
func NewSender(link *gatt.Link, timeout time.Duration, log logrus.FieldLogger) *Sender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sender{link: link, log: logutil.OrDiscard(log), timeout: timeout}
}

// Send writes the concatenation of parts to stream and reports whether
// the band accepted it. A rejection is reported as false with a nil
// error; callers may retry.
func (s *Sender) Send(ctx context.Context, stream Stream, parts ...[]byte) (bool, error) {
	frames, err := Frames(stream, bytes.Join(parts, nil))
	if err != nil {
		return false, err
	}
	sub, err := s.link.Subscribe(ctx, gatt.ChunkedTransfer)
	if err != nil {
		return false, err
	}
	defer sub.Close()

	for _, f := range frames {
		err = s.link.Write(ctx, gatt.ChunkedTransfer, f)
		if err != nil {
			return false, fmt.Errorf("failed to send frame %d of %d on %s: %w", f[2], len(frames), stream, err)
		}
		observability.RecordFrameSent(stream.String())
	}
	resp, err := sub.Next(ctx, s.timeout)
	if err != nil {
		return false, fmt.Errorf("failed to receive %s transfer completion: %w", stream, err)
	}
	if len(resp) != 0 && resp[len(resp)-1] == 0x01 {
		return true, nil
	}
	s.log.WithFields(logrus.Fields{
		"stream":   stream,
		"frames":   len(frames),
		"response": fmt.Sprintf("%x", resp),
	}).Warn("chunked transfer rejected")
	observability.RecordChunkRejected(stream.String())
	return false, nil
}
