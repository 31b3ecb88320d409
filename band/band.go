// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package band provides the commands of a connected band: identity and
// status reads, settings, notifications, weather and activity history.
//
// A Band carries one exchange at a time. Callers must not issue
// overlapping calls on the same Band.
package band

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/activity"
	"github.com/kortschak/miband/auth"
	"github.com/kortschak/miband/battery"
	"github.com/kortschak/miband/chunked"
	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/heart"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/internal/logutil"
	"github.com/kortschak/miband/motion"
)

// DefaultPlace is the weather place name used when none is configured.
const DefaultPlace = "Home"

// DefaultResponseTimeout is the default wait for a band event.
const DefaultResponseTimeout = 10 * time.Second

// Config holds the settings a Band is operated with.
type Config struct {
	// Key is the 16 byte authentication key.
	Key []byte
	// Cipher encrypts authentication challenges. Nil uses AES.
	Cipher auth.Cipher

	// Offset is the local UTC offset in 15 minute units used for
	// times given without one.
	Offset int
	// Place is the weather place name.
	Place string

	// AuthIdle bounds the gap between authentication responses.
	AuthIdle time.Duration
	// ChunkTimeout bounds the wait for a chunked transfer completion.
	ChunkTimeout time.Duration
	// ResponseTimeout bounds the wait for a call response.
	ResponseTimeout time.Duration
	// PulseTimeout bounds the wait for a manual heart rate measurement.
	PulseTimeout time.Duration
	// DataIdle bounds the gap between activity data notifications.
	DataIdle time.Duration
}

// Band is a connected band.
type Band struct {
	link   *gatt.Link
	cfg    Config
	log    logrus.FieldLogger
	sender *chunked.Sender
}

// New returns a Band operating over link. Zero durations in cfg are
// replaced by their defaults.
func New(link *gatt.Link, cfg Config, log logrus.FieldLogger) *Band {
	log = logutil.OrDiscard(log)
	if cfg.Place == "" {
		cfg.Place = DefaultPlace
	}
	if cfg.AuthIdle <= 0 {
		cfg.AuthIdle = auth.DefaultIdle
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = chunked.DefaultTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.PulseTimeout <= 0 {
		cfg.PulseTimeout = heart.DefaultMeasureTimeout
	}
	if cfg.DataIdle <= 0 {
		cfg.DataIdle = activity.DefaultDataIdle
	}
	return &Band{
		link:   link,
		cfg:    cfg,
		log:    log,
		sender: chunked.NewSender(link, cfg.ChunkTimeout, log),
	}
}

// Link returns the band's link.
func (b *Band) Link() *gatt.Link { return b.link }

// Config returns the band's configuration with defaults applied.
func (b *Band) Config() Config { return b.cfg }

// local returns t as an Instant with the configured offset.
func (b *Band) local(t time.Time) instant.Instant { return instant.New(t, b.cfg.Offset) }

// Authenticate runs the authentication handshake with the configured key.
func (b *Band) Authenticate(ctx context.Context) error {
	return auth.Authenticate(ctx, b.link, b.cfg.Key, b.cfg.Cipher, b.cfg.AuthIdle, b.log)
}

// DeviceInfo is the band's identity.
type DeviceInfo struct {
	SoftwareRevision string `json:"software_revision"`
	HardwareRevision string `json:"hardware_revision"`
	SerialNumber     string `json:"serial_number"`
	SystemID         string `json:"system_id"`
	PnPID            string `json:"pnp_id"`
}

// Info returns the band's identity.
func (b *Band) Info(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	for _, f := range []struct {
		ch  gatt.Channel
		dst *string
		hex bool
	}{
		{ch: gatt.SoftwareRevision, dst: &info.SoftwareRevision},
		{ch: gatt.HardwareRevision, dst: &info.HardwareRevision},
		{ch: gatt.SerialNumber, dst: &info.SerialNumber},
		{ch: gatt.SystemID, dst: &info.SystemID, hex: true},
		{ch: gatt.PnPID, dst: &info.PnPID, hex: true},
	} {
		buf, err := b.link.Read(ctx, f.ch)
		if err != nil {
			return info, err
		}
		if f.hex {
			*f.dst = hex.EncodeToString(buf)
		} else {
			*f.dst = string(buf)
		}
	}
	return info, nil
}

// LocalTime returns the band's clock.
func (b *Band) LocalTime(ctx context.Context) (instant.Instant, error) {
	buf, err := b.link.Read(ctx, gatt.CurrentTime)
	if err != nil {
		return instant.Instant{}, err
	}
	return instant.Decode(buf)
}

// SetLocalTime sets the band's clock. A zero t sets the current time with
// the configured offset.
func (b *Band) SetLocalTime(ctx context.Context, t instant.Instant) error {
	if t.IsZero() {
		t = b.local(time.Now())
	}
	b.log.WithField("time", t).Debug("setting time")
	return b.link.Write(ctx, gatt.CurrentTime, t.MustEncode("YmdHisw00e"))
}

// Totals are the band's running activity totals for the day.
type Totals struct {
	Steps    uint32 `json:"steps"`
	Meters   uint32 `json:"meters"`
	Calories uint32 `json:"kcal"`
}

const stepsSize = 13

// Steps returns the day's activity totals.
func (b *Band) Steps(ctx context.Context) (Totals, error) {
	buf, err := b.link.Read(ctx, gatt.Steps)
	if err != nil {
		return Totals{}, err
	}
	if len(buf) < stepsSize || buf[0] != 0x0c {
		return Totals{}, &gatt.UnexpectedResponseError{Op: "steps", Data: buf}
	}
	return Totals{
		Steps:    binary.LittleEndian.Uint32(buf[1:]),
		Meters:   binary.LittleEndian.Uint32(buf[5:]),
		Calories: binary.LittleEndian.Uint32(buf[9:]),
	}, nil
}

// Battery returns the band's battery status.
func (b *Band) Battery(ctx context.Context) (battery.Status, error) {
	return battery.Read(ctx, b.link)
}

// Pulse takes a single heart rate measurement.
func (b *Band) Pulse(ctx context.Context) (heart.Rate, error) {
	return heart.Measure(ctx, b.link, b.cfg.PulseTimeout)
}

// LivePulse streams heart rate measurements to h for the duration d or
// until ctx is done.
func (b *Band) LivePulse(ctx context.Context, d time.Duration, h func(heart.Rate, error)) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return heart.Live(ctx, b.link, h)
}

// LiveAcceleration streams accelerometer samples to h for the duration d
// or until ctx is done.
func (b *Band) LiveAcceleration(ctx context.Context, d time.Duration, h func(motion.Acc)) error {
	return motion.Stream(ctx, b.link, d, h)
}

// Vibrate makes the band vibrate.
func (b *Band) Vibrate(ctx context.Context) error {
	return b.link.Write(ctx, gatt.AlertLevel, []byte{0x03})
}

// Fetcher returns an activity fetcher configured for the band.
func (b *Band) Fetcher() *activity.Fetcher {
	f := activity.NewFetcher(b.link, b.log)
	f.Offset = b.cfg.Offset
	f.DataIdle = b.cfg.DataIdle
	return f
}

// FetchActivity downloads the raw activity recorded since the given
// instant. A zero since starts a day before now. On a partial extraction
// the chunks collected are returned with an error matching
// activity.ErrPartialExtraction.
func (b *Band) FetchActivity(ctx context.Context, since instant.Instant) ([]activity.Chunk, error) {
	if since.IsZero() {
		since = b.local(time.Now().Add(-24 * time.Hour).Truncate(time.Minute))
	}
	return b.Fetcher().Fetch(ctx, since)
}

// Activity downloads and decodes the activity recorded since the given
// instant. Minutes without data are nil. On a partial extraction the
// samples decoded so far are returned with the error.
func (b *Band) Activity(ctx context.Context, since instant.Instant, fields activity.Field) ([]*activity.Sample, error) {
	chunks, err := b.FetchActivity(ctx, since)
	return activity.Samples(chunks, fields), err
}
