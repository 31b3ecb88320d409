// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kortschak/miband/heart"
	"github.com/kortschak/miband/internal/ring"
	"github.com/kortschak/miband/motion"
)

var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Measure heart rate",
	Long: `Takes a single heart rate measurement, or streams measurements for a
period with a rolling average.

Examples:
  miband pulse
  miband pulse --live 5m --window 10
  miband pulse --acc 30s`,
	Args: cobra.NoArgs,
	RunE: withBand(runPulse),
}

var (
	pulseLive   time.Duration
	pulseWindow int
	pulseAcc    time.Duration
)

func init() {
	pulseCmd.Flags().DurationVar(&pulseLive, "live", 0, "stream measurements for this long")
	pulseCmd.Flags().IntVar(&pulseWindow, "window", 5, "number of live measurements in the rolling average")
	pulseCmd.Flags().DurationVar(&pulseAcc, "acc", 0, "stream accelerometer samples for this long instead")
}

func runPulse(ctx context.Context, s *session, _ []string) error {
	switch {
	case pulseAcc > 0:
		return s.band.LiveAcceleration(ctx, pulseAcc, func(a motion.Acc) {
			fmt.Printf("%s x=%+.3f y=%+.3f z=%+.3f\n", time.Now().Format(time.TimeOnly), a.X, a.Y, a.Z)
		})
	case pulseLive > 0:
		if pulseWindow < 1 {
			return fmt.Errorf("invalid window: %d", pulseWindow)
		}
		avg := newRollingRate(pulseWindow)
		return s.band.LivePulse(ctx, pulseLive, func(r heart.Rate, err error) {
			if err != nil {
				s.log.WithError(err).Warn("invalid measurement")
				return
			}
			if r.ContactSupported && !r.Contact {
				fmt.Printf("%s no contact\n", time.Now().Format(time.TimeOnly))
				return
			}
			fmt.Printf("%s %d bpm (mean %.1f)\n", time.Now().Format(time.TimeOnly), r.HR, avg.add(r.HR))
		})
	}
	r, err := s.band.Pulse(ctx)
	if errors.Is(err, heart.ErrNoContact) {
		return fmt.Errorf("no sensor contact: check the band is worn")
	}
	if err != nil {
		return err
	}
	fmt.Printf("%d bpm\n", r.HR)
	return nil
}

// rollingRate is the mean of the most recent heart rates.
type rollingRate struct {
	rates *ring.Buffer[uint16]
	buf   []uint16
}

func newRollingRate(n int) *rollingRate {
	return &rollingRate{
		rates: ring.NewBuffer[uint16](n),
		buf:   make([]uint16, n),
	}
}

// add adds hr and returns the mean of the held rates.
func (r *rollingRate) add(hr uint16) float64 {
	r.rates.Push(hr)
	n := r.rates.CopyTo(r.buf)
	var sum float64
	for _, v := range r.buf[:n] {
		sum += float64(v)
	}
	return sum / float64(n)
}
