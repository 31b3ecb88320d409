// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kortschak/miband/instant"
)

var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Set the band's clock",
	Long: `Sets the band's clock to the current local time, or to the given time.

Examples:
  miband time
  miband time --at 2024-03-01T11:20:30+01:00`,
	Args: cobra.NoArgs,
	RunE: withBand(runTime),
}

var timeAt string

func init() {
	timeCmd.Flags().StringVar(&timeAt, "at", "", "time to set (ISO-8601); defaults to now")
}

func runTime(ctx context.Context, s *session, _ []string) error {
	offset := s.band.Config().Offset
	t := instant.New(time.Now(), offset)
	if timeAt != "" {
		var err error
		t, err = parseWhen(timeAt, offset)
		if err != nil {
			return err
		}
	}
	err := s.band.SetLocalTime(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to set time: %w", err)
	}
	now, err := s.band.LocalTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to read band time: %w", err)
	}
	fmt.Println(now)
	return nil
}
