// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kortschak/miband/activity"
	"github.com/kortschak/miband/band"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download activity history into the store",
	Long: `Downloads the band's activity history into the store, starting at the
end of the stored data. A partial download is stored before the error is
reported, so the next sync resumes where it stopped.

Examples:
  miband sync
  miband sync --since 2024-03-01`,
	Args: cobra.NoArgs,
	RunE: withBand(runSync),
}

var syncSince string

func init() {
	syncCmd.Flags().StringVar(&syncSince, "since", "", "start of the download (date or ISO-8601 time); defaults to the end of the stored data")
}

func runSync(ctx context.Context, s *session, _ []string) error {
	st, err := store.Open(s.cfg.DataDir, store.WithLogger(s.log))
	if err != nil {
		return err
	}
	var since instant.Instant
	if syncSince != "" {
		since, err = parseWhen(syncSince, s.band.Config().Offset)
		if err != nil {
			return err
		}
	}
	res, err := syncActivity(ctx, s.band, st, since, s.log)
	fmt.Printf("stored %d minutes", res.Stored)
	if !res.Next.IsZero() {
		fmt.Printf(", synchronised to %s", res.Next)
	}
	fmt.Println()
	return err
}

// syncResult is the outcome of a synchronisation.
type syncResult struct {
	Since   instant.Instant `json:"since"`
	Next    instant.Instant `json:"next"`
	Chunks  int             `json:"chunks"`
	Fetched int             `json:"fetched"`
	Stored  int             `json:"stored"`
	Partial bool            `json:"partial"`
}

// syncActivity downloads activity from since, or from the end of the
// stored data if since is zero, and saves it to st. Chunks collected
// before a failed download are saved before the error is returned.
func syncActivity(ctx context.Context, b *band.Band, st *store.Store, since instant.Instant, log logrus.FieldLogger) (syncResult, error) {
	if since.IsZero() {
		next, ok, err := st.Next()
		if err != nil {
			return syncResult{}, err
		}
		if ok {
			since = next
		}
	}
	res := syncResult{Since: since}
	chunks, fetchErr := b.FetchActivity(ctx, since)
	res.Chunks = len(chunks)
	res.Partial = errors.Is(fetchErr, activity.ErrPartialExtraction)
	for _, c := range chunks {
		res.Fetched += c.Minutes
	}
	if fetchErr != nil && !res.Partial {
		return res, fetchErr
	}
	n, err := st.SaveAll(chunks)
	res.Stored = n
	if err != nil {
		return res, errors.Join(fetchErr, fmt.Errorf("failed to store activity: %w", err))
	}
	if next, ok, err := st.Next(); err == nil && ok {
		res.Next = next
	}
	log.WithFields(logrus.Fields{
		"since":   res.Since,
		"chunks":  res.Chunks,
		"fetched": res.Fetched,
		"stored":  res.Stored,
		"partial": res.Partial,
	}).Info("synchronised activity")
	return res, fetchErr
}
