// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The miband command talks to a Mi Band fitness tracker and keeps a
// local store of its activity history.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "miband",
	Short: "Mi Band fitness tracker tool",
	Long: `Mi Band fitness tracker tool that provides:

- Device identity, battery and step totals
- Activity history synchronisation to a local store
- Activity listing and daily charts from the store
- Notifications, calls and weather reports on the band
- Heart rate measurement
- A service synchronising periodically and exporting metrics`,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		infoCmd,
		syncCmd,
		showCmd,
		chartCmd,
		notifyCmd,
		weatherCmd,
		timeCmd,
		pulseCmd,
		setCmd,
		serveCmd,
	)

	rootCmd.PersistentFlags().String("config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().String("addr", "", "band bluetooth address; overrides the config file")
}
