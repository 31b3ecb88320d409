// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package observability holds the process metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miband",
		Subsystem: "chunked",
		Name:      "frames_sent_total",
		Help:      "Chunked transfer frames written, by stream.",
	}, []string{"stream"})
	chunkRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miband",
		Subsystem: "chunked",
		Name:      "rejections_total",
		Help:      "Chunked transfers the band reported as failed, by stream.",
	}, []string{"stream"})
	windowsFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "miband",
		Subsystem: "activity",
		Name:      "windows_fetched_total",
		Help:      "Activity windows downloaded.",
	})
	minutesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "miband",
		Subsystem: "activity",
		Name:      "minutes_fetched_total",
		Help:      "Activity minutes downloaded.",
	})
	authAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miband",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Authentication attempts, by outcome.",
	}, []string{"outcome"})
	bytesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "miband",
		Subsystem: "store",
		Name:      "bytes_written_total",
		Help:      "Activity bytes written to the store.",
	})
	lastSynced = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "miband",
		Subsystem: "store",
		Name:      "last_synced_timestamp_seconds",
		Help:      "Unix timestamp of the end of the most recently stored activity.",
	})
)

func init() {
	prometheus.MustRegister(
		framesSent,
		chunkRejections,
		windowsFetched,
		minutesFetched,
		authAttempts,
		bytesStored,
		lastSynced,
	)
}

// RecordFrameSent counts a chunked transfer frame.
func RecordFrameSent(stream string) {
	framesSent.WithLabelValues(stream).Inc()
}

// RecordChunkRejected counts a rejected chunked transfer.
func RecordChunkRejected(stream string) {
	chunkRejections.WithLabelValues(stream).Inc()
}

// RecordWindow counts a downloaded activity window of the given length.
func RecordWindow(minutes int) {
	windowsFetched.Inc()
	minutesFetched.Add(float64(minutes))
}

// RecordAuth counts an authentication attempt with the given outcome.
func RecordAuth(outcome string) {
	authAttempts.WithLabelValues(outcome).Inc()
}

// RecordStored counts bytes written to the store.
func RecordStored(n int) {
	bytesStored.Add(float64(n))
}

// RecordSynced updates the synchronisation watermark gauge.
func RecordSynced(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSynced.Set(float64(ts.Unix()))
}
