// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeUploaded   = "uploaded"
	outcomeDownloaded = "downloaded"
	outcomeFailed     = "failed"
	outcomeSkipped    = "skipped"
)

// Metrics are the reconciler's Prometheus collectors.
type Metrics struct {
	// Uploads counts assets per upload outcome (uploaded, failed).
	Uploads *prometheus.CounterVec

	// UploadedBytes counts payload bytes in successful batches.
	UploadedBytes prometheus.Counter

	// Fetches counts fetch attempts per outcome (downloaded, failed,
	// skipped).
	Fetches *prometheus.CounterVec

	// InFlight is the number of fetches currently running.
	InFlight prometheus.Gauge

	// Missing is the size of the missing set after the last pass.
	Missing prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with
// registerer. A nil registerer leaves them unregistered.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetstore",
			Subsystem: "sync",
			Name:      "uploads_total",
			Help:      "Assets sent to the remote, by outcome.",
		}, []string{"outcome"}),
		UploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "assetstore",
			Subsystem: "sync",
			Name:      "uploaded_bytes_total",
			Help:      "Payload bytes in successfully uploaded batches.",
		}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetstore",
			Subsystem: "sync",
			Name:      "fetches_total",
			Help:      "Missing-asset fetches, by outcome.",
		}, []string{"outcome"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "assetstore",
			Subsystem: "sync",
			Name:      "fetches_in_flight",
			Help:      "Fetches currently running.",
		}),
		Missing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "assetstore",
			Subsystem: "sync",
			Name:      "missing_assets",
			Help:      "Referenced assets absent locally after the last pass.",
		}),
	}
}
