// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import "github.com/prometheus/client_golang/prometheus"

var (
	cursorOpenGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tinycursor",
			Subsystem: "server",
			Name:      "cursor_open",
			Help:      "Number of registered cursors.",
		}, []string{"kind"})

	sessionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinycursor",
			Subsystem: "server",
			Name:      "sessions",
			Help:      "Number of session records held.",
		})

	monitorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinycursor",
			Subsystem: "monitor",
			Name:      "cursors_total",
			Help:      "Counter of cursors destroyed by the cursor monitor.",
		}, []string{"reason"})

	monitorDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinycursor",
			Subsystem: "monitor",
			Name:      "sweep_duration_seconds",
			Help:      "Bucketed histogram of cursor monitor sweep duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		})
)

func init() {
	prometheus.MustRegister(cursorOpenGauge)
	prometheus.MustRegister(sessionGauge)
	prometheus.MustRegister(monitorCounter)
	prometheus.MustRegister(monitorDuration)
}
