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

package cursor

import "github.com/prometheus/client_golang/prometheus"

var (
	cursorEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinycursor",
			Subsystem: "cursor",
			Name:      "events_total",
			Help:      "Counter of cursor lifecycle events.",
		}, []string{"event"})

	cursorPinnedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinycursor",
			Subsystem: "cursor",
			Name:      "pinned",
			Help:      "Number of cursors currently pinned.",
		})

	cursorInvalidatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinycursor",
			Subsystem: "cursor",
			Name:      "invalidated_total",
			Help:      "Counter of cursors invalidated by a namespace change.",
		}, []string{"going_away"})
)

func init() {
	prometheus.MustRegister(cursorEventCounter)
	prometheus.MustRegister(cursorPinnedGauge)
	prometheus.MustRegister(cursorInvalidatedCounter)
}
