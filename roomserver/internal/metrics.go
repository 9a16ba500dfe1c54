// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import "github.com/prometheus/client_golang/prometheus"

var (
	inputRoomEventVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomauth",
			Subsystem: "roomserver",
			Name:      "input_verdicts_total",
			Help:      "Number of InputRoomEvent auth checks by verdict (allow, deny or error).",
		},
		[]string{"verdict"},
	)

	inputRoomEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roomauth",
			Subsystem: "roomserver",
			Name:      "input_duration_seconds",
			Help:      "Time taken to authorize one incoming room event, not including storing it.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"verdict"},
	)
)

// registerMetrics registers this package's collectors exactly once; a
// second RoomInputAPI in the same process (as tests construct) must not
// panic on a duplicate registration.
func registerMetrics() {
	for _, c := range []prometheus.Collector{inputRoomEventVerdicts, inputRoomEventDuration} {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
