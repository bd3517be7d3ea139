// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsLimiter struct {
	once sync.Once

	waits       prometheus.Counter
	waitSeconds prometheus.Histogram
}

var limMetrics metricsLimiter

func (m *metricsLimiter) init() {
	m.once.Do(func() {
		m.waits = prometheus.NewCounter(prometheus.CounterOpts{Name: "sift_ratelimit_window_waits_total", Help: "Callers that slept until the quota window rolled over"})
		m.waitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_ratelimit_window_wait_seconds",
			Help:    "Time spent waiting for the quota window to roll over",
			Buckets: []float64{0.1, 1, 10, 60, 300, 900, 1800, 3600},
		})
		prometheus.MustRegister(m.waits, m.waitSeconds)
	})
}

func recordWait(d time.Duration) {
	limMetrics.init()
	limMetrics.waits.Inc()
	limMetrics.waitSeconds.Observe(d.Seconds())
}
