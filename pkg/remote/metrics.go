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

package remote

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsRemote struct {
	once sync.Once

	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	repos    *prometheus.CounterVec
}

var remoteMetrics metricsRemote

func (m *metricsRemote) init() {
	m.once.Do(func() {
		m.calls = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sift_remote_calls_total", Help: "Remote calls by endpoint and outcome"}, []string{"endpoint", "outcome"})
		m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "sift_remote_call_duration_seconds", Help: "Remote call latency including limiter wait", Buckets: prometheus.DefBuckets}, []string{"endpoint"})
		m.repos = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sift_remote_repos_total", Help: "Repositories fetched by outcome"}, []string{"outcome"})
		prometheus.MustRegister(m.calls, m.duration, m.repos)
	})
}

func recordCall(endpoint string, err error, d time.Duration) {
	remoteMetrics.init()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	remoteMetrics.calls.WithLabelValues(endpoint, outcome).Inc()
	remoteMetrics.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func recordRepo(ok bool) {
	remoteMetrics.init()
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	remoteMetrics.repos.WithLabelValues(outcome).Inc()
}
