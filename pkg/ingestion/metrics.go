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

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsIngestion struct {
	once sync.Once

	records   *prometheus.CounterVec
	encodings *prometheus.CounterVec
	bytes     prometheus.Counter

	batchesSent  prometheus.Counter
	batchErrors  prometheus.Counter
	readDuration prometheus.Histogram
	sinkDuration prometheus.Histogram
	runDuration  prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.records = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sift_ing_records_total", Help: "Items by source and terminal state"}, []string{"source", "state"})
		m.encodings = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sift_ing_encodings_total", Help: "Emitted records by content encoding"}, []string{"encoding"})
		m.bytes = prometheus.NewCounter(prometheus.CounterOpts{Name: "sift_ing_bytes_total", Help: "Content bytes read"})

		m.batchesSent = prometheus.NewCounter(prometheus.CounterOpts{Name: "sift_ing_batches_sent_total", Help: "Batches delivered to the sink"})
		m.batchErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "sift_ing_batch_errors_total", Help: "Batches rejected by the sink"})

		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.readDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "sift_ing_read_seconds", Help: "Time to read one local file", Buckets: buckets})
		m.sinkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "sift_ing_sink_seconds", Help: "Time to deliver one batch", Buckets: buckets})
		m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "sift_ing_run_seconds", Help: "Duration of a whole run", Buckets: prometheus.ExponentialBuckets(0.1, 2, 14)})

		prometheus.MustRegister(
			m.records, m.encodings, m.bytes,
			m.batchesSent, m.batchErrors,
			m.readDuration, m.sinkDuration, m.runDuration,
		)
	})
}

func recordState(source, state string) {
	ingMetrics.init()
	ingMetrics.records.WithLabelValues(source, state).Inc()
}

func recordEncoding(encoding string, n int) {
	ingMetrics.init()
	ingMetrics.encodings.WithLabelValues(encoding).Inc()
	ingMetrics.bytes.Add(float64(n))
}

func recordRead(d time.Duration) { ingMetrics.init(); ingMetrics.readDuration.Observe(d.Seconds()) }

func recordBatch(err error, d time.Duration) {
	ingMetrics.init()
	ingMetrics.sinkDuration.Observe(d.Seconds())
	if err != nil {
		ingMetrics.batchErrors.Inc()
		return
	}
	ingMetrics.batchesSent.Inc()
}

func recordRun(d time.Duration) { ingMetrics.init(); ingMetrics.runDuration.Observe(d.Seconds()) }
