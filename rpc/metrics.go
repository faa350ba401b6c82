// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erigontech/erigon-launch/metrics"
)

type serverMetrics struct {
	requests prometheus.Counter
	failures prometheus.Counter
	duration *prometheus.SummaryVec
}

func newServerMetrics(set *metrics.Set) *serverMetrics {
	return &serverMetrics{
		requests: set.GetOrCreateCounter("rpc_total", "rpc requests served"),
		failures: set.GetOrCreateCounter("rpc_failure", "rpc requests answered with an error"),
		duration: set.GetOrCreateSummaryVec("rpc_duration_seconds", []string{"method", "success"}, "rpc method latency"),
	}
}

func (m *serverMetrics) observe(method string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.Inc()
	if !success {
		m.failures.Inc()
	}
	m.duration.WithLabelValues(method, strconv.FormatBool(success)).Observe(elapsed.Seconds())
}
