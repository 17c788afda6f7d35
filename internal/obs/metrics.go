// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus series for the turn loop and the HTTP
// Surface, one CounterVec/HistogramVec per concern.
type Metrics struct {
	registry *prometheus.Registry

	// turnEvents counts every agentcore.Event the runtime emits, labeled
	// by its Kind (model_text, tool_call, tool_result, enforcer_block,
	// mode_switched, final).
	turnEvents *prometheus.CounterVec

	// turnDuration measures wall-clock time from Core.Run's first yield
	// to its last, per turn.
	turnDuration prometheus.Histogram

	// toolCalls/toolDuration/toolErrors break tool dispatch down by name.
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	toolErrors   *prometheus.CounterVec

	// httpRequests/httpDuration cover the HTTP Surface.
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics builds and registers every series under namespace
// "adaptive_agent". Never returns nil; callers that want metrics disabled
// simply don't mount Handler().
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.turnEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adaptive_agent",
		Subsystem: "turn",
		Name:      "events_total",
		Help:      "Total Core.Run events emitted, labeled by event kind.",
	}, []string{"kind"})

	m.turnDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "adaptive_agent",
		Subsystem: "turn",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of one Core.Run turn.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms .. ~400s
	})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adaptive_agent",
		Subsystem: "tool",
		Name:      "calls_total",
		Help:      "Total tool dispatches, labeled by tool name.",
	}, []string{"tool_name"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adaptive_agent",
		Subsystem: "tool",
		Name:      "call_duration_seconds",
		Help:      "Tool execution duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms .. ~16s
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adaptive_agent",
		Subsystem: "tool",
		Name:      "errors_total",
		Help:      "Total tool dispatches that returned a ToolResult error, labeled by tool name and error tag.",
	}, []string{"tool_name", "error_tag"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adaptive_agent",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests served, labeled by route and status.",
	}, []string{"route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adaptive_agent",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds, labeled by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(
		m.turnEvents, m.turnDuration,
		m.toolCalls, m.toolDuration, m.toolErrors,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// RecordEvent increments the per-kind event counter.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.turnEvents.WithLabelValues(kind).Inc()
}

// ObserveTurnDuration records one completed turn's wall-clock time.
func (m *Metrics) ObserveTurnDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.turnDuration.Observe(d.Seconds())
}

// RecordToolCall records one tool dispatch: its name, duration, and
// whether it returned an error (errTag empty on success).
func (m *Metrics) RecordToolCall(name string, d time.Duration, errTag string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(name).Inc()
	m.toolDuration.WithLabelValues(name).Observe(d.Seconds())
	if errTag != "" {
		m.toolErrors.WithLabelValues(name, errTag).Inc()
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler exposes the registry on the metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
