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
	"context"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teeppp/adaptive-agent-runtime/internal/agentcore"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// Recorder wraps a Core.Run stream with a tracing span covering the whole
// turn and per-event/per-tool Prometheus observations, wrapping an
// iter.Seq2 rather than a callback-style recording API.
type Recorder struct {
	metrics *Metrics
	tracer  trace.Tracer
}

// NewRecorder builds a Recorder. metrics may be nil (observations become
// no-ops); the tracer defaults to GetTracer("adaptive-agent-runtime") if
// tracing was never initialized (a noop tracer in that case).
func NewRecorder(metrics *Metrics) *Recorder {
	return &Recorder{metrics: metrics, tracer: GetTracer("adaptive-agent-runtime")}
}

// Wrap instruments run: it opens one span per turn (ended when run's
// stream closes), records a turnDuration observation, and
// increments the per-kind event counter and per-tool call/error counters as
// events pass through. The returned sequence yields exactly what run
// yields, unmodified.
func (r *Recorder) Wrap(ctx context.Context, key session.Key, run iter.Seq2[*agentcore.Event, error]) iter.Seq2[*agentcore.Event, error] {
	return func(yield func(*agentcore.Event, error) bool) {
		start := time.Now()
		_, span := r.tracer.Start(ctx, "agentcore.Run", trace.WithAttributes(
			attribute.String("session.app", key.App),
			attribute.String("session.user", key.User),
			attribute.String("session.id", key.SessionID),
		))
		defer func() {
			r.metrics.ObserveTurnDuration(time.Since(start))
			span.End()
		}()

		toolStart := map[string]time.Time{}

		run(func(e *agentcore.Event, err error) bool {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return yield(e, err)
			}
			if e == nil {
				return yield(e, err)
			}

			r.metrics.RecordEvent(string(e.Kind))

			switch e.Kind {
			case agentcore.EventToolCall:
				if e.ToolCall != nil {
					toolStart[e.ToolCall.ID] = time.Now()
				}
			case agentcore.EventToolResult:
				if e.ToolResult != nil {
					var d time.Duration
					if started, ok := toolStart[e.ToolResult.ID]; ok {
						d = time.Since(started)
						delete(toolStart, e.ToolResult.ID)
					}
					errTag := ""
					if e.ToolResult.Error != nil {
						errTag = e.ToolResult.Error.Tag
					}
					r.metrics.RecordToolCall(e.ToolResult.Name, d, errTag)
				}
			case agentcore.EventEnforcerBlock:
				span.AddEvent("enforcer_block")
			case agentcore.EventFinal:
				if e.Err != "" {
					span.SetStatus(codes.Error, e.Err)
				} else {
					span.SetStatus(codes.Ok, "")
				}
			}

			return yield(e, err)
		})
	}
}
