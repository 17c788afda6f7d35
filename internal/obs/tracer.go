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

// Package obs wires the Adaptive Agent Core's turn loop to OpenTelemetry
// tracing and Prometheus metrics: OTLP/stdout exporter selection and
// CounterVec/HistogramVec registration, narrowed to the handful of
// signals this runtime actually emits.
package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig configures trace export. Exporter is "otlp", "stdout", or
// "" (tracing disabled, a noop.TracerProvider is installed).
type TracerConfig struct {
	Exporter     string
	Endpoint     string
	ServiceName  string
	SamplingRate float64
}

// Tracer owns the process-wide TracerProvider and its shutdown hook.
type Tracer struct {
	provider *sdktrace.TracerProvider
}

// NewTracer builds and installs a global TracerProvider per cfg. A zero
// Exporter disables tracing: GetTracer still returns a usable no-op tracer.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	if cfg.Exporter == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "adaptive-agent-runtime"
	}
	if cfg.SamplingRate <= 0 {
		cfg.SamplingRate = 1.0
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("obs: unknown tracing exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("obs: create span exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("obs: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Tracer{provider: tp}, nil
}

// Shutdown flushes and closes the exporter. Safe to call on a nil Tracer
// (tracing disabled).
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns a named tracer from the currently installed global
// provider (noop if tracing is disabled).
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
