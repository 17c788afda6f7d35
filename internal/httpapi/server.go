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

package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teeppp/adaptive-agent-runtime/internal/agentcore"
	"github.com/teeppp/adaptive-agent-runtime/internal/obs"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// Server hosts the HTTP Surface: session CRUD plus the /run turn
// endpoint, wired to one agentcore.Core and its session.Service.
type Server struct {
	core     *agentcore.Core
	sessions session.Service
	router   chi.Router

	authValidator TokenValidator
	metrics       *obs.Metrics
	recorder      *obs.Recorder
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithAuth installs a TokenValidator; when set, every route except /health
// requires a valid bearer token (cmd/aar wires this only when the
// auth.enabled config setting is true).
func WithAuth(v TokenValidator) Option {
	return func(s *Server) { s.authValidator = v }
}

// WithObservability mounts GET /metrics and wraps every /run turn with a
// Recorder so its events and tool dispatches are counted and traced.
func WithObservability(m *obs.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
		s.recorder = obs.NewRecorder(m)
	}
}

// NewServer builds the route table. Middleware order is fixed: logging
// wraps CORS wraps metrics (when enabled) wraps auth (when enabled) wraps
// routes.
func NewServer(core *agentcore.Core, sessions session.Service, opts ...Option) *Server {
	s := &Server{core: core, sessions: sessions}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)
	if s.metrics != nil {
		r.Use(metricsMiddleware(s.metrics))
	}
	if s.authValidator != nil {
		excluded := map[string]bool{"/health": true}
		r.Use(authMiddleware(s.authValidator, excluded))
	}

	r.Get("/health", handleHealth)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	}
	r.Route("/apps/{app}/users/{user}/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/{id}", s.handleGetSession)
		r.Delete("/{id}", s.handleDeleteSession)
	})
	r.Post("/run", s.handleRun)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the status code a handler writes, the minimal
// wrapping metricsMiddleware needs. It embeds only http.ResponseWriter, so
// it does not expose the wrapped writer's http.Flusher.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records one adaptive_agent_http_requests_total /
// request_duration_seconds observation per request, labeled by the
// matched chi route pattern (not the raw path, to keep cardinality bounded
// across session ids).
func metricsMiddleware(m *obs.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RecordHTTPRequest(route, strconv.Itoa(sw.status), time.Since(start))
		})
	}
}

// loggingMiddleware logs requests without wrapping ResponseWriter, so
// handlers that type-assert to http.Flusher for streaming still can.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Run starts an http.Server on addr and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
