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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/teeppp/adaptive-agent-runtime/internal/config"
	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/httpapi"
	"github.com/teeppp/adaptive-agent-runtime/internal/logx"
	"github.com/teeppp/adaptive-agent-runtime/internal/obs"
)

// ServeCmd starts the HTTP Surface: load config, wire a runtime, serve
// until SIGINT/SIGTERM. config.Watch reloads are logged but not applied
// to the live Core — most flags (enforcer mode, wallet, tool sources)
// are baked into Core at construction, so picking them up requires a
// restart; only this is a known limitation, not a silent gap.
type ServeCmd struct {
	Addr string `help:"Override the host:port from the config file."`
}

func (s *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "load config", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return errs.Wrap(errs.KindConfig, "validate config", err)
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	watchCh, err := config.Watch(ctx, cli.Config)
	if err != nil {
		logx.Get().Warn("config watch unavailable", "error", err)
	} else {
		go func() {
			for range watchCh {
				logx.Get().Warn("config file changed; restart the process to apply it")
			}
		}()
	}

	metrics := obs.NewMetrics()
	tracer, err := obs.NewTracer(ctx, obs.TracerConfig{
		Exporter:     os.Getenv("AAR_OTEL_EXPORTER"),
		Endpoint:     os.Getenv("AAR_OTEL_ENDPOINT"),
		ServiceName:  "adaptive-agent-runtime",
		SamplingRate: 1.0,
	})
	if err != nil {
		return errs.Wrap(errs.KindConfig, "init tracer", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	opts := []httpapi.Option{httpapi.WithObservability(metrics)}
	if cfg.Auth.Enabled {
		validator, err := httpapi.NewJWTValidator(ctx, cfg.Auth.JWKSURL, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return errs.Wrap(errs.KindConfig, "init auth validator", err)
		}
		opts = append(opts, httpapi.WithAuth(validator))
	}

	server := httpapi.NewServer(rt.core, rt.sessions, opts...)

	addr := cfg.Address()
	if s.Addr != "" {
		addr = s.Addr
	}

	if err := server.Run(ctx, addr); err != nil {
		return errs.Wrap(errs.KindLLMUnavailable, "http surface exited", err)
	}
	return nil
}
