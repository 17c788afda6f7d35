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

// wiring.go assembles one agentcore.Core (serve.go puts the HTTP Surface in
// front of it) from a loaded config.Config and the process environment: flags, config file,
// and env together build every collaborator this runtime needs.
package main

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/teeppp/adaptive-agent-runtime/internal/a2aclient"
	"github.com/teeppp/adaptive-agent-runtime/internal/agentcore"
	"github.com/teeppp/adaptive-agent-runtime/internal/builtintools"
	"github.com/teeppp/adaptive-agent-runtime/internal/config"
	"github.com/teeppp/adaptive-agent-runtime/internal/enforcer"
	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/llm"
	"github.com/teeppp/adaptive-agent-runtime/internal/logx"
	"github.com/teeppp/adaptive-agent-runtime/internal/mcptoolset"
	"github.com/teeppp/adaptive-agent-runtime/internal/modemanager"
	"github.com/teeppp/adaptive-agent-runtime/internal/payment"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
	"github.com/teeppp/adaptive-agent-runtime/internal/sessionstore"
	"github.com/teeppp/adaptive-agent-runtime/internal/skills"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
	"github.com/teeppp/adaptive-agent-runtime/internal/tooldesc"
	"github.com/teeppp/adaptive-agent-runtime/internal/wallet"
)

// runtime bundles everything built from one config.Config, so serve.go
// and session.go can share the assembly without duplicating it.
type runtime struct {
	cfg      *config.Config
	core     *agentcore.Core
	sessions session.Service
	skills   *skills.Registry
	stopFns  []func()
}

func (r *runtime) Close() {
	for i := len(r.stopFns) - 1; i >= 0; i-- {
		r.stopFns[i]()
	}
}

// buildRuntime wires one runtime from the environment flags and the
// loaded config document. Env vars fill in the knobs config.Config has
// no field for (wallet key material, session store DSN, meta-model
// endpoint override): config file for structure, env vars for
// secrets/deployment knobs.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	sessions, err := buildSessionStore()
	if err != nil {
		return nil, err
	}
	rt.sessions = sessions

	provider := buildProvider("")
	metaProvider := provider
	if cfg.Flags.MetaModelID != "" {
		metaProvider = buildProvider(cfg.Flags.MetaModelID)
	}

	w, err := buildWallet(cfg.Flags.WalletMockMode)
	if err != nil {
		return nil, err
	}
	broker := payment.NewBroker(w)

	registry := skills.NewRegistry()
	if cfg.SkillsDir != "" {
		if err := registry.Reload(cfg.SkillsDir); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "load skill bundles", err)
		}
		stop := make(chan struct{})
		go func() {
			if err := skills.Watch(cfg.SkillsDir, registry, stop); err != nil {
				slogWarn("skill registry watch stopped", "error", err)
			}
		}()
		rt.stopFns = append(rt.stopFns, func() { close(stop) })
	}
	rt.skills = registry

	skillToolset, closePlugins := buildSkillPluginToolset(registry, broker)
	rt.stopFns = append(rt.stopFns, closePlugins)

	mcpToolset, closeMCP := buildMCPToolset(cfg.MCPServers)
	rt.stopFns = append(rt.stopFns, closeMCP)

	a2aToolset := buildA2AToolset(cfg.A2APeers, cfg.Flags.EnableConsumerMode)

	builtins := []tool.Tool{
		builtintools.NewAskQuestion(),
		builtintools.NewAttemptAnswer(),
		builtintools.NewSystemRetry(),
		builtintools.NewListSkills(registry),
		builtintools.NewReadDocument(),
	}
	for _, t := range broker.BuiltinTools() {
		builtins = append(builtins, broker.WrapPaid(t))
	}

	// Sources.Builtins holds the process-wide builtins only; Core merges
	// each session's own planner/switch_mode/enable_skill instances on
	// top of this before every Switch call.
	sources := modemanager.Sources{
		Builtins:     builtins,
		MCPToolset:   tool.NewMultiToolset(mcpToolset, a2aToolset),
		SkillTools:   skillToolset,
		SkillBundles: registry.List(),
	}

	leaseManager, closeLease, err := buildLeaseManager()
	if err != nil {
		return nil, err
	}
	rt.stopFns = append(rt.stopFns, closeLease)

	core := agentcore.New(agentcore.Config{
		Provider:    provider,
		Synthesizer: modemanager.NewSynthesizer(metaProvider),
		Sessions:    sessions,
		Broker:      broker,
		Builtins:    builtins,
		Sources:     sources,
		EnforcerConfig: enforcer.Config{
			EnableBareTextBlock: cfg.Flags.EnableEnforcer,
			EnablePlanPact:      cfg.Flags.EnableEnforcer,
		},
		ModeConfig: modemanager.Config{
			MaxContextTokens: contextTokensFromEnv(),
			Threshold:        cfg.Flags.ContextThreshold,
		},
		InitialInstruction: initialInstructionFromEnv(),
		SkillRegistry:      registry,
		ExternalLease:      leaseManager,
		QueueOnBusy:        true,
	})
	rt.core = core

	return rt, nil
}

func slogWarn(msg string, args ...any) {
	// logx installs the process-wide slog default before buildRuntime runs
	// (main.go initializes the logger first), so this reaches the same
	// handler as everything else without threading a logger through every
	// constructor.
	logx.Get().Warn(msg, args...)
}

func buildSessionStore() (session.Service, error) {
	dialect := os.Getenv("AAR_SESSION_STORE_DIALECT")
	dsn := os.Getenv("AAR_SESSION_STORE_DSN")
	if dialect == "" || dsn == "" {
		return sessionstore.NewMemory(), nil
	}
	store, err := sessionstore.NewSQL(dialect, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "open session store", err)
	}
	return store, nil
}

func buildProvider(modelOverride string) llm.Provider {
	model := os.Getenv("OPENAI_MODEL")
	if modelOverride != "" {
		model = modelOverride
	}
	return llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   model,
	})
}

func buildWallet(mockMode bool) (wallet.Adapter, error) {
	if mockMode {
		balance := envFloat("AAR_WALLET_STARTING_BALANCE", 100)
		return wallet.NewMock(balance), nil
	}
	keyHex := os.Getenv("AAR_WALLET_PRIVATE_KEY")
	if keyHex == "" {
		return nil, errs.New(errs.KindConfig, "flags.wallet_mock_mode is false but AAR_WALLET_PRIVATE_KEY is unset")
	}
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "decode AAR_WALLET_PRIVATE_KEY", err)
	}
	balance := envFloat("AAR_WALLET_STARTING_BALANCE", 0)
	w, err := wallet.NewKeyed(keyBytes, balance)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "build keyed wallet", err)
	}
	return w, nil
}

// skillToolDescriptor returns the static metadata for a known skill-local
// tool name. Skill bundles only declare names in SKILL.md; the
// schema/payment annotation for the example bundles shipped with this
// runtime is hardcoded here, the way a real deployment would keep it
// alongside the plugin binary that implements it.
func skillToolDescriptor(name string) tool.Descriptor {
	switch name {
	case "premium_lookup":
		schema, _ := tooldesc.GenerateSchema[struct {
			Query string `json:"query"`
		}]()
		return tool.Descriptor{
			Name:        name,
			Description: "Look up verified, human-curated data for a query.",
			InputSchema: schema,
			Source:      tool.SourceSkillLocal,
			Paid:        &tool.PaidSpec{Price: 0.5, Currency: "USD", Recipient: "premium-data-provider"},
		}
	case "solana_balance":
		schema, _ := tooldesc.GenerateSchema[struct {
			Address string `json:"address"`
		}]()
		return tool.Descriptor{
			Name:        name,
			Description: "Return the lamport balance of a Solana address.",
			InputSchema: schema,
			Source:      tool.SourceSkillLocal,
		}
	case "solana_transfer":
		schema, _ := tooldesc.GenerateSchema[struct {
			From     string `json:"from"`
			To       string `json:"to"`
			Lamports int64  `json:"lamports"`
		}]()
		return tool.Descriptor{
			Name:                name,
			Description:         "Transfer lamports from one Solana address to another.",
			InputSchema:         schema,
			Source:              tool.SourceSkillLocal,
			RequireConfirmation: true,
			Paid:                &tool.PaidSpec{Price: 0.0001, Currency: "SOL", Recipient: "network-fee"},
		}
	default:
		return tool.Descriptor{Name: name, Source: tool.SourceSkillLocal}
	}
}

// buildSkillPluginToolset aggregates a tool.Tool per (bundle, tool name)
// for every skill bundle that ships a "plugin" binary alongside its
// SKILL.md, returning a StaticToolset (never nil, per
// modemanager.Sources.SkillTools's optional-but-if-present contract) and a
// close func stopping every plugin subprocess.
func buildSkillPluginToolset(registry *skills.Registry, broker *payment.Broker) (tool.Toolset, func()) {
	var tools []tool.Tool
	var loaded []*skills.LoadedPlugin

	for _, bundle := range registry.List() {
		binPath := filepath.Join(bundle.Dir, "plugin")
		if _, err := os.Stat(binPath); err != nil {
			continue
		}
		lp, err := skills.LoadPlugin(binPath)
		if err != nil {
			slogWarn("skill plugin load failed", "bundle", bundle.Name, "error", err)
			continue
		}
		loaded = append(loaded, lp)
		for _, name := range bundle.ToolNames {
			t := lp.Tool(skillToolDescriptor(name))
			tools = append(tools, broker.WrapPaid(t))
		}
	}

	return tool.NewStaticToolset(tools...), func() {
		for _, lp := range loaded {
			lp.Close()
		}
	}
}

// buildMCPToolset connects one mcptoolset.Toolset per configured server,
// flattened into a single non-nil tool.Toolset (modemanager.Switch calls
// Sources.MCPToolset.Tools unconditionally).
func buildMCPToolset(servers []config.MCPServerConfig) (tool.Toolset, func()) {
	var sets []tool.Toolset
	var closers []func()
	for _, s := range servers {
		ts, err := mcptoolset.New(mcptoolset.Config{Name: s.Name, URL: s.URL})
		if err != nil {
			slogWarn("mcp server connect failed", "name", s.Name, "error", err)
			continue
		}
		sets = append(sets, ts)
		closers = append(closers, func() { _ = ts.Close() })
	}
	return tool.NewMultiToolset(sets...), func() {
		for _, c := range closers {
			c()
		}
	}
}

// buildA2AToolset converts config.Peer entries (no auth fields) into
// a2aclient.PeerConfig (name/url/capabilities plus optional auth, sourced
// per-peer from AAR_A2A_PEER_<NAME>_AUTH_SCHEME/_TOKEN since the peer
// configuration file deliberately keeps credentials out of the document
// that gets checked in alongside skill bundles).
func buildA2AToolset(peers []config.Peer, consumerMode bool) tool.Toolset {
	converted := make([]a2aclient.PeerConfig, 0, len(peers))
	for _, p := range peers {
		envName := envSafe(p.Name)
		converted = append(converted, a2aclient.PeerConfig{
			Name:         p.Name,
			URL:          p.URL,
			Capabilities: p.Capabilities,
			AuthScheme:   os.Getenv("AAR_A2A_PEER_" + envName + "_AUTH_SCHEME"),
			AuthToken:    os.Getenv("AAR_A2A_PEER_" + envName + "_AUTH_TOKEN"),
		})
	}
	return a2aclient.NewToolset(a2aclient.New(), converted, consumerMode)
}

func envSafe(name string) string {
	upper := strings.ToUpper(name)
	var b strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// buildLeaseManager wires an EtcdLeaseManager when AAR_ETCD_ENDPOINTS
// names at least one endpoint (a multi-instance deployment sharing one
// SQL-backed session store); otherwise agentcore.Core's
// in-process per-session mutex alone is sufficient and ExternalLease
// stays nil.
func buildLeaseManager() (agentcore.LeaseManager, func(), error) {
	raw := os.Getenv("AAR_ETCD_ENDPOINTS")
	if raw == "" {
		return nil, func() {}, nil
	}
	endpoints := strings.Split(raw, ",")
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindConfig, "connect etcd for session lease", err)
	}
	ttl := time.Duration(envFloat("AAR_ETCD_LEASE_TTL_SECONDS", 30)) * time.Second
	return sessionstore.NewEtcdLeaseManager(client, ttl, true), func() { _ = client.Close() }, nil
}

func contextTokensFromEnv() int {
	n, err := strconv.Atoi(os.Getenv("AAR_MAX_CONTEXT_TOKENS"))
	if err != nil || n <= 0 {
		return 100000
	}
	return n
}

func initialInstructionFromEnv() string {
	if v := os.Getenv("AAR_INITIAL_INSTRUCTION"); v != "" {
		return v
	}
	return "You are a careful, tool-using assistant. Answer with attempt_answer when you are done, or ask_question if you need more information."
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
