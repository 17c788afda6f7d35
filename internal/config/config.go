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

// Package config loads and validates the runtime's YAML configuration
// (peer list, environment flags) and watches it for changes: yaml.v3
// unmarshal, ${VAR}/${VAR:-default} environment expansion, and
// fsnotify-driven file watching.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
)

// Peer is one entry of the peer configuration file's
// `a2a_peers:[{name,url,capabilities:[]}]` list.
type Peer struct {
	Name         string   `yaml:"name"`
	URL          string   `yaml:"url"`
	Capabilities []string `yaml:"capabilities"`
}

// Flags holds the runtime's environment-overridable feature flags. Every
// field also has an environment-variable equivalent applied by
// ApplyEnvOverrides.
type Flags struct {
	EnableEnforcer        bool    `yaml:"enable_enforcer"`
	EnableConsumerMode    bool    `yaml:"enable_consumer_mode"`
	EnablePaymentProtocol bool    `yaml:"enable_payment_protocol"`
	WalletMockMode        bool    `yaml:"wallet_mock_mode"`
	MetaModelID           string  `yaml:"meta_model_id"`
	ContextThreshold      float64 `yaml:"context_threshold"`
}

// Config is the runtime's top-level configuration document.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Flags Flags `yaml:"flags"`

	SkillsDir string `yaml:"skills_dir"`
	A2APeers  []Peer `yaml:"a2a_peers"`

	MCPServers []MCPServerConfig `yaml:"mcp_servers"`

	Auth struct {
		Enabled  bool   `yaml:"enabled"`
		JWKSURL  string `yaml:"jwks_url"`
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
	} `yaml:"auth"`
}

// MCPServerConfig names one streamable-HTTP MCP endpoint to aggregate
// tools from.
type MCPServerConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SetDefaults fills in the zero-value fields a fresh zero-config run needs
// (teacher's config.SetDefaults pattern).
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Flags.ContextThreshold == 0 {
		c.Flags.ContextThreshold = 0.5
	}
}

// Address returns the host:port the HTTP Surface should bind to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks cross-field invariants that can only be known after the
// whole document is parsed (ConfigError: "unresolvable skill/peer/
// wallet config; surfaced at startup, fatal").
func (c *Config) Validate() error {
	if c.Flags.ContextThreshold <= 0 || c.Flags.ContextThreshold > 1 {
		return errs.New(errs.KindConfig, "flags.context_threshold must be in (0, 1]")
	}
	seen := make(map[string]bool, len(c.A2APeers))
	for _, p := range c.A2APeers {
		if p.Name == "" || p.URL == "" {
			return errs.New(errs.KindConfig, "a2a_peers entries require name and url")
		}
		if seen[p.Name] {
			return errs.New(errs.KindConfig, fmt.Sprintf("duplicate a2a_peers name %q", p.Name))
		}
		seen[p.Name] = true
	}
	for _, m := range c.MCPServers {
		if m.Name == "" || m.URL == "" {
			return errs.New(errs.KindConfig, "mcp_servers entries require name and url")
		}
	}
	return nil
}

// Load reads path, applies ${VAR} environment expansion, unmarshals into a
// Config, fills defaults, and validates — a single fatal-on-error entry
// point for CLI/server startup ("surfaced at startup, fatal").
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env.local", ".env") // best-effort; absence is not an error

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, fmt.Sprintf("read config file %s", path), err)
	}
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, "parse config yaml", err)
	}
	cfg.SetDefaults()
	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
