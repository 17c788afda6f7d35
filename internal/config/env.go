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

package config

import (
	"os"
	"regexp"
	"strconv"
)

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
)

// expandEnvVars substitutes ${VAR} and ${VAR:-default} references in a raw
// config file's text.
func expandEnvVars(s string) string {
	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
	return envBraced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envBraced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})
}

// ApplyEnvOverrides layers process environment flags on top of whatever
// the YAML document set, so an operator can flip a flag for one run
// without editing the file.
func ApplyEnvOverrides(c *Config) {
	if v, ok := os.LookupEnv("ENABLE_ENFORCER"); ok {
		c.Flags.EnableEnforcer = parseBool(v, c.Flags.EnableEnforcer)
	}
	if v, ok := os.LookupEnv("ENABLE_CONSUMER_MODE"); ok {
		c.Flags.EnableConsumerMode = parseBool(v, c.Flags.EnableConsumerMode)
	}
	if v, ok := os.LookupEnv("ENABLE_PAYMENT_PROTOCOL"); ok {
		c.Flags.EnablePaymentProtocol = parseBool(v, c.Flags.EnablePaymentProtocol)
	}
	if v, ok := os.LookupEnv("WALLET_MOCK_MODE"); ok {
		c.Flags.WalletMockMode = parseBool(v, c.Flags.WalletMockMode)
	}
	if v, ok := os.LookupEnv("META_MODEL_ID"); ok && v != "" {
		c.Flags.MetaModelID = v
	}
	if v, ok := os.LookupEnv("CONTEXT_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Flags.ContextThreshold = f
		}
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
