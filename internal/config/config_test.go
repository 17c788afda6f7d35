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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_MODEL_ID", "gpt-test")
	path := writeTempConfig(t, "flags:\n  meta_model_id: ${TEST_MODEL_ID}\n  context_threshold: 0.7\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cfg.Flags.MetaModelID)
	assert.Equal(t, 0.7, cfg.Flags.ContextThreshold)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadExpandsDefaultFallback(t *testing.T) {
	path := writeTempConfig(t, "flags:\n  meta_model_id: ${UNSET_VAR:-fallback-model}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fallback-model", cfg.Flags.MetaModelID)
}

func TestValidateRejectsDuplicatePeerNames(t *testing.T) {
	cfg := &Config{A2APeers: []Peer{{Name: "p1", URL: "http://a"}, {Name: "p1", URL: "http://b"}}}
	cfg.SetDefaults()
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := &Config{}
	cfg.Flags.ContextThreshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
}

func TestApplyEnvOverridesFlipsFlags(t *testing.T) {
	t.Setenv("ENABLE_ENFORCER", "true")
	t.Setenv("WALLET_MOCK_MODE", "false")
	cfg := &Config{}
	cfg.Flags.WalletMockMode = true
	ApplyEnvOverrides(cfg)
	assert.True(t, cfg.Flags.EnableEnforcer)
	assert.False(t, cfg.Flags.WalletMockMode)
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	path := writeTempConfig(t, "flags:\n  context_threshold: 0.5\n")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ch, err := Watch(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("flags:\n  context_threshold: 0.9\n"), 0644))

	select {
	case cfg := <-ch:
		require.NotNil(t, cfg)
		assert.Equal(t, 0.9, cfg.Flags.ContextThreshold)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
